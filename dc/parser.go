package dc

import (
	"errors"
	"time"
)

// FieldType enumerates the scalar fields a Parser can report (spec §4.5).
type FieldType int

const (
	FieldDiveTime FieldType = iota
	FieldMaxDepth
	FieldAvgDepth
	FieldGasMixCount
	FieldGasMix // requires an Index
	FieldSalinity
	FieldAtmospheric
	FieldDecoModelGFLow
	FieldDecoModelGFHigh
	FieldDiveMode
)

// DiveMode enumerates the §3 "dive mode" field values.
type DiveMode int

const (
	ModeOC DiveMode = iota
	ModeCC
	ModeGauge
	ModeFreedive
)

// Salinity selects the density used by unit conversions that need it
// (Atomics Cobalt depth-from-pressure, per spec §4.5).
type Salinity int

const (
	SalinityFresh Salinity = iota
	SalinitySalt
)

// Density returns the salinity's density in kg/m^3 (spec §4.5 defaults:
// 1025 salt, 1000 fresh).
func (s Salinity) Density() float64 {
	if s == SalinitySalt {
		return 1025
	}
	return 1000
}

// Value is the scalar result of Parser.Field: exactly one of the typed
// fields is meaningful, selected by the FieldType that produced it.
type Value struct {
	Float  float64
	Int    int
	Mix    GasMix
	Mode   DiveMode
	Salin  Salinity
}

var ErrFieldUnavailable = errors.New("dc: field not available for this dive/model")

// CacheLevel is the Parser's lazily-populated derived-field cache state
// (spec §3 "Parser state"): Empty -> HeaderValid -> ProfileValid. Any field
// requested below the current level triggers population of the next level.
type CacheLevel int

const (
	CacheEmpty CacheLevel = iota
	CacheHeaderValid
	CacheProfileValid
)

// Parser is the contract every family/* blob decoder implements (spec
// §4.5). Constant-cost methods (Datetime, simple header Field lookups) may
// be called before SamplesForeach; methods that need derived summary
// fields (avg depth, gas mix count) populate the cache by internally
// running the profile decode once with a nil sink.
type Parser interface {
	SetClock(devTime, sysTime time.Time)
	SetAtmospheric(pascal float64)
	SetDensity(kgPerM3 float64)

	Datetime() (time.Time, error)
	Field(ft FieldType, index int) (Value, error)
	SamplesForeach(sink SampleSink) error
}

// ParserBase embeds the immutable blob reference and cache-level state
// machine shared by every family parser (spec §3 "Parser state" /
// §4.5). Family parsers embed this and call EnsureLevel from Field/Datetime
// to lazily trigger header or profile decoding.
type ParserBase struct {
	Blob        []byte
	Ctx         *Context
	Level       CacheLevel
	Atmospheric float64 // pascal, default 101325
	Density     float64 // kg/m^3, default fresh (1000)
	DevTime     time.Time
	SysTime     time.Time
}

// NewParserBase wraps blob with sane atmospheric/density defaults.
func NewParserBase(ctx *Context, blob []byte) ParserBase {
	return ParserBase{
		Blob:        blob,
		Ctx:         ctx,
		Atmospheric: 101325,
		Density:     SalinityFresh.Density(),
	}
}

func (p *ParserBase) SetClock(devTime, sysTime time.Time) {
	p.DevTime, p.SysTime = devTime, sysTime
}

func (p *ParserBase) SetAtmospheric(pascal float64) { p.Atmospheric = pascal }

func (p *ParserBase) SetDensity(kgPerM3 float64) { p.Density = kgPerM3 }

// EnsureLevel runs decodeHeader and/or decodeProfile as needed to reach
// want, never redoing work already done, matching the one-way
// Empty->HeaderValid->ProfileValid transition of spec §3.
func (p *ParserBase) EnsureLevel(want CacheLevel, decodeHeader, decodeProfile func() error) error {
	if p.Level < CacheHeaderValid && want >= CacheHeaderValid {
		if err := decodeHeader(); err != nil {
			return err
		}
		p.Level = CacheHeaderValid
	}
	if p.Level < CacheProfileValid && want >= CacheProfileValid {
		if err := decodeProfile(); err != nil {
			return err
		}
		p.Level = CacheProfileValid
	}
	return nil
}
