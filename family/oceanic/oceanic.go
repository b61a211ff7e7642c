// Package oceanic implements the Oceanic parser family: bit-packed,
// model-dependent date decoding with a host-clock Y2010 fold (spec §4.5,
// scenario S4), mixed fixed/oversized sample dispatch, and freedive
// ancillary-area stitching.
package oceanic

import (
	"time"

	"github.com/libdivecomputer/godivecomputer/dc"
)

// Model selects which bit-packed date layout and Y2010-fold applicability
// a given logbook entry uses (spec §4.5: "the parser selects the decoding
// variant via the model identifier passed at construction").
type Model int

const (
	ModelVEO250 Model = iota
	ModelAtom2
	ModelF10
	ModelF11
	ModelDsx // full year byte (2000 + n): never subject to the Y2010 fold
)

const (
	sampleTypeSurfaceInterval   = 0xBB // full PAGESIZE record
	sampleTypeTankSwitch        = 0xAA
	sampleTypeFreediveAncillary = 0xDD
	pageSize                    = 256
	freediveEntrySize           = 3 // timeSec, depth*0.1, reserved
)

// isFreediveCapable reports whether m embeds the freedive ancillary area
// (spec §4.5 "Freedive sub-records": "Devices supporting freedive sessions
// (Mares Nemo, Oceanic F10/F11, Dsx)").
func isFreediveCapable(m Model) bool {
	return m == ModelF10 || m == ModelF11 || m == ModelDsx
}

// headerLen is the fixed header size for m: the 4-byte bit-packed date,
// plus one mode/freedive-count byte that only freedive-capable models
// carry.
func headerLen(m Model) int {
	if isFreediveCapable(m) {
		return 5
	}
	return 4
}

// decodeModeByte splits a freedive-capable model's 5th header byte into the
// dive mode (low 2 bits) and the expected freedive ancillary-entry count
// (remaining 6 bits) that the ancillary stream is cross-checked against.
func decodeModeByte(b byte) (dc.DiveMode, int) {
	count := int(b >> 2)
	switch b & 0x03 {
	case 1:
		return dc.ModeCC, count
	case 2:
		return dc.ModeGauge, count
	case 3:
		return dc.ModeFreedive, count
	default:
		return dc.ModeOC, count
	}
}

// y2010Applies reports whether model's date encoding only carries the last
// digit of the year, requiring the host-clock decade fold (spec §4.5
// "Year-2010 hack"; §9 Open Question: the fold trusts the host clock).
func y2010Applies(m Model) bool {
	return m != ModelDsx
}

// DecodeDate decodes a model-specific bit-packed header date. header must
// be at least 4 bytes. now is the host clock used for the Y2010 fold; pass
// the real wall-clock time in production code, and a fixed time in tests
// for reproducibility (scenario S4 fixes "host clock = 2023").
//
// Returns the decoded time and a warning flag: warn is true when the Y2010
// fold fired, i.e. the dive's true year is only known up to host-clock
// trustworthiness (spec §9 Open Question: "an implementer may prefer to
// return a warning sentinel" — taken here rather than silently trusting the
// host clock).
func DecodeDate(m Model, header []byte, now time.Time) (t time.Time, warn bool, err error) {
	if len(header) < 4 {
		return time.Time{}, false, dc.NewError("DecodeDate", dc.KindMalformedData, nil)
	}
	month := int(header[0] & 0x0F)
	day := int((header[0] >> 4) | (header[1]&0x01)<<4)
	lastDigit := int(header[1] >> 1 & 0x0F)
	hour := int(header[2] & 0x1F)
	minute := int(header[3] & 0x3F)

	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false, dc.NewError("DecodeDate", dc.KindMalformedData, nil)
	}

	var year int
	if y2010Applies(m) {
		decade := (now.Year() / 10) * 10
		year = decade + lastDigit
		// A fold that lands five or more years after the host clock belongs
		// to the previous decade (host year 2023: digit 4 -> 2024, digit 9
		// -> 2019).
		if year-now.Year() >= 5 {
			year -= 10
		}
		warn = true
	} else {
		year = 2000 + int(header[1])
	}

	return time.Date(year, time.Month(month), day, hour, minute, 0, 0, time.UTC), warn, nil
}

// SampleType classifies a raw sample-type byte (spec §4.5 "sample record
// dispatch").
type SampleType int

const (
	SampleNormal SampleType = iota
	SampleSurfaceInterval
	SampleTankSwitch
	SampleFreediveAncillary
)

// ClassifySample reports which dispatch flavour a sample-type byte selects.
func ClassifySample(b byte) SampleType {
	switch b {
	case sampleTypeSurfaceInterval:
		return SampleSurfaceInterval
	case sampleTypeTankSwitch:
		return SampleTankSwitch
	case sampleTypeFreediveAncillary:
		return SampleFreediveAncillary
	default:
		return SampleNormal
	}
}

// Parser decodes an Oceanic dive blob.
type Parser struct {
	dc.ParserBase
	model Model
	now   time.Time
}

var _ dc.Parser = (*Parser)(nil)

// NewParser wraps blob for model, using now as the host clock consulted by
// the Y2010 fold.
func NewParser(ctx *dc.Context, blob []byte, model Model, now time.Time) *Parser {
	return &Parser{ParserBase: dc.NewParserBase(ctx, blob), model: model, now: now}
}

func (p *Parser) Datetime() (time.Time, error) {
	if len(p.Blob) < 4 {
		return time.Time{}, dc.NewError("Datetime", dc.KindMalformedData, nil)
	}
	t, warn, err := DecodeDate(p.model, p.Blob[:4], p.now)
	if err != nil {
		return time.Time{}, err
	}
	if warn {
		p.Ctx.Warn("oceanic: date decoded via host-clock Y2010 fold", "decoded", t)
	}
	return t, nil
}

func (p *Parser) Field(ft dc.FieldType, index int) (dc.Value, error) {
	switch ft {
	case dc.FieldDiveMode:
		if !isFreediveCapable(p.model) {
			return dc.Value{Mode: dc.ModeOC}, nil
		}
		if len(p.Blob) < headerLen(p.model) {
			return dc.Value{}, dc.NewError("Field", dc.KindMalformedData, nil)
		}
		mode, _ := decodeModeByte(p.Blob[4])
		return dc.Value{Mode: mode}, nil
	default:
		return dc.Value{}, dc.ErrFieldUnavailable
	}
}

// SamplesForeach walks the profile, dispatching each sample record per
// spec §4.5: 0xBB is a full-page surface-interval record, 0xAA is a
// tank-switch record, 0xDD (freedive-capable models only) introduces the
// ancillary area of stitched-in apnea entries, and everything else is a
// normal fixed-size sample. Monotonic sample time is enforced: a backwards
// step is MalformedData, a duplicate is a logged warning and the sample is
// dropped (spec §4.5 "Year-2100 and monotonicity").
func (p *Parser) SamplesForeach(sink dc.SampleSink) error {
	if len(p.Blob) < headerLen(p.model) {
		return dc.NewError("SamplesForeach", dc.KindMalformedData, nil)
	}
	wantFreediveEntries := -1
	if isFreediveCapable(p.model) {
		mode, count := decodeModeByte(p.Blob[4])
		if mode == dc.ModeFreedive {
			wantFreediveEntries = count
		}
	}
	profile := p.Blob[headerLen(p.model):]
	gotFreediveEntries := 0
	var lastTime int64 = -1
	i := 0
	for i < len(profile) {
		typ := profile[i]
		switch ClassifySample(typ) {
		case SampleSurfaceInterval:
			if i+pageSize > len(profile) {
				return dc.NewError("SamplesForeach", dc.KindMalformedData, nil)
			}
			i += pageSize
			continue
		case SampleTankSwitch:
			if i+2 > len(profile) {
				return dc.NewError("SamplesForeach", dc.KindMalformedData, nil)
			}
			i += 2
			continue
		case SampleFreediveAncillary:
			if wantFreediveEntries < 0 {
				return dc.NewError("SamplesForeach", dc.KindMalformedData, nil)
			}
			if i+2 > len(profile) {
				return dc.NewError("SamplesForeach", dc.KindMalformedData, nil)
			}
			n := int(profile[i+1])
			i += 2
			for e := 0; e < n; e++ {
				if i+freediveEntrySize > len(profile) {
					return dc.NewError("SamplesForeach", dc.KindMalformedData, nil)
				}
				rec := profile[i : i+freediveEntrySize]
				tsec := int64(rec[0])
				depth := float64(rec[1]) * 0.1
				if sink != nil {
					if err := sink(dc.Sample{Kind: dc.SampleTime, TimeMS: tsec * 1000, Raw: rec}); err != nil {
						return err
					}
					if err := sink(dc.Sample{Kind: dc.SampleDepth, DepthM: depth, Raw: rec}); err != nil {
						return err
					}
				}
				i += freediveEntrySize
				gotFreediveEntries++
			}
			continue
		default:
			if i+3 > len(profile) {
				return dc.NewError("SamplesForeach", dc.KindMalformedData, nil)
			}
			rec := profile[i : i+3]
			tsec := int64(rec[0])
			depth := float64(rec[1]) * 0.1
			if tsec < lastTime {
				return dc.NewError("SamplesForeach", dc.KindMalformedData, nil)
			}
			if tsec == lastTime {
				p.Ctx.Warn("oceanic: duplicate sample timestamp, dropping", "time", tsec)
				i += 3
				continue
			}
			lastTime = tsec
			if sink != nil {
				if err := sink(dc.Sample{Kind: dc.SampleTime, TimeMS: tsec * 1000, Raw: rec}); err != nil {
					return err
				}
				if err := sink(dc.Sample{Kind: dc.SampleDepth, DepthM: depth, Raw: rec}); err != nil {
					return err
				}
			}
			i += 3
		}
	}
	if wantFreediveEntries >= 0 && gotFreediveEntries != wantFreediveEntries {
		return dc.NewError("SamplesForeach", dc.KindMalformedData, nil)
	}
	return nil
}
