// Package diverite implements the Diverite NiteKQ parser (spec §4.5 "gas-mix
// table building", scenario S5): gas switches carry raw (O2,He) bytes
// rather than a wire index, so the parser maintains its own find-or-insert
// table and emits the resulting index per sample.
package diverite

import (
	"time"

	"github.com/libdivecomputer/godivecomputer/dc"
)

// NGasMixes is this family's gas-mix table capacity (spec §4.5).
const NGasMixes = 7

const (
	recGasChange = 0x01
	recDepth     = 0x02
)

// Parser decodes a Diverite NiteKQ dive blob.
type Parser struct {
	dc.ParserBase
	mixes *dc.GasMixTable
}

var _ dc.Parser = (*Parser)(nil)

func NewParser(ctx *dc.Context, blob []byte) *Parser {
	return &Parser{ParserBase: dc.NewParserBase(ctx, blob), mixes: dc.NewGasMixTable(NGasMixes)}
}

func (p *Parser) Datetime() (time.Time, error) {
	if len(p.Blob) < 6 {
		return time.Time{}, dc.NewError("Datetime", dc.KindMalformedData, nil)
	}
	b := p.Blob
	return time.Date(2000+int(b[0]), time.Month(b[1]), int(b[2]), int(b[3]), int(b[4]), int(b[5]), 0, time.UTC), nil
}

func (p *Parser) Field(ft dc.FieldType, index int) (dc.Value, error) {
	switch ft {
	case dc.FieldGasMixCount:
		if err := p.ensureProfile(); err != nil {
			return dc.Value{}, err
		}
		return dc.Value{Int: p.mixes.Len()}, nil
	case dc.FieldGasMix:
		if err := p.ensureProfile(); err != nil {
			return dc.Value{}, err
		}
		if index < 0 || index >= p.mixes.Len() {
			return dc.Value{}, dc.ErrFieldUnavailable
		}
		return dc.Value{Mix: p.mixes.At(index)}, nil
	default:
		return dc.Value{}, dc.ErrFieldUnavailable
	}
}

func (p *Parser) ensureProfile() error {
	return p.EnsureLevel(dc.CacheProfileValid, func() error { return nil }, func() error {
		return p.SamplesForeach(nil)
	})
}

// SamplesForeach decodes every gas-change and depth record, building the
// gas-mix table as it goes (scenario S5: three GasChange records
// (21,0),(32,0),(21,0) produce ngasmixes=2 and sample indices 0,1,0).
func (p *Parser) SamplesForeach(sink dc.SampleSink) error {
	profile := p.Blob[6:]
	i := 0
	for i < len(profile) {
		switch profile[i] {
		case recGasChange:
			if i+3 > len(profile) {
				return dc.NewError("SamplesForeach", dc.KindMalformedData, nil)
			}
			o2 := float64(profile[i+1])
			he := float64(profile[i+2])
			idx, ok := p.mixes.FindOrInsert(o2, he)
			if !ok {
				return dc.NewError("SamplesForeach", dc.KindMalformedData, nil)
			}
			if sink != nil {
				if err := sink(dc.Sample{Kind: dc.SampleGasSwitch, GasMixIndex: idx, Raw: profile[i : i+3]}); err != nil {
					return err
				}
			}
			i += 3
		case recDepth:
			if i+2 > len(profile) {
				return dc.NewError("SamplesForeach", dc.KindMalformedData, nil)
			}
			depth := float64(profile[i+1]) * 0.1
			if sink != nil {
				if err := sink(dc.Sample{Kind: dc.SampleDepth, DepthM: depth, Raw: profile[i : i+2]}); err != nil {
					return err
				}
			}
			i += 2
		default:
			return dc.NewError("SamplesForeach", dc.KindMalformedData, nil)
		}
	}
	return nil
}
