package diverite

import (
	"testing"

	"github.com/libdivecomputer/godivecomputer/dc"
)

func TestGasMixTableS5(t *testing.T) {
	header := []byte{23, 6, 1, 10, 30, 0} // 2023-06-01 10:30:00
	profile := []byte{
		recGasChange, 21, 0,
		recGasChange, 32, 0,
		recGasChange, 21, 0,
	}
	blob := append(append([]byte{}, header...), profile...)

	p := NewParser(dc.NewContext(nil), blob)
	var gasIndices []int
	err := p.SamplesForeach(func(s dc.Sample) error {
		if s.Kind == dc.SampleGasSwitch {
			gasIndices = append(gasIndices, s.GasMixIndex)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []int{0, 1, 0}
	if len(gasIndices) != len(want) {
		t.Fatalf("got %v want %v", gasIndices, want)
	}
	for i := range want {
		if gasIndices[i] != want[i] {
			t.Fatalf("index %d: got %d want %d", i, gasIndices[i], want[i])
		}
	}
	if p.mixes.Len() != 2 {
		t.Fatalf("ngasmixes: got %d want 2", p.mixes.Len())
	}

	dt, err := p.Datetime()
	if err != nil {
		t.Fatal(err)
	}
	if dt.Year() != 2023 || dt.Month() != 6 || dt.Day() != 1 {
		t.Fatalf("datetime: got %v", dt)
	}
}

func TestGasMixTableOverflowIsMalformed(t *testing.T) {
	header := []byte{23, 6, 1, 10, 30, 0}
	var profile []byte
	for i := 0; i < NGasMixes+1; i++ {
		profile = append(profile, recGasChange, byte(20+i), 0)
	}
	blob := append(append([]byte{}, header...), profile...)
	p := NewParser(dc.NewContext(nil), blob)
	err := p.SamplesForeach(nil)
	if dc.KindOf(err) != dc.KindMalformedData {
		t.Fatalf("expected MalformedData on overflow, got %v", err)
	}
}
