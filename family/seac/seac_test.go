package seac

import (
	"testing"

	"github.com/libdivecomputer/godivecomputer/dc"
)

// buildHeader writes the header fields at their literal S6 byte offsets:
// 0x0A=tz, 0x0B/0x0C/0x0D=hour/min/sec, 0x0E/0x0F/0x10=day/month/(year-2000).
func buildHeader(tz, hour, min, sec, day, month, year byte) []byte {
	b := make([]byte, 0x11)
	b[0x0A] = tz
	b[0x0B] = hour
	b[0x0C] = min
	b[0x0D] = sec
	b[0x0E] = day
	b[0x0F] = month
	b[0x10] = year
	return b
}

func TestDatetimeUTCS6(t *testing.T) {
	// Literal S6 bytes: tz=15, 10:30:00, 0x0E=1 (day), 0x0F=6 (month), year=24.
	blob := buildHeader(15, 10, 30, 0, 1, 6, 24)
	p := NewParser(dc.NewContext(nil), blob)
	dt, err := p.Datetime()
	if err != nil {
		t.Fatal(err)
	}
	if dt.Year() != 2024 || dt.Month() != 6 || dt.Day() != 1 || dt.Hour() != 10 || dt.Minute() != 30 || dt.Second() != 0 {
		t.Fatalf("got %v", dt)
	}
	tz, err := p.TimezoneOffset()
	if err != nil {
		t.Fatal(err)
	}
	if tz != 0 {
		t.Fatalf("tz offset: got %d want 0", tz)
	}
}

func TestDatetimeUTCPlus4S6(t *testing.T) {
	blob := buildHeader(20, 10, 30, 0, 1, 6, 24)
	p := NewParser(dc.NewContext(nil), blob)
	dt, err := p.Datetime()
	if err != nil {
		t.Fatal(err)
	}
	if dt.Hour() != 14 || dt.Minute() != 30 || dt.Day() != 1 || dt.Month() != 6 {
		t.Fatalf("got %v", dt)
	}
	tz, err := p.TimezoneOffset()
	if err != nil {
		t.Fatal(err)
	}
	if tz != 14400 {
		t.Fatalf("tz offset: got %d want 14400", tz)
	}
}

func TestTimezoneOffsetOutOfRange(t *testing.T) {
	if _, err := TimezoneOffsetSeconds(41); dc.KindOf(err) != dc.KindMalformedData {
		t.Fatalf("expected MalformedData, got %v", err)
	}
}

func TestGasMixTableS6(t *testing.T) {
	header := buildHeader(15, 10, 30, 0, 1, 6, 24)
	profile := []byte{21, 0, 0, 32, 0, 0, 21, 0, 0}
	blob := append(append([]byte{}, header...), profile...)
	p := NewParser(dc.NewContext(nil), blob)

	var indices []int
	err := p.SamplesForeach(func(s dc.Sample) error {
		if s.Kind == dc.SampleGasSwitch {
			indices = append(indices, s.GasMixIndex)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []int{0, 1, 0}
	if len(indices) != len(want) {
		t.Fatalf("got %v want %v", indices, want)
	}
	for i := range want {
		if indices[i] != want[i] {
			t.Fatalf("index %d: got %d want %d", i, indices[i], want[i])
		}
	}
	if p.mixes.Len() != 2 {
		t.Fatalf("ngasmixes: got %d want 2", p.mixes.Len())
	}
}

func TestGasMixTableOverflowIsMalformed(t *testing.T) {
	header := buildHeader(15, 10, 30, 0, 1, 6, 24)
	var profile []byte
	for i := 0; i < NGasMixes+1; i++ {
		profile = append(profile, byte(20+i), 0, 0)
	}
	blob := append(append([]byte{}, header...), profile...)
	p := NewParser(dc.NewContext(nil), blob)
	err := p.SamplesForeach(nil)
	if dc.KindOf(err) != dc.KindMalformedData {
		t.Fatalf("expected MalformedData on overflow, got %v", err)
	}
}
