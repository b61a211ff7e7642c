package cobalt

import (
	"testing"

	"github.com/libdivecomputer/godivecomputer/dc"
	"github.com/libdivecomputer/godivecomputer/transport/fake"
)

func TestParseIdentityS2(t *testing.T) {
	payload := []byte{0x30, 0x30, 0x30, 0x31, 0x32, 0x33, 0x34, 0x35, 0x01, 0x00, 0x02, 0x00, 0x03, 0x00}
	id, err := ParseIdentity(payload)
	if err != nil {
		t.Fatal(err)
	}
	if id.Serial != 1234 {
		t.Fatalf("serial: got %d want 1234", id.Serial)
	}
	if id.Model != 3 {
		t.Fatalf("model: got %d want 3", id.Model)
	}
	if id.Firmware != 65538 {
		t.Fatalf("firmware: got %d want 65538", id.Firmware)
	}
}

func TestParseIdentityTooShort(t *testing.T) {
	_, err := ParseIdentity(make([]byte, 10))
	if err == nil {
		t.Fatal("expected error on short payload")
	}
}

func TestDepthFromPressure(t *testing.T) {
	// At the surface, sample pressure equals atmospheric: depth should be 0.
	d := DepthFromPressure(1013.25, 101325, 1000)
	if d < -0.01 || d > 0.01 {
		t.Fatalf("surface depth: got %f want ~0", d)
	}
	// 10 msw of salt water adds roughly 1 bar.
	atm := 101325.0
	sampleMbar := (atm + 1025*GRAVITY*10) / 100
	d = DepthFromPressure(sampleMbar, atm, 1025)
	if d < 9.9 || d > 10.1 {
		t.Fatalf("10m depth: got %f", d)
	}
}

func TestOpenOverFakeTransport(t *testing.T) {
	payload := []byte{0x30, 0x30, 0x30, 0x31, 0x32, 0x33, 0x34, 0x35, 0x01, 0x00, 0x02, 0x00, 0x03, 0x00}
	stream := fake.New([]fake.Exchange{{Reply: payload}})
	drv, err := Open(dc.NewContext(nil), stream)
	if err != nil {
		t.Fatal(err)
	}
	if drv.Identity().Serial != 1234 {
		t.Fatalf("serial: got %d", drv.Identity().Serial)
	}
}

func TestParseManifest(t *testing.T) {
	mem := make([]byte, 64)
	// count = 2
	mem[0], mem[1], mem[2], mem[3] = 2, 0, 0, 0
	// entry 0: offset=16, length=8
	copy(mem[4:], []byte{16, 0, 0, 0, 8, 0, 0, 0})
	// entry 1: offset=32, length=4
	copy(mem[12:], []byte{32, 0, 0, 0, 4, 0, 0, 0})
	entries, err := ParseManifest(mem)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Offset != 16 || entries[0].Length != 8 {
		t.Fatalf("entry 0: got %+v", entries[0])
	}
	if entries[1].Offset != 32 || entries[1].Length != 4 {
		t.Fatalf("entry 1: got %+v", entries[1])
	}
}

func TestParseManifestTruncatedIsMalformed(t *testing.T) {
	mem := make([]byte, 8)
	mem[0] = 5 // claims 5 entries but the table doesn't fit
	_, err := ParseManifest(mem)
	if dc.KindOf(err) != dc.KindMalformedData {
		t.Fatalf("expected MalformedData, got %v", err)
	}
}

func TestOpenRetriesOnTimeoutThenSucceeds(t *testing.T) {
	payload := []byte{0x30, 0x30, 0x30, 0x31, 0x32, 0x33, 0x34, 0x35, 0x01, 0x00, 0x02, 0x00, 0x03, 0x00}
	stream := fake.New([]fake.Exchange{
		{Reply: nil}, // times out
		{Reply: payload},
	})
	drv, err := Open(dc.NewContext(nil), stream)
	if err != nil {
		t.Fatal(err)
	}
	if drv.Identity().Model != 3 {
		t.Fatalf("model: got %d", drv.Identity().Model)
	}
}
