package shearwater

import (
	"bytes"
	"testing"
)

func TestSLIPRoundTrip(t *testing.T) {
	payload := []byte{0x01, slipEnd, 0x02, slipEsc, 0x03}
	framed := SLIPEncode(payload)
	if framed[0] != slipEnd || framed[len(framed)-1] != slipEnd {
		t.Fatalf("frame must be END-delimited: % x", framed)
	}
	decoded, err := SLIPDecode(framed)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(decoded, payload) {
		t.Fatalf("got % x want % x", decoded, payload)
	}
}

func TestSLIPDecodeBadEscape(t *testing.T) {
	bad := []byte{slipEnd, slipEsc, 0x00, slipEnd}
	if _, err := SLIPDecode(bad); err == nil {
		t.Fatal("expected error on invalid escape sequence")
	}
}

func packBits9(syms []uint16) []byte {
	var bits []byte
	for _, s := range syms {
		for i := 8; i >= 0; i-- {
			bits = append(bits, byte((s>>uint(i))&1))
		}
	}
	out := make([]byte, (len(bits)+7)/8)
	for i, b := range bits {
		if b == 1 {
			out[i/8] |= 1 << uint(7-i%8)
		}
	}
	return out
}

func TestDecompressRLELiteralsOnly(t *testing.T) {
	data := packBits9([]uint16{0x41, 0x42, 0x43})
	out, err := DecompressRLE(data)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, []byte{0x41, 0x42, 0x43}) {
		t.Fatalf("got % x", out)
	}
}

func TestDecompressRLERun(t *testing.T) {
	// literal 0x41, then a run symbol (0x100) with count=2 -> 3 repeats
	data := packBits9([]uint16{0x41, 0x100, 2})
	out, err := DecompressRLE(data)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{0x41, 0x41, 0x41, 0x41}
	if !bytes.Equal(out, want) {
		t.Fatalf("got % x want % x", out, want)
	}
}

func TestUnmaskXORIsInvolution(t *testing.T) {
	key := []byte{0xAA, 0xBB, 0xCC, 0xDD}
	data := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9}
	orig := append([]byte{}, data...)
	UnmaskXOR(data, key)
	UnmaskXOR(data, key)
	if !bytes.Equal(data, orig) {
		t.Fatalf("double XOR should restore original, got % x want % x", data, orig)
	}
}

func TestDeriveXORKeyWindowSizeAndDeterminism(t *testing.T) {
	key := deriveXORKey(0xC0000000)
	if len(key) != xorKeyWindow {
		t.Fatalf("got key length %d want %d", len(key), xorKeyWindow)
	}
	again := deriveXORKey(0xC0000000)
	if !bytes.Equal(key, again) {
		t.Fatalf("deriveXORKey must be deterministic for the same address")
	}
	other := deriveXORKey(0x90000000)
	if bytes.Equal(key, other) {
		t.Fatalf("deriveXORKey must differ across base addresses")
	}
}

func TestParseManifestStopsAtZero(t *testing.T) {
	page := make([]byte, 16)
	page[0], page[1], page[2], page[3] = 0x10, 0x20, 0x30, 0x40
	page[4], page[5], page[6], page[7] = 0x11, 0x21, 0x31, 0x41
	// remaining entries are zero -> terminate manifest
	addrs := ParseManifest(page)
	if len(addrs) != 2 {
		t.Fatalf("got %d addrs want 2", len(addrs))
	}
}
