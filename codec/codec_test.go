package codec

import (
	"math/rand"
	"testing"
)

func TestReadWriteRoundTrip16(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	buf := make([]byte, 2)
	for i := 0; i < 1000; i++ {
		x := uint16(rng.Uint32())
		PutU16LE(buf, 0, x)
		if got := ReadU16LE(buf, 0); got != x {
			t.Fatalf("LE: got %x want %x", got, x)
		}
		PutU16BE(buf, 0, x)
		if got := ReadU16BE(buf, 0); got != x {
			t.Fatalf("BE: got %x want %x", got, x)
		}
	}
}

func TestReadWriteRoundTrip24(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	buf := make([]byte, 3)
	for i := 0; i < 1000; i++ {
		x := rng.Uint32() & 0xFFFFFF
		PutU24LE(buf, 0, x)
		if got := ReadU24LE(buf, 0); got != x {
			t.Fatalf("LE: got %x want %x", got, x)
		}
		PutU24BE(buf, 0, x)
		if got := ReadU24BE(buf, 0); got != x {
			t.Fatalf("BE: got %x want %x", got, x)
		}
	}
}

func TestReadWriteRoundTrip32(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	buf := make([]byte, 4)
	for i := 0; i < 1000; i++ {
		x := rng.Uint32()
		PutU32LE(buf, 0, x)
		if got := ReadU32LE(buf, 0); got != x {
			t.Fatalf("LE: got %x want %x", got, x)
		}
		PutU32BE(buf, 0, x)
		if got := ReadU32BE(buf, 0); got != x {
			t.Fatalf("BE: got %x want %x", got, x)
		}
	}
}

func TestReadWriteRoundTrip64(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	buf := make([]byte, 8)
	for i := 0; i < 1000; i++ {
		x := rng.Uint64()
		PutU64LE(buf, 0, x)
		if got := ReadU64LE(buf, 0); got != x {
			t.Fatalf("LE: got %x want %x", got, x)
		}
		PutU64BE(buf, 0, x)
		if got := ReadU64BE(buf, 0); got != x {
			t.Fatalf("BE: got %x want %x", got, x)
		}
	}
}

func TestBCDRoundTrip(t *testing.T) {
	for n := 0; n <= 99; n++ {
		b := DecToBCD(n)
		if got := BCDToDec(b); got != n {
			t.Fatalf("dec->bcd->dec: n=%d got %d", n, got)
		}
	}
	for hi := 0; hi <= 9; hi++ {
		for lo := 0; lo <= 9; lo++ {
			b := byte(hi<<4 | lo)
			n := BCDToDec(b)
			if got := DecToBCD(n); got != b {
				t.Fatalf("bcd->dec->bcd: b=%x got %x", b, got)
			}
		}
	}
}

func TestBitReverseInvolution(t *testing.T) {
	for i := 0; i < 256; i++ {
		b := []byte{byte(i)}
		once := ReverseBits(b)
		twice := ReverseBits(once)
		if twice[0] != b[0] {
			t.Fatalf("reverse(reverse(%x)) = %x", b[0], twice[0])
		}
	}
}

func TestHexBinRoundTrip(t *testing.T) {
	cases := []string{"", "00", "FF", "0123456789ABCDEF", "deadbeef"}
	for _, s := range cases {
		bin, ok := HexToBin(s)
		if !ok {
			t.Fatalf("HexToBin(%q) failed", s)
		}
		got := BinToHex(bin)
		want := upper(s)
		if got != want {
			t.Fatalf("round trip %q: got %q want %q", s, got, want)
		}
	}
}

func upper(s string) string {
	out := []byte(s)
	for i, c := range out {
		if c >= 'a' && c <= 'f' {
			out[i] = c - 'a' + 'A'
		}
	}
	return string(out)
}

func TestFindForwardBackward(t *testing.T) {
	b := []byte{0x01, 0x80, 0x02, 0x80, 0x03}
	if i := FindForward(b, 0, 0x80); i != 1 {
		t.Fatalf("FindForward: got %d want 1", i)
	}
	if i := FindForward(b, 2, 0x80); i != 3 {
		t.Fatalf("FindForward: got %d want 3", i)
	}
	if i := FindBackward(b, 4, 0x80); i != 3 {
		t.Fatalf("FindBackward: got %d want 3", i)
	}
	if i := FindForward(b, 4, 0x80); i != -1 {
		t.Fatalf("FindForward: want -1 got %d", i)
	}
}
