package marespuck

import (
	"strings"
	"testing"

	"github.com/libdivecomputer/godivecomputer/transport/fake"

	"github.com/libdivecomputer/godivecomputer/dc"
)

func TestEncodeRequestFraming(t *testing.T) {
	req := encodeRequest(0x0070, 4)
	if !strings.HasPrefix(req, "<") || !strings.HasSuffix(req, ">") {
		t.Fatalf("request not <...> framed: %q", req)
	}
	inner := req[1 : len(req)-1]
	if len(inner)%2 != 0 {
		t.Fatalf("odd-length hex body: %q", inner)
	}
}

func TestDecodeReplyChecksum(t *testing.T) {
	body := []byte{0x51, 0x00, 0x70, 0x04, 0xAA, 0xBB, 0xCC, 0xDD}
	sum := xorChecksum(body)
	good := "<" + hexUpper(body) + hexUpper([]byte{sum}) + ">"
	got, err := decodeReply(good)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(body) {
		t.Fatalf("got %v want %v", got, body)
	}

	bad := "<" + hexUpper(body) + "00" + ">"
	if _, err := decodeReply(bad); err == nil {
		t.Fatal("expected checksum failure")
	}
}

func hexUpper(b []byte) string {
	const digits = "0123456789ABCDEF"
	out := make([]byte, len(b)*2)
	for i, c := range b {
		out[i*2] = digits[c>>4]
		out[i*2+1] = digits[c&0xF]
	}
	return string(out)
}

func TestExtractDivesNewestFirst(t *testing.T) {
	mem := make([]byte, 20)
	mem[5] = sentinelDiveEnd  // older dive starts here
	mem[10] = sentinelDiveEnd // newer dive starts here
	mem[15] = sentinelEOP
	dives, err := ExtractDives(mem)
	if err != nil {
		t.Fatal(err)
	}
	if len(dives) != 2 {
		t.Fatalf("got %d dives, want 2", len(dives))
	}
	if len(dives[0]) != 5 || len(dives[1]) != 5 {
		t.Fatalf("got dive lengths %d, %d want 5, 5", len(dives[0]), len(dives[1]))
	}
}

func TestExtractDivesNoEOPIsMalformed(t *testing.T) {
	mem := make([]byte, 10)
	if _, err := ExtractDives(mem); dc.KindOf(err) != dc.KindMalformedData {
		t.Fatalf("expected MalformedData, got %v", err)
	}
}

// TestReadCorruptReplyThenSucceed exercises the exact resilience property
// scenario S3 describes: a corrupt reply triggers one retry, then success.
func TestReadCorruptReplyThenSucceed(t *testing.T) {
	addr := uint16(0x0070)
	want := []byte{0x11, 0x22, 0x33, 0x44}
	body := append([]byte{0x51, byte(addr >> 8), byte(addr), byte(len(want))}, want...)
	sum := xorChecksum(body)
	good := "<" + hexUpper(body) + hexUpper([]byte{sum}) + ">"

	stream := fake.New([]fake.Exchange{{Reply: []byte(good), CorruptFirst: true}})
	drv, err := Open(dc.NewContext(nil), stream)
	if err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 4)
	if err := drv.Read(uint32(addr), buf); err != nil {
		t.Fatalf("expected eventual success after one corrupt reply, got %v", err)
	}
	for i := range want {
		if buf[i] != want[i] {
			t.Fatalf("byte %d: got %x want %x", i, buf[i], want[i])
		}
	}
}
