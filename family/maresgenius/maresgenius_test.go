package maresgenius

import (
	"bytes"
	"testing"
)

func TestParseObjInitReplyShortForm(t *testing.T) {
	reply := make([]byte, shortPayloadLen)
	for i := range reply {
		reply[i] = byte(i)
	}
	short, hdr, err := ParseObjInitReply(reply)
	if err != nil {
		t.Fatal(err)
	}
	if hdr != nil {
		t.Fatal("short-form reply must not produce a header")
	}
	if !bytes.Equal(short, reply) {
		t.Fatal("short-form reply must be returned verbatim")
	}
}

func TestParseObjInitReplySegmentedForm(t *testing.T) {
	length := uint32(500)
	reply := []byte{byte(length), byte(length >> 8), byte(length >> 16), byte(length >> 24)}
	short, hdr, err := ParseObjInitReply(reply)
	if err != nil {
		t.Fatal(err)
	}
	if short != nil {
		t.Fatal("segmented-form reply must not return a short payload")
	}
	if hdr.Length != 500 {
		t.Fatalf("length: got %d want 500", hdr.Length)
	}
	if hdr.SegmentCount != 2 {
		t.Fatalf("segment count: got %d want 2", hdr.SegmentCount)
	}
}

func TestAssembleSegmentsAlternatesToggle(t *testing.T) {
	segs := [][]byte{
		{segmentEven, 0x01, 0x02},
		{segmentOdd, 0x03, 0x04},
	}
	out, err := AssembleSegments(segs)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, []byte{0x01, 0x02, 0x03, 0x04}) {
		t.Fatalf("got % x", out)
	}
}

func TestAssembleSegmentsWrongToggleIsProtocolError(t *testing.T) {
	segs := [][]byte{
		{segmentOdd, 0x01},
	}
	if _, err := AssembleSegments(segs); err == nil {
		t.Fatal("expected protocol error when first segment isn't even")
	}
}
