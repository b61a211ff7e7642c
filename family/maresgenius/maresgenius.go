// Package maresgenius implements the Mares Genius/Sirius object-retrieval
// driver: an OBJ_INIT(index, subindex) control exchange followed by a
// segmented bulk response with toggled even/odd segment numbering, and the
// device's documented 16ms inter-byte pacing (spec §4.4.3, §4.4 suspension
// points).
package maresgenius

import (
	"time"

	"github.com/libdivecomputer/godivecomputer/dc"
	"github.com/libdivecomputer/godivecomputer/transport"
)

// interBytePacing is the device's documented inter-byte delay (spec §4.4:
// "Mares' 16ms inter-byte pacing").
const interBytePacing = 16 * time.Millisecond

const (
	cmdObjInit = 0xC2
	segmentEven byte = 0x00
	segmentOdd  byte = 0x01
)

// ObjectHeader is the OBJ_INIT response's length-and-segmentation header,
// present when the reply doesn't fit the single fixed-short-payload form
// (spec §4.4.3: "response is either fixed short payload in one packet, or
// a length header followed by toggled-even/odd segment packets").
type ObjectHeader struct {
	Length       uint32
	SegmentCount int
}

const shortPayloadLen = 16 // fixed-short-payload form length

// ParseObjInitReply distinguishes the fixed-short-payload form from the
// segmented form and, for the latter, decodes the length header.
func ParseObjInitReply(reply []byte) (short []byte, hdr *ObjectHeader, err error) {
	if len(reply) == shortPayloadLen {
		return reply, nil, nil
	}
	if len(reply) < 4 {
		return nil, nil, dc.NewError("ParseObjInitReply", dc.KindMalformedData, nil)
	}
	length := uint32(reply[0]) | uint32(reply[1])<<8 | uint32(reply[2])<<16 | uint32(reply[3])<<24
	segSize := 252
	segCount := (int(length) + segSize - 1) / segSize
	return nil, &ObjectHeader{Length: length, SegmentCount: segCount}, nil
}

// AssembleSegments concatenates segmented bulk-response packets in order,
// validating the even/odd toggle alternates starting from even and that no
// segment is missing.
func AssembleSegments(segments [][]byte) ([]byte, error) {
	var out []byte
	wantToggle := segmentEven
	for _, seg := range segments {
		if len(seg) < 1 {
			return nil, dc.NewError("AssembleSegments", dc.KindMalformedData, nil)
		}
		toggle := seg[0]
		if toggle != wantToggle {
			return nil, dc.NewError("AssembleSegments", dc.KindProtocol, nil)
		}
		out = append(out, seg[1:]...)
		if wantToggle == segmentEven {
			wantToggle = segmentOdd
		} else {
			wantToggle = segmentEven
		}
	}
	return out, nil
}

// Driver implements dc.Driver for Mares Genius/Sirius devices.
type Driver struct {
	dc.DriverBase
	transport transport.Stream
}

var _ dc.Driver = (*Driver)(nil)

func Open(ctx *dc.Context, t transport.Stream) (*Driver, error) {
	if err := t.Configure(115200, 8, transport.ParityNone, transport.StopBits1, transport.FlowNone); err != nil {
		return nil, &dc.OpenError{Kind: dc.KindIO, Err: err}
	}
	return &Driver{DriverBase: dc.NewDriverBase(ctx), transport: t}, nil
}

func (d *Driver) Close() error { return d.transport.Close() }

func (d *Driver) Timesync(time.Time) error {
	return dc.NewError("Timesync", dc.KindUnsupported, nil)
}

func (d *Driver) Write(addr uint32, buf []byte) error {
	return dc.NewError("Write", dc.KindUnsupported, nil)
}

// objInit issues an OBJ_INIT(index, subindex) request, pacing each written
// byte by interBytePacing as the real firmware requires.
func (d *Driver) objInit(index, subindex uint16) error {
	if d.Ctx.Cancelled() {
		return dc.NewError("objInit", dc.KindCancelled, nil)
	}
	req := []byte{cmdObjInit, byte(index), byte(index >> 8), byte(subindex), byte(subindex >> 8)}
	for _, b := range req {
		if _, err := d.transport.Write([]byte{b}); err != nil {
			return dc.NewError("objInit", dc.KindIO, err)
		}
		d.transport.Sleep(interBytePacing)
	}
	return nil
}

// ReadObject retrieves one full object (index, subindex), transparently
// assembling segments if the reply doesn't fit the short-payload form.
func (d *Driver) ReadObject(index, subindex uint16) ([]byte, error) {
	if err := d.objInit(index, subindex); err != nil {
		return nil, err
	}
	reply := make([]byte, shortPayloadLen)
	n, err := d.transport.Read(reply)
	if err != nil {
		return nil, dc.NewError("ReadObject", dc.KindIO, err)
	}
	short, hdr, err := ParseObjInitReply(reply[:n])
	if err != nil {
		return nil, err
	}
	if hdr == nil {
		return short, nil
	}

	segments := make([][]byte, 0, hdr.SegmentCount)
	for i := 0; i < hdr.SegmentCount; i++ {
		seg := make([]byte, 253)
		sn, err := d.transport.Read(seg)
		if err != nil {
			return nil, dc.NewError("ReadObject", dc.KindIO, err)
		}
		segments = append(segments, seg[:sn])
	}
	return AssembleSegments(segments)
}

func (d *Driver) Read(addr uint32, buf []byte) error {
	data, err := d.ReadObject(uint16(addr>>16), uint16(addr))
	if err != nil {
		return err
	}
	copy(buf, data)
	return nil
}

func (d *Driver) Dump(buf *[]byte) error {
	return dc.NewError("Dump", dc.KindUnsupported, nil)
}

// Foreach walks the dive-directory object (index 0), one sub-object per
// dive, newest first.
func (d *Driver) Foreach(listener dc.Listener, cb dc.DiveCallback) error {
	if listener == nil {
		listener = dc.NopListener{}
	}
	dir, err := d.ReadObject(0, 0)
	if err != nil {
		return err
	}
	n := len(dir) / 2
	for i := 0; i < n; i++ {
		subindex := uint16(dir[i*2]) | uint16(dir[i*2+1])<<8
		blob, err := d.ReadObject(1, subindex)
		if err != nil {
			return err
		}
		listener.OnProgress(dc.Progress{Current: uint32(i + 1), Maximum: uint32(n)})
		fp := blob
		if len(fp) > 8 {
			fp = fp[:8]
		}
		if d.MatchesWatermark(fp) {
			break
		}
		if !cb(blob, fp) {
			break
		}
	}
	return nil
}
