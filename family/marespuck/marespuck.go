// Package marespuck implements the Mares Puck ASCII-framed driver
// (spec §4.4.1 "ASCII <hex…hex> wrapper with printable-nibble payload and
// checksum byte", scenario S3).
package marespuck

import (
	"fmt"
	"time"

	"github.com/libdivecomputer/godivecomputer/codec"
	"github.com/libdivecomputer/godivecomputer/dc"
	"github.com/libdivecomputer/godivecomputer/ringbuf"
	"github.com/libdivecomputer/godivecomputer/transport"
)

// MaxRetries is family-specific (spec §4.4.1: "9" for this family).
const MaxRetries = 9

// The Puck's memory is a single ring buffer addressed through the ASCII
// framed read primitive, scanned for an end-of-profile sentinel and walked
// backwards on per-dive end markers — the same ring-walk shape as
// family/suunto, generalized to this family's own sentinel bytes and
// ASCII-framed Read.
const (
	ringBegin = 0x0070
	ringEnd   = 0x4000
	pageSize  = 0x80

	sentinelEOP     = 0xFF
	sentinelDiveEnd = 0xFE

	fingerprintOff = 0
	fingerprintLen = 5
)

// xorChecksum xors every byte of the (already-binary) body together.
func xorChecksum(body []byte) byte {
	var x byte
	for _, b := range body {
		x ^= b
	}
	return x
}

// encodeRequest builds the ASCII <hex…hex> read request for a count-byte
// read of n bytes at addr. The binary body is 0x51 (read opcode), the
// address as two big-endian bytes, and n; it is sent as hex text followed by
// the XOR of the body bytes as two hex chars. A 4-byte read at address
// 0x0070 therefore sends "<5100700425>". The address is always two binary
// bytes; no other address encoding is produced.
func encodeRequest(addr uint16, n byte) string {
	body := []byte{0x51, byte(addr >> 8), byte(addr), n}
	sum := xorChecksum(body)
	return fmt.Sprintf("<%s%s>", codec.BinToHex(body), fmt.Sprintf("%02X", sum))
}

// decodeReply extracts the binary payload from a <...> wrapped ASCII reply
// and validates its trailing XOR checksum byte.
func decodeReply(s string) ([]byte, error) {
	if len(s) < 2 || s[0] != '<' || s[len(s)-1] != '>' {
		return nil, dc.NewError("decodeReply", dc.KindProtocol, nil)
	}
	inner := s[1 : len(s)-1]
	bin, ok := codec.HexToBin(inner)
	if !ok || len(bin) < 1 {
		return nil, dc.NewError("decodeReply", dc.KindProtocol, nil)
	}
	body, sum := bin[:len(bin)-1], bin[len(bin)-1]
	if xorChecksum(body) != sum {
		return nil, dc.NewError("decodeReply", dc.KindProtocol, nil)
	}
	return body, nil
}

// Driver implements dc.Driver for the Mares Puck ASCII-framed family.
type Driver struct {
	dc.DriverBase
	transport transport.Stream
}

var _ dc.Driver = (*Driver)(nil)

func Open(ctx *dc.Context, t transport.Stream) (*Driver, error) {
	if err := t.Configure(19200, 8, transport.ParityNone, transport.StopBits1, transport.FlowNone); err != nil {
		return nil, &dc.OpenError{Kind: dc.KindIO, Err: err}
	}
	return &Driver{DriverBase: dc.NewDriverBase(ctx), transport: t}, nil
}

func (d *Driver) Close() error { return d.transport.Close() }

func (d *Driver) Timesync(time.Time) error {
	return dc.NewError("timesync", dc.KindUnsupported, nil)
}

func (d *Driver) Write(addr uint32, buf []byte) error {
	return dc.NewError("write", dc.KindUnsupported, nil)
}

// Dump downloads the entire ring into *buf, paging ASCII-framed reads via
// ringbuf.Reader.
func (d *Driver) Dump(buf *[]byte) error {
	size := uint32(ringEnd - ringBegin)
	layout := ringbuf.Layout{Begin: ringBegin, End: ringEnd}
	reader := ringbuf.NewReader(layout, d.Read, pageSize, ringbuf.Forward, ringBegin, nil)
	out, err := reader.Next(size)
	if err != nil {
		return err
	}
	*buf = out
	return nil
}

// findEOP locates the ring's end-of-profile pointer by scanning for the
// sentinel byte.
func findEOP(mem []byte) (int, error) {
	for i, b := range mem {
		if b == sentinelEOP {
			return i, nil
		}
	}
	return 0, dc.NewError("findEOP", dc.KindMalformedData, nil)
}

// ExtractDives splits a full ring-buffer image into dive blobs, newest
// first, walking backwards from the EOP sentinel and collecting per-dive
// end markers — mirrors family/suunto.ExtractDives, adapted to this
// family's own sentinel bytes.
func ExtractDives(mem []byte) ([][]byte, error) {
	eop, err := findEOP(mem)
	if err != nil {
		return nil, err
	}
	var markers []int
	for i := eop - 1; i >= 0; i-- {
		if mem[i] == sentinelDiveEnd {
			markers = append(markers, i)
		}
	}
	if len(markers) == 0 {
		return nil, dc.NewError("ExtractDives", dc.KindMalformedData, nil)
	}
	var dives [][]byte
	end := eop
	for _, m := range markers {
		dives = append(dives, mem[m:end])
		end = m
	}
	return dives, nil
}

func fingerprintOf(blob []byte) []byte {
	if fingerprintOff+fingerprintLen > len(blob) {
		return nil
	}
	return blob[fingerprintOff : fingerprintOff+fingerprintLen]
}

// Foreach downloads the ring, splits it into dives newest-first, and
// invokes cb per dive until the callback returns false or the fingerprint
// matches the stored watermark.
func (d *Driver) Foreach(listener dc.Listener, cb dc.DiveCallback) error {
	if listener == nil {
		listener = dc.NopListener{}
	}
	var mem []byte
	if err := d.Dump(&mem); err != nil {
		return err
	}
	dives, err := ExtractDives(mem)
	if err != nil {
		return err
	}
	for i, blob := range dives {
		if d.Ctx.Cancelled() {
			return dc.NewError("foreach", dc.KindCancelled, nil)
		}
		fp := fingerprintOf(blob)
		listener.OnProgress(dc.Progress{Current: uint32(i + 1), Maximum: uint32(len(dives))})
		if d.MatchesWatermark(fp) {
			return nil
		}
		if !cb(blob, fp) {
			return nil
		}
	}
	return nil
}

// Read performs a single framed read of len(buf) bytes at addr, retrying up
// to MaxRetries times on a corrupted or missing reply (scenario S3: "corrupt
// reply triggers one retry then success").
func (d *Driver) Read(addr uint32, buf []byte) error {
	if len(buf) > 255 {
		return dc.NewError("read", dc.KindInvalidArgs, nil)
	}
	req := encodeRequest(uint16(addr), byte(len(buf)))
	return dc.Retry(d.Ctx, MaxRetries, func(int) {
		d.transport.Sleep(20 * time.Millisecond)
		d.transport.Purge(transport.DirectionInput)
	}, func(attempt int) error {
		return d.readPacket(req, buf)
	})
}

func (d *Driver) readPacket(req string, buf []byte) error {
	if d.Ctx.Cancelled() {
		return dc.NewError("read", dc.KindCancelled, nil)
	}
	if _, err := d.transport.Write([]byte(req)); err != nil {
		return dc.NewError("read", dc.KindIO, err)
	}
	// Expected reply length for a fixed-size read: '<' + two hex chars per
	// body byte + '>', where body = opcode+addr(2)+len+data+checksum.
	replyLen := 2 + 2*(4+len(buf)+1)
	raw := make([]byte, replyLen)
	n, err := d.transport.Read(raw)
	if err != nil {
		return dc.NewError("read", dc.KindTimeout, err)
	}
	if n != len(raw) {
		return dc.NewError("read", dc.KindProtocol, nil)
	}
	body, err := decodeReply(string(raw))
	if err != nil {
		return err
	}
	// body = [opcode, addrHi, addrLo, len, data...]
	if len(body) != 4+len(buf) {
		return dc.NewError("read", dc.KindProtocol, nil)
	}
	copy(buf, body[4:])
	return nil
}
