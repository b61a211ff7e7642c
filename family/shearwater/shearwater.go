// Package shearwater implements the Shearwater object-retrieval driver:
// SLIP-framed read-by-identifier requests, a manifest walk over an ordered
// list of candidate logbook base addresses (spec §9 Open Question), and
// the two-pass dive-blob decompression (9-bit RLE, then block-XOR unmask).
package shearwater

import (
	"time"

	"github.com/libdivecomputer/godivecomputer/dc"
	"github.com/libdivecomputer/godivecomputer/transport"
)

const maxRetries = 4

// warmup is the device's documented post-connect settling delay (spec §4.4
// "suspension points": "Shearwater's 300ms warm-up").
const warmup = 300 * time.Millisecond

// candidateBaseAddresses is the ordered list of logbook base addresses the
// driver probes in sequence (spec §9 Open Question: "the exact set of
// firmware versions producing each is not documented in the source" — so
// rather than guess a single address, try each in order and use the first
// that validates).
var candidateBaseAddresses = []uint32{0xDD000000, 0xC0000000, 0x90000000, 0x80000000}

const manifestRecordSize = 4 // one little-endian uint32 dive address per entry

// ParseManifest decodes a manifest page into per-dive addresses. A zero
// entry terminates the manifest early (unused trailing capacity).
func ParseManifest(page []byte) []uint32 {
	var addrs []uint32
	for i := 0; i+manifestRecordSize <= len(page); i += manifestRecordSize {
		b := page[i : i+manifestRecordSize]
		addr := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
		if addr == 0 {
			break
		}
		addrs = append(addrs, addr)
	}
	return addrs
}

// --- SLIP framing (spec §4.3: "SLIP-style escape framing (Shearwater)") ---

const (
	slipEnd    = 0xC0
	slipEsc    = 0xDB
	slipEscEnd = 0xDC
	slipEscEsc = 0xDD
)

// SLIPEncode frames payload between END bytes, escaping any END/ESC bytes
// that occur within it.
func SLIPEncode(payload []byte) []byte {
	out := make([]byte, 0, len(payload)+2)
	out = append(out, slipEnd)
	for _, b := range payload {
		switch b {
		case slipEnd:
			out = append(out, slipEsc, slipEscEnd)
		case slipEsc:
			out = append(out, slipEsc, slipEscEsc)
		default:
			out = append(out, b)
		}
	}
	out = append(out, slipEnd)
	return out
}

// SLIPDecode extracts one frame's payload from framed data, un-escaping as
// it goes. Malformed escape sequences are reported as MalformedData.
func SLIPDecode(framed []byte) ([]byte, error) {
	var out []byte
	i := 0
	if i < len(framed) && framed[i] == slipEnd {
		i++
	}
	for i < len(framed) {
		b := framed[i]
		if b == slipEnd {
			return out, nil
		}
		if b == slipEsc {
			i++
			if i >= len(framed) {
				return nil, dc.NewError("SLIPDecode", dc.KindMalformedData, nil)
			}
			switch framed[i] {
			case slipEscEnd:
				out = append(out, slipEnd)
			case slipEscEsc:
				out = append(out, slipEsc)
			default:
				return nil, dc.NewError("SLIPDecode", dc.KindMalformedData, nil)
			}
			i++
			continue
		}
		out = append(out, b)
		i++
	}
	return out, nil
}

// --- two-pass dive-blob decompression ---

// DecompressRLE reverses the device's 9-bit run-length encoding: symbols
// 0x000-0x0FF are literal bytes; symbol 0x100 introduces a run, followed
// by a further 9-bit symbol giving (count-1) repeats of the previously
// emitted literal byte.
func DecompressRLE(data []byte) ([]byte, error) {
	br := newBitReader9(data)
	var out []byte
	var last byte
	haveLast := false
	for {
		sym, ok := br.next()
		if !ok {
			break
		}
		if sym < 0x100 {
			last = byte(sym)
			haveLast = true
			out = append(out, last)
			continue
		}
		if !haveLast {
			return nil, dc.NewError("DecompressRLE", dc.KindMalformedData, nil)
		}
		count, ok := br.next()
		if !ok {
			return nil, dc.NewError("DecompressRLE", dc.KindMalformedData, nil)
		}
		for i := 0; i < int(count)+1; i++ {
			out = append(out, last)
		}
	}
	return out, nil
}

type bitReader9 struct {
	data []byte
	pos  int // bit position
}

func newBitReader9(data []byte) *bitReader9 { return &bitReader9{data: data} }

func (r *bitReader9) next() (uint16, bool) {
	if r.pos+9 > len(r.data)*8 {
		return 0, false
	}
	var v uint16
	for i := 0; i < 9; i++ {
		byteIdx := (r.pos + i) / 8
		bitIdx := 7 - (r.pos+i)%8
		bit := (r.data[byteIdx] >> bitIdx) & 1
		v = v<<1 | uint16(bit)
	}
	r.pos += 9
	return v, true
}

// UnmaskXOR reverses the block-XOR obfuscation: data is XORed in-place
// against key, cycling key every len(key) bytes (spec §4.4.3: "block-XOR
// unmask over 32-byte windows").
func UnmaskXOR(data, key []byte) {
	for i := range data {
		data[i] ^= key[i%len(key)]
	}
}

const xorKeyWindow = 32

// deriveXORKey derives the block-XOR unmask key from the selected logbook
// base address (spec §4.4.3 "block-XOR unmask over 32-byte windows"). The
// real firmware's per-unit key isn't specified beyond this window shape, so
// the base address's four bytes are cycled to fill it — deterministic per
// device, and exercises the documented unmask window size exactly.
func deriveXORKey(addr uint32) []byte {
	key := make([]byte, xorKeyWindow)
	src := []byte{byte(addr), byte(addr >> 8), byte(addr >> 16), byte(addr >> 24)}
	for i := range key {
		key[i] = src[i%len(src)]
	}
	return key
}

// Driver implements dc.Driver for Shearwater Predator/Petrel/Perdix family
// computers.
type Driver struct {
	dc.DriverBase
	transport transport.Stream
	baseAddr  uint32
	xorKey    []byte
}

var _ dc.Driver = (*Driver)(nil)

// Open probes candidateBaseAddresses in order, using the first that
// returns a plausible manifest header, and logs which one was selected.
func Open(ctx *dc.Context, t transport.Stream, probe func(addr uint32) (valid bool, err error)) (*Driver, error) {
	if err := t.Configure(115200, 8, transport.ParityNone, transport.StopBits1, transport.FlowNone); err != nil {
		return nil, &dc.OpenError{Kind: dc.KindIO, Err: err}
	}
	t.Sleep(warmup)
	for _, addr := range candidateBaseAddresses {
		ok, err := probe(addr)
		if err != nil {
			return nil, dc.NewError("Open", dc.KindIO, err)
		}
		if ok {
			ctx.Info("shearwater: selected logbook base address", "addr", addr)
			return &Driver{DriverBase: dc.NewDriverBase(ctx), transport: t, baseAddr: addr, xorKey: deriveXORKey(addr)}, nil
		}
	}
	return nil, dc.NewError("Open", dc.KindNoDevice, nil)
}

func (d *Driver) BaseAddress() uint32 { return d.baseAddr }

func (d *Driver) Close() error { return d.transport.Close() }

func (d *Driver) Timesync(time.Time) error {
	return dc.NewError("Timesync", dc.KindUnsupported, nil)
}

func (d *Driver) Write(addr uint32, buf []byte) error {
	return dc.NewError("Write", dc.KindUnsupported, nil)
}

// Read issues a two-byte read-by-identifier request framed in SLIP and
// reads back up to len(buf) bytes (spec §4.4.3: "a two-byte
// read-by-identifier request returns up to ~254 bytes"), retrying on a
// transport-layer failure.
func (d *Driver) Read(addr uint32, buf []byte) error {
	return dc.Retry(d.Ctx, maxRetries, func(int) {
		d.transport.Sleep(50 * time.Millisecond)
		d.transport.Purge(transport.DirectionInput)
	}, func(int) error {
		return d.readOnce(addr, buf)
	})
}

func (d *Driver) readOnce(addr uint32, buf []byte) error {
	if d.Ctx.Cancelled() {
		return dc.NewError("Read", dc.KindCancelled, nil)
	}
	req := SLIPEncode([]byte{byte(addr), byte(addr >> 8)})
	if _, err := d.transport.Write(req); err != nil {
		return dc.NewError("Read", dc.KindIO, err)
	}
	framed := make([]byte, len(buf)+2)
	n, err := d.transport.Read(framed)
	if err != nil {
		return dc.NewError("Read", dc.KindTimeout, err)
	}
	payload, err := SLIPDecode(framed[:n])
	if err != nil {
		return err
	}
	copy(buf, payload)
	return nil
}

func (d *Driver) Dump(buf *[]byte) error {
	return dc.NewError("Dump", dc.KindUnsupported, nil)
}

// Foreach walks the manifest at d.baseAddr, decompressing and unmasking
// each dive blob before forwarding it to cb.
func (d *Driver) Foreach(listener dc.Listener, cb dc.DiveCallback) error {
	if listener == nil {
		listener = dc.NopListener{}
	}
	manifestPage := make([]byte, 256)
	if err := d.Read(d.baseAddr, manifestPage); err != nil {
		return err
	}
	addrs := ParseManifest(manifestPage)
	for i, addr := range addrs {
		raw := make([]byte, 254)
		if err := d.Read(addr, raw); err != nil {
			return err
		}
		blob, err := DecompressRLE(raw)
		if err != nil {
			return err
		}
		if len(d.xorKey) > 0 {
			UnmaskXOR(blob, d.xorKey)
		}
		listener.OnProgress(dc.Progress{Current: uint32(i + 1), Maximum: uint32(len(addrs))})
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
