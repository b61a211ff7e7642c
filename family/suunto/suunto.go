// Package suunto implements the Suunto Solution/Vyper ring-walk driver
// family (spec §4.4.2, scenario S1): memory is a single ring buffer scanned
// for an end-of-profile sentinel byte (0x82) and walked backwards on
// per-dive end markers (0x80).
//
// Grounded on the teacher's hci_raw_read_ringbuf / hci_advance_read_ringbuf
// wraparound pattern in bluetooth.go, generalized through ringbuf.Reader.
package suunto

import (
	"time"

	"github.com/libdivecomputer/godivecomputer/dc"
	"github.com/libdivecomputer/godivecomputer/ringbuf"
	"github.com/libdivecomputer/godivecomputer/transport"
)

const (
	sentinelEOP     = 0x82
	sentinelDiveEnd = 0x80

	defaultMaxRetries = 4
)

// Model identifies a Suunto Solution-family unit.
type Model int

const (
	ModelSolution Model = iota
	ModelEon
	ModelVyper
)

// Layout is the per-model constant record (spec §9 "layout descriptors").
type Layout struct {
	Begin, End     uint32
	FingerprintOff int
	FingerprintLen int
	PageSize       uint32
}

var layouts = map[Model]Layout{
	ModelSolution: {Begin: 0x02, End: 0x06000, FingerprintOff: 1, FingerprintLen: 5, PageSize: 0x80},
	ModelEon:      {Begin: 0x02, End: 0x07F00, FingerprintOff: 1, FingerprintLen: 5, PageSize: 0x80},
	ModelVyper:    {Begin: 0x02, End: 0x08000, FingerprintOff: 1, FingerprintLen: 5, PageSize: 0x80},
}

// Driver implements dc.Driver for the Suunto Solution ring-walk family.
type Driver struct {
	dc.DriverBase
	transport transport.Stream
	model     Model
	layout    Layout
}

var _ dc.Driver = (*Driver)(nil)

// Open selects the layout of the given model, configures the stream for
// 2400 baud 8N1 and purges it. No identify command is sent to the device;
// the model is taken from the argument as given.
func Open(ctx *dc.Context, t transport.Stream, model Model) (*Driver, error) {
	layout, ok := layouts[model]
	if !ok {
		return nil, &dc.OpenError{Kind: dc.KindInvalidArgs}
	}
	if err := t.Configure(2400, 8, transport.ParityNone, transport.StopBits1, transport.FlowNone); err != nil {
		return nil, &dc.OpenError{Kind: dc.KindIO, Err: err}
	}
	if err := t.Purge(transport.DirectionBoth); err != nil {
		return nil, &dc.OpenError{Kind: dc.KindIO, Err: err}
	}
	return &Driver{
		DriverBase: dc.NewDriverBase(ctx),
		transport:  t,
		model:      model,
		layout:     layout,
	}, nil
}

func (d *Driver) Close() error {
	return d.transport.Close()
}

func (d *Driver) Timesync(time.Time) error {
	return dc.NewError("timesync", dc.KindUnsupported, nil)
}

// Write is unsupported: the Suunto Solution family only supports reads.
func (d *Driver) Write(addr uint32, buf []byte) error {
	return dc.NewError("write", dc.KindUnsupported, nil)
}

// Read performs a single raw memory read of len(buf) bytes at addr, via the
// packet-with-retry sub-protocol (spec §4.4.1).
func (d *Driver) Read(addr uint32, buf []byte) error {
	return dc.Retry(d.Ctx, defaultMaxRetries, func(attempt int) {
		d.transport.Sleep(100 * time.Millisecond)
		d.transport.Purge(transport.DirectionInput)
	}, func(attempt int) error {
		return d.readPacket(addr, buf)
	})
}

func (d *Driver) readPacket(addr uint32, buf []byte) error {
	if d.Ctx.Cancelled() {
		return dc.NewError("read", dc.KindCancelled, nil)
	}
	cmd := []byte{0x05, byte(addr), byte(addr >> 8), byte(len(buf))}
	if _, err := d.transport.Write(cmd); err != nil {
		return dc.NewError("read", dc.KindIO, err)
	}
	n, err := d.transport.Read(buf)
	if err != nil {
		return dc.NewError("read", dc.KindTimeout, err)
	}
	if n != len(buf) {
		return dc.NewError("read", dc.KindProtocol, nil)
	}
	return nil
}

// Dump downloads the entire ring into *buf, walking it forward from Begin
// in layout.PageSize-sized pages via ringbuf.Reader.
func (d *Driver) Dump(buf *[]byte) error {
	out, err := d.dumpPaged(nil)
	if err != nil {
		return err
	}
	*buf = out
	return nil
}

// dumpPaged is Dump's implementation, taking an optional progress sink so
// Foreach can credit bytes as they actually cross the wire instead of in
// one lump sum after the download completes.
func (d *Driver) dumpPaged(progress *dc.Progress) ([]byte, error) {
	size := d.layout.End - d.layout.Begin
	rbLayout := ringbuf.Layout{Begin: d.layout.Begin, End: d.layout.End}
	reader := ringbuf.NewReader(rbLayout, d.Read, d.layout.PageSize, ringbuf.Forward, d.layout.Begin, progress)
	return reader.Next(size)
}

// findEOP locates the ring's end-of-profile pointer by scanning for the
// sentinel byte (spec §4.4.2 step 1, "Suunto Solution family — sentinel is
// exactly the byte 0x82").
func findEOP(mem []byte) (int, error) {
	for i, b := range mem {
		if b == sentinelEOP {
			return i, nil
		}
	}
	return 0, dc.NewError("findEOP", dc.KindMalformedData, nil)
}

// ExtractDives splits a full ring-buffer image into dive blobs, newest
// first. On the wire each dive is stored as [0x80 marker][dive bytes...],
// back to back, terminated by the EOP sentinel (0x82) at the position the
// device last wrote to; walking backwards from EOP and collecting marker
// positions reconstructs dive boundaries without needing to know dive sizes
// up front (spec §4.4.2 steps 1-3). It is exported separately from Foreach
// so the dump+extract round-trip property (spec §8 invariant 9) can be
// tested without a live transport.
func ExtractDives(mem []byte) ([][]byte, error) {
	eop, err := findEOP(mem)
	if err != nil {
		return nil, err
	}
	layout := ringbuf.Layout{Begin: 0, End: uint32(len(mem))}
	if !layout.Contains(uint32(eop)) {
		return nil, dc.NewError("ExtractDives", dc.KindMalformedData, nil)
	}

	var markers []int
	for i := eop - 1; i >= int(layout.Begin); i-- {
		if mem[i] == sentinelDiveEnd {
			markers = append(markers, i)
		}
	}
	if len(markers) == 0 {
		return nil, dc.NewError("ExtractDives", dc.KindMalformedData, nil)
	}

	// markers is nearest-to-EOP first (newest dive first); boundaries is
	// [marker, nextMarkerOrEOP) for each dive, walked in that same order.
	var dives [][]byte
	end := eop
	for _, m := range markers {
		dives = append(dives, mem[m:end])
		end = m
	}
	return dives, nil
}

// Foreach downloads the ring, splits it into dives newest-first, and
// invokes cb per dive until the callback returns false or the fingerprint
// matches the stored watermark (spec §4.4.4).
func (d *Driver) Foreach(listener dc.Listener, cb dc.DiveCallback) error {
	if listener == nil {
		listener = dc.NopListener{}
	}
	listener.OnDeviceInfo(dc.DeviceInfo{Model: d.modelName()})

	progress := &dc.Progress{Maximum: d.layout.End - d.layout.Begin}
	listener.OnProgress(*progress)

	mem, err := d.dumpPaged(progress)
	if err != nil {
		return err
	}
	listener.OnProgress(*progress)

	dives, err := ExtractDives(mem)
	if err != nil {
		return err
	}
	for _, blob := range dives {
		if d.Ctx.Cancelled() {
			return dc.NewError("foreach", dc.KindCancelled, nil)
		}
		fp := fingerprintOf(blob, d.layout)
		if d.MatchesWatermark(fp) {
			return nil
		}
		if !cb(blob, fp) {
			return nil
		}
	}
	return nil
}

func fingerprintOf(blob []byte, layout Layout) []byte {
	off := layout.FingerprintOff
	n := layout.FingerprintLen
	if off+n > len(blob) {
		return nil
	}
	return blob[off : off+n]
}

func (d *Driver) modelName() string {
	switch d.model {
	case ModelSolution:
		return "Solution"
	case ModelEon:
		return "Eon"
	case ModelVyper:
		return "Vyper"
	default:
		return "unknown"
	}
}
