// Package eonsteel implements the Suunto EON Steel small-filesystem
// driver: open/stat/read/close/readdir over 64-byte HID reports, a fixed
// dive directory ("0:/dives"), and hex-encoded-Unix-timestamp filenames
// that lexically sort into chronological order (spec §4.4.3).
package eonsteel

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/libdivecomputer/godivecomputer/dc"
	"github.com/libdivecomputer/godivecomputer/transport"
)

// DiveDirectory is the device's one fixed dive directory.
const DiveDirectory = "0:/dives"

const hidReportSize = 64

// DirEntry is one readdir result: a dive's filename and its decoded
// timestamp.
type DirEntry struct {
	Name      string
	Timestamp time.Time
}

// ParseDirEntryName decodes a dive filename — an 8-hex-digit, zero-padded,
// big-endian Unix timestamp — into a DirEntry. Filenames are fixed-width
// hex so that a plain lexical sort already yields chronological order
// (spec §4.4.3: "filenames lexically sort to chronological order").
func ParseDirEntryName(name string) (DirEntry, error) {
	if len(name) != 8 {
		return DirEntry{}, dc.NewError("ParseDirEntryName", dc.KindMalformedData, nil)
	}
	v, err := strconv.ParseUint(name, 16, 64)
	if err != nil {
		return DirEntry{}, dc.NewError("ParseDirEntryName", dc.KindMalformedData, err)
	}
	return DirEntry{Name: name, Timestamp: time.Unix(int64(v), 0).UTC()}, nil
}

// SortEntriesNewestFirst orders directory entries so the most recent dive
// comes first, matching every other family's Foreach contract (spec §4.4.4
// "newest first").
func SortEntriesNewestFirst(entries []DirEntry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name > entries[j].Name })
}

const (
	fsOpen    = 0x01
	fsStat    = 0x02
	fsRead    = 0x03
	fsClose   = 0x04
	fsReaddir = 0x05
)

// Handle is a file handle returned by Open.
type Handle uint16

// Driver implements dc.Driver by speaking the device's small filesystem
// protocol and reassembling each dive file's contents.
type Driver struct {
	dc.DriverBase
	transport transport.Stream
}

var _ dc.Driver = (*Driver)(nil)

// Open configures the underlying stream for HID report exchange. The
// device is accessed as a USB-HID endpoint rather than a UART, so the
// serial line parameters are notional; 8 data bits, no parity/flow is the
// configuration the report framing assumes.
func Open(ctx *dc.Context, t transport.Stream) (*Driver, error) {
	if err := t.Configure(0, 8, transport.ParityNone, transport.StopBits1, transport.FlowNone); err != nil {
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

func (d *Driver) sendReport(cmd byte, payload []byte) ([]byte, error) {
	if d.Ctx.Cancelled() {
		return nil, dc.NewError("sendReport", dc.KindCancelled, nil)
	}
	req := make([]byte, hidReportSize)
	req[0] = cmd
	copy(req[1:], payload)
	if _, err := d.transport.Write(req); err != nil {
		return nil, dc.NewError("sendReport", dc.KindIO, err)
	}
	resp := make([]byte, hidReportSize)
	n, err := d.transport.Read(resp)
	if err != nil {
		return nil, dc.NewError("sendReport", dc.KindIO, err)
	}
	return resp[:n], nil
}

// OpenFile opens path (e.g. DiveDirectory, or a dive filename within it)
// and returns its handle.
func (d *Driver) OpenFile(path string) (Handle, error) {
	resp, err := d.sendReport(fsOpen, []byte(path))
	if err != nil {
		return 0, err
	}
	if len(resp) < 3 {
		return 0, dc.NewError("OpenFile", dc.KindMalformedData, nil)
	}
	return Handle(uint16(resp[1]) | uint16(resp[2])<<8), nil
}

// Readdir lists the dive directory's entries, sorted newest first. Each
// entry in the reply is a 4-byte big-endian timestamp, rendered as its
// 8-hex-digit filename.
func (d *Driver) Readdir(h Handle) ([]DirEntry, error) {
	resp, err := d.sendReport(fsReaddir, []byte{byte(h), byte(h >> 8)})
	if err != nil {
		return nil, err
	}
	var entries []DirEntry
	for i := 1; i+4 <= len(resp); i += 4 {
		name := fmt.Sprintf("%x", resp[i:i+4])
		e, err := ParseDirEntryName(name)
		if err != nil {
			continue
		}
		entries = append(entries, e)
	}
	SortEntriesNewestFirst(entries)
	return entries, nil
}

// ReadFile reads a file's full contents in hidReportSize-sized chunks
// until a short read signals end-of-file.
func (d *Driver) ReadFile(h Handle) ([]byte, error) {
	var out []byte
	for {
		resp, err := d.sendReport(fsRead, []byte{byte(h), byte(h >> 8)})
		if err != nil {
			return nil, err
		}
		if len(resp) < 1 {
			break
		}
		chunk := resp[1:]
		out = append(out, chunk...)
		if len(chunk) < hidReportSize-1 {
			break
		}
	}
	return out, nil
}

func (d *Driver) closeFile(h Handle) error {
	_, err := d.sendReport(fsClose, []byte{byte(h), byte(h >> 8)})
	return err
}

func (d *Driver) Read(addr uint32, buf []byte) error {
	return dc.NewError("Read", dc.KindUnsupported, nil)
}

func (d *Driver) Dump(buf *[]byte) error {
	return dc.NewError("Dump", dc.KindUnsupported, nil)
}

// Foreach opens DiveDirectory, reads each dive file newest-first, and
// forwards it to cb.
func (d *Driver) Foreach(listener dc.Listener, cb dc.DiveCallback) error {
	if listener == nil {
		listener = dc.NopListener{}
	}
	dirHandle, err := d.OpenFile(DiveDirectory)
	if err != nil {
		return err
	}
	defer d.closeFile(dirHandle)

	entries, err := d.Readdir(dirHandle)
	if err != nil {
		return err
	}
	for i, e := range entries {
		path := DiveDirectory + "/" + e.Name
		fh, err := d.OpenFile(path)
		if err != nil {
			return err
		}
		blob, err := d.ReadFile(fh)
		d.closeFile(fh)
		if err != nil {
			return err
		}
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
