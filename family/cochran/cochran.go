// Package cochran implements the Cochran Commander/EMC logbook-ring
// driver: per-dive profile offsets are read out of a fixed-size logbook
// ring, and a corrupt `end_offset = 0xFFFFFFFF` entry is reconstructed via
// an explicit, toggleable RecoveryPolicy rather than a hardcoded guess
// (spec §9 Open Question).
package cochran

import (
	"time"

	"golang.org/x/exp/slices"

	"github.com/libdivecomputer/godivecomputer/dc"
	"github.com/libdivecomputer/godivecomputer/transport"
)

const maxRetries = 4

// preReadSettle is the device's documented pre-read settling delay
// (spec §4.4 "suspension points": "Cochran's 800ms pre-read settling").
const preReadSettle = 800 * time.Millisecond

const corruptEndOffset = 0xFFFFFFFF

// RecoveryPolicy selects how the driver reconstructs a logbook entry whose
// end_offset reads as the corrupt sentinel 0xFFFFFFFF (spec §9: "the
// implementation should expose these as explicit recovery policies behind
// a toggle" rather than hardcoding the field-tuned heuristic).
type RecoveryPolicy int

const (
	// RecoveryBestEffort guesses the missing end offset from the next
	// dive's start offset, or from the ring's overall EOP if this is the
	// last entry — the behavior the field heuristic actually implements.
	RecoveryBestEffort RecoveryPolicy = iota
	// RecoveryStrict treats a corrupt end_offset as fatal MalformedData
	// instead of guessing.
	RecoveryStrict
)

// LogbookEntry is one fixed-size record of the logbook ring.
type LogbookEntry struct {
	StartOffset uint32
	EndOffset   uint32 // 0xFFFFFFFF marks a corrupt/unreconstructed entry
}

const logbookEntrySize = 8

// DecodeLogbook parses the logbook ring page into entries, newest first,
// per the wire layout: 4-byte LE start offset, 4-byte LE end offset.
func DecodeLogbook(page []byte) ([]LogbookEntry, error) {
	if len(page)%logbookEntrySize != 0 {
		return nil, dc.NewError("DecodeLogbook", dc.KindMalformedData, nil)
	}
	n := len(page) / logbookEntrySize
	entries := make([]LogbookEntry, n)
	for i := 0; i < n; i++ {
		b := page[i*logbookEntrySize:]
		entries[i] = LogbookEntry{
			StartOffset: uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24,
			EndOffset:   uint32(b[4]) | uint32(b[5])<<8 | uint32(b[6])<<16 | uint32(b[7])<<24,
		}
	}
	// The logbook ring is read oldest-to-newest; sort newest-first to match
	// every other family's Foreach contract regardless of on-wire order.
	// golang.org/x/exp/slices.SortFunc takes a three-way cmp (not a bool
	// less) as of this module's pinned version.
	slices.SortFunc(entries, func(a, b LogbookEntry) int {
		switch {
		case a.StartOffset > b.StartOffset:
			return -1
		case a.StartOffset < b.StartOffset:
			return 1
		default:
			return 0
		}
	})
	return entries, nil
}

// ReconstructEndOffsets fills in any corrupt end_offset fields according
// to policy, given the ring's overall end-of-profile pointer eop. entries
// must already be ordered newest-first as DecodeLogbook returns them.
func ReconstructEndOffsets(entries []LogbookEntry, eop uint32, policy RecoveryPolicy) error {
	for i := range entries {
		if entries[i].EndOffset != corruptEndOffset {
			continue
		}
		if policy == RecoveryStrict {
			return dc.NewError("ReconstructEndOffsets", dc.KindMalformedData, nil)
		}
		if i == 0 {
			entries[i].EndOffset = eop
		} else {
			entries[i].EndOffset = entries[i-1].StartOffset
		}
	}
	return nil
}

// ProfileCapacityTracker tracks how much of the device's profile ring
// remains unoverwritten, so the driver can skip profile reconstruction
// for dives whose data has been overwritten by newer dives (spec §4.4:
// "the driver tracks a running profile_capacity_remaining counter").
type ProfileCapacityTracker struct {
	remaining int
}

func NewProfileCapacityTracker(capacity int) *ProfileCapacityTracker {
	return &ProfileCapacityTracker{remaining: capacity}
}

// Consume deducts n bytes of profile capacity for one dive and reports
// whether that dive's profile is still intact (false once capacity is
// exhausted: its bytes have been overwritten by more recent dives).
func (t *ProfileCapacityTracker) Consume(n int) bool {
	if t.remaining <= 0 {
		return false
	}
	t.remaining -= n
	return true
}

// Driver implements dc.Driver for Cochran Commander/EMC devices.
type Driver struct {
	dc.DriverBase
	transport transport.Stream
	policy    RecoveryPolicy
}

var _ dc.Driver = (*Driver)(nil)

func Open(ctx *dc.Context, t transport.Stream, policy RecoveryPolicy) (*Driver, error) {
	if err := t.Configure(9600, 8, transport.ParityNone, transport.StopBits1, transport.FlowNone); err != nil {
		return nil, &dc.OpenError{Kind: dc.KindIO, Err: err}
	}
	return &Driver{DriverBase: dc.NewDriverBase(ctx), transport: t, policy: policy}, nil
}

func (d *Driver) Close() error { return d.transport.Close() }

func (d *Driver) Timesync(time.Time) error {
	return dc.NewError("Timesync", dc.KindUnsupported, nil)
}

func (d *Driver) Write(addr uint32, buf []byte) error {
	return dc.NewError("Write", dc.KindUnsupported, nil)
}

// Read performs the documented pre-read settling delay, then reads n
// bytes starting at addr, retrying on a transport-layer failure (spec
// §4.4.1).
func (d *Driver) Read(addr uint32, buf []byte) error {
	d.transport.Sleep(preReadSettle)
	return dc.Retry(d.Ctx, maxRetries, func(int) {
		d.transport.Sleep(preReadSettle)
	}, func(int) error {
		return d.readOnce(addr, buf)
	})
}

func (d *Driver) readOnce(addr uint32, buf []byte) error {
	if d.Ctx.Cancelled() {
		return dc.NewError("Read", dc.KindCancelled, nil)
	}
	cmd := []byte{0x01, byte(addr), byte(addr >> 8), byte(addr >> 16), byte(addr >> 24), byte(len(buf))}
	if _, err := d.transport.Write(cmd); err != nil {
		return dc.NewError("Read", dc.KindIO, err)
	}
	n, err := d.transport.Read(buf)
	if err != nil {
		return dc.NewError("Read", dc.KindTimeout, err)
	}
	if n != len(buf) {
		return dc.NewError("Read", dc.KindProtocol, nil)
	}
	return nil
}

// Dump is unsupported: Cochran's ring layout has no single contiguous
// memory-dump verb, it is always accessed logbook-entry-by-entry.
func (d *Driver) Dump(buf *[]byte) error {
	return dc.NewError("Dump", dc.KindUnsupported, nil)
}

// Foreach reads the logbook ring, reconstructs any corrupt end offsets per
// d.policy, then reads and emits each dive's profile slice, skipping
// entries whose profile capacity has been overwritten.
func (d *Driver) Foreach(listener dc.Listener, cb dc.DiveCallback) error {
	if listener == nil {
		listener = dc.NopListener{}
	}
	logbook := make([]byte, 256)
	if err := d.Read(0, logbook); err != nil {
		return err
	}
	entries, err := DecodeLogbook(logbook)
	if err != nil {
		return err
	}
	const eop = 0x00FFFFFF
	if err := ReconstructEndOffsets(entries, eop, d.policy); err != nil {
		return err
	}

	tracker := NewProfileCapacityTracker(len(logbook) * 32)
	for i, e := range entries {
		if e.EndOffset < e.StartOffset {
			return dc.NewError("Foreach", dc.KindMalformedData, nil)
		}
		size := int(e.EndOffset - e.StartOffset)
		if !tracker.Consume(size) {
			d.Ctx.Warn("cochran: dive profile overwritten, skipping", "index", i)
			continue
		}
		blob := make([]byte, size)
		if err := d.Read(e.StartOffset, blob); err != nil {
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
