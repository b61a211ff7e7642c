// Package ringbuf implements the modular index arithmetic and the
// paged sequential reader used to walk a device's circular memory log.
//
// The arithmetic here generalizes the fixed-modulus wraparound math the
// teacher hand-rolled for a single hardware ring (CYW43439's HCI-over-SDIO
// backplane buffer, sized BTSDIO_FWBUF_SIZE) to an arbitrary [Begin, End)
// region, since every dive-computer family has its own ring geometry.
package ringbuf

import "fmt"

// Mode disambiguates the from==to degenerate case of Distance: an empty
// ring and a completely full ring both present as from==to, and the caller
// is the only one who knows which applies.
type Mode int

const (
	// Empty treats from==to as a zero-length region.
	Empty Mode = iota
	// Full treats from==to as the whole [Begin,End) region.
	Full
)

// Layout describes a circular memory region on the device.
type Layout struct {
	Begin uint32
	End   uint32
}

func (l Layout) size() uint32 {
	return l.End - l.Begin
}

// Distance returns the non-negative forward distance in bytes required to
// walk from 'from' to 'to', modulo the ring size. When from==to, the
// result depends on mode: 0 for Empty, the full ring size for Full.
func Distance(l Layout, from, to uint32, mode Mode) uint32 {
	size := l.size()
	if size == 0 {
		return 0
	}
	if from == to {
		if mode == Full {
			return size
		}
		return 0
	}
	if to >= from {
		return to - from
	}
	return size - (from - to)
}

// Increment advances p by n bytes, wrapping at End back to Begin.
func Increment(l Layout, p, n uint32) uint32 {
	size := l.size()
	if size == 0 {
		return p
	}
	off := (p - l.Begin + n) % size
	return l.Begin + off
}

// Decrement retreats p by n bytes, wrapping at Begin back to End.
func Decrement(l Layout, p, n uint32) uint32 {
	size := l.size()
	if size == 0 {
		return p
	}
	n %= size
	off := p - l.Begin
	if off < n {
		off += size
	}
	return l.Begin + (off - n)
}

// Contains reports whether p lies within [Begin, End).
func (l Layout) Contains(p uint32) bool {
	return p >= l.Begin && p < l.End
}

func (l Layout) String() string {
	return fmt.Sprintf("[0x%08x, 0x%08x)", l.Begin, l.End)
}

// DeviceReader reads len(buf) bytes from the device starting at addr. It
// must fill buf completely or return an error; short reads are not a
// supported contract at this layer (individual transports retry short
// reads themselves, see transport.Stream).
type DeviceReader func(addr uint32, buf []byte) error

// Progress is credited exactly once per device byte actually transferred
// across the wire, even when a packet is discarded and retried upstream.
type Progress struct {
	Current uint32
	Maximum uint32
}

// Add advances Current by n, never past Maximum.
func (p *Progress) Add(n uint32) {
	p.Current += n
	if p.Current > p.Maximum {
		p.Current = p.Maximum
	}
}

// Direction selects which way a Reader walks the ring.
type Direction int

const (
	Forward Direction = iota
	Backward
)

// Reader is a sequential, page-aligned reader over a ring-buffer-backed
// device memory region. It is an owned, mutable iterator: Next mutates only
// the Reader's own fields, matching the "concurrency re-design" guidance to
// avoid the C source's pointer-threaded global-ish state.
type Reader struct {
	layout   Layout
	read     DeviceReader
	pageSize uint32
	dir      Direction
	pos      uint32 // next position to read from (Forward) or one past (Backward)
	progress *Progress
}

// NewReader constructs a Reader starting at pivot (typically the EOP
// pointer) and walking in dir. pageSize bounds the size of each underlying
// device read; progress, if non-nil, is credited with every device byte
// actually transferred.
func NewReader(layout Layout, read DeviceReader, pageSize uint32, dir Direction, pivot uint32, progress *Progress) *Reader {
	if pageSize == 0 {
		pageSize = 1
	}
	return &Reader{
		layout:   layout,
		read:     read,
		pageSize: pageSize,
		dir:      dir,
		pos:      pivot,
		progress: progress,
	}
}

// Next returns the next n bytes walking the ring in the reader's direction.
// It pages internally to pageSize-sized device reads and handles wraparound
// at the region boundary.
func (r *Reader) Next(n uint32) ([]byte, error) {
	out := make([]byte, n)
	var got uint32
	for got < n {
		chunk := n - got
		if chunk > r.pageSize {
			chunk = r.pageSize
		}
		// Each device read stops at the region boundary; the next iteration
		// continues from the other end of the ring.
		var addr uint32
		if r.dir == Forward {
			if room := r.layout.End - r.pos; chunk > room {
				chunk = room
			}
			addr = r.pos
		} else {
			if r.pos <= r.layout.Begin {
				r.pos = r.layout.End
			}
			if room := r.pos - r.layout.Begin; chunk > room {
				chunk = room
			}
			addr = r.pos - chunk
		}
		buf := make([]byte, chunk)
		if err := r.read(addr, buf); err != nil {
			return nil, err
		}
		if r.progress != nil {
			r.progress.Add(chunk)
		}
		if r.dir == Forward {
			copy(out[got:got+chunk], buf)
			r.pos = Increment(r.layout, r.pos, chunk)
		} else {
			// Backward: the chunk we just read is immediately "before" r.pos;
			// place it at the tail end of what's been assembled so far, then
			// walk pos back by chunk.
			copy(out[n-got-chunk:n-got], buf)
			r.pos = addr
		}
		got += chunk
	}
	return out, nil
}

// Pos returns the reader's current position (the address the next Next
// call will read towards).
func (r *Reader) Pos() uint32 {
	return r.pos
}
