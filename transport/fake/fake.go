// Package fake provides a scripted in-memory transport.Stream for driver
// unit tests. Every Write is recorded in Written without being checked;
// reads are served from the scripted Exchanges in order, so tests can
// assert on what was sent and script retry behaviour.
//
// The shape (a duplex byte-oriented endpoint fed by a pre-scripted
// exchange, with an explicit Close) is modeled on how the teacher's
// go.mod dependency github.com/soypat/seqs exposes a socket endpoint over a
// simulated link; seqs itself is a full user-space TCP/IP stack and would
// require driving a TCP handshake to get a byte stream, which is more
// machinery than a scripted request/response fake needs. Only the shape is
// borrowed here — seqs is not imported and is not in go.mod (see
// DESIGN.md's dropped-dependency justification).
package fake

import (
	"errors"
	"time"

	"github.com/libdivecomputer/godivecomputer/transport"
)

// Exchange is one scripted reply. If Reply is nil, the read that reaches it
// consumes the exchange and returns ErrTimeout at once (simulating a device
// that never answers, to exercise retry/timeout paths).
type Exchange struct {
	Reply []byte
	// CorruptFirst, if set, makes the first read of this exchange return
	// Reply with its last byte inverted; the following read returns Reply
	// unchanged. Used to script "one retry then success".
	CorruptFirst bool
}

var ErrUnscripted = errors.New("fake: unscripted read/write")
var ErrTimeout = errors.New("fake: timeout")

// Stream is a scripted transport.Stream.
type Stream struct {
	Exchanges []Exchange
	Written   [][]byte

	timeout time.Duration
	idx     int
	pending []byte // bytes of the current reply not yet consumed
	attempt int     // read attempts made against the current exchange
	closed  bool
}

var _ transport.Stream = (*Stream)(nil)

func New(exchanges []Exchange) *Stream {
	return &Stream{Exchanges: exchanges}
}

func (s *Stream) Configure(baud, dataBits int, parity transport.Parity, stopBits transport.StopBits, flow transport.Flow) error {
	return nil
}

func (s *Stream) SetTimeout(d time.Duration) error {
	s.timeout = d
	return nil
}

func (s *Stream) Purge(dir transport.Direction) error {
	s.pending = nil
	return nil
}

func (s *Stream) Write(buf []byte) (int, error) {
	cp := append([]byte(nil), buf...)
	s.Written = append(s.Written, cp)
	return len(buf), nil
}

func (s *Stream) Read(buf []byte) (int, error) {
	if s.pending == nil {
		if s.idx >= len(s.Exchanges) {
			return 0, ErrUnscripted
		}
		ex := s.Exchanges[s.idx]
		if ex.CorruptFirst && s.attempt == 0 {
			s.attempt++
			if len(ex.Reply) == 0 {
				return 0, ErrTimeout
			}
			corrupt := append([]byte(nil), ex.Reply...)
			corrupt[len(corrupt)-1] ^= 0xFF
			s.pending = corrupt
		} else {
			if ex.Reply == nil {
				s.idx++
				s.attempt = 0
				return 0, ErrTimeout
			}
			s.pending = append([]byte(nil), ex.Reply...)
			s.idx++
			s.attempt = 0
		}
	}
	n := copy(buf, s.pending)
	s.pending = s.pending[n:]
	if len(s.pending) == 0 {
		s.pending = nil
	}
	return n, nil
}

func (s *Stream) Sleep(d time.Duration) {}

func (s *Stream) SetBreak(on bool) error { return nil }
func (s *Stream) SetDTR(on bool) error   { return nil }
func (s *Stream) SetRTS(on bool) error   { return nil }

func (s *Stream) Close() error {
	s.closed = true
	return nil
}

func (s *Stream) Closed() bool { return s.closed }
