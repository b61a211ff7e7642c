package dc

import "time"

// Driver is the contract every family/* device driver implements (spec
// §4.4). A Driver instance is not shared across goroutines: the caller owns
// exclusive access between Open and Close (spec §5).
type Driver interface {
	SetFingerprint(fp []byte)
	Read(addr uint32, buf []byte) error
	Write(addr uint32, buf []byte) error
	Dump(buf *[]byte) error
	Foreach(listener Listener, cb DiveCallback) error
	Timesync(t time.Time) error
	Close() error
}

// OpenError reports why Open failed, before a Driver value even exists.
type OpenError struct {
	Kind ErrorKind
	Err  error
}

func (e *OpenError) Error() string { return NewError("open", e.Kind, e.Err).Error() }
func (e *OpenError) Unwrap() error { return e.Err }

// DriverBase embeds the state every family driver needs regardless of
// protocol shape (spec §3 "Device state"): the fingerprint watermark and a
// Context for logging/cancellation. Family drivers embed this and add their
// own transport handle, layout descriptor and identification cache.
type DriverBase struct {
	Ctx         *Context
	Watermark   []byte
	SequenceNum uint32
	Simulation  bool
	Magic       uint32
}

func NewDriverBase(ctx *Context) DriverBase {
	return DriverBase{Ctx: ctx}
}

func (d *DriverBase) SetFingerprint(fp []byte) {
	if len(fp) == 0 {
		d.Watermark = nil
		return
	}
	d.Watermark = append([]byte(nil), fp...)
}

// MatchesWatermark reports whether fp equals the stored watermark exactly
// (fingerprints are opaque and compared byte-for-byte, spec §3).
func (d *DriverBase) MatchesWatermark(fp []byte) bool {
	if len(d.Watermark) == 0 || len(d.Watermark) != len(fp) {
		return false
	}
	for i := range fp {
		if fp[i] != d.Watermark[i] {
			return false
		}
	}
	return true
}

// MaxRetries is the family-specific retry bound referenced throughout
// spec §4.4.1; each family sets its own constant (4, 9, ...) rather than
// sharing one global.
type MaxRetries int
