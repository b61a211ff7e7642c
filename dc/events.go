package dc

import "github.com/libdivecomputer/godivecomputer/ringbuf"

// Progress reuses ringbuf's {Current,Maximum} shape as the produced
// progress event payload: both fields are monotonic, and Maximum may grow
// as more work is discovered (e.g. the driver learns of more dives midway
// through a ring walk).
type Progress = ringbuf.Progress

// DeviceInfo identifies the physical unit; emitted exactly once per Foreach
// invocation, before the first dive.
type DeviceInfo struct {
	Model    string
	Firmware uint32
	Serial   uint32
}

// ClockEvent calibrates device-relative dive timestamps against host time,
// emitted for devices whose dives are logged relative to a free-running
// on-device clock (spec §6).
type ClockEvent struct {
	DeviceTime int64 // device's own clock, seconds since its epoch
	SystemTime int64 // host's corresponding wall-clock time, unix seconds
}

// Listener receives the chronologically ordered event stream a Driver
// produces during Foreach. Implementations must not retain slices passed to
// OnVendor beyond the call (see Driver.Foreach ownership rules).
type Listener interface {
	OnWaiting()
	OnProgress(Progress)
	OnDeviceInfo(DeviceInfo)
	OnClock(ClockEvent)
	OnVendor(b []byte)
}

// NopListener implements Listener with no-ops, useful as an embeddable base
// for listeners that only care about a subset of events.
type NopListener struct{}

func (NopListener) OnWaiting()              {}
func (NopListener) OnProgress(Progress)     {}
func (NopListener) OnDeviceInfo(DeviceInfo) {}
func (NopListener) OnClock(ClockEvent)      {}
func (NopListener) OnVendor([]byte)         {}

// DiveCallback is invoked once per downloaded dive, newest first. Returning
// false stops iteration immediately, same as a fingerprint match. The blob
// and fingerprint slices are only valid for the duration of the call; the
// fingerprint is always a subslice of blob, so a callback that copies blob
// need not separately copy fingerprint.
type DiveCallback func(blob, fingerprint []byte) bool
