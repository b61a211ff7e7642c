// Capture export: a failing transport/fake exchange can be dumped as a
// Saleae Logic capture file for offline inspection, rather than just a hex
// dump in a test failure message.
package telemetry

import (
	"io"
	"time"

	"github.com/soypat/saleae"
)

// CaptureSample is one recorded transport I/O event: a byte slice written
// to, or read from, the device at a point in time.
type CaptureSample struct {
	At   time.Time
	Data []byte
	Tx   bool // true: host->device write, false: device->host read
}

// ExportCapture renders samples as a single synthetic digital channel: each
// byte's bits become level transitions at sampleRateHz, in MSB-first order,
// with writes and reads packed back-to-back onto the one channel (capture
// files do not need a second channel to be useful for debugging a scripted
// fake transport's exchange order).
func ExportCapture(w io.Writer, samples []CaptureSample, sampleRateHz float64) error {
	digital := saleae.NewDigital(sampleRateHz, false)
	t := 0.0
	for _, s := range samples {
		for _, b := range s.Data {
			for bit := 7; bit >= 0; bit-- {
				level := (b>>uint(bit))&1 == 1
				digital.AddTransition(t, level)
				t += 1.0 / sampleRateHz
			}
		}
	}
	return digital.WriteTo(w)
}
