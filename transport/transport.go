// Package transport declares the duplex byte-stream contract every device
// driver in family/* consumes. Concrete serial/USB/BLE implementations are
// an external collaborator (spec §1) and are intentionally not provided
// here; only the interface and test doubles (transport/fake) live in this
// module.
package transport

import "time"

type Parity int

const (
	ParityNone Parity = iota
	ParityEven
	ParityOdd
)

type StopBits int

const (
	StopBits1 StopBits = iota
	StopBits15
	StopBits2
)

type Flow int

const (
	FlowNone Flow = iota
	FlowHardware
	FlowSoftware
)

// Direction selects which queue Purge flushes.
type Direction int

const (
	DirectionInput Direction = iota
	DirectionOutput
	DirectionBoth
)

// Stream is the duplex byte-stream abstraction consumed by every family
// driver. The drivers in this repository configure 2400, 9600, 19200 or
// 115200 baud (0 for the HID-based EON Steel), always 8 data bits, no
// parity, 1 stop bit and no flow control.
type Stream interface {
	Configure(baud int, dataBits int, parity Parity, stopBits StopBits, flow Flow) error
	SetTimeout(d time.Duration) error // d==0 means non-blocking, d<0 means blocking forever
	Purge(dir Direction) error
	Read(buf []byte) (int, error)
	Write(buf []byte) (int, error)
	Sleep(d time.Duration)
	SetBreak(on bool) error
	SetDTR(on bool) error
	SetRTS(on bool) error
	Close() error
}

// Packet wraps a Stream for transports that frame logical packets below the
// byte-stream layer (BLE GATT notifications, USB HID reports). Drivers for
// framed transports open one of these instead of using Stream.Read/Write
// directly so that request/response pairs are never interleaved.
type Packet interface {
	// PacketOpen configures the maximum transmit unit in each direction and
	// returns a packet-oriented read/write pair layered over the Stream.
	PacketOpen(mtuIn, mtuOut int) (PacketStream, error)
}

// PacketStream exchanges whole logical packets, reassembling fragments
// delivered by the underlying framed transport.
type PacketStream interface {
	ReadPacket() ([]byte, error)
	WritePacket(b []byte) error
	Close() error
}
