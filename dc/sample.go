package dc

// SampleKind discriminates the tagged union of sample events a parser emits.
type SampleKind int

const (
	SampleTime SampleKind = iota
	SampleDepth
	SampleTemperature
	SamplePressure
	SampleGasSwitch
	SampleDeco
	SamplePPO2
	SampleEvent
	SampleCNS
	SampleRBT
	SampleBookmark
	SampleVendor
)

// DecoKind distinguishes a no-decompression-limit reading from an in-deco
// stop reading within a Sample's Deco fields.
type DecoKind int

const (
	DecoNDL DecoKind = iota
	DecoStop
)

// EventKind enumerates the vendor-agnostic marker events a parser may emit
// via SampleEvent (surfacing, gas-mix low-pressure warning, violation,
// etc.); the numeric value is vendor-specific and carried in Sample.Value.
type EventKind int

// Sample is a single decoded point in a dive profile. It is a flat struct
// with a Kind discriminant rather than an interface-per-variant, matching
// the teacher's preference for flat wire-shaped structs (HCI packet
// handling in bluetooth.go) over a deep interface hierarchy — avoids a heap
// allocation per sample in streams that can run to tens of thousands of
// points.
type Sample struct {
	Kind SampleKind

	TimeMS int64 // SampleTime

	DepthM float64 // SampleDepth
	TempC  float64 // SampleTemperature

	TankIndex int     // SamplePressure
	Bar       float64 // SamplePressure, SamplePPO2

	GasMixIndex int // SampleGasSwitch

	DecoKind       DecoKind // SampleDeco
	DecoSeconds    int      // SampleDeco: remaining NDL or stop time
	DecoStopDepthM float64  // SampleDeco

	SensorIndex int // SamplePPO2

	EventKind  EventKind // SampleEvent
	EventFlags uint32    // SampleEvent
	EventValue int32     // SampleEvent
	EventDelay int       // SampleEvent, seconds before this sample's time

	CNSFraction float64 // SampleCNS
	RBTSeconds  int     // SampleRBT

	VendorType  int    // SampleVendor
	VendorBytes []byte // SampleVendor, SampleBookmark: always the raw record bytes

	// Raw carries the window of undecoded bytes this sample was derived
	// from, so downstream tools can round-trip the binary regardless of
	// Kind (spec §4.5 "vendor data" requirement applies to every sample,
	// not just SampleVendor records).
	Raw []byte
}

// SampleSink receives decoded samples during SamplesForeach. Returning an
// error aborts the remainder of the profile; parsers never retry internally
// (spec §7).
type SampleSink func(Sample) error
