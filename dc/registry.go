package dc

// Family is a closed sum type over the vendor families this repository
// knows how to open, modeled as the design notes (spec §9) direct: avoid
// runtime type-ids, represent per-family model constants as values of a
// tagged sum type rather than an open interface registry keyed by string.
//
// Each family's own package defines its Model constants (e.g.
// suunto.ModelVyper, oceanic.ModelF10); Family only tags which one is active so
// a Descriptor table can be indexed without reflection.
type Family int

const (
	FamilySuunto Family = iota
	FamilyCobalt
	FamilyMaresPuck
	FamilyOceanic
	FamilyDiverite
	FamilySeac
	FamilyCochran
	FamilyShearwater
	FamilyMaresGenius
	FamilyEONSteel
)

func (f Family) String() string {
	switch f {
	case FamilySuunto:
		return "suunto"
	case FamilyCobalt:
		return "cobalt"
	case FamilyMaresPuck:
		return "marespuck"
	case FamilyOceanic:
		return "oceanic"
	case FamilyDiverite:
		return "diverite"
	case FamilySeac:
		return "seac"
	case FamilyCochran:
		return "cochran"
	case FamilyShearwater:
		return "shearwater"
	case FamilyMaresGenius:
		return "maresgenius"
	case FamilyEONSteel:
		return "eonsteel"
	default:
		return "unknown"
	}
}

// Descriptor is the layout-descriptor-as-data pattern of spec §9: per-family
// constant records (ring geometry, header size, fingerprint offset, packet
// size, baud rate) as data rather than per-model code branches. This
// package defines the record type only; it holds no table of descriptors.
type Descriptor struct {
	Family          Family
	Model           int
	Name            string
	HeaderSize      int
	FooterSize      int
	FingerprintOff  int
	FingerprintLen  int
	PacketSize      int
	Baud            int
	RingBegin       uint32
	RingEnd         uint32
	EOPPointerAddr  uint32
}

// FamilyOpener constructs a Driver bound to transport t, having already
// performed the open/identify handshake (spec §4.4.5). No family package
// registers an opener of this type, and cmd/dcdownload keeps its own
// (empty) table with its own opener type.
type FamilyOpener func(ctx *Context, modelHint int) (Driver, error)
