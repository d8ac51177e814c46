package nattraversal

import "time"

// Negotiation defaults.
const (
	// NegotiationTimeout bounds gateway location plus mapping creation as a whole.
	NegotiationTimeout = 30 * time.Second
	// DefaultLease is the lifetime requested for a mapping. It is never renewed.
	DefaultLease = time.Hour

	// natpmpTimeout bounds a single NAT-PMP request including the library's retransmits.
	natpmpTimeout = 5 * time.Second

	mappingDescription = "nattransfer"
)

// Gateway protocol names.
const (
	ProtocolUPnP   = "upnp"
	ProtocolNATPMP = "natpmp"
)
