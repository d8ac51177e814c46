package nattraversal

import "errors"

// Failure kinds reported by location and negotiation. Callers match them with errors.Is;
// the returned error also wraps the proximate cause.
var (
	// ErrNotFound means no NAT-capable gateway answered on the local segment.
	ErrNotFound = errors.New("no gateway found")
	// ErrNoGatewayCapability means a gateway was found but cannot forward ports for this request.
	ErrNoGatewayCapability = errors.New("gateway lacks port mapping capability")
	// ErrNegotiationRejected means the gateway explicitly refused the mapping.
	ErrNegotiationRejected = errors.New("port mapping rejected by gateway")
	// ErrProtocol means the gateway answered with something that could not be understood.
	ErrProtocol = errors.New("gateway protocol error")
	// ErrTimedOut means location and negotiation did not finish before the deadline.
	ErrTimedOut = errors.New("port mapping negotiation timed out")
)
