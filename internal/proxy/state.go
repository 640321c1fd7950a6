package proxy

import "fmt"

// ConnectionState is the position of a client connection in the SOCKS5
// exchange.
type ConnectionState int

const (
	StateAwaitingMethods ConnectionState = iota
	StateAwaitingSubAuth
	StateAwaitingRequest
	StateRelaying
	StateClosed
)

func (s ConnectionState) String() string {
	switch s {
	case StateAwaitingMethods:
		return "awaiting-methods"
	case StateAwaitingSubAuth:
		return "awaiting-subauth"
	case StateAwaitingRequest:
		return "awaiting-request"
	case StateRelaying:
		return "relaying"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// CanTransition reports whether next may follow s. Any state may close.
func (s ConnectionState) CanTransition(next ConnectionState) bool {
	if next == StateClosed {
		return s != StateClosed
	}
	switch s {
	case StateAwaitingMethods:
		return next == StateAwaitingSubAuth || next == StateAwaitingRequest
	case StateAwaitingSubAuth:
		return next == StateAwaitingRequest
	case StateAwaitingRequest:
		return next == StateRelaying
	default:
		return false
	}
}
