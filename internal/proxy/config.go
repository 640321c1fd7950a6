package proxy

import (
	"net"
	"time"

	"github.com/die-net/socksd/internal/dialer"
	"github.com/die-net/socksd/internal/socks5"
)

// Config is built once at startup and shared read-only by every connection.
type Config struct {
	Auth        socks5.AuthPolicy
	Credentials socks5.CredentialChecker

	// NegotiationTimeout bounds everything before the outbound dial.
	NegotiationTimeout time.Duration
	// IdleTimeout ends a relay when no bytes move in either direction.
	IdleTimeout time.Duration
	// MaxConnectionLifetime ends a connection regardless of activity.
	MaxConnectionLifetime time.Duration

	KeepAlive net.KeepAliveConfig

	Dialer dialer.Dialer
}
