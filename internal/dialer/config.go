package dialer

import (
	"net"
	"net/netip"
	"time"
)

// Config holds the settings shared by every dialer New builds.
type Config struct {
	// DialTimeout bounds DNS lookup plus TCP connect.
	DialTimeout time.Duration
	// NegotiationTimeout bounds the handshake with an upstream proxy.
	NegotiationTimeout time.Duration
	KeepAlive          net.KeepAliveConfig

	// Resolver looks up domain destinations for direct dials. Nil means
	// net.DefaultResolver.
	Resolver Resolver
	// DNSCacheTTL caches successful lookups for this long. Zero disables
	// caching.
	DNSCacheTTL time.Duration

	// Deny lists destination prefixes that must never be dialed.
	Deny []netip.Prefix

	// SSHKeyPath is "agent", a comma-separated list of key files, or empty.
	SSHKeyPath        string
	SSHKnownHostsPath string
}

func (c Config) resolver() Resolver {
	r := c.Resolver
	if r == nil {
		r = net.DefaultResolver
	}
	if c.DNSCacheTTL > 0 {
		r = NewCachingResolver(r, c.DNSCacheTTL)
	}
	return r
}

func (c Config) denied(ip netip.Addr) bool {
	ip = ip.Unmap()
	for _, p := range c.Deny {
		if p.Contains(ip) {
			return true
		}
	}
	return false
}
