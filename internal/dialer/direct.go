package dialer

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"strconv"
)

// DirectDialer connects straight to the destination. Domain names are
// resolved through the configured Resolver and each address is tried in turn
// until one connects.
type DirectDialer struct {
	cfg      Config
	resolver Resolver
}

// NewDirectDialer returns a dialer that connects to destinations itself,
// resolving names through cfg's resolver and skipping denied addresses.
func NewDirectDialer(cfg Config) *DirectDialer {
	return &DirectDialer{cfg: cfg, resolver: cfg.resolver()}
}

func (d *DirectDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	host, portStr, err := net.SplitHostPort(address)
	if err != nil {
		return nil, fmt.Errorf("dial %s %s: %w", network, address, err)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return nil, fmt.Errorf("dial %s %s: invalid port %q", network, address, portStr)
	}

	if d.cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.DialTimeout)
		defer cancel()
	}

	addrs, err := d.lookup(ctx, network, host)
	if err != nil {
		return nil, fmt.Errorf("dial %s %s: %w", network, address, err)
	}

	nd := net.Dialer{}
	var firstErr error
	for _, ip := range addrs {
		ip = ip.Unmap()
		if d.cfg.denied(ip) {
			if firstErr == nil {
				firstErr = fmt.Errorf("%s: %w", ip, ErrNotAllowed)
			}
			continue
		}

		conn, err := nd.DialContext(ctx, network, netip.AddrPortFrom(ip, uint16(port)).String())
		if err == nil {
			if tc, ok := conn.(*net.TCPConn); ok {
				_ = tc.SetKeepAliveConfig(d.cfg.KeepAlive)
			}
			return conn, nil
		}
		if firstErr == nil {
			firstErr = err
		}
		if ctx.Err() != nil {
			break
		}
	}
	return nil, fmt.Errorf("dial %s %s: %w", network, address, firstErr)
}

func (d *DirectDialer) lookup(ctx context.Context, network, host string) ([]netip.Addr, error) {
	if ip, err := netip.ParseAddr(host); err == nil {
		return []netip.Addr{ip}, nil
	}

	addrs, err := d.resolver.LookupNetIP(ctx, lookupNetwork(network), host)
	if err != nil {
		return nil, err
	}
	if len(addrs) == 0 {
		return nil, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
	}
	return addrs, nil
}

// lookupNetwork maps a dial network to the matching resolver network.
func lookupNetwork(network string) string {
	switch network {
	case "tcp4", "udp4":
		return "ip4"
	case "tcp6", "udp6":
		return "ip6"
	default:
		return "ip"
	}
}
