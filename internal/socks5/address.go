package socks5

import (
	"net"
	"net/netip"
	"strconv"
)

// Address is a SOCKS5 address field: exactly one of an IPv4 address, a domain
// name or an IPv6 address, plus a port. Type selects the variant.
//
// The zero Address encodes as the IPv4 address 0.0.0.0 with port 0.
type Address struct {
	Type   byte       // AddrIPv4, AddrDomain or AddrIPv6
	IP     netip.Addr // AddrIPv4 and AddrIPv6 only
	Domain string     // AddrDomain only
	Port   uint16
}

// AddressFromAddrPort returns the IPv4 or IPv6 Address for ap. IPv4-mapped IPv6
// addresses are encoded as IPv4.
func AddressFromAddrPort(ap netip.AddrPort) Address {
	ip := ap.Addr().Unmap()
	if ip.Is4() {
		return Address{Type: AddrIPv4, IP: ip, Port: ap.Port()}
	}
	if ip.Is6() {
		return Address{Type: AddrIPv6, IP: ip.WithZone(""), Port: ap.Port()}
	}
	return Address{}
}

// AddressFromNetAddr converts the local address of an outbound socket into the
// bound address of a reply. Addresses that carry no usable IP yield the zero
// Address.
func AddressFromNetAddr(a net.Addr) Address {
	if a == nil {
		return Address{}
	}
	if ta, ok := a.(*net.TCPAddr); ok {
		return AddressFromAddrPort(ta.AddrPort())
	}
	ap, err := netip.ParseAddrPort(a.String())
	if err != nil {
		return Address{}
	}
	return AddressFromAddrPort(ap)
}

// DomainAddress returns a domain name Address.
func DomainAddress(name string, port uint16) Address {
	return Address{Type: AddrDomain, Domain: name, Port: port}
}

// ParseAddress parses a host:port string, choosing the domain variant when the
// host is not an IP literal.
func ParseAddress(hostport string) (Address, error) {
	host, portStr, err := net.SplitHostPort(hostport)
	if err != nil {
		return Address{}, err
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return Address{}, protoErr(Malformed, "invalid port %q", portStr)
	}
	if ip, err := netip.ParseAddr(host); err == nil {
		return AddressFromAddrPort(netip.AddrPortFrom(ip, uint16(port))), nil
	}
	if len(host) == 0 || len(host) > 255 {
		return Address{}, protoErr(BadAddressType, "domain name length %d", len(host))
	}
	return DomainAddress(host, uint16(port)), nil
}

// Host returns the IP literal or domain name without the port.
func (a Address) Host() string {
	switch a.Type {
	case AddrDomain:
		return a.Domain
	case AddrIPv4, AddrIPv6:
		return a.IP.String()
	default:
		return netip.IPv4Unspecified().String()
	}
}

// String returns a dialable host:port.
func (a Address) String() string {
	return net.JoinHostPort(a.Host(), strconv.Itoa(int(a.Port)))
}

// wireFields returns the ATYP, address and port fields in the form the
// txsocks5 message constructors take. Domain names are returned without their
// length prefix; the constructors add it.
func (a Address) wireFields() (atyp byte, addr, port []byte, err error) {
	port = []byte{byte(a.Port >> 8), byte(a.Port)}
	switch a.Type {
	case 0:
		return AddrIPv4, []byte{0, 0, 0, 0}, port, nil
	case AddrIPv4:
		if !a.IP.Is4() {
			return 0, nil, nil, protoErr(BadAddressType, "%s is not an IPv4 address", a.IP)
		}
		return AddrIPv4, a.IP.AsSlice(), port, nil
	case AddrIPv6:
		if !a.IP.Is6() {
			return 0, nil, nil, protoErr(BadAddressType, "%s is not an IPv6 address", a.IP)
		}
		ip16 := a.IP.As16()
		return AddrIPv6, ip16[:], port, nil
	case AddrDomain:
		if len(a.Domain) == 0 || len(a.Domain) > 255 {
			return 0, nil, nil, protoErr(BadAddressType, "domain name length %d", len(a.Domain))
		}
		return AddrDomain, []byte(a.Domain), port, nil
	default:
		return 0, nil, nil, protoErr(BadAddressType, "address type %#02x", a.Type)
	}
}

func decodeAddress(c *cursor) (Address, error) {
	atyp, err := c.readByte()
	if err != nil {
		return Address{}, err
	}

	var a Address
	switch atyp {
	case AddrIPv4:
		b, err := c.next(4)
		if err != nil {
			return Address{}, err
		}
		a = Address{Type: AddrIPv4, IP: netip.AddrFrom4([4]byte(b))}
	case AddrIPv6:
		b, err := c.next(16)
		if err != nil {
			return Address{}, err
		}
		a = Address{Type: AddrIPv6, IP: netip.AddrFrom16([16]byte(b))}
	case AddrDomain:
		n, err := c.readByte()
		if err != nil {
			return Address{}, err
		}
		b, err := c.next(int(n))
		if err != nil {
			return Address{}, err
		}
		if n == 0 {
			return Address{}, protoErr(BadAddressType, "empty domain name")
		}
		a = Address{Type: AddrDomain, Domain: string(b)}
	default:
		return Address{}, protoErr(BadAddressType, "address type %#02x", atyp)
	}

	p, err := c.next(2)
	if err != nil {
		return Address{}, err
	}
	a.Port = uint16(p[0])<<8 | uint16(p[1])
	return a, nil
}
