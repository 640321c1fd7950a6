package socks5

// Protocol versions.
const (
	Version         byte = 0x05 // SOCKS protocol version 5
	UserPassVersion byte = 0x01 // RFC 1929 sub-negotiation version
)

// Authentication methods (RFC 1928 section 3).
const (
	MethodNoAuth           byte = 0x00
	MethodGSSAPI           byte = 0x01
	MethodUsernamePassword byte = 0x02
	MethodNoAcceptable     byte = 0xFF
)

// Request commands.
const (
	CmdConnect      byte = 0x01
	CmdBind         byte = 0x02
	CmdUDPAssociate byte = 0x03
)

// Address types.
const (
	AddrIPv4   byte = 0x01 // 4 bytes
	AddrDomain byte = 0x03 // 1 length byte + name
	AddrIPv6   byte = 0x04 // 16 bytes
)

// Reply codes (RFC 1928 section 6).
const (
	RepSucceeded           byte = 0x00
	RepGeneralFailure      byte = 0x01
	RepNotAllowed          byte = 0x02 // connection not allowed by ruleset
	RepNetworkUnreachable  byte = 0x03
	RepHostUnreachable     byte = 0x04
	RepConnectionRefused   byte = 0x05
	RepTTLExpired          byte = 0x06
	RepCommandNotSupported byte = 0x07
	RepAddressNotSupported byte = 0x08
)

// Sub-negotiation status values.
const (
	UserPassStatusSuccess byte = 0x00
	UserPassStatusFailure byte = 0x01
)

// maxRequestSize is the largest possible request or reply: header, a 255 byte
// domain with its length prefix, and the port.
const maxRequestSize = 4 + 1 + 255 + 2
