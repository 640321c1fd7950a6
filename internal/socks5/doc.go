// Package socks5 implements the SOCKS5 wire protocol used by socksd.
//
// The codec functions (Decode*, Encode*) are pure: they operate on byte slices,
// never perform I/O and keep no state. The Read* helpers frame a single message
// off an io.Reader and hand the assembled bytes to the matching decoder.
//
// Method negotiation and the RFC 1929 username/password exchange live in
// negotiate.go. Client helpers used when chaining through an upstream SOCKS5
// proxy live in client.go and are built on github.com/txthinking/socks5.
package socks5
