// Package dialer provides the outbound side of the proxy.
//
// Dialers implement a small interface (DialContext) and are used by the
// SOCKS5 server to establish the outbound connection for a CONNECT request,
// either directly or through an upstream proxy (HTTP CONNECT, SOCKS5, or SSH).
//
// The direct dialer resolves names itself through a Resolver, which may cache
// results, and enforces the destination deny list. Classify maps the errors
// any dialer returns onto the small set of outcomes a SOCKS5 reply can carry.
package dialer
