// Package proxy implements the listener side of the SOCKS5 server.
//
// SOCKS5Server accepts connections and runs one supervisor goroutine per
// client. Each supervisor walks a connection through method negotiation,
// optional username/password authentication and a single CONNECT request,
// then hands both sockets to a Relay that copies bytes in each direction
// until both sides finish, an error occurs, or the connection goes idle.
package proxy
