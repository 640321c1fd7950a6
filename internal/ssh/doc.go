// Package ssh holds the pieces of an SSH client used to tunnel proxied
// connections: credential loading (key files or the agent), host key
// verification with trust on first use, and the client handshake.
//
// Connection sharing and channel dialing live in the dialer package.
package ssh
