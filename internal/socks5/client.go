package socks5

import (
	"errors"
	"fmt"
	"io"

	txsocks5 "github.com/txthinking/socks5"
)

// Auth holds optional client credentials for an upstream SOCKS5 server.
type Auth struct {
	Username string
	Password string
}

var errAuthRequired = errors.New("socks5: server requires username/password")

// ClientDial negotiates with a SOCKS5 server on rw and issues a CONNECT for
// address. A non-success reply is returned as a ReplyError.
func ClientDial(rw io.ReadWriter, auth Auth, address string) error {
	if err := ClientNegotiate(rw, auth); err != nil {
		return err
	}
	return ClientConnect(rw, address)
}

// ClientNegotiate offers no-auth, plus username/password when auth has a
// username, and completes whichever method the server selects.
func ClientNegotiate(rw io.ReadWriter, auth Auth) error {
	methods := []byte{MethodNoAuth}
	if auth.Username != "" {
		methods = append(methods, MethodUsernamePassword)
	}
	if _, err := txsocks5.NewNegotiationRequest(methods).WriteTo(rw); err != nil {
		return fmt.Errorf("write negotiation: %w", err)
	}

	neg, err := txsocks5.NewNegotiationReplyFrom(rw)
	if err != nil {
		return fmt.Errorf("read negotiation: %w", err)
	}

	switch neg.Method {
	case MethodNoAuth:
		return nil
	case MethodUsernamePassword:
		if auth.Username == "" {
			return errAuthRequired
		}
		if _, err := txsocks5.NewUserPassNegotiationRequest([]byte(auth.Username), []byte(auth.Password)).WriteTo(rw); err != nil {
			return fmt.Errorf("write userpass: %w", err)
		}
		rep, err := txsocks5.NewUserPassNegotiationReplyFrom(rw)
		if err != nil {
			return fmt.Errorf("read userpass: %w", err)
		}
		if rep.Status != UserPassStatusSuccess {
			return ErrAuthFailed
		}
		return nil
	case MethodNoAcceptable:
		return ErrNoAcceptableMethod
	default:
		return fmt.Errorf("socks5: unsupported negotiation method %#02x", neg.Method)
	}
}

// ClientConnect sends a CONNECT request for address and reads the reply.
func ClientConnect(rw io.ReadWriter, address string) error {
	dst, err := ParseAddress(address)
	if err != nil {
		return fmt.Errorf("parse address %q: %w", address, err)
	}
	atyp, addr, port, err := dst.wireFields()
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	if _, err := txsocks5.NewRequest(txsocks5.CmdConnect, atyp, addr, port).WriteTo(rw); err != nil {
		return fmt.Errorf("write request: %w", err)
	}

	rep, err := txsocks5.NewReplyFrom(rw)
	if err != nil {
		return fmt.Errorf("read reply: %w", err)
	}
	if rep.Rep != RepSucceeded {
		return ReplyError(rep.Rep)
	}
	return nil
}
