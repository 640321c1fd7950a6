package socks5

import (
	"errors"
	"fmt"
	"io"

	txsocks5 "github.com/txthinking/socks5"
)

// AuthPolicy selects the methods a server accepts.
//
// With RequireAuth unset only MethodNoAuth is accepted. With RequireAuth set
// MethodUsernamePassword is accepted, and MethodNoAuth as well when
// AllowNoAuthFallback is set.
type AuthPolicy struct {
	RequireAuth         bool
	AllowNoAuthFallback bool
}

// Supports reports whether method is acceptable under p.
func (p AuthPolicy) Supports(method byte) bool {
	switch method {
	case MethodNoAuth:
		return !p.RequireAuth || p.AllowNoAuthFallback
	case MethodUsernamePassword:
		return p.RequireAuth
	default:
		return false
	}
}

// SelectMethod returns the first method in offered, in client order, that p
// supports, or MethodNoAcceptable.
func SelectMethod(offered []byte, p AuthPolicy) byte {
	for _, m := range offered {
		if p.Supports(m) {
			return m
		}
	}
	return MethodNoAcceptable
}

// NegotiateMethod reads the client's method request, selects a method and
// writes the method reply. When nothing is acceptable the 0xFF reply is still
// written and ErrNoAcceptableMethod is returned.
func NegotiateMethod(rw io.ReadWriter, p AuthPolicy) (byte, error) {
	offered, err := ReadMethodRequest(rw)
	if err != nil {
		return MethodNoAcceptable, fmt.Errorf("method request: %w", err)
	}

	method := SelectMethod(offered, p)
	if _, err := txsocks5.NewNegotiationReply(method).WriteTo(rw); err != nil {
		return MethodNoAcceptable, fmt.Errorf("method reply: %w", err)
	}
	if method == MethodNoAcceptable {
		return method, fmt.Errorf("%w: offered %x", ErrNoAcceptableMethod, offered)
	}
	return method, nil
}

// Authenticate runs the RFC 1929 exchange after MethodUsernamePassword was
// selected and returns the authenticated username. A nil checker rejects
// everyone.
func Authenticate(rw io.ReadWriter, checker CredentialChecker) (string, error) {
	creds, err := ReadSubAuth(rw)
	if err != nil {
		if errors.Is(err, ErrBadVersion) {
			_, _ = txsocks5.NewUserPassNegotiationReply(UserPassStatusFailure).WriteTo(rw)
		}
		return "", fmt.Errorf("username/password request: %w", err)
	}

	user := string(creds.Username)
	ok := checker != nil && checker.CheckCredentials(user, string(creds.Password))

	if _, err := txsocks5.NewUserPassNegotiationReply(subAuthStatus(ok)).WriteTo(rw); err != nil {
		return "", fmt.Errorf("username/password reply: %w", err)
	}
	if !ok {
		return "", fmt.Errorf("%w: user %q", ErrAuthFailed, user)
	}
	return user, nil
}

// ServerNegotiate performs method negotiation and, when selected, the
// username/password exchange. It returns the selected method.
func ServerNegotiate(rw io.ReadWriter, p AuthPolicy, checker CredentialChecker) (byte, error) {
	method, err := NegotiateMethod(rw, p)
	if err != nil {
		return method, err
	}
	if method == MethodUsernamePassword {
		if _, err := Authenticate(rw, checker); err != nil {
			return method, err
		}
	}
	return method, nil
}
