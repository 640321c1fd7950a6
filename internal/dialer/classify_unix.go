//go:build unix

package dialer

import (
	"errors"

	"golang.org/x/sys/unix"
)

func classifyErrno(err error) (Failure, bool) {
	switch {
	case errors.Is(err, unix.ECONNREFUSED):
		return FailureRefused, true
	case errors.Is(err, unix.EHOSTUNREACH), errors.Is(err, unix.EHOSTDOWN):
		return FailureHostUnreachable, true
	case errors.Is(err, unix.ENETUNREACH), errors.Is(err, unix.ENETDOWN):
		return FailureNetworkUnreachable, true
	case errors.Is(err, unix.EACCES), errors.Is(err, unix.EPERM):
		return FailureNotAllowed, true
	default:
		return FailureOther, false
	}
}
