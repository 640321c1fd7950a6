package proxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/die-net/socksd/internal/dialer"
	"github.com/die-net/socksd/internal/socks5"
)

var errCommandNotSupported = errors.New("command not supported")

// handleRequest reads the client's request, dials the destination and writes
// exactly one reply. On success the upstream connection is returned and the
// negotiation deadline has been cleared.
func (s *session) handleRequest(ctx context.Context) (net.Conn, error) {
	req, err := socks5.ReadRequest(s.conn)
	if err != nil {
		// Once the header is known, the client gets the closest reply.
		switch {
		case req != nil && req.Cmd != socks5.CmdConnect:
			s.reply(socks5.RepCommandNotSupported, socks5.Address{})
		case errors.Is(err, socks5.ErrBadAddressType):
			s.reply(socks5.RepAddressNotSupported, socks5.Address{})
		}
		return nil, fmt.Errorf("request: %w", err)
	}
	if req.Cmd != socks5.CmdConnect {
		s.reply(socks5.RepCommandNotSupported, socks5.Address{})
		return nil, fmt.Errorf("%w: %#02x", errCommandNotSupported, req.Cmd)
	}

	// The dial has its own timeout.
	_ = s.conn.SetDeadline(time.Time{})

	s.awaitingReply = true
	dst := req.Dst.String()
	s.log = s.log.With().Str("dst", dst).Logger()

	up, err := s.cfg.Dialer.DialContext(ctx, "tcp", dst)
	if err != nil {
		rep := replyForDialError(err)
		s.reply(rep, socks5.Address{})
		return nil, fmt.Errorf("connect (reply %#02x): %w", rep, err)
	}

	if d := s.cfg.NegotiationTimeout; d > 0 {
		_ = s.conn.SetWriteDeadline(time.Now().Add(d))
	}
	s.awaitingReply = false
	if err := socks5.WriteReply(s.conn, socks5.RepSucceeded, socks5.AddressFromNetAddr(up.LocalAddr())); err != nil {
		_ = up.Close()
		return nil, err
	}
	_ = s.conn.SetWriteDeadline(time.Time{})

	return up, nil
}

// reply writes a reply and ignores write errors; the connection is about to
// close anyway.
func (s *session) reply(rep byte, bnd socks5.Address) {
	s.awaitingReply = false
	if err := socks5.WriteReply(s.conn, rep, bnd); err != nil {
		s.log.Debug().Err(err).Msg("reply failed")
	}
}

// replyForDialError picks the reply code for a failed dial. A chained SOCKS5
// upstream's own reply code is passed through unchanged.
func replyForDialError(err error) byte {
	var rerr socks5.ReplyError
	if errors.As(err, &rerr) && byte(rerr) != socks5.RepSucceeded {
		return byte(rerr)
	}

	switch dialer.Classify(err) {
	case dialer.FailureRefused:
		return socks5.RepConnectionRefused
	case dialer.FailureHostUnreachable:
		return socks5.RepHostUnreachable
	case dialer.FailureNetworkUnreachable:
		return socks5.RepNetworkUnreachable
	case dialer.FailureNotAllowed:
		return socks5.RepNotAllowed
	default:
		return socks5.RepGeneralFailure
	}
}
