package proxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/die-net/socksd/internal/socks5"
)

// ErrMaxLifetime is the cause recorded when a connection outlives
// Config.MaxConnectionLifetime.
var ErrMaxLifetime = errors.New("connection exceeded max lifetime")

// SOCKS5Server serves SOCKS5 CONNECT requests.
type SOCKS5Server struct {
	ctx context.Context
	cfg Config
	log zerolog.Logger

	wg     sync.WaitGroup
	active atomic.Int64
}

// NewSOCKS5Server returns a server whose connections are all canceled when
// ctx ends.
func NewSOCKS5Server(ctx context.Context, cfg Config, log zerolog.Logger) *SOCKS5Server {
	if ctx == nil {
		ctx = context.Background()
	}
	return &SOCKS5Server{ctx: ctx, cfg: cfg, log: log}
}

// Serve accepts connections on ln until ln is closed, which returns nil.
// Temporary accept errors are retried with backoff.
func (s *SOCKS5Server) Serve(ln net.Listener) error {
	var tempDelay time.Duration
	for {
		c, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Temporary() { //nolint:staticcheck // Same accept backoff as net/http.
				if tempDelay == 0 {
					tempDelay = 5 * time.Millisecond
				} else {
					tempDelay = min(2*tempDelay, time.Second)
				}
				s.log.Warn().Err(err).Dur("retry", tempDelay).Msg("accept failed")
				time.Sleep(tempDelay)
				continue
			}
			return fmt.Errorf("accept: %w", err)
		}
		tempDelay = 0

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(c)
		}()
	}
}

// Wait blocks until every accepted connection has been closed.
func (s *SOCKS5Server) Wait() {
	s.wg.Wait()
}

// Active returns the number of connections currently being served.
func (s *SOCKS5Server) Active() int64 {
	return s.active.Load()
}

// session is the state of one client connection. It is owned by a single
// goroutine.
type session struct {
	cfg   *Config
	conn  *onceCloseConn
	log   zerolog.Logger
	state ConnectionState

	// awaitingReply is set once a CONNECT request is accepted and cleared
	// when its reply is written.
	awaitingReply bool
}

func (s *session) setState(next ConnectionState) {
	if !s.state.CanTransition(next) {
		panic(fmt.Sprintf("invalid connection state transition %s -> %s", s.state, next))
	}
	s.state = next
}

func (s *SOCKS5Server) handleConn(c net.Conn) {
	s.active.Add(1)
	defer s.active.Add(-1)

	sess := &session{
		cfg:  &s.cfg,
		conn: &onceCloseConn{Conn: c},
		log:  s.log.With().Str("conn", uuid.NewString()).Stringer("client", c.RemoteAddr()).Logger(),
	}
	defer sess.conn.Close()

	defer func() {
		if r := recover(); r != nil {
			if sess.awaitingReply {
				if d := s.cfg.NegotiationTimeout; d > 0 {
					_ = sess.conn.SetWriteDeadline(time.Now().Add(d))
				}
				sess.reply(socks5.RepGeneralFailure, socks5.Address{})
			}
			sess.log.Error().Interface("panic", r).Stringer("state", sess.state).Bytes("stack", debug.Stack()).Msg("connection handler panicked")
		}
	}()

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	if s.cfg.MaxConnectionLifetime > 0 {
		ctx, cancel = context.WithTimeoutCause(ctx, s.cfg.MaxConnectionLifetime, ErrMaxLifetime)
		defer cancel()
	}

	stop := context.AfterFunc(ctx, func() {
		_ = sess.conn.Close()
	})
	defer stop()

	start := time.Now()
	err := sess.serve(ctx)
	state := sess.state
	sess.setState(StateClosed)

	ev := sess.log.Debug()
	if err != nil {
		if cause := context.Cause(ctx); cause != nil && !errors.Is(err, cause) {
			err = fmt.Errorf("%w (%w)", err, cause)
		}
		ev = ev.Err(err)
	}
	ev.Stringer("state", state).Dur("duration", time.Since(start)).Msg("connection closed")
}

func (s *session) serve(ctx context.Context) error {
	if d := s.cfg.NegotiationTimeout; d > 0 {
		_ = s.conn.SetDeadline(time.Now().Add(d))
	}

	method, err := socks5.NegotiateMethod(s.conn, s.cfg.Auth)
	if err != nil {
		return err
	}

	if method == socks5.MethodUsernamePassword {
		s.setState(StateAwaitingSubAuth)
		user, err := socks5.Authenticate(s.conn, s.cfg.Credentials)
		if err != nil {
			return err
		}
		s.log = s.log.With().Str("user", user).Logger()
	}

	s.setState(StateAwaitingRequest)
	up, err := s.handleRequest(ctx)
	if err != nil {
		return err
	}

	s.setState(StateRelaying)
	relay := NewRelay(s.conn, up, s.cfg.IdleTimeout)
	err = relay.Run(ctx)
	stats := relay.Stats()
	ev := s.log.Debug()
	if isRelayIOError(err) {
		ev = s.log.Warn().Err(err)
	}
	ev.Int64("sent", stats.ClientToUpstream).
		Int64("received", stats.UpstreamToClient).
		Msg("relay finished")
	if err != nil {
		return fmt.Errorf("relay: %w", err)
	}
	return nil
}

// isRelayIOError reports whether a relay ended on a socket error rather than
// a timeout or shutdown.
func isRelayIOError(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrIdleTimeout), errors.Is(err, ErrMaxLifetime), errors.Is(err, context.Canceled):
		return false
	default:
		return true
	}
}
