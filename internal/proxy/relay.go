package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// ErrIdleTimeout ends a relay in which no bytes moved for the idle timeout.
var ErrIdleTimeout = errors.New("relay idle timeout")

// errShutdown cancels a relay that finished without a fault but could not
// half-close, so both sides are torn down together.
var errShutdown = errors.New("relay shutdown")

// RelayStats counts the bytes written in each direction.
type RelayStats struct {
	ClientToUpstream int64
	UpstreamToClient int64
}

// Relay copies bytes between a client and an upstream connection.
//
// When one source reaches EOF its destination is half-closed and the other
// direction keeps running. Both sockets are closed once both directions are
// done, on the first I/O error, when the context ends, or after IdleTimeout
// without traffic.
type Relay struct {
	client   net.Conn
	upstream net.Conn
	idle     time.Duration

	lastActive atomic.Int64
	sent       atomic.Int64
	received   atomic.Int64

	closeOnce sync.Once
}

// NewRelay returns a relay between client and upstream. An idleTimeout of 0
// disables the idle check.
func NewRelay(client, upstream net.Conn, idleTimeout time.Duration) *Relay {
	return &Relay{client: client, upstream: upstream, idle: idleTimeout}
}

// Run relays until both directions finish and returns the reason the relay
// ended early, if any: ErrIdleTimeout, the context's cause, or the first I/O
// error. Both connections are closed when Run returns.
func (r *Relay) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	stop := context.AfterFunc(ctx, func() {
		_ = r.Close()
	})
	defer stop()

	r.touch()
	if r.idle > 0 {
		go r.watchIdle(ctx, cancel)
	}

	var g errgroup.Group
	g.Go(func() error {
		return r.pipe(ctx, cancel, r.upstream, r.client, &r.sent, "client->upstream")
	})
	g.Go(func() error {
		return r.pipe(ctx, cancel, r.client, r.upstream, &r.received, "upstream->client")
	})
	err := g.Wait()
	_ = r.Close()

	if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, errShutdown) {
		return cause
	}
	return err
}

// Close closes both connections. Only the first call does anything; later
// calls return nil.
func (r *Relay) Close() error {
	var err error
	r.closeOnce.Do(func() {
		err = errors.Join(r.client.Close(), r.upstream.Close())
	})
	return err
}

// Stats returns the bytes relayed so far. It is safe to call while Run is
// in progress.
func (r *Relay) Stats() RelayStats {
	return RelayStats{ClientToUpstream: r.sent.Load(), UpstreamToClient: r.received.Load()}
}

func (r *Relay) touch() {
	r.lastActive.Store(time.Now().UnixNano())
}

// pipe copies src to dst until EOF, which half-closes dst, or the first
// error.
func (r *Relay) pipe(ctx context.Context, cancel context.CancelCauseFunc, dst, src net.Conn, written *atomic.Int64, dir string) error {
	buf := relayBuffers.Get()
	defer relayBuffers.Put(buf)

	for {
		nr, rerr := src.Read(buf)
		if nr > 0 {
			r.touch()
			nw, werr := dst.Write(buf[:nr])
			written.Add(int64(nw))
			if werr != nil {
				return abort(ctx, cancel, fmt.Errorf("%s write: %w", dir, werr))
			}
			r.touch()
		}
		if rerr == nil {
			continue
		}
		if errors.Is(rerr, io.EOF) {
			if err := closeWrite(dst); err != nil {
				cancel(errShutdown)
			}
			return nil
		}
		return abort(ctx, cancel, fmt.Errorf("%s read: %w", dir, rerr))
	}
}

// abort records err as the reason the relay ended. Once the relay is already
// ending, errors are only the fallout of closing the sockets and are dropped.
func abort(ctx context.Context, cancel context.CancelCauseFunc, err error) error {
	if ctx.Err() != nil {
		return nil
	}
	cancel(err)
	return err
}

func (r *Relay) watchIdle(ctx context.Context, cancel context.CancelCauseFunc) {
	t := time.NewTimer(r.idle)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			since := time.Since(time.Unix(0, r.lastActive.Load()))
			if since >= r.idle {
				cancel(ErrIdleTimeout)
				return
			}
			t.Reset(r.idle - since)
		}
	}
}
