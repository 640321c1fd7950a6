package proxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
)

// ListenTCP listens on addr and applies keepAlive to every accepted TCP
// connection.
func ListenTCP(ctx context.Context, network, addr string, keepAlive net.KeepAliveConfig) (net.Listener, error) {
	lc := net.ListenConfig{}

	ln, err := lc.Listen(ctx, network, addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s %s: %w", network, addr, err)
	}
	return &keepAliveListener{Listener: ln, keepAlive: keepAlive}, nil
}

type keepAliveListener struct {
	net.Listener
	keepAlive net.KeepAliveConfig
}

func (l *keepAliveListener) Accept() (net.Conn, error) {
	conn, err := l.Listener.Accept()
	if err != nil {
		return nil, err
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetKeepAliveConfig(l.keepAlive)
	}
	return conn, nil
}

type closeWriter interface {
	CloseWrite() error
}

// closeWrite half-closes c, or reports errors.ErrUnsupported when c cannot
// shut down only its write side.
func closeWrite(c net.Conn) error {
	if cw, ok := c.(closeWriter); ok {
		return cw.CloseWrite()
	}
	return errors.ErrUnsupported
}

// onceCloseConn closes the underlying connection exactly once no matter how
// many paths race to close it.
type onceCloseConn struct {
	net.Conn
	once sync.Once
	err  error
}

func (c *onceCloseConn) Close() error {
	c.once.Do(func() {
		c.err = c.Conn.Close()
	})
	return c.err
}

func (c *onceCloseConn) CloseWrite() error {
	return closeWrite(c.Conn)
}
