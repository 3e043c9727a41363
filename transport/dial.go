package transport

import (
	"context"
	"net"
	"time"
)

// timeoutDialer dials with the connect timeout and returns connections that
// enforce the read and write timeouts on every operation.
type timeoutDialer struct {
	dialer   *net.Dialer
	timeouts Timeouts
}

func (d *timeoutDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	conn, err := d.dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}
	return &deadlineConn{Conn: conn, read: d.timeouts.Read, write: d.timeouts.Write}, nil
}

// deadlineConn refreshes the deadline before each read and write, so the
// timeout bounds inactivity rather than the whole exchange.
type deadlineConn struct {
	net.Conn
	read  time.Duration
	write time.Duration
}

func (c *deadlineConn) Read(p []byte) (int, error) {
	if c.read > 0 {
		if err := c.Conn.SetReadDeadline(time.Now().Add(c.read)); err != nil {
			return 0, err
		}
	}
	return c.Conn.Read(p)
}

func (c *deadlineConn) Write(p []byte) (int, error) {
	if c.write > 0 {
		if err := c.Conn.SetWriteDeadline(time.Now().Add(c.write)); err != nil {
			return 0, err
		}
	}
	return c.Conn.Write(p)
}
