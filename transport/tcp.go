// Package transport provides the dialers a port reaches a camera through.
package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"
)

// DefaultTCPPort is where PTZ cameras commonly accept VISCA over TCP.
const DefaultTCPPort = 5678

type TCP struct {
	Host string
	// Port defaults to DefaultTCPPort.
	Port int
	// Timeout bounds connection establishment; zero leaves it to ctx.
	Timeout time.Duration
}

func (t TCP) Address() string {
	port := t.Port
	if port == 0 {
		port = DefaultTCPPort
	}
	return net.JoinHostPort(t.Host, strconv.Itoa(port))
}

func (t TCP) String() string {
	return "tcp://" + t.Address()
}

func (t TCP) Dial(ctx context.Context) (io.ReadWriteCloser, error) {
	d := net.Dialer{Timeout: t.Timeout, KeepAlive: 30 * time.Second}
	conn, err := d.DialContext(ctx, "tcp", t.Address())
	if err != nil {
		return nil, fmt.Errorf("could not dial %s: %w", t.Address(), err)
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		// replies are tiny and latency matters more than throughput
		_ = tcp.SetNoDelay(true)
	}
	return conn, nil
}
