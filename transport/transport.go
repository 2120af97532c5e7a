// Package transport connects a client to a service domain.
//
// Two transports are supported: a socket (unix or tcp) dialed with Dial, and
// a child process started with StartProcess whose stdin carries requests and
// whose stdout carries responses. Both yield a Stream over which ipc frames
// are exchanged.
package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"time"
)

// Stream is a bidirectional byte stream to a service domain.
type Stream interface {
	io.Reader
	io.Writer
	io.Closer
}

// deadliner is implemented by streams that honor read/write deadlines.
type deadliner interface {
	SetDeadline(t time.Time) error
}

// SetDeadline applies t to s if the stream supports deadlines. It reports
// whether the deadline was applied.
func SetDeadline(s Stream, t time.Time) (bool, error) {
	d, ok := s.(deadliner)
	if !ok {
		return false, nil
	}
	return true, d.SetDeadline(t)
}

// Network names accepted in addresses.
const (
	NetworkUnix = "unix"
	NetworkTCP  = "tcp"
)

// ParseAddr splits an address of the form "unix:/path/to.sock" or
// "tcp:host:port" into a network and a dial address.
func ParseAddr(addr string) (network, address string, err error) {
	network, address, ok := strings.Cut(addr, ":")
	if !ok || address == "" {
		return "", "", fmt.Errorf("invalid address %q: expected unix:<path> or tcp:<host:port>", addr)
	}
	switch network {
	case NetworkUnix:
		return network, address, nil
	case NetworkTCP:
		if _, _, err := net.SplitHostPort(address); err != nil {
			return "", "", fmt.Errorf("invalid tcp address %q: %w", address, err)
		}
		return network, address, nil
	default:
		return "", "", fmt.Errorf("unsupported network %q in address %q", network, addr)
	}
}

// Dial connects to a service listening on addr.
func Dial(ctx context.Context, addr string) (Stream, error) {
	network, address, err := ParseAddr(addr)
	if err != nil {
		return nil, err
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, network, address)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", addr, err)
	}
	return conn, nil
}

// Listen opens a listener for a service on addr.
func Listen(ctx context.Context, addr string) (net.Listener, error) {
	network, address, err := ParseAddr(addr)
	if err != nil {
		return nil, err
	}
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, network, address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return ln, nil
}
