package sshutil

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/rileyhilliard/rterm/internal/errors"
)

// Dialer opens the raw transport a session runs over.
// *net.Dialer satisfies it; tests substitute counting or failing dialers.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// NewDialer returns the default TCP dialer with the given connect timeout.
func NewDialer(timeout time.Duration) Dialer {
	return &net.Dialer{
		Timeout:   timeout,
		KeepAlive: 30 * time.Second,
	}
}

// DialTCP opens a TCP connection to address using d.
func DialTCP(ctx context.Context, d Dialer, address string) (net.Conn, error) {
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("Can't reach %s", address),
			suggestionForDialError(err))
	}
	return conn, nil
}

func suggestionForDialError(err error) string {
	errStr := err.Error()
	if strings.Contains(errStr, "connection refused") {
		return "Is SSH running on that box? Check the port with: ping <host>:<port>"
	}
	if strings.Contains(errStr, "no route to host") || strings.Contains(errStr, "network is unreachable") {
		return "Can't route to the host. Check your network connection."
	}
	if strings.Contains(errStr, "no such host") {
		return "The hostname didn't resolve. Check for typos or use an IP address."
	}
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded") {
		return "Connection timed out. Host might be offline or blocked by a firewall."
	}
	return "Make sure the host is reachable: ping <host>"
}
