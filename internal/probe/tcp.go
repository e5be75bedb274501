// Package probe implements the network probes behind the ping and fetch
// console commands.
package probe

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/rileyhilliard/rterm/internal/errors"
	"github.com/rileyhilliard/rterm/pkg/sshutil"
)

// DefaultPort is probed when the address has no port.
const DefaultPort = 22

// FailReason categorizes why a probe failed.
type FailReason int

const (
	FailUnknown FailReason = iota
	FailTimeout
	FailRefused
	FailUnreachable
	FailDNS
)

// String returns a human-readable description of the failure reason.
func (r FailReason) String() string {
	switch r {
	case FailTimeout:
		return "connection timed out"
	case FailRefused:
		return "connection refused"
	case FailUnreachable:
		return "host unreachable"
	case FailDNS:
		return "name not resolved"
	default:
		return "unknown error"
	}
}

// Error represents a failed probe with categorized failure reason.
type Error struct {
	Address string
	Reason  FailReason
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("probe %s failed: %s (%v)", e.Address, e.Reason, e.Cause)
	}
	return fmt.Sprintf("probe %s failed: %s", e.Address, e.Reason)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NormalizeAddress turns host or host:port into host:port, defaulting to
// DefaultPort. IPv6 literals may be bracketed.
func NormalizeAddress(target string) (string, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return "", errors.New(errors.ErrUsage, "ping: missing host", "Use: ping <host[:port]>")
	}

	host, port, err := net.SplitHostPort(target)
	if err != nil {
		// No port given.
		host = strings.TrimSuffix(strings.TrimPrefix(target, "["), "]")
		port = strconv.Itoa(DefaultPort)
	}
	p, err := strconv.Atoi(port)
	if err != nil || p < 1 || p > 65535 {
		return "", errors.New(errors.ErrUsage,
			fmt.Sprintf("ping: invalid port %q", port),
			"Ports run from 1 to 65535")
	}
	if host == "" {
		return "", errors.New(errors.ErrUsage, "ping: missing host", "Use: ping <host[:port]>")
	}
	return net.JoinHostPort(host, port), nil
}

// TCP opens and immediately closes a TCP connection to address, returning
// the connect latency. Failures are *Error with a categorized reason.
func TCP(ctx context.Context, d sshutil.Dialer, address string) (time.Duration, error) {
	start := time.Now()

	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return 0, categorize(address, err)
	}
	defer conn.Close()

	return time.Since(start), nil
}

// categorize converts a dial error into an *Error with a failure reason.
func categorize(address string, err error) *Error {
	probeErr := &Error{
		Address: address,
		Reason:  FailUnknown,
		Cause:   err,
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout {
			probeErr.Reason = FailTimeout
		} else {
			probeErr.Reason = FailDNS
		}
		return probeErr
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		probeErr.Reason = FailTimeout
		return probeErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		probeErr.Reason = FailTimeout
		return probeErr
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "connection refused"):
		probeErr.Reason = FailRefused
	case strings.Contains(errStr, "no route to host"),
		strings.Contains(errStr, "network is unreachable"),
		strings.Contains(errStr, "host is down"):
		probeErr.Reason = FailUnreachable
	}
	return probeErr
}
