package sshutil

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/rileyhilliard/rterm/internal/errors"
	"golang.org/x/crypto/ssh"
)

// Client wraps an SSH connection with additional metadata.
type Client struct {
	*ssh.Client
	User    string
	Address string // host:port the transport was opened to
}

// Handshake runs the SSH handshake and user authentication over an already
// open transport. conn is closed on failure. The handshake is abandoned
// when ctx is done.
//
// Authentication rejections are reported as ErrAuth; every other failure
// (host key, protocol, transport) as ErrSSH.
func Handshake(ctx context.Context, conn net.Conn, address string, config *ssh.ClientConfig) (*Client, error) {
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else if config.Timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(config.Timeout))
	}

	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, address, config)
	cancelled := !stop()
	if err != nil {
		conn.Close()
		if cancelled {
			return nil, errors.WrapWithCode(ctx.Err(), errors.ErrSSH,
				fmt.Sprintf("SSH handshake with %s was interrupted", address),
				"Try again; raise timeouts.connect if the host is slow")
		}
		return nil, classifyHandshakeError(err, config.User, address)
	}
	_ = conn.SetDeadline(time.Time{})

	return &Client{
		Client:  ssh.NewClient(sshConn, chans, reqs),
		User:    config.User,
		Address: address,
	}, nil
}

func classifyHandshakeError(err error, user, address string) error {
	var hostKeyErr *HostKeyMismatchError
	if stderrors.As(err, &hostKeyErr) {
		return errors.New(errors.ErrSSH, hostKeyErr.Error(), hostKeyErr.Suggestion())
	}

	var unknownErr *UnknownHostError
	if stderrors.As(err, &unknownErr) {
		return errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("Host key for %s is not trusted", address),
			fmt.Sprintf("Verify the fingerprint, then add it: ssh-keyscan -p <port> <host> >> %s", unknownErr.KnownHosts))
	}

	if IsAuthError(err) {
		return errors.WrapWithCode(err, errors.ErrAuth,
			fmt.Sprintf("Authentication failed for %s@%s", user, address),
			"Check the username and password, or use ssh-key-login")
	}

	return errors.WrapWithCode(err, errors.ErrSSH,
		fmt.Sprintf("SSH handshake with %s didn't go through", address),
		suggestionForHandshakeError(err))
}

// IsAuthError reports whether err is the handshake's "no method worked" failure.
func IsAuthError(err error) bool {
	errStr := err.Error()
	return strings.Contains(errStr, "unable to authenticate") ||
		strings.Contains(errStr, "no supported methods remain")
}

func suggestionForHandshakeError(err error) string {
	errStr := err.Error()
	if strings.Contains(errStr, "host key") {
		return "Host key issue. Check ssh.known_hosts or disable ssh.strict_host_key_checking"
	}
	if strings.Contains(errStr, "EOF") || strings.Contains(errStr, "connection reset") {
		return "The server closed the connection. Is this an SSH port?"
	}
	return "Something went wrong during SSH setup. Try: ssh -v <host>"
}

// Close closes the SSH connection.
func (c *Client) Close() error {
	if c == nil || c.Client == nil {
		return nil
	}
	return c.Client.Close()
}

// KeepAlive sends a lightweight global request to check the connection is alive.
// Servers that don't know the request still answer, so only transport errors count.
func (c *Client) KeepAlive() error {
	_, _, err := c.SendRequest("keepalive@openssh.com", true, nil)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrDisconnected,
			"ssh: session disconnected",
			"Reconnect with ssh or ssh-key-login")
	}
	return nil
}

// String returns user@host:port.
func (c *Client) String() string {
	return c.User + "@" + c.Address
}
