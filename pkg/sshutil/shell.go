package sshutil

import (
	"io"

	"github.com/rileyhilliard/rterm/internal/errors"
	"golang.org/x/crypto/ssh"
)

// PTYRequest describes the pseudo-terminal asked for by OpenShell.
type PTYRequest struct {
	Term string
	Cols int
	Rows int
}

// Shell is a remote login shell running on a PTY.
type Shell struct {
	session *ssh.Session
	Stdin   io.WriteCloser
	Stdout  io.Reader
	Stderr  io.Reader
}

// OpenShell allocates a PTY and starts the user's login shell.
func (c *Client) OpenShell(pty PTYRequest) (*Shell, error) {
	session, err := c.NewSession()
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			"Failed to create SSH session",
			"Connection may have been closed. Try reconnecting.")
	}

	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	if err := session.RequestPty(pty.Term, pty.Rows, pty.Cols, modes); err != nil {
		session.Close()
		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			"Failed to allocate PTY for shell",
			"The remote host may not support pseudo-terminals.")
	}

	stdin, err := session.StdinPipe()
	if err != nil {
		session.Close()
		return nil, errors.WrapWithCode(err, errors.ErrSSH, "Failed to open shell stdin", "")
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		session.Close()
		return nil, errors.WrapWithCode(err, errors.ErrSSH, "Failed to open shell stdout", "")
	}
	stderr, err := session.StderrPipe()
	if err != nil {
		session.Close()
		return nil, errors.WrapWithCode(err, errors.ErrSSH, "Failed to open shell stderr", "")
	}

	if err := session.Shell(); err != nil {
		session.Close()
		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			"Failed to start shell",
			"Check if your user has shell access on the remote host.")
	}

	return &Shell{
		session: session,
		Stdin:   stdin,
		Stdout:  stdout,
		Stderr:  stderr,
	}, nil
}

// Resize sends a window-change request.
func (s *Shell) Resize(cols, rows int) error {
	return s.session.WindowChange(rows, cols)
}

// Wait blocks until the remote shell exits.
func (s *Shell) Wait() error {
	return s.session.Wait()
}

// Close terminates the shell channel.
func (s *Shell) Close() error {
	return s.session.Close()
}
