package sshutil

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"

	"github.com/rileyhilliard/rterm/internal/errors"
	"golang.org/x/crypto/ssh"
)

// ExecStream runs a command and streams output to the provided writers as
// it arrives. Returns the exit code and any error.
//
// When ctx is done the remote process is sent SIGKILL and the channel is
// closed; the returned error then carries ctx.Err().
func (c *Client) ExecStream(ctx context.Context, cmd string, stdout, stderr io.Writer) (exitCode int, err error) {
	session, err := c.NewSession()
	if err != nil {
		return -1, errors.WrapWithCode(err, errors.ErrSSH,
			"Failed to create SSH session",
			"Connection may have been closed. Try reconnecting.")
	}
	defer session.Close()

	session.Stdout = stdout
	session.Stderr = stderr

	if err := session.Start(cmd); err != nil {
		return -1, errors.WrapWithCode(err, errors.ErrExec,
			fmt.Sprintf("Failed to execute command: %s", cmd),
			"The server refused to run the command.")
	}

	done := make(chan error, 1)
	go func() {
		done <- session.Wait()
	}()

	select {
	case err = <-done:
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		session.Close()
		<-done
		return -1, errors.WrapWithCode(ctx.Err(), errors.ErrExec,
			fmt.Sprintf("Command did not finish: %s", cmd),
			"Raise timeouts.exec or timeouts.stream for long-running commands")
	}

	return exitStatus(cmd, err)
}

func exitStatus(cmd string, err error) (int, error) {
	if err == nil {
		return 0, nil
	}

	var exitErr *ssh.ExitError
	if stderrors.As(err, &exitErr) {
		// Command ran, just had non-zero exit
		return exitErr.ExitStatus(), nil
	}

	var missingErr *ssh.ExitMissingError
	if stderrors.As(err, &missingErr) {
		return -1, errors.WrapWithCode(err, errors.ErrExec,
			fmt.Sprintf("Command ended without an exit status: %s", cmd),
			"The connection may have dropped while it ran")
	}

	return -1, errors.WrapWithCode(err, errors.ErrExec,
		fmt.Sprintf("Failed to execute command: %s", cmd),
		"Check if the command exists on the remote host.")
}
