package session

import (
	"context"
	"fmt"
	"time"

	"github.com/rileyhilliard/rterm/internal/errors"
	"github.com/rileyhilliard/rterm/pkg/sshutil"
	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"
)

// authFunc produces the auth methods for one attempt plus a release func.
type authFunc func() ([]ssh.AuthMethod, func(), error)

// Connect opens the transport to target and authenticates with password,
// falling back to keyboard-interactive with the same secret.
//
// Valid from disconnected or error. On failure the session ends in error,
// the partial transport is closed and the password is wiped.
func (s *Session) Connect(ctx context.Context, target Target, password string) error {
	creds := &credentials{password: []byte(password)}
	return s.connect(ctx, target, creds, func() ([]ssh.AuthMethod, func(), error) {
		return sshutil.PasswordMethods(creds.password), nil, nil
	})
}

// ConnectWithKey is Connect with public key authentication: a key file
// (optionally encrypted) or, when key.KeyFile is empty, the ssh-agent.
func (s *Session) ConnectWithKey(ctx context.Context, target Target, key KeyAuth) error {
	creds := &credentials{
		keyFile:    key.KeyFile,
		passphrase: append([]byte(nil), key.Passphrase...),
	}
	return s.connect(ctx, target, creds, func() ([]ssh.AuthMethod, func(), error) {
		if creds.keyFile == "" {
			method, release, err := sshutil.AgentMethod()
			if err != nil {
				return nil, nil, err
			}
			return []ssh.AuthMethod{method}, func() { _ = release() }, nil
		}
		method, err := sshutil.KeyFileMethod(creds.keyFile, creds.passphrase)
		if err != nil {
			return nil, nil, err
		}
		return []ssh.AuthMethod{method}, nil, nil
	})
}

func (s *Session) connect(ctx context.Context, target Target, creds *credentials, auth authFunc) error {
	if err := target.validate(); err != nil {
		creds.wipe()
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeouts.Connect)
	defer cancel()

	// Every field other operations can observe changes in the same critical
	// section that enters connecting.
	s.mu.Lock()
	if !s.state.canConnect() {
		current := s.target
		state := s.state
		s.mu.Unlock()
		creds.wipe()
		if state == StateConnected {
			return errors.New(errors.ErrState,
				fmt.Sprintf("ssh: already connected to %s", current),
				"Disconnect first with: exit")
		}
		return errors.New(errors.ErrState,
			fmt.Sprintf("ssh: connection to %s already in progress", current),
			"Wait for it to finish or run: exit")
	}
	s.target = target
	s.creds = creds
	s.fingerprint = ""
	s.lastErr = nil
	s.attemptCancel = cancel
	notify := s.setStateLocked(StateConnecting, "dialing "+target.Address())
	s.mu.Unlock()
	notify()

	start := time.Now()
	conn, err := sshutil.DialTCP(ctx, s.dialer, target.Address())
	if err != nil {
		return s.failAttempt(err)
	}

	if !s.advance(StateConnecting, StateAuthenticating, "transport open") {
		conn.Close()
		return errAttemptAborted(target)
	}

	methods, release, err := auth()
	if err != nil {
		conn.Close()
		return s.failAttempt(err)
	}
	if release != nil {
		defer release()
	}

	hostKeys, err := sshutil.HostKeyCallback(s.strictHostKeys, s.knownHosts)
	if err != nil {
		conn.Close()
		return s.failAttempt(errors.WrapWithCode(err, errors.ErrConfig,
			"Can't load known_hosts: "+s.knownHosts,
			"Check ssh.known_hosts in your config"))
	}
	hostKeys = sshutil.RecordFingerprint(hostKeys, func(fp string) {
		s.mu.Lock()
		s.fingerprint = fp
		s.mu.Unlock()
	})

	client, err := sshutil.Handshake(ctx, conn, target.Address(), &ssh.ClientConfig{
		User:            target.User,
		Auth:            methods,
		HostKeyCallback: hostKeys,
		Timeout:         s.timeouts.Connect,
	})
	if err != nil {
		return s.failAttempt(err)
	}

	s.mu.Lock()
	if s.state != StateAuthenticating || s.creds != creds {
		s.mu.Unlock()
		client.Close()
		return errAttemptAborted(target)
	}
	s.client = client
	s.dropped = make(chan struct{})
	s.connectedAt = time.Now()
	s.attemptCancel = nil
	notify = s.setStateLocked(StateConnected, "authenticated")
	dropped := s.dropped
	s.mu.Unlock()
	notify()

	go func() {
		_ = client.Wait()
		close(dropped)
	}()

	s.logger.Info("ssh connected",
		zap.String("target", target.String()),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

// advance moves from -> to if the attempt is still the current one.
func (s *Session) advance(from, to State, reason string) bool {
	s.mu.Lock()
	if s.state != from {
		s.mu.Unlock()
		return false
	}
	notify := s.setStateLocked(to, reason)
	s.mu.Unlock()
	notify()
	return true
}

// failAttempt ends a connection attempt in the error state.
func (s *Session) failAttempt(err error) error {
	s.mu.Lock()
	if s.state != StateConnecting && s.state != StateAuthenticating {
		// Disconnect won the race; it already cleaned up.
		s.mu.Unlock()
		return err
	}
	s.creds.wipe()
	s.creds = nil
	s.attemptCancel = nil
	s.lastErr = err
	notify := s.setStateLocked(StateError, errors.CodeOf(err)+": "+firstLine(err))
	s.mu.Unlock()
	notify()

	s.logger.Warn("ssh connect failed", zap.String("code", errors.CodeOf(err)), zap.Error(err))
	return err
}

// Disconnect closes the shell, the SFTP sub-session and the transport,
// wipes credentials and returns to disconnected. Calling it while already
// disconnected does nothing.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	if s.state == StateDisconnected {
		s.mu.Unlock()
		return nil
	}
	teardown := s.detachLocked()
	s.target = Target{}
	s.fingerprint = ""
	notify := s.setStateLocked(StateDisconnected, "disconnect requested")
	s.mu.Unlock()

	err := teardown()
	notify()
	return err
}

// detachLocked clears every handle and credential and returns a func that
// closes what was detached. Caller holds s.mu.
func (s *Session) detachLocked() func() error {
	shell, ft, client, cancel := s.shell, s.sftp, s.client, s.attemptCancel
	s.shell = nil
	s.sftp = nil
	s.client = nil
	s.attemptCancel = nil
	s.connectedAt = time.Time{}
	s.creds.wipe()
	s.creds = nil

	return func() error {
		if cancel != nil {
			cancel()
		}
		if shell != nil {
			shell.close()
		}
		if ft != nil {
			_ = ft.client.Close()
		}
		if client != nil {
			return client.Close()
		}
		return nil
	}
}

// handleDrop tears the session down after the transport died underneath
// client. It is a no-op if client is no longer current.
func (s *Session) handleDrop(client *sshutil.Client, cause error) error {
	dropErr := errDisconnected(cause)

	s.mu.Lock()
	if s.client != client {
		s.mu.Unlock()
		return dropErr
	}
	teardown := s.detachLocked()
	s.lastErr = dropErr
	notify := s.setStateLocked(StateDisconnected, "transport dropped")
	s.mu.Unlock()

	_ = teardown()
	notify()
	s.logger.Warn("ssh session dropped", zap.Error(cause))
	return dropErr
}

// usableClient returns the live client, or the error explaining why none is
// available. A dead transport is torn down here.
func (s *Session) usableClient() (*sshutil.Client, error) {
	s.mu.Lock()
	if s.state != StateConnected || s.client == nil {
		s.mu.Unlock()
		return nil, errNotConnected()
	}
	client, dropped := s.client, s.dropped
	s.mu.Unlock()

	select {
	case <-dropped:
		return nil, s.handleDrop(client, nil)
	default:
		return client, nil
	}
}

// checkDrop converts err into a disconnect when the transport turns out
// to be dead. Other errors pass through unchanged.
func (s *Session) checkDrop(client *sshutil.Client, err error) error {
	if err == nil {
		return nil
	}
	s.mu.Lock()
	dropped := s.dropped
	s.mu.Unlock()

	alive := true
	select {
	case <-dropped:
		alive = false
	default:
		if kaErr := client.KeepAlive(); kaErr != nil {
			alive = false
		}
	}
	if alive {
		return err
	}
	return s.handleDrop(client, err)
}

func errAttemptAborted(target Target) error {
	return errors.New(errors.ErrState,
		fmt.Sprintf("ssh: connection to %s was cancelled", target),
		"Start again with: ssh user@host")
}

func firstLine(err error) string {
	var rErr *errors.Error
	if errors.As(err, &rErr) {
		return rErr.Message
	}
	return err.Error()
}
