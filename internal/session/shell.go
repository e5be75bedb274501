package session

import (
	"io"
	"sync"

	"github.com/rileyhilliard/rterm/internal/errors"
	"github.com/rileyhilliard/rterm/pkg/sshutil"
	"go.uber.org/zap"
)

// shellWriteQueue bounds pending input for the shell pump.
const shellWriteQueue = 256

// ShellHandlers receive shell events. Output gets every inbound fragment
// as it arrives with no line framing. Closed fires once when the shell
// ends, whether the remote exited or CloseShell was called. Handlers are
// never called concurrently with each other.
type ShellHandlers struct {
	Output func(data []byte)
	Error  func(err error)
	Closed func()
}

type shellChannel struct {
	shell    *sshutil.Shell
	writes   chan []byte
	done     chan struct{}
	once     sync.Once
	handlers ShellHandlers
	hmu      sync.Mutex
}

func (c *shellChannel) active() bool {
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

func (c *shellChannel) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.shell.Close()
	})
}

func (c *shellChannel) emitOutput(p []byte) {
	if c.handlers.Output == nil {
		return
	}
	c.hmu.Lock()
	defer c.hmu.Unlock()
	c.handlers.Output(p)
}

func (c *shellChannel) emitError(err error) {
	if c.handlers.Error == nil {
		return
	}
	c.hmu.Lock()
	defer c.hmu.Unlock()
	c.handlers.Error(err)
}

// StartShell opens a PTY shell with the configured terminal type and size.
// If the session is not usable the error handler is invoked and the error
// returned; no channel is opened.
func (s *Session) StartShell(h ShellHandlers) error {
	fail := func(err error) error {
		if h.Error != nil {
			h.Error(err)
		}
		return err
	}

	client, err := s.usableClient()
	if err != nil {
		return fail(err)
	}

	s.mu.Lock()
	if s.shell != nil && s.shell.active() {
		s.mu.Unlock()
		return fail(errors.New(errors.ErrState,
			"ssh: shell already active",
			"Leave it first with: ssh-shell-end"))
	}
	term := s.terminal
	s.mu.Unlock()

	sh, err := client.OpenShell(sshutil.PTYRequest{Term: term.Type, Cols: term.Cols, Rows: term.Rows})
	if err != nil {
		return fail(s.checkDrop(client, err))
	}

	ch := &shellChannel{
		shell:    sh,
		writes:   make(chan []byte, shellWriteQueue),
		done:     make(chan struct{}),
		handlers: h,
	}

	s.mu.Lock()
	if s.client != client || s.state != StateConnected {
		s.mu.Unlock()
		_ = sh.Close()
		return fail(errNotConnected())
	}
	s.shell = ch
	s.mu.Unlock()

	var readers sync.WaitGroup
	readers.Add(2)
	go s.pumpShellOutput(ch, sh.Stdout, &readers)
	go s.pumpShellOutput(ch, sh.Stderr, &readers)
	go s.pumpShellInput(ch)
	go func() {
		_ = sh.Wait()
		readers.Wait()
		ch.close()

		s.mu.Lock()
		if s.shell == ch {
			s.shell = nil
		}
		s.mu.Unlock()

		s.logger.Info("shell closed", zap.String("target", client.String()))
		if h.Closed != nil {
			ch.hmu.Lock()
			h.Closed()
			ch.hmu.Unlock()
		}
	}()

	s.logger.Info("shell started",
		zap.String("target", client.String()),
		zap.String("term", term.Type),
		zap.Int("cols", term.Cols),
		zap.Int("rows", term.Rows))
	return nil
}

func (s *Session) pumpShellOutput(ch *shellChannel, r io.Reader, wg *sync.WaitGroup) {
	defer wg.Done()
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			p := make([]byte, n)
			copy(p, buf[:n])
			ch.emitOutput(p)
		}
		if err != nil {
			if err != io.EOF && ch.active() {
				ch.emitError(errors.WrapWithCode(err, errors.ErrSSH, "ssh: shell read failed", ""))
			}
			return
		}
	}
}

func (s *Session) pumpShellInput(ch *shellChannel) {
	for {
		select {
		case <-ch.done:
			return
		case p := <-ch.writes:
			if _, err := ch.shell.Stdin.Write(p); err != nil {
				if ch.active() {
					ch.emitError(errors.WrapWithCode(err, errors.ErrSSH, "ssh: shell write failed", ""))
				}
				return
			}
		}
	}
}

// WriteToShell queues data for the active shell and returns immediately.
// It does nothing when no shell is active. When the queue is full because
// the remote stopped reading, data is dropped and the error handler fires.
func (s *Session) WriteToShell(data []byte) {
	s.mu.Lock()
	ch := s.shell
	s.mu.Unlock()
	if ch == nil || len(data) == 0 {
		return
	}

	p := make([]byte, len(data))
	copy(p, data)
	select {
	case ch.writes <- p:
	case <-ch.done:
	default:
		s.logger.Warn("shell input queue full, dropping write", zap.Int("bytes", len(p)))
		ch.emitError(errors.New(errors.ErrSSH, "ssh: shell input dropped",
			"The remote is not reading input; wait for it or leave with: ssh-shell-end"))
	}
}

// ResizeTerminal sends a window-change to the active shell and remembers the
// size for the next one. Without an active shell only the size is stored.
func (s *Session) ResizeTerminal(cols, rows int) {
	if cols <= 0 || rows <= 0 {
		return
	}
	s.mu.Lock()
	s.terminal.Cols = cols
	s.terminal.Rows = rows
	ch := s.shell
	s.mu.Unlock()
	if ch == nil || !ch.active() {
		return
	}

	if err := ch.shell.Resize(cols, rows); err != nil {
		ch.emitError(errors.WrapWithCode(err, errors.ErrSSH, "ssh: resize failed", ""))
	}
}

// CloseShell closes the shell channel. Closing when no shell is active is a no-op.
func (s *Session) CloseShell() error {
	s.mu.Lock()
	ch := s.shell
	s.shell = nil
	s.mu.Unlock()
	if ch != nil {
		ch.close()
	}
	return nil
}

// IsShellActive reports whether a shell channel is open.
func (s *Session) IsShellActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shell != nil && s.shell.active()
}
