package session

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rileyhilliard/rterm/internal/errors"
	"github.com/rileyhilliard/rterm/pkg/sshutil/sshtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// shellRecorder collects shell handler events.
type shellRecorder struct {
	mu     sync.Mutex
	out    strings.Builder
	errs   []error
	closed chan struct{}
}

func newShellRecorder() *shellRecorder {
	return &shellRecorder{closed: make(chan struct{})}
}

func (r *shellRecorder) handlers() ShellHandlers {
	return ShellHandlers{
		Output: func(p []byte) {
			r.mu.Lock()
			r.out.Write(p)
			r.mu.Unlock()
		},
		Error: func(err error) {
			r.mu.Lock()
			r.errs = append(r.errs, err)
			r.mu.Unlock()
		},
		Closed: func() { close(r.closed) },
	}
}

func (r *shellRecorder) output() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.out.String()
}

func (r *shellRecorder) waitFor(t *testing.T, substr string) {
	t.Helper()
	require.Eventually(t, func() bool {
		return strings.Contains(r.output(), substr)
	}, 3*time.Second, 10*time.Millisecond, "output so far: %q", r.output())
}

func (r *shellRecorder) waitClosed(t *testing.T) {
	t.Helper()
	select {
	case <-r.closed:
	case <-time.After(3 * time.Second):
		t.Fatal("shell Closed handler was not called")
	}
}

func TestStartShell_NotConnected(t *testing.T) {
	s, dialer := newTestSession()
	rec := newShellRecorder()

	err := s.StartShell(rec.handlers())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrState))
	require.Len(t, rec.errs, 1)
	assert.Equal(t, err, rec.errs[0])
	assert.False(t, s.IsShellActive())
	assert.Zero(t, dialer.calls.Load())
}

func TestShell_RoundTrip(t *testing.T) {
	srv := sshtest.New(t)
	s := connectedSession(t, srv)
	rec := newShellRecorder()

	require.NoError(t, s.StartShell(rec.handlers()))
	assert.True(t, s.IsShellActive())
	assert.True(t, s.Info().ShellActive)
	rec.waitFor(t, sshtest.Prompt)

	s.WriteToShell([]byte("echo hello from pty\n"))
	rec.waitFor(t, "hello from pty\n")

	// The same command run non-interactively produces the same bytes.
	res, err := s.ExecuteCommand(context.Background(), "echo hello from pty")
	require.NoError(t, err)
	assert.Contains(t, rec.output(), res.Stdout)

	require.NoError(t, s.CloseShell())
	rec.waitClosed(t)
	assert.False(t, s.IsShellActive())
	assert.True(t, s.IsUsable(), "closing the shell keeps the session")
}

func TestShell_ControlBytes(t *testing.T) {
	srv := sshtest.New(t)
	s := connectedSession(t, srv)
	rec := newShellRecorder()

	require.NoError(t, s.StartShell(rec.handlers()))
	rec.waitFor(t, sshtest.Prompt)

	s.WriteToShell([]byte("partial"))
	s.WriteToShell([]byte{0x03})
	rec.waitFor(t, "^C")

	s.WriteToShell([]byte{0x04})
	rec.waitClosed(t)
	assert.False(t, s.IsShellActive())
}

func TestShell_RemoteExitFiresClosed(t *testing.T) {
	srv := sshtest.New(t)
	s := connectedSession(t, srv)
	rec := newShellRecorder()

	require.NoError(t, s.StartShell(rec.handlers()))
	s.WriteToShell([]byte("exit\n"))
	rec.waitClosed(t)

	assert.False(t, s.IsShellActive())
	assert.NoError(t, s.CloseShell())

	// A new shell can be started afterwards.
	rec2 := newShellRecorder()
	require.NoError(t, s.StartShell(rec2.handlers()))
	rec2.waitFor(t, sshtest.Prompt)
}

func TestShell_AlreadyActive(t *testing.T) {
	srv := sshtest.New(t)
	s := connectedSession(t, srv)

	require.NoError(t, s.StartShell(newShellRecorder().handlers()))
	err := s.StartShell(newShellRecorder().handlers())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrState))
}

func TestShell_ResizeAndInitialSize(t *testing.T) {
	srv := sshtest.New(t)
	s, _ := newTestSession(WithTerminal(Terminal{Type: "vt100", Cols: 100, Rows: 30}))
	require.NoError(t, s.Connect(context.Background(), targetFor(srv), sshtest.DefaultPassword))
	defer s.Disconnect()

	rec := newShellRecorder()
	require.NoError(t, s.StartShell(rec.handlers()))
	s.ResizeTerminal(132, 43)

	require.Eventually(t, func() bool { return len(srv.WindowSizes()) == 2 }, 2*time.Second, 10*time.Millisecond)
	sizes := srv.WindowSizes()
	assert.Equal(t, sshtest.WindowSize{Term: "vt100", Cols: 100, Rows: 30}, sizes[0])
	assert.Equal(t, sshtest.WindowSize{Cols: 132, Rows: 43}, sizes[1])
}

func TestShell_InactiveOperationsAreNoops(t *testing.T) {
	s := New()
	s.WriteToShell([]byte("ls\n"))
	s.ResizeTerminal(100, 50)
	assert.NoError(t, s.CloseShell())
	assert.NoError(t, s.CloseShell())
	assert.False(t, s.IsShellActive())
}

func TestShell_WriteDropsWhenQueueFull(t *testing.T) {
	s := New()
	rec := newShellRecorder()
	ch := &shellChannel{
		writes:   make(chan []byte, 1),
		done:     make(chan struct{}),
		handlers: rec.handlers(),
	}
	s.mu.Lock()
	s.shell = ch
	s.mu.Unlock()
	t.Cleanup(func() {
		s.mu.Lock()
		s.shell = nil
		s.mu.Unlock()
	})

	s.WriteToShell([]byte("first"))

	returned := make(chan struct{})
	go func() {
		s.WriteToShell([]byte("second"))
		close(returned)
	}()
	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("WriteToShell blocked on a full queue")
	}

	assert.Equal(t, []byte("first"), <-ch.writes)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.errs, 1)
	assert.True(t, errors.IsCode(rec.errs[0], errors.ErrSSH))
	assert.Contains(t, rec.errs[0].Error(), "ssh: shell input dropped")
}

func TestShell_ClosedOnDisconnect(t *testing.T) {
	srv := sshtest.New(t)
	s := connectedSession(t, srv)
	rec := newShellRecorder()

	require.NoError(t, s.StartShell(rec.handlers()))
	require.NoError(t, s.Disconnect())
	rec.waitClosed(t)
	assert.False(t, s.IsShellActive())
}
