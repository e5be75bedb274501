// Package session owns the lifecycle of the single remote SSH session and
// the operations layered on it: one-shot and streaming command execution,
// an interactive PTY shell and an SFTP sub-session.
//
// All mutation goes through Session methods. Blocking calls take a context;
// shell writes and resizes never block the caller.
package session

import (
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/rileyhilliard/rterm/internal/config"
	"github.com/rileyhilliard/rterm/internal/errors"
	"github.com/rileyhilliard/rterm/pkg/sshutil"
	"go.uber.org/zap"
)

// NoOutput replaces empty command output so "ran, printed nothing" reads
// differently from "did not run".
const NoOutput = "(no output)"

// Target identifies the remote end of a session.
type Target struct {
	Host string
	Port int
	User string
}

// Address returns host:port.
func (t Target) Address() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

// String returns user@host:port.
func (t Target) String() string {
	return t.User + "@" + t.Address()
}

func (t Target) validate() error {
	if t.Host == "" {
		return errors.New(errors.ErrUsage, "ssh: missing host", "Use: ssh user@host [-p port]")
	}
	if t.User == "" {
		return errors.New(errors.ErrUsage, "ssh: missing username", "Use: ssh user@host [-p port]")
	}
	if t.Port < 1 || t.Port > 65535 {
		return errors.New(errors.ErrUsage,
			fmt.Sprintf("ssh: invalid port %d", t.Port),
			"Ports run from 1 to 65535")
	}
	return nil
}

// KeyAuth selects key-based authentication. With KeyFile empty the
// ssh-agent is used.
type KeyAuth struct {
	KeyFile    string
	Passphrase []byte
}

// ConnectionInfo is a snapshot of the session for display.
type ConnectionInfo struct {
	Target             Target
	State              State
	ShellActive        bool
	FileTransferActive bool
	Fingerprint        string
	ConnectedAt        time.Time
}

// String returns the connection string user@host:port.
func (i ConnectionInfo) String() string {
	return i.Target.String()
}

// Timeouts bounds the blocking operations.
type Timeouts struct {
	Connect time.Duration
	Exec    time.Duration
	Stream  time.Duration
}

// Terminal is the PTY requested by StartShell.
type Terminal struct {
	Type string
	Cols int
	Rows int
}

// Option configures a Session.
type Option func(*Session)

// WithDialer replaces the TCP dialer.
func WithDialer(d sshutil.Dialer) Option {
	return func(s *Session) {
		s.dialer = d
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) {
		s.logger = l
	}
}

// WithTimeouts overrides the operation timeouts.
func WithTimeouts(t Timeouts) Option {
	return func(s *Session) {
		s.timeouts = t
	}
}

// WithTerminal sets the PTY type and initial size.
func WithTerminal(t Terminal) Option {
	return func(s *Session) {
		s.terminal = t
	}
}

// WithHostKeyPolicy enables known_hosts verification.
func WithHostKeyPolicy(strict bool, knownHosts string) Option {
	return func(s *Session) {
		s.strictHostKeys = strict
		s.knownHosts = knownHosts
	}
}

// FromConfig applies the terminal, timeout and host key settings of cfg.
func FromConfig(cfg *config.Config) Option {
	return func(s *Session) {
		s.timeouts = Timeouts{
			Connect: cfg.Timeouts.Connect,
			Exec:    cfg.Timeouts.Exec,
			Stream:  cfg.Timeouts.Stream,
		}
		s.terminal = Terminal{
			Type: cfg.Terminal.Type,
			Cols: cfg.Terminal.Cols,
			Rows: cfg.Terminal.Rows,
		}
		s.strictHostKeys = cfg.SSH.StrictHostKeyChecking
		s.knownHosts = cfg.SSH.KnownHosts
		s.dialer = sshutil.NewDialer(cfg.Timeouts.Connect)
	}
}

// credentials are held only while a connection is attempted or open.
type credentials struct {
	password   []byte
	keyFile    string
	passphrase []byte
}

func (c *credentials) wipe() {
	if c == nil {
		return
	}
	sshutil.WipeBytes(c.password)
	sshutil.WipeBytes(c.passphrase)
	c.password = nil
	c.passphrase = nil
	c.keyFile = ""
}

// Session is the single remote session.
type Session struct {
	dialer         sshutil.Dialer
	logger         *zap.Logger
	timeouts       Timeouts
	terminal       Terminal
	strictHostKeys bool
	knownHosts     string

	mu            sync.Mutex
	state         State
	target        Target
	creds         *credentials
	client        *sshutil.Client
	dropped       chan struct{}
	attemptCancel func()
	fingerprint   string
	connectedAt   time.Time
	lastErr       error
	shell         *shellChannel
	sftp          *FileTransfer
	transitions   []Transition
	callbacks     []StateCallback
}

// New creates a disconnected session.
func New(opts ...Option) *Session {
	cfg := config.DefaultConfig()
	s := &Session{
		logger: zap.NewNop(),
		state:  StateDisconnected,
	}
	FromConfig(cfg)(s)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnStateChange registers a callback fired after every transition.
func (s *Session) OnStateChange(cb StateCallback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks = append(s.callbacks, cb)
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsUsable reports whether the session is connected and the transport is
// still up. It never blocks on the network.
func (s *Session) IsUsable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateConnected || s.client == nil {
		return false
	}
	select {
	case <-s.dropped:
		return false
	default:
		return true
	}
}

// IsConnected is true once authentication has succeeded and until teardown.
func (s *Session) IsConnected() bool {
	return s.State() == StateConnected
}

// CheckAlive returns the not-connected error unless the session is connected
// with a live transport. A session whose transport has died is torn down to
// disconnected and the disconnect error is returned. It never blocks on the
// network.
func (s *Session) CheckAlive() error {
	_, err := s.usableClient()
	return err
}

// Info returns a snapshot of the connection metadata.
func (s *Session) Info() ConnectionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ConnectionInfo{
		Target:             s.target,
		State:              s.state,
		ShellActive:        s.shell != nil && s.shell.active(),
		FileTransferActive: s.sftp != nil,
		Fingerprint:        s.fingerprint,
		ConnectedAt:        s.connectedAt,
	}
}

// Fingerprint returns the SHA256 host key fingerprint of the current or
// last attempted connection.
func (s *Session) Fingerprint() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fingerprint
}

// HasCredentials reports whether any secret is currently held.
func (s *Session) HasCredentials() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creds != nil
}

// LastError returns the error that caused the last failure or drop.
func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Transitions returns a copy of the recent transition history, oldest first.
func (s *Session) Transitions() []Transition {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Transition, len(s.transitions))
	copy(out, s.transitions)
	return out
}

// setStateLocked records a transition. Caller holds s.mu and must pass the
// returned notifier to fire once the lock is released.
func (s *Session) setStateLocked(to State, reason string) func() {
	from := s.state
	if from == to {
		return func() {}
	}
	s.state = to

	t := Transition{From: from, To: to, Reason: reason, At: time.Now()}
	s.transitions = append(s.transitions, t)
	if len(s.transitions) > maxTransitions {
		s.transitions = s.transitions[len(s.transitions)-maxTransitions:]
	}

	callbacks := make([]StateCallback, len(s.callbacks))
	copy(callbacks, s.callbacks)
	logger := s.logger
	target := s.target

	return func() {
		logger.Info("session state changed",
			zap.String("from", string(from)),
			zap.String("to", string(to)),
			zap.String("reason", reason),
			zap.String("host", target.Host),
			zap.Int("port", target.Port),
			zap.String("user", target.User))
		for _, cb := range callbacks {
			cb(t)
		}
	}
}

func errNotConnected() error {
	return errors.New(errors.ErrState,
		"ssh: not connected",
		"Connect first: ssh user@host [-p port], then ssh-login <password>")
}

func errDisconnected(cause error) error {
	return errors.WrapWithCode(cause, errors.ErrDisconnected,
		"ssh: session disconnected",
		"The remote closed the connection. Reconnect with: ssh user@host")
}
