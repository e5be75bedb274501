// Package sshtest runs an in-process SSH server for tests.
//
// The server speaks enough of the protocol to exercise a real client:
// password, keyboard-interactive and public key auth, exec requests
// (answered by an ExecHandler), PTY shells that echo input and run each
// line through the same handler, window-change tracking, and an sftp
// subsystem rooted in a directory.
package sshtest

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"testing"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// Default credentials when no auth option is given.
const (
	DefaultUser     = "tester"
	DefaultPassword = "secret"
)

// ExecHandler runs one command. ctx is cancelled when the client signals
// or closes the channel. The return value is the exit status.
type ExecHandler func(ctx context.Context, cmd string, stdout, stderr io.Writer) int

// WindowSize is one pty-req or window-change the server received.
type WindowSize struct {
	Term string // only set for pty-req
	Cols int
	Rows int
}

// Option configures a Server.
type Option func(*Server)

// WithPassword accepts user/password via the password method.
func WithPassword(user, password string) Option {
	return func(s *Server) {
		s.passwords[user] = password
	}
}

// WithKeyboardInteractive accepts user/password only via keyboard-interactive.
func WithKeyboardInteractive(user, password string) Option {
	return func(s *Server) {
		s.interactive[user] = password
	}
}

// WithAuthorizedKey accepts key for user.
func WithAuthorizedKey(user string, key ssh.PublicKey) Option {
	return func(s *Server) {
		s.keys[user] = append(s.keys[user], key)
	}
}

// WithExecHandler replaces the built-in command handler.
func WithExecHandler(h ExecHandler) Option {
	return func(s *Server) {
		s.exec = h
	}
}

// WithSFTPRoot serves sftp with dir as the working directory.
func WithSFTPRoot(dir string) Option {
	return func(s *Server) {
		s.sftpRoot = dir
	}
}

// WithoutSFTP makes the server refuse the sftp subsystem.
func WithoutSFTP() Option {
	return func(s *Server) {
		s.sftpDisabled = true
	}
}

// Server is a running test SSH server.
type Server struct {
	listener   net.Listener
	config     *ssh.ServerConfig
	hostSigner ssh.Signer

	passwords    map[string]string
	interactive  map[string]string
	keys         map[string][]ssh.PublicKey
	exec         ExecHandler
	sftpRoot     string
	sftpDisabled bool

	mu       sync.Mutex
	conns    []net.Conn
	windows  []WindowSize
	commands []string
	accepted int

	wg sync.WaitGroup
}

// New starts a server on 127.0.0.1 with a random port. It is closed
// automatically when the test finishes.
func New(t testing.TB, opts ...Option) *Server {
	t.Helper()

	s := &Server{
		passwords:   make(map[string]string),
		interactive: make(map[string]string),
		keys:        make(map[string][]ssh.PublicKey),
		exec:        DefaultExecHandler,
	}
	for _, opt := range opts {
		opt(s)
	}
	if len(s.passwords) == 0 && len(s.interactive) == 0 && len(s.keys) == 0 {
		s.passwords[DefaultUser] = DefaultPassword
	}
	if s.sftpRoot == "" {
		s.sftpRoot = t.TempDir()
	}

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate host key: %v", err)
	}
	s.hostSigner, err = ssh.NewSignerFromKey(priv)
	if err != nil {
		t.Fatalf("host signer: %v", err)
	}

	s.config = s.serverConfig()
	s.config.AddHostKey(s.hostSigner)

	s.listener, err = net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	s.wg.Add(1)
	go s.acceptLoop()
	t.Cleanup(s.Close)

	return s
}

func (s *Server) serverConfig() *ssh.ServerConfig {
	cfg := &ssh.ServerConfig{}

	if len(s.passwords) > 0 {
		cfg.PasswordCallback = func(conn ssh.ConnMetadata, password []byte) (*ssh.Permissions, error) {
			if want, ok := s.passwords[conn.User()]; ok && want == string(password) {
				return &ssh.Permissions{}, nil
			}
			return nil, fmt.Errorf("password rejected for %q", conn.User())
		}
	}

	if len(s.interactive) > 0 {
		cfg.KeyboardInteractiveCallback = func(conn ssh.ConnMetadata, client ssh.KeyboardInteractiveChallenge) (*ssh.Permissions, error) {
			answers, err := client(conn.User(), "", []string{"Password: "}, []bool{false})
			if err != nil {
				return nil, err
			}
			if want, ok := s.interactive[conn.User()]; ok && len(answers) == 1 && answers[0] == want {
				return &ssh.Permissions{}, nil
			}
			return nil, fmt.Errorf("keyboard-interactive rejected for %q", conn.User())
		}
	}

	if len(s.keys) > 0 {
		cfg.PublicKeyCallback = func(conn ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			for _, k := range s.keys[conn.User()] {
				if ssh.FingerprintSHA256(k) == ssh.FingerprintSHA256(key) {
					return &ssh.Permissions{}, nil
				}
			}
			return nil, fmt.Errorf("unknown public key for %q", conn.User())
		}
	}

	return cfg
}

// Addr returns host:port.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Host returns the listening IP.
func (s *Server) Host() string {
	host, _, _ := net.SplitHostPort(s.Addr())
	return host
}

// Port returns the listening port.
func (s *Server) Port() int {
	_, port, _ := net.SplitHostPort(s.Addr())
	p, _ := strconv.Atoi(port)
	return p
}

// HostKey returns the server's public host key.
func (s *Server) HostKey() ssh.PublicKey {
	return s.hostSigner.PublicKey()
}

// Fingerprint returns the SHA256 fingerprint of the host key.
func (s *Server) Fingerprint() string {
	return ssh.FingerprintSHA256(s.HostKey())
}

// Connections returns how many TCP connections were accepted.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accepted
}

// WindowSizes returns every pty-req and window-change received, in order.
func (s *Server) WindowSizes() []WindowSize {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]WindowSize(nil), s.windows...)
}

// Commands returns every exec command received, in order.
func (s *Server) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

// DropConnections abruptly closes every open transport, simulating a
// network failure underneath the client.
func (s *Server) DropConnections() {
	s.mu.Lock()
	conns := s.conns
	s.conns = nil
	s.mu.Unlock()
	for _, c := range conns {
		c.Close()
	}
}

// Close stops the server and drops all connections.
func (s *Server) Close() {
	s.listener.Close()
	s.DropConnections()
	s.wg.Wait()
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		netConn, err := s.listener.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns = append(s.conns, netConn)
		s.accepted++
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(netConn)
		}()
	}
}

func (s *Server) handleConn(netConn net.Conn) {
	sshConn, chans, reqs, err := ssh.NewServerConn(netConn, s.config)
	if err != nil {
		netConn.Close()
		return
	}
	defer sshConn.Close()

	go ssh.DiscardRequests(reqs)

	var wg sync.WaitGroup
	for newChan := range chans {
		if newChan.ChannelType() != "session" {
			newChan.Reject(ssh.UnknownChannelType, "unknown channel type")
			continue
		}
		ch, requests, err := newChan.Accept()
		if err != nil {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handleSession(ch, requests)
		}()
	}
	wg.Wait()
}

func (s *Server) recordWindow(w WindowSize) {
	s.mu.Lock()
	s.windows = append(s.windows, w)
	s.mu.Unlock()
}

func (s *Server) recordCommand(cmd string) {
	s.mu.Lock()
	s.commands = append(s.commands, cmd)
	s.mu.Unlock()
}

func (s *Server) handleSession(ch ssh.Channel, requests <-chan *ssh.Request) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var hasPTY bool
	var running sync.WaitGroup
	defer running.Wait()

	for req := range requests {
		switch req.Type {
		case "pty-req":
			var p struct {
				Term   string
				Cols   uint32
				Rows   uint32
				Width  uint32
				Height uint32
				Modes  string
			}
			if err := ssh.Unmarshal(req.Payload, &p); err != nil {
				req.Reply(false, nil)
				continue
			}
			hasPTY = true
			s.recordWindow(WindowSize{Term: p.Term, Cols: int(p.Cols), Rows: int(p.Rows)})
			req.Reply(true, nil)

		case "window-change":
			var w struct {
				Cols   uint32
				Rows   uint32
				Width  uint32
				Height uint32
			}
			if err := ssh.Unmarshal(req.Payload, &w); err == nil {
				s.recordWindow(WindowSize{Cols: int(w.Cols), Rows: int(w.Rows)})
			}
			if req.WantReply {
				req.Reply(true, nil)
			}

		case "signal":
			cancel()
			if req.WantReply {
				req.Reply(true, nil)
			}

		case "exec":
			var e struct{ Command string }
			if err := ssh.Unmarshal(req.Payload, &e); err != nil {
				req.Reply(false, nil)
				continue
			}
			s.recordCommand(e.Command)
			req.Reply(true, nil)
			running.Add(1)
			go func() {
				defer running.Done()
				status := s.exec(ctx, e.Command, ch, ch.Stderr())
				sendExitStatus(ch, status)
				ch.Close()
			}()

		case "shell":
			if !hasPTY {
				req.Reply(false, nil)
				continue
			}
			req.Reply(true, nil)
			running.Add(1)
			go func() {
				defer running.Done()
				s.runShell(ctx, ch)
			}()

		case "subsystem":
			var sub struct{ Name string }
			if err := ssh.Unmarshal(req.Payload, &sub); err != nil || sub.Name != "sftp" || s.sftpDisabled {
				req.Reply(false, nil)
				continue
			}
			req.Reply(true, nil)
			running.Add(1)
			go func() {
				defer running.Done()
				s.serveSFTP(ch)
			}()

		default:
			if req.WantReply {
				req.Reply(false, nil)
			}
		}
	}
	cancel()
	ch.Close()
}

func (s *Server) serveSFTP(ch ssh.Channel) {
	defer ch.Close()
	server, err := sftp.NewServer(ch, sftp.WithServerWorkingDirectory(s.sftpRoot))
	if err != nil {
		return
	}
	_ = server.Serve()
}

func sendExitStatus(ch ssh.Channel, status int) {
	payload := ssh.Marshal(struct{ Status uint32 }{uint32(status)})
	_, _ = ch.SendRequest("exit-status", false, payload)
}
