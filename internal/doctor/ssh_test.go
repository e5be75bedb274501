package doctor

import (
	"crypto/ed25519"
	"crypto/rand"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rileyhilliard/rterm/internal/config"
	"golang.org/x/crypto/ssh/agent"
)

func writeFakeKey(t *testing.T, home, name string, perm os.FileMode) string {
	t.Helper()
	dir := filepath.Join(home, ".ssh")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("not really a key"), perm); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestSSHKeyCheck(t *testing.T) {
	t.Run("name and category", func(t *testing.T) {
		check := &SSHKeyCheck{}
		if check.Name() != "ssh_key" {
			t.Errorf("expected name 'ssh_key', got %s", check.Name())
		}
		if check.Category() != "SSH" {
			t.Errorf("expected category 'SSH', got %s", check.Category())
		}
	})

	t.Run("no key", func(t *testing.T) {
		result := (&SSHKeyCheck{Home: t.TempDir()}).Run()
		if result.Status != StatusWarn {
			t.Errorf("expected StatusWarn, got %v", result.Status)
		}
	})

	t.Run("key present", func(t *testing.T) {
		home := t.TempDir()
		writeFakeKey(t, home, "id_rsa", 0o600)

		result := (&SSHKeyCheck{Home: home}).Run()
		if result.Status != StatusPass {
			t.Fatalf("expected StatusPass, got %v", result.Status)
		}
		if !strings.Contains(result.Message, "id_rsa") {
			t.Errorf("expected message to name id_rsa, got %q", result.Message)
		}
	})
}

func TestSSHKeyPermissionsCheck(t *testing.T) {
	t.Run("no keys", func(t *testing.T) {
		result := (&SSHKeyPermissionsCheck{Home: t.TempDir()}).Run()
		if result.Status != StatusPass {
			t.Errorf("expected StatusPass, got %v", result.Status)
		}
	})

	t.Run("good permissions", func(t *testing.T) {
		home := t.TempDir()
		writeFakeKey(t, home, "id_ed25519", 0o600)

		result := (&SSHKeyPermissionsCheck{Home: home}).Run()
		if result.Status != StatusPass {
			t.Errorf("expected StatusPass, got %v: %s", result.Status, result.Message)
		}
	})

	t.Run("bad permissions fixed", func(t *testing.T) {
		home := t.TempDir()
		path := writeFakeKey(t, home, "id_ed25519", 0o600)
		if err := os.Chmod(path, 0o644); err != nil {
			t.Fatal(err)
		}

		check := &SSHKeyPermissionsCheck{Home: home}
		result := check.Run()
		if result.Status != StatusWarn || !result.Fixable {
			t.Fatalf("expected fixable warning, got %+v", result)
		}

		if err := check.Fix(); err != nil {
			t.Fatalf("fix failed: %v", err)
		}
		info, err := os.Stat(path)
		if err != nil {
			t.Fatal(err)
		}
		if info.Mode().Perm() != 0o600 {
			t.Errorf("expected 0600 after fix, got %o", info.Mode().Perm())
		}
	})
}

// serveAgent runs an in-memory agent holding n keys on a unix socket.
func serveAgent(t *testing.T, n int) string {
	t.Helper()
	keyring := agent.NewKeyring()
	for i := 0; i < n; i++ {
		_, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			t.Fatal(err)
		}
		if err := keyring.Add(agent.AddedKey{PrivateKey: priv}); err != nil {
			t.Fatal(err)
		}
	}

	dir, err := os.MkdirTemp("", "agent")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	socket := filepath.Join(dir, "sock")
	l, err := net.Listen("unix", socket)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { l.Close() })

	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				_ = agent.ServeAgent(keyring, conn)
			}()
		}
	}()
	return socket
}

func TestSSHAgentCheck(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		result := (&SSHAgentCheck{Enabled: false}).Run()
		if result.Status != StatusPass {
			t.Errorf("expected StatusPass, got %v", result.Status)
		}
	})

	t.Run("without SSH_AUTH_SOCK", func(t *testing.T) {
		t.Setenv("SSH_AUTH_SOCK", "")
		result := (&SSHAgentCheck{Enabled: true}).Run()
		if result.Status != StatusWarn {
			t.Errorf("expected StatusWarn, got %v", result.Status)
		}
	})

	t.Run("socket not listening", func(t *testing.T) {
		socket := filepath.Join(t.TempDir(), "missing.sock")
		result := (&SSHAgentCheck{Enabled: true, Socket: socket}).Run()
		if result.Status != StatusFail {
			t.Errorf("expected StatusFail, got %v", result.Status)
		}
	})

	t.Run("agent without keys", func(t *testing.T) {
		result := (&SSHAgentCheck{Enabled: true, Socket: serveAgent(t, 0)}).Run()
		if result.Status != StatusWarn {
			t.Errorf("expected StatusWarn, got %v: %s", result.Status, result.Message)
		}
	})

	t.Run("agent with keys", func(t *testing.T) {
		result := (&SSHAgentCheck{Enabled: true, Socket: serveAgent(t, 2)}).Run()
		if result.Status != StatusPass {
			t.Fatalf("expected StatusPass, got %v: %s", result.Status, result.Message)
		}
		if result.Message != "SSH agent running with 2 keys loaded" {
			t.Errorf("unexpected message %q", result.Message)
		}
	})
}

func TestKnownHostsCheck(t *testing.T) {
	t.Run("not strict", func(t *testing.T) {
		result := (&KnownHostsCheck{Strict: false}).Run()
		if result.Status != StatusWarn {
			t.Errorf("expected StatusWarn, got %v", result.Status)
		}
	})

	t.Run("missing file is fixable", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), ".ssh", "known_hosts")
		check := &KnownHostsCheck{Strict: true, Path: path}

		result := check.Run()
		if result.Status != StatusFail || !result.Fixable {
			t.Fatalf("expected fixable failure, got %+v", result)
		}

		if err := check.Fix(); err != nil {
			t.Fatalf("fix failed: %v", err)
		}
		if result := check.Run(); result.Status != StatusPass {
			t.Errorf("expected StatusPass after fix, got %v: %s", result.Status, result.Message)
		}
	})

	t.Run("malformed file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "known_hosts")
		if err := os.WriteFile(path, []byte("example.com ssh-ed25519 not-base64!!\n"), 0o600); err != nil {
			t.Fatal(err)
		}

		result := (&KnownHostsCheck{Strict: true, Path: path}).Run()
		if result.Status != StatusFail || result.Fixable {
			t.Errorf("expected non-fixable failure, got %+v", result)
		}
	})
}

func TestSSHConfigCheck(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		result := (&SSHConfigCheck{Path: filepath.Join(t.TempDir(), "config")}).Run()
		if result.Status != StatusPass {
			t.Errorf("expected StatusPass, got %v", result.Status)
		}
	})

	t.Run("counts aliases", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config")
		content := "Host web\n  HostName 10.0.0.5\n  User alice\n\nHost db\n  HostName 10.0.0.6\n\nHost *\n  ServerAliveInterval 30\n"
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}

		result := (&SSHConfigCheck{Path: path}).Run()
		if result.Status != StatusPass {
			t.Fatalf("expected StatusPass, got %v", result.Status)
		}
		if !strings.HasPrefix(result.Message, "2 host aliases in ") {
			t.Errorf("unexpected message %q", result.Message)
		}
	})
}

func TestNewSSHChecks(t *testing.T) {
	checks := NewSSHChecks(config.DefaultConfig(), "")
	if len(checks) != 5 {
		t.Fatalf("expected 5 checks, got %d", len(checks))
	}
	seen := make(map[string]bool)
	for _, c := range checks {
		if c.Category() != "SSH" {
			t.Errorf("check %s has category %s", c.Name(), c.Category())
		}
		if seen[c.Name()] {
			t.Errorf("duplicate check %s", c.Name())
		}
		seen[c.Name()] = true
	}
}
