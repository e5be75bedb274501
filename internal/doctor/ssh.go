package doctor

import (
	"fmt"
	"net"
	"os"
	"path/filepath"

	"github.com/rileyhilliard/rterm/internal/config"
	"github.com/rileyhilliard/rterm/pkg/sshutil"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
)

// defaultKeyNames are the private keys ssh-key-login users usually have,
// in order of preference.
var defaultKeyNames = []string{"id_ed25519", "id_ecdsa", "id_rsa"}

func keyPaths(home string) []string {
	paths := make([]string, len(defaultKeyNames))
	for i, name := range defaultKeyNames {
		paths[i] = filepath.Join(home, ".ssh", name)
	}
	return paths
}

func resolveHome(home string) string {
	if home != "" {
		return home
	}
	h, _ := os.UserHomeDir()
	return h
}

// SSHKeyCheck looks for a default private key.
type SSHKeyCheck struct {
	Home string // empty uses the user's home directory
}

func (c *SSHKeyCheck) Name() string     { return "ssh_key" }
func (c *SSHKeyCheck) Category() string { return "SSH" }

func (c *SSHKeyCheck) Run() CheckResult {
	home := resolveHome(c.Home)
	if home == "" {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusWarn,
			Message:    "Cannot determine home directory",
			Suggestion: "Check HOME environment variable",
		}
	}

	for _, keyPath := range keyPaths(home) {
		if _, err := os.Stat(keyPath); err == nil {
			return CheckResult{
				Name:    c.Name(),
				Status:  StatusPass,
				Message: "SSH key found: ~/.ssh/" + filepath.Base(keyPath),
			}
		}
	}

	// Password login still works without a key.
	return CheckResult{
		Name:       c.Name(),
		Status:     StatusWarn,
		Message:    "No SSH key found",
		Suggestion: "Generate a key with: ssh-keygen -t ed25519",
	}
}

func (c *SSHKeyCheck) Fix() error {
	return nil
}

// SSHKeyPermissionsCheck verifies private keys are not group or world readable.
type SSHKeyPermissionsCheck struct {
	Home string
}

func (c *SSHKeyPermissionsCheck) Name() string     { return "ssh_key_permissions" }
func (c *SSHKeyPermissionsCheck) Category() string { return "SSH" }

func (c *SSHKeyPermissionsCheck) Run() CheckResult {
	home := resolveHome(c.Home)
	if home == "" {
		return CheckResult{Name: c.Name(), Status: StatusPass}
	}

	var badPerms []string
	var foundKey bool
	for _, keyPath := range keyPaths(home) {
		info, err := os.Stat(keyPath)
		if err != nil {
			continue
		}
		foundKey = true
		if info.Mode().Perm()&0o077 != 0 {
			badPerms = append(badPerms, filepath.Base(keyPath))
		}
	}

	if !foundKey {
		return CheckResult{
			Name:    c.Name(),
			Status:  StatusPass,
			Message: "No private keys to check",
		}
	}

	if len(badPerms) > 0 {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusWarn,
			Message:    fmt.Sprintf("Insecure permissions on: %v", badPerms),
			Suggestion: "Fix: chmod 600 ~/.ssh/<keyfile>",
			Fixable:    true,
		}
	}

	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: "SSH key permissions OK",
	}
}

// Fix restricts every default key to 0600.
func (c *SSHKeyPermissionsCheck) Fix() error {
	for _, keyPath := range keyPaths(resolveHome(c.Home)) {
		info, err := os.Stat(keyPath)
		if err != nil {
			continue
		}
		if info.Mode().Perm()&0o077 != 0 {
			if err := os.Chmod(keyPath, 0o600); err != nil {
				return fmt.Errorf("failed to fix permissions on %s: %w", keyPath, err)
			}
		}
	}
	return nil
}

// SSHAgentCheck verifies the agent ssh-key-login falls back to is reachable
// and holds keys.
type SSHAgentCheck struct {
	Enabled bool   // ssh.use_agent
	Socket  string // empty uses SSH_AUTH_SOCK
}

func (c *SSHAgentCheck) Name() string     { return "ssh_agent" }
func (c *SSHAgentCheck) Category() string { return "SSH" }

func (c *SSHAgentCheck) Run() CheckResult {
	if !c.Enabled {
		return CheckResult{
			Name:    c.Name(),
			Status:  StatusPass,
			Message: "ssh-agent disabled (ssh.use_agent: false)",
		}
	}

	socket := c.Socket
	if socket == "" {
		socket = os.Getenv("SSH_AUTH_SOCK")
	}
	if socket == "" {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusWarn,
			Message:    "SSH agent not running",
			Suggestion: "Fix: eval $(ssh-agent) && ssh-add",
		}
	}

	conn, err := net.Dial("unix", socket)
	if err != nil {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    "SSH agent socket not accessible",
			Suggestion: "Check SSH_AUTH_SOCK points at a running agent",
		}
	}
	defer conn.Close() //nolint:errcheck // Best-effort close, error not actionable

	keys, err := agent.NewClient(conn).List()
	if err != nil {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    "Cannot query SSH agent",
			Suggestion: "Check SSH agent: ssh-add -l",
		}
	}
	if len(keys) == 0 {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusWarn,
			Message:    "SSH agent running but no keys loaded",
			Suggestion: "Add a key with: ssh-add",
		}
	}

	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: fmt.Sprintf("SSH agent running with %d key%s loaded", len(keys), pluralize(len(keys))),
	}
}

func (c *SSHAgentCheck) Fix() error {
	return nil
}

// KnownHostsCheck verifies the known_hosts file parses when strict host key
// checking is on, and flags that it is off otherwise.
type KnownHostsCheck struct {
	Strict bool
	Path   string
}

func (c *KnownHostsCheck) Name() string     { return "known_hosts" }
func (c *KnownHostsCheck) Category() string { return "SSH" }

func (c *KnownHostsCheck) Run() CheckResult {
	if !c.Strict {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusWarn,
			Message:    "Host key checking is off; any host key is accepted",
			Suggestion: "Set ssh.strict_host_key_checking: true once hosts are in known_hosts",
		}
	}

	path := config.ExpandTilde(c.Path)
	if _, err := knownhosts.New(path); err != nil {
		if os.IsNotExist(err) {
			return CheckResult{
				Name:       c.Name(),
				Status:     StatusFail,
				Message:    "known_hosts not found: " + path,
				Suggestion: "Connect once with ssh(1) to record host keys, or fix ssh.known_hosts",
				Fixable:    true,
			}
		}
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    fmt.Sprintf("Cannot parse %s: %v", path, err),
			Suggestion: "Remove the malformed line from known_hosts",
		}
	}

	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: "Verifying host keys against " + path,
	}
}

// Fix creates an empty known_hosts so strict checking can start recording.
func (c *KnownHostsCheck) Fix() error {
	if !c.Strict {
		return nil
	}
	path := config.ExpandTilde(c.Path)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE, 0o600)
	if err != nil {
		return err
	}
	return f.Close()
}

// SSHConfigCheck verifies ~/.ssh/config parses, since `ssh <alias>` reads it.
type SSHConfigCheck struct {
	Path string // empty uses ~/.ssh/config
}

func (c *SSHConfigCheck) Name() string     { return "ssh_config" }
func (c *SSHConfigCheck) Category() string { return "SSH" }

func (c *SSHConfigCheck) Run() CheckResult {
	path := c.Path
	if path == "" {
		path = sshutil.DefaultSSHConfigPath()
	}

	hosts, err := sshutil.ParseSSHConfigFile(path)
	if err != nil {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusWarn,
			Message:    fmt.Sprintf("Cannot parse %s", path),
			Suggestion: "Host aliases will not resolve; check the file with: ssh -G <alias>",
		}
	}
	if len(hosts) == 0 {
		return CheckResult{
			Name:    c.Name(),
			Status:  StatusPass,
			Message: "No host aliases in " + path,
		}
	}

	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: fmt.Sprintf("%d host alias%s in %s", len(hosts), pluralizeES(len(hosts)), path),
	}
}

func (c *SSHConfigCheck) Fix() error {
	return nil
}

func pluralizeES(n int) string {
	if n == 1 {
		return ""
	}
	return "es"
}

// NewSSHChecks creates all SSH-related checks for cfg.
func NewSSHChecks(cfg *config.Config, sshConfigPath string) []Check {
	return []Check{
		&SSHKeyCheck{},
		&SSHKeyPermissionsCheck{},
		&SSHAgentCheck{Enabled: cfg.SSH.UseAgent},
		&KnownHostsCheck{Strict: cfg.SSH.StrictHostKeyChecking, Path: cfg.SSH.KnownHosts},
		&SSHConfigCheck{Path: sshConfigPath},
	}
}
