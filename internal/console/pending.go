package console

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rileyhilliard/rterm/internal/errors"
	"github.com/rileyhilliard/rterm/internal/session"
	"github.com/rileyhilliard/rterm/pkg/sshutil"
)

// PendingConnection is a target staged by `ssh` and waiting for
// credentials from `ssh-login` or `ssh-key-login`.
type PendingConnection struct {
	Host string
	Port int
	User string

	// IdentityFile comes from ssh_config when the target was an alias.
	IdentityFile string

	CreatedAt time.Time
}

// Target converts the pending parameters into a session target.
func (p PendingConnection) Target() session.Target {
	return session.Target{Host: p.Host, Port: p.Port, User: p.User}
}

// String returns user@host:port.
func (p PendingConnection) String() string {
	return p.Target().String()
}

// Expired reports whether the pending connection is older than ttl.
// A non-positive ttl never expires.
func (p PendingConnection) Expired(now time.Time, ttl time.Duration) bool {
	return ttl > 0 && now.Sub(p.CreatedAt) > ttl
}

// parseTarget reads `user@host [-p port]` or `alias [-p port]`. An explicit
// -p wins over a port from ssh_config.
func (c *Console) parseTarget(args []string) (PendingConnection, error) {
	usage := func(msg string) error {
		return errors.New(errors.ErrUsage, msg, "Use: ssh user@host [-p port]")
	}

	var target string
	port := 0
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "-p":
			if i+1 >= len(args) {
				return PendingConnection{}, usage("ssh: -p needs a port")
			}
			i++
			p, err := parsePort(args[i])
			if err != nil {
				return PendingConnection{}, err
			}
			port = p
		case strings.HasPrefix(arg, "-p") && len(arg) > 2:
			p, err := parsePort(arg[2:])
			if err != nil {
				return PendingConnection{}, err
			}
			port = p
		case target == "":
			target = arg
		default:
			return PendingConnection{}, usage(fmt.Sprintf("ssh: unexpected argument %q", arg))
		}
	}
	if target == "" {
		return PendingConnection{}, usage("ssh: missing target")
	}

	pending := PendingConnection{CreatedAt: c.now()}

	if user, host, ok := strings.Cut(target, "@"); ok {
		if user == "" || host == "" {
			return PendingConnection{}, usage(fmt.Sprintf("ssh: invalid target %q", target))
		}
		pending.User = user
		pending.Host = host
	} else {
		entry, found, err := sshutil.LookupHost(c.sshConfigPath, target)
		if err != nil {
			return PendingConnection{}, errors.WrapWithCode(err, errors.ErrConfig,
				fmt.Sprintf("ssh: can't read %s", c.sshConfigPath),
				"Fix the file or use: ssh user@host [-p port]")
		}
		if !found {
			return PendingConnection{}, errors.New(errors.ErrUsage,
				fmt.Sprintf("ssh: %q is not user@host and not a Host in %s", target, c.sshConfigPath),
				"Use: ssh user@host [-p port]")
		}
		if entry.User == "" {
			return PendingConnection{}, errors.New(errors.ErrUsage,
				fmt.Sprintf("ssh: Host %s has no User", entry.Alias),
				fmt.Sprintf("Add a User line for it or run: ssh user@%s", target))
		}
		pending.User = entry.User
		pending.Host = entry.Hostname
		if pending.Host == "" {
			pending.Host = entry.Alias
		}
		pending.IdentityFile = entry.IdentityFile
		if port == 0 && entry.Port != "" {
			p, err := parsePort(entry.Port)
			if err != nil {
				return PendingConnection{}, err
			}
			port = p
		}
	}

	if host, p, ok := splitHostPort(pending.Host); ok {
		pending.Host = host
		if port == 0 {
			port = p
		}
	}
	if port == 0 {
		port = c.cfg.SSH.DefaultPort
	}
	pending.Port = port
	return pending, nil
}

func parsePort(s string) (int, error) {
	p, err := strconv.Atoi(s)
	if err != nil || p < 1 || p > 65535 {
		return 0, errors.New(errors.ErrUsage,
			fmt.Sprintf("ssh: invalid port %q", s),
			"Ports run from 1 to 65535")
	}
	return p, nil
}

// splitHostPort accepts host:port with a numeric port. Bare IPv6 literals
// have more than one colon and are left alone.
func splitHostPort(s string) (string, int, bool) {
	i := strings.LastIndexByte(s, ':')
	if i <= 0 || strings.Count(s, ":") > 1 {
		return s, 0, false
	}
	p, err := strconv.Atoi(s[i+1:])
	if err != nil || p < 1 || p > 65535 {
		return s, 0, false
	}
	return s[:i], p, true
}

// stagePending replaces any pending connection.
func (c *Console) stagePending(p PendingConnection) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = &p
}

// takePending returns the live pending connection. A stale one is cleared
// and reported as an error.
func (c *Console) takePending(command string) (*PendingConnection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending == nil {
		return nil, errors.New(errors.ErrState,
			fmt.Sprintf("%s: no pending connection", command),
			"Start with: ssh user@host [-p port]")
	}
	if c.pending.Expired(c.now(), c.cfg.Timeouts.Pending) {
		stale := c.pending.String()
		c.pending = nil
		return nil, errors.New(errors.ErrState,
			fmt.Sprintf("%s: pending connection to %s expired", command, stale),
			"Start again with: ssh user@host [-p port]")
	}
	return c.pending, nil
}

// clearPending drops p if it is still the pending connection.
func (c *Console) clearPending(p *PendingConnection) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == p {
		c.pending = nil
	}
}
