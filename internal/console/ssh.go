package console

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/rileyhilliard/rterm/internal/config"
	"github.com/rileyhilliard/rterm/internal/dispatch"
	"github.com/rileyhilliard/rterm/internal/errors"
	"github.com/rileyhilliard/rterm/internal/session"
	"github.com/rileyhilliard/rterm/internal/ui"
	"github.com/rileyhilliard/rterm/pkg/sshutil"
	"go.uber.org/zap"
)

func (c *Console) registerSSH() {
	c.disp.Register(dispatch.SyncCommand{
		Name:    "ssh",
		Usage:   "ssh user@host [-p port]",
		Summary: "Stage a connection; an ssh_config alias works too",
		Run:     c.cmdSSH,
	})
	c.disp.RegisterAsync(dispatch.AsyncCommand{
		Name:    "ssh-login",
		Usage:   "ssh-login <password>",
		Summary: "Authenticate the staged connection with a password",
		Check: func(cmd dispatch.Command) error {
			if _, err := c.takePending(cmd.Name); err != nil {
				return err
			}
			if cmd.Raw == "" {
				return errors.New(errors.ErrUsage, "ssh-login: missing password", "Use: ssh-login <password>")
			}
			return nil
		},
		Run: c.cmdLogin,
	})
	c.disp.RegisterAsync(dispatch.AsyncCommand{
		Name:    "ssh-key-login",
		Usage:   "ssh-key-login [keyfile] [passphrase]",
		Summary: "Authenticate the staged connection with a key or ssh-agent",
		Check: func(cmd dispatch.Command) error {
			_, err := c.takePending(cmd.Name)
			return err
		},
		Run: c.cmdKeyLogin,
	})
	c.disp.RegisterAsync(dispatch.AsyncCommand{
		Name:    "ssh-exec",
		Usage:   "ssh-exec <command...>",
		Summary: "Run a remote command and show its output when it finishes",
		Check:   c.checkRemoteCommand,
		Run:     c.cmdExec,
	})
	c.disp.RegisterAsync(dispatch.AsyncCommand{
		Name:    "ssh-run",
		Usage:   "ssh-run <command...>",
		Summary: "Run a remote command and stream its output",
		Check:   c.checkRemoteCommand,
		Run:     c.cmdRun,
	})
	c.disp.RegisterAsync(dispatch.AsyncCommand{
		Name:    "ssh-shell",
		Usage:   "ssh-shell",
		Summary: "Open an interactive shell and forward input to it",
		Check: func(dispatch.Command) error {
			if err := c.sess.CheckAlive(); err != nil {
				return err
			}
			if c.sess.IsShellActive() {
				return errors.New(errors.ErrState, "ssh: shell already active", "Leave it first with: ssh-shell-end")
			}
			return nil
		},
		Run: c.cmdShell,
	})
	c.disp.Register(dispatch.SyncCommand{
		Name:    "ssh-shell-end",
		Usage:   "ssh-shell-end",
		Summary: "Close the interactive shell",
		Run: func(dispatch.Command) dispatch.Result {
			return dispatch.OK(c.endShell())
		},
	})
	c.disp.Register(dispatch.SyncCommand{
		Name:    "ssh-resize",
		Usage:   "ssh-resize <cols> <rows>",
		Summary: "Set the remote terminal size",
		Run:     c.cmdResize,
	})
	c.disp.Register(dispatch.SyncCommand{
		Name:    "ssh-info",
		Usage:   "ssh-info",
		Summary: "Show the connection and which sub-sessions are open",
		Run:     c.cmdInfo,
	})
	c.disp.Register(dispatch.SyncCommand{
		Name:    "ssh-status",
		Usage:   "ssh-status",
		Summary: "Show the session state and recent transitions",
		Run:     c.cmdStatus,
	})
	c.disp.Register(dispatch.SyncCommand{
		Name:    "ssh-fingerprint",
		Usage:   "ssh-fingerprint",
		Summary: "Show the remote host key fingerprint",
		Run: func(dispatch.Command) dispatch.Result {
			if err := c.sess.CheckAlive(); err != nil {
				return dispatch.Fail(err)
			}
			return dispatch.OK(fmt.Sprintf("Host key fingerprint for %s: %s", c.sess.Info(), c.sess.Fingerprint()))
		},
	})
	c.disp.Register(dispatch.SyncCommand{
		Name:    "ssh-hosts",
		Usage:   "ssh-hosts",
		Summary: "List Host aliases from ~/.ssh/config",
		Run:     c.cmdHosts,
	})
	c.disp.Register(dispatch.SyncCommand{
		Name:    "exit",
		Usage:   "exit",
		Summary: "Disconnect, or leave rterm when not connected",
		Run:     c.cmdExit,
	})
	c.disp.Register(dispatch.SyncCommand{
		Name:    "quit",
		Usage:   "quit",
		Summary: "Disconnect and leave rterm",
		Run: func(dispatch.Command) dispatch.Result {
			c.mu.Lock()
			c.quit = true
			c.mu.Unlock()
			return dispatch.OK("")
		},
	})
}

func (c *Console) cmdSSH(cmd dispatch.Command) dispatch.Result {
	alive := c.sess.CheckAlive()
	if alive == nil {
		return dispatch.OK(fmt.Sprintf("Already connected to %s\nDisconnect first with: exit", c.sess.Info()))
	}

	pending, err := c.parseTarget(cmd.Args)
	if err != nil {
		return dispatch.Fail(err)
	}
	c.stagePending(pending)
	c.logger.Info("connection staged",
		zap.String("host", pending.Host),
		zap.Int("port", pending.Port),
		zap.String("user", pending.User))

	var b strings.Builder
	if errors.IsCode(alive, errors.ErrDisconnected) {
		fmt.Fprintf(&b, "%s Previous session disconnected\n", ui.SymbolFail)
	}
	fmt.Fprintf(&b, "%s Connecting to %s\n", ui.SymbolPending, pending)
	if pending.IdentityFile != "" {
		fmt.Fprintf(&b, "Authenticate with: ssh-key-login (uses %s) or ssh-login <password>", pending.IdentityFile)
	} else {
		b.WriteString("Enter password with: ssh-login <password>")
	}
	return dispatch.OK(b.String())
}

func (c *Console) cmdLogin(ctx context.Context, cmd dispatch.Command, emit dispatch.Emitter) dispatch.Result {
	pending, err := c.takePending(cmd.Name)
	if err != nil {
		return dispatch.Fail(err)
	}
	emit.Emit(fmt.Sprintf("Authenticating %s...", pending), false)

	if err := c.sess.Connect(ctx, pending.Target(), cmd.Raw); err != nil {
		return dispatch.Fail(err)
	}
	c.clearPending(pending)
	return dispatch.OK(c.connectedMessage())
}

func (c *Console) cmdKeyLogin(ctx context.Context, cmd dispatch.Command, emit dispatch.Emitter) dispatch.Result {
	pending, err := c.takePending(cmd.Name)
	if err != nil {
		return dispatch.Fail(err)
	}

	key := session.KeyAuth{KeyFile: pending.IdentityFile}
	if len(cmd.Args) > 0 {
		key.KeyFile = config.ExpandTilde(cmd.Args[0])
	}
	if len(cmd.Args) > 1 {
		key.Passphrase = []byte(strings.Join(cmd.Args[1:], " "))
	}
	defer sshutil.WipeBytes(key.Passphrase)

	if key.KeyFile == "" && !c.cfg.SSH.UseAgent {
		return dispatch.Failf(errors.ErrUsage,
			"ssh-key-login: no key file given and ssh-agent is disabled",
			"Use: ssh-key-login <keyfile> [passphrase]")
	}

	source := key.KeyFile
	if source == "" {
		source = "ssh-agent"
	}
	emit.Emit(fmt.Sprintf("Authenticating %s with %s...", pending, source), false)

	if err := c.sess.ConnectWithKey(ctx, pending.Target(), key); err != nil {
		return dispatch.Fail(err)
	}
	c.clearPending(pending)
	return dispatch.OK(c.connectedMessage())
}

func (c *Console) connectedMessage() string {
	return fmt.Sprintf("%s Connected to %s\nHost key fingerprint: %s",
		ui.SymbolComplete, c.sess.Info(), c.sess.Fingerprint())
}

func (c *Console) checkRemoteCommand(cmd dispatch.Command) error {
	if cmd.Raw == "" {
		return errors.New(errors.ErrUsage,
			fmt.Sprintf("%s: missing command", cmd.Name),
			fmt.Sprintf("Use: %s <command...>", cmd.Name))
	}
	return c.sess.CheckAlive()
}

func (c *Console) cmdExec(ctx context.Context, cmd dispatch.Command, _ dispatch.Emitter) dispatch.Result {
	res, err := c.sess.ExecuteCommand(ctx, cmd.Raw)
	if err != nil {
		return dispatch.Fail(err)
	}
	return dispatch.Result{Output: res.Output(), Err: exitError(res.ExitCode)}
}

func (c *Console) cmdRun(ctx context.Context, cmd dispatch.Command, emit dispatch.Emitter) dispatch.Result {
	res, err := c.sess.ExecuteCommandStreaming(ctx, cmd.Raw, func(ch session.Chunk) {
		emit.EmitFragment(ch.Data, ch.Stderr)
	})
	if err != nil {
		return dispatch.Fail(err)
	}
	if res.Stdout == "" && res.Stderr == "" {
		return dispatch.Result{Output: session.NoOutput, Err: exitError(res.ExitCode)}
	}
	return dispatch.Result{Err: exitError(res.ExitCode)}
}

// exitError is nil for status 0.
func exitError(code int) error {
	if code == 0 {
		return nil
	}
	return errors.WrapWithCode(errors.NewExitError(code), errors.ErrExec,
		fmt.Sprintf("exit code %d", code), "")
}

func (c *Console) cmdShell(_ context.Context, _ dispatch.Command, _ dispatch.Emitter) dispatch.Result {
	c.mu.Lock()
	c.shellGen++
	gen := c.shellGen
	c.forwarding = true
	c.mu.Unlock()

	var started atomic.Bool
	err := c.sess.StartShell(session.ShellHandlers{
		Output: func(data []byte) {
			c.sink.WriteFragment(string(data), false)
		},
		Error: func(err error) {
			if started.Load() {
				c.renderError(err)
			}
		},
		Closed: func() {
			c.shellClosed(gen)
		},
	})
	if err != nil {
		c.mu.Lock()
		if c.shellGen == gen {
			c.forwarding = false
		}
		c.mu.Unlock()
		return dispatch.Fail(err)
	}
	started.Store(true)

	return dispatch.OK("Shell started. Type 'exit' to leave; ctrl-c, ctrl-d, ctrl-z and tab send control keys.")
}

func (c *Console) cmdResize(cmd dispatch.Command) dispatch.Result {
	if len(cmd.Args) != 2 {
		return dispatch.Failf(errors.ErrUsage, "ssh-resize: need columns and rows", "Use: ssh-resize <cols> <rows>")
	}
	cols, errC := strconv.Atoi(cmd.Args[0])
	rows, errR := strconv.Atoi(cmd.Args[1])
	if errC != nil || errR != nil || cols <= 0 || rows <= 0 {
		return dispatch.Failf(errors.ErrUsage,
			fmt.Sprintf("ssh-resize: invalid size %sx%s", cmd.Args[0], cmd.Args[1]),
			"Both values must be positive integers")
	}
	c.sess.ResizeTerminal(cols, rows)
	return dispatch.OK(fmt.Sprintf("Terminal size %dx%d", cols, rows))
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func (c *Console) cmdInfo(dispatch.Command) dispatch.Result {
	// A dead transport is torn down here so the snapshot below reflects it.
	_ = c.sess.CheckAlive()

	var b strings.Builder
	info := c.sess.Info()
	if info.State == session.StateConnected {
		fmt.Fprintf(&b, "Connected: %s\n", info)
		fmt.Fprintf(&b, "Shell active: %s\n", yesNo(info.ShellActive))
		fmt.Fprintf(&b, "SFTP active: %s\n", yesNo(info.FileTransferActive))
		fmt.Fprintf(&b, "Connected since: %s", info.ConnectedAt.Format("15:04:05"))
	} else {
		fmt.Fprintf(&b, "Not connected (%s)", info.State)
	}
	if p, ok := c.Pending(); ok {
		fmt.Fprintf(&b, "\nPending: %s", p)
	}
	return dispatch.OK(b.String())
}

func (c *Console) cmdStatus(dispatch.Command) dispatch.Result {
	var b strings.Builder
	info := c.sess.Info()
	fmt.Fprintf(&b, "State: %s", info.State)
	if info.Target.Host != "" {
		fmt.Fprintf(&b, " (%s)", info.Target)
	}
	if err := c.sess.LastError(); err != nil {
		msg := err.Error()
		var rErr *errors.Error
		if errors.As(err, &rErr) {
			msg = rErr.Message
		}
		fmt.Fprintf(&b, "\nLast error: %s", msg)
	}

	transitions := c.sess.Transitions()
	if len(transitions) > 0 {
		b.WriteString("\nTransitions:")
		for _, t := range transitions {
			fmt.Fprintf(&b, "\n  %s  %s -> %s", t.At.Format("15:04:05.000"), t.From, t.To)
			if t.Reason != "" {
				fmt.Fprintf(&b, "  (%s)", t.Reason)
			}
		}
	}
	return dispatch.OK(b.String())
}

func (c *Console) cmdHosts(dispatch.Command) dispatch.Result {
	hosts, err := sshutil.ParseSSHConfigFile(c.sshConfigPath)
	if err != nil {
		return dispatch.Fail(errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("ssh-hosts: can't read %s", c.sshConfigPath), ""))
	}
	if len(hosts) == 0 {
		return dispatch.OK(fmt.Sprintf("No hosts in %s", c.sshConfigPath))
	}

	rows := make([][]string, len(hosts))
	for i, h := range hosts {
		rows[i] = []string{h.Alias, h.Description()}
	}
	return dispatch.OK(ui.RenderSimpleTable([]ui.TableColumn{{Title: "ALIAS"}, {Title: "DETAILS"}}, rows))
}

func (c *Console) cmdExit(dispatch.Command) dispatch.Result {
	c.mu.Lock()
	c.pending = nil
	c.mu.Unlock()

	if c.sess.State() == session.StateDisconnected {
		c.mu.Lock()
		c.quit = true
		c.mu.Unlock()
		return dispatch.OK("")
	}

	target := c.sess.Info().Target
	c.endShell()
	if err := c.sess.Disconnect(); err != nil {
		return dispatch.Fail(err)
	}
	return dispatch.OK(fmt.Sprintf("Disconnected from %s", target))
}
