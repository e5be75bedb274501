// Package console is the orchestration layer between the line-oriented
// input loop and the remote session. It registers the textual command
// surface on a dispatcher, holds the pending connection staged by `ssh`
// and switches input into shell forwarding while a remote shell is open.
package console

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rileyhilliard/rterm/internal/config"
	"github.com/rileyhilliard/rterm/internal/dispatch"
	"github.com/rileyhilliard/rterm/internal/output"
	"github.com/rileyhilliard/rterm/internal/probe"
	"github.com/rileyhilliard/rterm/internal/session"
	"github.com/rileyhilliard/rterm/internal/ui"
	"github.com/rileyhilliard/rterm/pkg/sshutil"
	"go.uber.org/zap"
)

// Option configures a Console.
type Option func(*Console)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(c *Console) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock replaces time.Now, for pending-connection expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Console) { c.now = now }
}

// WithSSHConfigPath sets the ssh_config file used for alias lookups.
func WithSSHConfigPath(path string) Option {
	return func(c *Console) { c.sshConfigPath = path }
}

// WithVersion sets the string reported by `version`.
func WithVersion(v string) Option {
	return func(c *Console) { c.version = v }
}

// WithFetcher sets the HTTP client used by `fetch`.
func WithFetcher(f *probe.Fetcher) Option {
	return func(c *Console) { c.fetcher = f }
}

// WithProbeDialer sets the dialer used by `ping`.
func WithProbeDialer(d sshutil.Dialer) Option {
	return func(c *Console) { c.probeDialer = d }
}

// WithPingInterval sets the pause between `ping -c` attempts.
func WithPingInterval(d time.Duration) Option {
	return func(c *Console) { c.pingInterval = d }
}

// WithClearFunc is called by `clear`.
func WithClearFunc(fn func()) Option {
	return func(c *Console) { c.clear = fn }
}

// WithScrollback sets the transcript `history` reads and `clear` empties.
// It should be fed by the same sink the console renders to.
func WithScrollback(t *output.Transcript) Option {
	return func(c *Console) { c.scrollback = t }
}

// Console routes input lines to commands and renders their results to a sink.
type Console struct {
	sess   *session.Session
	disp   *dispatch.Dispatcher
	sink   output.Sink
	cfg    *config.Config
	logger *zap.Logger

	now           func() time.Time
	sshConfigPath string
	version       string
	fetcher       *probe.Fetcher
	probeDialer   sshutil.Dialer
	pingInterval  time.Duration
	clear         func()
	scrollback    *output.Transcript

	mu         sync.Mutex
	pending    *PendingConnection
	forwarding bool
	shellGen   int
	quit       bool
}

// New wires the command surface onto disp. cfg may be nil for defaults.
func New(sess *session.Session, disp *dispatch.Dispatcher, sink output.Sink, cfg *config.Config, opts ...Option) *Console {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	c := &Console{
		sess:          sess,
		disp:          disp,
		sink:          sink,
		cfg:           cfg,
		logger:        zap.NewNop(),
		now:           time.Now,
		sshConfigPath: sshutil.DefaultSSHConfigPath(),
		version:       "dev",
		probeDialer:   sshutil.NewDialer(cfg.Timeouts.Connect),
		pingInterval:  time.Second,
		clear:         func() {},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.fetcher == nil {
		c.fetcher = probe.NewFetcher(
			probe.WithTimeout(cfg.Timeouts.Exec),
			probe.WithUserAgent("rterm/"+c.version))
	}

	c.registerSSH()
	c.registerSFTP()
	c.registerMisc()
	return c
}

// Job is an accepted asynchronous command. Done closes once every event
// and the final result have been written to the sink.
type Job struct {
	task     *dispatch.Task
	rendered chan struct{}
}

// Task returns the dispatcher task.
func (j *Job) Task() *dispatch.Task { return j.task }

// Done closes after the job's output has been rendered.
func (j *Job) Done() <-chan struct{} { return j.rendered }

// Cancel asks the running command to stop.
func (j *Job) Cancel() { j.task.Cancel() }

// Wait blocks until the job is rendered or ctx is done.
func (j *Job) Wait(ctx context.Context) (dispatch.Result, error) {
	select {
	case <-j.rendered:
		return j.task.Result(), nil
	case <-ctx.Done():
		return dispatch.Result{}, ctx.Err()
	}
}

// Handle processes one input line. Synchronous commands and rejected async
// commands are rendered before Handle returns and yield nil. An accepted
// async command returns its Job immediately.
func (c *Console) Handle(ctx context.Context, line string) *Job {
	if c.Forwarding() {
		if c.forward(line) {
			return nil
		}
	}

	cmd, ok := dispatch.Parse(line)
	if !ok {
		return nil
	}
	c.logger.Debug("command", zap.String("name", cmd.Name), zap.Int("args", len(cmd.Args)))

	task, accepted, err := c.disp.Submit(ctx, line)
	if err != nil {
		c.render(dispatch.Fail(err))
		return nil
	}
	if !accepted {
		c.render(c.disp.Execute(line))
		return nil
	}

	job := &Job{task: task, rendered: make(chan struct{})}
	go c.pump(job)
	return job
}

func (c *Console) pump(job *Job) {
	defer close(job.rendered)
	for ev := range job.task.Events() {
		if ev.Fragment {
			c.sink.WriteFragment(ev.Text, ev.IsError)
		} else {
			c.sink.WriteLine(ev.Text, ev.IsError)
		}
	}
	<-job.task.Done()
	c.render(job.task.Result())
}

// Prompt renders the input prompt for the current mode.
func (c *Console) Prompt() string {
	if c.Forwarding() {
		return ui.RenderPrompt("", true)
	}
	if c.sess.CheckAlive() != nil {
		return ui.RenderPrompt("", false)
	}
	return ui.RenderPrompt(c.sess.Info().String(), false)
}

// Forwarding reports whether input goes straight to the remote shell.
func (c *Console) Forwarding() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.forwarding
}

// Pending returns a copy of the staged connection, if any.
func (c *Console) Pending() (PendingConnection, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return PendingConnection{}, false
	}
	return *c.pending, true
}

// Quitting reports whether the user asked to leave the console.
func (c *Console) Quitting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.quit
}

// Resize forwards a local terminal size change to the session.
func (c *Console) Resize(cols, rows int) {
	c.sess.ResizeTerminal(cols, rows)
}

// Close cancels any running task and tears the session down.
func (c *Console) Close() error {
	if t := c.disp.Running(); t != nil {
		t.Cancel()
	}
	c.mu.Lock()
	c.pending = nil
	c.forwarding = false
	c.mu.Unlock()
	return c.sess.Disconnect()
}

// render writes a result: output lines first, then the error.
func (c *Console) render(r dispatch.Result) {
	if out := strings.TrimRight(r.Output, "\n"); out != "" {
		c.sink.WriteLine(out, false)
	}
	if r.Err != nil {
		c.renderError(r.Err)
	}
}
