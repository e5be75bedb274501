package dispatch

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rileyhilliard/rterm/internal/errors"
	"go.uber.org/zap"
)

// SyncCommand returns its result immediately.
type SyncCommand struct {
	Name    string
	Usage   string
	Summary string
	Run     func(cmd Command) Result
}

// AsyncCommand may block on the network. Check runs synchronously inside
// Submit so precondition failures are reported before any task starts;
// Run executes on its own goroutine.
type AsyncCommand struct {
	Name    string
	Usage   string
	Summary string
	Check   func(cmd Command) error
	Run     func(ctx context.Context, cmd Command, emit Emitter) Result
}

// CommandInfo describes a registered command for help output.
type CommandInfo struct {
	Name    string
	Usage   string
	Summary string
	Async   bool
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the structured logger.
func WithLogger(l *zap.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = l
	}
}

// Dispatcher holds the sync and async command tables and enforces that at
// most one async task runs at a time.
type Dispatcher struct {
	logger *zap.Logger

	mu      sync.Mutex
	sync    map[string]SyncCommand
	async   map[string]AsyncCommand
	running *Task
}

// New creates an empty dispatcher.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		logger: zap.NewNop(),
		sync:   make(map[string]SyncCommand),
		async:  make(map[string]AsyncCommand),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Register adds a synchronous command. Registering a name twice panics.
func (d *Dispatcher) Register(c SyncCommand) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mustBeFree(c.Name)
	d.sync[c.Name] = c
}

// RegisterAsync adds an asynchronous command. Registering a name twice panics.
func (d *Dispatcher) RegisterAsync(c AsyncCommand) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mustBeFree(c.Name)
	d.async[c.Name] = c
}

func (d *Dispatcher) mustBeFree(name string) {
	if _, ok := d.sync[name]; ok {
		panic(fmt.Sprintf("dispatch: command %q registered twice", name))
	}
	if _, ok := d.async[name]; ok {
		panic(fmt.Sprintf("dispatch: command %q registered twice", name))
	}
}

// Execute runs line through the synchronous table. Blank input yields an
// empty successful result; unknown names a USAGE error.
func (d *Dispatcher) Execute(line string) Result {
	cmd, ok := Parse(line)
	if !ok {
		return OK("")
	}

	d.mu.Lock()
	c, found := d.sync[cmd.Name]
	d.mu.Unlock()
	if !found {
		return Failf(errors.ErrUsage,
			fmt.Sprintf("command not found: %s", cmd.Name),
			"Type 'help' to see available commands")
	}
	return c.Run(cmd)
}

// Submit starts line as an asynchronous task and returns immediately.
// accepted is false when the name is not in the async table, in which case
// the caller falls back to Execute. A failed precondition or a task
// already in flight returns accepted=true with an error and no task.
func (d *Dispatcher) Submit(ctx context.Context, line string) (task *Task, accepted bool, err error) {
	cmd, ok := Parse(line)
	if !ok {
		return nil, false, nil
	}

	d.mu.Lock()
	c, found := d.async[cmd.Name]
	if !found {
		d.mu.Unlock()
		return nil, false, nil
	}
	if d.running != nil {
		busy := d.running.Name()
		d.mu.Unlock()
		return nil, true, errors.New(errors.ErrBusy,
			fmt.Sprintf("%s: busy, '%s' is still running", cmd.Name, busy),
			"Wait for it to finish")
	}
	d.mu.Unlock()

	if c.Check != nil {
		if err := c.Check(cmd); err != nil {
			return nil, true, err
		}
	}

	d.mu.Lock()
	if d.running != nil {
		busy := d.running.Name()
		d.mu.Unlock()
		return nil, true, errors.New(errors.ErrBusy,
			fmt.Sprintf("%s: busy, '%s' is still running", cmd.Name, busy),
			"Wait for it to finish")
	}
	task = newTask(ctx, cmd.Name)
	d.running = task
	d.mu.Unlock()

	d.logger.Debug("task started", zap.String("id", task.ID()), zap.String("command", cmd.Name))
	go d.run(task, c, cmd)
	return task, true, nil
}

func (d *Dispatcher) run(task *Task, c AsyncCommand, cmd Command) {
	var result Result
	defer func() {
		if r := recover(); r != nil {
			result = Failf(errors.ErrUsage, fmt.Sprintf("%s: internal error: %v", cmd.Name, r), "")
		}

		d.mu.Lock()
		if d.running == task {
			d.running = nil
		}
		d.mu.Unlock()

		task.complete(result)
		d.logger.Debug("task finished",
			zap.String("id", task.ID()),
			zap.String("command", cmd.Name),
			zap.Bool("error", result.IsError()),
			zap.String("code", result.Code()),
			zap.Duration("elapsed", time.Since(task.Started())))
	}()

	result = c.Run(task.ctx, cmd, task)
}

// Busy reports whether an async task is in flight.
func (d *Dispatcher) Busy() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running != nil
}

// Running returns the in-flight task, or nil.
func (d *Dispatcher) Running() *Task {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// IsAsync reports whether name is in the async table.
func (d *Dispatcher) IsAsync(name string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.async[name]
	return ok
}

// Commands lists every registered command sorted by name.
func (d *Dispatcher) Commands() []CommandInfo {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]CommandInfo, 0, len(d.sync)+len(d.async))
	for _, c := range d.sync {
		out = append(out, CommandInfo{Name: c.Name, Usage: c.Usage, Summary: c.Summary})
	}
	for _, c := range d.async {
		out = append(out, CommandInfo{Name: c.Name, Usage: c.Usage, Summary: c.Summary, Async: true})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})
	return out
}
