package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// taskEventBuffer is how many events may be pending before Emit blocks.
const taskEventBuffer = 256

// Event is one piece of streamed output from a running task.
type Event struct {
	Text    string
	IsError bool

	// Fragment events carry unframed text to append to the open record.
	Fragment bool
}

// Emitter is handed to async handlers for streaming output.
type Emitter interface {
	Emit(text string, isError bool)
	EmitFragment(text string, isError bool)
}

// Task is the handle for one asynchronous command. Events arrive on
// Events() in emission order; the channel closes after the last one and
// then Done() closes with the Result available.
type Task struct {
	id      string
	name    string
	started time.Time

	ctx    context.Context
	cancel context.CancelFunc
	events chan Event
	done   chan struct{}

	mu     sync.RWMutex
	closed bool
	result Result
}

func newTask(ctx context.Context, name string) *Task {
	ctx, cancel := context.WithCancel(ctx)
	return &Task{
		id:      uuid.NewString(),
		name:    name,
		started: time.Now(),
		ctx:     ctx,
		cancel:  cancel,
		events:  make(chan Event, taskEventBuffer),
		done:    make(chan struct{}),
	}
}

// ID returns the unique task id.
func (t *Task) ID() string { return t.id }

// Name returns the command name.
func (t *Task) Name() string { return t.name }

// Started returns when the task was submitted.
func (t *Task) Started() time.Time { return t.started }

// Events streams the task's output.
func (t *Task) Events() <-chan Event { return t.events }

// Done closes when the task has completed.
func (t *Task) Done() <-chan struct{} { return t.done }

// Result returns the final result. It is only meaningful after Done.
func (t *Task) Result() Result {
	select {
	case <-t.done:
		return t.result
	default:
		return Result{}
	}
}

// Wait blocks until the task completes or ctx is done. Pending events are
// not drained; consume Events() concurrently if the task emits a lot.
func (t *Task) Wait(ctx context.Context) (Result, error) {
	select {
	case <-t.done:
		return t.result, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Cancel asks the task to stop. The handler sees its context cancelled and
// the task still completes exactly once.
func (t *Task) Cancel() {
	t.cancel()
}

// Emit implements Emitter.
func (t *Task) Emit(text string, isError bool) {
	t.send(Event{Text: text, IsError: isError})
}

// EmitFragment implements Emitter.
func (t *Task) EmitFragment(text string, isError bool) {
	t.send(Event{Text: text, IsError: isError, Fragment: true})
}

func (t *Task) send(ev Event) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		return
	}
	// Buffer space wins over cancellation so a cancelled task keeps every
	// event that fits; only a full stream is abandoned.
	select {
	case t.events <- ev:
		return
	default:
	}
	select {
	case t.events <- ev:
	case <-t.ctx.Done():
	}
}

// complete closes the event stream then publishes the result. Only the
// first call counts. Emitters still blocked on a full stream are released
// by cancelling the task context first.
func (t *Task) complete(r Result) {
	t.cancel()
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	close(t.events)
	t.result = r
	close(t.done)
}
