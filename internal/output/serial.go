package output

import "sync"

// serialQueue bounds writes waiting for the coordination goroutine.
const serialQueue = 1024

type sinkEvent struct {
	text     string
	isError  bool
	fragment bool
	barrier  chan struct{}
}

// SerialSink forwards every write to next from a single goroutine, so
// output from concurrent tasks and shell readers never interleaves inside
// next. Writes keep their submission order.
type SerialSink struct {
	next   Sink
	events chan sinkEvent
	done   chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewSerialSink starts the coordination goroutine. Call Close to stop it.
func NewSerialSink(next Sink) *SerialSink {
	s := &SerialSink{
		next:   next,
		events: make(chan sinkEvent, serialQueue),
		done:   make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *SerialSink) run() {
	defer close(s.done)
	for ev := range s.events {
		switch {
		case ev.barrier != nil:
			close(ev.barrier)
		case ev.fragment:
			s.next.WriteFragment(ev.text, ev.isError)
		default:
			s.next.WriteLine(ev.text, ev.isError)
		}
	}
}

func (s *SerialSink) send(ev sinkEvent) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false
	}
	s.events <- ev
	return true
}

// WriteLine queues a complete record.
func (s *SerialSink) WriteLine(text string, isError bool) {
	s.send(sinkEvent{text: text, isError: isError})
}

// WriteFragment queues unframed text.
func (s *SerialSink) WriteFragment(text string, isError bool) {
	s.send(sinkEvent{text: text, isError: isError, fragment: true})
}

// Flush blocks until every write queued before it has reached next.
func (s *SerialSink) Flush() {
	barrier := make(chan struct{})
	if s.send(sinkEvent{barrier: barrier}) {
		<-barrier
	}
}

// Close drains queued writes and stops the goroutine. Later writes are dropped.
func (s *SerialSink) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.events)
	s.mu.Unlock()
	<-s.done
}
