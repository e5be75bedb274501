package output

import (
	"strings"
	"sync"
)

// DefaultScrollback is the record limit used when none is given.
const DefaultScrollback = 5000

// Record is one display row.
type Record struct {
	Text    string
	IsError bool

	// Open records still accept fragments.
	Open bool
}

// Transcript accumulates display records. Fragments are appended to the
// open record so a remote line split across reads stays on one row.
// The oldest records are dropped past the scrollback limit.
type Transcript struct {
	mu      sync.Mutex
	records []Record
	limit   int
}

// NewTranscript creates a transcript holding at most limit records.
// limit <= 0 uses DefaultScrollback.
func NewTranscript(limit int) *Transcript {
	if limit <= 0 {
		limit = DefaultScrollback
	}
	return &Transcript{limit: limit}
}

// WriteLine closes any open record and appends text as closed records,
// one per embedded line.
func (t *Transcript) WriteLine(text string, isError bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closeOpen()
	for _, line := range strings.Split(strings.TrimSuffix(text, "\n"), "\n") {
		t.append(Record{Text: line, IsError: isError})
	}
}

// WriteFragment appends text to the open record. Each newline closes the
// current record; text after the last newline opens a new one. A change
// of severity also starts a new record.
func (t *Transcript) WriteFragment(text string, isError bool) {
	if text == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if n := len(t.records); n > 0 && t.records[n-1].Open && t.records[n-1].IsError != isError {
		t.records[n-1].Open = false
	}

	parts := strings.Split(text, "\n")
	for i, part := range parts {
		last := i == len(parts)-1
		if last && part == "" {
			break
		}
		if n := len(t.records); n > 0 && t.records[n-1].Open {
			t.records[n-1].Text += part
		} else {
			t.append(Record{Text: part, IsError: isError, Open: true})
		}
		if !last {
			t.records[len(t.records)-1].Open = false
		}
	}
}

// Records returns a copy of the current records, oldest first.
func (t *Transcript) Records() []Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Record, len(t.records))
	copy(out, t.records)
	return out
}

// Lines returns the text of every record.
func (t *Transcript) Lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.records))
	for i, r := range t.records {
		out[i] = r.Text
	}
	return out
}

// String joins all records with newlines.
func (t *Transcript) String() string {
	return strings.Join(t.Lines(), "\n")
}

// Len returns the number of records.
func (t *Transcript) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.records)
}

// Clear removes every record.
func (t *Transcript) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records = nil
}

func (t *Transcript) closeOpen() {
	if n := len(t.records); n > 0 {
		t.records[n-1].Open = false
	}
}

func (t *Transcript) append(r Record) {
	t.records = append(t.records, r)
	if over := len(t.records) - t.limit; over > 0 {
		t.records = append(t.records[:0], t.records[over:]...)
	}
}
