package ui

import (
	"io"
	"strings"
	"sync"
)

// Printer writes console records to w. It satisfies output.Sink.
type Printer struct {
	mu   sync.Mutex
	w    io.Writer
	open bool // a fragment without trailing newline is on screen
}

// NewPrinter creates a Printer writing to w.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// WriteLine writes one complete record. Error records get SymbolFail and
// the error color.
func (p *Printer) WriteLine(text string, isError bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closeFragment()
	if isError {
		text = ErrorStyle().Render(SymbolFail + " " + text)
	}
	_, _ = io.WriteString(p.w, text+"\n")
}

// WriteFragment writes raw text, styled red when it came from stderr.
func (p *Printer) WriteFragment(text string, isError bool) {
	if text == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if isError {
		_, _ = io.WriteString(p.w, ErrorStyle().Render(text))
	} else {
		_, _ = io.WriteString(p.w, text)
	}
	p.open = !strings.HasSuffix(text, "\n")
}

// Prompt writes the input prompt. The user's Enter ends the line, so the
// next record needs no separator.
func (p *Printer) Prompt(prompt string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closeFragment()
	_, _ = io.WriteString(p.w, prompt)
}

// closeFragment ends an unterminated fragment so the next record starts
// on its own line.
func (p *Printer) closeFragment() {
	if p.open {
		_, _ = io.WriteString(p.w, "\n")
		p.open = false
	}
}
