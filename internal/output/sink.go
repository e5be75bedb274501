// Package output models what the console shows: a sink contract for
// severity-tagged text, a transcript of display records and a sink that
// funnels every write through one goroutine.
package output

// Sink receives text to display. WriteLine emits a complete record.
// WriteFragment emits unframed text (remote shell output) that continues
// the currently open record; a newline in the text closes it.
type Sink interface {
	WriteLine(text string, isError bool)
	WriteFragment(text string, isError bool)
}

// Multi fans writes out to every sink in order.
func Multi(sinks ...Sink) Sink {
	return multi(sinks)
}

type multi []Sink

func (m multi) WriteLine(text string, isError bool) {
	for _, s := range m {
		s.WriteLine(text, isError)
	}
}

func (m multi) WriteFragment(text string, isError bool) {
	for _, s := range m {
		s.WriteFragment(text, isError)
	}
}
