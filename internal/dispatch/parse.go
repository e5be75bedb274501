// Package dispatch routes input lines to command handlers. Synchronous
// handlers return a Result directly; asynchronous ones run as a Task that
// streams events and completes exactly once.
package dispatch

import "strings"

// Command is a parsed input line.
type Command struct {
	// Name is the lowercased first token.
	Name string

	// Args are the remaining space-delimited tokens. There is no quoting.
	Args []string

	// Raw is everything after the name with surrounding space trimmed and
	// inner spacing preserved, for commands that pass text through.
	Raw string

	// Line is the original trimmed input.
	Line string
}

// Arg returns the i-th argument or "" when there are fewer.
func (c Command) Arg(i int) string {
	if i < 0 || i >= len(c.Args) {
		return ""
	}
	return c.Args[i]
}

// Parse splits line into a Command. ok is false for blank input.
func Parse(line string) (Command, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return Command{}, false
	}

	fields := strings.Fields(trimmed)
	cmd := Command{
		Name: strings.ToLower(fields[0]),
		Args: fields[1:],
		Line: trimmed,
	}
	if idx := strings.IndexAny(trimmed, " \t"); idx >= 0 {
		cmd.Raw = strings.TrimSpace(trimmed[idx:])
	}
	return cmd, true
}
