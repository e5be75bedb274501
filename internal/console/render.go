package console

import (
	"strings"

	"github.com/rileyhilliard/rterm/internal/errors"
)

// renderError writes err as an error record, its cause indented beneath,
// and the suggestion as plain text.
func (c *Console) renderError(err error) {
	var rErr *errors.Error
	if !errors.As(err, &rErr) {
		c.sink.WriteLine(firstLine(err.Error()), true)
		return
	}

	c.sink.WriteLine(rErr.Message, true)
	if rErr.Cause != nil {
		var nested *errors.Error
		var exitErr *errors.ExitError
		switch {
		case errors.As(rErr.Cause, &nested):
			c.sink.WriteLine("  "+nested.Message, true)
		case errors.As(rErr.Cause, &exitErr):
			// The message already carries the status.
		default:
			c.sink.WriteLine("  "+firstLine(rErr.Cause.Error()), true)
		}
	}
	if rErr.Suggestion != "" {
		c.sink.WriteLine("  "+rErr.Suggestion, false)
	}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}
