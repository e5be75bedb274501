package dispatch

import (
	"strings"

	"github.com/rileyhilliard/rterm/internal/errors"
)

// Result is the immutable outcome of one command. Err decides success;
// callers never inspect Output to classify it.
type Result struct {
	Output string
	Err    error
}

// OK builds a successful result.
func OK(output string) Result {
	return Result{Output: output}
}

// Fail builds a failed result.
func Fail(err error) Result {
	return Result{Err: err}
}

// Failf builds a failed result from a structured error.
func Failf(code, message, suggestion string) Result {
	return Result{Err: errors.New(code, message, suggestion)}
}

// IsError reports whether the command failed.
func (r Result) IsError() bool {
	return r.Err != nil
}

// Code returns the structured error code, or "" on success.
func (r Result) Code() string {
	if r.Err == nil {
		return ""
	}
	return errors.CodeOf(r.Err)
}

// Text renders the result for display: the output on success, the error
// otherwise (any partial output first).
func (r Result) Text() string {
	if r.Err == nil {
		return r.Output
	}
	msg := strings.TrimRight(r.Err.Error(), "\n")
	if r.Output == "" {
		return msg
	}
	return strings.TrimRight(r.Output, "\n") + "\n" + msg
}
