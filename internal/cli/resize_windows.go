//go:build windows

package cli

// watchResize is a no-op: Windows has no SIGWINCH.
func watchResize(int, func(cols, rows int)) func() {
	return func() {}
}
