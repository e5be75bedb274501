package console

import "strings"

// Control-key tokens recognized while forwarding to a shell.
var controlTokens = map[string]byte{
	"ctrl-c": 0x03,
	"ctrl-d": 0x04,
	"ctrl-z": 0x1a,
	"tab":    0x09,
}

// exitTokens leave shell forwarding instead of reaching the remote.
var exitTokens = map[string]bool{
	"exit":          true,
	"logout":        true,
	"ssh-shell-end": true,
}

// forward sends line to the active shell. It returns false when the shell
// is already gone, after leaving forwarding, so the line is handled as a
// command instead.
func (c *Console) forward(line string) bool {
	if !c.sess.IsShellActive() {
		c.mu.Lock()
		was := c.forwarding
		c.forwarding = false
		c.shellGen++
		c.mu.Unlock()
		if was {
			c.sink.WriteLine("Shell closed", false)
		}
		return false
	}

	token := strings.ToLower(strings.TrimSpace(line))
	if exitTokens[token] {
		c.sink.WriteLine(c.endShell(), false)
		return true
	}
	if b, ok := controlTokens[token]; ok {
		c.sess.WriteToShell([]byte{b})
		return true
	}
	c.sess.WriteToShell([]byte(line + "\n"))
	return true
}

// endShell leaves forwarding and closes the shell. A Closed notification
// from the shell being closed here is ignored.
func (c *Console) endShell() string {
	c.mu.Lock()
	c.forwarding = false
	c.shellGen++
	c.mu.Unlock()

	if !c.sess.IsShellActive() {
		_ = c.sess.CloseShell()
		return "No active shell"
	}
	_ = c.sess.CloseShell()
	return "Shell closed"
}

// shellClosed handles the remote side ending shell gen.
func (c *Console) shellClosed(gen int) {
	c.mu.Lock()
	current := gen == c.shellGen && c.forwarding
	if current {
		c.forwarding = false
	}
	c.mu.Unlock()

	if current {
		c.sink.WriteLine("Remote shell closed", false)
	}
}
