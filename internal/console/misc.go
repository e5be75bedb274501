package console

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rileyhilliard/rterm/internal/dispatch"
	"github.com/rileyhilliard/rterm/internal/errors"
	"github.com/rileyhilliard/rterm/internal/probe"
	"github.com/rileyhilliard/rterm/internal/ui"
)

// maxPingCount bounds `ping -c`.
const maxPingCount = 100

// defaultHistory is how many lines a bare `history` shows.
const defaultHistory = 20

func (c *Console) registerMisc() {
	c.disp.Register(dispatch.SyncCommand{
		Name:    "help",
		Usage:   "help [command]",
		Summary: "List commands or show one command's usage",
		Run:     c.cmdHelp,
	})
	c.disp.Register(dispatch.SyncCommand{
		Name:    "echo",
		Usage:   "echo <text...>",
		Summary: "Print text",
		Run: func(cmd dispatch.Command) dispatch.Result {
			return dispatch.OK(cmd.Raw)
		},
	})
	c.disp.Register(dispatch.SyncCommand{
		Name:    "clear",
		Usage:   "clear",
		Summary: "Clear the screen",
		Run: func(dispatch.Command) dispatch.Result {
			if c.scrollback != nil {
				c.scrollback.Clear()
			}
			c.clear()
			return dispatch.OK("")
		},
	})
	c.disp.Register(dispatch.SyncCommand{
		Name:    "history",
		Usage:   "history [n]",
		Summary: "Show the last n lines of output (20 by default)",
		Run:     c.cmdHistory,
	})
	c.disp.Register(dispatch.SyncCommand{
		Name:    "version",
		Usage:   "version",
		Summary: "Show the rterm version",
		Run: func(dispatch.Command) dispatch.Result {
			return dispatch.OK("rterm " + c.version)
		},
	})
	c.disp.RegisterAsync(dispatch.AsyncCommand{
		Name:    "ping",
		Usage:   "ping <host[:port]> [-c count]",
		Summary: "Check that a TCP port accepts connections (port 22 by default)",
		Check: func(cmd dispatch.Command) error {
			_, _, err := parsePing(cmd)
			return err
		},
		Run: c.cmdPing,
	})
	c.disp.RegisterAsync(dispatch.AsyncCommand{
		Name:    "fetch",
		Usage:   "fetch <url>",
		Summary: "HTTP GET a URL and show the status and the start of the body",
		Check: func(cmd dispatch.Command) error {
			_, err := probe.NormalizeURL(cmd.Arg(0))
			return err
		},
		Run: c.cmdFetch,
	})
}

func (c *Console) cmdHelp(cmd dispatch.Command) dispatch.Result {
	commands := c.disp.Commands()

	if name := strings.ToLower(cmd.Arg(0)); name != "" {
		for _, info := range commands {
			if info.Name == name {
				return dispatch.OK(fmt.Sprintf("%s\n  %s", info.Usage, info.Summary))
			}
		}
		return dispatch.Failf(errors.ErrUsage,
			fmt.Sprintf("help: no such command: %s", name),
			"Type 'help' to see available commands")
	}

	rows := make([][]string, len(commands))
	for i, info := range commands {
		rows[i] = []string{info.Usage, info.Summary}
	}
	return dispatch.OK(ui.RenderSimpleTable([]ui.TableColumn{{Title: "COMMAND"}, {Title: "DESCRIPTION"}}, rows))
}

func (c *Console) cmdHistory(cmd dispatch.Command) dispatch.Result {
	n := defaultHistory
	if arg := cmd.Arg(0); arg != "" {
		v, err := strconv.Atoi(arg)
		if err != nil || v < 1 {
			return dispatch.Failf(errors.ErrUsage,
				fmt.Sprintf("history: invalid count %q", arg),
				"Use: history [n] with n a positive integer")
		}
		n = v
	}
	if c.scrollback == nil || c.scrollback.Len() == 0 {
		return dispatch.OK("No output yet")
	}

	records := c.scrollback.Records()
	if len(records) > n {
		records = records[len(records)-n:]
	}
	lines := make([]string, len(records))
	for i, r := range records {
		if r.IsError {
			lines[i] = ui.SymbolFail + " " + r.Text
			continue
		}
		lines[i] = r.Text
	}
	return dispatch.OK(strings.Join(lines, "\n"))
}

// parsePing reads `ping <host[:port]> [-c count]`.
func parsePing(cmd dispatch.Command) (string, int, error) {
	count := 1
	var target string
	for i := 0; i < len(cmd.Args); i++ {
		arg := cmd.Args[i]
		if arg == "-c" {
			if i+1 >= len(cmd.Args) {
				return "", 0, errors.New(errors.ErrUsage, "ping: -c needs a count", "Use: ping <host[:port]> [-c count]")
			}
			i++
			n, err := strconv.Atoi(cmd.Args[i])
			if err != nil || n < 1 || n > maxPingCount {
				return "", 0, errors.New(errors.ErrUsage,
					fmt.Sprintf("ping: invalid count %q", cmd.Args[i]),
					fmt.Sprintf("Count must be between 1 and %d", maxPingCount))
			}
			count = n
			continue
		}
		if target != "" {
			return "", 0, errors.New(errors.ErrUsage,
				fmt.Sprintf("ping: unexpected argument %q", arg), "Use: ping <host[:port]> [-c count]")
		}
		target = arg
	}

	address, err := probe.NormalizeAddress(target)
	if err != nil {
		return "", 0, err
	}
	return address, count, nil
}

func (c *Console) cmdPing(ctx context.Context, cmd dispatch.Command, emit dispatch.Emitter) dispatch.Result {
	address, count, err := parsePing(cmd)
	if err != nil {
		return dispatch.Fail(err)
	}

	ok := 0
	for i := 0; i < count; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return dispatch.Failf(errors.ErrExec, "ping: cancelled", "")
			case <-time.After(c.pingInterval):
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeouts.Connect)
		latency, err := probe.TCP(attemptCtx, c.probeDialer, address)
		cancel()
		if err != nil {
			var probeErr *probe.Error
			if errors.As(err, &probeErr) {
				emit.Emit(fmt.Sprintf("%s: %s", address, probeErr.Reason), true)
			} else {
				emit.Emit(fmt.Sprintf("%s: %v", address, err), true)
			}
			continue
		}
		ok++
		emit.Emit(fmt.Sprintf("%s: connected in %s", address, latency.Round(time.Microsecond)), false)
	}

	if ok == 0 {
		return dispatch.Failf(errors.ErrExec, fmt.Sprintf("ping: %s is unreachable", address), "")
	}
	return dispatch.OK(fmt.Sprintf("%d/%d connected", ok, count))
}

func (c *Console) cmdFetch(ctx context.Context, cmd dispatch.Command, emit dispatch.Emitter) dispatch.Result {
	url, err := probe.NormalizeURL(cmd.Arg(0))
	if err != nil {
		return dispatch.Fail(err)
	}
	emit.Emit("GET "+url, false)

	res, err := c.fetcher.Get(ctx, url)
	if err != nil {
		return dispatch.Fail(err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s  %d bytes  %s", res.StatusText, res.ContentType, res.Size, res.Duration.Round(time.Millisecond))
	if preview := strings.TrimSpace(res.Preview); preview != "" {
		b.WriteString("\n")
		b.WriteString(preview)
	}
	if res.Status >= 400 {
		return dispatch.Result{Output: b.String(), Err: errors.New(errors.ErrExec,
			fmt.Sprintf("fetch: server answered %d", res.Status), "")}
	}
	return dispatch.OK(b.String())
}
