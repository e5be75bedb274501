package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/rileyhilliard/rterm/internal/config"
	"github.com/rileyhilliard/rterm/internal/console"
	"github.com/rileyhilliard/rterm/internal/dispatch"
	"github.com/rileyhilliard/rterm/internal/errors"
	"github.com/rileyhilliard/rterm/internal/logging"
	"github.com/rileyhilliard/rterm/internal/output"
	"github.com/rileyhilliard/rterm/internal/session"
	"github.com/rileyhilliard/rterm/internal/ui"
	"go.uber.org/zap"
	"golang.org/x/term"
)

// consoleOptions configures one interactive run.
type consoleOptions struct {
	ConfigPath string
	Verbose    bool
	NoColor    bool

	In  io.Reader
	Out io.Writer

	// Interactive forces TTY behavior on or off; nil detects it from In.
	Interactive *bool

	// ReadPassword prompts for an ssh-login password. Defaults to a huh input.
	ReadPassword func(target string) (string, error)
}

// runConsole loads config, wires session, dispatcher and console, then reads
// lines from In until EOF, quit, or exit while disconnected.
func runConsole(ctx context.Context, opts consoleOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, _, err := config.LoadOrDefault(opts.ConfigPath)
	if err != nil {
		return err
	}
	if opts.Verbose {
		cfg.Log.Level = "debug"
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	fd, isFile := fileDescriptor(opts.In)
	interactive := isFile && term.IsTerminal(fd)
	if opts.Interactive != nil {
		interactive = *opts.Interactive
	}

	if opts.NoColor || cfg.Output.Color == "never" || (cfg.Output.Color == "auto" && !interactive) {
		ui.DisableColors()
	}

	terminal := session.Terminal{Type: cfg.Terminal.Type, Cols: cfg.Terminal.Cols, Rows: cfg.Terminal.Rows}
	if interactive {
		if w, h, err := term.GetSize(fd); err == nil {
			terminal.Cols, terminal.Rows = w, h
		}
	}

	sess := session.New(
		session.FromConfig(cfg),
		session.WithLogger(logger.Named("session")),
		session.WithTerminal(terminal),
	)
	disp := dispatch.New(dispatch.WithLogger(logger.Named("dispatch")))

	printer := ui.NewPrinter(opts.Out)
	scrollback := output.NewTranscript(0)
	sink := output.NewSerialSink(output.Multi(printer, scrollback))
	defer sink.Close()

	con := console.New(sess, disp, sink, cfg,
		console.WithLogger(logger.Named("console")),
		console.WithVersion(formatVersion(version)),
		console.WithScrollback(scrollback),
		console.WithClearFunc(func() {
			if interactive {
				fmt.Fprint(opts.Out, "\033[H\033[2J")
			}
		}),
	)
	defer func() { _ = con.Close() }()

	logger.Info("console started", zap.Bool("interactive", interactive), zap.String("term", terminal.Type))

	if interactive {
		stopResize := watchResize(fd, con.Resize)
		defer stopResize()
		fmt.Fprint(opts.Out, ui.RenderHeader(ui.HeaderInfo{
			Version: formatVersion(version),
			Tagline: "Type 'help' for commands",
		}))
	}

	readPassword := opts.ReadPassword
	if readPassword == nil {
		readPassword = promptPassword
	}

	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt)
	defer signal.Stop(interrupts)

	lines := make(chan string)
	readErr := make(chan error, 1)
	stopReading := make(chan struct{})
	defer close(stopReading)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(opts.In)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-stopReading:
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		sink.Flush()
		if interactive {
			printer.Prompt(con.Prompt())
		}

		var line string
		select {
		case <-ctx.Done():
			return nil
		case <-interrupts:
			handleInterrupt(ctx, con, sink, nil)
			continue
		case l, ok := <-lines:
			if !ok {
				if err := <-readErr; err != nil {
					return errors.WrapWithCode(err, errors.ErrUsage, "Reading input failed", "")
				}
				return nil
			}
			line = l
		}

		if interactive && !con.Forwarding() && isBareLogin(line) {
			if p, ok := con.Pending(); ok {
				pw, err := readPassword(p.String())
				if err != nil {
					sink.WriteLine("ssh-login: password prompt cancelled", true)
					continue
				}
				line = "ssh-login " + pw
			}
		}

		if job := con.Handle(ctx, line); job != nil {
			waitJob(ctx, con, sink, job, interrupts)
		}
		if con.Quitting() {
			return nil
		}
	}
}

// waitJob blocks until job has rendered. Ctrl-C cancels it.
func waitJob(ctx context.Context, con *console.Console, sink output.Sink, job *console.Job, interrupts <-chan os.Signal) {
	for {
		select {
		case <-job.Done():
			return
		case <-ctx.Done():
			job.Cancel()
			<-job.Done()
			return
		case <-interrupts:
			handleInterrupt(ctx, con, sink, job)
		}
	}
}

// handleInterrupt maps Ctrl-C to the current mode: cancel the running
// command, send ^C to the remote shell, or explain how to leave.
func handleInterrupt(ctx context.Context, con *console.Console, sink output.Sink, job *console.Job) {
	switch {
	case job != nil:
		job.Cancel()
	case con.Forwarding():
		con.Handle(ctx, "ctrl-c")
	default:
		sink.WriteLine("Type 'quit' to leave rterm", false)
	}
}

func isBareLogin(line string) bool {
	return strings.EqualFold(strings.TrimSpace(line), "ssh-login")
}

func promptPassword(target string) (string, error) {
	var password string
	err := huh.NewInput().
		Title("Password for " + target).
		EchoMode(huh.EchoModePassword).
		Value(&password).
		Run()
	return password, err
}

func fileDescriptor(r io.Reader) (int, bool) {
	f, ok := r.(*os.File)
	if !ok {
		return 0, false
	}
	return int(f.Fd()), true
}
