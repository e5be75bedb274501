package sshtest

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
)

// DefaultExecHandler understands a handful of shell-like commands:
//
//	echo <words>   print words
//	true / false   exit 0 / 1 with no output
//	exit <n>       exit n with no output
//	fail <words>   print words to stderr, exit 1
//	count <n>      print 1..n one line at a time, 20ms apart
//	sleep <dur>    wait for a Go duration or until cancelled
//
// Anything else prints "sh: <cmd>: command not found" and exits 127.
func DefaultExecHandler(ctx context.Context, cmd string, stdout, stderr io.Writer) int {
	fields := strings.Fields(cmd)
	if len(fields) == 0 {
		return 0
	}
	args := fields[1:]

	switch fields[0] {
	case "echo":
		fmt.Fprintln(stdout, strings.Join(args, " "))
		return 0
	case "true":
		return 0
	case "false":
		return 1
	case "exit":
		if len(args) == 0 {
			return 0
		}
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return 2
		}
		return n
	case "fail":
		fmt.Fprintln(stderr, strings.Join(args, " "))
		return 1
	case "count":
		n := 0
		if len(args) > 0 {
			n, _ = strconv.Atoi(args[0])
		}
		for i := 1; i <= n; i++ {
			select {
			case <-ctx.Done():
				return 130
			default:
			}
			fmt.Fprintf(stdout, "%d\n", i)
			if i < n {
				time.Sleep(20 * time.Millisecond)
			}
		}
		return 0
	case "sleep":
		d := time.Second
		if len(args) > 0 {
			if parsed, err := time.ParseDuration(args[0]); err == nil {
				d = parsed
			}
		}
		select {
		case <-ctx.Done():
			return 130
		case <-time.After(d):
			return 0
		}
	default:
		fmt.Fprintf(stderr, "sh: %s: command not found\n", fields[0])
		return 127
	}
}

// Prompt is what the test shell prints when waiting for a line.
const Prompt = "$ "

// runShell is a line-mode shell on a PTY: it echoes input, runs each
// completed line through the exec handler and exits on "exit" or ctrl-d.
func (s *Server) runShell(ctx context.Context, ch ssh.Channel) {
	defer ch.Close()

	io.WriteString(ch, Prompt)

	var line []byte
	buf := make([]byte, 1024)
	for {
		n, err := ch.Read(buf)
		for _, b := range buf[:n] {
			switch b {
			case '\r', '\n':
				io.WriteString(ch, "\r\n")
				cmd := strings.TrimSpace(string(line))
				line = line[:0]
				if cmd == "exit" || cmd == "logout" {
					sendExitStatus(ch, 0)
					return
				}
				if cmd != "" {
					s.exec(ctx, cmd, ch, ch)
				}
				io.WriteString(ch, Prompt)
			case 0x03:
				line = line[:0]
				io.WriteString(ch, "^C\r\n"+Prompt)
			case 0x04:
				if len(line) == 0 {
					io.WriteString(ch, "logout\r\n")
					sendExitStatus(ch, 0)
					return
				}
			case 0x1a:
				io.WriteString(ch, "^Z\r\n"+Prompt)
			case 0x09:
				io.WriteString(ch, "<TAB>")
			default:
				line = append(line, b)
				ch.Write([]byte{b})
			}
		}
		if err != nil {
			return
		}
	}
}
