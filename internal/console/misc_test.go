package console

import (
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/rterm/internal/dispatch"
	"github.com/rileyhilliard/rterm/internal/errors"
	"github.com/rileyhilliard/rterm/internal/probe"
	"github.com/rileyhilliard/rterm/internal/ui"
)

func TestHelp(t *testing.T) {
	f := newFixture(t)

	f.run(t, "help")
	out := f.transcript.String()
	assert.True(t, strings.HasPrefix(out, "COMMAND"), out)
	for _, want := range []string{"ssh user@host [-p port]", "ssh-login <password>", "sftp-get <remote> [local]", "fetch <url>"} {
		assert.Contains(t, out, want)
	}

	f.transcript.Clear()
	f.run(t, "help ssh-exec")
	assert.Equal(t, []string{"ssh-exec <command...>", "  Run a remote command and show its output when it finishes"}, f.transcript.Lines())

	f.run(t, "help nope")
	assert.Contains(t, f.errors(), "help: no such command: nope")
}

func TestEchoVersionClear(t *testing.T) {
	cleared := false
	f := newFixture(t, WithVersion("v1.2.3"), WithClearFunc(func() { cleared = true }))

	f.run(t, "ECHO  Hello,   World")
	assert.Equal(t, []string{"Hello,   World"}, f.transcript.Lines())

	f.run(t, "version")
	assert.Contains(t, f.transcript.Lines(), "rterm v1.2.3")

	f.run(t, "clear")
	assert.True(t, cleared)
}

func TestHistory(t *testing.T) {
	f := newFixture(t)

	f.run(t, "history")
	assert.Equal(t, []string{"No output yet"}, f.transcript.Lines())

	f.transcript.Clear()
	f.run(t, "echo one")
	f.run(t, "echo two")
	f.run(t, "echo three")
	f.run(t, "history 2")
	assert.Equal(t, []string{"one", "two", "three", "two", "three"}, f.transcript.Lines())

	f.run(t, "help nope")
	f.run(t, "history 2")
	lines := f.transcript.Lines()
	assert.Equal(t, []string{
		ui.SymbolFail + " help: no such command: nope",
		"  Type 'help' to see available commands",
	}, lines[len(lines)-2:])

	f.run(t, "history 0")
	assert.Contains(t, f.errors(), `history: invalid count "0"`)
}

func TestClear_EmptiesScrollback(t *testing.T) {
	f := newFixture(t)
	f.run(t, "echo one")
	require.Equal(t, 1, f.transcript.Len())

	f.run(t, "clear")
	assert.Zero(t, f.transcript.Len())

	f.run(t, "history")
	assert.Equal(t, []string{"No output yet"}, f.transcript.Lines())
}

func TestPing(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	f := newFixture(t)
	f.run(t, "ping "+ln.Addr().String()+" -c 3")

	connected := 0
	for _, line := range f.transcript.Lines() {
		if strings.HasPrefix(line, ln.Addr().String()+": connected in") {
			connected++
		}
	}
	assert.Equal(t, 3, connected)
	assert.Contains(t, f.transcript.Lines(), "3/3 connected")
}

func TestPing_Refused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	f := newFixture(t)
	f.run(t, "ping "+addr)

	errs := f.errors()
	assert.Contains(t, errs, addr+": connection refused")
	assert.Contains(t, errs, "ping: "+addr+" is unreachable")
}

func TestPing_Usage(t *testing.T) {
	tests := []struct {
		line string
		want string
	}{
		{"ping", "ping: missing host"},
		{"ping host -c", "ping: -c needs a count"},
		{"ping host -c 0", `ping: invalid count "0"`},
		{"ping a b", `ping: unexpected argument "b"`},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			f := newFixture(t)
			assert.Nil(t, f.console.Handle(t.Context(), tt.line))
			assert.Contains(t, f.errors(), tt.want)
		})
	}
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.Error(w, "nothing here", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("pong"))
	}))
	defer srv.Close()

	fetcher := probe.NewFetcher(probe.WithRetries(0, time.Millisecond, time.Millisecond))
	f := newFixture(t, WithFetcher(fetcher))

	f.run(t, "fetch "+srv.URL)
	lines := f.transcript.Lines()
	assert.Contains(t, lines, "GET "+srv.URL)
	assert.Contains(t, lines, "pong")
	assert.Contains(t, f.transcript.String(), "200 OK  text/plain  4 bytes")

	f.run(t, "fetch "+srv.URL+"/missing")
	assert.Contains(t, f.errors(), "fetch: server answered 404")
	assert.Contains(t, f.transcript.Lines(), "nothing here")
}

func TestFetch_Usage(t *testing.T) {
	f := newFixture(t)
	f.run(t, "fetch ftp://example.com")
	assert.Contains(t, f.errors(), "fetch: only http and https URLs are supported")
}

func TestRenderError(t *testing.T) {
	f := newFixture(t)

	f.console.render(dispatch.Result{
		Output: "partial\n",
		Err: errors.WrapWithCode(stringErr("dial tcp: connection refused\nmore detail"), errors.ErrSSH,
			"Can't reach host:22", "Is SSH running on host?"),
	})

	recs := f.transcript.Records()
	require.Len(t, recs, 4)
	assert.Equal(t, "partial", recs[0].Text)
	assert.False(t, recs[0].IsError)
	assert.Equal(t, "Can't reach host:22", recs[1].Text)
	assert.True(t, recs[1].IsError)
	assert.Equal(t, "  dial tcp: connection refused", recs[2].Text)
	assert.True(t, recs[2].IsError)
	assert.Equal(t, "  Is SSH running on host?", recs[3].Text)
	assert.False(t, recs[3].IsError)
}

func TestRenderError_Plain(t *testing.T) {
	f := newFixture(t)
	f.console.render(dispatch.Fail(stringErr("boom\ntrace")))
	assert.Equal(t, []string{"boom"}, f.transcript.Lines())
}

type stringErr string

func (e stringErr) Error() string { return string(e) }
