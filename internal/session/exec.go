package session

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rileyhilliard/rterm/internal/errors"
	"go.uber.org/zap"
)

// ExecResult is the outcome of a remote command that ran.
type ExecResult struct {
	Command  string
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Output returns stdout followed by stderr, or NoOutput when both are empty.
func (r ExecResult) Output() string {
	out := r.Stdout + r.Stderr
	if out == "" {
		return NoOutput
	}
	return out
}

// Chunk is one fragment of streamed command output.
type Chunk struct {
	Data   string
	Stderr bool
}

// ExecuteCommand runs cmd to completion and collects its output. It never
// touches the transport unless the session is usable.
func (s *Session) ExecuteCommand(ctx context.Context, cmd string) (ExecResult, error) {
	return s.execute(ctx, cmd, s.timeouts.Exec, nil)
}

// ExecuteCommandStreaming runs cmd and calls onChunk for every fragment as
// it arrives, in the order received. onChunk is never called concurrently.
// The returned result holds the concatenated output.
func (s *Session) ExecuteCommandStreaming(ctx context.Context, cmd string, onChunk func(Chunk)) (ExecResult, error) {
	return s.execute(ctx, cmd, s.timeouts.Stream, onChunk)
}

func (s *Session) execute(ctx context.Context, cmd string, timeout time.Duration, onChunk func(Chunk)) (ExecResult, error) {
	result := ExecResult{Command: cmd, ExitCode: -1}
	if strings.TrimSpace(cmd) == "" {
		return result, errors.New(errors.ErrUsage, "ssh: missing command", "Pass the remote command to run")
	}

	client, err := s.usableClient()
	if err != nil {
		return result, err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var mu sync.Mutex
	var stdout, stderr bytes.Buffer
	outW := &chunkWriter{mu: &mu, buf: &stdout, onChunk: onChunk}
	errW := &chunkWriter{mu: &mu, buf: &stderr, onChunk: onChunk, stderr: true}

	start := time.Now()
	code, err := client.ExecStream(ctx, cmd, outW, errW)
	result.Duration = time.Since(start)

	mu.Lock()
	result.Stdout = stdout.String()
	result.Stderr = stderr.String()
	mu.Unlock()

	if err != nil {
		s.logger.Warn("remote command failed",
			zap.String("cmd", cmd), zap.Duration("elapsed", result.Duration), zap.Error(err))
		return result, s.checkDrop(client, err)
	}

	result.ExitCode = code
	s.logger.Debug("remote command finished",
		zap.String("cmd", cmd),
		zap.Int("exit_code", code),
		zap.Duration("elapsed", result.Duration))
	return result, nil
}

// chunkWriter buffers output and forwards each write as a Chunk. stdout and
// stderr writers share one mutex so onChunk sees a single ordered stream.
type chunkWriter struct {
	mu      *sync.Mutex
	buf     *bytes.Buffer
	onChunk func(Chunk)
	stderr  bool
}

func (w *chunkWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf.Write(p)
	if w.onChunk != nil && len(p) > 0 {
		w.onChunk(Chunk{Data: string(p), Stderr: w.stderr})
	}
	return len(p), nil
}
