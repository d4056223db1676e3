package inference

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// execCommand is a variable that allows tests to replace exec.Command.
var execCommand = exec.Command

// sidecarRequest is one line written to the sidecar's stdin.
type sidecarRequest struct {
	ID          int64   `json:"id"`
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature"`
}

// sidecarResponse is one line read from the sidecar's stdout.
type sidecarResponse struct {
	ID    int64  `json:"id"`
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

// Sidecar runs prompts through a local model process that speaks JSON
// lines over stdio. Requests are serialized. A call that times out kills
// the process, since its output stream can no longer be trusted; the next
// call respawns it. Only a failed spawn or Close takes it out of service.
type Sidecar struct {
	command string
	args    []string
	env     map[string]string
	logger  *zap.Logger

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
	// reqID is a counter rather than a timestamp so ids stay small integers.
	reqID  int64
	cancel context.CancelFunc

	// spawnErr is the last spawn failure, cleared by a successful spawn.
	spawnErr error
	closed   bool
}

// NewSidecar creates a sidecar provider. The process is not started until
// Start or the first Infer.
func NewSidecar(cfg Config, logger *zap.Logger) *Sidecar {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sidecar{
		command: cfg.Command,
		args:    cfg.Args,
		env:     cfg.Env,
		logger:  logger.Named("sidecar"),
	}
}

// Start spawns the process if it is not running.
func (s *Sidecar) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureStarted()
}

func (s *Sidecar) ensureStarted() error {
	if s.cmd != nil {
		return nil
	}
	if s.closed {
		return errSidecarClosed
	}
	s.spawnErr = s.spawn()
	return s.spawnErr
}

var errSidecarClosed = errors.New("sidecar is closed")

func (s *Sidecar) spawn() error {
	if s.command == "" {
		return errors.New("sidecar command is not configured")
	}

	cmd := execCommand(s.command, s.args...)
	cmd.Env = os.Environ()
	for key, value := range s.env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", key, value))
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	// Drain stderr so a chatty model cannot fill the pipe and stall stdout.
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start sidecar: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		_, _ = io.Copy(io.Discard, stderr)
		<-ctx.Done()
	}()

	s.cmd = cmd
	s.stdin = stdin
	s.stdout = bufio.NewReader(stdout)
	s.cancel = cancel
	s.logger.Info("sidecar started", zap.String("command", s.command), zap.Int("pid", cmd.Process.Pid))
	return nil
}

// Infer sends one prompt and waits for its answer or ctx.
func (s *Sidecar) Infer(ctx context.Context, prompt string, opts Options) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureStarted(); err != nil {
		return failure(err)
	}

	s.reqID++
	req := sidecarRequest{ID: s.reqID, Prompt: prompt, MaxTokens: opts.MaxTokens, Temperature: opts.Temperature}
	line, err := json.Marshal(req)
	if err != nil {
		return failure(err)
	}
	line = append(line, '\n')

	if _, err := s.stdin.Write(line); err != nil {
		s.kill()
		return failure(fmt.Errorf("failed to send request: %w", err))
	}

	type readResult struct {
		line []byte
		err  error
	}
	ch := make(chan readResult, 1)
	stdout := s.stdout
	go func() {
		b, err := stdout.ReadBytes('\n')
		ch <- readResult{b, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			s.kill()
			return failure(fmt.Errorf("failed to read response: %w", r.err))
		}
		var resp sidecarResponse
		if err := json.Unmarshal(r.line, &resp); err != nil {
			s.kill()
			return failure(fmt.Errorf("failed to parse response: %w", err))
		}
		if resp.ID != req.ID {
			s.kill()
			return failure(fmt.Errorf("response id %d does not match request %d", resp.ID, req.ID))
		}
		if resp.Error != "" {
			return failure(errors.New(resp.Error))
		}
		return Result{Source: SourceModel, Text: strings.TrimSpace(resp.Text)}

	case <-ctx.Done():
		s.logger.Warn("sidecar call timed out, restarting on next call", zap.Error(ctx.Err()))
		s.kill()
		return failure(ctx.Err())
	}
}

// Ready reports whether Infer may reach the model: the sidecar is
// configured, open, and its last spawn succeeded. A process killed after a
// timeout is still ready since Infer respawns it.
func (s *Sidecar) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.command != "" && !s.closed && s.spawnErr == nil
}

func (s *Sidecar) Name() string { return ProviderSidecar }

// Close stops the process: stdin is closed first, then it is killed if it
// has not exited within two seconds.
func (s *Sidecar) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	if s.cmd == nil {
		return nil
	}
	_ = s.stdin.Close()

	done := make(chan error, 1)
	cmd := s.cmd
	go func() { done <- cmd.Wait() }()

	var err error
	select {
	case err = <-done:
		if err != nil && strings.Contains(err.Error(), "signal: killed") {
			err = nil
		}
	case <-time.After(2 * time.Second):
		s.logger.Warn("sidecar did not exit gracefully, force killing")
		_ = cmd.Process.Kill()
		<-done
	}

	if s.cancel != nil {
		s.cancel()
	}
	s.cmd = nil
	return err
}

// kill terminates the process. Callers must hold s.mu.
func (s *Sidecar) kill() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
		cmd := s.cmd
		go func() { _ = cmd.Wait() }()
	}
	s.cmd = nil
	s.stdin = nil
	s.stdout = nil
}
