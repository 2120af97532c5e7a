package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
)

// ProcessConfig configures a service domain run as a child process.
type ProcessConfig struct {
	// Path is the service binary.
	Path string
	// Args are passed to the binary.
	Args []string
	// Env entries are appended to the inherited environment and win over
	// inherited duplicates.
	Env []string
	// Dir is the working directory. Empty means the current one.
	Dir string
}

// ProcessResult represents the outcome of a service process.
type ProcessResult struct {
	// ExitCode is the process exit code, or -1 if it was killed by a signal.
	ExitCode int
	// StderrBytes is the captured stderr output.
	StderrBytes []byte
}

// Process is a running service domain. Writes go to its stdin and reads
// come from its stdout. Close closes stdin, which a service takes as the end
// of the session.
type Process struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser

	stderrMu   sync.Mutex
	stderrBuf  bytes.Buffer
	stderrDone chan struct{}
}

var _ Stream = (*Process)(nil)

// StartProcess starts the service binary described by cfg.
// The process is killed if ctx is cancelled.
func StartProcess(ctx context.Context, cfg ProcessConfig) (*Process, error) {
	if cfg.Path == "" {
		return nil, errors.New("service path is required")
	}

	cmd := exec.CommandContext(ctx, cfg.Path, cfg.Args...)
	cmd.Dir = cfg.Dir
	if len(cfg.Env) > 0 {
		cmd.Env = deduplicateEnv(append(os.Environ(), cfg.Env...))
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start service: %w", err)
	}

	p := &Process{
		cmd:        cmd,
		stdin:      stdin,
		stdout:     stdout,
		stderrDone: make(chan struct{}),
	}
	// Drain stderr continuously so a chatty service cannot block on a full pipe
	go func() {
		defer close(p.stderrDone)
		buf := make([]byte, 4096)
		for {
			n, err := stderr.Read(buf)
			if n > 0 {
				p.stderrMu.Lock()
				p.stderrBuf.Write(buf[:n])
				p.stderrMu.Unlock()
			}
			if err != nil {
				return
			}
		}
	}()
	return p, nil
}

// Read reads response bytes from the service's stdout.
func (p *Process) Read(b []byte) (int, error) {
	return p.stdout.Read(b)
}

// Write writes request bytes to the service's stdin.
func (p *Process) Write(b []byte) (int, error) {
	return p.stdin.Write(b)
}

// Close closes the service's stdin.
func (p *Process) Close() error {
	return p.stdin.Close()
}

// Stderr returns the stderr captured so far.
func (p *Process) Stderr() []byte {
	p.stderrMu.Lock()
	defer p.stderrMu.Unlock()
	return bytes.Clone(p.stderrBuf.Bytes())
}

// Wait waits for the service to exit and returns the result.
// A non-zero exit is reported in the result, not as an error.
func (p *Process) Wait() (*ProcessResult, error) {
	<-p.stderrDone
	err := p.cmd.Wait()

	result := &ProcessResult{StderrBytes: p.Stderr()}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("service wait failed: %w", err)
		}
		result.ExitCode = exitErr.ExitCode()
	}
	return result, nil
}

// Kill terminates the service process.
func (p *Process) Kill() error {
	if p.cmd != nil && p.cmd.Process != nil {
		return p.cmd.Process.Kill()
	}
	return nil
}

// Pid returns the process ID.
func (p *Process) Pid() int {
	if p.cmd == nil || p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// deduplicateEnv keeps the last occurrence of each env var key.
func deduplicateEnv(env []string) []string {
	seen := make(map[string]int, len(env))
	for i, entry := range env {
		key, _, _ := strings.Cut(entry, "=")
		seen[key] = i
	}
	result := make([]string, 0, len(seen))
	for i, entry := range env {
		key, _, _ := strings.Cut(entry, "=")
		if seen[key] == i {
			result = append(result, entry)
		}
	}
	return result
}
