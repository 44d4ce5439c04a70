package scripts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"syscall"
	"time"

	"github.com/mattjoyce/slate/internal/protocol"
)

const (
	terminationGracePeriod = 5 * time.Second
	maxStderrBytes         = 64 * 1024
)

// ErrTimeout is returned when a script outlives its deadline.
var ErrTimeout = errors.New("action script timed out")

// run spawns entrypoint, writes req to its stdin and decodes its stdout.
// When timeout elapses or ctx ends the script gets SIGTERM and, after the
// grace period, SIGKILL.
func run(ctx context.Context, entrypoint, dir string, req *protocol.ScriptRequest, timeout time.Duration, logger *slog.Logger) (*protocol.ScriptResponse, string, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	cmd := exec.Command(entrypoint)
	cmd.Dir = dir
	// Orphaned grandchildren must not hold Wait open through inherited pipes.
	cmd.WaitDelay = terminationGracePeriod

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, "", fmt.Errorf("create stdin pipe: %w", err)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger.Debug("spawning action script", "entrypoint", entrypoint, "command", req.Command, "timeout", timeout)

	if err := cmd.Start(); err != nil {
		return nil, "", fmt.Errorf("start process: %w", err)
	}

	writeErr := make(chan error, 1)
	go func() {
		defer stdin.Close()
		writeErr <- protocol.EncodeScriptRequest(stdin, req)
	}()

	waitErr := make(chan error, 1)
	go func() { waitErr <- cmd.Wait() }()

	var cause error
	select {
	case err := <-waitErr:
		stderrStr := truncate(stderr.String())
		if werr := <-writeErr; werr != nil {
			return nil, stderrStr, werr
		}
		if err != nil {
			var exitErr *exec.ExitError
			if !errors.As(err, &exitErr) {
				return nil, stderrStr, fmt.Errorf("wait for process: %w", err)
			}
			logger.Warn("action script exited with non-zero status", "exit_code", exitErr.ExitCode())
		}
		resp, raw, err := protocol.DecodeScriptResponseLenient(bytes.NewReader(stdout.Bytes()))
		if err != nil {
			logger.Error("failed to decode action script response", "error", err, "stdout", string(raw))
			return nil, stderrStr, fmt.Errorf("decode response: %w", err)
		}
		return resp, stderrStr, nil

	case <-timer.C:
		cause = ErrTimeout
	case <-ctx.Done():
		cause = ctx.Err()
	}

	logger.Warn("stopping action script, sending SIGTERM", "reason", cause)
	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
		logger.Debug("SIGTERM failed", "error", err)
	}

	grace := time.NewTimer(terminationGracePeriod)
	defer grace.Stop()
	select {
	case <-waitErr:
	case <-grace.C:
		logger.Warn("action script did not exit after SIGTERM, sending SIGKILL")
		if err := cmd.Process.Kill(); err != nil {
			logger.Error("failed to send SIGKILL", "error", err)
		}
		<-waitErr
	}
	return nil, truncate(stderr.String()), cause
}

func truncate(s string) string {
	if len(s) > maxStderrBytes {
		return s[:maxStderrBytes]
	}
	return s
}
