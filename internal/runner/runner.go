package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fenwicklabs/coderunner/internal/observability"
	"github.com/fenwicklabs/coderunner/internal/platform/logger"
)

const minCompileTimeout = 10 * time.Second

type Runner struct {
	log *logger.Logger
}

func New(baseLog *logger.Logger) *Runner {
	return &Runner{log: baseLog.With("service", "Runner")}
}

// Run executes descriptor's compile/run commands against source under
// timeLimitMs/memoryLimitMB bounds and returns a classified Outcome. It
// never returns an error: every failure mode is represented as an Outcome.
func (r *Runner) Run(ctx context.Context, descriptor Descriptor, source string, timeLimitMs, memoryLimitMB int) Outcome {
	ctx, span := observability.Tracer().Start(ctx, "runner.run")
	defer span.End()

	scratch, err := os.MkdirTemp("", fmt.Sprintf("coderunner-%d-*", time.Now().UnixNano()))
	if err != nil {
		return Outcome{Status: StatusFailed, Stderr: fmt.Sprintf("failed to create scratch directory: %v", err), ExitCode: intPtr(1)}
	}
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			r.log.Warn("scratch cleanup failed", "path", scratch, "error", err)
		}
	}()

	sourcePath := filepath.Join(scratch, descriptor.FileName)
	if err := os.WriteFile(sourcePath, []byte(source), 0o644); err != nil {
		return Outcome{Status: StatusFailed, Stderr: fmt.Sprintf("failed to write source: %v", err), ExitCode: intPtr(1)}
	}

	if descriptor.RequiresCompile() {
		if outcome, ok := r.compile(ctx, descriptor, scratch, timeLimitMs); !ok {
			return outcome
		}
	}

	return r.execute(ctx, descriptor, scratch, timeLimitMs, memoryLimitMB)
}

func (r *Runner) compile(ctx context.Context, descriptor Descriptor, scratch string, timeLimitMs int) (Outcome, bool) {
	timeout := time.Duration(timeLimitMs) * time.Millisecond
	if timeout < minCompileTimeout {
		timeout = minCompileTimeout
	}

	compileCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(compileCtx, descriptor.CompileCommand[0], descriptor.CompileCommand[1:]...)
	cmd.Dir = scratch
	setProcGroup(cmd)

	var combined strings.Builder
	writer := &syncWriter{w: &combined}
	cmd.Stdout = writer
	cmd.Stderr = writer

	err := cmd.Run()
	output := combined.String()

	failed := err != nil
	if !failed && containsErrorMarker(output) {
		failed = true
	}
	if !failed {
		return Outcome{}, true
	}

	stderr := output
	if strings.TrimSpace(stderr) == "" {
		stderr = "compilation failed"
	}
	return Outcome{Status: StatusFailed, Stdout: "", Stderr: stderr, ExecutionTimeMs: 0, ExitCode: intPtr(1), Timeout: false}, false
}

func containsErrorMarker(output string) bool {
	lower := strings.ToLower(output)
	return strings.Contains(lower, "error") || strings.Contains(lower, "not found")
}

func (r *Runner) execute(ctx context.Context, descriptor Descriptor, scratch string, timeLimitMs, memoryLimitMB int) Outcome {
	// deadlineCtx bounds wall-clock time; capCtx additionally lets a capped
	// writer kill the process early without being mistaken for a timeout.
	deadlineCtx, cancelDeadline := context.WithTimeout(ctx, time.Duration(timeLimitMs)*time.Millisecond)
	defer cancelDeadline()
	capCtx, cancelCap := context.WithCancel(deadlineCtx)
	defer cancelCap()

	cmd := exec.CommandContext(capCtx, descriptor.RunCommand[0], descriptor.RunCommand[1:]...)
	cmd.Dir = scratch
	cmd.Stdin = nil
	setProcGroup(cmd)

	limit := memoryLimitMB * 1024 * 1024
	stdout := newCappedWriter(limit, cancelCap)
	stderr := newCappedWriter(limit, cancelCap)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	err := cmd.Run()
	elapsed := float64(time.Since(start).Microseconds()) / 1000.0

	if errors.Is(deadlineCtx.Err(), context.DeadlineExceeded) {
		out := stderr.String()
		if strings.TrimSpace(out) == "" {
			out = "Execution timeout"
		}
		return Outcome{
			Status:          StatusTimeout,
			Stdout:          stdout.String(),
			Stderr:          out,
			ExecutionTimeMs: elapsed,
			ExitCode:        nil,
			Timeout:         true,
		}
	}

	if err == nil {
		return Outcome{
			Status:          StatusCompleted,
			Stdout:          stdout.String(),
			Stderr:          stderr.String(),
			ExecutionTimeMs: elapsed,
			ExitCode:        intPtr(0),
			Timeout:         false,
		}
	}

	exitCode := 1
	if exitErr, ok := err.(*exec.ExitError); ok {
		exitCode = exitErr.ExitCode()
	}
	return Outcome{
		Status:          StatusFailed,
		Stdout:          stdout.String(),
		Stderr:          stderr.String(),
		ExecutionTimeMs: elapsed,
		ExitCode:        intPtr(exitCode),
		Timeout:         false,
	}
}

// UnsupportedRuntime is the deterministic terminal outcome for a language
// row whose run command template is empty or otherwise unusable.
func UnsupportedRuntime(runtimeKey string) Outcome {
	return Outcome{Status: StatusFailed, Stderr: "Unsupported language: " + runtimeKey, ExitCode: intPtr(1)}
}

func intPtr(v int) *int { return &v }

type syncWriter struct {
	mu sync.Mutex
	w  *strings.Builder
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
