package runner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fenwicklabs/coderunner/internal/platform/logger"
)

func testRunner(t *testing.T) *Runner {
	t.Helper()
	log, err := logger.New("test")
	require.NoError(t, err)
	return New(log)
}

func shDescriptor(script string) Descriptor {
	return Descriptor{
		RuntimeKey: "shell",
		FileName:   "main.sh",
		RunCommand: []string{"/bin/sh", "-c", script},
	}
}

func TestRunCompleted(t *testing.T) {
	r := testRunner(t)
	out := r.Run(context.Background(), shDescriptor("echo hello"), "", 5000, 64)
	require.Equal(t, StatusCompleted, out.Status)
	require.Equal(t, "hello\n", out.Stdout)
	require.NotNil(t, out.ExitCode)
	require.Equal(t, 0, *out.ExitCode)
	require.False(t, out.Timeout)
}

func TestRunNonZeroExit(t *testing.T) {
	r := testRunner(t)
	out := r.Run(context.Background(), shDescriptor("echo boom >&2; exit 3"), "", 5000, 64)
	require.Equal(t, StatusFailed, out.Status)
	require.NotNil(t, out.ExitCode)
	require.Equal(t, 3, *out.ExitCode)
	require.Contains(t, out.Stderr, "boom")
}

func TestRunTimeout(t *testing.T) {
	r := testRunner(t)
	out := r.Run(context.Background(), shDescriptor("sleep 5"), "", 150, 64)
	require.Equal(t, StatusTimeout, out.Status)
	require.True(t, out.Timeout)
	require.Nil(t, out.ExitCode)
}

func TestRunOutputCapKillsProcess(t *testing.T) {
	r := testRunner(t)
	// 1MB memory cap; yes loops forever printing until killed.
	out := r.Run(context.Background(), shDescriptor("yes AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"), "", 5000, 1)
	require.Equal(t, StatusFailed, out.Status)
	require.LessOrEqual(t, len(out.Stdout), 1024*1024+1)
}

func TestCompileFailureOnNonZeroExit(t *testing.T) {
	r := testRunner(t)
	d := Descriptor{
		RuntimeKey:     "shell",
		FileName:       "main.sh",
		CompileCommand: []string{"/bin/sh", "-c", "echo cannot compile >&2; exit 1"},
		RunCommand:     []string{"/bin/sh", "-c", "echo should-not-run"},
	}
	out := r.Run(context.Background(), d, "", 5000, 64)
	require.Equal(t, StatusFailed, out.Status)
	require.Contains(t, out.Stderr, "cannot compile")
	require.Empty(t, out.Stdout)
}

func TestCompileFailureOnErrorMarkerWithZeroExit(t *testing.T) {
	r := testRunner(t)
	d := Descriptor{
		RuntimeKey:     "shell",
		FileName:       "main.sh",
		CompileCommand: []string{"/bin/sh", "-c", "echo 'syntax error near token' ; exit 0"},
		RunCommand:     []string{"/bin/sh", "-c", "echo should-not-run"},
	}
	out := r.Run(context.Background(), d, "", 5000, 64)
	require.Equal(t, StatusFailed, out.Status)
	require.Contains(t, out.Stderr, "syntax error")
}

func TestUnsupportedRuntime(t *testing.T) {
	out := UnsupportedRuntime("cobol")
	require.Equal(t, StatusFailed, out.Status)
	require.Contains(t, out.Stderr, "cobol")
}
