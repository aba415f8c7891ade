package trigger

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

// TestRunInvokesFixedArgv verifies the helper is invoked with the exact
// argument vector [helper, "-a", root, "-e", "-F", "/usr", triggerPath].
func TestRunInvokesFixedArgv(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script helper not supported on windows")
	}
	dir := t.TempDir()
	helper := writeScript(t, dir, "helper.sh", "#!/bin/sh\necho \"$@\"\n")
	triggerPath := filepath.Join(dir, "x.trigger")
	if err := os.WriteFile(triggerPath, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	r := NewRunner(slog.Default())
	result, err := r.Run(context.Background(), helper, "/R", triggerPath, 5*time.Second)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := "-a /R -e -F /usr " + triggerPath + "\n"
	if result.Stdout != want {
		t.Errorf("Stdout = %q, want %q", result.Stdout, want)
	}
	if result.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", result.ExitCode)
	}
}

// TestRunCapturesNonZeroExit verifies that a failing helper is reported via
// ExitCode without the caller needing to inspect the error type.
func TestRunCapturesNonZeroExit(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script helper not supported on windows")
	}
	dir := t.TempDir()
	helper := writeScript(t, dir, "fail.sh", "#!/bin/sh\nexit 3\n")

	r := NewRunner(slog.Default())
	result, err := r.Run(context.Background(), helper, "/R", filepath.Join(dir, "x.trigger"), 5*time.Second)
	if err == nil {
		t.Fatal("expected error for non-zero exit")
	}
	if result.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", result.ExitCode)
	}
}

// TestRunTimesOut verifies a hanging helper is killed after the timeout and
// reported with TimedOut set.
func TestRunTimesOut(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script helper not supported on windows")
	}
	dir := t.TempDir()
	helper := writeScript(t, dir, "hang.sh", "#!/bin/sh\nsleep 30\n")

	r := NewRunner(slog.Default())
	result, err := r.Run(context.Background(), helper, "/R", filepath.Join(dir, "x.trigger"), 200*time.Millisecond)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !result.TimedOut {
		t.Error("expected TimedOut = true")
	}
}

// TestRunMissingHelperReturnsError verifies a clear error when the helper
// binary does not exist, rather than a silent no-op.
func TestRunMissingHelperReturnsError(t *testing.T) {
	r := NewRunner(slog.Default())
	_, err := r.Run(context.Background(), "/nonexistent/helper", "/R", "/trigger", time.Second)
	if err == nil {
		t.Fatal("expected error for missing helper")
	}
}
