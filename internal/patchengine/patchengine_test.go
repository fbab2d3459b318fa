package patchengine

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

// writeScript drops an executable shell script and returns its path.
func writeScript(t *testing.T, body string) string {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("shell script fixtures require a posix shell")
	}

	path := filepath.Join(t.TempDir(), "cgp")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))

	return path
}

// TestHealthCheck passes for a binary that prints a version and fails for
// one that exits non-zero.
func TestHealthCheck(t *testing.T) {
	t.Parallel()

	healthy := New(writeScript(t, `echo "cgp 1.2.3"`))
	require.NoError(t, healthy.HealthCheck(context.Background()))

	broken := New(writeScript(t, "exit 3"))
	require.Error(t, broken.HealthCheck(context.Background()))

	missing := New(filepath.Join(t.TempDir(), "absent"))
	require.Error(t, missing.HealthCheck(context.Background()))
}

// TestRunPassesSubcommands forwards the exact argument vector.
func TestRunPassesSubcommands(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	record := filepath.Join(dir, "args.txt")

	if runtime.GOOS == "windows" {
		t.Skip("shell script fixtures require a posix shell")
	}

	script := filepath.Join(dir, "cgp")
	require.NoError(t, os.WriteFile(script,
		[]byte("#!/bin/sh\necho \"$@\" > "+record+"\n"), 0o755))

	engine := New(script)
	require.NoError(t, engine.AutoInstall(context.Background()))

	args, err := os.ReadFile(record)
	require.NoError(t, err)
	require.Equal(t, "auto install\n", string(args))

	// Non-zero exit codes surface as errors.
	failing := New(writeScript(t, "exit 7"))
	require.Error(t, failing.Patch(context.Background()))
	require.Error(t, failing.Unpatch(context.Background()))
	require.Error(t, failing.Status(context.Background()))
}
