package deploy

import (
	"archive/tar"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/baaaaaaaka/cgp-deploy/internal/config"
)

const testAssetName = "cgp-linux-x86_64.tar.gz"

// requirePosix skips tests whose fixtures are shell scripts.
func requirePosix(t *testing.T) {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("fixtures rely on posix shell and symlink semantics")
	}
}

// writeSourceArchive builds a release source directory: a bundle archive
// whose cgp binary is the given script, plus a checksums.txt entry for it.
func writeSourceArchive(t *testing.T, sourceDir, script string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(sourceDir, 0o755))

	archivePath := filepath.Join(sourceDir, testAssetName)

	file, err := os.Create(archivePath)
	require.NoError(t, err)

	gz := gzip.NewWriter(file)
	tw := tar.NewWriter(gz)

	require.NoError(t, tw.WriteHeader(&tar.Header{
		Name:     "cgp/",
		Mode:     0o755,
		Typeflag: tar.TypeDir,
	}))

	require.NoError(t, tw.WriteHeader(&tar.Header{
		Name:     "cgp/cgp",
		Mode:     0o755,
		Typeflag: tar.TypeReg,
		Size:     int64(len(script)),
	}))

	_, err = tw.Write([]byte(script))
	require.NoError(t, err)

	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	require.NoError(t, file.Close())

	archive, err := os.ReadFile(archivePath)
	require.NoError(t, err)

	sum := sha256.Sum256(archive)
	manifest := fmt.Sprintf("%s  %s\n", hex.EncodeToString(sum[:]), testAssetName)
	require.NoError(t, os.WriteFile(filepath.Join(sourceDir, "checksums.txt"), []byte(manifest), 0o644))
}

// writeSourceBundle writes the standard test bundle: its cgp binary logs
// every invocation's arguments to logPath and reports the given version.
func writeSourceBundle(t *testing.T, sourceDir, logPath, version string) {
	t.Helper()

	script := fmt.Sprintf("#!/bin/sh\necho \"$@\" >> %q\necho \"cgp %s\"\n", logPath, version)
	writeSourceArchive(t, sourceDir, script)
}

// testConfig returns a configuration rooted in a fresh temp dir.
func testConfig(t *testing.T, sourceDir string) *config.Config {
	t.Helper()

	base := t.TempDir()

	return &config.Config{
		GithubRepo:    "owner/repo",
		Tag:           "v1.0.0",
		InstallDest:   filepath.Join(base, "bin"),
		InstallRoot:   filepath.Join(base, "lib", "cgp"),
		SourceDir:     sourceDir,
		OS:            "linux",
		Arch:          "x86_64",
		Timeout:       time.Second,
		CheckInterval: 5 * time.Minute,
		LogLevel:      "info",
	}
}

// newSourceService builds a service deploying version from a local source
// bundle. It returns the service and the argv log written by the fake cgp.
func newSourceService(t *testing.T, version string) (*Service, string) {
	t.Helper()

	base := t.TempDir()
	logPath := filepath.Join(base, "calls.log")
	sourceDir := filepath.Join(base, "source")
	writeSourceBundle(t, sourceDir, logPath, version)

	svc, err := New(testConfig(t, sourceDir))
	require.NoError(t, err)

	return svc, logPath
}

// readCallLog returns the argv lines the fake cgp binary recorded, one
// invocation per entry.
func readCallLog(t *testing.T, logPath string) []string {
	t.Helper()

	raw, err := os.ReadFile(logPath)
	if os.IsNotExist(err) {
		return nil
	}

	require.NoError(t, err)

	var calls []string

	for _, line := range strings.Split(string(raw), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			calls = append(calls, line)
		}
	}

	return calls
}
