package selfupdate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/baaaaaaaka/cgp-deploy/internal/config"
	"github.com/baaaaaaaka/cgp-deploy/internal/platform"
	"github.com/baaaaaaaka/cgp-deploy/internal/release"
)

const testDeployAsset = "cgp-deploy-linux-x86_64"

func deployScript(version string) string {
	return fmt.Sprintf("#!/bin/sh\necho \"cgp-deploy %s\"\n", version)
}

// writeDeployAsset places the raw binary asset and its checksum entry into
// a release source directory.
func writeDeployAsset(t *testing.T, sourceDir, content string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(sourceDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sourceDir, testDeployAsset), []byte(content), 0o755))

	sum := sha256.Sum256([]byte(content))
	manifest := fmt.Sprintf("%s  %s\n", hex.EncodeToString(sum[:]), testDeployAsset)
	require.NoError(t, os.WriteFile(
		filepath.Join(sourceDir, release.ChecksumsFilename), []byte(manifest), 0o644))
}

// newTestService builds a service updating a scratch executable from a
// local source directory. It returns the service and the executable path.
func newTestService(t *testing.T, assetContent string) (*Service, string) {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("fixtures rely on posix shell scripts")
	}

	base := t.TempDir()

	target := filepath.Join(base, "bin", "cgp-deploy")
	require.NoError(t, os.MkdirAll(filepath.Dir(target), 0o755))
	require.NoError(t, os.WriteFile(target, []byte(deployScript("1.0.0")), 0o755))

	sourceDir := filepath.Join(base, "source")
	writeDeployAsset(t, sourceDir, assetContent)

	cfg := &config.Config{
		GithubRepo: "owner/repo",
		Tag:        "v2.0.0",
		SourceDir:  sourceDir,
		OS:         "linux",
		Arch:       "x86_64",
		Timeout:    time.Second,
	}

	svc, err := New(cfg, WithTargetPath(target))
	require.NoError(t, err)

	return svc, target
}

func TestRunAppliesUpdate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, target := newTestService(t, deployScript("2.0.0"))

	require.NoError(t, svc.Run(ctx))

	content, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, deployScript("2.0.0"), string(content))

	info, err := os.Stat(target)
	require.NoError(t, err)
	require.NotZero(t, info.Mode()&0o111)

	// The backup is dropped once the new binary passes its probe.
	require.NoFileExists(t, target+".old")
}

func TestRunChecksumMismatch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, target := newTestService(t, deployScript("2.0.0"))

	bogus := fmt.Sprintf("%064d  %s\n", 0, testDeployAsset)
	require.NoError(t, os.WriteFile(
		filepath.Join(svc.cfg.SourceDir, release.ChecksumsFilename), []byte(bogus), 0o644))

	err := svc.Run(ctx)
	require.ErrorIs(t, err, release.ErrChecksumMismatch)

	content, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, deployScript("1.0.0"), string(content))
}

func TestRunWithoutManifest(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, target := newTestService(t, deployScript("3.0.0"))

	require.NoError(t, os.Remove(filepath.Join(svc.cfg.SourceDir, release.ChecksumsFilename)))

	require.NoError(t, svc.Run(ctx))

	content, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, deployScript("3.0.0"), string(content))
}

func TestRunMissingAsset(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, target := newTestService(t, deployScript("2.0.0"))

	require.NoError(t, os.Remove(filepath.Join(svc.cfg.SourceDir, testDeployAsset)))

	err := svc.Run(ctx)
	require.ErrorIs(t, err, release.ErrDownloadUnavailable)

	content, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, deployScript("1.0.0"), string(content))
}

func TestRunUnsupportedPlatform(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	cfg := &config.Config{
		GithubRepo: "owner/repo",
		Tag:        "v2.0.0",
		OS:         "plan9",
		Arch:       "mips",
		Timeout:    time.Second,
	}

	svc, err := New(cfg)
	require.NoError(t, err)

	require.ErrorIs(t, svc.Run(ctx), platform.ErrUnsupportedPlatform)
}

func TestRunProbeFailureKeepsBackup(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, target := newTestService(t, "#!/bin/sh\nexit 3\n")

	err := svc.Run(ctx)
	require.Error(t, err)
	require.Contains(t, err.Error(), ".old")

	// The broken binary is in place, but the previous one survives as the
	// .old backup for manual recovery.
	backup, readErr := os.ReadFile(target + ".old")
	require.NoError(t, readErr)
	require.Equal(t, deployScript("1.0.0"), string(backup))
}
