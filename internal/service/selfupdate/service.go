// Package selfupdate replaces the running cgp-deploy binary with the newest
// published one. Unlike cgp installs there is no versioned tree to switch:
// the binary-update library swaps the executable in place and keeps a .old
// backup until the new binary proves it can run.
package selfupdate

import (
	"bytes"
	"context"
	"crypto"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	goupdate "github.com/doitdistributed/go-update"

	"github.com/baaaaaaaka/cgp-deploy/internal/config"
	"github.com/baaaaaaaka/cgp-deploy/internal/logger"
	"github.com/baaaaaaaka/cgp-deploy/internal/platform"
	"github.com/baaaaaaaka/cgp-deploy/internal/release"

	// Ensure SHA256 is available for checksum validation.
	_ "crypto/sha256"
)

// errConfigRequired is returned when the service is built without settings.
var errConfigRequired = errors.New("configuration must be provided")

const (
	// checksumFunction validates the downloaded binary during apply.
	checksumFunction crypto.Hash = crypto.SHA256

	// executableMode is the mode the replaced binary ends up with.
	executableMode os.FileMode = 0o755

	// probeTimeout bounds the post-apply verification run.
	probeTimeout = 10 * time.Second

	// downloadPattern names the scratch directory holding the downloaded
	// binary before it is applied.
	downloadPattern = ".cgp-deploy-update-*"
)

// Service fetches and applies updates of the deployment manager itself.
type Service struct {
	// cfg is the validated configuration.
	cfg *config.Config
	// target is the platform the binary is selected for.
	target platform.Target
	// client resolves tags and builds download URLs.
	client *release.Client
	// fetcher retrieves the binary and the checksum manifest.
	fetcher *release.Fetcher
	// targetPath is the executable to replace. Empty means the running one.
	targetPath string
}

// Option overrides a service dependency. Used by tests.
type Option func(*Service)

// WithClient replaces the release client.
func WithClient(client *release.Client) Option {
	return func(s *Service) {
		s.client = client
	}
}

// WithFetcher replaces the binary fetcher.
func WithFetcher(fetcher *release.Fetcher) Option {
	return func(s *Service) {
		s.fetcher = fetcher
	}
}

// WithTargetPath replaces a specific executable instead of the running one.
func WithTargetPath(path string) Option {
	return func(s *Service) {
		s.targetPath = path
	}
}

// New builds the service from validated configuration.
func New(cfg *config.Config, opts ...Option) (*Service, error) {
	if cfg == nil {
		return nil, errConfigRequired
	}

	s := &Service{
		cfg:    cfg,
		target: platform.Detect(cfg.OS, cfg.Arch),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.client == nil {
		s.client = release.NewClient(cfg.GithubRepo, cfg.Timeout)
	}

	if s.fetcher == nil {
		var fetcherOpts []release.FetcherOption
		if cfg.SourceDir != "" {
			fetcherOpts = append(fetcherOpts, release.WithSourceDir(cfg.SourceDir))
		}

		s.fetcher = release.NewFetcher(s.client, fetcherOpts...)
	}

	return s, nil
}

// Run downloads the deploy binary for this platform and swaps it over the
// target executable. On success the .old backup is removed; when the new
// binary fails its probe the backup stays on disk for manual recovery.
func (s *Service) Run(ctx context.Context) error {
	ctx = logger.WithName(ctx, "selfupdate")

	asset, err := s.target.DeployAsset()
	if err != nil {
		return err
	}

	execPath := s.targetPath
	if execPath == "" {
		execPath, err = os.Executable()
		if err != nil {
			return fmt.Errorf("locate own executable: %w", err)
		}
	}

	tag := s.client.ResolveTag(ctx, s.cfg.Tag)

	logger.InfoKV(ctx, "updating deployment manager",
		"repo", s.cfg.GithubRepo,
		"tag", tag,
		"asset", asset,
		"executable", execPath)

	downloadDir, err := os.MkdirTemp("", downloadPattern)
	if err != nil {
		return fmt.Errorf("create download directory: %w", err)
	}
	defer os.RemoveAll(downloadDir)

	bundle, err := s.fetcher.Fetch(ctx, asset, tag, downloadDir)
	if err != nil {
		return err
	}

	digest, err := bundle.Manifest.Verify(bundle.ArchivePath, bundle.AssetName)
	if err != nil {
		return err
	}

	checksum, err := decodeChecksum(ctx, digest, asset)
	if err != nil {
		return err
	}

	backupPath := execPath + ".old"

	if err := s.apply(ctx, bundle.ArchivePath, execPath, backupPath, checksum); err != nil {
		return err
	}

	if err := s.probe(ctx, execPath); err != nil {
		return fmt.Errorf("%w, the previous binary is kept at %s", err, backupPath)
	}

	// The new binary works, drop the backup.
	if _, err := os.Stat(backupPath); err == nil {
		_ = os.Remove(backupPath)
	}

	logger.InfoKV(ctx, "deployment manager updated", "executable", execPath)

	return nil
}

// decodeChecksum turns the manifest digest into the byte form the update
// library validates against. An empty digest disables validation.
func decodeChecksum(ctx context.Context, digest, asset string) ([]byte, error) {
	if digest == "" {
		logger.WarnKV(ctx, "release publishes no checksum for this asset, skipping validation",
			"asset", asset)

		return nil, nil
	}

	checksum, err := hex.DecodeString(digest)
	if err != nil {
		return nil, fmt.Errorf("decode checksum %s: %w", digest, err)
	}

	return checksum, nil
}

// apply swaps the downloaded binary over the executable at execPath,
// saving the previous one at backupPath.
func (s *Service) apply(ctx context.Context, binaryPath, execPath, backupPath string, checksum []byte) error {
	data, err := os.ReadFile(binaryPath)
	if err != nil {
		return fmt.Errorf("read downloaded binary: %w", err)
	}

	logger.DebugKV(ctx, "applying update", "bytes", len(data), "executable", execPath)

	options := goupdate.Options{
		TargetPath:  execPath,
		TargetMode:  executableMode,
		Checksum:    checksum,
		Hash:        checksumFunction,
		OldSavePath: backupPath,
	}

	if err := goupdate.Apply(bytes.NewReader(data), options); err != nil {
		return fmt.Errorf("apply update to %s: %w", execPath, err)
	}

	return nil
}

// probe executes the replaced binary to prove the update took.
func (s *Service) probe(ctx context.Context, execPath string) error {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	cmd := exec.CommandContext(probeCtx, execPath, "version")

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("updated binary failed verification %s version: %s: %w",
			execPath, firstLine(output), err)
	}

	logger.DebugKV(ctx, "verification passed", "version", firstLine(output))

	return nil
}

func firstLine(output []byte) string {
	for i, b := range output {
		if b == '\n' || b == '\r' {
			return string(output[:i])
		}
	}

	return string(output)
}
