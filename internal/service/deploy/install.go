package deploy

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/baaaaaaaka/cgp-deploy/internal/install"
	"github.com/baaaaaaaka/cgp-deploy/internal/logger"
	"github.com/baaaaaaaka/cgp-deploy/internal/patchengine"
	"github.com/baaaaaaaka/cgp-deploy/internal/procs"
	"github.com/baaaaaaaka/cgp-deploy/internal/release"
	"github.com/baaaaaaaka/cgp-deploy/internal/repository/receipt"
	"github.com/baaaaaaaka/cgp-deploy/internal/version"
)

// downloadPattern names the temporary download directory under the
// installation root. Keeping it root-local means archive and final tree
// share a filesystem, and the hidden name keeps it out of listings.
const downloadPattern = ".cgp-download-*"

// InstallOptions adjust one install or upgrade run.
type InstallOptions struct {
	// SkipHealthCheck disables the post-install binary probe.
	SkipHealthCheck bool
	// AutoHook registers the patch engine's auto-apply hook after install.
	AutoHook bool
}

// Install runs the full deployment flow: resolve the release, fetch and
// verify the archive, and hand it to the installer under the install lock.
func (s *Service) Install(ctx context.Context, opts *InstallOptions) error {
	ctx = logger.WithName(ctx, "deploy")

	if opts == nil {
		opts = new(InstallOptions)
	}

	asset, err := s.target.BundleAsset()
	if err != nil {
		return err
	}

	if procs.AnyRunning(ctx, s.target.ExecutableName()) {
		logger.WarnKV(ctx,
			"cgp is currently running, open handles keep the old version alive until it restarts",
			"executable", s.target.ExecutableName())
	}

	tag := s.client.ResolveTag(ctx, s.cfg.Tag)
	ctx = logger.WithKV(ctx, "tag", tag)

	logger.InfoKV(ctx, "deploying",
		"repo", s.cfg.GithubRepo,
		"asset", asset,
		"platform", s.target.String())

	if err := os.MkdirAll(s.cfg.InstallRoot, 0o755); err != nil {
		return fmt.Errorf("create installation root: %w", err)
	}

	downloadDir, err := os.MkdirTemp(s.cfg.InstallRoot, downloadPattern)
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

	if digest == "" {
		logger.WarnKV(ctx, "release publishes no checksum for this asset, skipping verification",
			"asset", asset)
	} else {
		logger.InfoKV(ctx, "checksum verified", "sha256", digest)
	}

	lock, err := install.Acquire(s.cfg.InstallRoot)
	if err != nil {
		return err
	}
	defer lock.Release()

	req := &install.Request{
		ArchivePath: bundle.ArchivePath,
		AssetName:   bundle.AssetName,
		Tag:         tag,
		Root:        s.cfg.InstallRoot,
		Dest:        s.cfg.InstallDest,
		Executable:  s.target.ExecutableName(),
	}

	if err := install.Run(ctx, req); err != nil {
		return err
	}

	if !opts.SkipHealthCheck {
		if err := patchengine.New(s.destLink()).HealthCheck(ctx); err != nil {
			return fmt.Errorf(
				"installed binary failed its health check (%v), remove %s manually and reinstall: %w",
				err, s.cfg.InstallRoot, install.ErrInstallFailed)
		}
	}

	s.saveReceipt(ctx, tag, asset, digest)

	if opts.AutoHook {
		if err := patchengine.New(s.destLink()).AutoInstall(ctx); err != nil {
			return fmt.Errorf("register auto-apply hook: %w", err)
		}
	}

	return nil
}

// saveReceipt records the install outcome. Receipts are informational, so
// a write failure is logged and swallowed.
func (s *Service) saveReceipt(ctx context.Context, tag, asset, digest string) {
	r := &receipt.Receipt{
		Tag:            tag,
		Version:        release.VersionFromTag(tag),
		Repo:           s.cfg.GithubRepo,
		AssetName:      asset,
		Digest:         digest,
		Dest:           s.cfg.InstallDest,
		InstalledAt:    time.Now().UTC(),
		ManagerVersion: version.Version,
	}

	if err := s.receipts.Save(ctx, r); err != nil {
		logger.WarnKV(ctx, "could not write install receipt", "error", err)
	}
}
