package deploy

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/baaaaaaaka/cgp-deploy/internal/install"
	"github.com/baaaaaaaka/cgp-deploy/internal/logger"
	"github.com/baaaaaaaka/cgp-deploy/internal/patchengine"
	"github.com/baaaaaaaka/cgp-deploy/internal/procs"
)

// errProcessesRunning blocks uninstalls while cgp is in use.
var errProcessesRunning = errors.New("cgp is currently running")

// UninstallOptions adjust an uninstall run.
type UninstallOptions struct {
	// KeepVersions leaves the published versions in place so a later
	// install can switch back without downloading.
	KeepVersions bool
	// Force proceeds even when cgp processes are running.
	Force bool
}

// Uninstall removes the destination symlink, the current pointer, the
// versions root, and the receipt. The patch engine's hooks are unwound
// first, while the binary still exists.
func (s *Service) Uninstall(ctx context.Context, opts *UninstallOptions) error {
	ctx = logger.WithName(ctx, "uninstall")

	if opts == nil {
		opts = new(UninstallOptions)
	}

	if !opts.Force && procs.AnyRunning(ctx, s.target.ExecutableName()) {
		return fmt.Errorf("%w, close it or pass --force", errProcessesRunning)
	}

	// Unwind the patch before deleting the binary that knows how.
	// Best effort: a half-broken installation must still be removable.
	if _, err := os.Lstat(s.destLink()); err == nil {
		engine := patchengine.New(s.destLink())

		if err := engine.AutoUninstall(ctx); err != nil {
			logger.WarnKV(ctx, "auto-uninstall hook failed", "error", err)
		}

		if err := engine.Unpatch(ctx); err != nil {
			logger.WarnKV(ctx, "unpatch failed", "error", err)
		}
	}

	lock, err := install.Acquire(s.cfg.InstallRoot)
	if err != nil {
		return err
	}
	defer lock.Release()

	if err := s.removeDestLink(); err != nil {
		return err
	}

	if err := os.RemoveAll(install.CurrentLink(s.cfg.InstallRoot)); err != nil {
		return fmt.Errorf("remove current pointer: %w", err)
	}

	if !opts.KeepVersions {
		if err := os.RemoveAll(install.VersionsDir(s.cfg.InstallRoot)); err != nil {
			return fmt.Errorf("remove versions root: %w", err)
		}
	}

	if err := s.receipts.Delete(ctx); err != nil {
		logger.WarnKV(ctx, "could not remove install receipt", "error", err)
	}

	_ = os.Remove(s.lastCheckPath())

	// Drop the lock before trying to remove the root itself; the rmdir
	// only succeeds when nothing else lives there.
	lock.Release()

	if err := os.Remove(s.cfg.InstallRoot); err == nil {
		logger.InfoKV(ctx, "removed installation root", "root", s.cfg.InstallRoot)
	}

	logger.Info(ctx, "uninstalled")

	return nil
}

// removeDestLink deletes the destination symlink and nothing else: a real
// file or directory at that path was not created by this tool.
func (s *Service) removeDestLink() error {
	info, err := os.Lstat(s.destLink())
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("inspect destination: %w", err)
	}

	if info.Mode()&os.ModeSymlink == 0 {
		return fmt.Errorf("%s was not created by this tool, not removing it: %w",
			s.destLink(), install.ErrDestinationConflict)
	}

	if err := os.Remove(s.destLink()); err != nil {
		return fmt.Errorf("remove destination symlink: %w", err)
	}

	return nil
}
