package deploy

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/baaaaaaaka/cgp-deploy/internal/logger"
	"github.com/baaaaaaaka/cgp-deploy/internal/patchengine"
)

// noAutoUpdateEnv disables unattended upgrades entirely when set to any
// non-empty value.
const noAutoUpdateEnv = "CGP_NO_AUTO_UPDATE"

// UpgradeOptions adjust an upgrade run.
type UpgradeOptions struct {
	InstallOptions

	// Force installs even when no newer version is known.
	Force bool
	// Auto is the unattended mode for shell hooks: it consults the
	// update-check interval and the CGP_NO_AUTO_UPDATE guard, and stays
	// silent when there is nothing to do.
	Auto bool
}

// Upgrade installs the newest matching release when it is newer than what
// the receipt records. When the patch was applied before the upgrade it is
// re-applied with the new binary afterwards.
func (s *Service) Upgrade(ctx context.Context, opts *UpgradeOptions) error {
	ctx = logger.WithName(ctx, "upgrade")

	if opts == nil {
		opts = new(UpgradeOptions)
	}

	if opts.Auto {
		if os.Getenv(noAutoUpdateEnv) != "" {
			logger.DebugKV(ctx, "auto-update disabled", "env", noAutoUpdateEnv)

			return nil
		}

		if !s.ShouldCheck(time.Now()) {
			logger.Debug(ctx, "update check interval has not elapsed")

			return nil
		}
	}

	status, err := s.CheckForUpdate(ctx)
	if err != nil {
		return err
	}

	if status.Degraded != "" && !opts.Force {
		// Cannot compare versions: do nothing rather than reinstall
		// blindly. Forcing skips the comparison and installs anyway.
		logger.WarnKV(ctx, "skipping upgrade, remote version unknown",
			"error", status.Degraded)

		return nil
	}

	if !opts.Force && !status.UpdateAvailable {
		logger.InfoKV(ctx, "already up to date", "version", status.InstalledVersion)

		return nil
	}

	// If the patch is currently applied, the new binary should re-apply it
	// after the swap so the user's editor stays patched.
	reapply := false
	if _, err := os.Lstat(s.destLink()); err == nil {
		reapply = patchengine.New(s.destLink()).Status(ctx) == nil
	}

	if opts.Auto {
		announceUpgrade(status)
	}

	if err := s.Install(ctx, &opts.InstallOptions); err != nil {
		return err
	}

	if reapply {
		logger.Info(ctx, "re-applying patch with the new version")

		if err := patchengine.New(s.destLink()).Patch(ctx); err != nil {
			return fmt.Errorf("re-apply patch: %w", err)
		}
	}

	return nil
}

// announceUpgrade prints the one line of unattended-mode output. It goes to
// stderr so shell hooks capturing stdout stay clean.
func announceUpgrade(status *UpdateStatus) {
	if status.InstalledVersion == "" {
		fmt.Fprintf(os.Stderr, "Installing cgp %s...\n", status.RemoteVersion)

		return
	}

	fmt.Fprintf(os.Stderr, "Updating cgp %s → %s...\n",
		status.InstalledVersion, status.RemoteVersion)
}
