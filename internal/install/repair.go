package install

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/baaaaaaaka/cgp-deploy/internal/logger"
)

// ErrInstallFailed is returned when the clean-slate retry also failed and
// the installation is unusable.
var ErrInstallFailed = errors.New("install failed")

// Run executes an install with the repair policy: one attempt, and if only
// its final verification failed, one more from a clean slate. The two
// attempts are spelled out rather than looped so the retry bound is visible.
// The caller must hold the install lock for req.Root across the whole call.
func Run(ctx context.Context, req *Request) error {
	err := Install(ctx, req)
	if err == nil {
		return nil
	}

	// Only a broken result is worth retrying. A bad archive or an occupied
	// destination will not improve on a second pass.
	if !errors.Is(err, errVerificationFailed) {
		return err
	}

	logger.WarnKV(ctx, "installation failed verification, retrying from a clean slate",
		"error", err)

	if err := wipeInstallation(req); err != nil {
		return installFailed(req, err)
	}

	if err := Install(ctx, req); err != nil {
		return installFailed(req, err)
	}

	return nil
}

// wipeInstallation removes the current pointer and every published version.
// The lock directory and downloaded archive live outside both paths.
func wipeInstallation(req *Request) error {
	if err := os.RemoveAll(req.currentLink()); err != nil {
		return fmt.Errorf("remove current pointer: %w", err)
	}

	if err := os.RemoveAll(req.versionsDir()); err != nil {
		return fmt.Errorf("remove versions root: %w", err)
	}

	return nil
}

func installFailed(req *Request, err error) error {
	return fmt.Errorf(
		"%s is unusable after a clean-slate retry (%v), remove %s manually and reinstall: %w",
		req.destLink(), err, req.Root, ErrInstallFailed)
}
