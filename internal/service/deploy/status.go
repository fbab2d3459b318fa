package deploy

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/baaaaaaaka/cgp-deploy/internal/install"
	"github.com/baaaaaaaka/cgp-deploy/internal/logger"
	"github.com/baaaaaaaka/cgp-deploy/internal/repository/receipt"
)

// InstallationStatus describes what is currently on disk.
type InstallationStatus struct {
	// DestLink is the destination symlink path, <dest>/cgp.
	DestLink string
	// DestTarget is where the destination symlink points, empty when the
	// link is missing or not a symlink.
	DestTarget string
	// CurrentTarget is where the current pointer points, empty when missing.
	CurrentTarget string
	// Versions lists the published version directories.
	Versions []string
	// Receipt is the recorded install outcome, nil when absent.
	Receipt *receipt.Receipt
	// Healthy reports whether the one-hop symlink contract holds.
	Healthy bool
	// Problem carries the verification failure when unhealthy.
	Problem string
}

// Installed reports whether anything is present at the destination path.
func (st *InstallationStatus) Installed() bool {
	return st.DestTarget != "" || st.CurrentTarget != "" || len(st.Versions) > 0
}

// Status inspects the installation tree. It reads, never mutates, so it
// does not take the install lock.
func (s *Service) Status(ctx context.Context) (*InstallationStatus, error) {
	ctx = logger.WithName(ctx, "status")

	st := &InstallationStatus{DestLink: s.destLink()}

	if target, err := os.Readlink(st.DestLink); err == nil {
		st.DestTarget = target
	}

	if target, err := os.Readlink(install.CurrentLink(s.cfg.InstallRoot)); err == nil {
		st.CurrentTarget = target
	}

	entries, err := os.ReadDir(install.VersionsDir(s.cfg.InstallRoot))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	for _, entry := range entries {
		// Scratch directories are hidden and transient, skip them.
		if entry.IsDir() && !strings.HasPrefix(entry.Name(), ".") {
			st.Versions = append(st.Versions, entry.Name())
		}
	}

	if r, err := s.receipts.Load(ctx); err == nil {
		st.Receipt = r
	} else if !errors.Is(err, receipt.ErrNotFound) {
		logger.WarnKV(ctx, "could not read install receipt", "error", err)
	}

	if err := install.Verify(s.cfg.InstallRoot, s.cfg.InstallDest, s.target.ExecutableName()); err != nil {
		st.Problem = err.Error()
	} else {
		st.Healthy = true
	}

	return st, nil
}
