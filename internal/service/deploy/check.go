package deploy

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/baaaaaaaka/cgp-deploy/internal/config"
	"github.com/baaaaaaaka/cgp-deploy/internal/logger"
	"github.com/baaaaaaaka/cgp-deploy/internal/release"
	"github.com/baaaaaaaka/cgp-deploy/internal/repository/receipt"
)

// lastCheckFilename stores the time of the last update check under the
// installation root, as epoch seconds.
const lastCheckFilename = ".last-update-check"

// UpdateStatus is the outcome of an update check.
type UpdateStatus struct {
	// Repo is the release repository that was consulted.
	Repo string
	// AssetName is the bundle asset for this platform.
	AssetName string
	// InstalledTag and InstalledVersion come from the receipt; empty when
	// nothing was installed by this tool.
	InstalledTag     string
	InstalledVersion string
	// RemoteTag and RemoteVersion describe the release that would be
	// installed. Empty when resolution degraded.
	RemoteTag     string
	RemoteVersion string
	// UpdateAvailable reports whether the remote version is newer.
	UpdateAvailable bool
	// Degraded carries the resolution failure when the remote side could
	// not be consulted. The check itself still succeeds: automation treats
	// "cannot know" as "nothing to do", never as a hard stop.
	Degraded string
}

// CheckForUpdate compares the newest matching release against the receipt.
// The update-check stamp is refreshed on every path, including degraded
// ones, so unattended hooks do not hammer the release host.
func (s *Service) CheckForUpdate(ctx context.Context) (*UpdateStatus, error) {
	ctx = logger.WithName(ctx, "check")

	asset, err := s.target.BundleAsset()
	if err != nil {
		return nil, err
	}

	defer s.recordCheckTime(ctx)

	status := &UpdateStatus{
		Repo:      s.cfg.GithubRepo,
		AssetName: asset,
	}

	if r, err := s.receipts.Load(ctx); err == nil {
		status.InstalledTag = r.Tag
		status.InstalledVersion = r.Version
	} else if !errors.Is(err, receipt.ErrNotFound) {
		logger.WarnKV(ctx, "could not read install receipt", "error", err)
	}

	remoteTag := strings.TrimSpace(s.cfg.Tag)
	if remoteTag == "" || remoteTag == release.LatestTag {
		meta, err := s.client.LatestMetadata(ctx)
		if err != nil {
			status.Degraded = err.Error()

			logger.WarnKV(ctx, "could not resolve the newest release",
				"repo", s.cfg.GithubRepo,
				"error", err)

			return status, nil
		}

		remoteTag = meta.TagName
	}

	status.RemoteTag = remoteTag
	status.RemoteVersion = release.VersionFromTag(remoteTag)
	status.UpdateAvailable = release.IsNewer(status.RemoteVersion, status.InstalledVersion)

	logger.DebugKV(ctx, "update check finished",
		"installed", status.InstalledVersion,
		"remote", status.RemoteVersion,
		"update_available", status.UpdateAvailable)

	return status, nil
}

// ShouldCheck reports whether the check interval elapsed since the stamp
// was last written. A missing or unreadable stamp means "check now".
func (s *Service) ShouldCheck(now time.Time) bool {
	raw, err := os.ReadFile(s.lastCheckPath())
	if err != nil {
		return true
	}

	// The stamp holds epoch seconds; older generations wrote fractions.
	seconds, err := strconv.ParseFloat(strings.TrimSpace(string(raw)), 64)
	if err != nil {
		return true
	}

	return now.Sub(time.Unix(int64(seconds), 0)) >= s.cfg.CheckInterval
}

// recordCheckTime refreshes the stamp, best effort.
func (s *Service) recordCheckTime(ctx context.Context) {
	if err := os.MkdirAll(s.cfg.InstallRoot, 0o755); err != nil {
		logger.DebugKV(ctx, "could not create installation root for stamp", "error", err)

		return
	}

	payload := strconv.FormatInt(time.Now().Unix(), 10)
	if err := os.WriteFile(s.lastCheckPath(), []byte(payload), config.DefaultFilePermissions); err != nil {
		logger.DebugKV(ctx, "could not write update-check stamp", "error", err)
	}
}

func (s *Service) lastCheckPath() string {
	return filepath.Join(s.cfg.InstallRoot, lastCheckFilename)
}
