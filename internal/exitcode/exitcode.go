// Package exitcode maps error kinds to the process exit codes automation
// parses. The values are part of the tool's contract and must stay stable.
package exitcode

import (
	"errors"

	"github.com/baaaaaaaka/cgp-deploy/internal/install"
	"github.com/baaaaaaaka/cgp-deploy/internal/platform"
	"github.com/baaaaaaaka/cgp-deploy/internal/release"
)

const (
	// OK is the success exit code.
	OK = 0
	// Generic covers failures without a more specific classification.
	Generic = 1
	// UnsupportedPlatform: no release asset exists for this OS/arch pair.
	UnsupportedPlatform = 2
	// DownloadUnavailable: the release archive could not be retrieved.
	DownloadUnavailable = 3
	// ChecksumMismatch: the archive does not match its published digest.
	ChecksumMismatch = 4
	// InvalidBundle: the archive is malformed or missing the executable.
	InvalidBundle = 5
	// DestinationConflict: the destination path is occupied by user data.
	DestinationConflict = 6
	// LockHeld: another install is in progress against the same root.
	LockHeld = 7
	// InstallFailed: the clean-slate retry also failed, manual cleanup needed.
	InstallFailed = 8
)

// FromError classifies an error chain into its exit code.
func FromError(err error) int {
	switch {
	case err == nil:
		return OK
	case errors.Is(err, platform.ErrUnsupportedPlatform):
		return UnsupportedPlatform
	case errors.Is(err, release.ErrDownloadUnavailable):
		return DownloadUnavailable
	case errors.Is(err, release.ErrChecksumMismatch):
		return ChecksumMismatch
	case errors.Is(err, install.ErrInvalidBundle):
		return InvalidBundle
	case errors.Is(err, install.ErrDestinationConflict):
		return DestinationConflict
	case errors.Is(err, install.ErrLockHeld):
		return LockHeld
	case errors.Is(err, install.ErrInstallFailed):
		return InstallFailed
	default:
		return Generic
	}
}
