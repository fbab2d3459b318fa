package install

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/baaaaaaaka/cgp-deploy/internal/logger"
	"github.com/baaaaaaaka/cgp-deploy/internal/release"
)

const (
	// bundleDir is the single top-level directory inside every release archive.
	bundleDir = "cgp"
	// versionsDirName holds one immutable directory per installed version.
	versionsDirName = "versions"
	// currentName is the symlink selecting the active version directory.
	currentName = "current"

	// scratchPattern names extraction scratch directories inside the
	// versions root. The leading dot keeps them out of version listings.
	scratchPattern = ".cgp-extract-*"

	// collisionSuffixFormat disambiguates version directory names.
	collisionSuffixFormat = "20060102150405"
)

// ErrDestinationConflict is returned when the destination path is occupied
// by something the installer refuses to touch.
var ErrDestinationConflict = errors.New("destination conflict")

// errVerificationFailed marks a completed install whose final check did not
// pass. It is the only failure the repair path retries.
var errVerificationFailed = errors.New("installation verification failed")

// Request describes one install attempt.
type Request struct {
	// ArchivePath is the downloaded release archive on local disk.
	ArchivePath string
	// AssetName is the archive's release filename, which selects the format.
	AssetName string
	// Tag names the version directory to publish.
	Tag string
	// Root is the installation root holding versions/ and current.
	Root string
	// Dest is the bin directory receiving the executable symlink.
	Dest string
	// Executable is the binary filename inside the bundle, "cgp" or "cgp.exe".
	Executable string
}

func (r *Request) validate() error {
	switch {
	case r == nil:
		return errors.New("install request must be provided")
	case r.ArchivePath == "":
		return errors.New("archive path must be provided")
	case r.AssetName == "":
		return errors.New("asset name must be provided")
	case r.Tag == "":
		return errors.New("tag must be provided")
	case r.Root == "":
		return errors.New("installation root must be provided")
	case r.Dest == "":
		return errors.New("destination directory must be provided")
	case r.Executable == "":
		return errors.New("executable name must be provided")
	}

	return nil
}

// VersionsDir returns the directory of published versions under root.
func VersionsDir(root string) string {
	return filepath.Join(root, versionsDirName)
}

// CurrentLink returns the current pointer path under root.
func CurrentLink(root string) string {
	return filepath.Join(root, currentName)
}

func (r *Request) versionsDir() string {
	return VersionsDir(r.Root)
}

func (r *Request) currentLink() string {
	return CurrentLink(r.Root)
}

func (r *Request) destLink() string {
	return filepath.Join(r.Dest, r.Executable)
}

// throughCurrent is the executable path reached via the current pointer.
// The destination symlink stores this path so version switches never have
// to touch the bin directory again.
func (r *Request) throughCurrent() string {
	return filepath.Join(r.currentLink(), bundleDir, r.Executable)
}

// Install runs one install attempt: extract, validate, publish, switch,
// relink, verify. Failures abort the remaining steps; scratch artifacts are
// cleaned up, while a previously working installation is left untouched.
func Install(ctx context.Context, req *Request) error {
	if err := req.validate(); err != nil {
		return err
	}

	if err := checkDestination(req.Root, req.Dest); err != nil {
		return err
	}

	if err := os.MkdirAll(req.versionsDir(), 0o755); err != nil {
		return fmt.Errorf("create versions root: %w", err)
	}

	scratch, err := os.MkdirTemp(req.versionsDir(), scratchPattern)
	if err != nil {
		return fmt.Errorf("create scratch directory: %w", err)
	}

	// After a successful publish the scratch directory no longer exists
	// and this is a no-op.
	defer os.RemoveAll(scratch)

	logger.InfoKV(ctx, "extracting bundle", "asset", req.AssetName)

	if err := Extract(req.ArchivePath, req.AssetName, scratch); err != nil {
		return err
	}

	if err := validateBundle(scratch, req.Executable); err != nil {
		return err
	}

	versionDir := filepath.Join(req.versionsDir(), versionDirName(req.versionsDir(), req.Tag))

	logger.InfoKV(ctx, "publishing version", "dir", versionDir)

	if err := os.Rename(scratch, versionDir); err != nil {
		return fmt.Errorf("publish version directory: %w", err)
	}

	if err := switchCurrent(req.currentLink(), versionDir); err != nil {
		return err
	}

	if err := relinkDestination(req.destLink(), req.throughCurrent()); err != nil {
		return err
	}

	if err := Verify(req.Root, req.Dest, req.Executable); err != nil {
		return err
	}

	logger.InfoKV(ctx, "installed", "dest", req.destLink())

	return nil
}

// validateBundle confirms the archive carried the expected executable and
// makes sure its execute bits are set.
func validateBundle(scratch, executable string) error {
	path := filepath.Join(scratch, bundleDir, executable)

	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return fmt.Errorf("bundle is missing %s: %w", filepath.Join(bundleDir, executable), ErrInvalidBundle)
	}

	// Archives built on Windows may lack execute bits.
	_ = os.Chmod(path, info.Mode().Perm()|0o111)

	return nil
}

// versionDirName picks the directory name for a tag. The "latest"
// pseudo-tag always gets a timestamp suffix since it names no fixed
// version; a name collision from a retry or race gets one too instead of
// overwriting the existing directory.
func versionDirName(versionsDir, tag string) string {
	if tag == release.LatestTag {
		return tag + "-" + time.Now().UTC().Format(collisionSuffixFormat)
	}

	if _, err := os.Lstat(filepath.Join(versionsDir, tag)); err == nil {
		return tag + "-" + time.Now().UTC().Format(collisionSuffixFormat)
	}

	return tag
}

// switchCurrent atomically repoints the current symlink at versionDir.
func switchCurrent(currentLink, versionDir string) error {
	// A rename cannot replace a real directory or file, only a symlink.
	// Anything else at the pointer path is leftover state we own, clear it.
	if info, err := os.Lstat(currentLink); err == nil && info.Mode()&os.ModeSymlink == 0 {
		if err := os.RemoveAll(currentLink); err != nil {
			return fmt.Errorf("remove stale current pointer: %w", err)
		}
	}

	if err := replaceSymlink(versionDir, currentLink); err != nil {
		return fmt.Errorf("switch current pointer: %w", err)
	}

	return nil
}

// relinkDestination atomically repoints the destination symlink at the
// through-current executable path. A real directory at the destination is
// user data and is never deleted.
func relinkDestination(destLink, target string) error {
	if info, err := os.Lstat(destLink); err == nil && info.IsDir() {
		return fmt.Errorf(
			"%s exists as a directory, move it aside or choose another destination: %w",
			destLink, ErrDestinationConflict)
	}

	if err := os.MkdirAll(filepath.Dir(destLink), 0o755); err != nil {
		return fmt.Errorf("create destination directory: %w", err)
	}

	if err := replaceSymlink(target, destLink); err != nil {
		return fmt.Errorf("relink destination: %w", err)
	}

	return nil
}

// checkDestination refuses a bin directory inside the managed tree: the
// repair path wipes versions/ and current, and the destination must
// survive that.
func checkDestination(root, dest string) error {
	for _, sub := range []string{currentName, versionsDirName} {
		if isWithin(dest, filepath.Join(root, sub)) {
			return fmt.Errorf(
				"destination %s is inside the installation root %s, set CGP_INSTALL_DEST to a directory outside it: %w",
				dest, root, ErrDestinationConflict)
		}
	}

	return nil
}

func isWithin(path, root string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}

	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(os.PathSeparator)))
}

// Verify confirms the installed executable is reachable exactly as the
// installer leaves it: destination symlink -> through-current path, the
// current pointer resolving to a version directory, and a regular
// executable file at the end, itself not a symlink.
func Verify(root, dest, executable string) error {
	req := &Request{Root: root, Dest: dest, Executable: executable}
	destLink := req.destLink()

	raw, err := os.Readlink(destLink)
	if err != nil {
		return fmt.Errorf("%s is not a symlink: %v: %w", destLink, err, errVerificationFailed)
	}

	resolved := raw
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(dest, raw)
	}

	if filepath.Clean(resolved) != filepath.Clean(req.throughCurrent()) {
		return fmt.Errorf("%s points at %s, want %s: %w",
			destLink, raw, req.throughCurrent(), errVerificationFailed)
	}

	currentTarget, err := os.Readlink(req.currentLink())
	if err != nil {
		return fmt.Errorf("current pointer %s is unreadable: %v: %w",
			req.currentLink(), err, errVerificationFailed)
	}

	if !filepath.IsAbs(currentTarget) {
		currentTarget = filepath.Join(root, currentTarget)
	}

	final := filepath.Join(currentTarget, bundleDir, executable)

	info, err := os.Lstat(final)
	if err != nil {
		return fmt.Errorf("installed executable %s is missing: %v: %w", final, err, errVerificationFailed)
	}

	if info.Mode()&os.ModeSymlink != 0 {
		return fmt.Errorf("installed executable %s is itself a symlink: %w", final, errVerificationFailed)
	}

	if !info.Mode().IsRegular() {
		return fmt.Errorf("installed executable %s is not a regular file: %w", final, errVerificationFailed)
	}

	if runtime.GOOS != "windows" && info.Mode().Perm()&0o111 == 0 {
		return fmt.Errorf("installed executable %s is not executable: %w", final, errVerificationFailed)
	}

	return nil
}
