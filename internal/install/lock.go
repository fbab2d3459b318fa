package install

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// LockDirName is the lock directory created under the installation root.
const LockDirName = ".cgp.lock"

// ErrLockHeld is returned when another process holds the install lock.
// There is no waiting: a contended lock fails immediately.
var ErrLockHeld = errors.New("install already in progress")

// Lock is a held install lock. The zero value is released.
type Lock struct {
	// dir is the lock directory path, empty once released.
	dir string
}

// Acquire takes the install lock for root by creating root/.cgp.lock.
// Directory creation is atomic, so exactly one process wins; losers get
// ErrLockHeld immediately. The owner file inside is diagnostic only.
func Acquire(root string) (*Lock, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create installation root %s: %w", root, err)
	}

	dir := filepath.Join(root, LockDirName)

	if err := os.Mkdir(dir, 0o700); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf(
				"%w (lock: %s), remove the lock directory if no other install is running",
				ErrLockHeld, dir)
		}

		return nil, fmt.Errorf("acquire install lock at %s: %w", dir, err)
	}

	// Best effort: the owner file helps a human decide whether the lock
	// is stale, it is never read for correctness.
	hostname, _ := os.Hostname()
	executable, _ := os.Executable()
	owner := fmt.Sprintf("pid=%d\nhost=%s\nexe=%s\n", os.Getpid(), hostname, executable)
	_ = os.WriteFile(filepath.Join(dir, "owner.txt"), []byte(owner), 0o600)

	return &Lock{dir: dir}, nil
}

// Release removes the lock directory. Safe to call more than once and on
// a nil lock, so callers can defer it unconditionally.
func (l *Lock) Release() {
	if l == nil || l.dir == "" {
		return
	}

	_ = os.RemoveAll(l.dir)
	l.dir = ""
}

// Dir returns the lock directory path, or empty after release.
func (l *Lock) Dir() string {
	if l == nil {
		return ""
	}

	return l.dir
}
