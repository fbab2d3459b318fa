package install

import (
	"fmt"
	"os"
	"path/filepath"
)

// replaceSymlink points link at target through an atomic rename.
// The new link is created under a temporary name next to the final one and
// moved into place, so readers dereferencing link never observe a partial
// state: they see the old target, no link at all, or the new target.
func replaceSymlink(target, link string) error {
	// Already pointing at the target, nothing to swap.
	if existing, err := os.Readlink(link); err == nil {
		resolved := existing
		if !filepath.IsAbs(resolved) {
			resolved = filepath.Join(filepath.Dir(link), existing)
		}

		if filepath.Clean(resolved) == filepath.Clean(target) {
			return nil
		}
	}

	if filepath.Clean(target) == filepath.Clean(link) {
		return fmt.Errorf("refusing to create self-referential symlink %s", link)
	}

	if err := os.MkdirAll(filepath.Dir(link), 0o755); err != nil {
		return fmt.Errorf("create parent of %s: %w", link, err)
	}

	tmp := filepath.Join(filepath.Dir(link), fmt.Sprintf(".%s.%d.tmp", filepath.Base(link), os.Getpid()))

	// A crashed earlier run may have left its temporary link behind.
	_ = os.Remove(tmp)

	if err := os.Symlink(target, tmp); err != nil {
		return fmt.Errorf("create symlink %s: %w", tmp, err)
	}

	if err := os.Rename(tmp, link); err != nil {
		_ = os.Remove(tmp)

		return fmt.Errorf("swap symlink into %s: %w", link, err)
	}

	return nil
}
