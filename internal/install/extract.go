package install

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalidBundle is returned when a release archive is malformed: wrong
// archive type, unsafe member paths, or the expected executable missing.
var ErrInvalidBundle = errors.New("invalid bundle")

// Extract unpacks the archive into destDir, choosing the format from the
// asset filename. Member paths are validated before anything is written.
func Extract(archivePath, assetName, destDir string) error {
	switch {
	case strings.HasSuffix(assetName, ".tar.gz"):
		return extractTarGz(archivePath, destDir)
	case strings.HasSuffix(assetName, ".zip"):
		return extractZip(archivePath, destDir)
	default:
		return fmt.Errorf("unsupported bundle asset %s: %w", assetName, ErrInvalidBundle)
	}
}

func extractTarGz(archivePath, destDir string) error {
	file, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer file.Close()

	gz, err := gzip.NewReader(file)
	if err != nil {
		return fmt.Errorf("read gzip stream: %v: %w", err, ErrInvalidBundle)
	}
	defer gz.Close()

	reader := tar.NewReader(gz)

	for {
		header, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return fmt.Errorf("read archive: %v: %w", err, ErrInvalidBundle)
		}

		if err := checkMemberPath(header.Name); err != nil {
			return err
		}

		target := filepath.Join(destDir, filepath.FromSlash(header.Name))
		if err := ensureWithinRoot(destDir, target); err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, header.FileInfo().Mode().Perm()); err != nil {
				return fmt.Errorf("create directory %s: %w", target, err)
			}
		case tar.TypeReg:
			if err := writeFileFrom(reader, target, header.FileInfo().Mode().Perm()); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := checkLinkTarget(header.Name, header.Linkname); err != nil {
				return err
			}

			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("create directory for %s: %w", target, err)
			}

			if err := os.Symlink(header.Linkname, target); err != nil {
				return fmt.Errorf("create symlink %s: %w", target, err)
			}
		case tar.TypeLink:
			if err := checkLinkTarget(header.Name, header.Linkname); err != nil {
				return err
			}

			source := filepath.Join(destDir, filepath.FromSlash(header.Linkname))
			if err := ensureWithinRoot(destDir, source); err != nil {
				return err
			}

			if err := os.Link(source, target); err != nil {
				return fmt.Errorf("create hard link %s: %w", target, err)
			}
		default:
			// Device nodes and the like have no business in a release bundle.
			return fmt.Errorf("unsupported archive member %q (type %d): %w",
				header.Name, header.Typeflag, ErrInvalidBundle)
		}
	}

	return nil
}

func extractZip(archivePath, destDir string) error {
	archive, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("open zip archive: %v: %w", err, ErrInvalidBundle)
	}
	defer archive.Close()

	for _, member := range archive.File {
		if err := checkMemberPath(member.Name); err != nil {
			return err
		}

		target := filepath.Join(destDir, filepath.FromSlash(member.Name))
		if err := ensureWithinRoot(destDir, target); err != nil {
			return err
		}

		if member.FileInfo().IsDir() {
			if err := os.MkdirAll(target, member.Mode().Perm()); err != nil {
				return fmt.Errorf("create directory %s: %w", target, err)
			}

			continue
		}

		content, err := member.Open()
		if err != nil {
			return fmt.Errorf("read archive member %s: %v: %w", member.Name, err, ErrInvalidBundle)
		}

		err = writeFileFrom(content, target, member.Mode().Perm())
		content.Close()

		if err != nil {
			return err
		}
	}

	return nil
}

func writeFileFrom(content io.Reader, target string, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", target, err)
	}

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("create file %s: %w", target, err)
	}

	//nolint:gosec // G110: release bundles are size-bounded, not attacker-sized.
	if _, err := io.Copy(out, content); err != nil {
		out.Close()

		return fmt.Errorf("write file %s: %w", target, err)
	}

	return out.Close()
}

// checkMemberPath rejects absolute member paths and any ".." element, with
// backslashes treated as separators so Windows-built archives get the same
// scrutiny.
func checkMemberPath(name string) error {
	if strings.HasPrefix(name, "/") || strings.HasPrefix(name, `\`) {
		return fmt.Errorf("unsafe archive member path %q: %w", name, ErrInvalidBundle)
	}

	for _, part := range splitArchivePath(name) {
		if part == ".." {
			return fmt.Errorf("unsafe archive member path %q: %w", name, ErrInvalidBundle)
		}
	}

	return nil
}

// checkLinkTarget applies the same rules to symlink and hard link targets.
func checkLinkTarget(name, linkname string) error {
	if strings.HasPrefix(linkname, "/") || strings.HasPrefix(linkname, `\`) {
		return fmt.Errorf("unsafe archive link target %q -> %q: %w", name, linkname, ErrInvalidBundle)
	}

	for _, part := range splitArchivePath(linkname) {
		if part == ".." {
			return fmt.Errorf("unsafe archive link target %q -> %q: %w", name, linkname, ErrInvalidBundle)
		}
	}

	return nil
}

func splitArchivePath(name string) []string {
	return strings.FieldsFunc(name, func(r rune) bool {
		return r == '/' || r == '\\'
	})
}

// ensureWithinRoot rejects any joined target that resolves outside the
// extraction root, independent of the member-path checks.
func ensureWithinRoot(root, target string) error {
	root = filepath.Clean(root)
	target = filepath.Clean(target)

	if target == root {
		return nil
	}

	if !strings.HasPrefix(target, root+string(os.PathSeparator)) {
		return fmt.Errorf("archive member escapes extraction root: %s: %w", target, ErrInvalidBundle)
	}

	return nil
}
