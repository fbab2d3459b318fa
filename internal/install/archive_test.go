package install

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// archiveEntry describes one member of a test fixture archive.
type archiveEntry struct {
	name    string
	mode    os.FileMode
	content string
	link    string
	dir     bool
	symlink bool
}

// bundleEntries is a valid minimal bundle layout.
func bundleEntries() []archiveEntry {
	return []archiveEntry{
		{name: "cgp/", dir: true, mode: 0o755},
		{name: "cgp/cgp", mode: 0o755, content: "#!/bin/sh\necho cgp\n"},
		{name: "cgp/assets.txt", mode: 0o644, content: "payload\n"},
	}
}

func writeTarGz(t *testing.T, path string, entries []archiveEntry) {
	t.Helper()

	file, err := os.Create(path)
	require.NoError(t, err)

	gz := gzip.NewWriter(file)
	tw := tar.NewWriter(gz)

	for _, entry := range entries {
		header := &tar.Header{
			Name: entry.name,
			Mode: int64(entry.mode),
		}

		switch {
		case entry.dir:
			header.Typeflag = tar.TypeDir
		case entry.symlink:
			header.Typeflag = tar.TypeSymlink
			header.Linkname = entry.link
		default:
			header.Typeflag = tar.TypeReg
			header.Size = int64(len(entry.content))
		}

		require.NoError(t, tw.WriteHeader(header))

		if header.Typeflag == tar.TypeReg {
			_, err = tw.Write([]byte(entry.content))
			require.NoError(t, err)
		}
	}

	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	require.NoError(t, file.Close())
}

func writeZip(t *testing.T, path string, entries []archiveEntry) {
	t.Helper()

	file, err := os.Create(path)
	require.NoError(t, err)

	zw := zip.NewWriter(file)

	for _, entry := range entries {
		header := &zip.FileHeader{
			Name:   entry.name,
			Method: zip.Deflate,
		}

		if entry.dir {
			header.SetMode(entry.mode | os.ModeDir)
			_, err = zw.CreateHeader(header)
			require.NoError(t, err)

			continue
		}

		header.SetMode(entry.mode)

		w, err := zw.CreateHeader(header)
		require.NoError(t, err)

		_, err = w.Write([]byte(entry.content))
		require.NoError(t, err)
	}

	require.NoError(t, zw.Close())
	require.NoError(t, file.Close())
}

// writeBundleArchive writes a valid bundle under dir and returns its path.
func writeBundleArchive(t *testing.T, dir string) string {
	t.Helper()

	path := filepath.Join(dir, "cgp-linux-x86_64.tar.gz")
	writeTarGz(t, path, bundleEntries())

	return path
}
