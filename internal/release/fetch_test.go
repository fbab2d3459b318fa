package release

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestFetchLocalSource serves the archive and manifest from a directory.
func TestFetchLocalSource(t *testing.T) {
	t.Parallel()

	source := t.TempDir()
	payload := []byte("local archive bytes")
	require.NoError(t, os.WriteFile(filepath.Join(source, "cgp-linux-x86_64.tar.gz"), payload, 0o644))

	sum := sha256.Sum256(payload)
	manifestLine := fmt.Sprintf("%s  cgp-linux-x86_64.tar.gz\n", hex.EncodeToString(sum[:]))
	require.NoError(t, os.WriteFile(filepath.Join(source, ChecksumsFilename), []byte(manifestLine), 0o644))

	client := NewClient("owner/repo", time.Second)
	fetcher := NewFetcher(client, WithSourceDir(source), WithProgress(false))

	dir := t.TempDir()

	bundle, err := fetcher.Fetch(context.Background(), "cgp-linux-x86_64.tar.gz", "v1.0.0", dir)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "cgp-linux-x86_64.tar.gz"), bundle.ArchivePath)

	copied, err := os.ReadFile(bundle.ArchivePath)
	require.NoError(t, err)
	require.Equal(t, payload, copied)

	digest, err := bundle.Manifest.Verify(bundle.ArchivePath, bundle.AssetName)
	require.NoError(t, err)
	require.NotEmpty(t, digest)
}

// TestFetchLocalSourceMissing maps a missing local asset to the download error.
func TestFetchLocalSourceMissing(t *testing.T) {
	t.Parallel()

	client := NewClient("owner/repo", time.Second)
	fetcher := NewFetcher(client, WithSourceDir(t.TempDir()), WithProgress(false))

	_, err := fetcher.Fetch(context.Background(), "cgp-linux-x86_64.tar.gz", "v1.0.0", t.TempDir())
	require.ErrorIs(t, err, ErrDownloadUnavailable)
}

// TestFetchLocalSourceNoManifest still succeeds without checksums.txt.
func TestFetchLocalSourceNoManifest(t *testing.T) {
	t.Parallel()

	source := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(source, "cgp-linux-x86_64.tar.gz"), []byte("x"), 0o644))

	client := NewClient("owner/repo", time.Second)
	fetcher := NewFetcher(client, WithSourceDir(source), WithProgress(false))

	bundle, err := fetcher.Fetch(context.Background(), "cgp-linux-x86_64.tar.gz", "v1.0.0", t.TempDir())
	require.NoError(t, err)
	require.Equal(t, 0, bundle.Manifest.Len())
}

// TestFetchRemote downloads the archive and manifest over HTTP.
func TestFetchRemote(t *testing.T) {
	t.Parallel()

	payload := []byte("remote archive bytes")
	sum := sha256.Sum256(payload)
	manifest := fmt.Sprintf("%s  cgp-linux-x86_64.tar.gz\n", hex.EncodeToString(sum[:]))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/owner/repo/releases/download/v1.0.0/cgp-linux-x86_64.tar.gz":
			_, _ = w.Write(payload)
		case "/owner/repo/releases/download/v1.0.0/checksums.txt":
			_, _ = w.Write([]byte(manifest))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := NewClient("owner/repo", time.Second, WithDownloadBase(server.URL))
	fetcher := NewFetcher(client, WithProgress(false))

	dir := t.TempDir()

	bundle, err := fetcher.Fetch(context.Background(), "cgp-linux-x86_64.tar.gz", "v1.0.0", dir)
	require.NoError(t, err)

	downloaded, err := os.ReadFile(bundle.ArchivePath)
	require.NoError(t, err)
	require.Equal(t, payload, downloaded)

	digest, err := bundle.Manifest.Verify(bundle.ArchivePath, bundle.AssetName)
	require.NoError(t, err)
	require.Equal(t, hex.EncodeToString(sum[:]), digest)
}

// TestFetchRemoteMissing maps HTTP failures to the download error.
func TestFetchRemoteMissing(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	client := NewClient("owner/repo", time.Second, WithDownloadBase(server.URL))
	fetcher := NewFetcher(client, WithProgress(false))

	_, err := fetcher.Fetch(context.Background(), "cgp-linux-x86_64.tar.gz", "v1.0.0", t.TempDir())
	require.ErrorIs(t, err, ErrDownloadUnavailable)
}

// TestFetchRemoteNoManifest treats a missing manifest as skippable.
func TestFetchRemoteNoManifest(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if filepath.Base(r.URL.Path) == ChecksumsFilename {
			http.NotFound(w, r)

			return
		}

		_, _ = w.Write([]byte("archive"))
	}))
	defer server.Close()

	client := NewClient("owner/repo", time.Second, WithDownloadBase(server.URL))
	fetcher := NewFetcher(client, WithProgress(false))

	bundle, err := fetcher.Fetch(context.Background(), "cgp-linux-x86_64.tar.gz", "latest", t.TempDir())
	require.NoError(t, err)
	require.Equal(t, 0, bundle.Manifest.Len())

	// Verification is a no-op without a manifest entry.
	digest, err := bundle.Manifest.Verify(bundle.ArchivePath, bundle.AssetName)
	require.NoError(t, err)
	require.Empty(t, digest)
}
