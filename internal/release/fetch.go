package release

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"

	"github.com/baaaaaaaka/cgp-deploy/internal/logger"
	"github.com/baaaaaaaka/cgp-deploy/internal/version"
)

// ErrDownloadUnavailable is returned when a release archive cannot be
// retrieved, either from GitHub or from a local source directory.
var ErrDownloadUnavailable = errors.New("download unavailable")

// Bundle is a fetched release archive together with its checksums manifest.
type Bundle struct {
	// AssetName is the archive filename as published in the release.
	AssetName string
	// ArchivePath is where the archive was stored locally.
	ArchivePath string
	// Manifest holds the published digests; empty when no manifest was found.
	Manifest Manifest
}

// Fetcher retrieves release archives and their checksum manifests.
type Fetcher struct {
	// client builds download URLs and owns the HTTP transport.
	client *Client
	// sourceDir, when set, serves assets from a local directory instead of
	// the network. Used for air-gapped installs and tests.
	sourceDir string
	// progress draws a download progress bar on stderr.
	progress bool
}

// FetcherOption configures the fetcher.
type FetcherOption func(*Fetcher)

// WithSourceDir serves assets from a local directory instead of GitHub.
func WithSourceDir(dir string) FetcherOption {
	return func(f *Fetcher) {
		f.sourceDir = dir
	}
}

// WithProgress forces the progress bar on or off.
// The default shows it only when stderr is a terminal.
func WithProgress(enabled bool) FetcherOption {
	return func(f *Fetcher) {
		f.progress = enabled
	}
}

// NewFetcher returns a fetcher backed by the given release client.
func NewFetcher(client *Client, opts ...FetcherOption) *Fetcher {
	fetcher := &Fetcher{
		client:   client,
		progress: term.IsTerminal(int(os.Stderr.Fd())),
	}

	for _, opt := range opts {
		opt(fetcher)
	}

	return fetcher
}

// Fetch retrieves the named asset of a release into dir and loads the
// checksums manifest published next to it. The caller owns dir and its
// cleanup. A missing or unreachable archive wraps ErrDownloadUnavailable;
// a missing manifest only disables verification.
func (f *Fetcher) Fetch(ctx context.Context, asset, tag, dir string) (*Bundle, error) {
	bundle := &Bundle{
		AssetName:   asset,
		ArchivePath: filepath.Join(dir, asset),
	}

	if f.sourceDir != "" {
		if err := f.fetchLocal(ctx, bundle); err != nil {
			return nil, err
		}

		return bundle, nil
	}

	if err := f.fetchRemote(ctx, bundle, tag); err != nil {
		return nil, err
	}

	return bundle, nil
}

// fetchLocal copies the asset and manifest from the local source directory.
func (f *Fetcher) fetchLocal(ctx context.Context, bundle *Bundle) error {
	src := filepath.Join(f.sourceDir, bundle.AssetName)

	if err := copyFile(src, bundle.ArchivePath); err != nil {
		return fmt.Errorf("local source %s: %v: %w", f.sourceDir, err, ErrDownloadUnavailable)
	}

	manifestPath := filepath.Join(f.sourceDir, ChecksumsFilename)

	file, err := os.Open(manifestPath)
	if err != nil {
		logger.DebugKV(ctx, "no checksums manifest in source directory",
			"path", manifestPath,
			"error", err)

		bundle.Manifest = ParseManifest(nil)

		return nil
	}
	defer file.Close()

	bundle.Manifest = ParseManifest(file)

	return nil
}

// fetchRemote downloads the asset and manifest from the release host.
func (f *Fetcher) fetchRemote(ctx context.Context, bundle *Bundle, tag string) error {
	assetURL := f.client.AssetURL(tag, bundle.AssetName)

	if err := f.download(ctx, assetURL, bundle.ArchivePath, true); err != nil {
		return fmt.Errorf("%s: %v: %w", assetURL, err, ErrDownloadUnavailable)
	}

	manifestURL := f.client.AssetURL(tag, ChecksumsFilename)
	manifestPath := filepath.Join(filepath.Dir(bundle.ArchivePath), ChecksumsFilename)

	if err := f.download(ctx, manifestURL, manifestPath, false); err != nil {
		logger.WarnKV(ctx, "checksums manifest unavailable, integrity will not be verified",
			"url", manifestURL,
			"error", err)

		bundle.Manifest = ParseManifest(nil)

		return nil
	}

	file, err := os.Open(manifestPath)
	if err != nil {
		return fmt.Errorf("open manifest: %w", err)
	}
	defer file.Close()

	bundle.Manifest = ParseManifest(file)

	return nil
}

// download streams a URL into dest, drawing a progress bar for archives
// when stderr is a terminal.
func (f *Fetcher) download(ctx context.Context, url, dest string, showProgress bool) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := f.client.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}

	var writer io.Writer = out

	if showProgress && f.progress {
		bar := progressbar.NewOptions64(
			resp.ContentLength,
			progressbar.OptionSetDescription(filepath.Base(dest)),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetWidth(30),
			progressbar.OptionThrottle(10*time.Millisecond),
			progressbar.OptionShowCount(),
			progressbar.OptionOnCompletion(func() {
				fmt.Fprint(os.Stderr, "\n")
			}),
		)
		writer = io.MultiWriter(out, bar)
	}

	if _, err := io.Copy(writer, resp.Body); err != nil {
		out.Close()

		return fmt.Errorf("write %s: %w", dest, err)
	}

	return out.Close()
}

// copyFile copies src to dst, truncating dst if it exists.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()

		return err
	}

	return out.Close()
}
