package release

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/baaaaaaaka/cgp-deploy/internal/logger"
	"github.com/baaaaaaaka/cgp-deploy/internal/version"
)

const (
	// LatestTag is the pseudo-tag that selects the newest published release.
	LatestTag = "latest"

	// ChecksumsFilename is the manifest asset published alongside release archives.
	ChecksumsFilename = "checksums.txt"

	// defaultAPIBase is the GitHub REST API endpoint.
	defaultAPIBase = "https://api.github.com"

	// defaultDownloadBase hosts the release download URLs.
	defaultDownloadBase = "https://github.com"

	// apiVersionHeader pins the GitHub REST API version we were written against.
	apiVersionHeader = "2022-11-28"
)

// Metadata is the slice of the GitHub release object we care about.
type Metadata struct {
	// TagName is the git tag of the release, e.g. "v0.3.0".
	TagName string `json:"tag_name"`
}

// Client resolves release tags and builds download URLs for a GitHub repository.
type Client struct {
	// repo is the "owner/name" repository slug.
	repo string
	// apiBase is the REST API endpoint, overridable in tests.
	apiBase string
	// downloadBase hosts release asset downloads, overridable in tests.
	downloadBase string
	// httpClient performs the actual requests.
	httpClient *http.Client
}

// ClientOption configures the release client.
type ClientOption func(*Client)

// WithHTTPClient replaces the HTTP client used for API and download requests.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithAPIBase overrides the GitHub API endpoint.
func WithAPIBase(base string) ClientOption {
	return func(c *Client) {
		if base != "" {
			c.apiBase = strings.TrimRight(base, "/")
		}
	}
}

// WithDownloadBase overrides the release download host.
func WithDownloadBase(base string) ClientOption {
	return func(c *Client) {
		if base != "" {
			c.downloadBase = strings.TrimRight(base, "/")
		}
	}
}

// NewClient returns a client for the given "owner/name" repository.
// The timeout bounds every request the client makes.
func NewClient(repo string, timeout time.Duration, opts ...ClientOption) *Client {
	client := &Client{
		repo:         repo,
		apiBase:      defaultAPIBase,
		downloadBase: defaultDownloadBase,
		httpClient:   &http.Client{Timeout: timeout},
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// Repo returns the "owner/name" repository slug the client talks to.
func (c *Client) Repo() string {
	return c.repo
}

// ResolveTag turns the requested tag into the tag to install.
// A concrete tag is returned verbatim. The "latest" pseudo-tag is resolved
// through the GitHub API; if that fails for any reason the failure is logged
// and "latest" is returned so the download can fall back to the
// releases/latest/download URL form.
func (c *Client) ResolveTag(ctx context.Context, requested string) string {
	requested = strings.TrimSpace(requested)
	if requested != "" && requested != LatestTag {
		return requested
	}

	meta, err := c.LatestMetadata(ctx)
	if err != nil {
		logger.WarnKV(ctx, "could not resolve latest release, deferring to GitHub redirect",
			"repo", c.repo,
			"error", err)

		return LatestTag
	}

	return meta.TagName
}

// LatestMetadata fetches the newest release object from the GitHub API.
func (c *Client) LatestMetadata(ctx context.Context) (*Metadata, error) {
	url := fmt.Sprintf("%s/repos/%s/releases/latest", c.apiBase, c.repo)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build release request: %w", err)
	}

	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set("X-GitHub-Api-Version", apiVersionHeader)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch latest release: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch latest release: unexpected status %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read release response: %w", err)
	}

	var meta Metadata
	if err := json.Unmarshal(body, &meta); err != nil {
		return nil, fmt.Errorf("decode release response: %w", err)
	}

	meta.TagName = strings.TrimSpace(meta.TagName)
	if meta.TagName == "" {
		return nil, fmt.Errorf("release response for %s has no tag_name", c.repo)
	}

	return &meta, nil
}

// AssetURL builds the download URL for an asset of the given release tag.
// The "latest" pseudo-tag uses the redirecting releases/latest/download form.
func (c *Client) AssetURL(tag, asset string) string {
	if tag == LatestTag {
		return fmt.Sprintf("%s/%s/releases/latest/download/%s", c.downloadBase, c.repo, asset)
	}

	return fmt.Sprintf("%s/%s/releases/download/%s/%s", c.downloadBase, c.repo, tag, asset)
}

// VersionFromTag strips the conventional "v" prefix from a release tag.
func VersionFromTag(tag string) string {
	return strings.TrimPrefix(strings.TrimSpace(tag), "v")
}

// IsNewer reports whether the remote version is newer than the local one.
// Both values are compared as semantic versions when possible; otherwise any
// difference between the two strings counts as newer, so unparseable tags
// still trigger an update instead of silently pinning the old build.
func IsNewer(remote, local string) bool {
	remote = VersionFromTag(remote)
	local = VersionFromTag(local)

	if remote == "" || remote == local {
		return false
	}

	rv, rerr := semver.NewVersion(remote)
	lv, lerr := semver.NewVersion(local)

	if rerr != nil || lerr != nil {
		return remote != local
	}

	return rv.GreaterThan(lv)
}
