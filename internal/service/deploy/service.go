package deploy

import (
	"errors"
	"path/filepath"

	"github.com/baaaaaaaka/cgp-deploy/internal/config"
	"github.com/baaaaaaaka/cgp-deploy/internal/platform"
	"github.com/baaaaaaaka/cgp-deploy/internal/release"
	"github.com/baaaaaaaka/cgp-deploy/internal/repository/receipt"
)

// errConfigRequired is returned when the service is built without settings.
var errConfigRequired = errors.New("configuration must be provided")

// Service orchestrates deployments of the cgp bundle: resolving releases,
// fetching and verifying archives, driving the installer, and keeping the
// receipt and update-check stamp under the installation root.
type Service struct {
	// cfg is the validated configuration.
	cfg *config.Config
	// target is the platform the bundle is selected for.
	target platform.Target
	// client resolves tags and builds download URLs.
	client *release.Client
	// fetcher retrieves archives and checksum manifests.
	fetcher *release.Fetcher
	// receipts persists what the last install put on disk.
	receipts receipt.Repository
}

// Option overrides a service dependency. Used by tests.
type Option func(*Service)

// WithClient replaces the release client.
func WithClient(client *release.Client) Option {
	return func(s *Service) {
		s.client = client
	}
}

// WithFetcher replaces the archive fetcher.
func WithFetcher(fetcher *release.Fetcher) Option {
	return func(s *Service) {
		s.fetcher = fetcher
	}
}

// WithReceipts replaces the receipt repository.
func WithReceipts(repo receipt.Repository) Option {
	return func(s *Service) {
		s.receipts = repo
	}
}

// New builds the service from validated configuration.
func New(cfg *config.Config, opts ...Option) (*Service, error) {
	if cfg == nil {
		return nil, errConfigRequired
	}

	s := &Service{
		cfg:    cfg,
		target: platform.Detect(cfg.OS, cfg.Arch),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.client == nil {
		s.client = release.NewClient(cfg.GithubRepo, cfg.Timeout)
	}

	if s.fetcher == nil {
		var fetcherOpts []release.FetcherOption
		if cfg.SourceDir != "" {
			fetcherOpts = append(fetcherOpts, release.WithSourceDir(cfg.SourceDir))
		}

		s.fetcher = release.NewFetcher(s.client, fetcherOpts...)
	}

	if s.receipts == nil {
		s.receipts = receipt.NewFileRepository(cfg.InstallRoot)
	}

	return s, nil
}

// Target returns the platform the service deploys for.
func (s *Service) Target() platform.Target {
	return s.target
}

// destLink is the destination symlink path, <dest>/cgp.
func (s *Service) destLink() string {
	return filepath.Join(s.cfg.InstallDest, s.target.ExecutableName())
}
