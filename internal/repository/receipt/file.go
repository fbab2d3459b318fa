package receipt

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/baaaaaaaka/cgp-deploy/internal/config"
)

// Filename is the receipt file kept under the installation root.
const Filename = "install-receipt.yaml"

// Receipt records what the last successful install put on disk. It exists
// for status reporting and update checks; the installation itself is always
// inspected directly, so a missing or stale receipt is never fatal.
type Receipt struct {
	// Tag is the release tag that was installed.
	Tag string `yaml:"tag"`
	// Version is the tag without its "v" prefix.
	Version string `yaml:"version"`
	// Repo is the "owner/name" repository the bundle came from.
	Repo string `yaml:"repo"`
	// AssetName is the archive that was downloaded.
	AssetName string `yaml:"asset_name"`
	// Digest is the verified SHA-256 of the archive, empty if the release
	// published no manifest entry for it.
	Digest string `yaml:"digest,omitempty"`
	// Dest is the destination directory the cgp symlink was created in.
	Dest string `yaml:"dest"`
	// InstalledAt is when the install completed.
	InstalledAt time.Time `yaml:"installed_at"`
	// ManagerVersion is the cgp-deploy version that performed the install.
	ManagerVersion string `yaml:"manager_version"`
}

// Repository defines persistence operations for the install receipt.
type Repository interface {
	Load(ctx context.Context) (*Receipt, error)
	Save(ctx context.Context, receipt *Receipt) error
	Delete(ctx context.Context) error
}

// FileRepository persists the receipt as YAML under the installation root.
type FileRepository struct {
	// path is the filesystem location of the receipt file.
	path string
	// mu protects concurrent access to the receipt file.
	mu sync.Mutex
}

// ErrNotFound is returned when no receipt has been written yet.
var ErrNotFound = errors.New("receipt not found")

// NewFileRepository creates a repository storing the receipt at the
// conventional location under root.
func NewFileRepository(root string) *FileRepository {
	return &FileRepository{
		path: filepath.Join(filepath.Clean(root), Filename),
	}
}

// Path returns the receipt file location.
func (r *FileRepository) Path() string {
	return r.path
}

// Load reads the receipt from disk.
func (r *FileRepository) Load(_ context.Context) (*Receipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read receipt file: %w", err)
	}

	var receipt Receipt
	if err = yaml.Unmarshal(contents, &receipt); err != nil {
		return nil, fmt.Errorf("decode receipt file: %w", err)
	}

	return &receipt, nil
}

// Save writes the receipt to disk.
func (r *FileRepository) Save(_ context.Context, receipt *Receipt) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := yaml.Marshal(receipt)
	if err != nil {
		return fmt.Errorf("encode receipt: %w", err)
	}

	if err = os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("create receipt directory: %w", err)
	}

	if err = os.WriteFile(r.path, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write receipt file: %w", err)
	}

	return nil
}

// Delete removes the receipt. Removing an absent receipt is not an error.
func (r *FileRepository) Delete(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.Remove(r.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove receipt file: %w", err)
	}

	return nil
}
