package receipt

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestFileRepository_NotFound verifies Load returns ErrNotFound before the
// first install.
func TestFileRepository_NotFound(t *testing.T) {
	t.Parallel()

	repo := NewFileRepository(filepath.Join(t.TempDir(), "root"))

	r, err := repo.Load(context.Background())
	require.ErrorIs(t, err, ErrNotFound)
	require.Nil(t, r)
}

// TestFileRepository_SaveLoad_Roundtrip ensures Save followed by Load
// returns an equal receipt.
func TestFileRepository_SaveLoad_Roundtrip(t *testing.T) {
	t.Parallel()

	root := filepath.Join(t.TempDir(), "root")
	repo := NewFileRepository(root)

	want := &Receipt{
		Tag:            "v1.2.3",
		Version:        "1.2.3",
		Repo:           "baaaaaaaka/cursor_gui_patch",
		AssetName:      "cgp-linux-x86_64.tar.gz",
		Digest:         "deadbeef",
		Dest:           "/usr/local/bin",
		InstalledAt:    time.Now().UTC().Truncate(time.Second),
		ManagerVersion: "0.3.0",
	}

	require.NoError(t, repo.Save(context.Background(), want))

	got, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, want.Tag, got.Tag)
	require.Equal(t, want.Version, got.Version)
	require.Equal(t, want.Digest, got.Digest)
	require.Equal(t, want.Dest, got.Dest)
	require.Equal(t, want.InstalledAt.Unix(), got.InstalledAt.Unix())

	// The receipt lives at the conventional path under the root.
	require.Equal(t, filepath.Join(root, Filename), repo.Path())

	_, err = os.Stat(repo.Path())
	require.NoError(t, err)
}

// TestFileRepository_Delete removes the receipt and tolerates absence.
func TestFileRepository_Delete(t *testing.T) {
	t.Parallel()

	repo := NewFileRepository(filepath.Join(t.TempDir(), "root"))

	// Deleting a receipt that was never written is fine.
	require.NoError(t, repo.Delete(context.Background()))

	require.NoError(t, repo.Save(context.Background(), &Receipt{Tag: "v1.0.0"}))
	require.NoError(t, repo.Delete(context.Background()))

	_, err := repo.Load(context.Background())
	require.ErrorIs(t, err, ErrNotFound)
}
