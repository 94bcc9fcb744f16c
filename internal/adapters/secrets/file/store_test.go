package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/bnema/sweetdata-cli/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreRejectsEmptyToken(t *testing.T) {
	t.Parallel()

	store := NewStore(t.TempDir())
	for _, token := range []string{"", "   "} {
		err := store.Save(context.Background(), token)
		assert.ErrorContains(t, err, "auth token is empty")
	}
}

func TestStoreSaveLoadRoundTripAndPermissions(t *testing.T) {
	t.Parallel()

	root := filepath.Join(t.TempDir(), "secrets")
	store := NewStore(root)

	require.NoError(t, store.Save(context.Background(), " tok-123\n"))

	got, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-123", got)

	info, err := os.Stat(filepath.Join(root, DefaultFileName))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(tokenFileMod), info.Mode().Perm())

	dirInfo, err := os.Stat(root)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(storeDirMode), dirInfo.Mode().Perm())
}

func TestStoreSaveReplacesPreviousToken(t *testing.T) {
	t.Parallel()

	store := NewStore(t.TempDir())
	require.NoError(t, store.Save(context.Background(), "first"))
	require.NoError(t, store.Save(context.Background(), "second"))

	got, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "second", got)

	entries, err := os.ReadDir(filepath.Dir(store.Path()))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files are cleaned up")
}

func TestStoreLoadMissingTokenIsNotFound(t *testing.T) {
	t.Parallel()

	_, err := NewStore(t.TempDir()).Load(context.Background())
	require.ErrorIs(t, err, domain.ErrTokenNotFound)
}

func TestStoreClearIsIdempotent(t *testing.T) {
	t.Parallel()

	store := NewStore(t.TempDir())
	require.NoError(t, store.Save(context.Background(), "tok"))

	require.NoError(t, store.Clear(context.Background()))
	require.NoError(t, store.Clear(context.Background()))

	_, err := store.Load(context.Background())
	require.ErrorIs(t, err, domain.ErrTokenNotFound)
}

func TestStoreHonoursCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := NewStore(t.TempDir())
	require.ErrorIs(t, store.Save(ctx, "tok"), context.Canceled)
	_, err := store.Load(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
