package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	pkgerrors "github.com/localstall/stallmarket-backend/pkg/errors"
	"github.com/localstall/stallmarket-backend/pkg/logger"
)

type countingRecorder struct {
	reasons []string
}

func (c *countingRecorder) IncFileCleanupFailure(reason string) {
	c.reasons = append(c.reasons, reason)
}

func newStore(t *testing.T) (*Local, string, *countingRecorder) {
	t.Helper()
	base := t.TempDir()
	root := filepath.Join(base, "uploads")
	rec := &countingRecorder{}
	store, err := NewLocal(root, logger.Nop(), rec)
	require.NoError(t, err)
	return store, base, rec
}

func writeFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("img"), 0o644))
}

func TestDeleteRemovesFileInsideRoot(t *testing.T) {
	store, _, _ := newStore(t)
	target := filepath.Join(store.Root(), "products", "apple.jpg")
	writeFile(t, target)

	outcome, err := store.Delete(context.Background(), "products/apple.jpg")
	require.NoError(t, err)
	require.Equal(t, OutcomeDeleted, outcome)
	_, statErr := os.Stat(target)
	require.True(t, os.IsNotExist(statErr))
}

func TestDeleteMissingFileIsIdempotent(t *testing.T) {
	store, _, _ := newStore(t)

	outcome, err := store.Delete(context.Background(), "products/ghost.jpg")
	require.NoError(t, err)
	require.Equal(t, OutcomeNotFound, outcome)

	outcome, err = store.Delete(context.Background(), "products/ghost.jpg")
	require.NoError(t, err)
	require.Equal(t, OutcomeNotFound, outcome)
}

func TestDeleteRejectsTraversal(t *testing.T) {
	store, base, _ := newStore(t)
	outside := filepath.Join(base, "secret.txt")
	writeFile(t, outside)

	for _, rel := range []string{
		"../secret.txt",
		"products/../../secret.txt",
		outside,
		"",
		".",
		"products/..",
	} {
		_, err := store.Delete(context.Background(), rel)
		require.Error(t, err, rel)
		require.True(t, pkgerrors.IsCode(err, pkgerrors.CodePathTraversal), "%q: %v", rel, err)
	}
	_, err := os.Stat(outside)
	require.NoError(t, err, "file outside root must survive")
}

func TestDeleteRejectsSymlinkEscape(t *testing.T) {
	store, base, _ := newStore(t)
	outsideDir := filepath.Join(base, "elsewhere")
	writeFile(t, filepath.Join(outsideDir, "victim.txt"))
	require.NoError(t, os.Symlink(outsideDir, filepath.Join(store.Root(), "link")))

	_, err := store.Delete(context.Background(), "link/victim.txt")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodePathTraversal))
	_, statErr := os.Stat(filepath.Join(outsideDir, "victim.txt"))
	require.NoError(t, statErr)
}

func TestCleanupSwallowsAndReportsFailures(t *testing.T) {
	store, _, rec := newStore(t)
	writeFile(t, filepath.Join(store.Root(), "stalls", "logo.png"))

	err := store.Cleanup(context.Background(), []string{
		"stalls/logo.png",
		"stalls/missing.png",
		"../../etc/passwd",
	})
	require.Error(t, err)
	require.Len(t, multierr.Errors(err), 1)
	require.Equal(t, []string{string(pkgerrors.CodePathTraversal)}, rec.reasons)

	_, statErr := os.Stat(filepath.Join(store.Root(), "stalls", "logo.png"))
	require.True(t, os.IsNotExist(statErr))
}

func TestNewLocalRequiresRoot(t *testing.T) {
	_, err := NewLocal("  ", logger.Nop(), nil)
	require.Error(t, err)
}

func TestPing(t *testing.T) {
	store, _, _ := newStore(t)
	require.NoError(t, store.Ping(context.Background()))
}
