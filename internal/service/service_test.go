package service

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/dipoleapp/dipole-server/internal/domain"
	"github.com/dipoleapp/dipole-server/internal/reader"
	"github.com/dipoleapp/dipole-server/internal/search"
	"github.com/dipoleapp/dipole-server/internal/sidecar"
	"github.com/dipoleapp/dipole-server/internal/store"
)

// testEnv wires real backing components in a temp directory: badger,
// bleve, and the sidecar tree.
type testEnv struct {
	state       *reader.Store
	db          *store.Store
	sidecar     *sidecar.Manager
	search      *search.SearchIndex
	annotations *AnnotationService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	root := t.TempDir()

	db, err := store.New(filepath.Join(root, "db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	idx, err := search.NewSearchIndex(search.Options{
		DataPath: filepath.Join(root, "search"),
		Logger:   logger,
	})
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })

	mgr, err := sidecar.New(filepath.Join(root, "sidecar"), logger)
	require.NoError(t, err)

	state := reader.NewStore(logger, nil)

	return &testEnv{
		state:       state,
		db:          db,
		sidecar:     mgr,
		search:      idx,
		annotations: NewAnnotationService(state, db, mgr, idx, logger),
	}
}

// createBook seeds a library entry directly in the store.
func (e *testEnv) createBook(t *testing.T, baseName string) *domain.BookRecord {
	t.Helper()
	book := &domain.BookRecord{
		ID:       uuid.New(),
		BaseName: baseName,
		Title:    "The Periodic Table",
		Author:   "Primo Levi",
		Kind:     domain.KindEpub,
	}
	require.NoError(t, e.db.CreateBook(context.Background(), book))
	return book
}
