package service

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/dipoleapp/dipole-server/internal/domain"
	"github.com/dipoleapp/dipole-server/internal/errors"
	"github.com/dipoleapp/dipole-server/internal/importer"
	"github.com/dipoleapp/dipole-server/internal/search"
	"github.com/dipoleapp/dipole-server/internal/sse"
)

// recordingEmitter captures emitted events for assertions.
type recordingEmitter struct {
	mu     sync.Mutex
	events []any
}

func (r *recordingEmitter) Emit(event any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingEmitter) eventTypes() []sse.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]sse.EventType, 0, len(r.events))
	for _, e := range r.events {
		if event, ok := e.(sse.Event); ok {
			types = append(types, event.Type)
		}
	}
	return types
}

func newLibraryService(t *testing.T, env *testEnv) (*LibraryService, *recordingEmitter) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	emitter := &recordingEmitter{}
	svc := NewLibraryService(env.db, env.sidecar, env.search, importer.NewKoboImporter(logger), emitter, logger)
	return svc, emitter
}

func TestLibraryService_CreateBook(t *testing.T) {
	env := newTestEnv(t)
	svc, emitter := newLibraryService(t, env)
	ctx := context.Background()

	book, err := svc.CreateBook(ctx, &domain.BookRecord{BaseName: "walden.pdf", Title: "Walden"})
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, book.ID)
	assert.NotEmpty(t, book.DateAdded)
	assert.Equal(t, domain.KindPdf, book.Kind)

	stored, err := svc.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, "Walden", stored.Title)

	// The catalog is mirrored to the sidecar manifest.
	var manifest domain.Library
	require.NoError(t, env.sidecar.ReadLibrary(&manifest))
	require.Len(t, manifest.Books, 1)
	assert.Equal(t, "walden.pdf", manifest.Books[0].BaseName)

	assert.Equal(t, []sse.EventType{sse.EventBookCreated}, emitter.eventTypes())
}

func TestLibraryService_CreateBook_DuplicateBaseName(t *testing.T) {
	env := newTestEnv(t)
	svc, _ := newLibraryService(t, env)
	ctx := context.Background()

	_, err := svc.CreateBook(ctx, &domain.BookRecord{BaseName: "walden.epub"})
	require.NoError(t, err)

	_, err = svc.CreateBook(ctx, &domain.BookRecord{BaseName: "walden.epub"})
	assert.ErrorIs(t, err, errors.ErrAlreadyExists)
}

func TestLibraryService_GetBook_NotFound(t *testing.T) {
	env := newTestEnv(t)
	svc, _ := newLibraryService(t, env)

	_, err := svc.GetBook(context.Background(), uuid.New())
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestLibraryService_UpdateBook(t *testing.T) {
	env := newTestEnv(t)
	svc, emitter := newLibraryService(t, env)
	ctx := context.Background()

	book, err := svc.CreateBook(ctx, &domain.BookRecord{BaseName: "walden.epub"})
	require.NoError(t, err)

	book.Title = "Walden; or, Life in the Woods"
	book.Progress = 0.5
	_, err = svc.UpdateBook(ctx, book)
	require.NoError(t, err)

	stored, err := svc.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, "Walden; or, Life in the Woods", stored.Title)
	assert.Equal(t, 0.5, stored.Progress)

	assert.Equal(t, []sse.EventType{sse.EventBookCreated, sse.EventBookUpdated}, emitter.eventTypes())
}

func TestLibraryService_DeleteBook_RemovesAnnotationsAndIndex(t *testing.T) {
	env := newTestEnv(t)
	svc, emitter := newLibraryService(t, env)
	ctx := context.Background()

	book, err := svc.CreateBook(ctx, &domain.BookRecord{BaseName: "walden.epub", Title: "Walden"})
	require.NoError(t, err)

	h, err := domain.NewHighlight("I went to the woods", "epubcfi(/6/4!/4/2,/1:0,/1:19)")
	require.NoError(t, err)
	require.NoError(t, env.db.SaveBookData(ctx, book.ID, &domain.BookData{
		Highlights: []domain.Highlight{*h},
		AnkiCards:  []domain.AnkiCard{},
	}))
	require.NoError(t, env.search.IndexHighlight(search.NewHighlightDocument(book, h)))

	require.NoError(t, svc.DeleteBook(ctx, book.ID))

	_, err = svc.GetBook(ctx, book.ID)
	assert.ErrorIs(t, err, errors.ErrNotFound)

	result, err := env.search.Search(ctx, search.SearchParams{Query: "woods", Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, result.Hits)

	assert.Contains(t, emitter.eventTypes(), sse.EventBookDeleted)
}

func TestLibraryService_ImportSidecarBook(t *testing.T) {
	env := newTestEnv(t)
	svc, emitter := newLibraryService(t, env)
	ctx := context.Background()

	book, err := svc.CreateBook(ctx, &domain.BookRecord{BaseName: "walden.epub", Title: "Walden"})
	require.NoError(t, err)

	h, err := domain.NewHighlight("the mass of men", "epubcfi(/6/4!/4/2,/1:0,/1:15)")
	require.NoError(t, err)
	keptCard, err := domain.NewAnkiCard(h.ID, domain.CardTypeCloze, []string{"{{c1::quiet desperation}}"})
	require.NoError(t, err)
	orphanCard, err := domain.NewAnkiCard(uuid.New(), domain.CardTypeCloze, []string{"orphan"})
	require.NoError(t, err)

	require.NoError(t, env.sidecar.WriteBookData("walden.epub", domain.BookData{
		Highlights: []domain.Highlight{*h},
		AnkiCards:  []domain.AnkiCard{*keptCard, *orphanCard},
		CFI:        "epubcfi(/6/4!/4/2/1:0)",
	}))

	require.NoError(t, svc.ImportSidecarBook(ctx, "walden.epub"))

	data, err := env.db.GetBookData(ctx, book.ID)
	require.NoError(t, err)
	require.Len(t, data.Highlights, 1)
	assert.Equal(t, "the mass of men", data.Highlights[0].Text)

	// The card whose highlight is absent from the file was dropped.
	require.Len(t, data.AnkiCards, 1)
	assert.Equal(t, keptCard.ID, data.AnkiCards[0].ID)

	result, err := env.search.Search(ctx, search.SearchParams{Query: "mass", Limit: 10})
	require.NoError(t, err)
	require.Len(t, result.Hits, 1)

	assert.Contains(t, emitter.eventTypes(), sse.EventSidecarImported)
}

func TestLibraryService_ImportSidecarBook_UnknownBook(t *testing.T) {
	env := newTestEnv(t)
	svc, _ := newLibraryService(t, env)

	err := svc.ImportSidecarBook(context.Background(), "never-added.epub")
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestLibraryService_ImportSidecarLibrary(t *testing.T) {
	env := newTestEnv(t)
	svc, _ := newLibraryService(t, env)
	ctx := context.Background()

	// A manifest and one book directory written by another machine.
	require.NoError(t, env.sidecar.WriteLibrary(domain.Library{Books: []domain.BookRecord{
		{ID: uuid.New(), BaseName: "walden.epub", Title: "Walden"},
	}}))
	h, err := domain.NewHighlight("simplicity", "epubcfi(/6/4!/4/2,/1:0,/1:10)")
	require.NoError(t, err)
	require.NoError(t, env.sidecar.WriteBookData("walden.epub", domain.BookData{
		Highlights: []domain.Highlight{*h},
		AnkiCards:  []domain.AnkiCard{},
	}))

	require.NoError(t, svc.ImportSidecarLibrary(ctx))

	book, err := env.db.GetBookByBaseName(ctx, "walden.epub")
	require.NoError(t, err)
	assert.Equal(t, "Walden", book.Title)

	data, err := env.db.GetBookData(ctx, book.ID)
	require.NoError(t, err)
	require.Len(t, data.Highlights, 1)
	assert.Equal(t, "simplicity", data.Highlights[0].Text)
}

func TestLibraryService_ExportSidecar(t *testing.T) {
	env := newTestEnv(t)
	svc, _ := newLibraryService(t, env)
	ctx := context.Background()

	book, err := svc.CreateBook(ctx, &domain.BookRecord{BaseName: "walden.epub", Title: "Walden"})
	require.NoError(t, err)
	h, err := domain.NewHighlight("simplicity", "epubcfi(/6/4!/4/2,/1:0,/1:10)")
	require.NoError(t, err)
	require.NoError(t, env.db.SaveBookData(ctx, book.ID, &domain.BookData{
		Highlights: []domain.Highlight{*h},
		AnkiCards:  []domain.AnkiCard{},
	}))

	// Wipe the sidecar tree to simulate a damaged or moved directory.
	require.NoError(t, os.RemoveAll(env.sidecar.DataPath("walden.epub")))
	require.NoError(t, os.RemoveAll(env.sidecar.LibraryPath()))

	require.NoError(t, svc.ExportSidecar(ctx))

	var library domain.Library
	require.NoError(t, env.sidecar.ReadLibrary(&library))
	require.Len(t, library.Books, 1)
	assert.Equal(t, "walden.epub", library.Books[0].BaseName)

	var data domain.BookData
	require.NoError(t, env.sidecar.ReadBookData("walden.epub", &data))
	require.Len(t, data.Highlights, 1)
	assert.Equal(t, "simplicity", data.Highlights[0].Text)
}

func TestLibraryService_ImportKobo(t *testing.T) {
	env := newTestEnv(t)
	svc, _ := newLibraryService(t, env)
	ctx := context.Background()

	dbPath := filepath.Join(t.TempDir(), "KoboReader.sqlite")
	koboDB, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	defer koboDB.Close()

	_, err = koboDB.Exec(`
		CREATE TABLE content (
			ContentID TEXT PRIMARY KEY,
			Title TEXT,
			Attribution TEXT
		);
		CREATE TABLE Bookmark (
			BookmarkID TEXT PRIMARY KEY,
			VolumeID TEXT,
			Text TEXT,
			Annotation TEXT,
			StartContainerPath TEXT,
			DateCreated TEXT,
			Type TEXT
		);
		INSERT INTO content VALUES
			('file:///mnt/onboard/moby-dick.epub', 'Moby Dick', 'Herman Melville');
		INSERT INTO Bookmark VALUES
			('b1', 'file:///mnt/onboard/moby-dick.epub', 'Call me Ishmael.', NULL,
			 'OEBPS/ch01.xhtml#point(/1/4/2/1:0)', '2024-03-01T10:00:00Z', 'highlight'),
			('b2', 'file:///mnt/onboard/moby-dick.epub', 'the whiteness of the whale', NULL,
			 'OEBPS/ch42.xhtml#point(/1/4/8/1:3)', '2024-03-02T11:30:00Z', 'highlight');`)
	require.NoError(t, err)
	require.NoError(t, koboDB.Close())

	result, err := svc.ImportKobo(ctx, dbPath)
	require.NoError(t, err)
	assert.Equal(t, 1, result.BooksCreated)
	assert.Equal(t, 0, result.BooksMatched)
	assert.Equal(t, 2, result.HighlightsAdded)
	assert.Equal(t, 0, result.Skipped)

	book, err := env.db.GetBookByBaseName(ctx, "moby-dick.epub")
	require.NoError(t, err)
	assert.Equal(t, "Moby Dick", book.Title)
	assert.Equal(t, "Herman Melville", book.Author)

	data, err := env.db.GetBookData(ctx, book.ID)
	require.NoError(t, err)
	assert.Len(t, data.Highlights, 2)

	searchResult, err := env.search.Search(ctx, search.SearchParams{Query: "Ishmael", Limit: 10})
	require.NoError(t, err)
	assert.Len(t, searchResult.Hits, 1)

	// A second run finds everything already present.
	rerun, err := svc.ImportKobo(ctx, dbPath)
	require.NoError(t, err)
	assert.Equal(t, 0, rerun.BooksCreated)
	assert.Equal(t, 1, rerun.BooksMatched)
	assert.Equal(t, 0, rerun.HighlightsAdded)
	assert.Equal(t, 2, rerun.Skipped)
}

func TestLibraryService_Library(t *testing.T) {
	env := newTestEnv(t)
	svc, _ := newLibraryService(t, env)
	ctx := context.Background()

	_, err := svc.CreateBook(ctx, &domain.BookRecord{BaseName: "a.epub"})
	require.NoError(t, err)
	_, err = svc.CreateBook(ctx, &domain.BookRecord{BaseName: "b.epub"})
	require.NoError(t, err)

	library, err := svc.Library(ctx)
	require.NoError(t, err)
	assert.Len(t, library.Books, 2)
}
