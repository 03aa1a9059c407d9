package service

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dipoleapp/dipole-server/internal/domain"
	"github.com/dipoleapp/dipole-server/internal/errors"
	"github.com/dipoleapp/dipole-server/internal/importer"
	"github.com/dipoleapp/dipole-server/internal/search"
	"github.com/dipoleapp/dipole-server/internal/sidecar"
	"github.com/dipoleapp/dipole-server/internal/sse"
	"github.com/dipoleapp/dipole-server/internal/store"
)

// EventEmitter receives library change events for broadcast.
type EventEmitter interface {
	Emit(event any)
}

// LibraryService manages the book catalog, its sidecar mirror, and the
// highlight search index.
type LibraryService struct {
	db      *store.Store
	sidecar *sidecar.Manager
	search  *search.SearchIndex
	kobo    *importer.KoboImporter
	emitter EventEmitter
	logger  *slog.Logger
}

// NewLibraryService creates a library service.
func NewLibraryService(
	db *store.Store,
	sidecarMgr *sidecar.Manager,
	searchIndex *search.SearchIndex,
	kobo *importer.KoboImporter,
	emitter EventEmitter,
	logger *slog.Logger,
) *LibraryService {
	if emitter == nil {
		emitter = noopEmitter{}
	}
	return &LibraryService{
		db:      db,
		sidecar: sidecarMgr,
		search:  searchIndex,
		kobo:    kobo,
		emitter: emitter,
		logger:  logger,
	}
}

type noopEmitter struct{}

func (noopEmitter) Emit(any) {}

// CreateBook adds a book to the library.
func (s *LibraryService) CreateBook(ctx context.Context, book *domain.BookRecord) (*domain.BookRecord, error) {
	if book.ID == uuid.Nil {
		book.ID = uuid.New()
	}
	if book.DateAdded == "" {
		book.DateAdded = time.Now().UTC().Format(time.RFC3339)
	}
	if book.Kind == "" {
		book.Kind = kindFromBaseName(book.BaseName)
	}
	if err := book.Validate(); err != nil {
		return nil, errors.Validation(err.Error())
	}

	if err := s.db.CreateBook(ctx, book); err != nil {
		if errors.Is(err, store.ErrBookExists) {
			return nil, errors.AlreadyExists(fmt.Sprintf("book %q already exists", book.BaseName))
		}
		return nil, err
	}

	s.exportLibrary(ctx)
	s.emitter.Emit(sse.NewLibraryEvent(sse.EventBookCreated, book.Clone()))
	return book, nil
}

// GetBook returns one book.
func (s *LibraryService) GetBook(ctx context.Context, bookID uuid.UUID) (*domain.BookRecord, error) {
	book, err := s.db.GetBook(ctx, bookID)
	if err != nil {
		if errors.Is(err, store.ErrBookNotFound) {
			return nil, errors.NotFound(fmt.Sprintf("book %s not found", bookID))
		}
		return nil, err
	}
	return book, nil
}

// Library returns the full catalog.
func (s *LibraryService) Library(ctx context.Context) (*domain.Library, error) {
	return s.db.Library(ctx)
}

// UpdateBook updates a book record.
func (s *LibraryService) UpdateBook(ctx context.Context, book *domain.BookRecord) (*domain.BookRecord, error) {
	if err := book.Validate(); err != nil {
		return nil, errors.Validation(err.Error())
	}

	if err := s.db.UpdateBook(ctx, book); err != nil {
		if errors.Is(err, store.ErrBookNotFound) {
			return nil, errors.NotFound(fmt.Sprintf("book %s not found", book.ID))
		}
		return nil, err
	}

	s.exportLibrary(ctx)
	s.emitter.Emit(sse.NewLibraryEvent(sse.EventBookUpdated, book.Clone()))
	return book, nil
}

// DeleteBook removes a book, its annotation data, and its search documents.
func (s *LibraryService) DeleteBook(ctx context.Context, bookID uuid.UUID) error {
	data, err := s.db.GetBookData(ctx, bookID)
	if err != nil {
		return err
	}

	if err := s.db.DeleteBook(ctx, bookID); err != nil {
		if errors.Is(err, store.ErrBookNotFound) {
			return errors.NotFound(fmt.Sprintf("book %s not found", bookID))
		}
		return err
	}

	ids := make([]uuid.UUID, 0, len(data.Highlights))
	for _, h := range data.Highlights {
		ids = append(ids, h.ID)
	}
	if err := s.search.DeleteHighlights(ids); err != nil {
		s.logger.Warn("failed to deindex deleted book", "book_id", bookID, "error", err)
	}

	s.exportLibrary(ctx)
	s.emitter.Emit(sse.NewLibraryEvent(sse.EventBookDeleted, map[string]string{"id": bookID.String()}))
	return nil
}

// SearchHighlights queries the highlight index.
func (s *LibraryService) SearchHighlights(ctx context.Context, params search.SearchParams) (*search.SearchResult, error) {
	if params.Limit <= 0 {
		params.Limit = DefaultSearchLimit
	}
	return s.search.Search(ctx, params)
}

// DefaultSearchLimit bounds unpaginated highlight searches.
const DefaultSearchLimit = 20

// ImportSidecarBook loads a book's data file from disk and replaces the
// stored annotation data with it. Cards whose highlight is absent from the
// imported file are dropped, so an externally edited file cannot introduce
// orphans.
func (s *LibraryService) ImportSidecarBook(ctx context.Context, baseName string) error {
	book, err := s.db.GetBookByBaseName(ctx, baseName)
	if err != nil {
		if errors.Is(err, store.ErrBookNotFound) {
			return errors.NotFound(fmt.Sprintf("no book with base name %q", baseName))
		}
		return err
	}

	var data domain.BookData
	if err := s.sidecar.ReadBookData(baseName, &data); err != nil {
		return err
	}
	sanitizeBookData(&data)

	old, err := s.db.GetBookData(ctx, book.ID)
	if err != nil {
		return err
	}

	if err := s.db.SaveBookData(ctx, book.ID, &data); err != nil {
		return err
	}

	// Reindex: out with the previous highlight set, in with the imported one.
	oldIDs := make([]uuid.UUID, 0, len(old.Highlights))
	for _, h := range old.Highlights {
		oldIDs = append(oldIDs, h.ID)
	}
	if err := s.search.DeleteHighlights(oldIDs); err != nil {
		s.logger.Warn("failed to deindex replaced highlights", "book", baseName, "error", err)
	}
	docs := make([]*search.HighlightDocument, 0, len(data.Highlights))
	for i := range data.Highlights {
		docs = append(docs, search.NewHighlightDocument(book, &data.Highlights[i]))
	}
	if err := s.search.IndexHighlights(docs); err != nil {
		s.logger.Warn("failed to index imported highlights", "book", baseName, "error", err)
	}

	s.logger.Info("sidecar data imported",
		"book", baseName,
		"highlights", len(data.Highlights),
		"cards", len(data.AnkiCards),
	)
	s.emitter.Emit(sse.NewLibraryEvent(sse.EventSidecarImported, map[string]string{
		"bookId":   book.ID.String(),
		"baseName": baseName,
	}))
	return nil
}

// ImportSidecarLibrary walks the sidecar tree: books listed in the manifest
// are created if missing, then every book directory's data file is
// imported. Used to rebuild the database from a synced directory.
func (s *LibraryService) ImportSidecarLibrary(ctx context.Context) error {
	var library domain.Library
	err := s.sidecar.ReadLibrary(&library)
	if err != nil && !errors.Is(err, sidecar.ErrNoData) {
		return err
	}

	for i := range library.Books {
		book := library.Books[i]
		if _, err := s.db.GetBookByBaseName(ctx, book.BaseName); err == nil {
			continue
		}
		if _, err := s.CreateBook(ctx, &book); err != nil {
			s.logger.Warn("failed to create book from manifest", "base_name", book.BaseName, "error", err)
		}
	}

	dirs, err := s.sidecar.BookDirs()
	if err != nil {
		return err
	}
	for _, baseName := range dirs {
		if err := s.ImportSidecarBook(ctx, baseName); err != nil {
			s.logger.Warn("failed to import sidecar data", "book", baseName, "error", err)
		}
	}
	return nil
}

// KoboImportResult summarizes one device import.
type KoboImportResult struct {
	BooksCreated    int `json:"booksCreated"`
	BooksMatched    int `json:"booksMatched"`
	HighlightsAdded int `json:"highlightsAdded"`
	Skipped         int `json:"skipped"`
}

// ImportKobo merges the highlights from a KoboReader.sqlite file into the
// library. Books are matched by file base name; unmatched books are
// created. A highlight already present (same text and location) is skipped,
// so re-running an import after more reading is safe.
func (s *LibraryService) ImportKobo(ctx context.Context, dbPath string) (*KoboImportResult, error) {
	imported, err := s.kobo.Import(ctx, dbPath)
	if err != nil {
		return nil, errors.Unavailable(fmt.Sprintf("kobo import failed: %v", err))
	}

	result := &KoboImportResult{}
	for _, entry := range imported {
		baseName := filepath.Base(strings.TrimSuffix(entry.VolumeID, "/"))
		if baseName == "." || baseName == "" {
			result.Skipped += len(entry.Highlights)
			continue
		}

		book, err := s.db.GetBookByBaseName(ctx, baseName)
		switch {
		case err == nil:
			result.BooksMatched++
		case errors.Is(err, store.ErrBookNotFound):
			book, err = s.CreateBook(ctx, &domain.BookRecord{
				BaseName: baseName,
				Title:    entry.Title,
				Author:   entry.Author,
			})
			if err == nil {
				result.BooksCreated++
			}
		}
		if err != nil {
			s.logger.Warn("skipping kobo book", "base_name", baseName, "error", err)
			result.Skipped += len(entry.Highlights)
			continue
		}

		data, err := s.db.GetBookData(ctx, book.ID)
		if err != nil {
			return nil, err
		}

		existing := make(map[string]bool, len(data.Highlights))
		for _, h := range data.Highlights {
			existing[h.Text+"\x00"+h.CFIRange] = true
		}

		var docs []*search.HighlightDocument
		for i := range entry.Highlights {
			h := entry.Highlights[i]
			if existing[h.Text+"\x00"+h.CFIRange] {
				result.Skipped++
				continue
			}
			data.Highlights = append(data.Highlights, h)
			docs = append(docs, search.NewHighlightDocument(book, &h))
			result.HighlightsAdded++
		}

		if len(docs) == 0 {
			continue
		}
		if err := s.db.SaveBookData(ctx, book.ID, data); err != nil {
			return nil, err
		}
		if err := s.search.IndexHighlights(docs); err != nil {
			s.logger.Warn("failed to index kobo highlights", "book", baseName, "error", err)
		}
		if err := s.sidecar.WriteBookData(baseName, data); err != nil {
			s.logger.Warn("failed to write sidecar after kobo import", "book", baseName, "error", err)
		}
	}

	s.logger.Info("kobo import finished",
		"created", result.BooksCreated,
		"matched", result.BooksMatched,
		"highlights", result.HighlightsAdded,
		"skipped", result.Skipped,
	)
	return result, nil
}

// ExportSidecar rewrites the whole sidecar tree from the database: the
// library manifest plus every book's data file. Used to regenerate the
// directory after it was moved or damaged.
func (s *LibraryService) ExportSidecar(ctx context.Context) error {
	library, err := s.db.Library(ctx)
	if err != nil {
		return err
	}
	if err := s.sidecar.WriteLibrary(library); err != nil {
		return err
	}

	for i := range library.Books {
		book := &library.Books[i]
		data, err := s.db.GetBookData(ctx, book.ID)
		if err != nil {
			return err
		}
		if err := s.sidecar.WriteBookData(book.BaseName, data); err != nil {
			return err
		}
	}

	s.logger.Info("sidecar data exported", "books", len(library.Books))
	return nil
}

// exportLibrary mirrors the catalog to the sidecar manifest.
func (s *LibraryService) exportLibrary(ctx context.Context) {
	library, err := s.db.Library(ctx)
	if err != nil {
		s.logger.Warn("failed to read library for export", "error", err)
		return
	}
	if err := s.sidecar.WriteLibrary(library); err != nil {
		s.logger.Warn("failed to write library manifest", "error", err)
	}
}

// sanitizeBookData repairs an externally written data file: nil slices
// become empty and cards pointing at absent highlights are dropped.
func sanitizeBookData(data *domain.BookData) {
	if data.Highlights == nil {
		data.Highlights = []domain.Highlight{}
	}
	if data.AnkiCards == nil {
		data.AnkiCards = []domain.AnkiCard{}
	}

	known := make(map[uuid.UUID]bool, len(data.Highlights))
	for _, h := range data.Highlights {
		known[h.ID] = true
	}

	cards := data.AnkiCards[:0]
	for _, c := range data.AnkiCards {
		if known[c.HighlightID] {
			cards = append(cards, c)
		}
	}
	data.AnkiCards = cards
}

// kindFromBaseName infers the document format from the file extension.
func kindFromBaseName(baseName string) domain.BookKind {
	if strings.EqualFold(filepath.Ext(baseName), ".pdf") {
		return domain.KindPdf
	}
	return domain.KindEpub
}
