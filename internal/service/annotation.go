// Package service holds the application services that tie the annotation
// state, persistence, search, and the AnkiConnect client together.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dipoleapp/dipole-server/internal/domain"
	"github.com/dipoleapp/dipole-server/internal/errors"
	"github.com/dipoleapp/dipole-server/internal/reader"
	"github.com/dipoleapp/dipole-server/internal/search"
	"github.com/dipoleapp/dipole-server/internal/sidecar"
	"github.com/dipoleapp/dipole-server/internal/store"
)

// ErrNoBookOpen is returned for annotation operations without an open book.
var ErrNoBookOpen = errors.Validation("no book is open")

// AnnotationService manages the open book's annotation state and writes
// every accepted change through to the database and the sidecar tree.
type AnnotationService struct {
	state   *reader.Store
	db      *store.Store
	sidecar *sidecar.Manager
	watcher *sidecar.Watcher
	search  *search.SearchIndex
	logger  *slog.Logger
}

// NewAnnotationService creates an annotation service. The watcher is
// optional; when present, the service suppresses its own sidecar writes so
// they do not bounce back as imports.
func NewAnnotationService(
	state *reader.Store,
	db *store.Store,
	sidecarMgr *sidecar.Manager,
	searchIndex *search.SearchIndex,
	logger *slog.Logger,
) *AnnotationService {
	return &AnnotationService{
		state:   state,
		db:      db,
		sidecar: sidecarMgr,
		search:  searchIndex,
		logger:  logger,
	}
}

// SetWatcher attaches the sidecar watcher for write suppression. Set after
// construction because the watcher needs the sidecar manager first.
func (s *AnnotationService) SetWatcher(w *sidecar.Watcher) {
	s.watcher = w
}

// OpenBook loads a book and hydrates the annotation state from the
// database. Any previously open book is persisted and unloaded first.
func (s *AnnotationService) OpenBook(ctx context.Context, bookID uuid.UUID) (reader.State, error) {
	if err := s.CloseBook(ctx); err != nil {
		return reader.State{}, err
	}

	book, err := s.db.GetBook(ctx, bookID)
	if err != nil {
		if errors.Is(err, store.ErrBookNotFound) {
			return reader.State{}, errors.NotFound(fmt.Sprintf("book %s not found", bookID))
		}
		return reader.State{}, err
	}

	data, err := s.db.GetBookData(ctx, bookID)
	if err != nil {
		return reader.State{}, err
	}

	for _, m := range []reader.Mutation{
		reader.LoadBook{Book: *book},
		reader.LoadHighlights{Highlights: data.Highlights},
		reader.LoadAnkiCards{Cards: data.AnkiCards},
		reader.Locate{CFI: data.CFI},
	} {
		if err := s.state.Dispatch(m); err != nil {
			return reader.State{}, err
		}
	}

	s.logger.Info("book opened",
		"book_id", bookID,
		"highlights", len(data.Highlights),
		"cards", len(data.AnkiCards),
	)
	return s.state.Snapshot(), nil
}

// CloseBook persists the open book, if any, and resets the state.
func (s *AnnotationService) CloseBook(ctx context.Context) error {
	if s.state.Snapshot().Book == nil {
		return nil
	}
	if err := s.Persist(ctx); err != nil {
		return err
	}
	return s.state.Dispatch(reader.UnloadBook{})
}

// Snapshot returns the current annotation state.
func (s *AnnotationService) Snapshot() reader.State {
	return s.state.Snapshot()
}

// AddHighlight adds a highlight to the open book.
func (s *AnnotationService) AddHighlight(ctx context.Context, text, cfiRange string, color domain.HighlightColor) (*domain.Highlight, error) {
	snap := s.state.Snapshot()
	if snap.Book == nil {
		return nil, ErrNoBookOpen
	}

	h, err := domain.NewHighlight(text, cfiRange)
	if err != nil {
		return nil, errors.Validation(err.Error())
	}
	if color != "" {
		h.Color = color
	}

	if err := s.state.Dispatch(reader.AddHighlight{Highlight: *h}); err != nil {
		return nil, err
	}

	if err := s.search.IndexHighlight(search.NewHighlightDocument(snap.Book, h)); err != nil {
		s.logger.Warn("failed to index highlight", "highlight_id", h.ID, "error", err)
	}

	return h, s.Persist(ctx)
}

// RemoveHighlight removes a highlight and every card attached to it.
func (s *AnnotationService) RemoveHighlight(ctx context.Context, highlightID uuid.UUID) error {
	snap := s.state.Snapshot()
	if snap.Book == nil {
		return ErrNoBookOpen
	}
	if _, ok := snap.HighlightByID(highlightID); !ok {
		return errors.NotFound(fmt.Sprintf("highlight %s not found", highlightID))
	}

	if err := s.state.Dispatch(reader.RemoveHighlight{ID: highlightID}); err != nil {
		return err
	}

	if err := s.search.DeleteHighlight(highlightID); err != nil {
		s.logger.Warn("failed to deindex highlight", "highlight_id", highlightID, "error", err)
	}

	return s.Persist(ctx)
}

// SortHighlights reorders the open book's highlights to the given ID
// sequence. The sequence must be a permutation of the current set.
func (s *AnnotationService) SortHighlights(ctx context.Context, order []uuid.UUID) error {
	snap := s.state.Snapshot()
	if snap.Book == nil {
		return ErrNoBookOpen
	}

	next := make([]domain.Highlight, 0, len(order))
	for _, id := range order {
		h, ok := snap.HighlightByID(id)
		if !ok {
			return errors.Validationf("unknown highlight %s in sort order", id)
		}
		next = append(next, h)
	}

	if err := s.state.Dispatch(reader.SortHighlights{Highlights: next}); err != nil {
		return err
	}
	return s.Persist(ctx)
}

// Locate records the reading position.
func (s *AnnotationService) Locate(ctx context.Context, cfi string) error {
	if s.state.Snapshot().Book == nil {
		return ErrNoBookOpen
	}
	if err := s.state.Dispatch(reader.Locate{CFI: cfi}); err != nil {
		return err
	}
	return s.Persist(ctx)
}

// AddCard creates a card for a highlight of the open book.
func (s *AnnotationService) AddCard(ctx context.Context, highlightID uuid.UUID, cardType domain.CardType, fields, additionalTags []string) (*domain.AnkiCard, error) {
	snap := s.state.Snapshot()
	if snap.Book == nil {
		return nil, ErrNoBookOpen
	}
	if _, ok := snap.HighlightByID(highlightID); !ok {
		return nil, errors.NotFound(fmt.Sprintf("highlight %s not found", highlightID))
	}

	card, err := domain.NewAnkiCard(highlightID, cardType, fields)
	if err != nil {
		return nil, errors.Validation(err.Error())
	}
	if len(additionalTags) > 0 {
		card.AdditionalTags = additionalTags
	}

	if err := s.state.Dispatch(reader.AddAnkiCard{Card: *card}); err != nil {
		return nil, err
	}
	return card, s.Persist(ctx)
}

// RemoveCard removes a card.
func (s *AnnotationService) RemoveCard(ctx context.Context, cardID uuid.UUID) error {
	snap := s.state.Snapshot()
	if snap.Book == nil {
		return ErrNoBookOpen
	}
	if _, ok := snap.CardByID(cardID); !ok {
		return errors.NotFound(fmt.Sprintf("card %s not found", cardID))
	}

	if err := s.state.Dispatch(reader.RemoveAnkiCard{ID: cardID}); err != nil {
		return err
	}
	return s.Persist(ctx)
}

// UpdateCardFields replaces a card's fields. The card drops back to
// unsynced; the next sync run reconciles it with Anki.
func (s *AnnotationService) UpdateCardFields(ctx context.Context, cardID uuid.UUID, fields []string) (*domain.AnkiCard, error) {
	snap := s.state.Snapshot()
	if snap.Book == nil {
		return nil, ErrNoBookOpen
	}
	if _, ok := snap.CardByID(cardID); !ok {
		return nil, errors.NotFound(fmt.Sprintf("card %s not found", cardID))
	}
	if len(fields) == 0 {
		return nil, errors.Validation("card must have at least one field")
	}

	if err := s.state.Dispatch(reader.NewUpdateAnkiCardFields(cardID, fields)); err != nil {
		return nil, err
	}
	if err := s.Persist(ctx); err != nil {
		return nil, err
	}

	card, _ := s.state.Snapshot().CardByID(cardID)
	return &card, nil
}

// Persist writes the open book's annotation snapshot to the database and
// the sidecar tree. A nil open book is a no-op.
func (s *AnnotationService) Persist(ctx context.Context) error {
	snap := s.state.Snapshot()
	if snap.Book == nil {
		return nil
	}

	data := snap.BookData()
	if err := s.db.SaveBookData(ctx, snap.Book.ID, &data); err != nil {
		return err
	}

	if s.watcher != nil {
		s.watcher.Suppress(s.sidecar.DataPath(snap.Book.BaseName))
	}
	if err := s.sidecar.WriteBookData(snap.Book.BaseName, data); err != nil {
		// The database copy is authoritative; a sidecar write failure is
		// logged and retried on the next persist.
		s.logger.Warn("failed to write sidecar data",
			"book", snap.Book.BaseName,
			"error", err,
		)
	}
	return nil
}
