package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/dipoleapp/dipole-server/internal/domain"
)

const bookDataPrefix = "bookdata:"

// GetBookData retrieves a book's annotation snapshot. A book that has never
// been annotated yields an empty snapshot, not an error.
func (s *Store) GetBookData(ctx context.Context, bookID uuid.UUID) (*domain.BookData, error) {
	key := []byte(bookDataPrefix + bookID.String())

	var data domain.BookData
	err := s.get(key, &data)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return &domain.BookData{
				Highlights: []domain.Highlight{},
				AnkiCards:  []domain.AnkiCard{},
			}, nil
		}
		return nil, fmt.Errorf("get book data: %w", err)
	}

	if data.Highlights == nil {
		data.Highlights = []domain.Highlight{}
	}
	if data.AnkiCards == nil {
		data.AnkiCards = []domain.AnkiCard{}
	}
	return &data, nil
}

// SaveBookData replaces a book's annotation snapshot. The book must exist;
// annotation data for an unknown book would be unreachable garbage.
func (s *Store) SaveBookData(ctx context.Context, bookID uuid.UUID, data *domain.BookData) error {
	exists, err := s.exists([]byte(bookPrefix + bookID.String()))
	if err != nil {
		return fmt.Errorf("check book exists: %w", err)
	}
	if !exists {
		return ErrBookNotFound
	}

	if err := s.set([]byte(bookDataPrefix+bookID.String()), data); err != nil {
		return fmt.Errorf("save book data: %w", err)
	}

	if s.logger != nil {
		s.logger.LogAttrs(ctx, slog.LevelDebug, "book data saved",
			slog.String("book_id", bookID.String()),
			slog.Int("highlights", len(data.Highlights)),
			slog.Int("cards", len(data.AnkiCards)),
		)
	}
	return nil
}
