package store

import (
	"context"
	"encoding/json/v2"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/dipoleapp/dipole-server/internal/domain"
)

const (
	bookPrefix           = "book:"
	bookByBaseNamePrefix = "idx:books:basename:"
)

var (
	ErrBookNotFound = errors.New("book not found")
	ErrBookExists   = errors.New("book already exists")
)

// Book Operations

// CreateBook creates a new book. The base name must be unique across the
// library; two different files with the same base name cannot coexist.
func (s *Store) CreateBook(ctx context.Context, book *domain.BookRecord) error {
	key := []byte(bookPrefix + book.ID.String())

	exists, err := s.exists(key)
	if err != nil {
		return fmt.Errorf("check book exists: %w", err)
	}
	if exists {
		return ErrBookExists
	}

	baseNameKey := []byte(bookByBaseNamePrefix + book.BaseName)
	taken, err := s.exists(baseNameKey)
	if err != nil {
		return fmt.Errorf("check base name index: %w", err)
	}
	if taken {
		return ErrBookExists
	}

	// Use transaction to create book and index atomically
	err = s.db.Update(func(txn *badger.Txn) error {
		data, err := json.Marshal(book)
		if err != nil {
			return fmt.Errorf("marshal book: %w", err)
		}

		if err := txn.Set(key, data); err != nil {
			return err
		}

		return txn.Set(baseNameKey, []byte(book.ID.String()))
	})
	if err != nil {
		return fmt.Errorf("create book: %w", err)
	}

	if s.logger != nil {
		s.logger.LogAttrs(ctx, slog.LevelInfo, "book created",
			slog.String("id", book.ID.String()),
			slog.String("title", book.Title),
			slog.String("base_name", book.BaseName),
		)
	}
	return nil
}

// GetBook retrieves a book by ID
func (s *Store) GetBook(ctx context.Context, id uuid.UUID) (*domain.BookRecord, error) {
	key := []byte(bookPrefix + id.String())

	var book domain.BookRecord
	err := s.get(key, &book)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrBookNotFound
		}
		return nil, fmt.Errorf("get book: %w", err)
	}
	return &book, nil
}

// GetBookByBaseName retrieves a book by its file base name. Used by the
// sidecar importer, which only knows the directory name a data file sits in.
func (s *Store) GetBookByBaseName(ctx context.Context, baseName string) (*domain.BookRecord, error) {
	baseNameKey := []byte(bookByBaseNamePrefix + baseName)

	var id string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(baseNameKey)
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			id = string(val)
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrBookNotFound
		}
		return nil, fmt.Errorf("get book by base name: %w", err)
	}

	bookID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse indexed book id: %w", err)
	}
	return s.GetBook(ctx, bookID)
}

// UpdateBook updates an existing book
func (s *Store) UpdateBook(ctx context.Context, book *domain.BookRecord) error {
	key := []byte(bookPrefix + book.ID.String())

	// Get old book for index updates
	oldBook, err := s.GetBook(ctx, book.ID)
	if err != nil {
		return err
	}

	// Use transaction to update book and index atomically
	err = s.db.Update(func(txn *badger.Txn) error {
		data, err := json.Marshal(book)
		if err != nil {
			return fmt.Errorf("marshal book: %w", err)
		}

		if err := txn.Set(key, data); err != nil {
			return err
		}

		if oldBook.BaseName != book.BaseName {
			oldKey := []byte(bookByBaseNamePrefix + oldBook.BaseName)
			if err := txn.Delete(oldKey); err != nil {
				return err
			}

			newKey := []byte(bookByBaseNamePrefix + book.BaseName)
			if err := txn.Set(newKey, []byte(book.ID.String())); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("update book: %w", err)
	}
	return nil
}

// DeleteBook removes a book, its base name index entry, and its annotation
// data in one transaction.
func (s *Store) DeleteBook(ctx context.Context, id uuid.UUID) error {
	book, err := s.GetBook(ctx, id)
	if err != nil {
		return err
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(bookPrefix + id.String())); err != nil {
			return err
		}
		if err := txn.Delete([]byte(bookByBaseNamePrefix + book.BaseName)); err != nil {
			return err
		}
		return txn.Delete([]byte(bookDataPrefix + id.String()))
	})
	if err != nil {
		return fmt.Errorf("delete book: %w", err)
	}

	if s.logger != nil {
		s.logger.LogAttrs(ctx, slog.LevelInfo, "book deleted",
			slog.String("id", id.String()),
			slog.String("title", book.Title),
		)
	}
	return nil
}

// ListBooks returns all books in the library.
func (s *Store) ListBooks(ctx context.Context) ([]domain.BookRecord, error) {
	var books []domain.BookRecord

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(bookPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var book domain.BookRecord
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &book)
			})
			if err != nil {
				return fmt.Errorf("unmarshal book %s: %w", it.Item().Key(), err)
			}
			books = append(books, book)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	return books, nil
}

// Library assembles the full library snapshot.
func (s *Store) Library(ctx context.Context) (*domain.Library, error) {
	books, err := s.ListBooks(ctx)
	if err != nil {
		return nil, err
	}
	if books == nil {
		books = []domain.BookRecord{}
	}
	return &domain.Library{Books: books}, nil
}
