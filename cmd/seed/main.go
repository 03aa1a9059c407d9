// Package main provides a tool to seed the database with sample reading data.
//
// This creates a handful of books with highlights and flashcards to exercise
// the reader UI, search, and Anki sync without a real device import.
//
// Usage:
//
//	DB_PATH=~/Dipole/db go run ./cmd/seed
//	DB_PATH=~/Dipole/db go run ./cmd/seed --with-cards  # Also create cloze cards
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/dipoleapp/dipole-server/internal/domain"
	"github.com/dipoleapp/dipole-server/internal/store"
)

var withCards = flag.Bool("with-cards", false, "Create cloze cards for seeded highlights")

type seedBook struct {
	baseName   string
	title      string
	author     string
	tags       []string
	highlights []seedHighlight
}

type seedHighlight struct {
	text  string
	cfi   string
	cloze string
}

var seedBooks = []seedBook{
	{
		baseName: "the-periodic-table.epub",
		title:    "The Periodic Table",
		author:   "Primo Levi",
		tags:     []string{"anki::chemistry", "memoir"},
		highlights: []seedHighlight{
			{
				text:  "Distilling is beautiful.",
				cfi:   "epubcfi(/6/8!/4/2/14,/1:0,/1:24)",
				cloze: "{{c1::Distilling}} is beautiful.",
			},
			{
				text:  "Zinc is a boring metal only in appearance.",
				cfi:   "epubcfi(/6/10!/4/2/6,/1:0,/1:42)",
				cloze: "{{c1::Zinc}} is a boring metal only in appearance.",
			},
		},
	},
	{
		baseName: "moby-dick.epub",
		title:    "Moby-Dick",
		author:   "Herman Melville",
		tags:     []string{"fiction"},
		highlights: []seedHighlight{
			{
				text: "Call me Ishmael.",
				cfi:  "epubcfi(/6/2!/4/2/2,/1:0,/1:16)",
			},
		},
	},
}

func main() {
	flag.Parse()

	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			log.Fatalf("Failed to resolve home directory: %v", err)
		}
		dbPath = filepath.Join(home, "Dipole", "db")
	}

	fmt.Printf("Opening database at: %s\n", dbPath)

	s, err := store.New(dbPath, nil)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer s.Close()

	ctx := context.Background()

	for _, sb := range seedBooks {
		book, err := seedOneBook(ctx, s, sb)
		if err != nil {
			log.Printf("Failed to seed %s: %v", sb.baseName, err)
			continue
		}
		fmt.Printf("  %s: %d highlights\n", book.Title, len(sb.highlights))
	}

	fmt.Println("\nSeeding complete!")
}

// seedOneBook creates the book record if missing and replaces its
// annotation snapshot with the seed highlights.
func seedOneBook(ctx context.Context, s *store.Store, sb seedBook) (*domain.BookRecord, error) {
	book, err := s.GetBookByBaseName(ctx, sb.baseName)
	switch {
	case err == nil:
		fmt.Printf("  Book %s already exists, reseeding annotations\n", sb.baseName)
	case errors.Is(err, store.ErrBookNotFound):
		book = &domain.BookRecord{
			ID:       uuid.New(),
			BaseName: sb.baseName,
			Title:    sb.title,
			Author:   sb.author,
			Tags:     sb.tags,
			Kind:     domain.KindEpub,
		}
		if err := s.CreateBook(ctx, book); err != nil {
			return nil, fmt.Errorf("create book: %w", err)
		}
		fmt.Printf("  Created book: %s\n", sb.title)
	default:
		return nil, err
	}

	data := &domain.BookData{
		Highlights: make([]domain.Highlight, 0, len(sb.highlights)),
		AnkiCards:  []domain.AnkiCard{},
	}

	for _, sh := range sb.highlights {
		h, err := domain.NewHighlight(sh.text, sh.cfi)
		if err != nil {
			return nil, fmt.Errorf("build highlight: %w", err)
		}
		data.Highlights = append(data.Highlights, *h)

		if *withCards && sh.cloze != "" {
			card, err := domain.NewAnkiCard(h.ID, domain.CardTypeCloze, []string{sh.cloze})
			if err != nil {
				return nil, fmt.Errorf("build card: %w", err)
			}
			data.AnkiCards = append(data.AnkiCards, *card)
		}
	}

	if err := s.SaveBookData(ctx, book.ID, data); err != nil {
		return nil, fmt.Errorf("save annotations: %w", err)
	}

	return book, nil
}
