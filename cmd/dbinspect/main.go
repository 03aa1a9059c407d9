package main

import (
	"encoding/json/v2"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/dipoleapp/dipole-server/internal/domain"
)

func main() {
	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			log.Fatalf("Failed to resolve home directory: %v", err)
		}
		dbPath = filepath.Join(home, "Dipole", "db")
	}

	opts := badger.DefaultOptions(dbPath).
		WithReadOnly(true).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	fmt.Println("=== Database Inspection ===")
	fmt.Println()

	bookCount := 0
	totalHighlights := 0
	totalCards := 0
	unsyncedCards := 0
	shown := 0

	err = db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte("book:")
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek([]byte("book:")); it.ValidForPrefix([]byte("book:")); it.Next() {
			item := it.Item()
			key := string(item.Key())

			var book domain.BookRecord
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &book)
			})
			if err != nil {
				log.Printf("Error reading book %s: %v", key, err)
				continue
			}
			bookCount++

			var data domain.BookData
			dataItem, err := txn.Get([]byte("bookdata:" + book.ID.String()))
			if err == nil {
				err = dataItem.Value(func(val []byte) error {
					return json.Unmarshal(val, &data)
				})
				if err != nil {
					log.Printf("Error reading annotations for %s: %v", book.BaseName, err)
				}
			}

			totalHighlights += len(data.Highlights)
			totalCards += len(data.AnkiCards)
			for _, card := range data.AnkiCards {
				if card.Sync.Status != domain.SyncSuccess {
					unsyncedCards++
				}
			}

			if shown < 5 {
				shown++
				fmt.Printf("Book: %s\n", book.Title)
				fmt.Printf("  ID: %s\n", book.ID)
				fmt.Printf("  Base name: %s\n", book.BaseName)
				fmt.Printf("  Highlights: %d\n", len(data.Highlights))
				fmt.Printf("  Cards: %d\n", len(data.AnkiCards))
				if data.CFI != "" {
					fmt.Printf("  Position: %s\n", truncate(data.CFI, 60))
				}
				fmt.Println()
			}
		}
		return nil
	})
	if err != nil {
		log.Fatalf("Error iterating database: %v", err)
	}

	fmt.Println("=== Summary ===")
	fmt.Printf("Total books: %d\n", bookCount)
	fmt.Printf("Total highlights: %d\n", totalHighlights)
	fmt.Printf("Total cards: %d\n", totalCards)
	fmt.Printf("Cards pending sync: %d\n", unsyncedCards)
	if bookCount > 0 {
		fmt.Printf("Average highlights per book: %.1f\n", float64(totalHighlights)/float64(bookCount))
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.TrimSpace(s[:n]) + "..."
}
