// Package search provides full-text search over highlight text using Bleve.
// Every highlight in the library is indexed as one document, so a query can
// find a half-remembered passage across all books at once.
package search

import (
	"github.com/google/uuid"

	"github.com/dipoleapp/dipole-server/internal/domain"
)

// HighlightDocument is the document structure for the Bleve index.
//
// Book title and author are denormalized into each document so results can
// be rendered without a store lookup per hit.
type HighlightDocument struct {
	ID        string `json:"id"`
	BookID    string `json:"book_id"`
	BookTitle string `json:"book_title"`
	Author    string `json:"author"`
	Text      string `json:"text"`
	CFIRange  string `json:"cfi_range"`
	Color     string `json:"color"`
	AddDate   int64  `json:"add_date"` // Unix millis
}

// NewHighlightDocument builds the index document for a highlight of a book.
func NewHighlightDocument(book *domain.BookRecord, h *domain.Highlight) *HighlightDocument {
	return &HighlightDocument{
		ID:        h.ID.String(),
		BookID:    book.ID.String(),
		BookTitle: book.Title,
		Author:    book.Author,
		Text:      h.Text,
		CFIRange:  h.CFIRange,
		Color:     string(h.Color),
		AddDate:   h.AddDate,
	}
}

// ToMap converts the document to a map with lowercase field names.
// Bleve by default uses Go struct field names (capitalized), but our
// mapping uses lowercase names, so we convert explicitly.
func (d *HighlightDocument) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"id":         d.ID,
		"book_id":    d.BookID,
		"book_title": d.BookTitle,
		"author":     d.Author,
		"text":       d.Text,
		"cfi_range":  d.CFIRange,
		"color":      d.Color,
		"add_date":   d.AddDate,
	}
}

// HighlightDocumentID returns the index key for a highlight.
func HighlightDocumentID(highlightID uuid.UUID) string {
	return highlightID.String()
}
