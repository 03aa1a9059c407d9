package domain

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

// BookRecord validation errors.
var (
	// ErrBookIDEmpty is returned when a book ID is empty or nil.
	ErrBookIDEmpty = errors.New("book ID cannot be empty")

	// ErrBookBaseNameEmpty is returned when a book has no archive base name.
	ErrBookBaseNameEmpty = errors.New("book base name cannot be empty")
)

// BookKind is the document format of a book.
type BookKind string

// Supported document formats.
const (
	KindEpub BookKind = "epub"
	KindPdf  BookKind = "pdf"
)

// BookRecord is a library entry for one document. The record carries only
// catalog metadata; the document file itself is owned by the reader UI.
type BookRecord struct {
	ID       uuid.UUID `json:"id"`
	BaseName string    `json:"baseName"`

	Title        string   `json:"title,omitempty"`
	Author       string   `json:"author,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	Progress     float64  `json:"progress,omitempty"`
	Publisher    string   `json:"publisher,omitempty"`
	DateLastRead string   `json:"dateLastRead,omitempty"`
	DateAdded    string   `json:"dateAdded,omitempty"`
	Size         int64    `json:"size,omitempty"`
	Length       int64    `json:"length,omitempty"`
	Kind         BookKind `json:"kind,omitempty"`
	Year         int      `json:"year,omitempty"`
}

// Validate checks if the BookRecord has valid data.
func (b *BookRecord) Validate() error {
	if b.ID == uuid.Nil {
		return ErrBookIDEmpty
	}
	if b.BaseName == "" {
		return ErrBookBaseNameEmpty
	}
	return nil
}

// AnkiTags returns the book tags carrying the given prefix, with the prefix
// stripped. These are the tags submitted alongside created Anki notes;
// "anki::vocab" with prefix "anki::" yields "vocab".
func (b *BookRecord) AnkiTags(prefix string) []string {
	tags := make([]string, 0, len(b.Tags))
	for _, tag := range b.Tags {
		if strings.HasPrefix(tag, prefix) {
			tags = append(tags, strings.TrimPrefix(tag, prefix))
		}
	}
	return tags
}

// Clone returns a deep copy of the record.
func (b BookRecord) Clone() BookRecord {
	b.Tags = append([]string(nil), b.Tags...)
	return b
}

// BookData is the persisted annotation snapshot for one book: the shape
// exchanged with the store and with sidecar JSON files.
type BookData struct {
	Highlights []Highlight `json:"highlights"`
	AnkiCards  []AnkiCard  `json:"ankiCards"`
	CFI        string      `json:"cfi"`
}

// Library is the persisted library snapshot.
type Library struct {
	Books []BookRecord `json:"books"`
}
