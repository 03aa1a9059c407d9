// Package domain contains the core business entities for the Dipole annotation server.
package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Highlight validation errors.
var (
	// ErrHighlightIDEmpty is returned when a highlight ID is empty or nil.
	ErrHighlightIDEmpty = errors.New("highlight ID cannot be empty")

	// ErrHighlightTextEmpty is returned when a highlight has no selected text.
	ErrHighlightTextEmpty = errors.New("highlight text cannot be empty")

	// ErrHighlightCFIEmpty is returned when a highlight has no position token.
	ErrHighlightCFIEmpty = errors.New("highlight CFI range cannot be empty")
)

// HighlightColor is the display color of a highlight.
type HighlightColor string

// Supported highlight colors. Only yellow exists today; the enum leaves room
// for a palette later.
const (
	ColorYellow HighlightColor = "yellow"
)

// Highlight is a user-selected excerpt of a document, anchored by an opaque
// position token (an EPUB CFI range). Highlights are immutable after
// creation apart from their position in the collection's ordering; the
// ordering itself is supplied by the rendering layer, which is the only
// component that can compare CFI ranges.
type Highlight struct {
	ID       uuid.UUID      `json:"id"`
	Text     string         `json:"text"`
	CFIRange string         `json:"cfiRange"`
	Color    HighlightColor `json:"color"`
	AddDate  int64          `json:"addDate"` // Unix milliseconds, matches the sidecar format
}

// NewHighlight creates a highlight for the given selection.
// Returns an error if validation fails.
func NewHighlight(text, cfiRange string) (*Highlight, error) {
	h := &Highlight{
		ID:       uuid.New(),
		Text:     text,
		CFIRange: cfiRange,
		Color:    ColorYellow,
		AddDate:  time.Now().UnixMilli(),
	}

	if err := h.Validate(); err != nil {
		return nil, err
	}

	return h, nil
}

// Validate checks if the Highlight has valid data.
func (h *Highlight) Validate() error {
	if h.ID == uuid.Nil {
		return ErrHighlightIDEmpty
	}
	if h.Text == "" {
		return ErrHighlightTextEmpty
	}
	if h.CFIRange == "" {
		return ErrHighlightCFIEmpty
	}
	return nil
}
