// Package reader holds the annotation state for the currently open book and
// the transition rules that mutate it. The state is a pure value: every
// mutation produces a new snapshot from the previous one, and the Store
// serializes mutation application so no caller ever observes a
// partially-applied transition.
package reader

import (
	"github.com/google/uuid"

	"github.com/dipoleapp/dipole-server/internal/domain"
)

// State is one consistent view of the open book's annotations.
type State struct {
	Book           *domain.BookRecord
	Highlights     []domain.Highlight
	AnkiCards      []domain.AnkiCard
	CFI            string
	CollectionSync domain.CollectionSyncState
}

// NewState returns the empty state: no book loaded, collection unsynced.
func NewState() State {
	return State{
		Highlights:     []domain.Highlight{},
		AnkiCards:      []domain.AnkiCard{},
		CollectionSync: domain.CollectionSyncState{Status: domain.SyncUnsynced},
	}
}

// Clone returns a deep copy of the state. Mutation application and snapshot
// reads both go through Clone so no two holders share backing arrays.
func (s State) Clone() State {
	out := s
	if s.Book != nil {
		book := s.Book.Clone()
		out.Book = &book
	}
	out.Highlights = append([]domain.Highlight(nil), s.Highlights...)
	out.AnkiCards = make([]domain.AnkiCard, len(s.AnkiCards))
	for i := range s.AnkiCards {
		out.AnkiCards[i] = s.AnkiCards[i].Clone()
	}
	return out
}

// BookData returns the persistence snapshot for the current book.
func (s State) BookData() domain.BookData {
	clone := s.Clone()
	return domain.BookData{
		Highlights: clone.Highlights,
		AnkiCards:  clone.AnkiCards,
		CFI:        clone.CFI,
	}
}

// HighlightByID returns the highlight with the given ID, or false.
func (s State) HighlightByID(id uuid.UUID) (domain.Highlight, bool) {
	for _, h := range s.Highlights {
		if h.ID == id {
			return h, true
		}
	}
	return domain.Highlight{}, false
}

// CardByID returns the card with the given ID, or false.
func (s State) CardByID(id uuid.UUID) (domain.AnkiCard, bool) {
	for _, c := range s.AnkiCards {
		if c.ID == id {
			return c.Clone(), true
		}
	}
	return domain.AnkiCard{}, false
}

// CardsForHighlight returns all cards referencing the given highlight.
func (s State) CardsForHighlight(highlightID uuid.UUID) []domain.AnkiCard {
	var out []domain.AnkiCard
	for _, c := range s.AnkiCards {
		if c.HighlightID == highlightID {
			out = append(out, c.Clone())
		}
	}
	return out
}
