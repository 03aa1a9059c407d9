package reader

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dipoleapp/dipole-server/internal/domain"
	"github.com/dipoleapp/dipole-server/internal/errors"
)

// Mutation is one typed state transition. Mutations are plain values; all
// the data a transition needs is captured at construction time so that
// applying one is a pure function of (previous state, mutation).
type Mutation interface {
	// Kind is a stable machine-readable name, used for transition events
	// and log lines.
	Kind() string
}

// LoadBook replaces the open book record. Annotation data is untouched;
// hydration follows with LoadHighlights/LoadAnkiCards.
type LoadBook struct {
	Book domain.BookRecord
}

// LoadHighlights bulk-replaces the highlight list during hydration.
type LoadHighlights struct {
	Highlights []domain.Highlight
}

// LoadAnkiCards bulk-replaces the card list during hydration.
type LoadAnkiCards struct {
	Cards []domain.AnkiCard
}

// Locate records the reading position.
type Locate struct {
	CFI string
}

// AddHighlight appends a highlight. Callers that care about immediate
// ordering follow up with SortHighlights; the rendering layer owns CFI
// comparison.
type AddHighlight struct {
	Highlight domain.Highlight
}

// SortHighlights replaces the highlight sequence with a new total order.
// The new order must be a permutation of the current set; a reorder can
// neither lose nor invent highlights.
type SortHighlights struct {
	Highlights []domain.Highlight
}

// RemoveHighlight removes a highlight and cascades to every card that
// references it, in the same transition.
type RemoveHighlight struct {
	ID uuid.UUID
}

// AddAnkiCard appends a card.
type AddAnkiCard struct {
	Card domain.AnkiCard
}

// RemoveAnkiCard removes a card.
type RemoveAnkiCard struct {
	ID uuid.UUID
}

// UpdateAnkiCardFields replaces a card's fields, bumps its edit date, and
// resets its sync status to unsynced: an edit invalidates any prior sync.
// Use NewUpdateAnkiCardFields so EditDate is captured at construction.
type UpdateAnkiCardFields struct {
	ID       uuid.UUID
	Fields   []string
	EditDate int64
}

// NewUpdateAnkiCardFields builds an UpdateAnkiCardFields stamped with the
// current time.
func NewUpdateAnkiCardFields(id uuid.UUID, fields []string) UpdateAnkiCardFields {
	return UpdateAnkiCardFields{
		ID:       id,
		Fields:   append([]string(nil), fields...),
		EditDate: time.Now().UnixMilli(),
	}
}

// SetCardSyncWaiting marks a card's sync as in flight.
type SetCardSyncWaiting struct {
	ID uuid.UUID
}

// SetCardSyncSuccess marks a card's sync as successful and clears any error.
type SetCardSyncSuccess struct {
	ID uuid.UUID
}

// SetCardSyncError records a per-card sync failure.
type SetCardSyncError struct {
	ID       uuid.UUID
	ErrorMsg string
}

// SetCardAnkiNoteID records the remote note ID after a successful create.
// Status and error message are untouched.
type SetCardAnkiNoteID struct {
	ID         uuid.UUID
	AnkiNoteID string
}

// SetCollectionSyncWaiting marks the whole sync run as in flight.
type SetCollectionSyncWaiting struct{}

// SetCollectionSyncSuccess marks the whole sync run as successful.
type SetCollectionSyncSuccess struct{}

// SetCollectionSyncError records a run-level sync failure.
type SetCollectionSyncError struct {
	ErrorMsg string
}

// UnloadBook resets the entire state to empty.
type UnloadBook struct{}

// Kind implementations.

func (LoadBook) Kind() string                 { return "book.loaded" }
func (LoadHighlights) Kind() string           { return "highlights.loaded" }
func (LoadAnkiCards) Kind() string            { return "cards.loaded" }
func (Locate) Kind() string                   { return "book.located" }
func (AddHighlight) Kind() string             { return "highlight.added" }
func (SortHighlights) Kind() string           { return "highlights.sorted" }
func (RemoveHighlight) Kind() string          { return "highlight.removed" }
func (AddAnkiCard) Kind() string              { return "card.added" }
func (RemoveAnkiCard) Kind() string           { return "card.removed" }
func (UpdateAnkiCardFields) Kind() string     { return "card.updated" }
func (SetCardSyncWaiting) Kind() string       { return "card.sync_waiting" }
func (SetCardSyncSuccess) Kind() string       { return "card.sync_success" }
func (SetCardSyncError) Kind() string         { return "card.sync_error" }
func (SetCardAnkiNoteID) Kind() string        { return "card.note_id" }
func (SetCollectionSyncWaiting) Kind() string { return "collection.sync_waiting" }
func (SetCollectionSyncSuccess) Kind() string { return "collection.sync_success" }
func (SetCollectionSyncError) Kind() string   { return "collection.sync_error" }
func (UnloadBook) Kind() string               { return "book.unloaded" }

// apply produces the next state from the previous one. The previous state is
// never modified; every branch works on a fresh clone.
func apply(prev State, m Mutation) (State, error) {
	next := prev.Clone()

	switch mut := m.(type) {
	case LoadBook:
		book := mut.Book.Clone()
		next.Book = &book

	case LoadHighlights:
		next.Highlights = append([]domain.Highlight(nil), mut.Highlights...)

	case LoadAnkiCards:
		next.AnkiCards = make([]domain.AnkiCard, len(mut.Cards))
		for i := range mut.Cards {
			next.AnkiCards[i] = mut.Cards[i].Clone()
		}

	case Locate:
		next.CFI = mut.CFI

	case AddHighlight:
		next.Highlights = append(next.Highlights, mut.Highlight)

	case SortHighlights:
		if err := checkPermutation(prev.Highlights, mut.Highlights); err != nil {
			return prev, err
		}
		next.Highlights = append([]domain.Highlight(nil), mut.Highlights...)

	case RemoveHighlight:
		highlights := next.Highlights[:0]
		for _, h := range next.Highlights {
			if h.ID != mut.ID {
				highlights = append(highlights, h)
			}
		}
		next.Highlights = highlights

		// Cascade: drop every card referencing the removed highlight in
		// this same transition so no orphan card exists at rest.
		cards := next.AnkiCards[:0]
		for _, c := range next.AnkiCards {
			if c.HighlightID != mut.ID {
				cards = append(cards, c)
			}
		}
		next.AnkiCards = cards

	case AddAnkiCard:
		next.AnkiCards = append(next.AnkiCards, mut.Card.Clone())

	case RemoveAnkiCard:
		cards := next.AnkiCards[:0]
		for _, c := range next.AnkiCards {
			if c.ID != mut.ID {
				cards = append(cards, c)
			}
		}
		next.AnkiCards = cards

	case UpdateAnkiCardFields:
		updateCard(next.AnkiCards, mut.ID, func(c *domain.AnkiCard) {
			c.Fields = append([]string(nil), mut.Fields...)
			c.EditDate = mut.EditDate
			c.Sync.Status = domain.SyncUnsynced
			c.Sync.ErrorMsg = ""
		})

	case SetCardSyncWaiting:
		updateCard(next.AnkiCards, mut.ID, func(c *domain.AnkiCard) {
			c.Sync.Status = domain.SyncWaiting
		})

	case SetCardSyncSuccess:
		updateCard(next.AnkiCards, mut.ID, func(c *domain.AnkiCard) {
			c.Sync.Status = domain.SyncSuccess
			c.Sync.ErrorMsg = ""
		})

	case SetCardSyncError:
		updateCard(next.AnkiCards, mut.ID, func(c *domain.AnkiCard) {
			c.Sync.Status = domain.SyncError
			c.Sync.ErrorMsg = mut.ErrorMsg
		})

	case SetCardAnkiNoteID:
		updateCard(next.AnkiCards, mut.ID, func(c *domain.AnkiCard) {
			c.Sync.AnkiNoteID = mut.AnkiNoteID
		})

	case SetCollectionSyncWaiting:
		next.CollectionSync = domain.CollectionSyncState{Status: domain.SyncWaiting}

	case SetCollectionSyncSuccess:
		next.CollectionSync = domain.CollectionSyncState{Status: domain.SyncSuccess}

	case SetCollectionSyncError:
		next.CollectionSync = domain.CollectionSyncState{
			Status:   domain.SyncError,
			ErrorMsg: mut.ErrorMsg,
		}

	case UnloadBook:
		return NewState(), nil

	default:
		return prev, errors.Internalf("unknown mutation type %T", m)
	}

	return next, nil
}

// updateCard applies fn to the card with the given ID in place. Unknown IDs
// are a no-op, matching the merge semantics of the other setters.
func updateCard(cards []domain.AnkiCard, id uuid.UUID, fn func(*domain.AnkiCard)) {
	for i := range cards {
		if cards[i].ID == id {
			fn(&cards[i])
			return
		}
	}
}

// checkPermutation verifies next contains exactly the same highlight IDs as
// current: same count, no losses, no additions.
func checkPermutation(current, next []domain.Highlight) error {
	if len(current) != len(next) {
		return errors.Validationf("sort must preserve highlight count: have %d, got %d", len(current), len(next))
	}

	seen := make(map[uuid.UUID]int, len(current))
	for _, h := range current {
		seen[h.ID]++
	}
	for _, h := range next {
		seen[h.ID]--
		if seen[h.ID] < 0 {
			return errors.Validation(fmt.Sprintf("sort introduced unknown highlight %s", h.ID))
		}
	}
	for id, n := range seen {
		if n != 0 {
			return errors.Validation(fmt.Sprintf("sort dropped highlight %s", id))
		}
	}
	return nil
}
