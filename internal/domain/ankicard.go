package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// AnkiCard validation errors.
var (
	// ErrCardIDEmpty is returned when a card ID is empty or nil.
	ErrCardIDEmpty = errors.New("card ID cannot be empty")

	// ErrCardHighlightIDEmpty is returned when a card's highlight ID is empty or nil.
	ErrCardHighlightIDEmpty = errors.New("card highlight ID cannot be empty")

	// ErrCardFieldsEmpty is returned when a card has no fields.
	ErrCardFieldsEmpty = errors.New("card must have at least one field")

	// ErrCardTypeInvalid is returned when a card's type is not a known card type.
	ErrCardTypeInvalid = errors.New("card type must be cloze or basic")
)

// CardType is the Anki note layout a card uses.
type CardType string

// Supported card types.
const (
	CardTypeCloze CardType = "cloze"
	CardTypeBasic CardType = "basic"
)

// SyncStatus tracks whether remote state matches local state for a card or
// for a whole sync run.
type SyncStatus string

// Sync status lifecycle: unsynced/error -> waiting -> success | error.
const (
	SyncUnsynced SyncStatus = "unsynced"
	SyncWaiting  SyncStatus = "waiting"
	SyncSuccess  SyncStatus = "success"
	SyncError    SyncStatus = "error"
)

// SyncState is the per-card synchronization record. AnkiNoteID is set only
// after a successful create and is the join key to the remote note; an empty
// AnkiNoteID means the card has never been created remotely.
type SyncState struct {
	Status     SyncStatus `json:"status"`
	AnkiNoteID string     `json:"ankiNoteId,omitempty"`
	ErrorMsg   string     `json:"errorMsg,omitempty"`
}

// CollectionSyncState is the aggregate status over a whole sync run,
// independent of individual card states.
type CollectionSyncState struct {
	Status   SyncStatus `json:"status"`
	ErrorMsg string     `json:"errorMsg,omitempty"`
}

// AnkiCard is a flashcard derived from a highlight. Every card references a
// live highlight; removing a highlight removes its cards in the same
// transition, so no orphan card exists at rest.
type AnkiCard struct {
	ID             uuid.UUID `json:"id"`
	HighlightID    uuid.UUID `json:"highlightId"`
	Type           CardType  `json:"type"`
	Fields         []string  `json:"fields"`
	AdditionalTags []string  `json:"additionalTags"`
	Sync           SyncState `json:"sync"`
	AddDate        int64     `json:"addDate"`  // Unix milliseconds
	EditDate       int64     `json:"editDate"` // Unix milliseconds
}

// NewAnkiCard creates a card for the given highlight with the given fields.
// The card starts unsynced. Returns an error if validation fails.
func NewAnkiCard(highlightID uuid.UUID, cardType CardType, fields []string) (*AnkiCard, error) {
	now := time.Now().UnixMilli()
	card := &AnkiCard{
		ID:             uuid.New(),
		HighlightID:    highlightID,
		Type:           cardType,
		Fields:         fields,
		AdditionalTags: []string{},
		Sync:           SyncState{Status: SyncUnsynced},
		AddDate:        now,
		EditDate:       now,
	}

	if err := card.Validate(); err != nil {
		return nil, err
	}

	return card, nil
}

// Validate checks if the AnkiCard has valid data.
func (c *AnkiCard) Validate() error {
	if c.ID == uuid.Nil {
		return ErrCardIDEmpty
	}
	if c.HighlightID == uuid.Nil {
		return ErrCardHighlightIDEmpty
	}
	if c.Type != CardTypeCloze && c.Type != CardTypeBasic {
		return ErrCardTypeInvalid
	}
	if len(c.Fields) == 0 {
		return ErrCardFieldsEmpty
	}
	return nil
}

// FrontField returns the card's first field, the content submitted to Anki.
func (c *AnkiCard) FrontField() string {
	if len(c.Fields) == 0 {
		return ""
	}
	return c.Fields[0]
}

// Clone returns a deep copy of the card.
func (c AnkiCard) Clone() AnkiCard {
	c.Fields = append([]string(nil), c.Fields...)
	c.AdditionalTags = append([]string(nil), c.AdditionalTags...)
	return c
}
