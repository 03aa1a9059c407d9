package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHighlight(t *testing.T) {
	h, err := NewHighlight("some selected text", "epubcfi(/6/4!/4/2/1:0,/4/2/1:10)")
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, h.ID)
	assert.Equal(t, ColorYellow, h.Color)
	assert.Positive(t, h.AddDate)
}

func TestNewHighlight_Invalid(t *testing.T) {
	_, err := NewHighlight("", "epubcfi(...)")
	assert.ErrorIs(t, err, ErrHighlightTextEmpty)

	_, err = NewHighlight("text", "")
	assert.ErrorIs(t, err, ErrHighlightCFIEmpty)
}

func TestNewAnkiCard(t *testing.T) {
	hlID := uuid.New()
	card, err := NewAnkiCard(hlID, CardTypeCloze, []string{"{{c1::front}}"})
	require.NoError(t, err)

	assert.Equal(t, hlID, card.HighlightID)
	assert.Equal(t, SyncUnsynced, card.Sync.Status)
	assert.Empty(t, card.Sync.AnkiNoteID)
	assert.Equal(t, card.AddDate, card.EditDate)
}

func TestNewAnkiCard_Invalid(t *testing.T) {
	_, err := NewAnkiCard(uuid.Nil, CardTypeCloze, []string{"x"})
	assert.ErrorIs(t, err, ErrCardHighlightIDEmpty)

	_, err = NewAnkiCard(uuid.New(), CardType("image-occlusion"), []string{"x"})
	assert.ErrorIs(t, err, ErrCardTypeInvalid)

	_, err = NewAnkiCard(uuid.New(), CardTypeBasic, nil)
	assert.ErrorIs(t, err, ErrCardFieldsEmpty)
}

func TestAnkiCard_FrontField(t *testing.T) {
	card, err := NewAnkiCard(uuid.New(), CardTypeBasic, []string{"front", "back"})
	require.NoError(t, err)
	assert.Equal(t, "front", card.FrontField())

	var empty AnkiCard
	assert.Equal(t, "", empty.FrontField())
}

func TestAnkiCard_Clone_Independent(t *testing.T) {
	card, err := NewAnkiCard(uuid.New(), CardTypeBasic, []string{"front"})
	require.NoError(t, err)

	clone := card.Clone()
	clone.Fields[0] = "mutated"
	clone.AdditionalTags = append(clone.AdditionalTags, "extra")

	assert.Equal(t, "front", card.Fields[0])
	assert.Empty(t, card.AdditionalTags)
}

func TestBookRecord_AnkiTags(t *testing.T) {
	book := BookRecord{
		ID:       uuid.New(),
		BaseName: "meditations.epub",
		Tags:     []string{"anki::philosophy", "favorites", "anki::stoicism", "anki::"},
	}

	got := book.AnkiTags("anki::")
	assert.Equal(t, []string{"philosophy", "stoicism", ""}, got)
}

func TestBookRecord_AnkiTags_NoTags(t *testing.T) {
	book := BookRecord{ID: uuid.New(), BaseName: "a.epub"}
	assert.Empty(t, book.AnkiTags("anki::"))
}

func TestBookRecord_Validate(t *testing.T) {
	book := BookRecord{}
	assert.ErrorIs(t, book.Validate(), ErrBookIDEmpty)

	book.ID = uuid.New()
	assert.ErrorIs(t, book.Validate(), ErrBookBaseNameEmpty)

	book.BaseName = "meditations.epub"
	assert.NoError(t, book.Validate())
}

func TestBookRecord_Clone_Independent(t *testing.T) {
	book := BookRecord{
		ID:       uuid.New(),
		BaseName: "a.epub",
		Tags:     []string{"one"},
	}

	clone := book.Clone()
	clone.Tags[0] = "mutated"
	assert.Equal(t, "one", book.Tags[0])
}
