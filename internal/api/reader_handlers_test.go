package api

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (ts *testServer) openBookViaAPI(t *testing.T, bookID string) {
	t.Helper()
	resp := ts.api.Post("/api/v1/reader/open/" + bookID)
	require.Equal(t, http.StatusOK, resp.Code, "open book failed: %s", resp.Body.String())
}

func (ts *testServer) addHighlightViaAPI(t *testing.T, text string) HighlightResponse {
	t.Helper()
	resp := ts.api.Post("/api/v1/reader/highlights", map[string]any{
		"text":     text,
		"cfiRange": "epubcfi(/6/4!/4/2,/1:0,/1:10)",
	})
	require.Equal(t, http.StatusOK, resp.Code, "add highlight failed: %s", resp.Body.String())
	return decodeEnvelope[HighlightResponse](t, resp.Body.Bytes()).Data
}

func TestOpenBook_ReturnsState(t *testing.T) {
	ts := setupTestServer(t, nil)
	bookID := ts.createBookViaAPI(t, "periodic-table.epub")

	resp := ts.api.Post("/api/v1/reader/open/" + bookID)
	require.Equal(t, http.StatusOK, resp.Code)

	envelope := decodeEnvelope[ReaderStateResponse](t, resp.Body.Bytes())
	require.NotNil(t, envelope.Data.Book)
	assert.Equal(t, bookID, envelope.Data.Book.ID)
	assert.Empty(t, envelope.Data.Highlights)
	assert.Equal(t, "unsynced", envelope.Data.CollectionSync.Status)
}

func TestOpenBook_UnknownID(t *testing.T) {
	ts := setupTestServer(t, nil)

	resp := ts.api.Post("/api/v1/reader/open/" + uuid.NewString())
	assert.Equal(t, http.StatusNotFound, resp.Code)

	envelope := decodeEnvelope[struct{}](t, resp.Body.Bytes())
	assert.False(t, envelope.Success)
	assert.Equal(t, "NOT_FOUND", envelope.Error.Code)
}

func TestAddHighlight(t *testing.T) {
	ts := setupTestServer(t, nil)
	bookID := ts.createBookViaAPI(t, "periodic-table.epub")
	ts.openBookViaAPI(t, bookID)

	h := ts.addHighlightViaAPI(t, "the noble gases")
	assert.NotEmpty(t, h.ID)
	assert.Equal(t, "yellow", h.Color)

	// The highlight shows up in reader state.
	resp := ts.api.Get("/api/v1/reader")
	require.Equal(t, http.StatusOK, resp.Code)
	state := decodeEnvelope[ReaderStateResponse](t, resp.Body.Bytes()).Data
	require.Len(t, state.Highlights, 1)
	assert.Equal(t, "the noble gases", state.Highlights[0].Text)
}

func TestAddHighlight_NoBookOpen(t *testing.T) {
	ts := setupTestServer(t, nil)

	resp := ts.api.Post("/api/v1/reader/highlights", map[string]any{
		"text":     "nobody home",
		"cfiRange": "epubcfi(/6/4!/4/2,/1:0,/1:11)",
	})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestAddHighlight_MissingText(t *testing.T) {
	ts := setupTestServer(t, nil)
	bookID := ts.createBookViaAPI(t, "periodic-table.epub")
	ts.openBookViaAPI(t, bookID)

	resp := ts.api.Post("/api/v1/reader/highlights", map[string]any{
		"cfiRange": "epubcfi(/6/4!/4/2,/1:0,/1:11)",
	})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestRemoveHighlight_CascadesToCards(t *testing.T) {
	ts := setupTestServer(t, nil)
	bookID := ts.createBookViaAPI(t, "periodic-table.epub")
	ts.openBookViaAPI(t, bookID)

	h := ts.addHighlightViaAPI(t, "Chromium")

	cardResp := ts.api.Post("/api/v1/reader/cards", map[string]any{
		"highlightId": h.ID,
		"type":        "cloze",
		"fields":      []string{"{{c1::Chromium}} is shiny"},
	})
	require.Equal(t, http.StatusOK, cardResp.Code, cardResp.Body.String())

	resp := ts.api.Delete("/api/v1/reader/highlights/" + h.ID)
	require.Equal(t, http.StatusOK, resp.Code)

	state := decodeEnvelope[ReaderStateResponse](t, ts.api.Get("/api/v1/reader").Body.Bytes()).Data
	assert.Empty(t, state.Highlights)
	assert.Empty(t, state.Cards)
}

func TestSortHighlights(t *testing.T) {
	ts := setupTestServer(t, nil)
	bookID := ts.createBookViaAPI(t, "periodic-table.epub")
	ts.openBookViaAPI(t, bookID)

	h1 := ts.addHighlightViaAPI(t, "first")
	h2 := ts.addHighlightViaAPI(t, "second")

	resp := ts.api.Put("/api/v1/reader/highlights/order", map[string]any{
		"order": []string{h2.ID, h1.ID},
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	state := decodeEnvelope[ReaderStateResponse](t, resp.Body.Bytes()).Data
	require.Len(t, state.Highlights, 2)
	assert.Equal(t, h2.ID, state.Highlights[0].ID)
	assert.Equal(t, h1.ID, state.Highlights[1].ID)
}

func TestSortHighlights_RejectsPartialOrder(t *testing.T) {
	ts := setupTestServer(t, nil)
	bookID := ts.createBookViaAPI(t, "periodic-table.epub")
	ts.openBookViaAPI(t, bookID)

	ts.addHighlightViaAPI(t, "first")
	h2 := ts.addHighlightViaAPI(t, "second")

	// Dropping a highlight from the order is rejected.
	resp := ts.api.Put("/api/v1/reader/highlights/order", map[string]any{
		"order": []string{h2.ID},
	})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestUpdateCardFields(t *testing.T) {
	ts := setupTestServer(t, nil)
	bookID := ts.createBookViaAPI(t, "periodic-table.epub")
	ts.openBookViaAPI(t, bookID)

	h := ts.addHighlightViaAPI(t, "Mercury")
	cardResp := ts.api.Post("/api/v1/reader/cards", map[string]any{
		"highlightId": h.ID,
		"type":        "basic",
		"fields":      []string{"Mercury", "liquid at room temperature"},
	})
	require.Equal(t, http.StatusOK, cardResp.Code)
	card := decodeEnvelope[CardResponse](t, cardResp.Body.Bytes()).Data

	resp := ts.api.Patch("/api/v1/reader/cards/"+card.ID, map[string]any{
		"fields": []string{"Mercury", "the only liquid metal at room temperature"},
	})
	require.Equal(t, http.StatusOK, resp.Code)

	updated := decodeEnvelope[CardResponse](t, resp.Body.Bytes()).Data
	assert.Equal(t, "the only liquid metal at room temperature", updated.Fields[1])
	assert.Equal(t, "unsynced", updated.Sync.Status)
}

func TestCloseBook(t *testing.T) {
	ts := setupTestServer(t, nil)
	bookID := ts.createBookViaAPI(t, "periodic-table.epub")
	ts.openBookViaAPI(t, bookID)

	resp := ts.api.Post("/api/v1/reader/close")
	require.Equal(t, http.StatusOK, resp.Code)

	state := decodeEnvelope[ReaderStateResponse](t, ts.api.Get("/api/v1/reader").Body.Bytes()).Data
	assert.Nil(t, state.Book)
}

func TestLocate_RoundTripsThroughReopen(t *testing.T) {
	ts := setupTestServer(t, nil)
	bookID := ts.createBookViaAPI(t, "periodic-table.epub")
	ts.openBookViaAPI(t, bookID)

	resp := ts.api.Put("/api/v1/reader/location", map[string]any{
		"cfi": "epubcfi(/6/8!/4/2/1:0)",
	})
	require.Equal(t, http.StatusOK, resp.Code)

	ts.api.Post("/api/v1/reader/close")
	reopen := ts.api.Post("/api/v1/reader/open/" + bookID)
	require.Equal(t, http.StatusOK, reopen.Code)

	state := decodeEnvelope[ReaderStateResponse](t, reopen.Body.Bytes()).Data
	assert.Equal(t, "epubcfi(/6/8!/4/2/1:0)", state.CFI)
}
