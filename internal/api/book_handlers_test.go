package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dipoleapp/dipole-server/internal/search"
)

func TestCreateBook_InfersKind(t *testing.T) {
	ts := setupTestServer(t, nil)

	resp := ts.api.Post("/api/v1/books", map[string]any{
		"baseName": "paper.pdf",
	})
	require.Equal(t, http.StatusOK, resp.Code)

	book := decodeEnvelope[BookResponse](t, resp.Body.Bytes()).Data
	assert.Equal(t, "pdf", book.Kind)
	assert.NotEmpty(t, book.DateAdded)
}

func TestCreateBook_MissingBaseName(t *testing.T) {
	ts := setupTestServer(t, nil)

	resp := ts.api.Post("/api/v1/books", map[string]any{
		"title": "No file",
	})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestCreateBook_Duplicate(t *testing.T) {
	ts := setupTestServer(t, nil)
	ts.createBookViaAPI(t, "periodic-table.epub")

	resp := ts.api.Post("/api/v1/books", map[string]any{
		"baseName": "periodic-table.epub",
	})
	assert.Equal(t, http.StatusConflict, resp.Code)

	envelope := decodeEnvelope[struct{}](t, resp.Body.Bytes())
	assert.Equal(t, "ALREADY_EXISTS", envelope.Error.Code)
}

func TestListBooks(t *testing.T) {
	ts := setupTestServer(t, nil)
	ts.createBookViaAPI(t, "a.epub")
	ts.createBookViaAPI(t, "b.epub")

	resp := ts.api.Get("/api/v1/books")
	require.Equal(t, http.StatusOK, resp.Code)

	list := decodeEnvelope[ListBooksResponse](t, resp.Body.Bytes()).Data
	assert.Len(t, list.Books, 2)
}

func TestUpdateBook_PartialPatch(t *testing.T) {
	ts := setupTestServer(t, nil)
	bookID := ts.createBookViaAPI(t, "periodic-table.epub")

	resp := ts.api.Patch("/api/v1/books/"+bookID, map[string]any{
		"progress": 0.25,
	})
	require.Equal(t, http.StatusOK, resp.Code)

	book := decodeEnvelope[BookResponse](t, resp.Body.Bytes()).Data
	assert.Equal(t, 0.25, book.Progress)
	// Untouched fields survive the patch.
	assert.Equal(t, "The Periodic Table", book.Title)
}

func TestDeleteBook(t *testing.T) {
	ts := setupTestServer(t, nil)
	bookID := ts.createBookViaAPI(t, "periodic-table.epub")

	resp := ts.api.Delete("/api/v1/books/" + bookID)
	require.Equal(t, http.StatusOK, resp.Code)

	assert.Equal(t, http.StatusNotFound, ts.api.Get("/api/v1/books/"+bookID).Code)
}

func TestSearchHighlights_EndToEnd(t *testing.T) {
	ts := setupTestServer(t, nil)
	bookID := ts.createBookViaAPI(t, "periodic-table.epub")
	ts.openBookViaAPI(t, bookID)
	ts.addHighlightViaAPI(t, "cerium is a lanthanide")

	resp := ts.api.Get("/api/v1/search?q=cerium")
	require.Equal(t, http.StatusOK, resp.Code)

	result := decodeEnvelope[search.SearchResult](t, resp.Body.Bytes()).Data
	require.Len(t, result.Hits, 1)
	assert.Contains(t, result.Hits[0].Text, "cerium")
}

func TestSearchHighlights_BadBookFilter(t *testing.T) {
	ts := setupTestServer(t, nil)

	resp := ts.api.Get("/api/v1/search?q=x&bookId=nope")
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}
