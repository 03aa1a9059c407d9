package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/dipoleapp/dipole-server/internal/errors"
	"github.com/dipoleapp/dipole-server/internal/search"
)

func (s *Server) registerSearchRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "searchHighlights",
		Method:      http.MethodGet,
		Path:        "/api/v1/search",
		Summary:     "Search highlights",
		Description: "Full-text search over highlights across all books",
		Tags:        []string{"Search"},
	}, s.handleSearchHighlights)
}

// SearchInput contains query parameters for highlight search.
type SearchInput struct {
	Query  string `query:"q" doc:"Search query"`
	BookID string `query:"bookId" doc:"Restrict to one book"`
	Color  string `query:"color" doc:"Restrict to one highlight color"`
	Limit  int    `query:"limit" doc:"Maximum hits to return"`
	Offset int    `query:"offset" doc:"Hits to skip"`
}

// SearchOutput wraps the search result for Huma.
type SearchOutput struct {
	Body search.SearchResult
}

func (s *Server) handleSearchHighlights(ctx context.Context, input *SearchInput) (*SearchOutput, error) {
	params := search.SearchParams{
		Query:     input.Query,
		Color:     input.Color,
		Limit:     input.Limit,
		Offset:    input.Offset,
		Highlight: true,
	}

	if input.BookID != "" {
		bookID, err := uuid.Parse(input.BookID)
		if err != nil {
			return nil, errors.Validationf("invalid book ID %q", input.BookID)
		}
		params.BookID = bookID
	}

	result, err := s.services.Library.SearchHighlights(ctx, params)
	if err != nil {
		return nil, err
	}

	return &SearchOutput{Body: *result}, nil
}
