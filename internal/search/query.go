package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/google/uuid"

	"github.com/dipoleapp/dipole-server/internal/normalize"
)

// SearchParams configures a search query.
type SearchParams struct {
	Query string // User's search query

	// Filters
	BookID uuid.UUID // Restrict to one book (uuid.Nil = whole library)
	Color  string    // Filter by highlight color (empty = all)

	// Pagination
	Limit  int
	Offset int

	// Options
	Highlight bool // Include match highlighting
}

// DefaultSearchParams returns sensible defaults.
func DefaultSearchParams() SearchParams {
	return SearchParams{
		Limit:     20,
		Offset:    0,
		Highlight: true,
	}
}

// SearchResult represents the search results.
type SearchResult struct {
	Query  string      `json:"query"`
	Total  uint64      `json:"total"`
	TookMs int64       `json:"tookMs"`
	Hits   []SearchHit `json:"hits"`
}

// SearchHit represents a single matching highlight.
type SearchHit struct {
	ID        string            `json:"id"`
	BookID    string            `json:"bookId"`
	BookTitle string            `json:"bookTitle,omitempty"`
	Author    string            `json:"author,omitempty"`
	Text      string            `json:"text"`
	CFIRange  string            `json:"cfiRange,omitempty"`
	Color     string            `json:"color,omitempty"`
	AddDate   int64             `json:"addDate,omitempty"`
	Score     float64           `json:"score"`
	Fragments map[string]string `json:"fragments,omitempty"`
}

// Search executes a search query.
func (s *SearchIndex) Search(ctx context.Context, params SearchParams) (*SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	searchQuery := buildSearchQuery(params)

	searchRequest := bleve.NewSearchRequestOptions(searchQuery, params.Limit, params.Offset, false)

	if params.Highlight {
		searchRequest.Highlight = bleve.NewHighlight()
		searchRequest.Highlight.AddField("text")
	}

	searchRequest.Fields = []string{
		"book_id", "book_title", "author", "text", "cfi_range", "color", "add_date",
	}

	searchResult, err := s.index.SearchInContext(ctx, searchRequest)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	result := &SearchResult{
		Query:  params.Query,
		Total:  searchResult.Total,
		TookMs: searchResult.Took.Milliseconds(),
		Hits:   make([]SearchHit, 0, len(searchResult.Hits)),
	}

	for _, hit := range searchResult.Hits {
		searchHit := SearchHit{
			ID:    hit.ID,
			Score: hit.Score,
		}

		if v, ok := hit.Fields["book_id"].(string); ok {
			searchHit.BookID = v
		}
		if v, ok := hit.Fields["book_title"].(string); ok {
			searchHit.BookTitle = v
		}
		if v, ok := hit.Fields["author"].(string); ok {
			searchHit.Author = v
		}
		if v, ok := hit.Fields["text"].(string); ok {
			searchHit.Text = v
		}
		if v, ok := hit.Fields["cfi_range"].(string); ok {
			searchHit.CFIRange = v
		}
		if v, ok := hit.Fields["color"].(string); ok {
			searchHit.Color = v
		}
		if v, ok := hit.Fields["add_date"].(float64); ok {
			searchHit.AddDate = int64(v)
		}

		if len(hit.Fragments) > 0 {
			searchHit.Fragments = make(map[string]string)
			for field, fragments := range hit.Fragments {
				if len(fragments) > 0 {
					searchHit.Fragments[field] = fragments[0]
				}
			}
		}

		result.Hits = append(result.Hits, searchHit)
	}

	return result, nil
}

// buildSearchQuery constructs the Bleve query from params.
func buildSearchQuery(params SearchParams) query.Query {
	var queries []query.Query

	// Main text query. Highlight text carries the highest boost; book title
	// and author matter less but let "whale melville" narrow the results.
	if q := normalize.SearchQuery(params.Query); q != "" {
		textQueries := []query.Query{}

		textMatch := bleve.NewMatchQuery(q)
		textMatch.SetField("text")
		textMatch.SetBoost(3.0)
		textQueries = append(textQueries, textMatch)

		titleMatch := bleve.NewMatchQuery(q)
		titleMatch.SetField("book_title")
		titleMatch.SetBoost(1.5)
		textQueries = append(textQueries, titleMatch)

		authorMatch := bleve.NewMatchQuery(q)
		authorMatch.SetField("author")
		textQueries = append(textQueries, authorMatch)

		// Fuzzy matching for typo tolerance on the text itself
		fuzzyQuery := bleve.NewFuzzyQuery(q)
		fuzzyQuery.SetFuzziness(1)
		fuzzyQuery.SetField("text")
		fuzzyQuery.SetBoost(0.8)
		textQueries = append(textQueries, fuzzyQuery)

		// Prefix query for as-you-type search (minimum 2 chars)
		if len(q) >= 2 {
			prefixQuery := bleve.NewPrefixQuery(strings.ToLower(q))
			prefixQuery.SetField("text")
			prefixQuery.SetBoost(0.5)
			textQueries = append(textQueries, prefixQuery)
		}

		queries = append(queries, bleve.NewDisjunctionQuery(textQueries...))
	}

	// Book filter (exact match)
	if params.BookID != uuid.Nil {
		bq := bleve.NewTermQuery(params.BookID.String())
		bq.SetField("book_id")
		queries = append(queries, bq)
	}

	// Color filter (exact match)
	if params.Color != "" {
		cq := bleve.NewTermQuery(params.Color)
		cq.SetField("color")
		queries = append(queries, cq)
	}

	if len(queries) == 0 {
		return bleve.NewMatchAllQuery()
	}
	return bleve.NewConjunctionQuery(queries...)
}
