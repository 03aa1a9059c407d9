package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/dipoleapp/dipole-server/internal/domain"
	"github.com/dipoleapp/dipole-server/internal/errors"
	"github.com/dipoleapp/dipole-server/internal/reader"
)

func (s *Server) registerReaderRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getReaderState",
		Method:      http.MethodGet,
		Path:        "/api/v1/reader",
		Summary:     "Get reader state",
		Description: "Returns the open book's annotation state",
		Tags:        []string{"Reader"},
	}, s.handleGetReaderState)

	huma.Register(s.api, huma.Operation{
		OperationID: "openBook",
		Method:      http.MethodPost,
		Path:        "/api/v1/reader/open/{bookId}",
		Summary:     "Open book",
		Description: "Loads a book's annotations into the reader",
		Tags:        []string{"Reader"},
	}, s.handleOpenBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "closeBook",
		Method:      http.MethodPost,
		Path:        "/api/v1/reader/close",
		Summary:     "Close book",
		Description: "Persists and unloads the open book",
		Tags:        []string{"Reader"},
	}, s.handleCloseBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "locate",
		Method:      http.MethodPut,
		Path:        "/api/v1/reader/location",
		Summary:     "Set reading position",
		Description: "Records the current reading position",
		Tags:        []string{"Reader"},
	}, s.handleLocate)

	huma.Register(s.api, huma.Operation{
		OperationID: "addHighlight",
		Method:      http.MethodPost,
		Path:        "/api/v1/reader/highlights",
		Summary:     "Add highlight",
		Description: "Adds a highlight to the open book",
		Tags:        []string{"Highlights"},
	}, s.handleAddHighlight)

	huma.Register(s.api, huma.Operation{
		OperationID: "removeHighlight",
		Method:      http.MethodDelete,
		Path:        "/api/v1/reader/highlights/{id}",
		Summary:     "Remove highlight",
		Description: "Removes a highlight and every card attached to it",
		Tags:        []string{"Highlights"},
	}, s.handleRemoveHighlight)

	huma.Register(s.api, huma.Operation{
		OperationID: "sortHighlights",
		Method:      http.MethodPut,
		Path:        "/api/v1/reader/highlights/order",
		Summary:     "Sort highlights",
		Description: "Reorders highlights to the given ID sequence",
		Tags:        []string{"Highlights"},
	}, s.handleSortHighlights)

	huma.Register(s.api, huma.Operation{
		OperationID: "addCard",
		Method:      http.MethodPost,
		Path:        "/api/v1/reader/cards",
		Summary:     "Add card",
		Description: "Creates a flashcard for a highlight",
		Tags:        []string{"Cards"},
	}, s.handleAddCard)

	huma.Register(s.api, huma.Operation{
		OperationID: "removeCard",
		Method:      http.MethodDelete,
		Path:        "/api/v1/reader/cards/{id}",
		Summary:     "Remove card",
		Description: "Removes a flashcard",
		Tags:        []string{"Cards"},
	}, s.handleRemoveCard)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateCardFields",
		Method:      http.MethodPatch,
		Path:        "/api/v1/reader/cards/{id}",
		Summary:     "Update card fields",
		Description: "Replaces a card's fields and resets its sync state",
		Tags:        []string{"Cards"},
	}, s.handleUpdateCardFields)
}

// === DTOs ===

// HighlightResponse contains highlight data in API responses.
type HighlightResponse struct {
	ID       string `json:"id" doc:"Highlight ID"`
	Text     string `json:"text" doc:"Selected text"`
	CFIRange string `json:"cfiRange" doc:"EPUB CFI range"`
	Color    string `json:"color" doc:"Display color"`
	AddDate  int64  `json:"addDate" doc:"Creation time, Unix milliseconds"`
}

// CardSyncResponse contains a card's sync record.
type CardSyncResponse struct {
	Status     string `json:"status" doc:"Sync status"`
	AnkiNoteID string `json:"ankiNoteId,omitempty" doc:"Remote note ID"`
	ErrorMsg   string `json:"errorMsg,omitempty" doc:"Last sync error"`
}

// CardResponse contains card data in API responses.
type CardResponse struct {
	ID             string           `json:"id" doc:"Card ID"`
	HighlightID    string           `json:"highlightId" doc:"Source highlight ID"`
	Type           string           `json:"type" doc:"Card type"`
	Fields         []string         `json:"fields" doc:"Card fields, front first"`
	AdditionalTags []string         `json:"additionalTags,omitempty" doc:"Extra Anki tags"`
	Sync           CardSyncResponse `json:"sync" doc:"Sync state"`
}

// CollectionSyncResponse contains the collection-level sync record.
type CollectionSyncResponse struct {
	Status   string `json:"status" doc:"Sync status"`
	ErrorMsg string `json:"errorMsg,omitempty" doc:"Last run error"`
}

// ReaderStateResponse contains the open book's annotation state.
type ReaderStateResponse struct {
	Book           *BookResponse          `json:"book,omitempty" doc:"Open book, null when none"`
	Highlights     []HighlightResponse    `json:"highlights" doc:"Highlights in display order"`
	Cards          []CardResponse         `json:"cards" doc:"Flashcards"`
	CFI            string                 `json:"cfi,omitempty" doc:"Reading position"`
	CollectionSync CollectionSyncResponse `json:"collectionSync" doc:"Last sync run outcome"`
}

func readerStateResponse(state reader.State) ReaderStateResponse {
	resp := ReaderStateResponse{
		Highlights: make([]HighlightResponse, len(state.Highlights)),
		Cards:      make([]CardResponse, len(state.AnkiCards)),
		CFI:        state.CFI,
		CollectionSync: CollectionSyncResponse{
			Status:   string(state.CollectionSync.Status),
			ErrorMsg: state.CollectionSync.ErrorMsg,
		},
	}
	if state.Book != nil {
		book := bookResponse(state.Book)
		resp.Book = &book
	}
	for i, h := range state.Highlights {
		resp.Highlights[i] = highlightResponse(&h)
	}
	for i := range state.AnkiCards {
		resp.Cards[i] = cardResponse(&state.AnkiCards[i])
	}
	return resp
}

func highlightResponse(h *domain.Highlight) HighlightResponse {
	return HighlightResponse{
		ID:       h.ID.String(),
		Text:     h.Text,
		CFIRange: h.CFIRange,
		Color:    string(h.Color),
		AddDate:  h.AddDate,
	}
}

func cardResponse(c *domain.AnkiCard) CardResponse {
	return CardResponse{
		ID:             c.ID.String(),
		HighlightID:    c.HighlightID.String(),
		Type:           string(c.Type),
		Fields:         c.Fields,
		AdditionalTags: c.AdditionalTags,
		Sync: CardSyncResponse{
			Status:     string(c.Sync.Status),
			AnkiNoteID: c.Sync.AnkiNoteID,
			ErrorMsg:   c.Sync.ErrorMsg,
		},
	}
}

// ReaderStateOutput wraps the reader state for Huma.
type ReaderStateOutput struct {
	Body ReaderStateResponse
}

// OpenBookInput contains parameters for opening a book.
type OpenBookInput struct {
	BookID string `path:"bookId" doc:"Book ID"`
}

// LocateRequest is the request body for setting the reading position.
type LocateRequest struct {
	CFI string `json:"cfi" validate:"required,max=2000" doc:"EPUB CFI position"`
}

// LocateInput wraps the locate request for Huma.
type LocateInput struct {
	Body LocateRequest
}

// AddHighlightRequest is the request body for adding a highlight.
type AddHighlightRequest struct {
	Text     string `json:"text" validate:"required,max=10000" doc:"Selected text"`
	CFIRange string `json:"cfiRange" validate:"required,max=2000" doc:"EPUB CFI range"`
	Color    string `json:"color,omitempty" validate:"omitempty,oneof=yellow" doc:"Display color"`
}

// AddHighlightInput wraps the add highlight request for Huma.
type AddHighlightInput struct {
	Body AddHighlightRequest
}

// HighlightOutput wraps a single highlight for Huma.
type HighlightOutput struct {
	Body HighlightResponse
}

// RemoveHighlightInput contains parameters for removing a highlight.
type RemoveHighlightInput struct {
	ID string `path:"id" doc:"Highlight ID"`
}

// SortHighlightsRequest is the request body for reordering highlights.
type SortHighlightsRequest struct {
	Order []string `json:"order" validate:"required" doc:"Highlight IDs in the new order"`
}

// SortHighlightsInput wraps the sort request for Huma.
type SortHighlightsInput struct {
	Body SortHighlightsRequest
}

// AddCardRequest is the request body for creating a card.
type AddCardRequest struct {
	HighlightID    string   `json:"highlightId" validate:"required,uuid" doc:"Source highlight ID"`
	Type           string   `json:"type" validate:"required,oneof=cloze basic" doc:"Card type"`
	Fields         []string `json:"fields" validate:"required,min=1" doc:"Card fields, front first"`
	AdditionalTags []string `json:"additionalTags,omitempty" doc:"Extra Anki tags"`
}

// AddCardInput wraps the add card request for Huma.
type AddCardInput struct {
	Body AddCardRequest
}

// CardOutput wraps a single card for Huma.
type CardOutput struct {
	Body CardResponse
}

// RemoveCardInput contains parameters for removing a card.
type RemoveCardInput struct {
	ID string `path:"id" doc:"Card ID"`
}

// UpdateCardFieldsRequest is the request body for replacing a card's fields.
type UpdateCardFieldsRequest struct {
	Fields []string `json:"fields" validate:"required,min=1" doc:"New card fields, front first"`
}

// UpdateCardFieldsInput wraps the update card request for Huma.
type UpdateCardFieldsInput struct {
	ID   string `path:"id" doc:"Card ID"`
	Body UpdateCardFieldsRequest
}

// === Handlers ===

func (s *Server) handleGetReaderState(_ context.Context, _ *struct{}) (*ReaderStateOutput, error) {
	return &ReaderStateOutput{Body: readerStateResponse(s.services.Annotations.Snapshot())}, nil
}

func (s *Server) handleOpenBook(ctx context.Context, input *OpenBookInput) (*ReaderStateOutput, error) {
	bookID, err := parseBookID(input.BookID)
	if err != nil {
		return nil, err
	}

	state, err := s.services.Annotations.OpenBook(ctx, bookID)
	if err != nil {
		return nil, err
	}

	return &ReaderStateOutput{Body: readerStateResponse(state)}, nil
}

func (s *Server) handleCloseBook(ctx context.Context, _ *struct{}) (*MessageOutput, error) {
	if err := s.services.Annotations.CloseBook(ctx); err != nil {
		return nil, err
	}
	return &MessageOutput{Body: MessageResponse{Message: "Book closed"}}, nil
}

func (s *Server) handleLocate(ctx context.Context, input *LocateInput) (*MessageOutput, error) {
	if err := s.validator.Validate(input.Body); err != nil {
		return nil, err
	}
	if err := s.services.Annotations.Locate(ctx, input.Body.CFI); err != nil {
		return nil, err
	}
	return &MessageOutput{Body: MessageResponse{Message: "Position saved"}}, nil
}

func (s *Server) handleAddHighlight(ctx context.Context, input *AddHighlightInput) (*HighlightOutput, error) {
	if err := s.validator.Validate(input.Body); err != nil {
		return nil, err
	}

	h, err := s.services.Annotations.AddHighlight(ctx, input.Body.Text, input.Body.CFIRange, domain.HighlightColor(input.Body.Color))
	if err != nil {
		return nil, err
	}

	return &HighlightOutput{Body: highlightResponse(h)}, nil
}

func (s *Server) handleRemoveHighlight(ctx context.Context, input *RemoveHighlightInput) (*MessageOutput, error) {
	highlightID, err := uuid.Parse(input.ID)
	if err != nil {
		return nil, errors.Validationf("invalid highlight ID %q", input.ID)
	}

	if err := s.services.Annotations.RemoveHighlight(ctx, highlightID); err != nil {
		return nil, err
	}

	return &MessageOutput{Body: MessageResponse{Message: "Highlight removed"}}, nil
}

func (s *Server) handleSortHighlights(ctx context.Context, input *SortHighlightsInput) (*ReaderStateOutput, error) {
	if err := s.validator.Validate(input.Body); err != nil {
		return nil, err
	}

	order := make([]uuid.UUID, len(input.Body.Order))
	for i, raw := range input.Body.Order {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, errors.Validationf("invalid highlight ID %q in sort order", raw)
		}
		order[i] = id
	}

	if err := s.services.Annotations.SortHighlights(ctx, order); err != nil {
		return nil, err
	}

	return &ReaderStateOutput{Body: readerStateResponse(s.services.Annotations.Snapshot())}, nil
}

func (s *Server) handleAddCard(ctx context.Context, input *AddCardInput) (*CardOutput, error) {
	if err := s.validator.Validate(input.Body); err != nil {
		return nil, err
	}

	highlightID, err := uuid.Parse(input.Body.HighlightID)
	if err != nil {
		return nil, errors.Validationf("invalid highlight ID %q", input.Body.HighlightID)
	}

	card, err := s.services.Annotations.AddCard(ctx, highlightID, domain.CardType(input.Body.Type), input.Body.Fields, input.Body.AdditionalTags)
	if err != nil {
		return nil, err
	}

	return &CardOutput{Body: cardResponse(card)}, nil
}

func (s *Server) handleRemoveCard(ctx context.Context, input *RemoveCardInput) (*MessageOutput, error) {
	cardID, err := uuid.Parse(input.ID)
	if err != nil {
		return nil, errors.Validationf("invalid card ID %q", input.ID)
	}

	if err := s.services.Annotations.RemoveCard(ctx, cardID); err != nil {
		return nil, err
	}

	return &MessageOutput{Body: MessageResponse{Message: "Card removed"}}, nil
}

func (s *Server) handleUpdateCardFields(ctx context.Context, input *UpdateCardFieldsInput) (*CardOutput, error) {
	if err := s.validator.Validate(input.Body); err != nil {
		return nil, err
	}

	cardID, err := uuid.Parse(input.ID)
	if err != nil {
		return nil, errors.Validationf("invalid card ID %q", input.ID)
	}

	card, err := s.services.Annotations.UpdateCardFields(ctx, cardID, input.Body.Fields)
	if err != nil {
		return nil, err
	}

	return &CardOutput{Body: cardResponse(card)}, nil
}
