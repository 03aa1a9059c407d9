package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/dipoleapp/dipole-server/internal/domain"
	"github.com/dipoleapp/dipole-server/internal/errors"
)

func (s *Server) registerBookRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listBooks",
		Method:      http.MethodGet,
		Path:        "/api/v1/books",
		Summary:     "List books",
		Description: "Returns the full library catalog",
		Tags:        []string{"Books"},
	}, s.handleListBooks)

	huma.Register(s.api, huma.Operation{
		OperationID: "createBook",
		Method:      http.MethodPost,
		Path:        "/api/v1/books",
		Summary:     "Create book",
		Description: "Adds a book to the library",
		Tags:        []string{"Books"},
	}, s.handleCreateBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "getBook",
		Method:      http.MethodGet,
		Path:        "/api/v1/books/{id}",
		Summary:     "Get book",
		Description: "Returns a book by ID",
		Tags:        []string{"Books"},
	}, s.handleGetBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateBook",
		Method:      http.MethodPatch,
		Path:        "/api/v1/books/{id}",
		Summary:     "Update book",
		Description: "Updates a book's catalog metadata",
		Tags:        []string{"Books"},
	}, s.handleUpdateBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteBook",
		Method:      http.MethodDelete,
		Path:        "/api/v1/books/{id}",
		Summary:     "Delete book",
		Description: "Removes a book and its annotation data",
		Tags:        []string{"Books"},
	}, s.handleDeleteBook)
}

// === DTOs ===

// BookResponse contains book data in API responses.
type BookResponse struct {
	ID           string   `json:"id" doc:"Book ID"`
	BaseName     string   `json:"baseName" doc:"Archive file base name"`
	Title        string   `json:"title,omitempty" doc:"Display title"`
	Author       string   `json:"author,omitempty" doc:"Author"`
	Tags         []string `json:"tags,omitempty" doc:"Book tags"`
	Progress     float64  `json:"progress,omitempty" doc:"Reading progress 0..1"`
	Publisher    string   `json:"publisher,omitempty" doc:"Publisher"`
	DateLastRead string   `json:"dateLastRead,omitempty" doc:"Last read timestamp"`
	DateAdded    string   `json:"dateAdded,omitempty" doc:"Added timestamp"`
	Kind         string   `json:"kind,omitempty" doc:"Document format"`
	Year         int      `json:"year,omitempty" doc:"Publication year"`
}

func bookResponse(b *domain.BookRecord) BookResponse {
	return BookResponse{
		ID:           b.ID.String(),
		BaseName:     b.BaseName,
		Title:        b.Title,
		Author:       b.Author,
		Tags:         b.Tags,
		Progress:     b.Progress,
		Publisher:    b.Publisher,
		DateLastRead: b.DateLastRead,
		DateAdded:    b.DateAdded,
		Kind:         string(b.Kind),
		Year:         b.Year,
	}
}

// ListBooksResponse contains the library catalog.
type ListBooksResponse struct {
	Books []BookResponse `json:"books" doc:"All library books"`
}

// ListBooksOutput wraps the list books response for Huma.
type ListBooksOutput struct {
	Body ListBooksResponse
}

// CreateBookRequest is the request body for creating a book.
type CreateBookRequest struct {
	BaseName  string   `json:"baseName" validate:"required,max=255" doc:"Archive file base name"`
	Title     string   `json:"title,omitempty" validate:"omitempty,max=500" doc:"Display title"`
	Author    string   `json:"author,omitempty" validate:"omitempty,max=500" doc:"Author"`
	Tags      []string `json:"tags,omitempty" doc:"Book tags"`
	Publisher string   `json:"publisher,omitempty" validate:"omitempty,max=500" doc:"Publisher"`
	Kind      string   `json:"kind,omitempty" validate:"omitempty,oneof=epub pdf" doc:"Document format"`
	Year      int      `json:"year,omitempty" doc:"Publication year"`
}

// CreateBookInput wraps the create book request for Huma.
type CreateBookInput struct {
	Body CreateBookRequest
}

// BookOutput wraps a single book response for Huma.
type BookOutput struct {
	Body BookResponse
}

// GetBookInput contains parameters for getting a book.
type GetBookInput struct {
	ID string `path:"id" doc:"Book ID"`
}

// UpdateBookRequest is the request body for updating a book.
type UpdateBookRequest struct {
	Title        *string  `json:"title,omitempty" validate:"omitempty,max=500" doc:"Display title"`
	Author       *string  `json:"author,omitempty" validate:"omitempty,max=500" doc:"Author"`
	Tags         []string `json:"tags,omitempty" doc:"Book tags"`
	Progress     *float64 `json:"progress,omitempty" validate:"omitempty,gte=0,lte=1" doc:"Reading progress 0..1"`
	Publisher    *string  `json:"publisher,omitempty" validate:"omitempty,max=500" doc:"Publisher"`
	DateLastRead *string  `json:"dateLastRead,omitempty" doc:"Last read timestamp"`
	Year         *int     `json:"year,omitempty" doc:"Publication year"`
}

// UpdateBookInput wraps the update book request for Huma.
type UpdateBookInput struct {
	ID   string `path:"id" doc:"Book ID"`
	Body UpdateBookRequest
}

// DeleteBookInput contains parameters for deleting a book.
type DeleteBookInput struct {
	ID string `path:"id" doc:"Book ID"`
}

// MessageResponse is a simple confirmation payload.
type MessageResponse struct {
	Message string `json:"message" doc:"Confirmation message"`
}

// MessageOutput wraps a confirmation message for Huma.
type MessageOutput struct {
	Body MessageResponse
}

// === Handlers ===

func (s *Server) handleListBooks(ctx context.Context, _ *struct{}) (*ListBooksOutput, error) {
	library, err := s.services.Library.Library(ctx)
	if err != nil {
		return nil, err
	}

	books := make([]BookResponse, len(library.Books))
	for i := range library.Books {
		books[i] = bookResponse(&library.Books[i])
	}

	return &ListBooksOutput{Body: ListBooksResponse{Books: books}}, nil
}

func (s *Server) handleCreateBook(ctx context.Context, input *CreateBookInput) (*BookOutput, error) {
	if err := s.validator.Validate(input.Body); err != nil {
		return nil, err
	}

	book, err := s.services.Library.CreateBook(ctx, &domain.BookRecord{
		BaseName:  input.Body.BaseName,
		Title:     input.Body.Title,
		Author:    input.Body.Author,
		Tags:      input.Body.Tags,
		Publisher: input.Body.Publisher,
		Kind:      domain.BookKind(input.Body.Kind),
		Year:      input.Body.Year,
	})
	if err != nil {
		return nil, err
	}

	return &BookOutput{Body: bookResponse(book)}, nil
}

func (s *Server) handleGetBook(ctx context.Context, input *GetBookInput) (*BookOutput, error) {
	bookID, err := parseBookID(input.ID)
	if err != nil {
		return nil, err
	}

	book, err := s.services.Library.GetBook(ctx, bookID)
	if err != nil {
		return nil, err
	}

	return &BookOutput{Body: bookResponse(book)}, nil
}

func (s *Server) handleUpdateBook(ctx context.Context, input *UpdateBookInput) (*BookOutput, error) {
	if err := s.validator.Validate(input.Body); err != nil {
		return nil, err
	}

	bookID, err := parseBookID(input.ID)
	if err != nil {
		return nil, err
	}

	book, err := s.services.Library.GetBook(ctx, bookID)
	if err != nil {
		return nil, err
	}

	if input.Body.Title != nil {
		book.Title = *input.Body.Title
	}
	if input.Body.Author != nil {
		book.Author = *input.Body.Author
	}
	if input.Body.Tags != nil {
		book.Tags = input.Body.Tags
	}
	if input.Body.Progress != nil {
		book.Progress = *input.Body.Progress
	}
	if input.Body.Publisher != nil {
		book.Publisher = *input.Body.Publisher
	}
	if input.Body.DateLastRead != nil {
		book.DateLastRead = *input.Body.DateLastRead
	}
	if input.Body.Year != nil {
		book.Year = *input.Body.Year
	}

	updated, err := s.services.Library.UpdateBook(ctx, book)
	if err != nil {
		return nil, err
	}

	return &BookOutput{Body: bookResponse(updated)}, nil
}

func (s *Server) handleDeleteBook(ctx context.Context, input *DeleteBookInput) (*MessageOutput, error) {
	bookID, err := parseBookID(input.ID)
	if err != nil {
		return nil, err
	}

	if err := s.services.Library.DeleteBook(ctx, bookID); err != nil {
		return nil, err
	}

	return &MessageOutput{Body: MessageResponse{Message: "Book deleted"}}, nil
}

// parseBookID parses a path ID into a UUID with a validation error on failure.
func parseBookID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, errors.Validationf("invalid book ID %q", raw)
	}
	return id, nil
}
