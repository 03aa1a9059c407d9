package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dipoleapp/dipole-server/internal/service"
)

func (s *Server) registerImportRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "importKobo",
		Method:      http.MethodPost,
		Path:        "/api/v1/import/kobo",
		Summary:     "Import Kobo highlights",
		Description: "Merges highlights from a KoboReader.sqlite file into the library",
		Tags:        []string{"Import"},
	}, s.handleImportKobo)

	huma.Register(s.api, huma.Operation{
		OperationID: "importSidecar",
		Method:      http.MethodPost,
		Path:        "/api/v1/import/sidecar",
		Summary:     "Import sidecar data",
		Description: "Rebuilds library and annotation data from the sidecar directory",
		Tags:        []string{"Import"},
	}, s.handleImportSidecar)

	huma.Register(s.api, huma.Operation{
		OperationID: "exportSidecar",
		Method:      http.MethodPost,
		Path:        "/api/v1/export/sidecar",
		Summary:     "Export sidecar data",
		Description: "Rewrites the sidecar directory from the current library and annotation data",
		Tags:        []string{"Import"},
	}, s.handleExportSidecar)
}

// ImportKoboRequest is the request body for a Kobo device import.
type ImportKoboRequest struct {
	Path string `json:"path" validate:"required" doc:"Path to the KoboReader.sqlite file"`
}

// ImportKoboInput wraps the Kobo import request for Huma.
type ImportKoboInput struct {
	Body ImportKoboRequest
}

// ImportKoboOutput wraps the import result for Huma.
type ImportKoboOutput struct {
	Body service.KoboImportResult
}

func (s *Server) handleImportKobo(ctx context.Context, input *ImportKoboInput) (*ImportKoboOutput, error) {
	if err := s.validator.Validate(input.Body); err != nil {
		return nil, err
	}

	result, err := s.services.Library.ImportKobo(ctx, input.Body.Path)
	if err != nil {
		return nil, err
	}

	return &ImportKoboOutput{Body: *result}, nil
}

func (s *Server) handleImportSidecar(ctx context.Context, _ *struct{}) (*MessageOutput, error) {
	if err := s.services.Library.ImportSidecarLibrary(ctx); err != nil {
		return nil, err
	}
	return &MessageOutput{Body: MessageResponse{Message: "Sidecar data imported"}}, nil
}

func (s *Server) handleExportSidecar(ctx context.Context, _ *struct{}) (*MessageOutput, error) {
	if err := s.services.Library.ExportSidecar(ctx); err != nil {
		return nil, err
	}
	return &MessageOutput{Body: MessageResponse{Message: "Sidecar data exported"}}, nil
}
