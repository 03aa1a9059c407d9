package api

import (
	"github.com/dipoleapp/dipole-server/internal/service"
)

// Services groups all business logic services used by the API server.
// This reduces the parameter count for NewServer and improves testability.
type Services struct {
	Library     *service.LibraryService
	Annotations *service.AnnotationService
	AnkiSync    *service.AnkiSyncService
}
