package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dipoleapp/dipole-server/internal/anki"
	"github.com/dipoleapp/dipole-server/internal/errors"
)

func (s *Server) registerSyncRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "triggerAnkiSync",
		Method:      http.MethodPost,
		Path:        "/api/v1/anki/sync",
		Summary:     "Sync with Anki",
		Description: "Reconciles the open book's cards with the Anki collection",
		Tags:        []string{"Anki"},
	}, s.handleTriggerSync)

	huma.Register(s.api, huma.Operation{
		OperationID: "getAnkiSyncStatus",
		Method:      http.MethodGet,
		Path:        "/api/v1/anki/sync",
		Summary:     "Get sync status",
		Description: "Returns the outcome of the last sync run",
		Tags:        []string{"Anki"},
	}, s.handleGetSyncStatus)
}

// SyncStatusResponse contains the collection and per-card sync outcomes.
type SyncStatusResponse struct {
	Collection CollectionSyncResponse `json:"collection" doc:"Collection-level outcome"`
	Cards      []CardResponse         `json:"cards" doc:"Per-card outcomes"`
}

// SyncStatusOutput wraps the sync status response for Huma.
type SyncStatusOutput struct {
	Body SyncStatusResponse
}

func (s *Server) handleTriggerSync(ctx context.Context, _ *struct{}) (*SyncStatusOutput, error) {
	// The run records per-card failures in state rather than failing the
	// request; only setup failures (no book, Anki unreachable, concurrent
	// run) surface as errors.
	if err := s.services.AnkiSync.Sync(ctx); err != nil {
		if errors.Is(err, anki.ErrUnavailable) {
			return nil, errors.Unavailable("AnkiConnect isn't available").WithCause(err)
		}
		return nil, err
	}
	return s.handleGetSyncStatus(ctx, nil)
}

func (s *Server) handleGetSyncStatus(_ context.Context, _ *struct{}) (*SyncStatusOutput, error) {
	snap := s.services.Annotations.Snapshot()

	cards := make([]CardResponse, len(snap.AnkiCards))
	for i := range snap.AnkiCards {
		cards[i] = cardResponse(&snap.AnkiCards[i])
	}

	return &SyncStatusOutput{
		Body: SyncStatusResponse{
			Collection: CollectionSyncResponse{
				Status:   string(snap.CollectionSync.Status),
				ErrorMsg: snap.CollectionSync.ErrorMsg,
			},
			Cards: cards,
		},
	}, nil
}
