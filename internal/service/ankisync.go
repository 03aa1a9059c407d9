package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/dipoleapp/dipole-server/internal/anki"
	"github.com/dipoleapp/dipole-server/internal/config"
	"github.com/dipoleapp/dipole-server/internal/domain"
	"github.com/dipoleapp/dipole-server/internal/errors"
	"github.com/dipoleapp/dipole-server/internal/id"
	"github.com/dipoleapp/dipole-server/internal/normalize"
	"github.com/dipoleapp/dipole-server/internal/reader"
)

// Collection-level error messages surfaced to the reader UI.
const (
	msgAnkiUnavailable   = "AnkiConnect isn't available"
	msgNoteInfoFailed    = "couldn't retrieve note info"
	msgMissingHighlight  = "card is missing highlight"
	msgCreateFailedStart = "error trying to create card: "
	msgUpdateFailedStart = "error trying to update card: "
)

// ErrSyncInFlight is returned when a sync run is requested while one is
// already running.
var ErrSyncInFlight = errors.Conflict("a sync run is already in progress")

// AnkiClient is the slice of the AnkiConnect client the sync engine needs.
type AnkiClient interface {
	Probe(ctx context.Context) (int, error)
	NotesInfo(ctx context.Context, noteIDs []int64) ([]anki.NoteInfo, error)
	AddNote(ctx context.Context, note anki.NewNote) (int64, error)
	UpdateNoteFields(ctx context.Context, noteID int64, front string) error
}

// AnkiSyncService reconciles the open book's cards with the Anki
// collection. One reconciliation is a run: probe, batch remote lookup, then
// one concurrent branch per card.
type AnkiSyncService struct {
	state       *reader.Store
	client      AnkiClient
	annotations *AnnotationService
	cfg         config.AnkiConfig
	logger      *slog.Logger

	// runMu serializes runs; a second request while one is in flight is
	// rejected rather than queued.
	runMu sync.Mutex
}

// NewAnkiSyncService creates the sync engine.
func NewAnkiSyncService(
	state *reader.Store,
	client AnkiClient,
	annotations *AnnotationService,
	cfg config.AnkiConfig,
	logger *slog.Logger,
) *AnkiSyncService {
	return &AnkiSyncService{
		state:       state,
		client:      client,
		annotations: annotations,
		cfg:         cfg,
		logger:      logger,
	}
}

// Sync runs one reconciliation over the open book's cards.
//
// The run is fail-fast up front: an unreachable AnkiConnect or a failed
// note info lookup marks the collection only and leaves every card exactly
// as it was. Once the remote state is known, each card gets its own branch
// and its own outcome; one card's failure never stops the others.
func (s *AnkiSyncService) Sync(ctx context.Context) error {
	if !s.runMu.TryLock() {
		return ErrSyncInFlight
	}
	defer s.runMu.Unlock()

	runID := id.MustGenerate("run")
	log := s.logger.With("run_id", runID)

	snap := s.state.Snapshot()
	if snap.Book == nil {
		return ErrNoBookOpen
	}

	if err := s.state.Dispatch(reader.SetCollectionSyncWaiting{}); err != nil {
		return err
	}

	version, err := s.client.Probe(ctx)
	if err != nil {
		log.Warn("ankiconnect unreachable", "error", err)
		s.dispatch(reader.SetCollectionSyncError{ErrorMsg: msgAnkiUnavailable})
		return err
	}
	if version != s.cfg.Version {
		log.Warn("ankiconnect version mismatch", "got", version, "want", s.cfg.Version)
		s.dispatch(reader.SetCollectionSyncError{ErrorMsg: msgAnkiUnavailable})
		return errors.Unavailable(fmt.Sprintf("unsupported AnkiConnect version %d", version))
	}
	log.Debug("ankiconnect reachable", "version", version)

	cards := snap.AnkiCards
	if len(cards) == 0 {
		s.dispatch(reader.SetCollectionSyncSuccess{})
		return nil
	}

	// One batched lookup for every card, in card order. A card that has
	// never been created queries ID zero and reliably comes back missing.
	noteIDs := make([]int64, len(cards))
	for i, card := range cards {
		noteIDs[i] = parseNoteID(card.Sync.AnkiNoteID)
	}

	infos, err := s.client.NotesInfo(ctx, noteIDs)
	if err != nil {
		log.Warn("note info lookup failed", "error", err)
		s.dispatch(reader.SetCollectionSyncError{ErrorMsg: msgNoteInfoFailed})
		return err
	}

	bookTags := normalize.AnkiTags(snap.Book.AnkiTags(s.cfg.TagPrefix))

	var failed atomic.Int64
	var wg sync.WaitGroup
	for i := range cards {
		wg.Add(1)
		go func(card domain.AnkiCard, info anki.NoteInfo) {
			defer wg.Done()
			if !s.syncCard(ctx, log, snap, card, info, bookTags) {
				failed.Add(1)
			}
		}(cards[i], infos[i])
	}
	wg.Wait()

	// Card failures stay on the cards; once every branch has settled the
	// run itself counts as complete.
	if n := failed.Load(); n > 0 {
		log.Warn("sync run finished with card failures", "failed", n, "total", len(cards))
	} else {
		log.Info("sync run finished", "cards", len(cards))
	}
	s.dispatch(reader.SetCollectionSyncSuccess{})

	if s.annotations != nil {
		if err := s.annotations.Persist(ctx); err != nil {
			log.Warn("failed to persist after sync run", "error", err)
		}
	}
	return nil
}

// syncCard reconciles one card and reports whether it succeeded. The card's
// highlight is resolved against the run's snapshot, never against live
// state; edits made while the run is in flight land in the next run.
func (s *AnkiSyncService) syncCard(ctx context.Context, log *slog.Logger, snap reader.State, card domain.AnkiCard, info anki.NoteInfo, bookTags []string) bool {
	s.dispatch(reader.SetCardSyncWaiting{ID: card.ID})

	// A card whose highlight is gone from the snapshot can never render a
	// sensible note.
	if _, ok := snap.HighlightByID(card.HighlightID); !ok {
		s.dispatch(reader.SetCardSyncError{ID: card.ID, ErrorMsg: msgMissingHighlight})
		return false
	}

	if info.Missing() {
		return s.createCard(ctx, log, card, bookTags)
	}
	return s.updateCard(ctx, log, card, info.NoteID)
}

func (s *AnkiSyncService) createCard(ctx context.Context, log *slog.Logger, card domain.AnkiCard, bookTags []string) bool {
	tags := make([]string, 0, len(bookTags)+len(card.AdditionalTags))
	tags = append(tags, bookTags...)
	tags = append(tags, normalize.AnkiTags(card.AdditionalTags)...)

	noteID, err := s.client.AddNote(ctx, anki.NewNote{
		DeckName:  s.cfg.DeckName,
		ModelName: s.cfg.ModelName,
		Front:     card.FrontField(),
		Tags:      tags,
	})
	if err != nil {
		log.Warn("card create failed", "card_id", card.ID, "error", err)
		s.dispatch(reader.SetCardSyncError{ID: card.ID, ErrorMsg: msgCreateFailedStart + remoteMessage(err)})
		return false
	}

	s.dispatch(reader.SetCardAnkiNoteID{ID: card.ID, AnkiNoteID: strconv.FormatInt(noteID, 10)})
	s.dispatch(reader.SetCardSyncSuccess{ID: card.ID})
	return true
}

func (s *AnkiSyncService) updateCard(ctx context.Context, log *slog.Logger, card domain.AnkiCard, noteID int64) bool {
	if err := s.client.UpdateNoteFields(ctx, noteID, card.FrontField()); err != nil {
		log.Warn("card update failed", "card_id", card.ID, "error", err)
		s.dispatch(reader.SetCardSyncError{ID: card.ID, ErrorMsg: msgUpdateFailedStart + remoteMessage(err)})
		return false
	}

	s.dispatch(reader.SetCardSyncSuccess{ID: card.ID})
	return true
}

// dispatch applies a mutation whose only failure mode is an unknown ID,
// which these setters treat as a no-op.
func (s *AnkiSyncService) dispatch(m reader.Mutation) {
	if err := s.state.Dispatch(m); err != nil {
		s.logger.Warn("sync mutation rejected", "kind", m.Kind(), "error", err)
	}
}

// parseNoteID converts a stored note ID; empty or malformed means the card
// was never created remotely.
func parseNoteID(s string) int64 {
	if s == "" {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// remoteMessage prefers AnkiConnect's own error text over the wrapped form.
func remoteMessage(err error) string {
	var remote *anki.RemoteError
	if errors.As(err, &remote) {
		return remote.Message
	}
	return err.Error()
}
