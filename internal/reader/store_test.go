package reader

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dipoleapp/dipole-server/internal/domain"
)

type captureEmitter struct {
	mu     sync.Mutex
	events []Transition
}

func (e *captureEmitter) Emit(event any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if tr, ok := event.(Transition); ok {
		e.events = append(e.events, tr)
	}
}

func (e *captureEmitter) all() []Transition {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Transition(nil), e.events...)
}

func TestStore_DispatchEmitsTransition(t *testing.T) {
	emitter := &captureEmitter{}
	store := NewStore(nil, emitter)

	h := testHighlight(t, "text")
	require.NoError(t, store.Dispatch(AddHighlight{Highlight: h}))

	events := emitter.all()
	require.Len(t, events, 1)
	assert.Equal(t, "highlight.added", events[0].Kind)
	require.Len(t, events[0].State.Highlights, 1)
	assert.Equal(t, h.ID, events[0].State.Highlights[0].ID)
}

func TestStore_RejectedMutationLeavesStateAndEmitsNothing(t *testing.T) {
	emitter := &captureEmitter{}
	store := NewStore(nil, emitter)

	h := testHighlight(t, "text")
	require.NoError(t, store.Dispatch(AddHighlight{Highlight: h}))

	err := store.Dispatch(SortHighlights{Highlights: nil})
	require.Error(t, err)

	snap := store.Snapshot()
	assert.Len(t, snap.Highlights, 1)
	assert.Len(t, emitter.all(), 1)
}

func TestStore_SnapshotIsolation(t *testing.T) {
	store := NewStore(nil, nil)

	h := testHighlight(t, "text")
	require.NoError(t, store.Dispatch(AddHighlight{Highlight: h}))

	before := store.Snapshot()
	require.NoError(t, store.Dispatch(RemoveHighlight{ID: h.ID}))

	assert.Len(t, before.Highlights, 1, "snapshot immune to later mutations")
	assert.Empty(t, store.Snapshot().Highlights)
}

func TestStore_ConcurrentDispatchSerializes(t *testing.T) {
	store := NewStore(nil, nil)

	h := testHighlight(t, "text")
	require.NoError(t, store.Dispatch(AddHighlight{Highlight: h}))

	const workers = 32
	cardIDs := make([]uuid.UUID, workers)
	for i := range cardIDs {
		card := testCard(t, h.ID)
		cardIDs[i] = card.ID
		require.NoError(t, store.Dispatch(AddAnkiCard{Card: card}))
	}

	// Every worker flips its own card through waiting and success, the way
	// the sync engine's per-card branches do.
	var wg sync.WaitGroup
	for _, id := range cardIDs {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			_ = store.Dispatch(SetCardSyncWaiting{ID: id})
			_ = store.Dispatch(SetCardSyncSuccess{ID: id})
		}(id)
	}
	wg.Wait()

	snap := store.Snapshot()
	require.Len(t, snap.AnkiCards, workers)
	for _, c := range snap.AnkiCards {
		assert.Equal(t, domain.SyncSuccess, c.Sync.Status)
	}
}
