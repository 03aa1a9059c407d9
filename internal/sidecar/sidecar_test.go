package sidecar

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dipoleapp/dipole-server/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := New(t.TempDir(), testLogger())
	require.NoError(t, err)
	return m
}

func TestManager_BookDataRoundTrip(t *testing.T) {
	m := newTestManager(t)

	h, err := domain.NewHighlight("call me ishmael", "epubcfi(/6/2!/4/2,/1:0,/1:15)")
	require.NoError(t, err)
	card, err := domain.NewAnkiCard(h.ID, domain.CardTypeCloze, []string{"{{c1::ishmael}}"})
	require.NoError(t, err)

	saved := domain.BookData{
		Highlights: []domain.Highlight{*h},
		AnkiCards:  []domain.AnkiCard{*card},
		CFI:        "epubcfi(/6/2!/4/2/1:7)",
	}
	require.NoError(t, m.WriteBookData("moby-dick.epub", saved))

	var got domain.BookData
	require.NoError(t, m.ReadBookData("moby-dick.epub", &got))
	assert.Equal(t, saved, got)
}

func TestManager_ReadBookData_Missing(t *testing.T) {
	m := newTestManager(t)

	var got domain.BookData
	err := m.ReadBookData("ghost.epub", &got)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestManager_LibraryRoundTrip(t *testing.T) {
	m := newTestManager(t)

	var empty domain.Library
	assert.ErrorIs(t, m.ReadLibrary(&empty), ErrNoData)

	saved := domain.Library{Books: []domain.BookRecord{}}
	require.NoError(t, m.WriteLibrary(saved))

	var got domain.Library
	require.NoError(t, m.ReadLibrary(&got))
	assert.Equal(t, saved, got)
}

func TestManager_BookDirs(t *testing.T) {
	m := newTestManager(t)

	require.NoError(t, m.WriteBookData("a.epub", domain.BookData{}))
	require.NoError(t, m.WriteBookData("b.epub", domain.BookData{}))
	// A directory without a data file is not a book dir.
	require.NoError(t, os.MkdirAll(filepath.Join(m.Root(), "empty.epub"), 0755))
	// The manifest is not a book dir either.
	require.NoError(t, m.WriteLibrary(domain.Library{}))

	dirs, err := m.BookDirs()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.epub", "b.epub"}, dirs)
}

func TestManager_WriteLeavesNoTempFiles(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.WriteBookData("a.epub", domain.BookData{}))

	entries, err := os.ReadDir(filepath.Join(m.Root(), "a.epub"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "data.json", entries[0].Name())
}

func TestWatcher_DebouncesAndReports(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.WriteBookData("moby-dick.epub", domain.BookData{}))

	var mu sync.Mutex
	var seen []string
	w, err := NewWatcher(m, func(baseName string) {
		mu.Lock()
		seen = append(seen, baseName)
		mu.Unlock()
	}, testLogger())
	require.NoError(t, err)
	w.debounce = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)

	// Several rapid writes collapse into one notification.
	for range 3 {
		require.NoError(t, m.WriteBookData("moby-dick.epub", domain.BookData{CFI: "epubcfi(/6/2!/4/2/1:1)"}))
		time.Sleep(10 * time.Millisecond)
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) >= 1
	}, 3*time.Second, 20*time.Millisecond)

	time.Sleep(150 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"moby-dick.epub"}, seen)
}

func TestWatcher_SuppressOwnWrites(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.WriteBookData("moby-dick.epub", domain.BookData{}))

	var mu sync.Mutex
	fired := 0
	w, err := NewWatcher(m, func(string) {
		mu.Lock()
		fired++
		mu.Unlock()
	}, testLogger())
	require.NoError(t, err)
	w.debounce = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)

	w.Suppress(m.DataPath("moby-dick.epub"))
	require.NoError(t, m.WriteBookData("moby-dick.epub", domain.BookData{CFI: "x"}))

	time.Sleep(300 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, fired)
}
