package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/dipoleapp/dipole-server/internal/anki"
	"github.com/dipoleapp/dipole-server/internal/config"
	"github.com/dipoleapp/dipole-server/internal/importer"
	"github.com/dipoleapp/dipole-server/internal/logger"
	"github.com/dipoleapp/dipole-server/internal/reader"
	"github.com/dipoleapp/dipole-server/internal/service"
	"github.com/dipoleapp/dipole-server/internal/sidecar"
)

// ProvideReaderStore provides the in-memory annotation state store.
// Transitions are broadcast to SSE clients via the manager.
func ProvideReaderStore(i do.Injector) (*reader.Store, error) {
	log := do.MustInvoke[*logger.Logger](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)

	return reader.NewStore(log.Logger, sseHandle.Manager), nil
}

// ProvideAnkiClient provides the AnkiConnect HTTP client.
func ProvideAnkiClient(i do.Injector) (*anki.Client, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	return anki.New(cfg.Anki, log.Logger), nil
}

// ProvideKoboImporter provides the Kobo device database importer.
func ProvideKoboImporter(i do.Injector) (*importer.KoboImporter, error) {
	log := do.MustInvoke[*logger.Logger](i)
	return importer.NewKoboImporter(log.Logger), nil
}

// ProvideAnnotationService provides the reader annotation service.
func ProvideAnnotationService(i do.Injector) (*service.AnnotationService, error) {
	state := do.MustInvoke[*reader.Store](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	sidecarMgr := do.MustInvoke[*sidecar.Manager](i)
	searchHandle := do.MustInvoke[*SearchIndexHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewAnnotationService(
		state,
		storeHandle.Store,
		sidecarMgr,
		searchHandle.SearchIndex,
		log.Logger,
	), nil
}

// ProvideLibraryService provides the book library service.
func ProvideLibraryService(i do.Injector) (*service.LibraryService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	sidecarMgr := do.MustInvoke[*sidecar.Manager](i)
	searchHandle := do.MustInvoke[*SearchIndexHandle](i)
	kobo := do.MustInvoke[*importer.KoboImporter](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewLibraryService(
		storeHandle.Store,
		sidecarMgr,
		searchHandle.SearchIndex,
		kobo,
		sseHandle.Manager,
		log.Logger,
	), nil
}

// ProvideAnkiSyncService provides the Anki sync engine.
func ProvideAnkiSyncService(i do.Injector) (*service.AnkiSyncService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	state := do.MustInvoke[*reader.Store](i)
	client := do.MustInvoke[*anki.Client](i)
	annotations := do.MustInvoke[*service.AnnotationService](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewAnkiSyncService(state, client, annotations, cfg.Anki, log.Logger), nil
}

// SidecarWatcherHandle wraps the sidecar watcher with its context for
// lifecycle management.
type SidecarWatcherHandle struct {
	*sidecar.Watcher
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *SidecarWatcherHandle) Shutdown() error {
	h.cancel()
	return nil
}

// ProvideSidecarWatcher provides the filesystem watcher that re-imports
// sidecar data files edited outside the server. The annotation service is
// given the watcher so its own writes are suppressed instead of bouncing
// back as imports.
func ProvideSidecarWatcher(i do.Injector) (*SidecarWatcherHandle, error) {
	sidecarMgr := do.MustInvoke[*sidecar.Manager](i)
	libraryService := do.MustInvoke[*service.LibraryService](i)
	annotationService := do.MustInvoke[*service.AnnotationService](i)
	log := do.MustInvoke[*logger.Logger](i)

	handler := func(baseName string) {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := libraryService.ImportSidecarBook(ctx, baseName); err != nil {
			log.Warn("sidecar re-import failed", "base_name", baseName, "error", err)
		}
	}

	watcher, err := sidecar.NewWatcher(sidecarMgr, handler, log.Logger)
	if err != nil {
		return nil, err
	}

	annotationService.SetWatcher(watcher)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := watcher.Start(ctx); err != nil && err != context.Canceled {
			log.Error("sidecar watcher stopped", "error", err)
		}
	}()

	log.Info("Sidecar watcher started", "root", sidecarMgr.Root())

	return &SidecarWatcherHandle{Watcher: watcher, cancel: cancel}, nil
}
