// Package di provides dependency injection configuration for the Dipole server.
package di

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/dipoleapp/dipole-server/internal/anki"
	"github.com/dipoleapp/dipole-server/internal/config"
	"github.com/dipoleapp/dipole-server/internal/di/providers"
	"github.com/dipoleapp/dipole-server/internal/importer"
	"github.com/dipoleapp/dipole-server/internal/logger"
	"github.com/dipoleapp/dipole-server/internal/reader"
	"github.com/dipoleapp/dipole-server/internal/service"
	"github.com/dipoleapp/dipole-server/internal/sidecar"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)

	// Storage layer
	do.Provide(injector, providers.ProvideSSEManager)
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideSearchIndex)
	do.Provide(injector, providers.ProvideSidecarManager)

	// Reader state and external clients
	do.Provide(injector, providers.ProvideReaderStore)
	do.Provide(injector, providers.ProvideAnkiClient)
	do.Provide(injector, providers.ProvideKoboImporter)

	// Business services
	do.Provide(injector, providers.ProvideAnnotationService)
	do.Provide(injector, providers.ProvideLibraryService)
	do.Provide(injector, providers.ProvideAnkiSyncService)

	// Workers
	do.Provide(injector, providers.ProvideSidecarWatcher)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and returns handles for lifecycle management.
// This triggers lazy initialization of all core services.
func Bootstrap(injector *do.RootScope) error {
	// Invoke core services to trigger initialization
	_ = do.MustInvoke[*config.Config](injector)
	log := do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*providers.SSEManagerHandle](injector)
	_ = do.MustInvoke[*providers.StoreHandle](injector)
	_ = do.MustInvoke[*providers.SearchIndexHandle](injector)
	_ = do.MustInvoke[*sidecar.Manager](injector)
	_ = do.MustInvoke[*reader.Store](injector)
	_ = do.MustInvoke[*anki.Client](injector)
	_ = do.MustInvoke[*importer.KoboImporter](injector)

	// Business services
	_ = do.MustInvoke[*service.AnnotationService](injector)
	libraryService := do.MustInvoke[*service.LibraryService](injector)
	_ = do.MustInvoke[*service.AnkiSyncService](injector)

	// Workers
	_ = do.MustInvoke[*providers.SidecarWatcherHandle](injector)

	// Server
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	// Pick up sidecar edits made while the server was down
	go func() {
		if err := libraryService.ImportSidecarLibrary(context.Background()); err != nil {
			log.Warn("startup sidecar import failed", "error", err)
		}
	}()

	return nil
}
