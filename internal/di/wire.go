//go:build wireinject
// +build wireinject

package di

import (
	"quantterm/pkg/config"
	"quantterm/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure
		ProvideDB,
		ProvideBarStore,
		ProvideCache,
		ProvideFeatureArchive,
		ProvideSignalPublisher,

		// Market data sources
		ProvideSources,

		// Use cases
		ProvideFetcher,
		ProvideSignalService,

		// HTTP
		ProvideHandler,
		ProvideApp,
	)
	return &server.App{}, nil
}
