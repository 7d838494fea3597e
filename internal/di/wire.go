//go:build wireinject
// +build wireinject

package di

import (
	domrepo "StockPulse/internal/domain/repository"
	"StockPulse/internal/service/provider"
	"StockPulse/pkg/config"
	"StockPulse/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideRedisClient,
		ProvideCache,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideLogCollector,
		ProvideStockProvider,
		wire.Bind(new(domrepo.StockProvider), new(*provider.Client)),

		// Repositories
		ProvideSignalHistory,
		ProvideEventPublisher,
		ProvidePreferenceStore,

		// Use cases
		ProvidePreferences,
		ProvideStocks,
		ProvideSignalTracker,
		ProvideSummarizerPipeline,
		ProvideSummaryQueue,
		ProvideSummaryUseCase,
		ProvideUpdatePipeline,
		ProvideIngestHandler,
		ProvideScheduler,

		// Transport
		ProvideHub,
		ProvideWSHandler,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
