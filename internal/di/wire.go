//go:build wireinject
// +build wireinject

package di

import (
	"PaperTune/pkg/config"
	"PaperTune/pkg/server"

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
		ProvideClickHouseClient,
		ProvidePostgresPool,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideRedisCache,
		ProvideCacheService,

		// Repositories
		ProvideAdjustmentStore,
		ProvidePerformanceProvider,
		ProvidePositionProvider,
		ProvideSignalStore,
		ProvideSnapshotCache,
		ProvideSnapshotProvider,
		ProvideNotifier,
		ProvideRebuilder,
		ProvideAlertQueue,
		ProvideQueueService,
		ProvideSnapshotStream,

		// Use cases
		ProvideStrategySpecs,
		ProvideTuner,
		ProvideTrimEvaluator,
		ProvideSnapshotProcessor,
		ProvideSnapshotCollector,
		ProvideKafkaSnapshotsHandler,

		// HTTP and application server
		ProvideRouter,
		ProvideApp,
	)
	return &server.App{}, nil
}
