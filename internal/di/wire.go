//go:build wireinject
// +build wireinject

package di

import (
	"SPXEngine/pkg/config"
	"SPXEngine/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideRedisCache,

		// Repositories
		ProvideReplayStore,
		ProvideAuditPublisher,
		ProvideQuoteStream,

		// Domain services
		ProvideModelLoader,
		ProvideDecisionEngine,

		// Use cases
		ProvideFlowWindow,
		ProvideFlowHandler,
		ProvideQuoteRegister,
		ProvideQuoteCollector,
		ProvideEvaluator,
		ProvideReplaySessions,
		ProvideIngestQueue,

		// HTTP surface and application server
		ProvideHTTPHandler,
		ProvideApp,
	)
	return &server.App{}, nil
}
