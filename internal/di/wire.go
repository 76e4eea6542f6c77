//go:build wireinject
// +build wireinject

package di

import (
	"MarketPulse/pkg/config"
	"MarketPulse/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,
		ProvideUpstreamLimiter,

		// Infrastructure clients
		ProvideMongoClient,
		ProvideRedisCache,
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Repositories
		ProvideMongoStore,
		ProvideVoteReader,
		ProvideCommentReader,
		ProvideNewsReader,
		ProvideSnapshotStore,
		ProvideRefreshLog,
		ProvideEventPublisher,

		// Upstream vendors
		ProvideFinnhubClient,
		ProvideYahooClient,
		ProvideQuoteSources,
		ProvideProviderChain,

		// Use cases
		ProvideCaches,
		ProvideHub,
		ProvideIntelligenceRefresher,
		ProvideQuoteRefresher,
		ProvideSchedulers,
		ProvideFacades,
		ProvideRefreshDispatcher,
		ProvideConsumer,

		// Transport
		ProvideHTTPHandler,
		ProvideHTTPServer,

		// Application server
		ProvideClosers,
		ProvideApp,
	)
	return &server.App{}, nil
}
