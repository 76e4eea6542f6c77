package di

import (
	"context"
	"fmt"
	"time"

	"MarketPulse/internal/domain/models"
	drepo "MarketPulse/internal/domain/repository"
	dservice "MarketPulse/internal/domain/service"
	"MarketPulse/internal/handler/api"
	"MarketPulse/internal/handler/stream"
	"MarketPulse/internal/repository"
	"MarketPulse/internal/service/ai"
	icache "MarketPulse/internal/service/cache"
	"MarketPulse/internal/service/finnhub"
	"MarketPulse/internal/service/ratelimit"
	"MarketPulse/internal/service/yahoo"
	"MarketPulse/internal/usecase"
	pkgcache "MarketPulse/pkg/cache"
	pkgch "MarketPulse/pkg/clickhouse"
	"MarketPulse/pkg/config"
	xhttp "MarketPulse/pkg/http"
	pkgkafka "MarketPulse/pkg/kafka"
	applogger "MarketPulse/pkg/logger"
	"MarketPulse/pkg/metrics"
	"MarketPulse/pkg/mongodb"
	"MarketPulse/pkg/server"
)

const (
	initTimeout        = 15 * time.Second
	maxAssetsPerStream = 20
	sentimentCacheTTL  = time.Minute
	responseCacheSize  = 1024
	clientIdleTTL      = 10 * time.Minute
)

// ProvideLogger creates the application logger from the logging section.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder on the default registry.
func ProvideMetrics() *metrics.Recorder {
	return metrics.New(nil)
}

// ProvideUpstreamLimiter builds the keyed limiter shared by every vendor
// client. Each client waits on its own key.
func ProvideUpstreamLimiter(cfg *config.Config) *ratelimit.Limiter {
	rl := ratelimit.New(1, 1)
	rl.SetLimit(finnhub.Name, cfg.Finnhub.RatePerSec, cfg.Finnhub.Burst)
	rl.SetLimit(yahoo.Name, cfg.Yahoo.RatePerSec, cfg.Yahoo.Burst)
	rl.SetLimit("gemini", cfg.AI.Gemini.RatePerSec, 1)
	rl.SetLimit("groq", cfg.AI.Groq.RatePerSec, 1)
	rl.SetLimit("openai", cfg.AI.OpenAI.RatePerSec, 1)
	return rl
}

// ProvideMongoClient connects to MongoDB. It returns nil when mongo is disabled.
func ProvideMongoClient(cfg *config.Config) (*mongodb.Client, error) {
	if !cfg.Mongo.Enabled {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Mongo.ConnectTimeout+initTimeout)
	defer cancel()
	client, err := mongodb.NewClient(ctx,
		mongodb.WithURI(cfg.Mongo.URI),
		mongodb.WithDatabase(cfg.Mongo.Database),
		mongodb.WithConnectTimeout(cfg.Mongo.ConnectTimeout),
		mongodb.WithMaxPoolSize(cfg.Mongo.MaxPoolSize),
	)
	if err != nil {
		return nil, fmt.Errorf("mongo client: %w", err)
	}
	return client, nil
}

// ProvideMongoStore wraps the client in the domain repository and ensures
// its indexes. Index failures are logged; reads still work without them.
func ProvideMongoStore(cfg *config.Config, client *mongodb.Client, l *applogger.Logger) *repository.MongoStore {
	if client == nil {
		return nil
	}
	store := repository.NewMongoStore(client, cfg.Mongo.QueryTimeout)
	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()
	if err := store.EnsureIndexes(ctx); err != nil {
		l.Warn("mongo.ensure_indexes_failed", applogger.Error(err))
	}
	return store
}

// ProvideRedisCache connects to Redis. It returns nil when redis is disabled.
func ProvideRedisCache(cfg *config.Config) (*pkgcache.RedisCache, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()
	rc, err := pkgcache.NewRedisCache(ctx,
		pkgcache.WithRedisAddr(cfg.Redis.Host, cfg.Redis.Port),
		pkgcache.WithRedisAuth(cfg.Redis.Password, cfg.Redis.DB),
		pkgcache.WithRedisPool(cfg.Redis.PoolSize, 2, 30*time.Second),
		pkgcache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return rc, nil
}

// ProvideClickHouseClient creates a ClickHouse client and applies the
// refresh log schema. It returns nil when clickhouse is disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()

	client, err := pkgch.NewClient(ctx,
		pkgch.WithAddress(cfg.ClickHouse.Host, cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	if err := client.InitSchema(ctx, repository.RefreshLogSchema); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideKafkaProducer creates a Kafka producer. It returns nil when kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
		pkgkafka.WithProducerLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideKafkaConsumer creates a Kafka consumer configured from YAML.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideVoteReader reads votes from mongo, or serves neutral priors without it.
func ProvideVoteReader(store *repository.MongoStore) drepo.VoteReader {
	if store == nil {
		return repository.NoopStore{}
	}
	return store
}

func ProvideCommentReader(store *repository.MongoStore) drepo.CommentReader {
	if store == nil {
		return repository.NoopStore{}
	}
	return store
}

// ProvideNewsReader prefers Finnhub company news when a key is configured,
// then the mongo news collection.
func ProvideNewsReader(cfg *config.Config, fh *finnhub.Client, store *repository.MongoStore) drepo.NewsReader {
	switch {
	case cfg.Finnhub.APIKey != "":
		return fh
	case store != nil:
		return store
	default:
		return repository.NoopStore{}
	}
}

// ProvideSnapshotStore picks the durable snapshot backend.
func ProvideSnapshotStore(cfg *config.Config, store *repository.MongoStore, rc *pkgcache.RedisCache) drepo.SnapshotStore {
	switch cfg.Snapshot.Backend {
	case "mongo":
		if store != nil {
			return store
		}
	case "redis":
		if rc != nil {
			return repository.NewRedisSnapshotStore(rc, cfg.Intelligence.TTL, cfg.Quotes.TTL)
		}
	}
	return repository.NoopStore{}
}

// ProvideRefreshLog returns the ClickHouse audit log, or nil without clickhouse.
func ProvideRefreshLog(ch *pkgch.Client, l *applogger.Logger) *repository.CHRefreshLog {
	if ch == nil {
		return nil
	}
	return repository.NewCHRefreshLog(ch, l)
}

// ProvideEventPublisher returns the Kafka publisher, or nil without kafka.
func ProvideEventPublisher(cfg *config.Config, producer *pkgkafka.Producer) *repository.KafkaEventPublisher {
	if producer == nil {
		return nil
	}
	return repository.NewKafkaEventPublisher(producer, cfg.Kafka.EventsTopic)
}

func ProvideFinnhubClient(cfg *config.Config, rl *ratelimit.Limiter) *finnhub.Client {
	return finnhub.New(finnhub.Config{
		APIKey:       cfg.Finnhub.APIKey,
		BaseURL:      cfg.Finnhub.BaseURL,
		Timeout:      cfg.Finnhub.Timeout,
		CryptoFormat: cfg.Finnhub.CryptoFormat,
	}, rl)
}

func ProvideYahooClient(cfg *config.Config, rl *ratelimit.Limiter) *yahoo.Client {
	return yahoo.New(yahoo.Config{
		BaseURL:  cfg.Yahoo.BaseURL,
		Timeout:  cfg.Yahoo.Timeout,
		Disabled: cfg.Yahoo.Disabled,
	}, rl)
}

// ProvideQuoteSources orders the quote vendors. Unconfigured vendors fail
// fast with ErrNotConfigured and the next one is tried.
func ProvideQuoteSources(fh *finnhub.Client, yh *yahoo.Client) []dservice.QuoteSource {
	return []dservice.QuoteSource{fh, yh}
}

// ProvideProviderChain orders the analysis providers: Gemini first, then the
// OpenAI-compatible backends. The heuristic closes the chain.
func ProvideProviderChain(cfg *config.Config, rl *ratelimit.Limiter, l *applogger.Logger) *usecase.ProviderChain {
	providerCfg := func(name string, p config.AIProvider) ai.ProviderConfig {
		return ai.ProviderConfig{
			Name:        name,
			APIKey:      p.APIKey,
			BaseURL:     p.BaseURL,
			Model:       p.Model,
			Timeout:     p.Timeout,
			Temperature: p.Temperature,
		}
	}
	links := []usecase.ChainLink{
		{Provider: ai.NewGemini(providerCfg("gemini", cfg.AI.Gemini), rl), Tier: models.TierPrimaryAI, Timeout: cfg.AI.Gemini.Timeout},
		{Provider: ai.NewChatCompletion(providerCfg("groq", cfg.AI.Groq), rl), Tier: models.TierSecondaryAI, Timeout: cfg.AI.Groq.Timeout},
		{Provider: ai.NewChatCompletion(providerCfg("openai", cfg.AI.OpenAI), rl), Tier: models.TierSecondaryAI, Timeout: cfg.AI.OpenAI.Timeout},
	}
	return usecase.NewProviderChain(links, usecase.BreakerSettings{
		MaxFailures: cfg.Breaker.MaxFailures,
		OpenTimeout: cfg.Breaker.OpenTimeout,
		Interval:    cfg.Breaker.Interval,
	}, l.With(applogger.String("component", "chain")))
}

// ProvideCaches creates the intelligence and quote caches.
func ProvideCaches(cfg *config.Config) (server.Caches, error) {
	intel, err := icache.New[models.IntelligenceSummary](cfg.Intelligence.TTL, icache.WithName(models.CacheIntelligence))
	if err != nil {
		return server.Caches{}, fmt.Errorf("intelligence cache: %w", err)
	}
	quotes, err := icache.New[models.MarketQuote](cfg.Quotes.TTL, icache.WithName(models.CacheQuotes))
	if err != nil {
		return server.Caches{}, fmt.Errorf("quote cache: %w", err)
	}
	return server.Caches{Intelligence: intel, Quotes: quotes}, nil
}

func ProvideHub(l *applogger.Logger) *stream.Hub {
	return stream.NewHub(maxAssetsPerStream, l.With(applogger.String("component", "stream")))
}

// ProvideIntelligenceRefresher builds the intelligence pipeline and streams
// every stored summary to websocket subscribers.
func ProvideIntelligenceRefresher(
	cfg *config.Config,
	caches server.Caches,
	votes drepo.VoteReader,
	comments drepo.CommentReader,
	news drepo.NewsReader,
	chain *usecase.ProviderChain,
	snapshots drepo.SnapshotStore,
	hub *stream.Hub,
	l *applogger.Logger,
) *usecase.IntelligenceRefresher {
	r := usecase.NewIntelligenceRefresher(usecase.IntelligenceConfig{
		VoteWindow:   cfg.Intelligence.VoteWindow,
		CommentLimit: cfg.Intelligence.CommentLimit,
		NewsLimit:    cfg.Intelligence.NewsLimit,
	}, caches.Intelligence, votes, comments, news, chain, snapshots, l.With(applogger.String("cache", models.CacheIntelligence)))
	r.AddListener(hub)
	return r
}

func ProvideQuoteRefresher(cfg *config.Config, caches server.Caches, sources []dservice.QuoteSource, snapshots drepo.SnapshotStore, l *applogger.Logger) *usecase.QuoteRefresher {
	timeout := max(cfg.Finnhub.Timeout, cfg.Yahoo.Timeout)
	return usecase.NewQuoteRefresher(sources, caches.Quotes, snapshots, timeout, l.With(applogger.String("cache", models.CacheQuotes)))
}

// ProvideSchedulers builds one scheduler per cache. Intelligence rotates one
// target per tick by default; quotes refresh the whole list.
func ProvideSchedulers(
	cfg *config.Config,
	caches server.Caches,
	intel *usecase.IntelligenceRefresher,
	quotes *usecase.QuoteRefresher,
	m *metrics.Recorder,
	refreshLog *repository.CHRefreshLog,
	events *repository.KafkaEventPublisher,
	l *applogger.Logger,
) server.Schedulers {
	targets := usecase.StaticTargets(models.ConfiguredTargets(cfg.Assets.Stocks, cfg.Assets.Crypto))

	common := []usecase.SchedulerOption{usecase.WithSchedulerMetrics(m), usecase.WithSchedulerLogger(l)}
	if refreshLog != nil {
		common = append(common, usecase.WithRefreshLog(refreshLog))
	}
	if events != nil {
		common = append(common, usecase.WithEventPublisher(events))
	}

	intelOpts := append([]usecase.SchedulerOption{usecase.WithConcurrency(cfg.Intelligence.Concurrency)}, common...)
	quoteOpts := append([]usecase.SchedulerOption{usecase.WithConcurrency(cfg.Quotes.Concurrency)}, common...)

	return server.Schedulers{
		Intelligence: usecase.NewScheduler(models.CacheIntelligence, cfg.Intelligence.Cadence, targets,
			selector(cfg.Intelligence.Selection, cfg.Intelligence.Cadence), intel, caches.Intelligence, intelOpts...),
		Quotes: usecase.NewScheduler(models.CacheQuotes, cfg.Quotes.Cadence, targets,
			selector(cfg.Quotes.Selection, cfg.Quotes.Cadence), quotes, caches.Quotes, quoteOpts...),
	}
}

func selector(name string, cadence time.Duration) usecase.Selector {
	if name == "round_robin" {
		return usecase.RoundRobin{Cadence: cadence}
	}
	return usecase.AllTargets{}
}

// ProvideFacades builds the read paths. A miss refreshes through the
// scheduler of the same cache.
func ProvideFacades(cfg *config.Config, caches server.Caches, schedulers server.Schedulers, m *metrics.Recorder, l *applogger.Logger) server.Facades {
	return server.Facades{
		Intelligence: usecase.NewQueryFacade(caches.Intelligence, schedulers.Intelligence, models.PendingSummary,
			usecase.WithFacadeWorkers(cfg.Intelligence.Workers),
			usecase.WithFacadeQueueSize(cfg.Intelligence.QueueSize),
			usecase.WithFacadeRefreshTimeout(3*time.Minute),
			usecase.WithFacadeKeyFilter(schedulers.Intelligence.Tracks),
			usecase.WithFacadeMetrics(m),
			usecase.WithFacadeLogger(l.With(applogger.String("facade", models.CacheIntelligence))),
		),
		Quotes: usecase.NewQueryFacade(caches.Quotes, schedulers.Quotes, pendingQuote,
			usecase.WithFacadeWorkers(cfg.Quotes.Workers),
			usecase.WithFacadeQueueSize(cfg.Quotes.QueueSize),
			usecase.WithFacadeRefreshTimeout(30*time.Second),
			usecase.WithFacadeKeyFilter(schedulers.Quotes.Tracks),
			usecase.WithFacadeMetrics(m),
			usecase.WithFacadeLogger(l.With(applogger.String("facade", models.CacheQuotes))),
		),
	}
}

func pendingQuote(symbol string) models.MarketQuote {
	return models.UnknownQuote(symbol, string(models.TierPending))
}

func ProvideRefreshDispatcher(schedulers server.Schedulers) *usecase.RefreshDispatcher {
	return usecase.NewRefreshDispatcher(map[string]usecase.ManualRefresher{
		models.CacheIntelligence: schedulers.Intelligence,
		models.CacheQuotes:       schedulers.Quotes,
	})
}

// ProvideConsumer pairs the Kafka consumer with the refresh request handler.
func ProvideConsumer(cfg *config.Config, consumer *pkgkafka.Consumer, dispatcher *usecase.RefreshDispatcher, m *metrics.Recorder, l *applogger.Logger) server.Consumer {
	if consumer == nil {
		return server.Consumer{}
	}
	return server.Consumer{
		Kafka:   consumer,
		Handler: usecase.NewKafkaRefreshHandler(cfg.Kafka.RequestTopic, dispatcher, m, l.With(applogger.String("component", "refresh_requests"))),
	}
}

// ProvideHTTPHandler assembles every route group: the read API, health
// probes and the websocket stream.
func ProvideHTTPHandler(
	cfg *config.Config,
	facades server.Facades,
	caches server.Caches,
	votes drepo.VoteReader,
	dispatcher *usecase.RefreshDispatcher,
	hub *stream.Hub,
	mongo *mongodb.Client,
	rc *pkgcache.RedisCache,
	ch *pkgch.Client,
	refreshLog *repository.CHRefreshLog,
	l *applogger.Logger,
) xhttp.Handler {
	var respCache pkgcache.Service = pkgcache.NewMemoryCache(pkgcache.WithMemoryMaxSize(responseCacheSize))
	if rc != nil {
		respCache = rc
	}

	apiLimiter := ratelimit.New(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst, ratelimit.WithIdleTTL(clientIdleTTL))
	opts := []api.Option{
		api.WithResponseCache(respCache, sentimentCacheTTL),
		api.WithMiddleware(api.RateLimit(apiLimiter, l)),
	}
	if refreshLog != nil {
		opts = append(opts, api.WithRefreshHistory(refreshLog))
	}

	probes := map[string]api.Probe{}
	if mongo != nil {
		probes["mongo"] = mongo.Health
	}
	if rc != nil {
		probes["redis"] = func(ctx context.Context) error { return rc.Client().Ping(ctx).Err() }
	}
	if ch != nil {
		probes["clickhouse"] = ch.Health
	}

	return xhttp.Handlers{
		api.NewIntelligenceHandler(l, facades.Intelligence, facades.Quotes, votes, dispatcher, opts...),
		api.NewHealthHandler(probes, caches.Intelligence, caches.Quotes),
		stream.NewHandler(hub, facades.Intelligence, cfg.Server.CORSOrigins, l.With(applogger.String("component", "stream"))),
	}
}

func ProvideHTTPServer(cfg *config.Config, handler xhttp.Handler, l *applogger.Logger) *xhttp.Server {
	return xhttp.NewServer(handler,
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORSOrigins(cfg.Server.CORSOrigins),
		xhttp.WithMetricsPath(cfg.Metrics.Path),
		xhttp.WithLogger(l.With(applogger.String("component", "http"))),
	)
}

// ProvideClosers lists every resource to release on shutdown, in the order
// they were opened.
func ProvideClosers(
	mongo *mongodb.Client,
	rc *pkgcache.RedisCache,
	ch *pkgch.Client,
	refreshLog *repository.CHRefreshLog,
	events *repository.KafkaEventPublisher,
	hub *stream.Hub,
) server.Closers {
	var cs server.Closers
	if mongo != nil {
		cs = append(cs, server.Closer{Name: "mongo", Close: mongo.Close})
	}
	if rc != nil {
		cs = append(cs, server.Closer{Name: "redis", Close: func(context.Context) error { return rc.Close() }})
	}
	if ch != nil {
		cs = append(cs, server.Closer{Name: "clickhouse", Close: func(context.Context) error { return ch.Close() }})
	}
	if refreshLog != nil {
		cs = append(cs, server.Closer{Name: "refresh_log", Close: func(context.Context) error { return refreshLog.Close() }})
	}
	if events != nil {
		cs = append(cs, server.Closer{Name: "kafka_producer", Close: func(context.Context) error { return events.Close() }})
	}
	cs = append(cs, server.Closer{Name: "stream_hub", Close: func(context.Context) error {
		hub.Close()
		return nil
	}})
	return cs
}

// ProvideApp creates the main application.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	caches server.Caches,
	snapshots drepo.SnapshotStore,
	schedulers server.Schedulers,
	facades server.Facades,
	consumer server.Consumer,
	httpServer *xhttp.Server,
	closers server.Closers,
) *server.App {
	return server.New(cfg, l, caches, snapshots, schedulers, facades, consumer, httpServer, closers)
}
