package di

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"SPXEngine/internal/domain/repository"
	"SPXEngine/internal/handler/api"
	mid "SPXEngine/internal/middleware"
	internalrepo "SPXEngine/internal/repository"
	icache "SPXEngine/internal/service/cache"
	"SPXEngine/internal/service/marketfeed"
	"SPXEngine/internal/services/decision"
	"SPXEngine/internal/services/model"
	"SPXEngine/internal/usecase"
	pkgcache "SPXEngine/pkg/cache"
	pkgch "SPXEngine/pkg/clickhouse"
	"SPXEngine/pkg/config"
	xhttp "SPXEngine/pkg/http"
	pkgkafka "SPXEngine/pkg/kafka"
	applogger "SPXEngine/pkg/logger"
	"SPXEngine/pkg/metrics"
	"SPXEngine/pkg/queue"
	"SPXEngine/pkg/server"
)

const modelFetchLimit = 1 << 20 // 1 MiB weights payload cap

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:  cfg.Logger.Level,
		Format: cfg.Logger.Format,
		Output: cfg.Logger.Output,
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideReplayStore creates the ClickHouse replay store and
// initializes its schema.
func ProvideReplayStore(chClient *pkgch.Client, log *applogger.Logger) (repository.ReplayStore, error) {
	store := internalrepo.NewCHReplayStore(chClient)
	store.SetLogger(log)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("replay store schema: %w", err)
	}
	return store, nil
}

// logPublisher adapts the Kafka producer to the logger's batch sink.
type logPublisher struct {
	producer *pkgkafka.Producer
}

func (lp logPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return lp.producer.Publish(ctx, topic, nil, payload)
}

// ProvideKafkaProducer creates a Kafka producer. When an error topic is
// configured, aggregated error logs are shipped through it as well.
func ProvideKafkaProducer(cfg *config.Config, log *applogger.Logger) (*pkgkafka.Producer, error) {
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	if cfg.Logger.ErrorTopic != "" {
		log.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   time.Minute,
			CountThreshold: 100,
			Topic:          cfg.Logger.ErrorTopic,
			Publisher:      logPublisher{producer: producer},
		})
	}
	return producer, nil
}

// ProvideAuditPublisher creates the Kafka audit publisher.
func ProvideAuditPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.AuditPublisher {
	return internalrepo.NewKafkaAuditPublisher(producer, cfg.Kafka.AuditTopic)
}

// ProvideKafkaConsumer creates a Kafka consumer configured from YAML.
func ProvideKafkaConsumer(cfg *config.Config, log *applogger.Logger) (*pkgkafka.Consumer, error) {
	consumer, err := pkgkafka.NewConsumer(log,
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideFlowWindow creates the rolling order-flow window.
func ProvideFlowWindow(cfg *config.Config, m repository.Metrics) *usecase.FlowWindow {
	return usecase.NewFlowWindow(
		time.Duration(cfg.Flow.WindowMinutes)*time.Minute,
		cfg.Flow.MaxEvents,
		m,
	)
}

// ProvideFlowHandler registers the handler for the flow topic.
func ProvideFlowHandler(window *usecase.FlowWindow, m repository.Metrics, cfg *config.Config) *usecase.KafkaFlowHandler {
	return usecase.NewKafkaFlowHandler(cfg.Kafka.FlowTopic, window, m)
}

// ProvideQuoteStream creates the market-feed WebSocket stream.
func ProvideQuoteStream(cfg *config.Config, log *applogger.Logger) repository.QuoteStream {
	return marketfeed.New(
		cfg.MarketFeed.APIKey,
		cfg.MarketFeed.WebSocketURL,
		cfg.MarketFeed.Symbols,
		cfg.MarketFeed.ReconnectDelay,
		cfg.MarketFeed.PingInterval,
		log,
	)
}

// ProvideQuoteRegister creates the latest-quote register.
func ProvideQuoteRegister(m repository.Metrics) *usecase.QuoteRegister {
	return usecase.NewQuoteRegister(m)
}

// ProvideQuoteCollector creates the quote collector with its pipeline.
func ProvideQuoteCollector(
	stream repository.QuoteStream,
	register *usecase.QuoteRegister,
	m repository.Metrics,
) *usecase.QuoteCollector {
	pipe := mid.NewQuotePipeline(register, m,
		mid.WithMaxRPS(50),
		mid.WithBufferSize(2000),
	)
	return usecase.NewQuoteCollector(stream, register, m, pipe)
}

// ProvideRedisCache creates the shared Redis cache, or nil when Redis
// is disabled.
func ProvideRedisCache(cfg *config.Config) (*pkgcache.RedisCache, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	return pkgcache.NewRedisCache(
		pkgcache.WithRedisAddr(cfg.Redis.Addr),
		pkgcache.WithRedisPassword(cfg.Redis.Password),
		pkgcache.WithRedisDB(cfg.Redis.DB),
	)
}

// ProvideModelLoader creates the confidence-model loader.
func ProvideModelLoader(cfg *config.Config, log *applogger.Logger, m repository.Metrics, redisCache *pkgcache.RedisCache) *model.Loader {
	fetchTimeout := cfg.Model.FetchTimeout
	if fetchTimeout <= 0 {
		fetchTimeout = 30 * time.Second
	}

	opts := []model.Option{model.WithMetrics(m)}
	if redisCache != nil {
		// layered so a warm restart never waits on Redis for weights
		layered := pkgcache.NewLayeredCache(redisCache)
		opts = append(opts, model.WithCache(icache.NewWeightsCache(layered)))
	}

	return model.NewLoader(model.Config{
		StorageBaseURL:  cfg.Model.StorageBaseURL,
		Bucket:          cfg.Model.Bucket,
		ObjectPath:      cfg.Model.ObjectPath,
		RefreshInterval: cfg.Model.RefreshInterval,
		BackoffBase:     cfg.Model.BackoffBase,
		BackoffCeiling:  cfg.Model.BackoffCeiling,
		Autoload:        cfg.Model.Autoload,
	}, modelFetcher(fetchTimeout), log, opts...)
}

func modelFetcher(timeout time.Duration) model.FetchFunc {
	client := &http.Client{Timeout: timeout}
	return func(ctx context.Context, url string) (*model.FetchResult, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetch weights: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, modelFetchLimit))
		if err != nil {
			return nil, fmt.Errorf("read weights body: %w", err)
		}
		return &model.FetchResult{Body: body, StatusCode: resp.StatusCode}, nil
	}
}

// ProvideDecisionEngine creates the decision engine.
func ProvideDecisionEngine(log *applogger.Logger, loader *model.Loader, m repository.Metrics) *decision.Engine {
	return decision.NewEngine(log,
		decision.WithModelSource(loader),
		decision.WithMetrics(m),
	)
}

// ProvideEvaluator creates the evaluation-pass use case.
func ProvideEvaluator(
	engine *decision.Engine,
	loader *model.Loader,
	m repository.Metrics,
	log *applogger.Logger,
	audit repository.AuditPublisher,
	store repository.ReplayStore,
	register *usecase.QuoteRegister,
	flow *usecase.FlowWindow,
) *usecase.Evaluator {
	return usecase.NewEvaluator(engine, loader, m, log,
		usecase.WithAudit(audit, store),
		usecase.WithQuotes(register),
		usecase.WithFlow(flow),
	)
}

// ProvideReplaySessions creates the replay session use case.
func ProvideReplaySessions(store repository.ReplayStore, m repository.Metrics, log *applogger.Logger, cfg *config.Config) *usecase.ReplaySessions {
	return usecase.NewReplaySessions(store, m, log,
		usecase.WithEngineTTL(cfg.Replay.EngineCacheTTL),
		usecase.WithListLimit(cfg.Replay.ListLimit),
		usecase.WithDefaultWindow(cfg.Replay.DefaultWindowMinutes),
	)
}

// ProvideIngestQueue creates the Redis-backed replay ingest queue, or
// nil when Redis is disabled. Uploads then persist inline.
func ProvideIngestQueue(cfg *config.Config, log *applogger.Logger, sessions *usecase.ReplaySessions, redisCache *pkgcache.RedisCache) *queue.RedisQueue {
	if redisCache == nil {
		return nil
	}
	q := queue.NewRedisQueue(log,
		&queue.QueueConfig{Workers: cfg.Replay.IngestWorkers},
		redisCache.Client(),
		queue.ModeProducerConsumer,
		queue.WithKeyPrefix("spxengine:replay"),
	)
	q.RegisterJob(usecase.NewReplayIngestJob(sessions))
	return q
}

// ProvideHTTPHandler creates the Echo route handler.
func ProvideHTTPHandler(
	log *applogger.Logger,
	evaluator *usecase.Evaluator,
	sessions *usecase.ReplaySessions,
	loader *model.Loader,
	ingest *queue.RedisQueue,
	cfg *config.Config,
) xhttp.Handler {
	opts := []api.HandlerOption{api.WithAdminToken(cfg.Server.AdminToken)}
	if ingest != nil {
		opts = append(opts, api.WithIngestQueue(ingest))
	}
	return api.NewHandler(log, evaluator, sessions, loader, opts...)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	loader *model.Loader,
	collector *usecase.QuoteCollector,
	consumer *pkgkafka.Consumer,
	flowHandler *usecase.KafkaFlowHandler,
	chClient *pkgch.Client,
	ingest *queue.RedisQueue,
	audit repository.AuditPublisher,
	httpHandler xhttp.Handler,
) *server.App {
	return server.New(cfg, log, loader, collector, consumer, flowHandler, chClient, ingest, audit, httpHandler)
}
