package di

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"PaperTune/internal/domain/models"
	domrepo "PaperTune/internal/domain/repository"
	"PaperTune/internal/handler/api"
	mid "PaperTune/internal/middleware"
	internalrepo "PaperTune/internal/repository"
	icache "PaperTune/internal/service/cache"
	"PaperTune/internal/service/indicatorfeed"
	"PaperTune/internal/services/tuning"
	"PaperTune/internal/usecase"
	pkgcache "PaperTune/pkg/cache"
	pkgch "PaperTune/pkg/clickhouse"
	"PaperTune/pkg/config"
	xhttp "PaperTune/pkg/http"
	pkgkafka "PaperTune/pkg/kafka"
	applogger "PaperTune/pkg/logger"
	"PaperTune/pkg/metrics"
	"PaperTune/pkg/postgres"
	"PaperTune/pkg/queue"
	"PaperTune/pkg/server"

	"github.com/jackc/pgx/v5/pgxpool"
	kafkago "github.com/segmentio/kafka-go"
)

// ProvideLogger creates the application logger from config.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	lc := &applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}
	if lc.Level == "" {
		lc.Level = "info"
	}
	if lc.Format == "" {
		lc.Format = "console"
	}
	if lc.Output == "" {
		lc.Output = "stdout"
	}
	return applogger.New(lc)
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() domrepo.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client and initializes
// the trim signal history schema.
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

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db := cfg.ClickHouse.Database
	if err := client.InitSchema(ctx, []string{
		"CREATE DATABASE IF NOT EXISTS " + db,
		`CREATE TABLE IF NOT EXISTS ` + db + `.trim_signals (
			ts DateTime,
			ticker String,
			direction String,
			score Int32,
			recommendation String,
			trim_percent Float64,
			reason String,
			position_size Float64,
			entry_price Float64,
			current_price Float64,
			pnl_percent Float64,
			ema9 Float64,
			ema20 Float64,
			rsi Float64,
			macd_hist Float64,
			volume_ratio Float64
		) ENGINE=MergeTree ORDER BY (ticker, ts)`,
	}); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvidePostgresPool connects the review and performance database.
func ProvidePostgresPool(cfg *config.Config) (*pgxpool.Pool, error) {
	return postgres.NewPool(context.Background(), cfg.Postgres.DSN,
		postgres.WithMaxConns(cfg.Postgres.MaxConns, cfg.Postgres.MinConns),
		postgres.WithConnLifetime(cfg.Postgres.MaxConnLifetime),
		postgres.WithConnectTimeout(cfg.Postgres.ConnectTimeout),
	)
}

// ProvideKafkaProducer creates a Kafka producer.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideKafkaConsumer creates a Kafka consumer for the snapshots
// topic. Nil when ingest reads the websocket feed instead.
func ProvideKafkaConsumer(cfg *config.Config, m domrepo.Metrics, lgr *applogger.Logger) (*pkgkafka.Consumer, error) {
	if cfg.Ingest.Source != "kafka" {
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
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.NewHookChain(
		pkgkafka.HookFuncs{
			Before: func(ctx context.Context, _ string, km kafkago.Message, data []byte) (context.Context, kafkago.Message, []byte, error) {
				ctx = pkgkafka.WithStartTime(ctx, time.Now())
				ctx = pkgkafka.WithTraceID(ctx, pkgkafka.ExtractTraceID(km))
				return ctx, km, data, nil
			},
			After: func(ctx context.Context, topic string, _ kafkago.Message, _ []byte, _ error) {
				if start, ok := ctx.Value(pkgkafka.CtxStartTime).(time.Time); ok {
					m.RecordLatency("consume_"+topic, time.Since(start).Seconds())
				}
			},
			Err: func(_ context.Context, topic string, _ kafkago.Message, _ []byte, err error) {
				m.RecordError("kafka_consume")
				lgr.Warn("snapshot message failed",
					applogger.String("topic", topic), applogger.Error(err))
			},
		},
	))
	return consumer, nil
}

// ProvideRedisCache creates the shared Redis cache client.
func ProvideRedisCache(cfg *config.Config) (*pkgcache.RedisCache, error) {
	host, portStr, err := net.SplitHostPort(cfg.Redis.Addr)
	if err != nil {
		return nil, fmt.Errorf("redis addr: %w", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("redis port: %w", err)
	}
	return pkgcache.NewRedisCache(
		pkgcache.WithRedisHost(host),
		pkgcache.WithRedisPort(port),
		pkgcache.WithRedisPassword(cfg.Redis.Password),
		pkgcache.WithRedisDB(cfg.Redis.DB),
		pkgcache.WithRedisPrefix("papertune"),
	)
}

// ProvideCacheService exposes the Redis cache behind the generic
// cache interface.
func ProvideCacheService(rc *pkgcache.RedisCache) pkgcache.Service {
	return rc
}

// ProvideSnapshotCache keeps the latest snapshot per (ticker, timeframe).
func ProvideSnapshotCache(c pkgcache.Service, cfg *config.Config) *internalrepo.SnapshotCache {
	return internalrepo.NewSnapshotCache(c, cfg.Redis.SnapshotTTL)
}

// ProvideSnapshotProvider exposes the snapshot cache as provider.
func ProvideSnapshotProvider(c *internalrepo.SnapshotCache) domrepo.SnapshotProvider {
	return c
}

// ProvideAdjustmentStore creates the Postgres adjustment store and
// ensures its schema.
func ProvideAdjustmentStore(pool *pgxpool.Pool) (domrepo.AdjustmentStore, error) {
	store := internalrepo.NewPostgresAdjustmentStore(pool)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("adjustment store init: %w", err)
	}
	return store, nil
}

// ProvidePerformanceProvider reads trailing strategy outcomes.
func ProvidePerformanceProvider(pool *pgxpool.Pool) domrepo.PerformanceProvider {
	return internalrepo.NewPostgresPerformanceProvider(pool)
}

// ProvidePositionProvider reads open paper positions.
func ProvidePositionProvider(pool *pgxpool.Pool) domrepo.PositionProvider {
	return internalrepo.NewPostgresPositionProvider(pool)
}

// ProvideSignalStore creates ClickHouse trim signal history.
func ProvideSignalStore(chClient *pkgch.Client, cfg *config.Config) domrepo.SignalStore {
	return internalrepo.NewClickHouseSignalStore(chClient.DB(), cfg.ClickHouse.Database+".trim_signals")
}

// ProvideNotifier fans notifications out to Kafka and, when
// configured, the chat webhook.
func ProvideNotifier(producer *pkgkafka.Producer, cfg *config.Config) domrepo.Notifier {
	kafka := internalrepo.NewKafkaNotifier(producer, cfg.Kafka.NotificationsTopic)
	if cfg.Alerts.WebhookURL == "" {
		return kafka
	}
	webhook := internalrepo.NewWebhookNotifier(cfg.Alerts.WebhookURL, cfg.Alerts.WebhookToken, 10*time.Second)
	return internalrepo.NewMultiNotifier(kafka, webhook)
}

// ProvideRebuilder triggers strategy rebuilds over Kafka.
func ProvideRebuilder(producer *pkgkafka.Producer, cfg *config.Config) domrepo.StrategyRebuilder {
	return internalrepo.NewKafkaRebuildTrigger(producer, cfg.Kafka.RebuildTopic)
}

// ProvideAlertQueue creates the Redis queue carrying trim alerts. It
// publishes from the evaluator and consumes into the notifier.
func ProvideAlertQueue(
	lgr *applogger.Logger,
	rc *pkgcache.RedisCache,
	notifier domrepo.Notifier,
	cfg *config.Config,
) *queue.RedisQueue {
	workers := cfg.Alerts.Workers
	if workers <= 0 {
		workers = 2
	}
	q := queue.NewRedisQueue(lgr, &queue.QueueConfig{
		Workers:    workers,
		RetryLimit: 3,
		RetryDelay: 30 * time.Second,
	}, rc.Client())
	q.RegisterJob(usecase.NewTrimAlertJob(notifier))
	return q
}

// ProvideQueueService exposes the alert queue as publisher.
func ProvideQueueService(q *queue.RedisQueue) queue.QueueService {
	return q
}

// ProvideStrategySpecs converts configured strategies to domain specs.
func ProvideStrategySpecs(cfg *config.Config) ([]models.StrategySpec, error) {
	return cfg.StrategySpecs()
}

// ProvideTuner creates the parameter tuner.
func ProvideTuner(
	store domrepo.AdjustmentStore,
	perf domrepo.PerformanceProvider,
	notifier domrepo.Notifier,
	rebuilder domrepo.StrategyRebuilder,
	m domrepo.Metrics,
	strategies []models.StrategySpec,
	cfg *config.Config,
	lgr *applogger.Logger,
) *usecase.Tuner {
	rules := tuning.DefaultConfig()
	if cfg.Tuner.WinRateLow > 0 {
		rules.WinRateLow = cfg.Tuner.WinRateLow
	}
	if cfg.Tuner.WinRateHigh > 0 {
		rules.WinRateHigh = cfg.Tuner.WinRateHigh
	}
	if cfg.Tuner.AvgPnLFloor != 0 {
		rules.AvgPnLFloor = cfg.Tuner.AvgPnLFloor
	}
	if cfg.Tuner.ExpiryRateHigh > 0 {
		rules.ExpiryRateHigh = cfg.Tuner.ExpiryRateHigh
	}
	if cfg.Tuner.MinSignalCount > 0 {
		rules.MinSignalCount = cfg.Tuner.MinSignalCount
	}
	return usecase.NewTuner(store, perf, notifier, rebuilder, m, strategies, usecase.TunerConfig{
		WindowDays: cfg.Tuner.WindowDays,
		AutoApply:  cfg.Tuner.AutoApply,
		Rules:      rules,
	}, lgr)
}

// ProvideTrimEvaluator creates the per-snapshot signal evaluator. The
// last-recommendation cache is read on every snapshot, so it gets a
// memory layer in front of Redis.
func ProvideTrimEvaluator(
	snapshots domrepo.SnapshotProvider,
	positions domrepo.PositionProvider,
	signals domrepo.SignalStore,
	rc *pkgcache.RedisCache,
	alerts queue.QueueService,
	m domrepo.Metrics,
	lgr *applogger.Logger,
	cfg *config.Config,
) *usecase.TrimEvaluator {
	lastRec := pkgcache.NewLayeredCache(rc)
	return usecase.NewTrimEvaluator(snapshots, positions, signals, lastRec, alerts, m, lgr, usecase.EvaluatorConfig{
		LastRecTTL:  cfg.Alerts.LastRecTTL,
		AlertBurst:  cfg.Alerts.Burst,
		AlertPerSec: cfg.Alerts.PerSec,
	})
}

// ProvideSnapshotProcessor creates the snapshot ingest processor.
func ProvideSnapshotProcessor(
	cache *internalrepo.SnapshotCache,
	evaluator *usecase.TrimEvaluator,
	m domrepo.Metrics,
) *usecase.SnapshotProcessor {
	return usecase.NewSnapshotProcessor(cache, evaluator, m)
}

// ProvideSnapshotStream creates the indicator feed WebSocket stream.
func ProvideSnapshotStream(cfg *config.Config) domrepo.SnapshotStream {
	return indicatorfeed.New(
		cfg.Feed.APIKey,
		cfg.Feed.WebSocketURL,
		cfg.Ingest.Tickers,
		cfg.Feed.ReconnectDelay,
		cfg.Feed.PingInterval,
	)
}

// ProvideSnapshotCollector drains the stream through the buffering
// pipeline into the processor.
func ProvideSnapshotCollector(
	stream domrepo.SnapshotStream,
	processor *usecase.SnapshotProcessor,
	m domrepo.Metrics,
) *usecase.SnapshotCollector {
	pipe := mid.NewSnapshotPipeline(processor, m,
		mid.WithMaxRPS(5),
		mid.WithBufferSize(1000),
	)
	return usecase.NewSnapshotCollector(stream, processor, m, pipe)
}

// ProvideKafkaSnapshotsHandler consumes snapshots from the topic.
func ProvideKafkaSnapshotsHandler(
	proc *usecase.SnapshotProcessor,
	m domrepo.Metrics,
	cfg *config.Config,
) pkgkafka.MessageHandler {
	return usecase.NewKafkaSnapshotsHandler(cfg.Kafka.SnapshotsTopic, proc, m)
}

// ProvideRouter composes the HTTP API.
func ProvideRouter(
	lgr *applogger.Logger,
	signals domrepo.SignalStore,
	evaluator *usecase.TrimEvaluator,
	snapCache *internalrepo.SnapshotCache,
	store domrepo.AdjustmentStore,
	tuner *usecase.Tuner,
	collector *usecase.SnapshotCollector,
	cfg *config.Config,
) xhttp.Handler {
	sh := api.NewSignalsHandler(lgr, signals, evaluator)
	sh.SetSnapshots(snapCache)
	if cfg.Redis.Addr != "" {
		sh.SetCache(icache.NewRedisCache(icache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}))
	} else {
		sh.SetCache(icache.NewTTLCache())
	}
	ah := api.NewAdjustmentsHandler(lgr, store, tuner)

	r := api.NewRouter(sh, ah)
	if cfg.Ingest.Source == "websocket" {
		r.SetHealthCheck(collector.IsConnected)
	}
	return r
}

// kafkaLogPublisher adapts the producer to the log collector.
type kafkaLogPublisher struct {
	producer *pkgkafka.Producer
}

func (p kafkaLogPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.producer.Publish(ctx, topic, nil, payload)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	lgr *applogger.Logger,
	producer *pkgkafka.Producer,
	collector *usecase.SnapshotCollector,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	tuner *usecase.Tuner,
	alertQueue *queue.RedisQueue,
	httpHandler xhttp.Handler,
	chClient *pkgch.Client,
	pool *pgxpool.Pool,
	adjustments domrepo.AdjustmentStore,
	signals domrepo.SignalStore,
	notifier domrepo.Notifier,
) *server.App {
	if cfg.Logging.CollectErrors && cfg.Kafka.LogsTopic != "" {
		lgr.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          cfg.Kafka.LogsTopic,
			Publisher:      kafkaLogPublisher{producer: producer},
		})
	}
	return server.New(cfg, lgr, collector, consumer, kh, tuner, alertQueue,
		httpHandler, chClient, pool, adjustments, signals, notifier)
}
