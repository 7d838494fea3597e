package di

import (
	"context"
	"fmt"
	"time"

	domrepo "StockPulse/internal/domain/repository"
	"StockPulse/internal/handler/api"
	"StockPulse/internal/handler/ws"
	mid "StockPulse/internal/middleware"
	internalrepo "StockPulse/internal/repository"
	"StockPulse/internal/service/provider"
	"StockPulse/internal/service/ratelimit"
	"StockPulse/internal/services/summarizer"
	"StockPulse/internal/usecase"
	"StockPulse/pkg/cache"
	pkgch "StockPulse/pkg/clickhouse"
	"StockPulse/pkg/config"
	xhttp "StockPulse/pkg/http"
	pkgkafka "StockPulse/pkg/kafka"
	applogger "StockPulse/pkg/logger"
	"StockPulse/pkg/metrics"
	"StockPulse/pkg/queue"
	"StockPulse/pkg/scheduler"
	"StockPulse/pkg/server"
	"StockPulse/pkg/sqlite"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

const initTimeout = 10 * time.Second

// ProvideLogger builds the application logger from config.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		Output:     cfg.Logger.Output,
		TimeFormat: cfg.Logger.TimeFormat,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideMetrics registers on the default registry, which /metrics serves.
func ProvideMetrics() domrepo.Metrics {
	return metrics.New(prometheus.DefaultRegisterer)
}

// ProvideRedisClient returns nil when redis is disabled.
func ProvideRedisClient(cfg *config.Config) (*redis.Client, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()
	rc, err := cache.NewRedisClient(ctx,
		cache.WithRedisAddr(cfg.Redis.Addr),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
	)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	return rc, nil
}

// ProvideCache layers an in-process cache over redis, or runs memory-only.
func ProvideCache(cfg *config.Config, rc *redis.Client) cache.Service {
	memOpts := []cache.MemoryOption{
		cache.WithMemoryMaxSize(cfg.Cache.MemoryMaxSize),
		cache.WithMemoryCleanup(cfg.Cache.CleanupInterval),
		cache.WithMemoryTTL(cfg.Cache.MemoryTTL),
	}
	if rc == nil {
		return cache.NewMemoryCache(memOpts...)
	}
	return cache.NewLayeredCache(
		cache.NewRedisCache(rc, cfg.Redis.Prefix),
		cache.WithLayeredMemory(memOpts...),
		cache.WithLayeredL1TTL(cfg.Cache.MemoryTTL),
	)
}

// ProvideStockProvider creates the cached, rate-limited upstream client.
func ProvideStockProvider(cfg *config.Config, c cache.Service, m domrepo.Metrics, l *applogger.Logger) *provider.Client {
	return provider.New(provider.Config{
		BaseURL:   cfg.Provider.BaseURL,
		Timeout:   cfg.Provider.Timeout,
		Attempts:  cfg.Provider.Attempts,
		RateLimit: cfg.Provider.RateLimit,
		Burst:     cfg.Provider.Burst,
		ListTTL:   cfg.Provider.CacheTTL.List,
		DetailTTL: cfg.Provider.CacheTTL.Detail,
		ChartTTL:  cfg.Provider.CacheTTL.Chart,
	}, c, l, provider.WithObserver(func(op string, d time.Duration, err error) {
		m.RecordLatency("provider_"+op, d.Seconds())
		if err != nil {
			m.RecordError("provider_" + op)
		}
	}))
}

// ProvideSignalHistory opens the configured snapshot store and makes sure
// its schema exists.
func ProvideSignalHistory(cfg *config.Config, l *applogger.Logger) (domrepo.SignalHistory, error) {
	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()

	var (
		h   *internalrepo.SQLHistory
		err error
	)
	switch cfg.Storage.Driver {
	case "none":
		return internalrepo.NewNoopHistory(), nil
	case "clickhouse":
		c := cfg.Storage.ClickHouse
		ch, cerr := pkgch.NewClient(ctx,
			pkgch.WithHost(c.Host),
			pkgch.WithPort(c.Port),
			pkgch.WithDatabase(c.Database),
			pkgch.WithCredentials(c.User, c.Password),
			pkgch.WithMaxConnections(10, 5),
			pkgch.WithHTTP(c.UseHTTP),
			pkgch.WithAsyncInsert(c.AsyncInsert, c.WaitForAsync),
			pkgch.WithTimeouts(c.DialTimeout, c.ReadTimeout, c.WriteTimeout),
			pkgch.WithMaxExecutionTime(c.MaxExecutionTime),
		)
		if cerr != nil {
			return nil, fmt.Errorf("clickhouse client: %w", cerr)
		}
		if h, err = internalrepo.NewClickHouseHistory(ch, l); err != nil {
			_ = ch.Close()
			return nil, err
		}
	default:
		db, oerr := sqlite.Open(ctx, cfg.Storage.SQLite.Path)
		if oerr != nil {
			return nil, fmt.Errorf("sqlite: %w", oerr)
		}
		if h, err = internalrepo.NewSQLiteHistory(db, l); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	if err := h.Init(ctx); err != nil {
		_ = h.Close()
		return nil, fmt.Errorf("signal history schema: %w", err)
	}
	return h, nil
}

// ProvideKafkaProducer returns nil when kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	p := cfg.Kafka.Producer
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(p.BatchSize, p.BatchBytes, p.Linger),
		pkgkafka.WithTimeouts(p.WriteTimeout, p.ReadTimeout),
		pkgkafka.WithMaxAttempts(p.MaxAttempts),
		pkgkafka.WithAsync(p.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

func ProvideEventPublisher(cfg *config.Config, producer *pkgkafka.Producer) domrepo.EventPublisher {
	if producer == nil {
		return internalrepo.NoopPublisher{}
	}
	return internalrepo.NewKafkaChangePublisher(producer, cfg.Kafka.ChangesTopic)
}

// ProvideLogCollector ships aggregated error logs to kafka when enabled.
func ProvideLogCollector(cfg *config.Config, l *applogger.Logger, producer *pkgkafka.Producer) *applogger.LogCollector {
	if !cfg.Logger.Collector.Enabled || producer == nil {
		return nil
	}
	c := applogger.NewLogCollector(applogger.CollectionConfig{
		TimeInterval:   cfg.Logger.Collector.Interval,
		CountThreshold: cfg.Logger.Collector.CountThreshold,
		Topic:          cfg.Logger.Collector.Topic,
		Publisher:      producer,
	})
	l.AttachCollector(c)
	return c
}

func ProvidePreferenceStore(cfg *config.Config, c cache.Service) domrepo.PreferenceStore {
	return internalrepo.NewCachePreferenceStore(c, cfg.Preferences.TTL)
}

func ProvidePreferences(store domrepo.PreferenceStore, l *applogger.Logger) *usecase.PreferencesUseCase {
	return usecase.NewPreferencesUseCase(store, l)
}

func ProvideStocks(p domrepo.StockProvider, prefs *usecase.PreferencesUseCase, m domrepo.Metrics, l *applogger.Logger) *usecase.StocksUseCase {
	return usecase.NewStocksUseCase(p, prefs, m, l)
}

func ProvideSignalTracker(h domrepo.SignalHistory, pub domrepo.EventPublisher, m domrepo.Metrics, l *applogger.Logger) *usecase.SignalTracker {
	return usecase.NewSignalTracker(h, pub, m, l)
}

// ProvideHub creates the live-session hub and attaches it to the tracker so
// observed updates reach open sessions.
func ProvideHub(m domrepo.Metrics, tracker *usecase.SignalTracker) *ws.Hub {
	hub := ws.NewHub(m)
	tracker.SetFanout(hub)
	return hub
}

func ProvideWSHandler(cfg *config.Config, hub *ws.Hub, stocks *usecase.StocksUseCase, prefs *usecase.PreferencesUseCase, l *applogger.Logger) *ws.Handler {
	return ws.NewHandler(hub, stocks, prefs, ws.Options{
		WriteTimeout: cfg.WebSocket.WriteTimeout,
		PongTimeout:  cfg.WebSocket.PongTimeout,
		PingInterval: cfg.WebSocket.PingInterval,
		SendBuffer:   cfg.WebSocket.SendBuffer,
	}, l)
}

// ProvideSummarizerPipeline picks the backend and wraps it with caching.
func ProvideSummarizerPipeline(cfg *config.Config, c cache.Service, m domrepo.Metrics, l *applogger.Logger) (*summarizer.Pipeline, error) {
	s := cfg.Summarizer
	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()
	backend, err := summarizer.New(ctx, summarizer.Config{
		Provider: s.Provider,
		Gemini: summarizer.GeminiConfig{
			APIKey:      s.APIKey,
			Model:       s.Model,
			Temperature: s.Temperature,
			MaxTokens:   s.MaxTokens,
			Timeout:     s.Timeout,
		},
		PlaceholderLag: s.PlaceholderLag,
	}, l)
	if err != nil {
		return nil, fmt.Errorf("summarizer: %w", err)
	}
	return summarizer.NewPipeline(backend, nil, c, s.CacheTTL, m, l), nil
}

// ProvideSummaryQueue returns nil when summaries run inline only. With redis
// available the queue is shared across instances.
func ProvideSummaryQueue(cfg *config.Config, rc *redis.Client, l *applogger.Logger) *queue.Queue {
	q := cfg.Summarizer.Queue
	if !q.Enabled {
		return nil
	}
	qc := &queue.QueueConfig{
		Workers:    q.Workers,
		RetryLimit: q.MaxRetries,
		ResultTTL:  q.ResultTTL,
	}
	if rc == nil {
		return queue.NewMemoryQueue(l, qc)
	}
	return queue.NewRedisQueue(l, qc, rc, queue.WithKeyPrefix(cfg.Redis.Prefix+":"+q.Name))
}

// ProvideSummaryUseCase wires summaries and registers the queue job.
func ProvideSummaryUseCase(cfg *config.Config, p domrepo.StockProvider, pipeline *summarizer.Pipeline, q *queue.Queue, l *applogger.Logger) *usecase.SummaryUseCase {
	limiter := ratelimit.New(cfg.Summarizer.PerViewerRate, cfg.Summarizer.PerViewerBurst)

	var qs queue.QueueService
	if q != nil {
		qs = q
	}
	uc := usecase.NewSummaryUseCase(p, pipeline, qs, limiter, cfg.Summarizer.Timeout, l)
	if q != nil {
		q.RegisterJob(usecase.NewSummaryJob(uc))
	}
	return uc
}

func ProvideHTTPServer(
	cfg *config.Config,
	l *applogger.Logger,
	stocks *usecase.StocksUseCase,
	tracker *usecase.SignalTracker,
	prefs *usecase.PreferencesUseCase,
	summary *usecase.SummaryUseCase,
	wsh *ws.Handler,
) *xhttp.Server {
	handlers := xhttp.Handlers{
		api.NewStocksHandler(stocks, tracker, l),
		api.NewPreferencesHandler(prefs, l),
		api.NewSummaryHandler(summary, l),
		wsh,
	}
	return xhttp.NewServer(handlers,
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(cfg.Server.CORSOrigins),
		xhttp.WithLogger(l),
	)
}

// ProvideUpdatePipeline throttles upstream updates per stock before they
// reach the tracker.
func ProvideUpdatePipeline(cfg *config.Config, tracker *usecase.SignalTracker, m domrepo.Metrics, l *applogger.Logger) *mid.UpdatePipeline {
	if !cfg.Kafka.Enabled || !cfg.Kafka.Consumer.Enabled {
		return nil
	}
	return mid.NewUpdatePipeline(tracker, m,
		mid.WithMaxRPS(cfg.Kafka.Consumer.MaxPerSecond),
		mid.WithLogger(l),
	)
}

// ProvideIngestHandler returns nil when there is no consumer to feed it.
func ProvideIngestHandler(cfg *config.Config, pipe *mid.UpdatePipeline, p domrepo.StockProvider, m domrepo.Metrics, l *applogger.Logger) *usecase.SignalIngestHandler {
	if pipe == nil {
		return nil
	}
	return usecase.NewSignalIngestHandler(cfg.Kafka.Consumer.UpdatesTopic, pipe, p, m, l)
}

// ProvideKafkaConsumer returns nil unless both kafka and the consumer are on.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled || !cfg.Kafka.Consumer.Enabled {
		return nil, nil
	}
	c := cfg.Kafka.Consumer
	consumer, err := pkgkafka.NewConsumer(l,
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(c.GroupID),
		pkgkafka.WithConsumerWorkers(c.Workers),
		pkgkafka.WithConsumerBufferSize(c.BufferSize),
		pkgkafka.WithConsumerRetry(c.RetryMax, c.BackoffMin, c.BackoffMax),
		pkgkafka.WithConsumerDLQ(c.DLQTopic),
		pkgkafka.WithConsumerFetch(c.MinBytes, c.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideScheduler registers the periodic signal refresh.
func ProvideScheduler(cfg *config.Config, p domrepo.StockProvider, tracker *usecase.SignalTracker, l *applogger.Logger) (*scheduler.Scheduler, error) {
	if !cfg.Scheduler.Enabled {
		return nil, nil
	}
	s := scheduler.New(l)
	refresh := usecase.NewRefreshUseCase(p, tracker, l)
	if err := s.Register("signal-refresh", cfg.Scheduler.RefreshCron, refresh.Run); err != nil {
		return nil, fmt.Errorf("scheduler: %w", err)
	}
	return s, nil
}

// ProvideApp assembles the lifecycle. Closers run after every worker has
// stopped, producer last so the log collector can still flush.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	httpServer *xhttp.Server,
	wsh *ws.Handler,
	consumer *pkgkafka.Consumer,
	ingest *usecase.SignalIngestHandler,
	pipe *mid.UpdatePipeline,
	sched *scheduler.Scheduler,
	q *queue.Queue,
	collector *applogger.LogCollector,
	history domrepo.SignalHistory,
	c cache.Service,
	rc *redis.Client,
	producer *pkgkafka.Producer,
	m domrepo.Metrics,
) *server.App {
	comps := server.Components{
		HTTP:      httpServer,
		WS:        wsh,
		Pipeline:  pipe,
		Scheduler: sched,
		Queue:     q,
		Collector: collector,
		Closers: []server.Closer{
			{Name: "signal-history", Closer: history},
			{Name: "cache", Closer: c},
		},
	}
	if consumer != nil && ingest != nil {
		comps.Consumer = consumer
		comps.Ingest = ingest
		if h := usecase.IngestFailureHook(m); h != nil {
			comps.Hooks = append(comps.Hooks, h)
		}
	}
	if rc != nil {
		comps.Closers = append(comps.Closers, server.Closer{Name: "redis", Closer: rc})
	}
	if producer != nil {
		comps.Closers = append(comps.Closers, server.Closer{Name: "kafka-producer", Closer: producer})
	}
	return server.New(cfg, l, comps)
}
