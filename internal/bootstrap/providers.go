package bootstrap

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"advisor/internal/adapters/ai"
	"advisor/internal/adapters/alphavantage"
	"advisor/internal/adapters/config"
	"advisor/internal/adapters/edgar"
	errnoop "advisor/internal/adapters/errors/noop"
	"advisor/internal/adapters/errors/sentry"
	"advisor/internal/adapters/kafka"
	redisclient "advisor/internal/adapters/redis"
	searchclient "advisor/internal/adapters/search"
	"advisor/internal/agents"
	"advisor/internal/events"
	"advisor/internal/metrics"
	"advisor/internal/pipeline"
	"advisor/internal/tools"
	"advisor/internal/tools/correlation"
	"advisor/internal/tools/filings"
	"advisor/internal/tools/market"
	"advisor/internal/tools/middleware"
	"advisor/internal/tools/report"
	websearch "advisor/internal/tools/search"
	"advisor/internal/tools/shared"
	"advisor/pkg/errors"
	"advisor/pkg/logger"
	"advisor/pkg/templates"
)

// ========================================
// Phase 1: Configuration & Logging
// ========================================

// InitConfig loads configuration and initializes logger
func (c *Container) InitConfig() error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	c.Config = cfg

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		return errors.Wrap(err, "failed to init logger")
	}

	c.Log = logger.Get()
	c.Log.Infof("Starting %s in %s mode", cfg.App.Name, cfg.App.Env)

	c.ErrorTracker = provideErrorTracker(cfg, c.Log)
	logger.SetErrorTracker(c.ErrorTracker)
	return nil
}

// ========================================
// Phase 2: Infrastructure Layer
// ========================================

// InitInfrastructure registers metrics and connects the optional tool cache.
// An unreachable cache is logged and the pipeline runs without it.
func (c *Container) InitInfrastructure(ctx context.Context) error {
	metrics.Init()

	if !c.Config.Redis.Enabled {
		return nil
	}

	c.Log.Info("Connecting to Redis...")
	client, err := redisclient.NewClient(ctx, c.Config.Redis)
	if err != nil {
		c.Log.Warnw("Redis unavailable, tool cache disabled", "addr", c.Config.Redis.Addr(), "error", err)
		return nil
	}
	c.Redis = client

	if err := prometheus.Register(metrics.NewCacheCollector(client.Client())); err != nil {
		c.Log.Warnw("Cache collector not registered", "error", err)
	}
	c.Log.Info("✓ Redis connected")
	return nil
}

// ========================================
// Phase 3: External Adapters
// ========================================

// InitAdapters creates the model backend, data source clients and the
// optional Kafka producer.
func (c *Container) InitAdapters() error {
	httpClient := provideHTTPClient(c.Config.Pipeline.ToolTimeout)

	c.Adapters.AI = ai.NewFromConfig(c.Config.AI)
	c.Adapters.MarketData = alphavantage.NewFromConfig(c.Config.MarketData)
	c.Adapters.Filings = edgar.NewClient(c.Config.Filings, httpClient)

	c.Adapters.Searcher, c.Adapters.SearchErr = searchclient.NewFromConfig(c.Config.Search, httpClient)
	if c.Adapters.SearchErr != nil {
		c.Log.Warnw("Web search unavailable, the tool will report the problem", "error", c.Adapters.SearchErr)
	}

	if c.Config.Kafka.Enabled {
		c.Adapters.KafkaProducer = provideKafkaProducer(c.Config.Kafka)
		c.Log.Infow("✓ Kafka producer created", "brokers", c.Config.Kafka.Brokers)
	}

	c.Log.Info("✓ Adapters initialized")
	return nil
}

// InitEventConsumer creates the consumer used to follow published pipeline
// events. With no topics it follows both the stage and run topics.
func (c *Container) InitEventConsumer(topics []string, fromStart bool) error {
	if c.Config == nil {
		if err := c.InitConfig(); err != nil {
			return err
		}
	}
	if len(topics) == 0 {
		topics = []string{c.Config.Kafka.StageTopic, c.Config.Kafka.RunTopic}
	}

	consumer, err := provideKafkaConsumer(c.Config.Kafka, topics, fromStart)
	if err != nil {
		return err
	}
	c.Adapters.EventConsumer = consumer
	return nil
}

// ========================================
// Phase 4: Tools
// ========================================

// InitTools registers every tool and wraps them with the middleware chain:
// metrics (outermost), cache, retry, then a per-attempt timeout.
func (c *Container) InitTools() error {
	deps := shared.Deps{
		MarketData: c.Adapters.MarketData,
		Log:        c.Log,
	}

	registry := tools.NewRegistry()
	groups := [][]tools.Tool{
		{websearch.NewWebSearchTool(c.Adapters.Searcher, c.Config.Search.Results, c.Adapters.SearchErr)},
		market.NewTools(deps),
		correlation.NewTools(deps),
		filings.NewTools(filings.NewStore(c.Adapters.Filings, c.Config.Filings.TempRoot)),
		{report.NewMarkdownTool()},
	}
	for _, group := range groups {
		if err := registry.Register(group...); err != nil {
			return err
		}
	}
	if err := registry.Verify(tools.Definitions()); err != nil {
		return err
	}

	registry.Wrap(provideToolMiddleware(c.Config.Pipeline, c.Config.Redis, c.Redis, c.Log)...)

	c.Business.ToolRegistry = registry
	c.Log.Infow("✓ Tools registered", "tools", registry.List())
	return nil
}

// ========================================
// Phase 5: Pipeline
// ========================================

// InitPipeline builds templates, the agent runner, the event publisher and
// the orchestrator, then optionally checks the model backend.
func (c *Container) InitPipeline(ctx context.Context, opts ...pipeline.Option) error {
	tmpl, err := provideTemplates(c.Config.Pipeline.PromptsDir, c.Log)
	if err != nil {
		return err
	}
	c.Business.Templates = tmpl

	c.Business.Costs = agents.NewCostTracker()
	c.Business.Runner = agents.NewRunner(
		c.Adapters.AI,
		c.Business.ToolRegistry,
		agents.WithCostTracker(c.Business.Costs),
		agents.WithMaxParallelTools(c.Config.Pipeline.MaxParallelTools),
	)

	options := []pipeline.Option{pipeline.WithErrorTracker(c.ErrorTracker)}
	if c.Adapters.KafkaProducer != nil {
		c.Business.Events = events.NewPublisher(c.Adapters.KafkaProducer, events.Topics{
			Stage: c.Config.Kafka.StageTopic,
			Run:   c.Config.Kafka.RunTopic,
		}, c.Log)
		options = append(options, pipeline.WithEventSink(c.Business.Events))
	}
	options = append(options, opts...)

	orch, err := pipeline.New(pipeline.ConfigFrom(c.Config), c.Business.Runner, tmpl, options...)
	if err != nil {
		return err
	}
	c.Business.Orchestrator = orch

	if c.Config.AI.Preflight {
		c.Log.Info("Checking model backend...")
		if err := c.Adapters.AI.Preflight(ctx, c.Config.AI.Models()); err != nil {
			return err
		}
		c.Log.Infow("✓ Model backend reachable", "models", c.Config.AI.Models())
	}
	return nil
}

// ========================================
// Helper Functions
// ========================================

func provideErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		return errnoop.New()
	}

	tracker, err := sentry.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment)
	if err != nil {
		log.Warnw("Sentry init failed, falling back to noop tracker", "error", err)
		return errnoop.New()
	}

	log.Info("✓ Sentry error tracking enabled")
	return tracker
}

func provideHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

func provideTemplates(dir string, log *logger.Logger) (*templates.Registry, error) {
	allowed := templates.WithAllowedFields(pipeline.PromptFields...)

	var (
		reg *templates.Registry
		err error
	)
	if dir != "" {
		reg, err = templates.NewRegistry(dir, allowed)
	} else {
		reg, err = templates.NewEmbedded(allowed)
	}
	if err != nil {
		return nil, errors.Wrapf(errors.ErrConfig, "load prompt templates: %v", err)
	}
	if overrides := reg.Overrides(); len(overrides) > 0 {
		log.Infow("Prompt templates overridden", "dir", dir, "templates", overrides)
	}
	return reg, nil
}

func provideToolMiddleware(
	cfg config.PipelineConfig,
	redisCfg config.RedisConfig,
	cache *redisclient.Client,
	log *logger.Logger,
) []tools.Middleware {
	chain := []tools.Middleware{middleware.NewMetricsMiddleware(log)}
	if cache != nil {
		chain = append(chain, middleware.NewCacheMiddleware(cache, redisCfg.CacheTTL))
	}
	return append(chain,
		middleware.RetryMiddleware{Attempts: cfg.ToolRetries + 1, Backoff: cfg.ToolRetryBackoff, Log: log},
		middleware.TimeoutMiddleware{Timeout: cfg.ToolTimeout},
	)
}

func provideKafkaProducer(cfg config.KafkaConfig) *kafka.Producer {
	return kafka.NewProducer(kafka.ProducerConfig{
		Brokers:      cfg.Brokers,
		WriteTimeout: 10 * time.Second,
	})
}

func provideKafkaConsumer(cfg config.KafkaConfig, topics []string, fromStart bool) (*kafka.Consumer, error) {
	return kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers:   cfg.Brokers,
		GroupID:   cfg.GroupID,
		Topics:    topics,
		FromStart: fromStart,
	})
}

func provideMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
