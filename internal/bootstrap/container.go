package bootstrap

import (
	"context"
	"net/http"
	"sync"

	"advisor/internal/adapters/ai"
	"advisor/internal/adapters/alphavantage"
	"advisor/internal/adapters/config"
	"advisor/internal/adapters/edgar"
	"advisor/internal/adapters/kafka"
	redisclient "advisor/internal/adapters/redis"
	"advisor/internal/adapters/search"
	"advisor/internal/agents"
	"advisor/internal/events"
	"advisor/internal/pipeline"
	"advisor/internal/tools"
	"advisor/pkg/errors"
	"advisor/pkg/logger"
	"advisor/pkg/templates"
)

// Container holds all application dependencies and their lifecycle
// Components are organized in initialization order
type Container struct {
	// Core configuration & logging
	Config       *config.Config
	Log          *logger.Logger
	ErrorTracker errors.Tracker

	// Infrastructure (optional tool cache)
	Redis *redisclient.Client

	// External Adapters
	Adapters *Adapters

	// Business Logic
	Business *Business

	// Observability
	MetricsServer *http.Server

	// Lifecycle management
	Lifecycle *Lifecycle
	WG        *sync.WaitGroup
}

// Adapters groups all external adapters
type Adapters struct {
	// Kafka (nil unless KAFKA_ENABLED)
	KafkaProducer *kafka.Producer
	EventConsumer *kafka.Consumer

	// Model backend
	AI *ai.OpenAIProvider

	// Data sources behind the tools
	MarketData *alphavantage.Client
	Searcher   search.Searcher
	SearchErr  error // reported by the web search tool instead of failing startup
	Filings    *edgar.Client
}

// Business groups business logic components
type Business struct {
	ToolRegistry *tools.Registry
	Templates    *templates.Registry
	Costs        *agents.CostTracker
	Runner       *agents.Runner
	Events       *events.Publisher
	Orchestrator *pipeline.Orchestrator
}

// NewContainer creates a new dependency container
func NewContainer() *Container {
	return &Container{
		Adapters:  &Adapters{},
		Business:  &Business{},
		Lifecycle: NewLifecycle(),
		WG:        &sync.WaitGroup{},
	}
}

// Init initializes every component needed to run the pipeline, in order.
// Extra options are passed to the orchestrator (e.g. a CLI event sink).
func (c *Container) Init(ctx context.Context, opts ...pipeline.Option) error {
	if c.Config == nil {
		if err := c.InitConfig(); err != nil {
			return err
		}
	}
	if err := c.Config.Validate(); err != nil {
		return err
	}

	steps := []struct {
		name string
		fn   func() error
	}{
		{"infrastructure", func() error { return c.InitInfrastructure(ctx) }},
		{"adapters", c.InitAdapters},
		{"tools", c.InitTools},
		{"pipeline", func() error { return c.InitPipeline(ctx, opts...) }},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			return errors.Wrapf(err, "init %s", step.name)
		}
	}

	c.Log.Infow("✓ Advisor ready",
		"tools", len(c.Business.ToolRegistry.List()),
		"templates", len(c.Business.Templates.List()),
		"kafka", c.Adapters.KafkaProducer != nil,
		"cache", c.Redis != nil,
	)
	return nil
}

// StartMetricsServer serves /metrics in the background when METRICS_ADDR is set.
func (c *Container) StartMetricsServer() {
	if c.Config.Metrics.Addr == "" {
		return
	}

	c.MetricsServer = provideMetricsServer(c.Config.Metrics.Addr)

	c.WG.Add(1)
	go func() {
		defer c.WG.Done()
		if err := c.MetricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			c.Log.Errorf("Metrics server failed: %v", err)
		}
	}()
	c.Log.Infow("✓ Metrics server started", "addr", c.Config.Metrics.Addr)
}

// Shutdown performs graceful shutdown in the correct order
func (c *Container) Shutdown() {
	if c.Log == nil {
		return
	}
	c.Log.Info("Initiating graceful shutdown...")

	c.Lifecycle.Shutdown(
		c.WG,
		c.MetricsServer,
		c.Adapters.EventConsumer,
		c.Adapters.KafkaProducer,
		c.Business.Costs,
		c.Redis,
		c.ErrorTracker,
		c.Log,
	)
}
