package bootstrap

import (
	"context"
	"net/http"
	"sync"
	"time"

	"advisor/internal/adapters/kafka"
	redisclient "advisor/internal/adapters/redis"
	"advisor/internal/agents"
	"advisor/pkg/errors"
	"advisor/pkg/logger"
)

// Lifecycle manages graceful shutdown of components
type Lifecycle struct {
	shutdownTimeout time.Duration
}

// NewLifecycle creates a new lifecycle manager
func NewLifecycle() *Lifecycle {
	return &Lifecycle{
		shutdownTimeout: 30 * time.Second,
	}
}

// Shutdown performs coordinated cleanup in order:
// 1. Metrics endpoint stops accepting scrapes
// 2. Event consumer unblocks before waiting for goroutines
// 3. Producer closes after pending publishes
// 4. Costs, errors and logs flushed
// 5. Cache connection last
func (l *Lifecycle) Shutdown(
	wg *sync.WaitGroup,
	metricsServer *http.Server,
	eventConsumer *kafka.Consumer,
	kafkaProducer *kafka.Producer,
	costs *agents.CostTracker,
	redisClient *redisclient.Client,
	errorTracker errors.Tracker,
	log *logger.Logger,
) {
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), l.shutdownTimeout)
	defer shutdownCancel()

	// ========================================
	// Step 1: Stop Metrics Server
	// ========================================
	log.Info("[1/7] Stopping metrics server...")
	if metricsServer != nil {
		httpCtx, httpCancel := context.WithTimeout(shutdownCtx, 5*time.Second)
		if err := metricsServer.Shutdown(httpCtx); err != nil {
			log.Warnw("Metrics server shutdown failed", "error", err)
		} else {
			log.Info("✓ Metrics server stopped")
		}
		httpCancel()
	}

	// ========================================
	// Step 2: Close Kafka Consumer
	// Close BEFORE waiting for goroutines to unblock ReadMessage()
	// ========================================
	log.Info("[2/7] Closing Kafka consumer...")
	if eventConsumer != nil {
		if err := eventConsumer.Close(); err != nil {
			log.Warnw("Kafka consumer close failed", "error", err)
		} else {
			log.Info("✓ Kafka consumer closed")
		}
	}

	// ========================================
	// Step 3: Wait for Goroutines
	// ========================================
	log.Info("[3/7] Waiting for goroutines...")
	l.waitForGoroutines(wg, 5*time.Second, log)

	// ========================================
	// Step 4: Close Kafka Producer
	// ========================================
	log.Info("[4/7] Closing Kafka producer...")
	if kafkaProducer != nil {
		if err := kafkaProducer.Close(); err != nil {
			log.Warnw("Kafka producer close failed", "error", err)
		} else {
			log.Info("✓ Kafka producer closed")
		}
	}

	// ========================================
	// Step 5: Report Model Spend
	// ========================================
	log.Info("[5/7] Summarizing model costs...")
	l.logCosts(costs, log)

	// ========================================
	// Step 6: Flush Error Tracker and Logs
	// ========================================
	log.Info("[6/7] Flushing error tracker and logs...")
	l.flushErrorTracker(shutdownCtx, errorTracker, log)
	if err := logger.Sync(); err != nil {
		log.Debug("Log sync completed with warnings")
	}

	// ========================================
	// Step 7: Close Cache Connection
	// ========================================
	log.Info("[7/7] Closing cache connection...")
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Warnw("Redis close failed", "error", err)
		} else {
			log.Info("✓ Redis connection closed")
		}
	}

	log.Info("✅ Graceful shutdown complete")
}

// waitForGoroutines waits for all goroutines with a timeout
func (l *Lifecycle) waitForGoroutines(wg *sync.WaitGroup, timeout time.Duration, log *logger.Logger) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info("✓ All goroutines finished")
	case <-time.After(timeout):
		log.Warnw("⚠ Some goroutines did not finish within timeout", "timeout", timeout)
	}
}

// flushErrorTracker flushes the error tracker (Sentry, etc.)
func (l *Lifecycle) flushErrorTracker(ctx context.Context, tracker errors.Tracker, log *logger.Logger) {
	if tracker == nil {
		return
	}
	if counter, ok := tracker.(interface{ Dropped() int64 }); ok {
		if n := counter.Dropped(); n > 0 {
			log.Warnw("Error tracking disabled, errors were not reported", "dropped", n)
		}
		return
	}

	flushCtx, flushCancel := context.WithTimeout(ctx, 3*time.Second)
	defer flushCancel()

	if err := tracker.Flush(flushCtx); err != nil {
		log.Warnw("Error tracker flush failed", "error", err)
	} else {
		log.Info("✓ Error tracker flushed")
	}
}

// logCosts writes one line per model that was called during the process.
func (l *Lifecycle) logCosts(costs *agents.CostTracker, log *logger.Logger) {
	if costs == nil {
		return
	}

	for _, c := range costs.Models() {
		log.Infow("Model usage",
			"model", c.Model,
			"calls", c.CallCount,
			"input_tokens", c.InputTokens,
			"output_tokens", c.OutputTokens,
			"cost_usd", c.Spend.StringFixed(4),
		)
	}
	log.Infow("✓ Total model spend", "cost_usd", costs.Total().StringFixed(4))
}
