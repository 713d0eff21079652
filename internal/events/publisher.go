package events

import (
	"context"
	"time"

	"advisor/internal/adapters/kafka"
	"advisor/internal/pipeline"
	"advisor/pkg/errors"
	"advisor/pkg/logger"
)

var _ pipeline.EventSink = (*Publisher)(nil)

// Producer writes a keyed event to a topic.
type Producer interface {
	Publish(ctx context.Context, topic string, key string, event interface{}) error
}

// Topics names the destinations of each event type.
type Topics struct {
	Stage string
	Run   string
}

// DefaultTopics returns the standard topic names.
func DefaultTopics() Topics {
	return Topics{Stage: kafka.TopicStageCompleted, Run: kafka.TopicRunFinished}
}

// Publisher publishes pipeline events to Kafka. Events are keyed by run ID
// so a consumer sees one run's stages in order.
type Publisher struct {
	producer Producer
	topics   Topics
	now      func() time.Time
	log      *logger.Logger
}

// NewPublisher creates a new event publisher.
func NewPublisher(producer Producer, topics Topics, log *logger.Logger) *Publisher {
	defaults := DefaultTopics()
	if topics.Stage == "" {
		topics.Stage = defaults.Stage
	}
	if topics.Run == "" {
		topics.Run = defaults.Run
	}
	if log == nil {
		log = logger.Get()
	}
	return &Publisher{
		producer: producer,
		topics:   topics,
		now:      time.Now,
		log:      log.With("component", "event_publisher"),
	}
}

// StageCompleted publishes a stage envelope.
func (p *Publisher) StageCompleted(ctx context.Context, runID string, out pipeline.StageOutput) error {
	event := StageCompletedEvent{
		BaseEvent:  NewBaseEvent(TypeStageCompleted, p.now()),
		RunID:      runID,
		Stage:      string(out.Stage),
		Label:      out.Label,
		Turns:      out.Turns,
		ToolCalls:  out.ToolCalls,
		TokensUsed: out.TokensUsed,
		CostUSD:    out.CostUSD,
		Partial:    out.Partial,
		DurationMs: out.Duration.Milliseconds(),
		Text:       SanitizeUTF8(out.Text),
	}
	return p.publish(ctx, p.topics.Stage, runID, event)
}

// RunFinished publishes the terminal state of a run.
func (p *Publisher) RunFinished(ctx context.Context, run *pipeline.Run) error {
	event := RunFinishedEvent{
		BaseEvent:   NewBaseEvent(TypeRunFinished, p.now()),
		RunID:       run.ID,
		State:       string(run.State),
		FailedStage: string(run.FailedStage),
		CostUSD:     run.TotalCost(),
		DurationMs:  run.FinishedAt.Sub(run.StartedAt).Milliseconds(),
	}
	for _, o := range run.Outputs {
		event.Stages = append(event.Stages, string(o.Stage))
	}
	if run.Err != nil {
		event.Error = SanitizeUTF8(run.Err.Error())
		event.Cause = errors.Category(run.Err)
	}
	return p.publish(ctx, p.topics.Run, run.ID, event)
}

func (p *Publisher) publish(ctx context.Context, topic, key string, event interface{}) error {
	if err := p.producer.Publish(ctx, topic, key, event); err != nil {
		p.log.Warnw("Failed to publish event", "topic", topic, "run_id", key, "error", err)
		return errors.Wrap(err, "send to kafka")
	}
	p.log.Debugw("Event published", "topic", topic, "run_id", key)
	return nil
}
