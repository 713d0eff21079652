package events

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"advisor/pkg/errors"
)

// Event types carried in BaseEvent.Type.
const (
	TypeStageCompleted = "stage.completed"
	TypeRunFinished    = "run.finished"
)

const (
	eventSource  = "advisor_pipeline"
	eventVersion = "1.0"
)

// BaseEvent is the common header of every pipeline event.
type BaseEvent struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	Version   string    `json:"version"`
}

// EventType is sent as the Kafka event type header.
func (b BaseEvent) EventType() string {
	return b.Type
}

// NewBaseEvent creates a header with a fresh ID.
func NewBaseEvent(eventType string, now time.Time) BaseEvent {
	return BaseEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: now.UTC(),
		Source:    eventSource,
		Version:   eventVersion,
	}
}

// StageCompletedEvent carries one stage envelope.
type StageCompletedEvent struct {
	BaseEvent
	RunID      string  `json:"run_id"`
	Stage      string  `json:"stage"`
	Label      string  `json:"label"`
	Turns      int     `json:"turns"`
	ToolCalls  int     `json:"tool_calls"`
	TokensUsed int     `json:"tokens_used"`
	CostUSD    float64 `json:"cost_usd"`
	Partial    bool    `json:"partial"`
	DurationMs int64   `json:"duration_ms"`
	Text       string  `json:"text"`
}

// RunFinishedEvent summarizes a run once it completes or fails.
type RunFinishedEvent struct {
	BaseEvent
	RunID       string   `json:"run_id"`
	State       string   `json:"state"`
	Stages      []string `json:"stages"`
	FailedStage string   `json:"failed_stage,omitempty"`
	Error       string   `json:"error,omitempty"`
	Cause       string   `json:"cause,omitempty"`
	CostUSD     float64  `json:"cost_usd"`
	DurationMs  int64    `json:"duration_ms"`
}

// Envelope is a decoded event of either type.
type Envelope struct {
	Stage *StageCompletedEvent
	Run   *RunFinishedEvent
}

// Decode parses a message value published by Publisher.
func Decode(data []byte) (Envelope, error) {
	var head BaseEvent
	if err := json.Unmarshal(data, &head); err != nil {
		return Envelope{}, errors.Wrapf(errors.ErrInvalidInput, "decode event header: %v", err)
	}

	switch head.Type {
	case TypeStageCompleted:
		var e StageCompletedEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return Envelope{}, errors.Wrapf(errors.ErrInvalidInput, "decode %s: %v", head.Type, err)
		}
		return Envelope{Stage: &e}, nil
	case TypeRunFinished:
		var e RunFinishedEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return Envelope{}, errors.Wrapf(errors.ErrInvalidInput, "decode %s: %v", head.Type, err)
		}
		return Envelope{Run: &e}, nil
	default:
		return Envelope{}, errors.Wrapf(errors.ErrInvalidInput, "unknown event type %q", head.Type)
	}
}

// SanitizeUTF8 drops invalid byte sequences. Tool output scraped from
// filings and web pages is not guaranteed to be valid UTF-8.
func SanitizeUTF8(s string) string {
	return strings.ToValidUTF8(s, "")
}
