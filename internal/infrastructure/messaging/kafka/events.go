package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/dockprep/internal/domain/docking"
	"github.com/turtacn/dockprep/pkg/errors"
	"github.com/turtacn/dockprep/pkg/types/common"
)

// Run lifecycle topics.  Dock requests arrive on TopicDockRequested; the
// pipeline publishes the rest.
const (
	TopicDockRequested = "dock.requested"
	TopicRunStarted    = "dock.run.started"
	TopicRunCompleted  = "dock.run.completed"
	TopicRunFailed     = "dock.run.failed"
)

const eventSource = "dockprep"

// EventEnvelope standardizes event messages on the wire.
type EventEnvelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	SchemaVersion string          `json:"schema_version"`
	Payload       json.RawMessage `json:"payload"`
}

func NewEventEnvelope(eventType string, payload interface{}) (*EventEnvelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeMessagingError, "failed to encode event payload")
	}
	return &EventEnvelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		Source:        eventSource,
		Timestamp:     time.Now().UTC(),
		SchemaVersion: "1.0",
		Payload:       raw,
	}, nil
}

func (e *EventEnvelope) DecodePayload(target interface{}) error {
	if err := json.Unmarshal(e.Payload, target); err != nil {
		return errors.Wrap(err, errors.CodeMessagingError, "failed to decode event payload")
	}
	return nil
}

// ToMessage serializes the envelope, keyed so one run's events keep order.
func (e *EventEnvelope) ToMessage(topic, key string) (*common.ProducerMessage, error) {
	value, err := json.Marshal(e)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeMessagingError, "failed to encode event envelope")
	}
	return &common.ProducerMessage{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
		Headers: map[string]string{
			"event_type": e.EventType,
			"event_id":   e.EventID,
		},
	}, nil
}

// DockRequestedPayload asks the worker to execute a full pipeline run.
type DockRequestedPayload struct {
	Accession    string  `json:"accession"`
	LigandSMILES string  `json:"ligand_smiles"`
	CenterX      float64 `json:"center_x"`
	CenterY      float64 `json:"center_y"`
	CenterZ      float64 `json:"center_z"`
	SizeX        float64 `json:"size_x"`
	SizeY        float64 `json:"size_y"`
	SizeZ        float64 `json:"size_z"`
	Scoring      string  `json:"scoring"`
	RequestedAt  time.Time `json:"requested_at"`
}

type RunStartedPayload struct {
	RunID        string    `json:"run_id"`
	RunKey       string    `json:"run_key"`
	Accession    string    `json:"accession"`
	LigandSMILES string    `json:"ligand_smiles"`
	StartedAt    time.Time `json:"started_at"`
}

type RunCompletedPayload struct {
	RunID        string    `json:"run_id"`
	RunKey       string    `json:"run_key"`
	PoseCount    int       `json:"pose_count"`
	BestAffinity float64   `json:"best_affinity"`
	PosePath     string    `json:"pose_path"`
	FinishedAt   time.Time `json:"finished_at"`
}

type RunFailedPayload struct {
	RunID       string    `json:"run_id"`
	RunKey      string    `json:"run_key"`
	FailureCode string    `json:"failure_code"`
	Diagnostic  string    `json:"diagnostic"`
	FinishedAt  time.Time `json:"finished_at"`
}

// EventPublisher emits run lifecycle events.  A nop implementation exists
// for pipelines running without a broker.
type EventPublisher interface {
	RunStarted(ctx context.Context, run *docking.Run) error
	RunCompleted(ctx context.Context, run *docking.Run) error
	RunFailed(ctx context.Context, run *docking.Run) error
}

type eventPublisher struct {
	producer *Producer
}

func NewEventPublisher(producer *Producer) EventPublisher {
	return &eventPublisher{producer: producer}
}

func (p *eventPublisher) publish(ctx context.Context, topic, eventType, key string, payload interface{}) error {
	env, err := NewEventEnvelope(eventType, payload)
	if err != nil {
		return err
	}
	msg, err := env.ToMessage(topic, key)
	if err != nil {
		return err
	}
	return p.producer.Publish(ctx, msg)
}

func (p *eventPublisher) RunStarted(ctx context.Context, run *docking.Run) error {
	started := run.CreatedAt
	if run.StartedAt != nil {
		started = *run.StartedAt
	}
	return p.publish(ctx, TopicRunStarted, "run.started", run.ID.String(), RunStartedPayload{
		RunID:        run.ID.String(),
		RunKey:       run.Key(),
		Accession:    run.Accession,
		LigandSMILES: run.LigandSMILES,
		StartedAt:    started,
	})
}

func (p *eventPublisher) RunCompleted(ctx context.Context, run *docking.Run) error {
	payload := RunCompletedPayload{
		RunID:     run.ID.String(),
		RunKey:    run.Key(),
		PoseCount: run.PoseCount,
		PosePath:  run.PosePath,
	}
	if run.BestAffinity != nil {
		payload.BestAffinity = *run.BestAffinity
	}
	if run.FinishedAt != nil {
		payload.FinishedAt = *run.FinishedAt
	}
	return p.publish(ctx, TopicRunCompleted, "run.completed", run.ID.String(), payload)
}

func (p *eventPublisher) RunFailed(ctx context.Context, run *docking.Run) error {
	payload := RunFailedPayload{
		RunID:       run.ID.String(),
		RunKey:      run.Key(),
		FailureCode: run.FailureCode,
		Diagnostic:  run.Diagnostic,
	}
	if run.FinishedAt != nil {
		payload.FinishedAt = *run.FinishedAt
	}
	return p.publish(ctx, TopicRunFailed, "run.failed", run.ID.String(), payload)
}

// NopEventPublisher drops all events.
type NopEventPublisher struct{}

func (NopEventPublisher) RunStarted(context.Context, *docking.Run) error   { return nil }
func (NopEventPublisher) RunCompleted(context.Context, *docking.Run) error { return nil }
func (NopEventPublisher) RunFailed(context.Context, *docking.Run) error    { return nil }
