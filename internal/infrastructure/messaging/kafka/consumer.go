package kafka

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/turtacn/dockprep/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/dockprep/pkg/errors"
)

// DockRequestHandler processes one decoded dock request.  Returning an error
// triggers a bounded retry before the message is skipped.
type DockRequestHandler func(ctx context.Context, req DockRequestedPayload) error

type ConsumerConfig struct {
	Brokers    []string      `mapstructure:"brokers"`
	GroupID    string        `mapstructure:"group_id"`
	Topic      string        `mapstructure:"topic"`
	MaxRetries int           `mapstructure:"max_retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
	MinBytes   int           `mapstructure:"min_bytes"`
	MaxBytes   int           `mapstructure:"max_bytes"`
	MaxWait    time.Duration `mapstructure:"max_wait"`
}

func applyConsumerDefaults(cfg *ConsumerConfig) {
	if cfg.Topic == "" {
		cfg.Topic = TopicDockRequested
	}
	if cfg.GroupID == "" {
		cfg.GroupID = "dockprep-workers"
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	if cfg.MinBytes == 0 {
		cfg.MinBytes = 1
	}
	if cfg.MaxBytes == 0 {
		cfg.MaxBytes = 10 * 1024 * 1024
	}
	if cfg.MaxWait == 0 {
		cfg.MaxWait = 500 * time.Millisecond
	}
}

// ReaderInterface abstracts kafka.Reader for testing.
type ReaderInterface interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer pulls dock requests off the broker and hands them to a worker
// handler, committing offsets only after the handler settles.
type Consumer struct {
	reader  ReaderInterface
	config  ConsumerConfig
	handler DockRequestHandler
	logger  logging.Logger
	closed  atomic.Bool

	processed atomic.Int64
	skipped   atomic.Int64
}

func NewConsumer(cfg ConsumerConfig, handler DockRequestHandler, logger logging.Logger) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New(errors.CodeValidation, "kafka brokers required")
	}
	if handler == nil {
		return nil, errors.New(errors.CodeValidation, "handler required")
	}
	applyConsumerDefaults(&cfg)

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: cfg.MinBytes,
		MaxBytes: cfg.MaxBytes,
		MaxWait:  cfg.MaxWait,
	})
	return &Consumer{reader: reader, config: cfg, handler: handler, logger: logger}, nil
}

// NewConsumerWithReader builds a Consumer over a supplied reader.  Test use.
func NewConsumerWithReader(reader ReaderInterface, cfg ConsumerConfig, handler DockRequestHandler, logger logging.Logger) *Consumer {
	applyConsumerDefaults(&cfg)
	return &Consumer{reader: reader, config: cfg, handler: handler, logger: logger}
}

// Run consumes until the context is cancelled or Close is called.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || c.closed.Load() {
				return nil
			}
			return errors.Wrap(err, errors.CodeMessagingError, "failed to fetch message")
		}

		c.handleMessage(ctx, msg)

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, errors.CodeMessagingError, "failed to commit offset")
		}
	}
}

func (c *Consumer) handleMessage(ctx context.Context, msg kafka.Message) {
	var env EventEnvelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		c.skipped.Add(1)
		c.logger.Warn("skipping undecodable message",
			logging.String("topic", msg.Topic), logging.Err(err))
		return
	}
	var req DockRequestedPayload
	if err := env.DecodePayload(&req); err != nil {
		c.skipped.Add(1)
		c.logger.Warn("skipping message with bad payload",
			logging.String("event_id", env.EventID), logging.Err(err))
		return
	}

	var err error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.config.RetryDelay):
			}
		}
		if err = c.handler(ctx, req); err == nil {
			c.processed.Add(1)
			return
		}
		if permanentFailure(err) {
			c.skipped.Add(1)
			c.logger.Error("dock request failed permanently, not retrying",
				logging.String("event_id", env.EventID),
				logging.String("code", errors.GetCode(err).String()),
				logging.Err(err))
			return
		}
		c.logger.Warn("dock request handler failed",
			logging.String("event_id", env.EventID),
			logging.Int("attempt", attempt+1),
			logging.Err(err))
	}

	c.skipped.Add(1)
	c.logger.Error("dock request abandoned after retries",
		logging.String("event_id", env.EventID),
		logging.Err(err))
}

// permanentFailure reports whether a handler error can never succeed on a
// redelivery: malformed input is rejected once, and engine verdicts
// (timeout, crash, corrupt output, no viable ligand variant) are surfaced to
// the run record rather than silently re-executed.  Only transient
// infrastructure failures go back through the retry loop.
func permanentFailure(err error) bool {
	if errors.IsValidation(err) {
		return true
	}
	switch errors.GetCode(err) {
	case errors.CodeEngineNotFound, errors.CodeEngineTimeout,
		errors.CodeEngineExecution, errors.CodeMalformedOutput,
		errors.CodeNoValidVariant, errors.CodeConformerGeneration,
		errors.CodeLigandEncoding, errors.CodeProtonationUnavailable:
		return true
	}
	return false
}

func (c *Consumer) Processed() int64 { return c.processed.Load() }
func (c *Consumer) Skipped() int64   { return c.skipped.Load() }

func (c *Consumer) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.reader.Close()
}
