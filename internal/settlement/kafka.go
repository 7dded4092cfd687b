package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/adlane/settlement/internal/domain"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Publisher writes deal-state-changed events to Kafka.
type Publisher struct {
	writer *kafka.Writer
}

// NewPublisher creates a publisher for the deal events topic.
func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
	}
}

// PublishStateChanged emits one state-changed event keyed by deal id, so all
// events of a deal land on one partition in order.
func (p *Publisher) PublishStateChanged(ctx context.Context, ev StateChanged) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal state change: %w", err)
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(ev.DealID, 10)),
		Value: data,
	})
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

// TransitionRequester sends transition commands to the deal state machine
// over its Kafka command topic.
type TransitionRequester struct {
	writer *kafka.Writer
}

// NewTransitionRequester creates a requester for the transitions topic.
func NewTransitionRequester(brokers []string, topic string) *TransitionRequester {
	return &TransitionRequester{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
	}
}

// Transition publishes one transition command keyed by deal id.
func (t *TransitionRequester) Transition(ctx context.Context, cmd TransitionCommand) error {
	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal transition command: %w", err)
	}
	return t.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(cmd.DealID, 10)),
		Value: data,
	})
}

// Close flushes and closes the underlying writer.
func (t *TransitionRequester) Close() error {
	return t.writer.Close()
}

// messageSource is the slice of the kafka-go reader API the consumer needs.
// *kafka.Reader satisfies it; tests substitute a fake.
type messageSource interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads settlement events and feeds them to the adapter. Delivery is
// at-least-once: a message is committed only once it is handled or rejected as
// permanently invalid, and correctness under redelivery rests on the ledger's
// idempotency keys.
type Consumer struct {
	reader  messageSource
	adapter *Adapter
}

// NewConsumer creates a consumer group reader over the settlement topic.
func NewConsumer(brokers []string, topic, groupID string, adapter *Adapter) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers: brokers,
			Topic:   topic,
			GroupID: groupID,
		}),
		adapter: adapter,
	}
}

// Run consumes until the context is canceled or a transient handler failure
// occurs. Consumer-group commits are high-watermark offsets, so skipping a
// failed message and committing a later one would lose it for good; instead
// the loop stops on the failure and the worker restarts it from the last
// committed offset, redelivering the failed event.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("fetch settlement event: %w", err)
		}

		var env Envelope
		if err := json.Unmarshal(msg.Value, &env); err != nil {
			// A permanently malformed message would wedge the partition;
			// log it and move past.
			zap.L().Error("malformed settlement event, skipping",
				zap.Int64("offset", msg.Offset), zap.Error(err))
			if err := c.reader.CommitMessages(ctx, msg); err != nil {
				return fmt.Errorf("commit malformed message: %w", err)
			}
			continue
		}

		if err := c.adapter.Handle(ctx, env); err != nil {
			// Validation failures never heal on retry; treat them like
			// malformed messages. Anything else must be redelivered.
			if errors.Is(err, domain.ErrValidation) {
				zap.L().Error("invalid settlement event, skipping",
					zap.String("type", env.Type),
					zap.Int64("deal_id", env.DealID),
					zap.Int64("offset", msg.Offset),
					zap.Error(err))
				if err := c.reader.CommitMessages(ctx, msg); err != nil {
					return fmt.Errorf("commit invalid message: %w", err)
				}
				continue
			}
			return fmt.Errorf("handle settlement event for deal %d at offset %d: %w", env.DealID, msg.Offset, err)
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			return fmt.Errorf("commit settlement event: %w", err)
		}
	}
}

// Close closes the underlying reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
