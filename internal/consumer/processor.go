// Package consumer reads events from Kafka and hands them to domain handlers.
package consumer

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// Reader is the subset of kafka.Reader the processor needs.
type Reader interface {
	FetchMessage(context.Context) (kafka.Message, error)
	CommitMessages(context.Context, ...kafka.Message) error
	Close() error
}

// Handler receives decoded messages.
type Handler interface {
	Handle(context.Context, Message) error
}

// Message is a decoded Kafka record. SchemaID is zero for values that were
// published as plain JSON rather than in Confluent wire format.
type Message struct {
	Topic         string
	Partition     int
	Offset        int64
	Timestamp     time.Time
	Key           string
	EventType     string
	TenantID      string
	SchemaSubject string
	SchemaID      int
	Payload       json.RawMessage
}

// Option configures a Processor.
type Option func(*Processor)

// WithLogger overrides the processor logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithFetchBackoff sets how long to wait after a failed fetch.
func WithFetchBackoff(d time.Duration) Option {
	return func(p *Processor) {
		p.fetchBackoff = d
	}
}

// Processor pulls messages, decodes them and dispatches to a Handler.
// Offsets are committed only after the handler succeeds, so a failing handler
// sees the message again after a rebalance or restart.
type Processor struct {
	reader       Reader
	handler      Handler
	logger       *slog.Logger
	fetchBackoff time.Duration
}

// NewProcessor constructs a Processor.
func NewProcessor(reader Reader, handler Handler, opts ...Option) *Processor {
	p := &Processor{
		reader:       reader,
		handler:      handler,
		logger:       slog.Default(),
		fetchBackoff: time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With(slog.String("component", "consumer"))
	return p
}

// Run blocks until ctx is cancelled.
func (p *Processor) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		msg, err := p.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			p.logger.WarnContext(ctx, "fetch failed", slog.Any("error", err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.fetchBackoff):
			}
			continue
		}

		event, decodeErr := decodeMessage(msg)
		if decodeErr != nil {
			p.logger.WarnContext(ctx, "dropping undecodable message",
				slog.String("topic", msg.Topic),
				slog.Int("partition", msg.Partition),
				slog.Int64("offset", msg.Offset),
				slog.Any("error", decodeErr),
			)
			recordDecodeError(msg.Topic)
			// Malformed messages are committed so they cannot block the partition.
			if commitErr := p.reader.CommitMessages(ctx, msg); commitErr != nil {
				p.logger.ErrorContext(ctx, "commit after decode failure", slog.Any("error", commitErr))
			}
			continue
		}

		if handleErr := p.handler.Handle(ctx, event); handleErr != nil {
			p.logger.ErrorContext(ctx, "handler failed",
				slog.String("event_type", event.EventType),
				slog.String("tenant_id", event.TenantID),
				slog.Int64("offset", event.Offset),
				slog.Any("error", handleErr),
			)
			recordHandlerError(event)
			continue
		}

		if commitErr := p.reader.CommitMessages(ctx, msg); commitErr != nil {
			p.logger.ErrorContext(ctx, "commit failed", slog.Any("error", commitErr))
			continue
		}
		recordProcessed(event)
	}
}

func decodeMessage(msg kafka.Message) (Message, error) {
	event := Message{
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Timestamp: msg.Time,
		Key:       string(msg.Key),
	}
	if v, ok := headerValue(msg, "event_type"); ok {
		event.EventType = string(v)
	}
	if v, ok := headerValue(msg, "tenant_id"); ok {
		event.TenantID = string(v)
	}
	if v, ok := headerValue(msg, "schema_subject"); ok {
		event.SchemaSubject = string(v)
	}

	value := msg.Value
	switch {
	case len(value) == 0:
		return Message{}, errors.New("empty payload")
	case value[0] == 0:
		if len(value) < 5 {
			return Message{}, fmt.Errorf("invalid payload length: %d", len(value))
		}
		if event.EventType == "" {
			return Message{}, errors.New("missing event_type header")
		}
		event.SchemaID = int(binary.BigEndian.Uint32(value[1:5]))
		value = value[5:]
	}

	payload := bytes.TrimSpace(value)
	if !json.Valid(payload) {
		return Message{}, errors.New("payload is not valid JSON")
	}
	event.Payload = json.RawMessage(append([]byte(nil), payload...))
	return event, nil
}

func headerValue(msg kafka.Message, key string) ([]byte, bool) {
	for _, header := range msg.Headers {
		if header.Key == key {
			return header.Value, true
		}
	}
	return nil, false
}
