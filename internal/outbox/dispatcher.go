// Package outbox delivers events recorded in the transactional outbox to Kafka.
package outbox

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(context.Context, string, ...kafka.Message) error
}

type schemaRegistrar interface {
	EnsureSchema(context.Context, string, string) (int, error)
}

// DispatcherConfig tunes the polling loop.
type DispatcherConfig struct {
	PollInterval time.Duration
	BatchSize    int
}

// Dispatcher drains the outbox and delivers events to Kafka using Schema Registry framing.
type Dispatcher struct {
	store            Store
	producer         messageWriter
	registry         schemaRegistrar
	cfg              DispatcherConfig
	logger           *slog.Logger
	now              func() time.Time
	shutdownComplete chan struct{}
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(store Store, producer messageWriter, registry schemaRegistrar, cfg DispatcherConfig, logger *slog.Logger) *Dispatcher {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 25
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		store:            store,
		producer:         producer,
		registry:         registry,
		cfg:              cfg,
		logger:           logger.With(slog.String("component", "outbox")),
		now:              time.Now,
		shutdownComplete: make(chan struct{}),
	}
}

// Start launches the polling loop. It should be called in a goroutine.
func (d *Dispatcher) Start(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer func() {
		ticker.Stop()
		close(d.shutdownComplete)
	}()

	for {
		if err := d.processBatch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			d.logger.ErrorContext(ctx, "dispatch batch failed", slog.Any("error", err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Wait waits until dispatcher stops.
func (d *Dispatcher) Wait() {
	<-d.shutdownComplete
}

// processBatch claims one batch and delivers it topic by topic. A topic whose
// write fails has its messages moved to the DLQ; the batch is then marked
// published so the outbox never redelivers it.
func (d *Dispatcher) processBatch(ctx context.Context) error {
	start := d.now()

	messages, err := d.store.Claim(ctx, d.cfg.BatchSize)
	if err != nil {
		return err
	}
	if len(messages) == 0 {
		return nil
	}
	defer func() { batchDuration.Observe(time.Since(start).Seconds()) }()

	var failures []error
	for _, group := range groupByTopic(messages) {
		if err := d.deliver(ctx, group.topic, group.messages); err != nil {
			d.logger.WarnContext(ctx, "delivery failed",
				slog.String("topic", group.topic),
				slog.Int("messages", len(group.messages)),
				slog.Any("error", err),
			)
			failedCounter.Add(float64(len(group.messages)))
			if dlqErr := d.moveToDLQ(ctx, group.messages, err.Error()); dlqErr != nil {
				failures = append(failures, dlqErr)
			}
			continue
		}
		deliveredCounter.Add(float64(len(group.messages)))
	}
	if len(failures) > 0 {
		return errors.Join(failures...)
	}
	return d.store.MarkPublished(ctx, messages)
}

type topicGroup struct {
	topic    string
	messages []Message
}

// groupByTopic keeps first-seen topic order and claim order within a topic.
func groupByTopic(messages []Message) []topicGroup {
	index := make(map[string]int)
	groups := make([]topicGroup, 0)
	for _, msg := range messages {
		i, ok := index[msg.Topic]
		if !ok {
			i = len(groups)
			index[msg.Topic] = i
			groups = append(groups, topicGroup{topic: msg.Topic})
		}
		groups[i].messages = append(groups[i].messages, msg)
	}
	return groups
}

func (d *Dispatcher) deliver(ctx context.Context, topic string, messages []Message) error {
	records := make([]kafka.Message, 0, len(messages))
	for _, msg := range messages {
		schema, ok := schemaCatalog[msg.EventType]
		if !ok {
			return fmt.Errorf("no schema metadata for event_type=%s", msg.EventType)
		}
		schemaID, err := d.registry.EnsureSchema(ctx, msg.SchemaSubject, schema)
		if err != nil {
			return err
		}
		records = append(records, kafka.Message{
			Key:   []byte(msg.PartitionKey),
			Value: encodeWireFormat(schemaID, msg.Payload),
			Time:  d.now().UTC(),
			Headers: []kafka.Header{
				{Key: "event_type", Value: []byte(msg.EventType)},
				{Key: "tenant_id", Value: []byte(msg.TenantID)},
				{Key: "schema_subject", Value: []byte(msg.SchemaSubject)},
			},
		})
	}
	return d.producer.WriteMessages(ctx, topic, records...)
}

func (d *Dispatcher) moveToDLQ(ctx context.Context, messages []Message, reason string) error {
	for _, msg := range messages {
		entryReason := fmt.Sprintf("%s (topic=%s)", reason, msg.Topic)
		if err := d.store.MoveToDLQ(ctx, msg, entryReason); err != nil {
			return err
		}
		dlqCounter.WithLabelValues(msg.Topic).Inc()
	}
	return nil
}

// encodeWireFormat applies Confluent framing: magic byte 0, then the
// big-endian schema id, then the JSON payload.
func encodeWireFormat(schemaID int, payload []byte) []byte {
	frame := make([]byte, 5+len(payload))
	frame[0] = 0
	binary.BigEndian.PutUint32(frame[1:5], uint32(schemaID))
	copy(frame[5:], payload)
	return frame
}
