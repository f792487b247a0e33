package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink forwards lifecycle events to a topic, keyed by ticket id so one
// ticket's events stay ordered within a partition.
type KafkaSink struct {
	writer messageWriter
	logger *zap.Logger
}

// NewKafkaSink returns nil when no brokers are configured.
func NewKafkaSink(brokers []string, topic string, logger *zap.Logger) *KafkaSink {
	if len(brokers) == 0 || topic == "" {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 10 * time.Millisecond,
			Async:        true,
			Completion:   completionLogger(logger),
		},
		logger: logger,
	}
}

// completionLogger reports delivery failures of the async writer.
func completionLogger(logger *zap.Logger) func([]kafka.Message, error) {
	return func(messages []kafka.Message, err error) {
		if err == nil {
			return
		}
		logger.Warn("event delivery failed", zap.Int("messages", len(messages)), zap.Error(err))
	}
}

// Register subscribes the sink to every lifecycle event.
func (s *KafkaSink) Register(dispatcher Dispatcher) {
	if s == nil || dispatcher == nil {
		return
	}
	for _, eventType := range AllEventTypes() {
		dispatcher.Subscribe(eventType, s.Handle)
	}
}

// Handle enqueues one event; the writer delivers in the background.
func (s *KafkaSink) Handle(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(event.TicketID),
		Value: body,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	s.logger.Debug("event forwarded", zap.String("event_type", string(event.Type)), zap.String("ticket_id", event.TicketID))
	return nil
}

// Close flushes pending messages.
func (s *KafkaSink) Close() error {
	if s == nil {
		return nil
	}
	return s.writer.Close()
}
