package kafka

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/IBM/sarama"
	"github.com/eben2468/srcwebsite-sub012/internal/infrastructure/eventbus"
	"go.uber.org/zap"
)

// Envelope is the record value written for every chat event.
type Envelope struct {
	Type       string    `json:"type"`
	SessionID  uint      `json:"session_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

// Sink streams chat domain events to a Kafka topic. Records are keyed by
// session id so one session's events stay ordered within a partition.
type Sink struct {
	producer sarama.SyncProducer
	topic    string
	logger   *zap.Logger
}

// NewProducer dials the brokers with a sync producer.
func NewProducer(brokers []string, sc *sarama.Config) (sarama.SyncProducer, error) {
	return sarama.NewSyncProducer(brokers, sc)
}

// NewSink 创建 Kafka 事件投递器
func NewSink(producer sarama.SyncProducer, topic string, logger *zap.Logger) *Sink {
	if topic == "" {
		topic = "srcchat.events"
	}
	return &Sink{
		producer: producer,
		topic:    topic,
		logger:   logger.With(zap.String("component", "kafka-sink")),
	}
}

// Attach subscribes the sink to every event on bus.
func (s *Sink) Attach(bus eventbus.Bus) func() {
	return bus.Subscribe(eventbus.Wildcard, s.Handle)
}

// Handle writes one event. Failures are logged; chat never blocks on Kafka.
func (s *Sink) Handle(ctx context.Context, ev eventbus.Event) {
	env := Envelope{
		Type:       ev.Type(),
		SessionID:  eventbus.SessionIDOf(ev),
		OccurredAt: ev.Timestamp(),
		Payload:    ev.Payload(),
	}
	value, err := json.Marshal(env)
	if err != nil {
		s.logger.Error("Failed to encode event", zap.String("type", ev.Type()), zap.Error(err))
		return
	}

	msg := &sarama.ProducerMessage{
		Topic: s.topic,
		Value: sarama.ByteEncoder(value),
	}
	if env.SessionID != 0 {
		msg.Key = sarama.StringEncoder(strconv.FormatUint(uint64(env.SessionID), 10))
	}

	partition, offset, err := s.producer.SendMessage(msg)
	if err != nil {
		s.logger.Warn("Failed to publish event", zap.String("type", ev.Type()), zap.Error(err))
		return
	}
	s.logger.Debug("Event published",
		zap.String("type", ev.Type()),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
	)
}

// Close flushes and closes the producer.
func (s *Sink) Close() error {
	return s.producer.Close()
}
