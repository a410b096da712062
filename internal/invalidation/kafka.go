package invalidation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageWriter is implemented by *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// MessageReader is implemented by *kafka.Reader.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// KafkaPublisher writes signals to a Kafka topic.
type KafkaPublisher struct {
	writer MessageWriter
}

// NewKafkaWriter builds the writer used by KafkaPublisher.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}
}

// NewKafkaPublisher wraps writer.
func NewKafkaPublisher(writer MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: writer}
}

func (p *KafkaPublisher) Publish(ctx context.Context, sig Signal) error {
	body, err := json.Marshal(sig)
	if err != nil {
		return fmt.Errorf("failed to marshal invalidation: %w", err)
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(sig.Path),
		Value: body,
		Time:  sig.At,
	}); err != nil {
		return fmt.Errorf("failed to write invalidation to kafka: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NewKafkaReader builds a reader in its own consumer group so every instance sees every signal.
func NewKafkaReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 1 << 20,
	})
}

// KafkaSubscriber replays signals from Kafka into a local sink.
type KafkaSubscriber struct {
	reader MessageReader
	sink   Publisher
	logger *zap.Logger
}

func NewKafkaSubscriber(reader MessageReader, sink Publisher, logger *zap.Logger) *KafkaSubscriber {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KafkaSubscriber{reader: reader, sink: sink, logger: logger}
}

// Run reads until ctx is cancelled or the reader is closed.
func (s *KafkaSubscriber) Run(ctx context.Context) error {
	for {
		msg, err := s.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("failed to read invalidation: %w", err)
		}
		var sig Signal
		if err := json.Unmarshal(msg.Value, &sig); err != nil {
			s.logger.Warn("skipping malformed invalidation", zap.Int64("offset", msg.Offset), zap.Error(err))
			continue
		}
		if err := s.sink.Publish(ctx, sig); err != nil {
			s.logger.Error("failed to apply invalidation", zap.String("path", sig.Path), zap.Error(err))
		}
	}
}

func (s *KafkaSubscriber) Close() error {
	return s.reader.Close()
}
