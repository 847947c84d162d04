package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Writer is the part of *kafka.Writer the notifier uses.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier publishes messages as JSON to one topic, keyed by user id so a
// user's messages stay ordered on one partition.
type KafkaNotifier struct {
	writer Writer
	log    *zap.Logger
}

func NewKafkaNotifier(brokers []string, topic string, log *zap.Logger) *KafkaNotifier {
	return &KafkaNotifier{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
		},
		log: log,
	}
}

// NewKafkaNotifierWithWriter wraps a custom writer.
func NewKafkaNotifierWithWriter(w Writer, log *zap.Logger) *KafkaNotifier {
	return &KafkaNotifier{writer: w, log: log}
}

func (n *KafkaNotifier) Notify(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	err = n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(msg.UserID, 10)),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(msg.Kind)},
		},
	})
	if err != nil {
		n.log.Error("kafka write failed", zap.String("kind", string(msg.Kind)), zap.Int64("user_id", msg.UserID), zap.Error(err))
		return fmt.Errorf("publish notification: %w", err)
	}
	n.log.Debug("notification published", zap.String("kind", string(msg.Kind)), zap.Int64("user_id", msg.UserID))
	return nil
}

func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}
