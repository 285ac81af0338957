package kafkanotify

import (
	"context"
	"encoding/json"

	"github.com/albal/rmtrack/internal/notify"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Notifier публикует StatusChanged в Kafka. Ключ сообщения — идентификатор
// трека, чтобы уведомления по одному треку попадали в одну партицию.
type Notifier struct {
	w     messageWriter
	topic string
}

func New(brokers []string, topic string) *Notifier {
	return &Notifier{
		w: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Balancer: &kafka.LeastBytes{},
		},
		topic: topic,
	}
}

func newWithWriter(w messageWriter, topic string) *Notifier {
	return &Notifier{w: w, topic: topic}
}

func (n *Notifier) Notify(ctx context.Context, change notify.StatusChanged) error {
	b, err := json.Marshal(change)
	if err != nil {
		return errors.Wrap(err, "marshal notification")
	}
	if err := n.w.WriteMessages(ctx, kafka.Message{
		Topic: n.topic,
		Key:   []byte(change.Identifier),
		Value: b,
	}); err != nil {
		return errors.Wrap(err, "kafka publish")
	}
	return nil
}

func (n *Notifier) Close() error {
	return n.w.Close()
}
