package repository

import (
	"context"
	"time"

	domrepo "PaperTune/internal/domain/repository"
	pkgkafka "PaperTune/pkg/kafka"
)

// KafkaNotifier publishes plain-text summaries to the notifications
// topic. The Telegram bridge downstream owns formatting and delivery.
type KafkaNotifier struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaNotifier(producer *pkgkafka.Producer, topic string) *KafkaNotifier {
	return &KafkaNotifier{producer: producer, topic: topic}
}

func (n *KafkaNotifier) Notify(ctx context.Context, subject, text string) error {
	return n.producer.Publish(ctx, n.topic, []byte(subject), map[string]interface{}{
		"subject": subject,
		"text":    text,
		"ts":      time.Now().Unix(),
	})
}

func (n *KafkaNotifier) Close() error {
	if n.producer != nil {
		return n.producer.Close()
	}
	return nil
}

var _ domrepo.Notifier = (*KafkaNotifier)(nil)

// KafkaRebuildTrigger asks the live strategy runner to rebuild its
// instances after adjustments were applied, by publishing the
// strategy name to the rebuild topic.
type KafkaRebuildTrigger struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaRebuildTrigger(producer *pkgkafka.Producer, topic string) *KafkaRebuildTrigger {
	return &KafkaRebuildTrigger{producer: producer, topic: topic}
}

func (r *KafkaRebuildTrigger) Rebuild(ctx context.Context, strategy string) error {
	return r.producer.Publish(ctx, r.topic, []byte(strategy), map[string]interface{}{
		"strategy": strategy,
		"ts":       time.Now().Unix(),
	})
}

var _ domrepo.StrategyRebuilder = (*KafkaRebuildTrigger)(nil)
