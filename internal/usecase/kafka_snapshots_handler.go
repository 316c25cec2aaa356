package usecase

import (
	"context"
	"encoding/json"
	"time"

	"PaperTune/internal/domain/models"
	domrepo "PaperTune/internal/domain/repository"
	pkgkafka "PaperTune/pkg/kafka"
)

// KafkaSnapshotsHandler consumes indicator snapshots published by the
// upstream indicator pipeline and feeds them into the processor.
type KafkaSnapshotsHandler struct {
	topic   string
	proc    *SnapshotProcessor
	metrics domrepo.Metrics
}

func NewKafkaSnapshotsHandler(topic string, proc *SnapshotProcessor, metrics domrepo.Metrics) *KafkaSnapshotsHandler {
	return &KafkaSnapshotsHandler{topic: topic, proc: proc, metrics: metrics}
}

func (h *KafkaSnapshotsHandler) Topic() string { return h.topic }

func (h *KafkaSnapshotsHandler) Handle(ctx context.Context, b []byte) error {
	var s models.IndicatorSnapshot
	if err := json.Unmarshal(b, &s); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	if !s.Timestamp.IsZero() {
		h.metrics.RecordLatency("ingest_e2e_seconds", time.Since(s.Timestamp).Seconds())
	}
	return h.proc.Process(ctx, &s)
}

var _ pkgkafka.MessageHandler = (*KafkaSnapshotsHandler)(nil)
