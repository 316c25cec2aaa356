package usecase

import (
	"context"

	"PaperTune/internal/domain/models"
	domrepo "PaperTune/internal/domain/repository"
	mid "PaperTune/internal/middleware"
)

// SnapshotCollector drains the live snapshot stream into the
// processor, via the buffering pipeline when one is configured.
type SnapshotCollector struct {
	stream  domrepo.SnapshotStream
	proc    *SnapshotProcessor
	metrics domrepo.Metrics
	pipe    *mid.SnapshotPipeline
}

func NewSnapshotCollector(stream domrepo.SnapshotStream, proc *SnapshotProcessor, metrics domrepo.Metrics, pipe *mid.SnapshotPipeline) *SnapshotCollector {
	return &SnapshotCollector{stream: stream, proc: proc, metrics: metrics, pipe: pipe}
}

// IsConnected returns true if the snapshot stream is connected.
func (c *SnapshotCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

func (c *SnapshotCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	if c.pipe != nil {
		c.pipe.Start(ctx)
	}
	snapCh, errCh := c.stream.Read(ctx)
	go c.consume(ctx, snapCh, errCh)
	return nil
}

func (c *SnapshotCollector) consume(ctx context.Context, snapCh <-chan *models.IndicatorSnapshot, errCh <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-errCh:
			if err != nil {
				c.metrics.RecordError("stream")
				_ = c.stream.Reconnect(ctx)
			}
		case s := <-snapCh:
			if s == nil {
				continue
			}
			if c.pipe != nil {
				_ = c.pipe.Process(ctx, s)
			} else {
				_ = c.proc.Process(ctx, s)
			}
		}
	}
}

// Shutdown stops pipeline and closes stream.
func (c *SnapshotCollector) Shutdown(ctx context.Context) error {
	if c.pipe != nil {
		c.pipe.Stop()
	}
	return c.stream.Close()
}
