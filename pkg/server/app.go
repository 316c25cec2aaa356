package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	domrepo "PaperTune/internal/domain/repository"
	"PaperTune/internal/usecase"
	pkgch "PaperTune/pkg/clickhouse"
	"PaperTune/pkg/config"
	xhttp "PaperTune/pkg/http"
	pkgkafka "PaperTune/pkg/kafka"
	applogger "PaperTune/pkg/logger"
	"PaperTune/pkg/queue"

	"github.com/jackc/pgx/v5/pgxpool"
)

// App encapsulates the entire application lifecycle: snapshot ingest,
// the periodic tuner pass, the alert queue workers, and the review API.
type App struct {
	cfg        *config.Config
	logger     *applogger.Logger
	collector  *usecase.SnapshotCollector
	consumer   *pkgkafka.Consumer
	kh         pkgkafka.MessageHandler
	tuner      *usecase.Tuner
	alertQueue *queue.RedisQueue
	httpServer *xhttp.Server

	// infrastructure closed on shutdown
	chClient    *pkgch.Client
	pgPool      *pgxpool.Pool
	adjustments domrepo.AdjustmentStore
	signals     domrepo.SignalStore
	notifier    domrepo.Notifier
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	logger *applogger.Logger,
	collector *usecase.SnapshotCollector,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	tuner *usecase.Tuner,
	alertQueue *queue.RedisQueue,
	httpHandler xhttp.Handler,
	chClient *pkgch.Client,
	pgPool *pgxpool.Pool,
	adjustments domrepo.AdjustmentStore,
	signals domrepo.SignalStore,
	notifier domrepo.Notifier,
) *App {
	a := &App{
		cfg:         cfg,
		logger:      logger,
		collector:   collector,
		consumer:    consumer,
		kh:          kh,
		tuner:       tuner,
		alertQueue:  alertQueue,
		chClient:    chClient,
		pgPool:      pgPool,
		adjustments: adjustments,
		signals:     signals,
		notifier:    notifier,
	}
	a.httpServer = xhttp.NewServer(httpHandler,
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
	)
	return a
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := a.logger

	// Alert queue workers come up first so ingest can publish from the
	// first snapshot.
	if a.alertQueue != nil {
		if err := a.alertQueue.Start(); err != nil {
			l.Error("alert queue start error", applogger.Error(err))
		} else {
			l.Info("alert queue workers started", applogger.Int("workers", a.cfg.Alerts.Workers))
		}
	}

	// Snapshot ingest: websocket collector or kafka consumer.
	switch a.cfg.Ingest.Source {
	case "websocket":
		go func() {
			if err := a.collector.Start(ctx); err != nil {
				l.Error("collector error", applogger.Error(err))
			}
		}()
		l.Info("snapshot collector started", applogger.Strings("tickers", a.cfg.Ingest.Tickers))
	case "kafka":
		a.consumer.RegisterHandler(a.kh)
		go func() {
			if err := a.consumer.Start(); err != nil {
				l.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		l.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	// Periodic tuner pass.
	go a.runTunerLoop(ctx)

	if err := a.httpServer.Start(); err != nil {
		l.Error("http server start error", applogger.Error(err))
		return err
	}
	l.Info("http server started", applogger.Int("port", a.cfg.Server.Port))

	// Wait for interrupt
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	l.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// runTunerLoop triggers one tuning pass per configured interval. The
// first pass runs one interval after startup so the trailing window
// is read against a settled store.
func (a *App) runTunerLoop(ctx context.Context) {
	interval := a.cfg.Tuner.Interval
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sum, err := a.tuner.EvaluateAll(ctx)
			if err != nil {
				a.logger.Error("tuner pass error", applogger.Error(err))
				continue
			}
			a.logger.Info("tuner pass complete",
				applogger.Int("proposed", sum.Proposed),
				applogger.Int("applied", sum.Applied))
		}
	}
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	l := a.logger

	if a.collector != nil {
		if err := a.collector.Shutdown(ctx); err != nil {
			l.Warn("collector stop error", applogger.Error(err))
		}
	}
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}
	if a.alertQueue != nil {
		if err := a.alertQueue.Stop(ctx); err != nil {
			l.Warn("alert queue stop error", applogger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		l.Error("http shutdown error", applogger.Error(err))
	}

	if a.signals != nil {
		if err := a.signals.Close(); err != nil {
			l.Warn("signal store close error", applogger.Error(err))
		}
	}
	if a.adjustments != nil {
		if err := a.adjustments.Close(); err != nil {
			l.Warn("adjustment store close error", applogger.Error(err))
		}
	}
	if a.notifier != nil {
		if err := a.notifier.Close(); err != nil {
			l.Warn("notifier close error", applogger.Error(err))
		}
	}
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			l.Warn("clickhouse close error", applogger.Error(err))
		}
	}
	if a.pgPool != nil {
		a.pgPool.Close()
	}

	l.Info("shutdown complete")
	return nil
}
