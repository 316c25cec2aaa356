package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	models "PaperTune/internal/domain/models"
	domrepo "PaperTune/internal/domain/repository"
	icache "PaperTune/internal/service/cache"
	"PaperTune/internal/service/ratelimit"
	"PaperTune/internal/usecase"
	xhttp "PaperTune/pkg/http"
	xlogger "PaperTune/pkg/logger"
	"PaperTune/pkg/util"

	"github.com/labstack/echo/v4"
)

// SnapshotReader serves the latest cached indicator snapshots per
// timeframe for a ticker.
type SnapshotReader interface {
	LatestAll(ctx context.Context, ticker string) (map[domrepo.Timeframe]*models.IndicatorSnapshot, error)
}

// SignalsHandler serves the trim signal history and the on-demand
// evaluation endpoint.
type SignalsHandler struct {
	logger    *xlogger.Logger
	store     domrepo.SignalStore
	evaluator *usecase.TrimEvaluator
	snapshots SnapshotReader
	cache     icache.BytesCache
	rl        *ratelimit.Limiter
}

func NewSignalsHandler(logger *xlogger.Logger, store domrepo.SignalStore, evaluator *usecase.TrimEvaluator) *SignalsHandler {
	return &SignalsHandler{logger: logger, store: store, evaluator: evaluator, rl: ratelimit.New()}
}

// SetCache injects a response cache for the history endpoint.
func (h *SignalsHandler) SetCache(c icache.BytesCache) { h.cache = c }

// SetSnapshots injects the snapshot reader behind the snapshots endpoint.
func (h *SignalsHandler) SetSnapshots(r SnapshotReader) { h.snapshots = r }

func (h *SignalsHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/signals", h.History)
	g.GET("/snapshots/:ticker", h.Snapshots)
	g.POST("/evaluate", h.Evaluate)
}

// History returns stored trim signals for a ticker, newest first.
func (h *SignalsHandler) History(c echo.Context) error {
	req := &models.SignalHistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	now := time.Now().UTC()
	from := util.ParseTimeDefault(req.From, now.AddDate(0, 0, -7))
	to := util.ParseTimeDefault(req.To, now)
	from, to = util.AlignFromTo(from, to, string(domrepo.TF1h))
	if !from.Before(to) {
		return xhttp.BadRequestResponse(c, "from must be before to")
	}

	cacheKey := "signals:" + req.Ticker + ":" + from.Format(time.RFC3339) + ":" + to.Format(time.RFC3339)
	if h.cache != nil {
		if b, ok, err := h.cache.GetBytes(cacheKey); err != nil {
			h.logger.Warn("signals history cache get failed", xlogger.Error(err))
		} else if ok {
			return xhttp.SuccessResponse(c, json.RawMessage(b))
		}
	}

	rows, err := h.store.Query(c.Request().Context(), req.Ticker, from, to, req.Limit)
	if err != nil {
		h.logger.Error("signals history query failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	if h.cache != nil {
		if b, err := json.Marshal(&xhttp.ListDataResponse{Rows: rows, Total: int64(len(rows))}); err == nil {
			if err := h.cache.SetBytes(cacheKey, b, 30*time.Second); err != nil {
				h.logger.Warn("signals history cache set failed", xlogger.Error(err))
			}
		}
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

// Snapshots returns the latest cached indicator snapshot per
// timeframe for a ticker.
func (h *SignalsHandler) Snapshots(c echo.Context) error {
	if h.snapshots == nil {
		return xhttp.NotFoundResponse(c, "snapshot cache not configured")
	}
	ticker := c.Param("ticker")
	if ticker == "" {
		return xhttp.BadRequestResponse(c, "ticker is required")
	}

	snaps, err := h.snapshots.LatestAll(c.Request().Context(), ticker)
	if err != nil {
		h.logger.Error("snapshot lookup failed",
			xlogger.String("ticker", ticker), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, snaps)
}

// Evaluate scores a ticker against its latest snapshots right now,
// bypassing the stream cadence.
func (h *SignalsHandler) Evaluate(c echo.Context) error {
	req := &models.EvaluateRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.rl.Allow(c.RealIP()+":evaluate", 5, 1) {
		return xhttp.DataResponse(c, http.StatusTooManyRequests, "rate limited")
	}

	ev, err := h.evaluator.Evaluate(c.Request().Context(), req.Ticker)
	if err != nil {
		h.logger.Error("on-demand evaluate failed",
			xlogger.String("ticker", req.Ticker), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, ev)
}
