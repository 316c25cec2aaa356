package api

import (
	"errors"
	"strconv"

	models "PaperTune/internal/domain/models"
	domrepo "PaperTune/internal/domain/repository"
	"PaperTune/internal/usecase"
	xhttp "PaperTune/pkg/http"
	xlogger "PaperTune/pkg/logger"

	"github.com/labstack/echo/v4"
)

// AdjustmentsHandler exposes the review workflow: listing proposals,
// approving or reverting them, forcing a tuner pass, applying approved
// adjustments, and reading effective strategy parameters.
type AdjustmentsHandler struct {
	logger *xlogger.Logger
	store  domrepo.AdjustmentStore
	tuner  *usecase.Tuner
}

func NewAdjustmentsHandler(logger *xlogger.Logger, store domrepo.AdjustmentStore, tuner *usecase.Tuner) *AdjustmentsHandler {
	return &AdjustmentsHandler{logger: logger, store: store, tuner: tuner}
}

func (h *AdjustmentsHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/adjustments", h.List)
	g.POST("/adjustments/:id/approve", h.Approve)
	g.POST("/adjustments/:id/revert", h.Revert)
	g.POST("/tuner/run", h.Run)
	g.POST("/tuner/apply", h.Apply)
	g.GET("/strategies/:name/params", h.EffectiveParams)
}

// List returns adjustments filtered by status, defaulting to pending.
func (h *AdjustmentsHandler) List(c echo.Context) error {
	req := &models.ListAdjustmentsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	rows, err := h.store.ListByStatus(c.Request().Context(), models.AdjustmentStatus(req.Status))
	if err != nil {
		h.logger.Error("adjustments list failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

// Approve moves a pending adjustment to approved.
func (h *AdjustmentsHandler) Approve(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return xhttp.BadRequestResponse(c, "invalid adjustment id")
	}
	req := &models.ReviewRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	adj, err := h.tuner.Approve(c.Request().Context(), id, req.Reviewer)
	if err != nil {
		return h.reviewError(c, "approve", id, err)
	}
	return xhttp.SuccessResponse(c, adj)
}

// Revert moves a pending or approved adjustment to reverted.
func (h *AdjustmentsHandler) Revert(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return xhttp.BadRequestResponse(c, "invalid adjustment id")
	}
	req := &models.ReviewRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	adj, err := h.tuner.Revert(c.Request().Context(), id, req.Reviewer)
	if err != nil {
		return h.reviewError(c, "revert", id, err)
	}
	return xhttp.SuccessResponse(c, adj)
}

// Run forces a tuner evaluation pass outside the schedule.
func (h *AdjustmentsHandler) Run(c echo.Context) error {
	sum, err := h.tuner.EvaluateAll(c.Request().Context())
	if err != nil {
		h.logger.Error("tuner run failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, sum)
}

// Apply transitions all approved adjustments to applied.
func (h *AdjustmentsHandler) Apply(c echo.Context) error {
	applied, err := h.tuner.ApplyApproved(c.Request().Context())
	if err != nil {
		h.logger.Error("tuner apply failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, applied, int64(len(applied)))
}

// EffectiveParams returns defaults folded with applied adjustments.
func (h *AdjustmentsHandler) EffectiveParams(c echo.Context) error {
	name := c.Param("name")
	if name == "" {
		return xhttp.BadRequestResponse(c, "strategy name required")
	}

	params, err := h.tuner.EffectiveParams(c.Request().Context(), name)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return xhttp.NotFoundResponse(c, "unknown strategy: "+name)
		}
		h.logger.Error("effective params failed",
			xlogger.String("strategy", name), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"strategy": name,
		"params":   params,
	})
}

func (h *AdjustmentsHandler) reviewError(c echo.Context, action string, id int64, err error) error {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return xhttp.NotFoundResponse(c, "adjustment not found")
	case errors.Is(err, models.ErrConflict):
		return xhttp.AppErrorResponse(c,
			xhttp.ConflictError("adjustment status changed since it was read").WithError(err))
	default:
		h.logger.Error("adjustment review failed",
			xlogger.String("action", action), xlogger.Int64("id", id), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
}

func parseID(c echo.Context) (int64, error) {
	return strconv.ParseInt(c.Param("id"), 10, 64)
}
