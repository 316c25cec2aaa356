package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"PaperTune/internal/domain/models"
	domrepo "PaperTune/internal/domain/repository"
	"PaperTune/internal/services/tuning"
	xlogger "PaperTune/pkg/logger"
)

// AutoApplyReviewer is recorded on adjustments the tuner approves and
// applies itself when auto-apply mode is on.
const AutoApplyReviewer = "auto-tuner"

// TunerConfig carries the evaluation pass settings.
type TunerConfig struct {
	WindowDays int
	AutoApply  bool
	Rules      tuning.Config
}

// TuneSummary reports one evaluation pass for external notification.
type TuneSummary struct {
	Proposed    int            `json:"proposed"`
	Applied     int            `json:"applied"`
	PerStrategy map[string]int `json:"per_strategy"`
}

// Tuner evaluates strategy performance and moves proposed parameter
// changes through the review lifecycle. The evaluation pass only
// inserts new PENDING records; review actions are compare-and-set
// transitions, so the pass may run concurrently with reviewers.
type Tuner struct {
	store      domrepo.AdjustmentStore
	perf       domrepo.PerformanceProvider
	notifier   domrepo.Notifier
	rebuilder  domrepo.StrategyRebuilder
	metrics    domrepo.Metrics
	strategies []models.StrategySpec
	cfg        TunerConfig
	logger     *xlogger.Logger
}

func NewTuner(
	store domrepo.AdjustmentStore,
	perf domrepo.PerformanceProvider,
	notifier domrepo.Notifier,
	rebuilder domrepo.StrategyRebuilder,
	metrics domrepo.Metrics,
	strategies []models.StrategySpec,
	cfg TunerConfig,
	logger *xlogger.Logger,
) *Tuner {
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = 7
	}
	return &Tuner{
		store:      store,
		perf:       perf,
		notifier:   notifier,
		rebuilder:  rebuilder,
		metrics:    metrics,
		strategies: strategies,
		cfg:        cfg,
		logger:     logger,
	}
}

// EvaluateAll runs one tuning pass over every known strategy. A
// failure in one strategy never aborts the others; each strategy's
// proposals are computed and persisted independently.
func (t *Tuner) EvaluateAll(ctx context.Context) (*TuneSummary, error) {
	sum := &TuneSummary{PerStrategy: make(map[string]int)}

	for _, spec := range t.strategies {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		perf, err := t.perf.TrailingWindow(ctx, spec.Name, t.cfg.WindowDays)
		if err != nil {
			t.metrics.RecordError("perf_window")
			t.logger.Error("performance window failed", xlogger.String("strategy", spec.Name), xlogger.Error(err))
			continue
		}
		if perf == nil {
			t.logger.Debug("no signals in window", xlogger.String("strategy", spec.Name))
			continue
		}

		effective, err := t.EffectiveParams(ctx, spec.Name)
		if err != nil {
			t.metrics.RecordError("effective_params")
			t.logger.Error("effective params failed", xlogger.String("strategy", spec.Name), xlogger.Error(err))
			continue
		}

		for _, a := range tuning.Propose(spec, perf, effective, t.cfg.Rules) {
			if err := t.store.Insert(ctx, a); err != nil {
				t.metrics.RecordError("adjustment_insert")
				t.logger.Error("insert adjustment failed", xlogger.String("strategy", spec.Name), xlogger.Error(err))
				continue
			}
			t.metrics.RecordProposal(spec.Name, string(a.Trigger))
			sum.Proposed++
			sum.PerStrategy[spec.Name]++
			t.logger.Info("adjustment proposed",
				xlogger.String("strategy", a.StrategyName),
				xlogger.String("param", a.ParameterName),
				xlogger.String("trigger", string(a.Trigger)),
				xlogger.Int64("id", a.ID),
			)
		}
	}

	if t.cfg.AutoApply && sum.Proposed > 0 {
		applied, err := t.autoApply(ctx)
		if err != nil {
			t.logger.Error("auto-apply failed", xlogger.Error(err))
		}
		sum.Applied = applied
	}

	if t.notifier != nil {
		if err := t.notifier.Notify(ctx, "tuner pass", t.summaryText(sum)); err != nil {
			t.metrics.RecordError("notify")
			t.logger.Warn("summary notify failed", xlogger.Error(err))
		}
	}
	return sum, nil
}

// autoApply walks every pending adjustment through approve+apply
// under the same state machine a human reviewer uses.
func (t *Tuner) autoApply(ctx context.Context) (int, error) {
	pending, err := t.store.ListByStatus(ctx, models.StatusPending)
	if err != nil {
		return 0, err
	}
	for _, a := range pending {
		if err := t.store.Transition(ctx, a.ID, models.StatusPending, models.StatusApproved, AutoApplyReviewer, time.Now()); err != nil {
			t.metrics.RecordTransition("approve", "conflict")
			continue
		}
		t.metrics.RecordTransition("approve", "ok")
	}
	applied, err := t.ApplyApproved(ctx)
	return len(applied), err
}

// Approve moves a pending adjustment to approved. A lost race or a
// non-pending record yields models.ErrConflict.
func (t *Tuner) Approve(ctx context.Context, id int64, reviewer string) (*models.Adjustment, error) {
	if err := t.store.Transition(ctx, id, models.StatusPending, models.StatusApproved, reviewer, time.Now()); err != nil {
		t.metrics.RecordTransition("approve", transitionOutcome(err))
		return nil, err
	}
	t.metrics.RecordTransition("approve", "ok")
	return t.store.Get(ctx, id)
}

// Revert moves a pending or approved adjustment to reverted.
func (t *Tuner) Revert(ctx context.Context, id int64, reviewer string) (*models.Adjustment, error) {
	a, err := t.store.Get(ctx, id)
	if err != nil {
		t.metrics.RecordTransition("revert", transitionOutcome(err))
		return nil, err
	}
	if a.Status.Terminal() {
		t.metrics.RecordTransition("revert", "conflict")
		return nil, models.ErrConflict
	}
	if err := t.store.Transition(ctx, id, a.Status, models.StatusReverted, reviewer, time.Now()); err != nil {
		t.metrics.RecordTransition("revert", transitionOutcome(err))
		return nil, err
	}
	t.metrics.RecordTransition("revert", "ok")
	return t.store.Get(ctx, id)
}

// ApplyApproved applies every approved adjustment independently, then
// triggers a strategy rebuild for each affected strategy. Idempotent:
// with nothing newly approved it applies nothing.
func (t *Tuner) ApplyApproved(ctx context.Context) ([]*models.Adjustment, error) {
	approved, err := t.store.ListByStatus(ctx, models.StatusApproved)
	if err != nil {
		return nil, err
	}

	var applied []*models.Adjustment
	touched := make(map[string]bool)
	for _, a := range approved {
		// A revert racing this pass simply drops the record from the
		// batch; other adjustments proceed.
		if err := t.store.Transition(ctx, a.ID, models.StatusApproved, models.StatusApplied, "", time.Now()); err != nil {
			t.metrics.RecordTransition("apply", transitionOutcome(err))
			t.logger.Warn("apply skipped", xlogger.Int64("id", a.ID), xlogger.Error(err))
			continue
		}
		t.metrics.RecordTransition("apply", "ok")
		a.Status = models.StatusApplied
		applied = append(applied, a)
		touched[a.StrategyName] = true
	}

	for strategy := range touched {
		if t.rebuilder == nil {
			break
		}
		if err := t.rebuilder.Rebuild(ctx, strategy); err != nil {
			t.metrics.RecordError("rebuild")
			t.logger.Error("strategy rebuild failed", xlogger.String("strategy", strategy), xlogger.Error(err))
		}
	}

	if len(applied) > 0 && t.notifier != nil {
		text := fmt.Sprintf("applied %d adjustment(s) across %d strategy(ies)", len(applied), len(touched))
		if err := t.notifier.Notify(ctx, "adjustments applied", text); err != nil {
			t.logger.Warn("apply notify failed", xlogger.Error(err))
		}
	}
	return applied, nil
}

// EffectiveParams folds every applied adjustment for a strategy over
// its configured defaults, in chronological review order. Pending,
// approved and reverted adjustments never contribute.
func (t *Tuner) EffectiveParams(ctx context.Context, strategy string) (map[string]float64, error) {
	spec, ok := t.spec(strategy)
	if !ok {
		return nil, models.ErrNotFound
	}
	effective := spec.Defaults()

	applied, err := t.store.ListApplied(ctx, strategy)
	if err != nil {
		return nil, err
	}
	for _, a := range applied {
		if _, known := spec.Param(a.ParameterName); !known {
			t.logger.Warn("applied adjustment for unknown param",
				xlogger.String("strategy", strategy), xlogger.String("param", a.ParameterName))
			continue
		}
		effective[a.ParameterName] = a.NewValue
	}
	return effective, nil
}

// Strategies exposes the configured specs (for handlers).
func (t *Tuner) Strategies() []models.StrategySpec { return t.strategies }

func (t *Tuner) spec(name string) (models.StrategySpec, bool) {
	for _, s := range t.strategies {
		if s.Name == name {
			return s, true
		}
	}
	return models.StrategySpec{}, false
}

func (t *Tuner) summaryText(sum *TuneSummary) string {
	if sum.Proposed == 0 {
		return "tuner pass: no proposals this cycle"
	}
	names := make([]string, 0, len(sum.PerStrategy))
	for name := range sum.PerStrategy {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=%d", name, sum.PerStrategy[name]))
	}
	text := fmt.Sprintf("tuner pass: %d proposal(s) pending review (%s)", sum.Proposed, strings.Join(parts, ", "))
	if sum.Applied > 0 {
		text += fmt.Sprintf("; auto-applied %d", sum.Applied)
	}
	return text
}

func transitionOutcome(err error) string {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return "not_found"
	case errors.Is(err, models.ErrConflict):
		return "conflict"
	default:
		return "error"
	}
}
