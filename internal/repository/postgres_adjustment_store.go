package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"PaperTune/internal/domain/models"
	domrepo "PaperTune/internal/domain/repository"
)

// PostgresAdjustmentStore persists strategy adjustments in Postgres.
// Lifecycle transitions are single-statement compare-and-set updates,
// so two reviewers racing on the same adjustment cannot both win.
type PostgresAdjustmentStore struct {
	pool *pgxpool.Pool
}

func NewPostgresAdjustmentStore(pool *pgxpool.Pool) *PostgresAdjustmentStore {
	return &PostgresAdjustmentStore{pool: pool}
}

const adjustmentColumns = `id, strategy_name, parameter_name, old_value, new_value, reason,
	metric_trigger, metric_value, win_rate_7d, total_pnl_7d, avg_pnl_7d, total_signals_7d,
	status, coalesce(reviewed_by, ''), reviewed_at, created_at`

// Init creates the adjustments table. No external migration tool;
// setup stays a single idempotent statement.
func (s *PostgresAdjustmentStore) Init(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		create table if not exists strategy_adjustments (
			id bigserial primary key,
			strategy_name text not null,
			parameter_name text not null,
			old_value double precision not null,
			new_value double precision not null,
			reason text not null,
			metric_trigger text not null,
			metric_value double precision not null,
			win_rate_7d double precision not null default 0,
			total_pnl_7d double precision not null default 0,
			avg_pnl_7d double precision not null default 0,
			total_signals_7d int not null default 0,
			status text not null default 'pending',
			reviewed_by text,
			reviewed_at timestamptz,
			created_at timestamptz not null default now()
		);`)
	if err != nil {
		return fmt.Errorf("adjustments schema: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		create index if not exists idx_adjustments_strategy_status
		on strategy_adjustments (strategy_name, status);`)
	if err != nil {
		return fmt.Errorf("adjustments index: %w", err)
	}
	return nil
}

func (s *PostgresAdjustmentStore) Insert(ctx context.Context, a *models.Adjustment) error {
	row := s.pool.QueryRow(ctx, `
		insert into strategy_adjustments (
			strategy_name, parameter_name, old_value, new_value, reason,
			metric_trigger, metric_value, win_rate_7d, total_pnl_7d, avg_pnl_7d,
			total_signals_7d, status
		) values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		returning id, created_at`,
		a.StrategyName, a.ParameterName, a.OldValue, a.NewValue, a.Reason,
		string(a.Trigger), a.MetricValue, a.WinRate7d, a.TotalPnL7d, a.AvgPnL7d,
		a.TotalSignals7d, string(models.StatusPending),
	)
	if err := row.Scan(&a.ID, &a.CreatedAt); err != nil {
		return fmt.Errorf("insert adjustment: %w", err)
	}
	a.Status = models.StatusPending
	return nil
}

func (s *PostgresAdjustmentStore) Get(ctx context.Context, id int64) (*models.Adjustment, error) {
	row := s.pool.QueryRow(ctx,
		`select `+adjustmentColumns+` from strategy_adjustments where id = $1`, id)
	a, err := scanAdjustment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get adjustment %d: %w", id, err)
	}
	return a, nil
}

func (s *PostgresAdjustmentStore) ListByStatus(ctx context.Context, status models.AdjustmentStatus) ([]*models.Adjustment, error) {
	rows, err := s.pool.Query(ctx,
		`select `+adjustmentColumns+` from strategy_adjustments where status = $1 order by id`,
		string(status))
	if err != nil {
		return nil, fmt.Errorf("list adjustments: %w", err)
	}
	defer rows.Close()
	return collectAdjustments(rows)
}

func (s *PostgresAdjustmentStore) ListApplied(ctx context.Context, strategy string) ([]*models.Adjustment, error) {
	rows, err := s.pool.Query(ctx,
		`select `+adjustmentColumns+` from strategy_adjustments
		 where strategy_name = $1 and status = $2
		 order by reviewed_at asc nulls last, id asc`,
		strategy, string(models.StatusApplied))
	if err != nil {
		return nil, fmt.Errorf("list applied: %w", err)
	}
	defer rows.Close()
	return collectAdjustments(rows)
}

// Transition performs the optimistic status move. The WHERE clause
// carries the expected current status; zero rows affected means
// either the id is unknown or another writer got there first.
func (s *PostgresAdjustmentStore) Transition(ctx context.Context, id int64, from, to models.AdjustmentStatus, reviewer string, at time.Time) error {
	if !models.ValidTransition(from, to) {
		return models.ErrConflict
	}
	tag, err := s.pool.Exec(ctx, `
		update strategy_adjustments
		set status = $1,
		    reviewed_by = case when $2 <> '' then $2 else reviewed_by end,
		    reviewed_at = $3
		where id = $4 and status = $5`,
		string(to), reviewer, at, id, string(from))
	if err != nil {
		return fmt.Errorf("transition adjustment %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		// Disambiguate missing record from a lost race.
		var exists bool
		if err := s.pool.QueryRow(ctx,
			`select exists (select 1 from strategy_adjustments where id = $1)`, id,
		).Scan(&exists); err != nil {
			return fmt.Errorf("transition adjustment %d: %w", id, err)
		}
		if !exists {
			return models.ErrNotFound
		}
		return models.ErrConflict
	}
	return nil
}

func (s *PostgresAdjustmentStore) Close() error { return nil } // pool owned by DI

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAdjustment(row rowScanner) (*models.Adjustment, error) {
	var a models.Adjustment
	var trigger, status string
	var reviewedAt *time.Time
	if err := row.Scan(
		&a.ID, &a.StrategyName, &a.ParameterName, &a.OldValue, &a.NewValue, &a.Reason,
		&trigger, &a.MetricValue, &a.WinRate7d, &a.TotalPnL7d, &a.AvgPnL7d, &a.TotalSignals7d,
		&status, &a.ReviewedBy, &reviewedAt, &a.CreatedAt,
	); err != nil {
		return nil, err
	}
	a.Trigger = models.MetricTrigger(trigger)
	a.Status = models.AdjustmentStatus(status)
	a.ReviewedAt = reviewedAt
	return &a, nil
}

func collectAdjustments(rows pgx.Rows) ([]*models.Adjustment, error) {
	var out []*models.Adjustment
	for rows.Next() {
		a, err := scanAdjustment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

var _ domrepo.AdjustmentStore = (*PostgresAdjustmentStore)(nil)
