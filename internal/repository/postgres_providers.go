package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"PaperTune/internal/domain/models"
	domrepo "PaperTune/internal/domain/repository"
)

// PostgresPerformanceProvider aggregates the trailing outcome window
// over the strategy_signals table maintained by the external signal
// tracker.
type PostgresPerformanceProvider struct {
	pool *pgxpool.Pool
}

func NewPostgresPerformanceProvider(pool *pgxpool.Pool) *PostgresPerformanceProvider {
	return &PostgresPerformanceProvider{pool: pool}
}

func (p *PostgresPerformanceProvider) TrailingWindow(ctx context.Context, strategy string, days int) (*models.StrategyPerformance, error) {
	row := p.pool.QueryRow(ctx, `
		select count(*),
		       coalesce(avg(case when outcome = 'win' then 1.0 else 0.0 end), 0),
		       coalesce(sum(pnl), 0),
		       coalesce(avg(pnl), 0),
		       coalesce(avg(case when outcome = 'expired' then 1.0 else 0.0 end), 0)
		from strategy_signals
		where strategy_name = $1
		  and created_at >= now() - make_interval(days => $2)`,
		strategy, days)

	perf := models.StrategyPerformance{StrategyName: strategy}
	if err := row.Scan(&perf.SignalCount, &perf.WinRate, &perf.TotalPnL, &perf.AvgPnL, &perf.ExpiryRate); err != nil {
		return nil, fmt.Errorf("performance window %s: %w", strategy, err)
	}
	if perf.SignalCount == 0 {
		// No signals in the window is an expected steady-state.
		return nil, nil
	}
	return &perf, nil
}

var _ domrepo.PerformanceProvider = (*PostgresPerformanceProvider)(nil)

// PostgresPositionProvider reads open positions written by the
// external account tracker.
type PostgresPositionProvider struct {
	pool *pgxpool.Pool
}

func NewPostgresPositionProvider(pool *pgxpool.Pool) *PostgresPositionProvider {
	return &PostgresPositionProvider{pool: pool}
}

func (p *PostgresPositionProvider) Open(ctx context.Context, ticker string) (*models.Position, error) {
	row := p.pool.QueryRow(ctx, `
		select ticker, direction, size, entry_price, current_price
		from open_positions
		where ticker = $1`,
		ticker)

	var pos models.Position
	var direction string
	err := row.Scan(&pos.Ticker, &direction, &pos.Size, &pos.EntryPrice, &pos.CurrentPrice)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open position %s: %w", ticker, err)
	}
	pos.Direction = models.Direction(direction)
	return &pos, nil
}

var _ domrepo.PositionProvider = (*PostgresPositionProvider)(nil)
