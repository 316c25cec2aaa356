package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"PaperTune/internal/domain/models"
	domrepo "PaperTune/internal/domain/repository"
)

// ClickHouseSignalStore implements the append-only trim signal
// history on ClickHouse.
type ClickHouseSignalStore struct {
	db    *sql.DB
	table string
}

func NewClickHouseSignalStore(db *sql.DB, table string) *ClickHouseSignalStore {
	return &ClickHouseSignalStore{db: db, table: table}
}

func (s *ClickHouseSignalStore) Init(ctx context.Context) error {
	return nil // Schema init in pkg
}

func (s *ClickHouseSignalStore) Store(ctx context.Context, sig *models.TrimSignal) error {
	q := fmt.Sprintf(`INSERT INTO %s
		(ts, ticker, direction, score, recommendation, trim_percent, reason,
		 position_size, entry_price, current_price, pnl_percent,
		 ema9, ema20, rsi, macd_hist, volume_ratio)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.table)
	_, err := s.db.ExecContext(ctx, q,
		sig.Timestamp,
		sig.Ticker,
		string(sig.Direction),
		int32(sig.Score),
		string(sig.Recommendation),
		sig.TrimPercent,
		sig.Reason,
		sig.PositionSize,
		sig.EntryPrice,
		sig.CurrentPrice,
		sig.PnLPercent,
		sig.Levels.EMA9,
		sig.Levels.EMA20,
		sig.Levels.RSI,
		sig.Levels.MACDHist,
		sig.Levels.VolumeRatio,
	)
	return err
}

func (s *ClickHouseSignalStore) Query(ctx context.Context, ticker string, from, to time.Time, limit int) ([]*models.TrimSignal, error) {
	q := fmt.Sprintf(`SELECT ts, ticker, direction, score, recommendation, trim_percent, reason,
		position_size, entry_price, current_price, pnl_percent,
		ema9, ema20, rsi, macd_hist, volume_ratio
		FROM %s
		WHERE ticker = ? AND ts >= ? AND ts <= ?
		ORDER BY ts DESC LIMIT ?`, s.table)
	rows, err := s.db.QueryContext(ctx, q, ticker, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.TrimSignal
	for rows.Next() {
		var sig models.TrimSignal
		var direction, rec string
		var score int32
		if err := rows.Scan(
			&sig.Timestamp, &sig.Ticker, &direction, &score, &rec, &sig.TrimPercent, &sig.Reason,
			&sig.PositionSize, &sig.EntryPrice, &sig.CurrentPrice, &sig.PnLPercent,
			&sig.Levels.EMA9, &sig.Levels.EMA20, &sig.Levels.RSI, &sig.Levels.MACDHist, &sig.Levels.VolumeRatio,
		); err != nil {
			return nil, err
		}
		sig.Direction = models.Direction(direction)
		sig.Recommendation = models.Recommendation(rec)
		sig.Score = int(score)
		out = append(out, &sig)
	}
	return out, rows.Err()
}

func (s *ClickHouseSignalStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseSignalStore) Close() error {
	return nil // Managed by pkg
}

var _ domrepo.SignalStore = (*ClickHouseSignalStore)(nil)
