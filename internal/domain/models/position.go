package models

// Direction of an open position.
type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
)

// Sign returns +1 for LONG and -1 for SHORT, used to flip
// direction-relative signal classification.
func (d Direction) Sign() int {
	if d == Short {
		return -1
	}
	return 1
}

// Position is an open paper position. Owned by the external position
// tracker; this service only reads it.
type Position struct {
	Ticker       string    `json:"ticker"`
	Direction    Direction `json:"direction"`
	Size         float64   `json:"size"`
	EntryPrice   float64   `json:"entry_price"`
	CurrentPrice float64   `json:"current_price"`
}

// PnLPercent is the unrealized PnL of the position in percent,
// direction-aware.
func (p *Position) PnLPercent() float64 {
	if p == nil || p.EntryPrice == 0 {
		return 0
	}
	raw := (p.CurrentPrice - p.EntryPrice) / p.EntryPrice * 100
	if p.Direction == Short {
		return -raw
	}
	return raw
}
