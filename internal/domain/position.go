package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PositionStatus tracks whether a position is open or closed. Closed means
// the running open quantity has reached exactly zero.
type PositionStatus string

const (
	PositionStatusOpen   PositionStatus = "open"
	PositionStatusClosed PositionStatus = "closed"
)

// Direction is the direction-establishing transaction type of a position:
// buy-to-open (long) or sell-to-open (short). It determines the sign
// convention for realized P/L.
type Direction string

const (
	DirectionLong  Direction = "bto"
	DirectionShort Direction = "sto"
)

// Position is the aggregate owning an ordered sequence of transactions plus
// static attributes. Derived state is never stored as source of truth; it is
// recomputed from the full transaction list on every mutation and query.
type Position struct {
	ID         string     `json:"id"`
	Symbol     string     `json:"symbol"`
	Instrument Instrument `json:"instrument"`
	Direction  Direction  `json:"direction"`
	Profile    string     `json:"profile"` // named trader profile, e.g. "day_trader"
	OpenedAt   time.Time  `json:"opened_at"`
	CreatedAt  time.Time  `json:"created_at"`

	// Snapshot is the most recently recomputed derived state, persisted for
	// querying and display only. Reduce over the transaction list to get the
	// authoritative value.
	Snapshot *PositionState `json:"snapshot,omitempty"`
}

// PositionState is the derived state of a position at a point in its life.
// Realized figures are nil until the first exit transaction: "not yet exited"
// is distinct from "zero profit" and callers must preserve that distinction.
type PositionState struct {
	Status        PositionStatus   `json:"status"`
	OpenQty       decimal.Decimal  `json:"open_qty"`
	EntryQty      decimal.Decimal  `json:"entry_qty"`
	ExitQty       decimal.Decimal  `json:"exit_qty"`
	AvgEntryPrice decimal.Decimal  `json:"avg_entry_price"`
	AvgExitPrice  *decimal.Decimal `json:"avg_exit_price,omitempty"`
	RealizedPL    *decimal.Decimal `json:"realized_pl,omitempty"`
	PctChange     *decimal.Decimal `json:"pct_change,omitempty"`
	ClosedAt      *time.Time       `json:"closed_at,omitempty"`
}

// Closed reports whether the state represents a fully exited position.
func (s PositionState) Closed() bool { return s.Status == PositionStatusClosed }
