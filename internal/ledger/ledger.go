// Package ledger is the canonical position/lot accounting engine. It reduces
// the ordered transaction history of one position into its derived state:
// open quantity, volume-weighted average entry and exit prices, realized P/L,
// and percentage return.
//
// The reduction is a pure function: no I/O, no shared state, deterministic
// for a given input. Callers may invoke it freely from concurrent request
// contexts.
package ledger

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/DMZ-Consulting/blue-deer-ledger/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// Reduce derives the current state of a position from its full transaction
// history. The input slice is not mutated; if it is not already ordered by
// execution time a sorted copy is reduced instead.
//
// Validation failures are returned as the domain sentinel errors
// ErrEmptyHistory, ErrInvalidSequence, ErrOverClose, and ErrDegenerateLedger.
// There is no partial-success mode: any violation fails the whole reduction.
func Reduce(inst domain.Instrument, dir domain.Direction, txs []domain.Transaction) (domain.PositionState, error) {
	if len(txs) == 0 {
		return domain.PositionState{}, domain.ErrEmptyHistory
	}

	ordered := make([]domain.Transaction, len(txs))
	copy(ordered, txs)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].ExecutedAt.Before(ordered[j].ExecutedAt)
	})

	if ordered[0].Kind != domain.TxOpen {
		return domain.PositionState{}, fmt.Errorf("position starts with %q: %w", ordered[0].Kind, domain.ErrInvalidSequence)
	}

	var (
		openCost  decimal.Decimal // sum of price*qty over entries
		openQty   decimal.Decimal // sum of qty over entries
		exitValue decimal.Decimal // sum of price*qty over exits
		exitQty   decimal.Decimal // sum of qty over exits
		closedAt  *time.Time
	)

	for i, tx := range ordered {
		switch {
		case tx.Kind.Entry():
			if tx.Kind == domain.TxOpen && i > 0 {
				return domain.PositionState{}, fmt.Errorf("open transaction at offset %d: %w", i, domain.ErrInvalidSequence)
			}
			openCost = openCost.Add(tx.Price.Mul(tx.Quantity))
			openQty = openQty.Add(tx.Quantity)
			closedAt = nil

		case tx.Kind.Exit():
			remaining := openQty.Sub(exitQty)
			if tx.Quantity.GreaterThan(remaining) {
				return domain.PositionState{}, fmt.Errorf(
					"exit of %s against %s open at offset %d: %w",
					tx.Quantity, remaining, i, domain.ErrOverClose,
				)
			}
			exitValue = exitValue.Add(tx.Price.Mul(tx.Quantity))
			exitQty = exitQty.Add(tx.Quantity)
			if openQty.Equal(exitQty) {
				t := tx.ExecutedAt
				closedAt = &t
			}

		default:
			return domain.PositionState{}, fmt.Errorf("transaction kind %q at offset %d: %w", tx.Kind, i, domain.ErrInvalidSequence)
		}
	}

	// Guarded by the first-transaction invariant; kept as a hard stop so a
	// zero denominator can never leak out as Inf/NaN-like garbage.
	if openQty.Sign() == 0 {
		return domain.PositionState{}, domain.ErrDegenerateLedger
	}
	avgEntry := openCost.Div(openQty)

	state := domain.PositionState{
		Status:        domain.PositionStatusOpen,
		OpenQty:       openQty.Sub(exitQty),
		EntryQty:      openQty,
		ExitQty:       exitQty,
		AvgEntryPrice: avgEntry,
		ClosedAt:      closedAt,
	}
	if state.OpenQty.Sign() == 0 {
		state.Status = domain.PositionStatusClosed
	}

	// Realized figures exist only once something has been exited. Until then
	// they stay nil: "not yet exited" is not the same as "zero profit".
	if exitQty.Sign() > 0 {
		avgExit := exitValue.Div(exitQty)
		state.AvgExitPrice = &avgExit

		mult, err := inst.Multiplier()
		if err != nil {
			return domain.PositionState{}, err
		}
		if avgEntry.Sign() == 0 {
			return domain.PositionState{}, domain.ErrDegenerateLedger
		}

		diff := avgExit.Sub(avgEntry)
		if dir == domain.DirectionShort {
			diff = diff.Neg()
		}
		realized := diff.Mul(exitQty).Mul(mult)
		pct := diff.Div(avgEntry).Mul(hundred)

		state.RealizedPL = &realized
		state.PctChange = &pct
	}

	return state, nil
}

// RealizedPerUnit returns the realized P/L attributable to one exited unit,
// multiplier-adjusted and direction-signed. It is nil while the position has
// no exits.
func RealizedPerUnit(state domain.PositionState) *decimal.Decimal {
	if state.RealizedPL == nil || state.ExitQty.Sign() == 0 {
		return nil
	}
	perUnit := state.RealizedPL.Div(state.ExitQty)
	return &perUnit
}
