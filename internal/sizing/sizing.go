// Package sizing translates account-risk configuration into deployable
// position sizes and converts transaction amounts into dollar position
// values. Like the ledger it is a stateless set of pure functions.
package sizing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/DMZ-Consulting/blue-deer-ledger/internal/domain"
	"github.com/DMZ-Consulting/blue-deer-ledger/internal/ledger"
)

var hundred = decimal.NewFromInt(100)

// UnitPrice returns the dollar cost of one unit of the instrument at the
// given entry price (net cost for strategies). Futures use a fixed per-symbol
// notional from the contract table rather than a multiple of the entry price;
// symbols without a table entry fail with ErrInvalidUnitPrice instead of
// being guessed at.
func UnitPrice(inst domain.Instrument, entryPrice decimal.Decimal) (decimal.Decimal, error) {
	switch inst.Kind {
	case domain.InstrumentEquity:
		return entryPrice, nil
	case domain.InstrumentOption, domain.InstrumentStrategy:
		return entryPrice.Mul(hundred), nil
	case domain.InstrumentFutures:
		notional, ok := inst.FuturesNotional()
		if !ok {
			return decimal.Zero, fmt.Errorf("no notional for futures symbol %q: %w", inst.Symbol, domain.ErrInvalidUnitPrice)
		}
		return notional, nil
	default:
		return decimal.Zero, fmt.Errorf("unknown instrument kind %q: %w", inst.Kind, domain.ErrInvalidUnitPrice)
	}
}

// RiskUnit returns the dollar amount of one full risk allocation:
// portfolio_size * risk_tolerance_pct / 100.
func RiskUnit(profile domain.RiskProfile) decimal.Decimal {
	return profile.PortfolioSize.Mul(profile.RiskTolerancePct).Div(hundred)
}

// TrancheRiskUnit subdivides the risk unit across the profile's configured
// risk levels (default 6), yielding the budget of a single tranche.
func TrancheRiskUnit(profile domain.RiskProfile) decimal.Decimal {
	levels := profile.RiskLevels
	if levels < 1 {
		levels = domain.DefaultRiskLevels
	}
	return RiskUnit(profile).Div(decimal.NewFromInt(int64(levels)))
}

// UnitsPerRisk returns how many whole units one risk allocation buys:
// floor(riskUnit / unitPrice). Fractional units cannot be deployed, so the
// result is always floored, never rounded. A non-positive unit price fails
// with ErrInvalidUnitPrice.
func UnitsPerRisk(riskUnit, unitPrice decimal.Decimal) (int64, error) {
	if unitPrice.Sign() <= 0 {
		return 0, fmt.Errorf("unit price %s: %w", unitPrice, domain.ErrInvalidUnitPrice)
	}
	return riskUnit.Div(unitPrice).Floor().IntPart(), nil
}

// RiskBlocks converts a traded quantity into a whole count of risk-sized
// blocks: ceil(quantity * unitsPerRisk). Partial fills round up so sizing
// estimates stay conservative (larger).
func RiskBlocks(quantity decimal.Decimal, unitsPerRisk int64) int64 {
	return quantity.Mul(decimal.NewFromInt(unitsPerRisk)).Ceil().IntPart()
}

// PositionValue returns the dollar value a transaction represents when
// expressed in risk-sized blocks: amount * ceil(quantity * unitsPerRisk),
// further multiplied by 100 for contract-based instruments.
func PositionValue(amount, quantity decimal.Decimal, unitsPerRisk int64, inst domain.Instrument) decimal.Decimal {
	blocks := RiskBlocks(quantity, unitsPerRisk)
	value := amount.Mul(decimal.NewFromInt(blocks))
	if inst.ContractBased() {
		value = value.Mul(hundred)
	}
	return value
}

// RealizedValue expresses how much of the configured risk budget a position's
// exits actually realized: the per-unit realized P/L times the risk-block
// count of the exited quantity. This deliberately diverges from the raw
// dollar realized P/L whenever unitsPerRisk does not evenly divide the traded
// quantity. It is nil while the position has no exits.
func RealizedValue(state domain.PositionState, profile domain.RiskProfile, inst domain.Instrument) (*decimal.Decimal, error) {
	perUnit := ledger.RealizedPerUnit(state)
	if perUnit == nil {
		return nil, nil
	}

	unitPrice, err := UnitPrice(inst, state.AvgEntryPrice)
	if err != nil {
		return nil, err
	}
	units, err := UnitsPerRisk(RiskUnit(profile), unitPrice)
	if err != nil {
		return nil, err
	}

	blocks := RiskBlocks(state.ExitQty, units)
	value := perUnit.Mul(decimal.NewFromInt(blocks))
	return &value, nil
}
