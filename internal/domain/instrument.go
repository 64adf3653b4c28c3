package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// InstrumentKind classifies what a position trades. The kind determines the
// per-unit multiplier and the unit-price rule used by sizing.
type InstrumentKind string

const (
	// InstrumentEquity is shares, no multiplier.
	InstrumentEquity InstrumentKind = "equity"

	// InstrumentOption is a single listed option contract, 100-share multiplier.
	InstrumentOption InstrumentKind = "option"

	// InstrumentFutures is a futures contract with a symbol-specific multiplier.
	InstrumentFutures InstrumentKind = "futures"

	// InstrumentStrategy is a multi-leg options combination priced by net cost,
	// 100x multiplier.
	InstrumentStrategy InstrumentKind = "strategy"
)

// OptionRight is the call/put side of an option contract.
type OptionRight string

const (
	OptionCall OptionRight = "call"
	OptionPut  OptionRight = "put"
)

// Instrument is an explicit tagged union resolved once at the storage
// boundary. Only the fields belonging to the Kind are populated; consumers
// must not infer the kind from field presence.
type Instrument struct {
	Kind   InstrumentKind `json:"kind"`
	Symbol string         `json:"symbol"`

	// Option fields (Kind == InstrumentOption).
	Strike     *decimal.Decimal `json:"strike,omitempty"`
	Expiration *time.Time       `json:"expiration,omitempty"`
	Right      OptionRight      `json:"right,omitempty"`

	// Strategy fields (Kind == InstrumentStrategy).
	Legs []StrategyLeg `json:"legs,omitempty"`
}

// StrategyLeg is one leg of a multi-leg options strategy. Legs are carried as
// static metadata; accounting works on the strategy's net cost, not per leg.
type StrategyLeg struct {
	Symbol     string           `json:"symbol"`
	Strike     *decimal.Decimal `json:"strike,omitempty"`
	Expiration *time.Time       `json:"expiration,omitempty"`
	Right      OptionRight      `json:"right,omitempty"`
	Ratio      int              `json:"ratio"` // negative for short legs
}

// futuresContracts is the explicit per-symbol lookup for futures. Multiplier
// is the per-unit P/L multiplier; Notional is the fixed dollar unit price used
// by risk sizing (margin convention, not a multiple of the entry price).
// Symbols absent from this table are rejected rather than guessed at.
var futuresContracts = map[string]struct {
	Multiplier decimal.Decimal
	Notional   decimal.Decimal
}{
	"ES": {Multiplier: decimal.NewFromInt(50), Notional: decimal.NewFromInt(2500)},
}

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// Multiplier returns the per-unit P/L multiplier for the instrument: 1 for
// equities, 100 for option contracts and strategies, and the symbol-specific
// contract multiplier for futures. Unknown futures symbols are an error.
func (i Instrument) Multiplier() (decimal.Decimal, error) {
	switch i.Kind {
	case InstrumentEquity:
		return one, nil
	case InstrumentOption, InstrumentStrategy:
		return hundred, nil
	case InstrumentFutures:
		c, ok := futuresContracts[i.Symbol]
		if !ok {
			return decimal.Zero, fmt.Errorf("no contract multiplier for futures symbol %q: %w", i.Symbol, ErrInvalidUnitPrice)
		}
		return c.Multiplier, nil
	default:
		return decimal.Zero, fmt.Errorf("%w: unknown instrument kind %q", ErrInvalidInput, i.Kind)
	}
}

// FuturesNotional returns the fixed per-unit notional used for risk sizing of
// a futures instrument, or false when the symbol has no table entry.
func (i Instrument) FuturesNotional() (decimal.Decimal, bool) {
	c, ok := futuresContracts[i.Symbol]
	if !ok {
		return decimal.Zero, false
	}
	return c.Notional, true
}

// ContractBased reports whether transaction amounts for this instrument are
// quoted per contract and carry the 100x dollar multiplier.
func (i Instrument) ContractBased() bool {
	return i.Kind == InstrumentOption || i.Kind == InstrumentStrategy
}

// Validate checks internal consistency of the tagged union.
func (i Instrument) Validate() error {
	switch i.Kind {
	case InstrumentEquity, InstrumentFutures:
		if i.Symbol == "" {
			return fmt.Errorf("%w: symbol required for kind %q", ErrInvalidInput, i.Kind)
		}
	case InstrumentOption:
		if i.Symbol == "" {
			return fmt.Errorf("%w: underlying symbol required for option", ErrInvalidInput)
		}
		if i.Strike == nil || i.Expiration == nil {
			return fmt.Errorf("%w: strike and expiration required for option", ErrInvalidInput)
		}
		if i.Right != OptionCall && i.Right != OptionPut {
			return fmt.Errorf("%w: right must be call or put, got %q", ErrInvalidInput, i.Right)
		}
	case InstrumentStrategy:
		if len(i.Legs) == 0 {
			return fmt.Errorf("%w: strategy requires at least one leg", ErrInvalidInput)
		}
	default:
		return fmt.Errorf("%w: unknown instrument kind %q", ErrInvalidInput, i.Kind)
	}
	return nil
}
