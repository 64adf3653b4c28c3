package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/DMZ-Consulting/blue-deer-ledger/internal/domain"
)

var t0 = time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)

func tx(kind domain.TransactionKind, price, qty string, minute int) domain.Transaction {
	return domain.Transaction{
		ID:         "tx",
		Kind:       kind,
		Price:      decimal.RequireFromString(price),
		Quantity:   decimal.RequireFromString(qty),
		ExecutedAt: t0.Add(time.Duration(minute) * time.Minute),
	}
}

func equity(symbol string) domain.Instrument {
	return domain.Instrument{Kind: domain.InstrumentEquity, Symbol: symbol}
}

func mustReduce(t *testing.T, inst domain.Instrument, dir domain.Direction, txs []domain.Transaction) domain.PositionState {
	t.Helper()
	state, err := Reduce(inst, dir, txs)
	if err != nil {
		t.Fatalf("Reduce: %v", err)
	}
	return state
}

func wantDecimal(t *testing.T, name string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(decimal.RequireFromString(want)) {
		t.Errorf("%s = %s, want %s", name, got, want)
	}
}

func TestReduce_PartialTrim(t *testing.T) {
	// OPEN 5@100, ADD 5@110, TRIM 3@120
	state := mustReduce(t, equity("AAPL"), domain.DirectionLong, []domain.Transaction{
		tx(domain.TxOpen, "100", "5", 0),
		tx(domain.TxAdd, "110", "5", 1),
		tx(domain.TxTrim, "120", "3", 2),
	})

	wantDecimal(t, "avg entry", state.AvgEntryPrice, "105")
	wantDecimal(t, "open qty", state.OpenQty, "7")
	if state.Status != domain.PositionStatusOpen {
		t.Errorf("status = %s, want open", state.Status)
	}
	if state.AvgExitPrice == nil {
		t.Fatal("avg exit price is nil after a trim")
	}
	wantDecimal(t, "avg exit", *state.AvgExitPrice, "120")
	if state.ClosedAt != nil {
		t.Errorf("closed_at = %v on an open position", state.ClosedAt)
	}
}

func TestReduce_EquityRoundTrip(t *testing.T) {
	state := mustReduce(t, equity("MSFT"), domain.DirectionLong, []domain.Transaction{
		tx(domain.TxOpen, "50", "10", 0),
		tx(domain.TxClose, "60", "10", 1),
	})

	if state.Status != domain.PositionStatusClosed {
		t.Fatalf("status = %s, want closed", state.Status)
	}
	if state.RealizedPL == nil || state.PctChange == nil {
		t.Fatal("realized figures are nil on a closed position")
	}
	wantDecimal(t, "realized pl", *state.RealizedPL, "100")
	wantDecimal(t, "pct change", *state.PctChange, "20")
	if state.ClosedAt == nil || !state.ClosedAt.Equal(t0.Add(time.Minute)) {
		t.Errorf("closed_at = %v, want %v", state.ClosedAt, t0.Add(time.Minute))
	}
}

func TestReduce_OptionMultiplier(t *testing.T) {
	strike := decimal.RequireFromString("150")
	exp := t0.AddDate(0, 1, 0)
	inst := domain.Instrument{
		Kind:       domain.InstrumentOption,
		Symbol:     "AAPL",
		Strike:     &strike,
		Expiration: &exp,
		Right:      domain.OptionCall,
	}

	state := mustReduce(t, inst, domain.DirectionLong, []domain.Transaction{
		tx(domain.TxOpen, "3.00", "2", 0),
		tx(domain.TxClose, "5.00", "2", 1),
	})

	wantDecimal(t, "realized pl", *state.RealizedPL, "400")
}

func TestReduce_FuturesMultiplier(t *testing.T) {
	inst := domain.Instrument{Kind: domain.InstrumentFutures, Symbol: "ES"}

	state := mustReduce(t, inst, domain.DirectionLong, []domain.Transaction{
		tx(domain.TxOpen, "4000", "1", 0),
		tx(domain.TxClose, "4010", "1", 1),
	})

	// ES carries a 50x contract multiplier.
	wantDecimal(t, "realized pl", *state.RealizedPL, "500")
}

func TestReduce_UnknownFuturesSymbol(t *testing.T) {
	inst := domain.Instrument{Kind: domain.InstrumentFutures, Symbol: "ZB"}

	_, err := Reduce(inst, domain.DirectionLong, []domain.Transaction{
		tx(domain.TxOpen, "100", "1", 0),
		tx(domain.TxClose, "101", "1", 1),
	})
	if err == nil {
		t.Fatal("expected error for futures symbol with no contract table entry")
	}
}

func TestReduce_ShortSignFlip(t *testing.T) {
	// STO 10@50, close 10@40: price fell, short profits.
	state := mustReduce(t, equity("TSLA"), domain.DirectionShort, []domain.Transaction{
		tx(domain.TxOpen, "50", "10", 0),
		tx(domain.TxClose, "40", "10", 1),
	})

	wantDecimal(t, "realized pl", *state.RealizedPL, "100")
	wantDecimal(t, "pct change", *state.PctChange, "20")
}

func TestReduce_OverCloseIsHardError(t *testing.T) {
	_, err := Reduce(equity("NVDA"), domain.DirectionLong, []domain.Transaction{
		tx(domain.TxOpen, "100", "5", 0),
		tx(domain.TxTrim, "110", "6", 1),
	})
	if !errors.Is(err, domain.ErrOverClose) {
		t.Fatalf("err = %v, want ErrOverClose", err)
	}
}

func TestReduce_OverCloseAcrossTrims(t *testing.T) {
	// Two trims that individually fit but together exceed the open quantity.
	_, err := Reduce(equity("NVDA"), domain.DirectionLong, []domain.Transaction{
		tx(domain.TxOpen, "100", "5", 0),
		tx(domain.TxTrim, "110", "4", 1),
		tx(domain.TxTrim, "112", "2", 2),
	})
	if !errors.Is(err, domain.ErrOverClose) {
		t.Fatalf("err = %v, want ErrOverClose", err)
	}
}

func TestReduce_EmptyHistory(t *testing.T) {
	_, err := Reduce(equity("AAPL"), domain.DirectionLong, nil)
	if !errors.Is(err, domain.ErrEmptyHistory) {
		t.Fatalf("err = %v, want ErrEmptyHistory", err)
	}
}

func TestReduce_FirstMustBeOpen(t *testing.T) {
	_, err := Reduce(equity("AAPL"), domain.DirectionLong, []domain.Transaction{
		tx(domain.TxAdd, "100", "5", 0),
	})
	if !errors.Is(err, domain.ErrInvalidSequence) {
		t.Fatalf("err = %v, want ErrInvalidSequence", err)
	}
}

func TestReduce_SecondOpenRejected(t *testing.T) {
	_, err := Reduce(equity("AAPL"), domain.DirectionLong, []domain.Transaction{
		tx(domain.TxOpen, "100", "5", 0),
		tx(domain.TxOpen, "101", "5", 1),
	})
	if !errors.Is(err, domain.ErrInvalidSequence) {
		t.Fatalf("err = %v, want ErrInvalidSequence", err)
	}
}

func TestReduce_NoExitsMeansNilRealized(t *testing.T) {
	state := mustReduce(t, equity("AAPL"), domain.DirectionLong, []domain.Transaction{
		tx(domain.TxOpen, "100", "5", 0),
		tx(domain.TxAdd, "90", "5", 1),
	})

	if state.AvgExitPrice != nil || state.RealizedPL != nil || state.PctChange != nil {
		t.Error("realized figures must be nil, not zero, before any exit")
	}
}

func TestReduce_DegenerateZeroEntryPrice(t *testing.T) {
	_, err := Reduce(equity("AAPL"), domain.DirectionLong, []domain.Transaction{
		tx(domain.TxOpen, "0", "5", 0),
		tx(domain.TxClose, "10", "5", 1),
	})
	if !errors.Is(err, domain.ErrDegenerateLedger) {
		t.Fatalf("err = %v, want ErrDegenerateLedger", err)
	}
}

func TestReduce_SortsUnorderedInput(t *testing.T) {
	sorted := []domain.Transaction{
		tx(domain.TxOpen, "100", "5", 0),
		tx(domain.TxAdd, "110", "5", 1),
		tx(domain.TxTrim, "120", "3", 2),
		tx(domain.TxClose, "125", "7", 3),
	}
	shuffled := []domain.Transaction{sorted[2], sorted[0], sorted[3], sorted[1]}

	want := mustReduce(t, equity("AAPL"), domain.DirectionLong, sorted)
	got := mustReduce(t, equity("AAPL"), domain.DirectionLong, shuffled)

	if !got.OpenQty.Equal(want.OpenQty) || !got.AvgEntryPrice.Equal(want.AvgEntryPrice) ||
		!got.RealizedPL.Equal(*want.RealizedPL) || got.Status != want.Status {
		t.Errorf("shuffled input reduced to %+v, want %+v", got, want)
	}
}

func TestReduce_DoesNotMutateInput(t *testing.T) {
	txs := []domain.Transaction{
		tx(domain.TxTrim, "120", "3", 2),
		tx(domain.TxOpen, "100", "5", 0),
	}
	// Keep a fingerprint of the caller's ordering.
	first := txs[0].Kind

	if _, err := Reduce(equity("AAPL"), domain.DirectionLong, txs); err != nil {
		t.Fatalf("Reduce: %v", err)
	}
	if txs[0].Kind != first {
		t.Error("Reduce reordered the caller's slice")
	}
}

func TestReduce_Idempotent(t *testing.T) {
	txs := []domain.Transaction{
		tx(domain.TxOpen, "100", "5", 0),
		tx(domain.TxTrim, "120", "2", 1),
	}

	a := mustReduce(t, equity("AAPL"), domain.DirectionLong, txs)
	b := mustReduce(t, equity("AAPL"), domain.DirectionLong, txs)

	if !a.OpenQty.Equal(b.OpenQty) || !a.RealizedPL.Equal(*b.RealizedPL) {
		t.Errorf("second reduction diverged: %+v vs %+v", a, b)
	}
}

func TestReduce_FullExitEqualsClosed(t *testing.T) {
	// Entries sum to exits: the position must be exactly closed.
	state := mustReduce(t, equity("AAPL"), domain.DirectionLong, []domain.Transaction{
		tx(domain.TxOpen, "10", "4", 0),
		tx(domain.TxAdd, "12", "6", 1),
		tx(domain.TxTrim, "14", "3", 2),
		tx(domain.TxClose, "15", "7", 3),
	})

	if !state.Closed() {
		t.Errorf("status = %s, want closed", state.Status)
	}
	wantDecimal(t, "open qty", state.OpenQty, "0")
}

func TestReduce_FractionalContracts(t *testing.T) {
	state := mustReduce(t, equity("BTC"), domain.DirectionLong, []domain.Transaction{
		tx(domain.TxOpen, "30000", "0.1", 0),
		tx(domain.TxAdd, "31000", "0.2", 1),
		tx(domain.TxClose, "33000", "0.3", 2),
	})

	// Weighted entry: (3000 + 6200) / 0.3
	wantDecimal(t, "avg entry", state.AvgEntryPrice, "30666.6666666666666667")
	if !state.Closed() {
		t.Errorf("status = %s, want closed", state.Status)
	}
}

func TestRealizedPerUnit(t *testing.T) {
	state := mustReduce(t, equity("MSFT"), domain.DirectionLong, []domain.Transaction{
		tx(domain.TxOpen, "50", "10", 0),
		tx(domain.TxClose, "60", "10", 1),
	})

	perUnit := RealizedPerUnit(state)
	if perUnit == nil {
		t.Fatal("per-unit realized is nil on a closed position")
	}
	wantDecimal(t, "per-unit pl", *perUnit, "10")

	open := mustReduce(t, equity("MSFT"), domain.DirectionLong, []domain.Transaction{
		tx(domain.TxOpen, "50", "10", 0),
	})
	if RealizedPerUnit(open) != nil {
		t.Error("per-unit realized must be nil before any exit")
	}
}
