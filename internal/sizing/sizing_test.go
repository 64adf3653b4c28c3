package sizing

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/DMZ-Consulting/blue-deer-ledger/internal/domain"
	"github.com/DMZ-Consulting/blue-deer-ledger/internal/ledger"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func profile(portfolio, pct string) domain.RiskProfile {
	return domain.RiskProfile{
		Name:             "test",
		PortfolioSize:    dec(portfolio),
		RiskTolerancePct: dec(pct),
		RiskLevels:       domain.DefaultRiskLevels,
	}
}

func TestUnitPrice(t *testing.T) {
	strike := dec("150")
	exp := time.Date(2026, 6, 19, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		inst    domain.Instrument
		entry   string
		want    string
		wantErr bool
	}{
		{
			name:  "equity passes through",
			inst:  domain.Instrument{Kind: domain.InstrumentEquity, Symbol: "AAPL"},
			entry: "187.50",
			want:  "187.50",
		},
		{
			name: "option contract is 100x",
			inst: domain.Instrument{
				Kind: domain.InstrumentOption, Symbol: "AAPL",
				Strike: &strike, Expiration: &exp, Right: domain.OptionCall,
			},
			entry: "3.25",
			want:  "325",
		},
		{
			name: "strategy net cost is 100x",
			inst: domain.Instrument{
				Kind: domain.InstrumentStrategy, Symbol: "AAPL",
				Legs: []domain.StrategyLeg{{Symbol: "AAPL", Ratio: 1}, {Symbol: "AAPL", Ratio: -1}},
			},
			entry: "1.40",
			want:  "140",
		},
		{
			name:  "ES uses fixed notional regardless of entry",
			inst:  domain.Instrument{Kind: domain.InstrumentFutures, Symbol: "ES"},
			entry: "4000",
			want:  "2500",
		},
		{
			name:    "unlisted futures symbol is rejected",
			inst:    domain.Instrument{Kind: domain.InstrumentFutures, Symbol: "CL"},
			entry:   "70",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := UnitPrice(tt.inst, dec(tt.entry))
			if tt.wantErr {
				if !errors.Is(err, domain.ErrInvalidUnitPrice) {
					t.Fatalf("err = %v, want ErrInvalidUnitPrice", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("UnitPrice: %v", err)
			}
			if !got.Equal(dec(tt.want)) {
				t.Errorf("UnitPrice = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestRiskUnitAndUnitsPerRisk(t *testing.T) {
	// portfolio 100k, tolerance 2% -> risk unit 2000; at $50/unit -> 40 units.
	p := profile("100000", "2")

	ru := RiskUnit(p)
	if !ru.Equal(dec("2000")) {
		t.Fatalf("RiskUnit = %s, want 2000", ru)
	}

	units, err := UnitsPerRisk(ru, dec("50"))
	if err != nil {
		t.Fatalf("UnitsPerRisk: %v", err)
	}
	if units != 40 {
		t.Errorf("UnitsPerRisk = %d, want 40", units)
	}
}

func TestUnitsPerRisk_Floors(t *testing.T) {
	units, err := UnitsPerRisk(dec("2000"), dec("300"))
	if err != nil {
		t.Fatalf("UnitsPerRisk: %v", err)
	}
	// 2000/300 = 6.67: floored, never rounded.
	if units != 6 {
		t.Errorf("UnitsPerRisk = %d, want 6", units)
	}
}

func TestUnitsPerRisk_RejectsNonPositivePrice(t *testing.T) {
	for _, price := range []string{"0", "-1"} {
		if _, err := UnitsPerRisk(dec("2000"), dec(price)); !errors.Is(err, domain.ErrInvalidUnitPrice) {
			t.Errorf("price %s: err = %v, want ErrInvalidUnitPrice", price, err)
		}
	}
}

func TestTrancheRiskUnit(t *testing.T) {
	p := profile("120000", "3") // risk unit 3600, 6 levels -> 600 per tranche
	got := TrancheRiskUnit(p)
	if !got.Equal(dec("600")) {
		t.Errorf("TrancheRiskUnit = %s, want 600", got)
	}

	p.RiskLevels = 4
	if got := TrancheRiskUnit(p); !got.Equal(dec("900")) {
		t.Errorf("TrancheRiskUnit with 4 levels = %s, want 900", got)
	}
}

func TestRiskBlocks_CeilsPartialFills(t *testing.T) {
	// 0.5 of a 3-unit risk block is still 2 whole blocks.
	if got := RiskBlocks(dec("0.5"), 3); got != 2 {
		t.Errorf("RiskBlocks(0.5, 3) = %d, want 2", got)
	}
	if got := RiskBlocks(dec("2"), 3); got != 6 {
		t.Errorf("RiskBlocks(2, 3) = %d, want 6", got)
	}
}

func TestPositionValue(t *testing.T) {
	eq := domain.Instrument{Kind: domain.InstrumentEquity, Symbol: "AAPL"}
	got := PositionValue(dec("105"), dec("1.5"), 4, eq)
	// ceil(1.5*4) = 6 blocks, 105 * 6 = 630.
	if !got.Equal(dec("630")) {
		t.Errorf("PositionValue = %s, want 630", got)
	}

	strike := dec("150")
	exp := time.Date(2026, 6, 19, 0, 0, 0, 0, time.UTC)
	opt := domain.Instrument{
		Kind: domain.InstrumentOption, Symbol: "AAPL",
		Strike: &strike, Expiration: &exp, Right: domain.OptionPut,
	}
	got = PositionValue(dec("2.50"), dec("1"), 4, opt)
	// 4 blocks * 2.50 * 100 = 1000 for contract-based instruments.
	if !got.Equal(dec("1000")) {
		t.Errorf("contract PositionValue = %s, want 1000", got)
	}
}

func TestRealizedValue(t *testing.T) {
	eq := domain.Instrument{Kind: domain.InstrumentEquity, Symbol: "MSFT"}
	base := time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)

	txs := []domain.Transaction{
		{Kind: domain.TxOpen, Price: dec("50"), Quantity: dec("10"), ExecutedAt: base},
		{Kind: domain.TxClose, Price: dec("60"), Quantity: dec("10"), ExecutedAt: base.Add(time.Minute)},
	}
	state, err := ledger.Reduce(eq, domain.DirectionLong, txs)
	if err != nil {
		t.Fatalf("Reduce: %v", err)
	}

	// Risk unit 2000 at $50/unit -> 40 units per risk. Exited 10 units ->
	// 400 blocks at $10 per-unit profit -> 4000 of risk budget realized,
	// whereas the raw dollar realized P/L is only 100.
	got, err := RealizedValue(state, profile("100000", "2"), eq)
	if err != nil {
		t.Fatalf("RealizedValue: %v", err)
	}
	if got == nil {
		t.Fatal("RealizedValue is nil on a closed position")
	}
	if !got.Equal(dec("4000")) {
		t.Errorf("RealizedValue = %s, want 4000", got)
	}
	if got.Equal(*state.RealizedPL) {
		t.Error("risk-sized realized value should diverge from raw realized P/L here")
	}
}

func TestRealizedValue_NilBeforeExit(t *testing.T) {
	eq := domain.Instrument{Kind: domain.InstrumentEquity, Symbol: "MSFT"}
	base := time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)

	state, err := ledger.Reduce(eq, domain.DirectionLong, []domain.Transaction{
		{Kind: domain.TxOpen, Price: dec("50"), Quantity: dec("10"), ExecutedAt: base},
	})
	if err != nil {
		t.Fatalf("Reduce: %v", err)
	}

	got, err := RealizedValue(state, profile("100000", "2"), eq)
	if err != nil {
		t.Fatalf("RealizedValue: %v", err)
	}
	if got != nil {
		t.Errorf("RealizedValue = %s, want nil before any exit", got)
	}
}
