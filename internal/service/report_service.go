package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/DMZ-Consulting/blue-deer-ledger/internal/domain"
	"github.com/DMZ-Consulting/blue-deer-ledger/internal/sizing"
)

// PositionReport combines a position's derived ledger state with its
// risk-sized figures under a named profile. Raw realized P/L and the
// risk-sized realized value are reported side by side because they diverge
// whenever the risk unit does not evenly divide the traded quantity.
type PositionReport struct {
	Position      domain.Position      `json:"position"`
	State         domain.PositionState `json:"state"`
	Profile       string               `json:"profile"`
	RiskUnit      decimal.Decimal      `json:"risk_unit"`
	TrancheUnit   decimal.Decimal      `json:"tranche_unit"`
	UnitsPerRisk  int64                `json:"units_per_risk"`
	RealizedValue *decimal.Decimal     `json:"realized_value,omitempty"`
}

// Summary aggregates the journal across all positions.
type Summary struct {
	OpenPositions   int              `json:"open_positions"`
	ClosedPositions int              `json:"closed_positions"`
	TotalRealizedPL decimal.Decimal  `json:"total_realized_pl"`
	BestRealizedPL  *decimal.Decimal `json:"best_realized_pl,omitempty"`
	WorstRealizedPL *decimal.Decimal `json:"worst_realized_pl,omitempty"`
}

// ReportService derives per-position and portfolio-level reports.
type ReportService struct {
	journal  *JournalService
	profiles domain.RiskProfileStore
	logger   *slog.Logger
}

// NewReportService creates a ReportService.
func NewReportService(journal *JournalService, profiles domain.RiskProfileStore, logger *slog.Logger) *ReportService {
	return &ReportService{
		journal:  journal,
		profiles: profiles,
		logger:   logger,
	}
}

// PositionReport builds the full report for one position under the named risk
// profile. When profileName is empty the position's own profile is used.
func (s *ReportService) PositionReport(ctx context.Context, positionID, profileName string) (PositionReport, error) {
	pos, err := s.journal.Get(ctx, positionID)
	if err != nil {
		return PositionReport{}, fmt.Errorf("report_service: %w", err)
	}
	state, err := s.journal.State(ctx, positionID)
	if err != nil {
		return PositionReport{}, fmt.Errorf("report_service: %w", err)
	}

	if profileName == "" {
		profileName = pos.Profile
	}
	profile, err := s.profiles.Get(ctx, profileName)
	if err != nil {
		return PositionReport{}, fmt.Errorf("report_service: get profile %q: %w", profileName, err)
	}

	unitPrice, err := sizing.UnitPrice(pos.Instrument, state.AvgEntryPrice)
	if err != nil {
		return PositionReport{}, fmt.Errorf("report_service: unit price for %q: %w", positionID, err)
	}
	riskUnit := sizing.RiskUnit(profile)
	units, err := sizing.UnitsPerRisk(riskUnit, unitPrice)
	if err != nil {
		return PositionReport{}, fmt.Errorf("report_service: units per risk for %q: %w", positionID, err)
	}
	realizedValue, err := sizing.RealizedValue(state, profile, pos.Instrument)
	if err != nil {
		return PositionReport{}, fmt.Errorf("report_service: realized value for %q: %w", positionID, err)
	}

	return PositionReport{
		Position:      pos,
		State:         state,
		Profile:       profile.Name,
		RiskUnit:      riskUnit,
		TrancheUnit:   sizing.TrancheRiskUnit(profile),
		UnitsPerRisk:  units,
		RealizedValue: realizedValue,
	}, nil
}

// Summarize walks every position and aggregates open/closed counts and
// realized P/L. Positions without exits contribute nothing to the realized
// totals rather than contributing zero.
func (s *ReportService) Summarize(ctx context.Context, opts domain.ListOpts) (Summary, error) {
	positions, err := s.journal.List(ctx, opts)
	if err != nil {
		return Summary{}, fmt.Errorf("report_service: %w", err)
	}

	var sum Summary
	for _, pos := range positions {
		state, err := s.journal.State(ctx, pos.ID)
		if err != nil {
			// A malformed history in one position should not sink the whole
			// report; surface it in the log and keep aggregating.
			s.logger.WarnContext(ctx, "report_service: skipping position with invalid history",
				slog.String("position_id", pos.ID),
				slog.String("error", err.Error()),
			)
			continue
		}

		if state.Closed() {
			sum.ClosedPositions++
		} else {
			sum.OpenPositions++
		}

		if state.RealizedPL == nil {
			continue
		}
		pl := *state.RealizedPL
		sum.TotalRealizedPL = sum.TotalRealizedPL.Add(pl)
		if sum.BestRealizedPL == nil || pl.GreaterThan(*sum.BestRealizedPL) {
			v := pl
			sum.BestRealizedPL = &v
		}
		if sum.WorstRealizedPL == nil || pl.LessThan(*sum.WorstRealizedPL) {
			v := pl
			sum.WorstRealizedPL = &v
		}
	}

	return sum, nil
}
