package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultRiskLevels is the default subdivision of the risk budget into
// tranches. It is a documented default, not a universal rule; profiles may
// override it.
const DefaultRiskLevels = 6

// RiskProfile is a named account-risk configuration (e.g. "day_trader").
// Profiles are pure lookup data supplied to sizing; no position owns one.
type RiskProfile struct {
	Name             string          `json:"name"`
	PortfolioSize    decimal.Decimal `json:"portfolio_size"`
	RiskTolerancePct decimal.Decimal `json:"risk_tolerance_pct"`
	RiskLevels       int             `json:"risk_levels"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// Validate checks the profile's bounds: portfolio size must be positive and
// the tolerance must lie in (0, 100].
func (p RiskProfile) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidProfile)
	}
	if p.PortfolioSize.Sign() <= 0 {
		return fmt.Errorf("%w %s: portfolio_size must be positive", ErrInvalidProfile, p.Name)
	}
	if p.RiskTolerancePct.Sign() <= 0 || p.RiskTolerancePct.GreaterThan(hundred) {
		return fmt.Errorf("%w %s: risk_tolerance_pct must be in (0, 100]", ErrInvalidProfile, p.Name)
	}
	if p.RiskLevels < 1 {
		return fmt.Errorf("%w %s: risk_levels must be >= 1", ErrInvalidProfile, p.Name)
	}
	return nil
}

// DefaultProfiles are the seed profiles created on first start so the journal
// is usable before any profile has been configured.
func DefaultProfiles() []RiskProfile {
	return []RiskProfile{
		{Name: "day_trader", PortfolioSize: decimal.NewFromInt(100_000), RiskTolerancePct: decimal.NewFromInt(2), RiskLevels: DefaultRiskLevels},
		{Name: "swing_trader", PortfolioSize: decimal.NewFromInt(100_000), RiskTolerancePct: decimal.NewFromInt(5), RiskLevels: DefaultRiskLevels},
		{Name: "long_term", PortfolioSize: decimal.NewFromInt(100_000), RiskTolerancePct: decimal.NewFromInt(10), RiskLevels: DefaultRiskLevels},
	}
}
