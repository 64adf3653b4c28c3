package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/DMZ-Consulting/blue-deer-ledger/internal/domain"
)

// RiskProfileStore implements domain.RiskProfileStore using PostgreSQL.
type RiskProfileStore struct {
	pool *pgxpool.Pool
}

// NewRiskProfileStore creates a new RiskProfileStore backed by the given connection pool.
func NewRiskProfileStore(pool *pgxpool.Pool) *RiskProfileStore {
	return &RiskProfileStore{pool: pool}
}

// Get retrieves a profile by name.
func (s *RiskProfileStore) Get(ctx context.Context, name string) (domain.RiskProfile, error) {
	const query = `
		SELECT name, portfolio_size, risk_tolerance_pct, risk_levels, updated_at
		FROM risk_profiles WHERE name = $1`

	var p domain.RiskProfile
	err := s.pool.QueryRow(ctx, query, name).Scan(
		&p.Name, &p.PortfolioSize, &p.RiskTolerancePct, &p.RiskLevels, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.RiskProfile{}, domain.ErrNotFound
		}
		return domain.RiskProfile{}, fmt.Errorf("postgres: get risk profile %s: %w", name, err)
	}
	return p, nil
}

// Upsert creates or replaces a profile by name.
func (s *RiskProfileStore) Upsert(ctx context.Context, p domain.RiskProfile) error {
	const query = `
		INSERT INTO risk_profiles (name, portfolio_size, risk_tolerance_pct, risk_levels, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (name) DO UPDATE SET
			portfolio_size     = EXCLUDED.portfolio_size,
			risk_tolerance_pct = EXCLUDED.risk_tolerance_pct,
			risk_levels        = EXCLUDED.risk_levels,
			updated_at         = EXCLUDED.updated_at`

	_, err := s.pool.Exec(ctx, query,
		p.Name, p.PortfolioSize, p.RiskTolerancePct, p.RiskLevels, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert risk profile %s: %w", p.Name, err)
	}
	return nil
}

// List returns all profiles ordered by name.
func (s *RiskProfileStore) List(ctx context.Context) ([]domain.RiskProfile, error) {
	const query = `
		SELECT name, portfolio_size, risk_tolerance_pct, risk_levels, updated_at
		FROM risk_profiles ORDER BY name ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: list risk profiles: %w", err)
	}
	defer rows.Close()

	var profiles []domain.RiskProfile
	for rows.Next() {
		var p domain.RiskProfile
		if err := rows.Scan(&p.Name, &p.PortfolioSize, &p.RiskTolerancePct, &p.RiskLevels, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan risk profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}
