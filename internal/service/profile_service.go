package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/DMZ-Consulting/blue-deer-ledger/internal/domain"
)

// ProfileService manages named risk profiles.
type ProfileService struct {
	profiles domain.RiskProfileStore
	logger   *slog.Logger
}

// NewProfileService creates a ProfileService.
func NewProfileService(profiles domain.RiskProfileStore, logger *slog.Logger) *ProfileService {
	return &ProfileService{profiles: profiles, logger: logger}
}

// Get returns the profile with the given name.
func (s *ProfileService) Get(ctx context.Context, name string) (domain.RiskProfile, error) {
	profile, err := s.profiles.Get(ctx, name)
	if err != nil {
		return domain.RiskProfile{}, fmt.Errorf("profile_service: get %q: %w", name, err)
	}
	return profile, nil
}

// List returns all profiles.
func (s *ProfileService) List(ctx context.Context) ([]domain.RiskProfile, error) {
	profiles, err := s.profiles.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("profile_service: list: %w", err)
	}
	return profiles, nil
}

// Upsert validates and stores a profile, creating or replacing it by name.
func (s *ProfileService) Upsert(ctx context.Context, profile domain.RiskProfile) (domain.RiskProfile, error) {
	if profile.RiskLevels <= 0 {
		profile.RiskLevels = domain.DefaultRiskLevels
	}
	if err := profile.Validate(); err != nil {
		return domain.RiskProfile{}, fmt.Errorf("profile_service: %w", err)
	}
	profile.UpdatedAt = time.Now().UTC()

	if err := s.profiles.Upsert(ctx, profile); err != nil {
		return domain.RiskProfile{}, fmt.Errorf("profile_service: upsert %q: %w", profile.Name, err)
	}
	s.logger.InfoContext(ctx, "risk profile saved",
		slog.String("profile", profile.Name),
		slog.String("portfolio_size", profile.PortfolioSize.String()),
		slog.String("risk_tolerance_pct", profile.RiskTolerancePct.String()),
	)
	return profile, nil
}

// Seed inserts the built-in profiles for any name not already present.
// Existing profiles are never overwritten.
func (s *ProfileService) Seed(ctx context.Context) error {
	for _, profile := range domain.DefaultProfiles() {
		_, err := s.profiles.Get(ctx, profile.Name)
		if err == nil {
			continue
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("profile_service: seed %q: %w", profile.Name, err)
		}
		profile.UpdatedAt = time.Now().UTC()
		if err := s.profiles.Upsert(ctx, profile); err != nil {
			return fmt.Errorf("profile_service: seed %q: %w", profile.Name, err)
		}
		s.logger.InfoContext(ctx, "seeded risk profile", slog.String("profile", profile.Name))
	}
	return nil
}
