package handler

import (
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/DMZ-Consulting/blue-deer-ledger/internal/domain"
	"github.com/DMZ-Consulting/blue-deer-ledger/internal/service"
)

// ProfileHandler serves risk-profile endpoints.
type ProfileHandler struct {
	profiles *service.ProfileService
	logger   *slog.Logger
}

// NewProfileHandler creates a ProfileHandler with the given service and logger.
func NewProfileHandler(profiles *service.ProfileService, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{
		profiles: profiles,
		logger:   logger,
	}
}

// listProfilesResponse wraps the profile list response.
type listProfilesResponse struct {
	Profiles []domain.RiskProfile `json:"profiles"`
}

// ListProfiles returns all risk profiles.
// GET /api/profiles
func (h *ProfileHandler) ListProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.profiles.List(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to list profiles")
		return
	}
	if profiles == nil {
		profiles = []domain.RiskProfile{}
	}
	writeJSON(w, http.StatusOK, listProfilesResponse{Profiles: profiles})
}

// GetProfile returns one risk profile by name.
// GET /api/profiles/{name}
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.profiles.Get(r.Context(), pathParam(r, "name"))
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to get profile")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// upsertProfileRequest is the body for creating or replacing a profile. The
// name comes from the URL path.
type upsertProfileRequest struct {
	PortfolioSize    decimal.Decimal `json:"portfolio_size"`
	RiskTolerancePct decimal.Decimal `json:"risk_tolerance_pct"`
	RiskLevels       int             `json:"risk_levels"`
}

// UpsertProfile creates or replaces a risk profile.
// PUT /api/profiles/{name}
func (h *ProfileHandler) UpsertProfile(w http.ResponseWriter, r *http.Request) {
	var req upsertProfileRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	profile, err := h.profiles.Upsert(r.Context(), domain.RiskProfile{
		Name:             pathParam(r, "name"),
		PortfolioSize:    req.PortfolioSize,
		RiskTolerancePct: req.RiskTolerancePct,
		RiskLevels:       req.RiskLevels,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to save profile")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}
