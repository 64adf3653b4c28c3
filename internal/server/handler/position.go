package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/DMZ-Consulting/blue-deer-ledger/internal/domain"
	"github.com/DMZ-Consulting/blue-deer-ledger/internal/service"
)

// PositionHandler serves position-related HTTP endpoints.
type PositionHandler struct {
	journal *service.JournalService
	logger  *slog.Logger
}

// NewPositionHandler creates a PositionHandler with the given service and logger.
func NewPositionHandler(journal *service.JournalService, logger *slog.Logger) *PositionHandler {
	return &PositionHandler{
		journal: journal,
		logger:  logger,
	}
}

// openPositionRequest is the body for creating a position with its opening
// transaction.
type openPositionRequest struct {
	Symbol     string            `json:"symbol"`
	Instrument domain.Instrument `json:"instrument"`
	Direction  string            `json:"direction"`
	Profile    string            `json:"profile"`
	Price      decimal.Decimal   `json:"price"`
	Quantity   decimal.Decimal   `json:"quantity"`
	ExecutedAt *time.Time        `json:"executed_at,omitempty"`
}

// OpenPosition creates a new position from its opening transaction.
// POST /api/positions
func (h *PositionHandler) OpenPosition(w http.ResponseWriter, r *http.Request) {
	var req openPositionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	params := service.OpenParams{
		Symbol:     req.Symbol,
		Instrument: req.Instrument,
		Direction:  domain.Direction(req.Direction),
		Profile:    req.Profile,
		Price:      req.Price,
		Quantity:   req.Quantity,
	}
	if req.ExecutedAt != nil {
		params.ExecutedAt = *req.ExecutedAt
	}

	pos, err := h.journal.Open(r.Context(), params)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to open position")
		return
	}

	writeJSON(w, http.StatusCreated, pos)
}

// listPositionsResponse wraps the list positions response.
type listPositionsResponse struct {
	Positions []domain.Position `json:"positions"`
}

// ListPositions returns positions, newest first, filtered by the standard
// query parameters.
// GET /api/positions?status=open&limit=50&offset=0
func (h *PositionHandler) ListPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := h.journal.List(r.Context(), parseListOpts(r))
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to list positions")
		return
	}
	if positions == nil {
		positions = []domain.Position{}
	}
	writeJSON(w, http.StatusOK, listPositionsResponse{Positions: positions})
}

// positionResponse pairs a position with its freshly derived state.
type positionResponse struct {
	Position domain.Position      `json:"position"`
	State    domain.PositionState `json:"state"`
}

// GetPosition returns one position with its derived state.
// GET /api/positions/{id}
func (h *PositionHandler) GetPosition(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	pos, err := h.journal.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to get position")
		return
	}
	state, err := h.journal.State(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to derive position state")
		return
	}

	writeJSON(w, http.StatusOK, positionResponse{Position: pos, State: state})
}

// listTransactionsResponse wraps a position's transaction history.
type listTransactionsResponse struct {
	Transactions []domain.Transaction `json:"transactions"`
}

// ListTransactions returns a position's full transaction history.
// GET /api/positions/{id}/transactions
func (h *PositionHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := h.journal.Transactions(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to list transactions")
		return
	}
	if txs == nil {
		txs = []domain.Transaction{}
	}
	writeJSON(w, http.StatusOK, listTransactionsResponse{Transactions: txs})
}
