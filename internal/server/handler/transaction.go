package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/DMZ-Consulting/blue-deer-ledger/internal/domain"
	"github.com/DMZ-Consulting/blue-deer-ledger/internal/service"
)

// TransactionHandler serves transaction append/remove endpoints.
type TransactionHandler struct {
	journal *service.JournalService
	logger  *slog.Logger
}

// NewTransactionHandler creates a TransactionHandler with the given service and logger.
func NewTransactionHandler(journal *service.JournalService, logger *slog.Logger) *TransactionHandler {
	return &TransactionHandler{
		journal: journal,
		logger:  logger,
	}
}

// appendTransactionRequest is the body for appending an add/trim/close
// transaction to an existing position.
type appendTransactionRequest struct {
	Kind       string          `json:"kind"`
	Price      decimal.Decimal `json:"price"`
	Quantity   decimal.Decimal `json:"quantity"`
	ExecutedAt *time.Time      `json:"executed_at,omitempty"`
}

// transactionResponse pairs the recorded transaction with the recomputed
// state it produced.
type transactionResponse struct {
	Transaction domain.Transaction   `json:"transaction"`
	State       domain.PositionState `json:"state"`
}

// AppendTransaction records a further transaction against a position.
// POST /api/positions/{id}/transactions
func (h *TransactionHandler) AppendTransaction(w http.ResponseWriter, r *http.Request) {
	var req appendTransactionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	var executedAt time.Time
	if req.ExecutedAt != nil {
		executedAt = *req.ExecutedAt
	}

	tx, state, err := h.journal.Append(r.Context(),
		pathParam(r, "id"), domain.TransactionKind(req.Kind), req.Price, req.Quantity, executedAt)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to append transaction")
		return
	}

	writeJSON(w, http.StatusCreated, transactionResponse{Transaction: tx, State: state})
}

// removeResponse carries the recomputed state after a removal.
type removeResponse struct {
	State domain.PositionState `json:"state"`
}

// RemoveTransaction deletes a transaction and returns the recomputed state.
// The removal is rejected when the remaining history would be invalid.
// DELETE /api/transactions/{id}
func (h *TransactionHandler) RemoveTransaction(w http.ResponseWriter, r *http.Request) {
	state, err := h.journal.Remove(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to remove transaction")
		return
	}
	writeJSON(w, http.StatusOK, removeResponse{State: state})
}
