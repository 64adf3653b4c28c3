// Package service implements the journal's use cases on top of the domain
// stores and the pure ledger/sizing engines. Services own no business math of
// their own: every derived figure comes from ledger.Reduce or the sizing
// helpers, so all call sites agree on one canonical implementation.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/DMZ-Consulting/blue-deer-ledger/internal/domain"
	"github.com/DMZ-Consulting/blue-deer-ledger/internal/ledger"
)

// EventChannel is the pub/sub channel journal mutations are published on.
const EventChannel = "journal"

// EventStream is the durable Redis stream mirroring EventChannel. Consumers
// that reconnect use it to replay mutations they missed.
const EventStream = "journal:events"

// JournalService manages positions and their transaction histories. Every
// mutation re-reduces the full transaction list before anything is persisted,
// so an invalid append (over-close, bad sequence) is rejected without
// touching storage.
type JournalService struct {
	positions    domain.PositionStore
	transactions domain.TransactionStore
	states       domain.StateCache
	bus          domain.SignalBus
	audit        domain.AuditStore
	logger       *slog.Logger
}

// NewJournalService creates a JournalService with all required dependencies.
func NewJournalService(
	positions domain.PositionStore,
	transactions domain.TransactionStore,
	states domain.StateCache,
	bus domain.SignalBus,
	audit domain.AuditStore,
	logger *slog.Logger,
) *JournalService {
	return &JournalService{
		positions:    positions,
		transactions: transactions,
		states:       states,
		bus:          bus,
		audit:        audit,
		logger:       logger,
	}
}

// OpenParams carries everything needed to create a position with its opening
// transaction.
type OpenParams struct {
	Symbol     string
	Instrument domain.Instrument
	Direction  domain.Direction
	Profile    string
	Price      decimal.Decimal
	Quantity   decimal.Decimal
	ExecutedAt time.Time
}

// Open creates a new position from its first opening transaction.
func (s *JournalService) Open(ctx context.Context, p OpenParams) (domain.Position, error) {
	if err := p.Instrument.Validate(); err != nil {
		return domain.Position{}, fmt.Errorf("journal_service: %w", err)
	}
	if p.Direction != domain.DirectionLong && p.Direction != domain.DirectionShort {
		return domain.Position{}, fmt.Errorf("journal_service: %w: direction must be bto or sto, got %q", domain.ErrInvalidInput, p.Direction)
	}

	now := time.Now().UTC()
	executedAt := p.ExecutedAt
	if executedAt.IsZero() {
		executedAt = now
	}

	pos := domain.Position{
		ID:         uuid.NewString(),
		Symbol:     p.Symbol,
		Instrument: p.Instrument,
		Direction:  p.Direction,
		Profile:    p.Profile,
		OpenedAt:   executedAt,
		CreatedAt:  now,
	}
	opening := domain.Transaction{
		ID:         uuid.NewString(),
		PositionID: pos.ID,
		Kind:       domain.TxOpen,
		Price:      p.Price,
		Quantity:   p.Quantity,
		ExecutedAt: executedAt,
		CreatedAt:  now,
	}
	if err := opening.Validate(); err != nil {
		return domain.Position{}, fmt.Errorf("journal_service: %w", err)
	}

	state, err := ledger.Reduce(pos.Instrument, pos.Direction, []domain.Transaction{opening})
	if err != nil {
		return domain.Position{}, fmt.Errorf("journal_service: reduce opening transaction: %w", err)
	}
	pos.Snapshot = &state

	if err := s.positions.Create(ctx, pos); err != nil {
		return domain.Position{}, fmt.Errorf("journal_service: create position: %w", err)
	}
	if err := s.transactions.Append(ctx, opening); err != nil {
		return domain.Position{}, fmt.Errorf("journal_service: append opening transaction: %w", err)
	}

	s.afterMutation(ctx, pos, opening, state, "position_opened")
	return pos, nil
}

// Append records a further ADD/TRIM/CLOSE transaction against an existing
// position. The candidate is validated by reducing the would-be history
// first; ledger violations (ErrOverClose, ErrInvalidSequence, ...) reject the
// append before anything is written.
func (s *JournalService) Append(ctx context.Context, positionID string, kind domain.TransactionKind, price, quantity decimal.Decimal, executedAt time.Time) (domain.Transaction, domain.PositionState, error) {
	if kind == domain.TxOpen {
		return domain.Transaction{}, domain.PositionState{}, fmt.Errorf("journal_service: position %s already open: %w", positionID, domain.ErrInvalidSequence)
	}

	pos, err := s.positions.GetByID(ctx, positionID)
	if err != nil {
		return domain.Transaction{}, domain.PositionState{}, fmt.Errorf("journal_service: get position %q: %w", positionID, err)
	}
	history, err := s.transactions.ListByPosition(ctx, positionID)
	if err != nil {
		return domain.Transaction{}, domain.PositionState{}, fmt.Errorf("journal_service: list transactions for %q: %w", positionID, err)
	}

	now := time.Now().UTC()
	if executedAt.IsZero() {
		executedAt = now
	}
	tx := domain.Transaction{
		ID:         uuid.NewString(),
		PositionID: positionID,
		Kind:       kind,
		Price:      price,
		Quantity:   quantity,
		ExecutedAt: executedAt,
		CreatedAt:  now,
	}
	if err := tx.Validate(); err != nil {
		return domain.Transaction{}, domain.PositionState{}, fmt.Errorf("journal_service: %w", err)
	}

	state, err := ledger.Reduce(pos.Instrument, pos.Direction, append(history, tx))
	if err != nil {
		return domain.Transaction{}, domain.PositionState{}, fmt.Errorf("journal_service: reduce with candidate: %w", err)
	}

	if err := s.transactions.Append(ctx, tx); err != nil {
		return domain.Transaction{}, domain.PositionState{}, fmt.Errorf("journal_service: append transaction: %w", err)
	}
	if err := s.positions.UpdateSnapshot(ctx, positionID, state); err != nil {
		return domain.Transaction{}, domain.PositionState{}, fmt.Errorf("journal_service: update snapshot: %w", err)
	}

	event := "position_updated"
	if state.Closed() {
		event = "position_closed"
	}
	pos.Snapshot = &state
	s.afterMutation(ctx, pos, tx, state, event)

	return tx, state, nil
}

// Remove deletes a transaction and recomputes the position's derived state.
// The removal is validated first: if the remaining history would be invalid
// (empty, or no longer starting with an open), the removal is rejected and
// nothing changes.
func (s *JournalService) Remove(ctx context.Context, txID string) (domain.PositionState, error) {
	tx, err := s.transactions.GetByID(ctx, txID)
	if err != nil {
		return domain.PositionState{}, fmt.Errorf("journal_service: get transaction %q: %w", txID, err)
	}
	pos, err := s.positions.GetByID(ctx, tx.PositionID)
	if err != nil {
		return domain.PositionState{}, fmt.Errorf("journal_service: get position %q: %w", tx.PositionID, err)
	}
	history, err := s.transactions.ListByPosition(ctx, tx.PositionID)
	if err != nil {
		return domain.PositionState{}, fmt.Errorf("journal_service: list transactions for %q: %w", tx.PositionID, err)
	}

	remaining := make([]domain.Transaction, 0, len(history)-1)
	for _, h := range history {
		if h.ID != txID {
			remaining = append(remaining, h)
		}
	}

	state, err := ledger.Reduce(pos.Instrument, pos.Direction, remaining)
	if err != nil {
		return domain.PositionState{}, fmt.Errorf("journal_service: history invalid without %q: %w", txID, err)
	}

	if _, err := s.transactions.Delete(ctx, txID); err != nil {
		return domain.PositionState{}, fmt.Errorf("journal_service: delete transaction %q: %w", txID, err)
	}
	if err := s.positions.UpdateSnapshot(ctx, tx.PositionID, state); err != nil {
		return domain.PositionState{}, fmt.Errorf("journal_service: update snapshot: %w", err)
	}

	pos.Snapshot = &state
	s.afterMutation(ctx, pos, tx, state, "transaction_removed")
	return state, nil
}

// State returns the derived state for a position, read through the cache. A
// cache miss reduces the transaction history from storage and repopulates the
// cache.
func (s *JournalService) State(ctx context.Context, positionID string) (domain.PositionState, error) {
	if state, err := s.states.Get(ctx, positionID); err == nil {
		return state, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		s.logger.WarnContext(ctx, "journal_service: state cache read failed",
			slog.String("position_id", positionID),
			slog.String("error", err.Error()),
		)
	}

	pos, err := s.positions.GetByID(ctx, positionID)
	if err != nil {
		return domain.PositionState{}, fmt.Errorf("journal_service: get position %q: %w", positionID, err)
	}
	history, err := s.transactions.ListByPosition(ctx, positionID)
	if err != nil {
		return domain.PositionState{}, fmt.Errorf("journal_service: list transactions for %q: %w", positionID, err)
	}

	state, err := ledger.Reduce(pos.Instrument, pos.Direction, history)
	if err != nil {
		return domain.PositionState{}, fmt.Errorf("journal_service: reduce %q: %w", positionID, err)
	}

	if cacheErr := s.states.Set(ctx, positionID, state); cacheErr != nil {
		s.logger.WarnContext(ctx, "journal_service: state cache write failed",
			slog.String("position_id", positionID),
			slog.String("error", cacheErr.Error()),
		)
	}
	return state, nil
}

// Get returns a position by ID.
func (s *JournalService) Get(ctx context.Context, positionID string) (domain.Position, error) {
	pos, err := s.positions.GetByID(ctx, positionID)
	if err != nil {
		return domain.Position{}, fmt.Errorf("journal_service: get position %q: %w", positionID, err)
	}
	return pos, nil
}

// List returns positions matching the given options.
func (s *JournalService) List(ctx context.Context, opts domain.ListOpts) ([]domain.Position, error) {
	positions, err := s.positions.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("journal_service: list positions: %w", err)
	}
	return positions, nil
}

// Transactions returns a position's full transaction history, ordered by
// execution time.
func (s *JournalService) Transactions(ctx context.Context, positionID string) ([]domain.Transaction, error) {
	if _, err := s.positions.GetByID(ctx, positionID); err != nil {
		return nil, fmt.Errorf("journal_service: get position %q: %w", positionID, err)
	}
	history, err := s.transactions.ListByPosition(ctx, positionID)
	if err != nil {
		return nil, fmt.Errorf("journal_service: list transactions for %q: %w", positionID, err)
	}
	return history, nil
}

// afterMutation refreshes the state cache, publishes the journal event, and
// records the audit entry. These are best-effort side channels: failures are
// logged, never propagated, because the mutation itself has already been
// durably persisted.
func (s *JournalService) afterMutation(ctx context.Context, pos domain.Position, tx domain.Transaction, state domain.PositionState, event string) {
	if err := s.states.Set(ctx, pos.ID, state); err != nil {
		s.logger.WarnContext(ctx, "journal_service: state cache refresh failed",
			slog.String("position_id", pos.ID),
			slog.String("error", err.Error()),
		)
	}

	payload, _ := json.Marshal(map[string]any{
		"event":       event,
		"position_id": pos.ID,
		"symbol":      pos.Symbol,
		"kind":        string(tx.Kind),
		"price":       tx.Price,
		"quantity":    tx.Quantity,
		"status":      string(state.Status),
		"open_qty":    state.OpenQty,
		"realized_pl": state.RealizedPL,
	})
	if err := s.bus.Publish(ctx, EventChannel, payload); err != nil {
		s.logger.WarnContext(ctx, "journal_service: publish event failed",
			slog.String("position_id", pos.ID),
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
	if err := s.bus.StreamAppend(ctx, EventStream, payload); err != nil {
		s.logger.WarnContext(ctx, "journal_service: stream append failed",
			slog.String("position_id", pos.ID),
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}

	if err := s.audit.Log(ctx, event, map[string]any{
		"position_id":    pos.ID,
		"transaction_id": tx.ID,
		"symbol":         pos.Symbol,
		"kind":           string(tx.Kind),
		"price":          tx.Price.String(),
		"quantity":       tx.Quantity.String(),
		"status":         string(state.Status),
	}); err != nil {
		s.logger.WarnContext(ctx, "journal_service: audit log failed",
			slog.String("position_id", pos.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "journal_service: "+event,
		slog.String("position_id", pos.ID),
		slog.String("symbol", pos.Symbol),
		slog.String("kind", string(tx.Kind)),
		slog.String("open_qty", state.OpenQty.String()),
	)
}
