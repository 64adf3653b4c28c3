package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
	Status *PositionStatus
}

// PositionStore persists positions and their derived snapshots. Positions are
// never deleted; they are amended through their transaction list.
type PositionStore interface {
	Create(ctx context.Context, pos Position) error
	GetByID(ctx context.Context, id string) (Position, error)
	List(ctx context.Context, opts ListOpts) ([]Position, error)
	// UpdateSnapshot replaces the persisted derived state after a recompute.
	UpdateSnapshot(ctx context.Context, id string, state PositionState) error
	// ListClosedBefore returns positions closed strictly before the cutoff,
	// used by the archiver.
	ListClosedBefore(ctx context.Context, before time.Time) ([]Position, error)
}

// TransactionStore persists the append-only transaction history of positions.
// Rows are immutable once created; corrections are explicit deletes followed
// by new appends.
type TransactionStore interface {
	Append(ctx context.Context, tx Transaction) error
	Delete(ctx context.Context, id string) (Transaction, error)
	GetByID(ctx context.Context, id string) (Transaction, error)
	// ListByPosition returns all transactions for a position ordered by
	// executed_at ascending.
	ListByPosition(ctx context.Context, positionID string) ([]Transaction, error)
}

// RiskProfileStore persists named risk profiles.
type RiskProfileStore interface {
	Get(ctx context.Context, name string) (RiskProfile, error)
	Upsert(ctx context.Context, profile RiskProfile) error
	List(ctx context.Context) ([]RiskProfile, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log of journal mutations.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
