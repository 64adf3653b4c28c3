package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/DMZ-Consulting/blue-deer-ledger/internal/domain"
)

// PositionStore implements domain.PositionStore using PostgreSQL.
//
// The instrument and the derived snapshot are stored as JSONB: neither is
// queried field-by-field, and the snapshot is display data only (the
// transaction list is the source of truth). Scalar columns carry everything
// list queries filter on.
type PositionStore struct {
	pool *pgxpool.Pool
}

// NewPositionStore creates a new PositionStore backed by the given connection pool.
func NewPositionStore(pool *pgxpool.Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

const positionSelectCols = `id, symbol, instrument, direction, profile,
	status, snapshot, opened_at, closed_at, created_at`

func scanPosition(row pgx.Row) (domain.Position, error) {
	var (
		p              domain.Position
		direction      string
		status         string
		instrumentJSON []byte
		snapshotJSON   []byte
		closedAt       *time.Time
	)

	err := row.Scan(
		&p.ID, &p.Symbol, &instrumentJSON, &direction, &p.Profile,
		&status, &snapshotJSON, &p.OpenedAt, &closedAt, &p.CreatedAt,
	)
	if err != nil {
		return domain.Position{}, err
	}

	p.Direction = domain.Direction(direction)
	if err := json.Unmarshal(instrumentJSON, &p.Instrument); err != nil {
		return domain.Position{}, fmt.Errorf("decode instrument for %s: %w", p.ID, err)
	}
	if len(snapshotJSON) > 0 {
		var state domain.PositionState
		if err := json.Unmarshal(snapshotJSON, &state); err != nil {
			return domain.Position{}, fmt.Errorf("decode snapshot for %s: %w", p.ID, err)
		}
		p.Snapshot = &state
	}
	return p, nil
}

func collectPositions(rows pgx.Rows) ([]domain.Position, error) {
	defer rows.Close()
	var positions []domain.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// Create inserts a new position with its initial snapshot.
func (s *PositionStore) Create(ctx context.Context, p domain.Position) error {
	instrumentJSON, err := json.Marshal(p.Instrument)
	if err != nil {
		return fmt.Errorf("postgres: encode instrument for %s: %w", p.ID, err)
	}
	snapshotJSON, closedAt, err := encodeSnapshot(p.Snapshot)
	if err != nil {
		return fmt.Errorf("postgres: encode snapshot for %s: %w", p.ID, err)
	}

	const query = `
		INSERT INTO positions (
			id, symbol, instrument, direction, profile,
			status, snapshot, opened_at, closed_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10, NOW()
		)`

	_, err = s.pool.Exec(ctx, query,
		p.ID, p.Symbol, instrumentJSON, string(p.Direction), p.Profile,
		snapshotStatus(p.Snapshot), snapshotJSON, p.OpenedAt, closedAt, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create position %s: %w", p.ID, err)
	}
	return nil
}

// GetByID retrieves a single position by its ID.
func (s *PositionStore) GetByID(ctx context.Context, id string) (domain.Position, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+positionSelectCols+` FROM positions WHERE id = $1`, id)

	p, err := scanPosition(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Position{}, domain.ErrNotFound
		}
		return domain.Position{}, fmt.Errorf("postgres: get position %s: %w", id, err)
	}
	return p, nil
}

// List returns positions matching the given options, newest first.
func (s *PositionStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Position, error) {
	query := `SELECT ` + positionSelectCols + ` FROM positions WHERE 1=1`
	var args []any
	argIdx := 1

	if opts.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, string(*opts.Status))
		argIdx++
	}
	if opts.Since != nil {
		query += fmt.Sprintf(" AND opened_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND opened_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY opened_at DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list positions: %w", err)
	}
	positions, err := collectPositions(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan positions: %w", err)
	}
	return positions, nil
}

// UpdateSnapshot replaces the persisted derived state after a recompute.
func (s *PositionStore) UpdateSnapshot(ctx context.Context, id string, state domain.PositionState) error {
	snapshotJSON, closedAt, err := encodeSnapshot(&state)
	if err != nil {
		return fmt.Errorf("postgres: encode snapshot for %s: %w", id, err)
	}

	const query = `
		UPDATE positions SET
			status     = $2,
			snapshot   = $3,
			closed_at  = $4,
			updated_at = NOW()
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query, id, string(state.Status), snapshotJSON, closedAt)
	if err != nil {
		return fmt.Errorf("postgres: update snapshot for %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListClosedBefore returns positions closed strictly before the cutoff.
func (s *PositionStore) ListClosedBefore(ctx context.Context, before time.Time) ([]domain.Position, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+positionSelectCols+` FROM positions
		 WHERE status = 'closed' AND closed_at < $1
		 ORDER BY closed_at ASC`, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list closed positions: %w", err)
	}
	positions, err := collectPositions(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan closed positions: %w", err)
	}
	return positions, nil
}

func encodeSnapshot(state *domain.PositionState) ([]byte, *time.Time, error) {
	if state == nil {
		return nil, nil, nil
	}
	data, err := json.Marshal(state)
	if err != nil {
		return nil, nil, err
	}
	return data, state.ClosedAt, nil
}

func snapshotStatus(state *domain.PositionState) string {
	if state == nil {
		return string(domain.PositionStatusOpen)
	}
	return string(state.Status)
}
