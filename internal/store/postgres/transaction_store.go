package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/DMZ-Consulting/blue-deer-ledger/internal/domain"
)

// TransactionStore implements domain.TransactionStore using PostgreSQL.
// Prices and quantities are NUMERIC columns so values round-trip without
// binary float drift.
type TransactionStore struct {
	pool *pgxpool.Pool
}

// NewTransactionStore creates a new TransactionStore backed by the given connection pool.
func NewTransactionStore(pool *pgxpool.Pool) *TransactionStore {
	return &TransactionStore{pool: pool}
}

const transactionSelectCols = `id, position_id, kind, price, quantity, executed_at, created_at`

func scanTransaction(row pgx.Row) (domain.Transaction, error) {
	var t domain.Transaction
	var kind string

	err := row.Scan(
		&t.ID, &t.PositionID, &kind,
		&t.Price, &t.Quantity,
		&t.ExecutedAt, &t.CreatedAt,
	)
	if err != nil {
		return domain.Transaction{}, err
	}
	t.Kind = domain.TransactionKind(kind)
	return t, nil
}

// Append inserts a new transaction row.
func (s *TransactionStore) Append(ctx context.Context, tx domain.Transaction) error {
	const query = `
		INSERT INTO transactions (
			id, position_id, kind, price, quantity, executed_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.pool.Exec(ctx, query,
		tx.ID, tx.PositionID, string(tx.Kind),
		tx.Price, tx.Quantity,
		tx.ExecutedAt, tx.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: append transaction %s: %w", tx.ID, err)
	}
	return nil
}

// Delete removes a transaction and returns the deleted row.
func (s *TransactionStore) Delete(ctx context.Context, id string) (domain.Transaction, error) {
	row := s.pool.QueryRow(ctx,
		`DELETE FROM transactions WHERE id = $1
		 RETURNING `+transactionSelectCols, id)

	tx, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Transaction{}, domain.ErrNotFound
		}
		return domain.Transaction{}, fmt.Errorf("postgres: delete transaction %s: %w", id, err)
	}
	return tx, nil
}

// GetByID retrieves a single transaction by its ID.
func (s *TransactionStore) GetByID(ctx context.Context, id string) (domain.Transaction, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+transactionSelectCols+` FROM transactions WHERE id = $1`, id)

	tx, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Transaction{}, domain.ErrNotFound
		}
		return domain.Transaction{}, fmt.Errorf("postgres: get transaction %s: %w", id, err)
	}
	return tx, nil
}

// ListByPosition returns all transactions for a position ordered by
// executed_at ascending, with created_at as the tiebreaker.
func (s *TransactionStore) ListByPosition(ctx context.Context, positionID string) ([]domain.Transaction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+transactionSelectCols+` FROM transactions
		 WHERE position_id = $1
		 ORDER BY executed_at ASC, created_at ASC`, positionID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list transactions for %s: %w", positionID, err)
	}
	defer rows.Close()

	var txs []domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan transaction: %w", err)
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}
