package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/futarchybot/internal/domain"
)

// OperationStore implements domain.OperationStore using PostgreSQL.
type OperationStore struct {
	pool *pgxpool.Pool
}

// NewOperationStore creates an OperationStore backed by the given connection
// pool.
func NewOperationStore(pool *pgxpool.Pool) *OperationStore {
	return &OperationStore{pool: pool}
}

const operationCols = `id, kind, family, side, owner, amount, success, tx_hash, error_kind, message, created_at`

// Insert appends one operation record.
func (s *OperationStore) Insert(ctx context.Context, rec domain.OperationRecord) error {
	const query = `
		INSERT INTO operations (` + operationCols + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := s.pool.Exec(ctx, query,
		rec.ID, string(rec.Kind), string(rec.Family), string(rec.Side),
		rec.Owner, rec.Amount, rec.Success, rec.TxHash,
		string(rec.ErrorKind), rec.Message, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert operation %s: %w", rec.ID, err)
	}
	return nil
}

// ListRecent returns up to limit records, newest first.
func (s *OperationStore) ListRecent(ctx context.Context, limit int) ([]domain.OperationRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+operationCols+` FROM operations ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent operations: %w", err)
	}
	defer rows.Close()
	return collectOperations(rows)
}

// ListBefore returns all records created strictly before the cutoff, oldest
// first.
func (s *OperationStore) ListBefore(ctx context.Context, before time.Time) ([]domain.OperationRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+operationCols+` FROM operations WHERE created_at < $1 ORDER BY created_at ASC`, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list operations before %s: %w", before, err)
	}
	defer rows.Close()
	return collectOperations(rows)
}

// DeleteBefore removes records created strictly before the cutoff.
func (s *OperationStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM operations WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete operations before %s: %w", before, err)
	}
	return tag.RowsAffected(), nil
}

func collectOperations(rows pgx.Rows) ([]domain.OperationRecord, error) {
	var recs []domain.OperationRecord
	for rows.Next() {
		var rec domain.OperationRecord
		var kind, family, side, errorKind string
		if err := rows.Scan(
			&rec.ID, &kind, &family, &side,
			&rec.Owner, &rec.Amount, &rec.Success, &rec.TxHash,
			&errorKind, &rec.Message, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan operation: %w", err)
		}
		rec.Kind = domain.OperationKind(kind)
		rec.Family = domain.TokenFamily(family)
		rec.Side = domain.Side(side)
		rec.ErrorKind = domain.ErrorKind(errorKind)
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: operation rows: %w", err)
	}
	return recs, nil
}
