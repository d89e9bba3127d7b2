package domain

import (
	"context"
	"time"
)

// MarketStore provides access to persisted market configurations (the
// original front end loads these from Supabase).
type MarketStore interface {
	// Get returns the market configuration with the given ID, or ErrNotFound.
	Get(ctx context.Context, id string) (MarketConfig, error)
	// Upsert inserts or replaces a market configuration.
	Upsert(ctx context.Context, m MarketConfig) error
	// List returns all stored market configurations.
	List(ctx context.Context) ([]MarketConfig, error)
}

// OperationStore is the journal of orchestrated operation outcomes.
type OperationStore interface {
	// Insert appends one operation record.
	Insert(ctx context.Context, rec OperationRecord) error
	// ListRecent returns up to limit records, newest first.
	ListRecent(ctx context.Context, limit int) ([]OperationRecord, error)
	// ListBefore returns all records created strictly before the cutoff,
	// oldest first. Used by the archiver.
	ListBefore(ctx context.Context, before time.Time) ([]OperationRecord, error)
	// DeleteBefore removes records created strictly before the cutoff and
	// returns the number deleted. Run only after a verified archive.
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}
