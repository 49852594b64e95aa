package factors

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Refresher rebuilds the table from the repository and swaps it into the store.
type Refresher struct {
	repo   Repository
	store  *Store
	logger *zap.Logger
}

// NewRefresher creates a refresher.
func NewRefresher(repo Repository, store *Store, logger *zap.Logger) *Refresher {
	return &Refresher{repo: repo, store: store, logger: logger}
}

// Refresh loads every row, validates it as a whole and publishes it. On any
// error the previous table stays in place.
func (r *Refresher) Refresh(ctx context.Context) error {
	rows, err := r.repo.LoadAll(ctx)
	if err != nil {
		return err
	}

	table, err := NewTable(rows)
	if err != nil {
		return fmt.Errorf("invalid emission factor table: %w", err)
	}

	previous := r.store.Swap(table)
	r.logger.Info("Emission factor table refreshed",
		zap.Int("rows", table.Len()),
		zap.Int("previous_rows", previous.Len()))
	return nil
}

// SeedIfEmpty loads the seed rows into an empty repository.
func (r *Refresher) SeedIfEmpty(ctx context.Context, seed []Factor) error {
	n, err := r.repo.Count(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	if _, err := NewTable(seed); err != nil {
		return fmt.Errorf("invalid factor seed: %w", err)
	}
	if err := r.repo.Upsert(ctx, seed); err != nil {
		return err
	}
	r.logger.Info("Seeded emission factor table", zap.Int("rows", len(seed)))
	return nil
}

// Sync validates seed as a whole and upserts it, so edits to the seed file
// reach the database. Rows missing from the seed are kept.
func (r *Refresher) Sync(ctx context.Context, seed []Factor) error {
	if _, err := NewTable(seed); err != nil {
		return fmt.Errorf("invalid factor seed: %w", err)
	}
	if err := r.repo.Upsert(ctx, seed); err != nil {
		return err
	}
	r.logger.Info("Synchronized emission factors", zap.Int("rows", len(seed)))
	return nil
}
