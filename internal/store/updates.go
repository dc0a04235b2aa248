// ABOUTME: Processed-update ledger rows backing the event deduplicator
// ABOUTME: Lookup, insert and retention purge within a store transaction

package store

import (
	"context"
	"fmt"
	"time"
)

// SeenUpdate reports whether an update identifier is already recorded in the
// ledger. Purged rows no longer count as seen.
func (t *Tx) SeenUpdate(ctx context.Context, updateID int64) (bool, error) {
	query := `SELECT COUNT(*) FROM processed_updates WHERE update_id = ?`

	var count int
	if err := t.tx.QueryRowContext(ctx, query, updateID).Scan(&count); err != nil {
		return false, fmt.Errorf("counting processed updates: %w", err)
	}
	return count > 0, nil
}

// InsertProcessedUpdate records the first observation of an update identifier.
func (t *Tx) InsertProcessedUpdate(ctx context.Context, u *ProcessedUpdate) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO processed_updates (id, update_id, first_seen)
		VALUES (?, ?, ?)
	`, u.ID, u.UpdateID, formatTime(u.FirstSeen))
	if err != nil {
		return fmt.Errorf("inserting processed update: %w", err)
	}
	return nil
}

// PurgeProcessedUpdates deletes ledger rows first seen before the cutoff and
// returns how many were removed.
func (t *Tx) PurgeProcessedUpdates(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := t.tx.ExecContext(ctx,
		`DELETE FROM processed_updates WHERE first_seen < ?`, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("purging processed updates: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading affected rows: %w", err)
	}
	return affected, nil
}
