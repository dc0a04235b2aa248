// ABOUTME: Persistent admit-once ledger for deduplicating inbound updates
// ABOUTME: Backs exactly-once logical processing under at-least-once delivery

package dedupe

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/2389/pollgate/internal/store"
)

// DefaultRetention bounds how long a repeated delivery is recognized as a
// repeat. Outside the window a replayed update is processed as new; update
// identifiers may legitimately recur after long delays, so this is a
// documented limitation rather than a bug.
const DefaultRetention = 7 * 24 * time.Hour

// Ledger decides whether an inbound update has been seen before. It is
// backed by the processed_updates table so the decision survives restarts
// and is shared by all replicas.
type Ledger struct {
	store     *store.SQLiteStore
	retention time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a ledger with the given retention window. A non-positive
// retention falls back to DefaultRetention.
func New(st *store.SQLiteStore, retention time.Duration) *Ledger {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Ledger{
		store:     st,
		retention: retention,
		logger:    slog.Default().With("component", "dedupe"),
		now:       time.Now,
	}
}

// Admit returns true the first time updateID is observed within the
// retention window and false on any repeat. The check, the bookkeeping
// insert and the amortized purge of stale rows all run in one store
// transaction; there is no separate sweep process.
//
// A false return means the caller must skip all further processing for the
// update but still acknowledge the transport: repeats are not errors.
func (l *Ledger) Admit(ctx context.Context, updateID int64) (bool, error) {
	admitted := false
	err := l.store.WithTx(ctx, func(tx *store.Tx) error {
		now := l.now().UTC()

		purged, err := tx.PurgeProcessedUpdates(ctx, now.Add(-l.retention))
		if err != nil {
			return err
		}
		if purged > 0 {
			l.logger.Debug("purged stale ledger rows", "count", purged)
		}

		seen, err := tx.SeenUpdate(ctx, updateID)
		if err != nil {
			return err
		}
		if seen {
			return nil
		}

		if err := tx.InsertProcessedUpdate(ctx, &store.ProcessedUpdate{
			ID:        uuid.NewString(),
			UpdateID:  updateID,
			FirstSeen: now,
		}); err != nil {
			return err
		}
		admitted = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("admitting update %d: %w", updateID, err)
	}

	if !admitted {
		l.logger.Info("dropped duplicate update", "update_id", updateID)
	}
	return admitted, nil
}
