// Package store provides persistent storage for pollgate using SQLite.
//
// # Data Models
//
//   - Poll: a chat's poll; at most one open poll (closed_at IS NULL) per chat
//   - Choice: owned by a Poll, deleted with it
//   - Vote: owned by a Choice, unique per (choice, user)
//   - ProcessedUpdate: dedup ledger rows, purged past the retention window
//
// # Unit of Work
//
// Every read-modify-write runs inside WithTx, which wraps a single SQLite
// transaction:
//
//	err := st.WithTx(ctx, func(tx *store.Tx) error {
//	    poll, err := tx.ActivePoll(ctx, chatID)
//	    ...
//	})
//
// The "read active poll, check invariant, write" sequence is atomic, so two
// near-simultaneous create commands for the same chat cannot both pass the
// single-active-poll check. Ownership cascades (poll -> choices -> votes)
// are executed explicitly inside the transaction, not left to the engine's
// foreign key handling alone.
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode for concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// Timestamps are stored as UTC RFC3339 strings.
//
// # Error Handling
//
//   - ErrNotFound: requested entity does not exist (including "no active poll")
//   - ErrDuplicateVote: (choice, user) unique constraint violated
//
// All methods accept context.Context.
package store
