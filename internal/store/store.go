// ABOUTME: Store data types and errors for pollgate persistence
// ABOUTME: Defines Poll, Choice, Vote, ProcessedUpdate and the sentinel errors

package store

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicateVote is returned when a vote violates the (choice, user)
// uniqueness constraint. It backstops the operation-level vote rule even
// under interleavings the precondition check misses.
var ErrDuplicateVote = errors.New("duplicate vote for choice")

// Poll is a poll in a chat. At most one poll per chat has ClosedAt unset;
// that invariant is checked inside the same transaction as the insert.
type Poll struct {
	ID            int64
	Title         string
	ChatID        string // "@channel" for public channels, otherwise a numeric id
	CreatorUserID int64
	CreatedAt     time.Time
	ClosedAt      *time.Time
	MultiVote     bool // one-way transition false -> true

	// Choices in declaration order, each with its votes, when loaded via
	// ActivePoll. Not populated by the write paths.
	Choices []*Choice
}

// Closed reports whether the poll has been closed.
func (p *Poll) Closed() bool {
	return p.ClosedAt != nil
}

// Choice belongs to exactly one poll. Deleting a poll deletes its choices,
// deleting a choice deletes its votes.
type Choice struct {
	ID     int64
	PollID int64
	Text   string

	Votes []*Vote
}

// Vote is one user's vote for one choice. UserName is denormalized at cast
// time so closed polls render without user lookups.
type Vote struct {
	ID        int64
	ChoiceID  int64
	UserID    int64
	UserName  string
	CreatedAt time.Time
}

// ProcessedUpdate is one row of the dedup ledger. UpdateID is the
// transport-assigned update identifier; it may legitimately repeat after
// long delays, so rows are purged past the retention window rather than
// kept forever.
type ProcessedUpdate struct {
	ID        string // UUID v4
	UpdateID  int64
	FirstSeen time.Time
}
