// ABOUTME: Poll, choice and vote operations on a store transaction
// ABOUTME: Implements the active-poll read, inserts, cascaded deletes and state flips

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// HasActivePoll reports whether the chat currently has an open poll.
func (t *Tx) HasActivePoll(ctx context.Context, chatID string) (bool, error) {
	query := `SELECT COUNT(*) FROM polls WHERE chat_id = ? AND closed_at IS NULL`

	var count int
	if err := t.tx.QueryRowContext(ctx, query, chatID).Scan(&count); err != nil {
		return false, fmt.Errorf("counting active polls: %w", err)
	}
	return count > 0, nil
}

// ActivePoll returns the chat's open poll with its choices and votes loaded,
// choices in declaration order and votes in cast order.
// Returns ErrNotFound when the chat has no active poll.
func (t *Tx) ActivePoll(ctx context.Context, chatID string) (*Poll, error) {
	query := `
		SELECT poll_id, title, chat_id, creator_user_id, created_at, closed_at, is_multi_vote
		FROM polls
		WHERE chat_id = ? AND closed_at IS NULL
		ORDER BY poll_id
		LIMIT 1
	`

	poll, err := scanPoll(t.tx.QueryRowContext(ctx, query, chatID))
	if err != nil {
		return nil, err
	}

	if err := t.loadChoices(ctx, poll); err != nil {
		return nil, err
	}
	return poll, nil
}

// loadChoices populates poll.Choices and each choice's votes.
func (t *Tx) loadChoices(ctx context.Context, poll *Poll) error {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT choice_id, poll_id, text
		FROM poll_choices
		WHERE poll_id = ?
		ORDER BY choice_id
	`, poll.ID)
	if err != nil {
		return fmt.Errorf("querying choices: %w", err)
	}
	defer rows.Close()

	byID := make(map[int64]*Choice)
	for rows.Next() {
		c := &Choice{}
		if err := rows.Scan(&c.ID, &c.PollID, &c.Text); err != nil {
			return fmt.Errorf("scanning choice: %w", err)
		}
		poll.Choices = append(poll.Choices, c)
		byID[c.ID] = c
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating choices: %w", err)
	}

	voteRows, err := t.tx.QueryContext(ctx, `
		SELECT v.vote_id, v.choice_id, v.user_id, v.user_name, v.created_at
		FROM poll_votes v
		JOIN poll_choices c ON c.choice_id = v.choice_id
		WHERE c.poll_id = ?
		ORDER BY v.vote_id
	`, poll.ID)
	if err != nil {
		return fmt.Errorf("querying votes: %w", err)
	}
	defer voteRows.Close()

	for voteRows.Next() {
		v := &Vote{}
		var createdAt string
		if err := voteRows.Scan(&v.ID, &v.ChoiceID, &v.UserID, &v.UserName, &createdAt); err != nil {
			return fmt.Errorf("scanning vote: %w", err)
		}
		if v.CreatedAt, err = parseTime(createdAt); err != nil {
			return err
		}
		if c, ok := byID[v.ChoiceID]; ok {
			c.Votes = append(c.Votes, v)
		}
	}
	if err := voteRows.Err(); err != nil {
		return fmt.Errorf("iterating votes: %w", err)
	}

	return nil
}

// InsertPoll inserts a poll row and fills in its assigned ID.
// Callers must check HasActivePoll in the same transaction first.
func (t *Tx) InsertPoll(ctx context.Context, poll *Poll) error {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO polls (title, chat_id, creator_user_id, created_at, is_multi_vote)
		VALUES (?, ?, ?, ?, ?)
	`, poll.Title, poll.ChatID, poll.CreatorUserID, formatTime(poll.CreatedAt), poll.MultiVote)
	if err != nil {
		return fmt.Errorf("inserting poll: %w", err)
	}

	if poll.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("reading poll id: %w", err)
	}

	t.logger.Debug("created poll", "id", poll.ID, "chat", poll.ChatID)
	return nil
}

// InsertChoice inserts a choice row and fills in its assigned ID.
func (t *Tx) InsertChoice(ctx context.Context, choice *Choice) error {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO poll_choices (poll_id, text) VALUES (?, ?)
	`, choice.PollID, choice.Text)
	if err != nil {
		return fmt.Errorf("inserting choice: %w", err)
	}

	if choice.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("reading choice id: %w", err)
	}
	return nil
}

// DeleteChoice deletes a choice and its votes. The votes are deleted
// explicitly before the choice so the cascade does not depend on the
// engine's foreign key handling. Returns ErrNotFound for an unknown choice.
func (t *Tx) DeleteChoice(ctx context.Context, choiceID int64) error {
	if _, err := t.tx.ExecContext(ctx,
		`DELETE FROM poll_votes WHERE choice_id = ?`, choiceID); err != nil {
		return fmt.Errorf("deleting votes of choice: %w", err)
	}

	res, err := t.tx.ExecContext(ctx,
		`DELETE FROM poll_choices WHERE choice_id = ?`, choiceID)
	if err != nil {
		return fmt.Errorf("deleting choice: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	t.logger.Debug("deleted choice", "id", choiceID)
	return nil
}

// InsertVote inserts a vote row and fills in its assigned ID.
// Returns ErrDuplicateVote when the (choice, user) pair already voted.
func (t *Tx) InsertVote(ctx context.Context, vote *Vote) error {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO poll_votes (choice_id, user_id, user_name, created_at)
		VALUES (?, ?, ?, ?)
	`, vote.ChoiceID, vote.UserID, vote.UserName, formatTime(vote.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateVote
		}
		return fmt.Errorf("inserting vote: %w", err)
	}

	if vote.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("reading vote id: %w", err)
	}
	return nil
}

// SetMultiVote flips the poll's multi-vote flag on. The flag never goes
// back to false.
func (t *Tx) SetMultiVote(ctx context.Context, pollID int64) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE polls SET is_multi_vote = 1 WHERE poll_id = ?`, pollID)
	if err != nil {
		return fmt.Errorf("setting multi-vote: %w", err)
	}
	return requireAffected(res)
}

// ClosePoll sets the poll's closed timestamp. Closed polls are never
// deleted.
func (t *Tx) ClosePoll(ctx context.Context, pollID int64, at time.Time) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE polls SET closed_at = ? WHERE poll_id = ? AND closed_at IS NULL`,
		formatTime(at), pollID)
	if err != nil {
		return fmt.Errorf("closing poll: %w", err)
	}
	return requireAffected(res)
}

// scanPoll scans one poll row, mapping sql.ErrNoRows to ErrNotFound.
func scanPoll(row *sql.Row) (*Poll, error) {
	p := &Poll{}
	var createdAt string
	var closedAt sql.NullString

	err := row.Scan(&p.ID, &p.Title, &p.ChatID, &p.CreatorUserID, &createdAt, &closedAt, &p.MultiVote)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning poll: %w", err)
	}

	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if closedAt.Valid {
		closed, err := parseTime(closedAt.String)
		if err != nil {
			return nil, err
		}
		p.ClosedAt = &closed
	}
	return p, nil
}

// requireAffected maps a zero-row update to ErrNotFound.
func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// isUniqueViolation detects a SQLite unique constraint failure.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
