// ABOUTME: Transactional poll operations, one store transaction per command
// ABOUTME: Enforces single-active-poll, creator-only edits and the vote uniqueness rules

package poll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/2389/pollgate/internal/store"
)

// Actor identifies the chat-platform user issuing a command. Name is
// denormalized into votes at cast time.
type Actor struct {
	ID   int64
	Name string
}

// Service implements the poll lifecycle operations. Every method runs one
// store transaction; the "read active poll, check invariant, write"
// sequence is atomic so concurrent commands cannot slip past a
// precondition check.
type Service struct {
	store  *store.SQLiteStore
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a poll service on top of the given store.
func NewService(st *store.SQLiteStore) *Service {
	return &Service{
		store:  st,
		logger: slog.Default().With("component", "poll"),
		now:    time.Now,
	}
}

// Active returns the chat's active poll with choices and votes loaded.
// Returns ErrNoActivePoll when the chat has none; that is an expected
// state, not a fault.
func (s *Service) Active(ctx context.Context, chatID string) (*store.Poll, error) {
	var poll *store.Poll
	err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		var err error
		poll, err = s.activePoll(ctx, tx, chatID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return poll, nil
}

// Create creates a new poll with its initial choices. Fails with
// ErrPollExists when the chat already has an active poll (including the
// race where one appeared after the creation offer was shown) and
// ErrMissingChoices when no choices are given.
func (s *Service) Create(ctx context.Context, chatID string, creator Actor, title string, choices []string) (*store.Poll, error) {
	if len(choices) == 0 {
		return nil, ErrMissingChoices
	}

	poll := &store.Poll{
		Title:         title,
		ChatID:        chatID,
		CreatorUserID: creator.ID,
		CreatedAt:     s.now().UTC(),
	}

	err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		exists, err := tx.HasActivePoll(ctx, chatID)
		if err != nil {
			return err
		}
		if exists {
			return ErrPollExists
		}

		if err := tx.InsertPoll(ctx, poll); err != nil {
			return err
		}
		for _, text := range choices {
			choice := &store.Choice{PollID: poll.ID, Text: text}
			if err := tx.InsertChoice(ctx, choice); err != nil {
				return err
			}
			poll.Choices = append(poll.Choices, choice)
		}
		return nil
	})
	if err != nil {
		s.logger.Info("poll creation rejected", "chat", chatID, "error", err)
		return nil, err
	}

	s.logger.Info("created poll", "chat", chatID, "poll", poll.ID, "choices", len(poll.Choices))
	return poll, nil
}

// AddChoice appends a choice to the chat's active poll.
func (s *Service) AddChoice(ctx context.Context, chatID, text string) (*store.Choice, error) {
	choice := &store.Choice{Text: text}

	err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		poll, err := s.activePoll(ctx, tx, chatID)
		if err != nil {
			return err
		}
		choice.PollID = poll.ID
		return tx.InsertChoice(ctx, choice)
	})
	if err != nil {
		return nil, err
	}
	return choice, nil
}

// RemoveChoice deletes a choice and, by ownership cascade, its votes.
// Only the poll creator may remove choices, and never the last one. The
// embedded id is validated against the currently active poll because the
// control may be pressed long after it was rendered.
// Returns the removed choice's text.
func (s *Service) RemoveChoice(ctx context.Context, chatID string, actorID, choiceID int64) (string, error) {
	var removed string

	err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		poll, err := s.activePoll(ctx, tx, chatID)
		if err != nil {
			return err
		}
		if poll.CreatorUserID != actorID {
			return ErrNotCreator
		}
		if len(poll.Choices) == 1 {
			return ErrLastChoice
		}

		choice := findChoice(poll, choiceID)
		if choice == nil {
			return ErrUnknownChoice
		}
		removed = choice.Text
		return tx.DeleteChoice(ctx, choice.ID)
	})
	if err != nil {
		return "", err
	}
	return removed, nil
}

// AllowMultiVote flips the poll's multi-vote flag on. The transition is
// one-way; there is no operation to turn it back off.
func (s *Service) AllowMultiVote(ctx context.Context, chatID string, actorID int64) error {
	return s.store.WithTx(ctx, func(tx *store.Tx) error {
		poll, err := s.activePoll(ctx, tx, chatID)
		if err != nil {
			return err
		}
		if poll.CreatorUserID != actorID {
			return ErrNotCreator
		}
		return tx.SetMultiVote(ctx, poll.ID)
	})
}

// CastVote records the actor's vote for a choice and returns the poll
// reloaded with the new vote. On a single-vote poll the actor may hold at
// most one vote across all choices; on a multi-vote poll at most one per
// choice. The store's unique constraint backstops the per-choice rule
// under interleavings the precondition check misses.
func (s *Service) CastVote(ctx context.Context, chatID string, actor Actor, choiceID int64) (*store.Poll, error) {
	var poll *store.Poll

	err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		var err error
		poll, err = s.activePoll(ctx, tx, chatID)
		if err != nil {
			return err
		}

		choice := findChoice(poll, choiceID)
		if choice == nil {
			return ErrUnknownChoice
		}

		if poll.MultiVote {
			if hasVote(choice, actor.ID) {
				return ErrDuplicateVote
			}
		} else {
			for _, c := range poll.Choices {
				if hasVote(c, actor.ID) {
					return ErrDuplicateVote
				}
			}
		}

		vote := &store.Vote{
			ChoiceID:  choice.ID,
			UserID:    actor.ID,
			UserName:  actor.Name,
			CreatedAt: s.now().UTC(),
		}
		if err := tx.InsertVote(ctx, vote); err != nil {
			if errors.Is(err, store.ErrDuplicateVote) {
				return ErrDuplicateVote
			}
			return err
		}
		choice.Votes = append(choice.Votes, vote)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return poll, nil
}

// Close sets the poll's closed timestamp and returns the poll for the final
// tally. Only the creator may close; closed polls are never deleted.
func (s *Service) Close(ctx context.Context, chatID string, actorID int64) (*store.Poll, error) {
	var poll *store.Poll

	err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		var err error
		poll, err = s.activePoll(ctx, tx, chatID)
		if err != nil {
			return err
		}
		if poll.CreatorUserID != actorID {
			return ErrNotCreator
		}

		closedAt := s.now().UTC()
		if err := tx.ClosePoll(ctx, poll.ID, closedAt); err != nil {
			return fmt.Errorf("closing poll %d: %w", poll.ID, err)
		}
		poll.ClosedAt = &closedAt
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("closed poll", "chat", chatID, "poll", poll.ID)
	return poll, nil
}

// activePoll loads the chat's active poll, mapping the store's not-found to
// the expected-state error.
func (s *Service) activePoll(ctx context.Context, tx *store.Tx, chatID string) (*store.Poll, error) {
	poll, err := tx.ActivePoll(ctx, chatID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNoActivePoll
	}
	if err != nil {
		return nil, err
	}
	return poll, nil
}

// findChoice returns the poll's choice with the given id, or nil.
func findChoice(poll *store.Poll, choiceID int64) *store.Choice {
	for _, c := range poll.Choices {
		if c.ID == choiceID {
			return c
		}
	}
	return nil
}

// hasVote reports whether the user already voted for the choice.
func hasVote(choice *store.Choice, userID int64) bool {
	for _, v := range choice.Votes {
		if v.UserID == userID {
			return true
		}
	}
	return false
}
