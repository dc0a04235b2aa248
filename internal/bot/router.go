// ABOUTME: Conversation router mapping inbound updates to poll operations
// ABOUTME: Owns the callback token grammar, failure mapping and the ack-always guarantee

package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/2389/pollgate/internal/poll"
	"github.com/2389/pollgate/internal/render"
	"github.com/2389/pollgate/internal/telegram"
)

// ParseError is malformed actor input: an unparseable reply or a callback
// token with a broken embedded id. Surfaced as an input-format message.
type ParseError struct {
	Message string
}

func (e *ParseError) Error() string {
	return e.Message
}

// Sender is the outbound transport capability the router consumes.
type Sender interface {
	SendMessage(ctx context.Context, chatID, text string, opts *telegram.SendOptions) (*telegram.Message, error)
	EditMessageText(ctx context.Context, chatID string, messageID int64, text string, opts *telegram.SendOptions) error
	AnswerCallbackQuery(ctx context.Context, callbackQueryID string) error
	DeleteMessage(ctx context.Context, chatID string, messageID int64) error
}

// Router interprets inbound updates as poll lifecycle commands. It is
// stateless between updates: free-text replies are classified by the prompt
// they reply to and callback buttons by the token they carry, so replicas
// can process any update. No failure escapes HandleUpdate.
type Router struct {
	polls  *poll.Service
	tg     Sender
	logger *slog.Logger
}

// NewRouter creates a router dispatching to the given poll service and
// responding through tg.
func NewRouter(polls *poll.Service, tg Sender) *Router {
	return &Router{
		polls:  polls,
		tg:     tg,
		logger: slog.Default().With("component", "bot"),
	}
}

// HandleUpdate processes one inbound update to completion. Callers must
// have passed the update through the dedup ledger first.
func (r *Router) HandleUpdate(ctx context.Context, update *telegram.Update) {
	switch {
	case update.Message != nil:
		r.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		r.handleCallback(ctx, update.CallbackQuery)
	}
}

// handleMessage routes a chat message. Failures become a new message in the
// chat; messages that are neither commands nor replies to a known prompt
// are ignored on purpose.
func (r *Router) handleMessage(ctx context.Context, msg *telegram.Message) {
	if msg.From == nil || msg.Text == "" {
		// Non-text content (member joins and the like)
		return
	}

	chatID := strconv.FormatInt(msg.Chat.ID, 10)
	if err := r.dispatchMessage(ctx, chatID, msg); err != nil {
		r.send(ctx, chatID, r.failureText(err), nil)
	}
}

func (r *Router) dispatchMessage(ctx context.Context, chatID string, msg *telegram.Message) error {
	if strings.HasPrefix(msg.Text, "/") {
		switch msg.Text {
		case "/start", "/poll":
			return r.showPoll(ctx, chatID, actorOf(msg.From))
		}
		return nil
	}

	if msg.ReplyToMessage == nil {
		return nil
	}
	switch msg.ReplyToMessage.Text {
	case PromptNewPoll:
		return r.createPollFromReply(ctx, chatID, msg)
	case PromptNewChoice:
		return r.addChoiceFromReply(ctx, chatID, msg)
	}
	return nil
}

// showPoll renders the chat's active poll, or offers to create one.
func (r *Router) showPoll(ctx context.Context, chatID string, actor poll.Actor) error {
	active, err := r.polls.Active(ctx, chatID)
	if errors.Is(err, poll.ErrNoActivePoll) {
		r.send(ctx, chatID, respNoPollOffer, &telegram.SendOptions{
			ReplyMarkup: render.OfferKeyboard(),
		})
		return nil
	}
	if err != nil {
		return err
	}

	r.send(ctx, chatID, render.Poll(active), &telegram.SendOptions{
		ParseMode:   telegram.ParseModeMarkdown,
		ReplyMarkup: render.PollKeyboard(active.CreatorUserID == actor.ID),
	})
	return nil
}

// createPollFromReply parses "title\nchoice\nchoice..." from a reply to the
// new-poll prompt.
func (r *Router) createPollFromReply(ctx context.Context, chatID string, msg *telegram.Message) error {
	lines := strings.Split(strings.TrimSpace(msg.Text), "\n")
	title := strings.TrimSpace(lines[0])
	if title == "" {
		return &ParseError{Message: respInvalidFormat}
	}

	created, err := r.polls.Create(ctx, chatID, actorOf(msg.From), title, lines[1:])
	if err != nil {
		return err
	}

	r.send(ctx, chatID, fmt.Sprintf(respPollCreatedF, created.Title), &telegram.SendOptions{
		ParseMode: telegram.ParseModeMarkdown,
	})
	return nil
}

// addChoiceFromReply takes the first line of a reply to the new-choice prompt.
func (r *Router) addChoiceFromReply(ctx context.Context, chatID string, msg *telegram.Message) error {
	choice := strings.TrimSpace(strings.SplitN(strings.TrimSpace(msg.Text), "\n", 2)[0])
	if choice == "" {
		return &ParseError{Message: respInvalidFormat}
	}

	added, err := r.polls.AddChoice(ctx, chatID, choice)
	if err != nil {
		return err
	}

	r.send(ctx, chatID, fmt.Sprintf(respChoiceAddedF, added.Text), &telegram.SendOptions{
		ParseMode: telegram.ParseModeMarkdown,
	})
	return nil
}

// handleCallback routes a button press. The callback is acknowledged
// exactly once whatever happens; Telegram clients show a spinner on the
// pressed button until the bot answers.
func (r *Router) handleCallback(ctx context.Context, cb *telegram.CallbackQuery) {
	defer func() {
		if err := r.tg.AnswerCallbackQuery(ctx, cb.ID); err != nil {
			r.logger.Error("acknowledging callback failed", "callback", cb.ID, "error", err)
		}
	}()

	if cb.Message == nil {
		// The control's message is gone (too old); nothing to respond to
		r.logger.Info("callback without message", "callback", cb.ID, "data", cb.Data)
		return
	}

	chatID := strconv.FormatInt(cb.Message.Chat.ID, 10)
	if err := r.dispatchCallback(ctx, chatID, cb); err != nil {
		r.edit(ctx, chatID, cb.Message.MessageID, r.failureText(err), nil)
	}
}

func (r *Router) dispatchCallback(ctx context.Context, chatID string, cb *telegram.CallbackQuery) error {
	actor := actorOf(&cb.From)
	messageID := cb.Message.MessageID
	data := cb.Data

	switch {
	case data == render.CallbackNewPoll:
		return r.offerNewPollPrompt(ctx, chatID, messageID)

	case data == render.CallbackVote:
		active, err := r.polls.Active(ctx, chatID)
		if err != nil {
			return err
		}
		r.edit(ctx, chatID, messageID, respVoteMenu, &telegram.SendOptions{
			ReplyMarkup: render.VoteKeyboard(active),
		})
		return nil

	case strings.HasPrefix(data, render.CallbackDoVotePrefix):
		choiceID, err := parseChoiceID(data, render.CallbackDoVotePrefix)
		if err != nil {
			return err
		}
		updated, err := r.polls.CastVote(ctx, chatID, actor, choiceID)
		if err != nil {
			return err
		}
		r.edit(ctx, chatID, messageID, render.Poll(updated), &telegram.SendOptions{
			ParseMode:   telegram.ParseModeMarkdown,
			ReplyMarkup: render.PollKeyboard(updated.CreatorUserID == actor.ID),
		})
		return nil

	case data == render.CallbackEditPoll:
		active, err := r.polls.Active(ctx, chatID)
		if err != nil {
			return err
		}
		r.edit(ctx, chatID, messageID, respEditMenu, &telegram.SendOptions{
			ReplyMarkup: render.EditKeyboard(active, active.CreatorUserID == actor.ID),
		})
		return nil

	case data == render.CallbackNewChoice:
		// A new message: the user must reply to the prompt itself
		r.send(ctx, chatID, PromptNewChoice, nil)
		return nil

	case data == render.CallbackRemoveChoice:
		active, err := r.polls.Active(ctx, chatID)
		if err != nil {
			return err
		}
		if active.CreatorUserID != actor.ID {
			return poll.ErrNotCreator
		}
		r.edit(ctx, chatID, messageID, respRemoveChoiceMenu, &telegram.SendOptions{
			ParseMode:   telegram.ParseModeMarkdown,
			ReplyMarkup: render.RemoveChoiceKeyboard(active),
		})
		return nil

	case strings.HasPrefix(data, render.CallbackDoRemovePrefix):
		choiceID, err := parseChoiceID(data, render.CallbackDoRemovePrefix)
		if err != nil {
			return err
		}
		removed, err := r.polls.RemoveChoice(ctx, chatID, actor.ID, choiceID)
		if err != nil {
			return err
		}
		r.edit(ctx, chatID, messageID, fmt.Sprintf(respChoiceRemovedF, removed), &telegram.SendOptions{
			ParseMode: telegram.ParseModeMarkdown,
		})
		return nil

	case data == render.CallbackAllowMultiVote:
		r.edit(ctx, chatID, messageID, respAllowMultiConfirm, &telegram.SendOptions{
			ParseMode:   telegram.ParseModeMarkdown,
			ReplyMarkup: render.ConfirmKeyboard(render.CallbackDoAllowMultiVote),
		})
		return nil

	case data == render.CallbackDoAllowMultiVote:
		if err := r.polls.AllowMultiVote(ctx, chatID, actor.ID); err != nil {
			return err
		}
		r.edit(ctx, chatID, messageID, respMultiVoteAllowed, nil)
		return nil

	case data == render.CallbackClosePoll:
		r.edit(ctx, chatID, messageID, respClosePollConfirm, &telegram.SendOptions{
			ParseMode:   telegram.ParseModeMarkdown,
			ReplyMarkup: render.ConfirmKeyboard(render.CallbackDoClosePoll),
		})
		return nil

	case data == render.CallbackDoClosePoll:
		closed, err := r.polls.Close(ctx, chatID, actor.ID)
		if err != nil {
			return err
		}
		r.edit(ctx, chatID, messageID, render.Tally(closed), &telegram.SendOptions{
			ParseMode: telegram.ParseModeMarkdown,
		})
		return nil

	case data == render.CallbackCancel:
		// Drop the pending confirmation. Deletion fails for old messages;
		// fall back to editing the text away.
		if err := r.tg.DeleteMessage(ctx, chatID, messageID); err != nil {
			r.edit(ctx, chatID, messageID, respCancelled, nil)
		}
		return nil
	}

	// Unrecognized tokens are ignored, not errors
	r.logger.Info("ignoring unknown callback token", "data", data)
	return nil
}

// offerNewPollPrompt replaces the offer message with the creation prompt,
// unless a poll appeared since the offer was shown.
func (r *Router) offerNewPollPrompt(ctx context.Context, chatID string, messageID int64) error {
	_, err := r.polls.Active(ctx, chatID)
	if err == nil {
		return poll.ErrPollExists
	}
	if !errors.Is(err, poll.ErrNoActivePoll) {
		return err
	}

	r.edit(ctx, chatID, messageID, PromptNewPoll, nil)
	return nil
}

// failureText maps a dispatch failure to the text shown to the actor.
// Expected-state and parse failures surface their own message; anything
// else is logged and hidden behind a generic response.
func (r *Router) failureText(err error) string {
	var stateErr *poll.StateError
	if errors.As(err, &stateErr) {
		r.logger.Info("command rejected", "reason", stateErr.Message)
		return stateErr.Message
	}

	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		r.logger.Info("unparseable input", "reason", parseErr.Message)
		return parseErr.Message
	}

	r.logger.Error("operation failed", "error", err)
	return respUnknownError
}

// send delivers a new message. Transport failures are logged, never
// retried here and never propagated: the storage transaction already
// committed and must not appear to fail.
func (r *Router) send(ctx context.Context, chatID, text string, opts *telegram.SendOptions) {
	if _, err := r.tg.SendMessage(ctx, chatID, text, opts); err != nil {
		r.logger.Error("sending message failed", "chat", chatID, "error", err)
	}
}

// edit replaces a message in place. Telegram rejects edits that change
// nothing (double button press); that is a no-op here, not a failure.
func (r *Router) edit(ctx context.Context, chatID string, messageID int64, text string, opts *telegram.SendOptions) {
	err := r.tg.EditMessageText(ctx, chatID, messageID, text, opts)
	if err == nil {
		return
	}
	if telegram.IsNotModified(err) {
		r.logger.Debug("edit was a no-op", "chat", chatID, "message", messageID)
		return
	}
	r.logger.Error("editing message failed", "chat", chatID, "message", messageID, "error", err)
}

// parseChoiceID extracts the embedded choice id from a parameterized token.
func parseChoiceID(data, prefix string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(data, prefix), 10, 64)
	if err != nil {
		return 0, &ParseError{Message: respInvalidFormat}
	}
	return id, nil
}

// actorOf converts the transport user into a poll actor.
func actorOf(user *telegram.User) poll.Actor {
	name := user.FirstName
	if name == "" {
		name = user.Username
	}
	return poll.Actor{ID: user.ID, Name: name}
}
