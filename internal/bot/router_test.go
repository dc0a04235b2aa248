// ABOUTME: Tests for the conversation router with a fake transport
// ABOUTME: Covers command/reply/callback dispatch, failure mapping and the ack guarantee

package bot

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/pollgate/internal/poll"
	"github.com/2389/pollgate/internal/store"
	"github.com/2389/pollgate/internal/telegram"
)

type sentMessage struct {
	chatID string
	text   string
	opts   *telegram.SendOptions
}

type editedMessage struct {
	chatID    string
	messageID int64
	text      string
	opts      *telegram.SendOptions
}

// fakeSender records outbound transport calls.
type fakeSender struct {
	sent    []sentMessage
	edits   []editedMessage
	acks    []string
	deleted []int64

	editErr   error
	deleteErr error
}

func (f *fakeSender) SendMessage(_ context.Context, chatID, text string, opts *telegram.SendOptions) (*telegram.Message, error) {
	f.sent = append(f.sent, sentMessage{chatID: chatID, text: text, opts: opts})
	return &telegram.Message{MessageID: int64(len(f.sent))}, nil
}

func (f *fakeSender) EditMessageText(_ context.Context, chatID string, messageID int64, text string, opts *telegram.SendOptions) error {
	if f.editErr != nil {
		return f.editErr
	}
	f.edits = append(f.edits, editedMessage{chatID: chatID, messageID: messageID, text: text, opts: opts})
	return nil
}

func (f *fakeSender) AnswerCallbackQuery(_ context.Context, callbackQueryID string) error {
	f.acks = append(f.acks, callbackQueryID)
	return nil
}

func (f *fakeSender) DeleteMessage(_ context.Context, _ string, messageID int64) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, messageID)
	return nil
}

func (f *fakeSender) lastSent(t *testing.T) sentMessage {
	t.Helper()
	require.NotEmpty(t, f.sent)
	return f.sent[len(f.sent)-1]
}

func (f *fakeSender) lastEdit(t *testing.T) editedMessage {
	t.Helper()
	require.NotEmpty(t, f.edits)
	return f.edits[len(f.edits)-1]
}

func setupRouter(t *testing.T) (*Router, *fakeSender, *poll.Service) {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	svc := poll.NewService(st)
	tg := &fakeSender{}
	return NewRouter(svc, tg), tg, svc
}

const testChatID int64 = 900

var (
	userAlice = telegram.User{ID: 1, FirstName: "Alice"}
	userBob   = telegram.User{ID: 2, FirstName: "Bob"}
)

func messageUpdate(from telegram.User, text string, replyTo string) *telegram.Update {
	msg := &telegram.Message{
		MessageID: 10,
		From:      &from,
		Chat:      telegram.Chat{ID: testChatID},
		Text:      text,
	}
	if replyTo != "" {
		msg.ReplyToMessage = &telegram.Message{MessageID: 9, Text: replyTo}
	}
	return &telegram.Update{UpdateID: 1, Message: msg}
}

func callbackUpdate(from telegram.User, data string) *telegram.Update {
	return &telegram.Update{
		UpdateID: 2,
		CallbackQuery: &telegram.CallbackQuery{
			ID:      "cbq-1",
			From:    from,
			Data:    data,
			Message: &telegram.Message{MessageID: 20, Chat: telegram.Chat{ID: testChatID}},
		},
	}
}

func createLunchPoll(t *testing.T, svc *poll.Service, choices ...string) *store.Poll {
	t.Helper()
	created, err := svc.Create(context.Background(), fmt.Sprint(testChatID),
		poll.Actor{ID: userAlice.ID, Name: userAlice.FirstName}, "Lunch?", choices)
	require.NoError(t, err)
	return created
}

func TestRouter_StartWithoutPoll_OffersCreation(t *testing.T) {
	router, tg, _ := setupRouter(t)

	router.HandleUpdate(context.Background(), messageUpdate(userAlice, "/start", ""))

	sent := tg.lastSent(t)
	assert.Equal(t, respNoPollOffer, sent.text)
	require.NotNil(t, sent.opts)
	require.NotNil(t, sent.opts.ReplyMarkup)
	assert.Equal(t, "/new-poll", sent.opts.ReplyMarkup.InlineKeyboard[0][0].CallbackData)
}

func TestRouter_CreatePollViaReply_ThenShow(t *testing.T) {
	router, tg, _ := setupRouter(t)
	ctx := context.Background()

	router.HandleUpdate(ctx, messageUpdate(userAlice, "Lunch?\nPizza\nSushi", PromptNewPoll))
	assert.Equal(t, "Created new poll *Lunch?*. You can use /poll to check out the current poll", tg.lastSent(t).text)

	router.HandleUpdate(ctx, messageUpdate(userAlice, "/start", ""))
	sent := tg.lastSent(t)
	assert.Contains(t, sent.text, "Lunch?\n1. Pizza (0)\n\n2. Sushi (0)")
	require.NotNil(t, sent.opts.ReplyMarkup)
	// Alice created the poll, so she sees the close control
	assert.Equal(t, "/close-poll", sent.opts.ReplyMarkup.InlineKeyboard[1][1].CallbackData)

	// Bob does not
	router.HandleUpdate(ctx, messageUpdate(userBob, "/poll", ""))
	assert.Len(t, tg.lastSent(t).opts.ReplyMarkup.InlineKeyboard[1], 1)
}

func TestRouter_CreatePoll_WithoutChoices(t *testing.T) {
	router, tg, _ := setupRouter(t)

	router.HandleUpdate(context.Background(), messageUpdate(userAlice, "Lunch?", PromptNewPoll))
	assert.Equal(t, "Missing poll choices", tg.lastSent(t).text)
}

func TestRouter_CreatePoll_WhileOneExists(t *testing.T) {
	router, tg, svc := setupRouter(t)
	createLunchPoll(t, svc, "Pizza")

	router.HandleUpdate(context.Background(), messageUpdate(userBob, "Dinner?\nPasta", PromptNewPoll))
	assert.Equal(t, "There can only be one active poll per chat, see /poll", tg.lastSent(t).text)
}

func TestRouter_PlainMessage_Ignored(t *testing.T) {
	router, tg, _ := setupRouter(t)
	ctx := context.Background()

	router.HandleUpdate(ctx, messageUpdate(userAlice, "just chatting", ""))
	router.HandleUpdate(ctx, messageUpdate(userAlice, "reply to something else", "unrelated prompt"))
	router.HandleUpdate(ctx, messageUpdate(userAlice, "/unknown-command", ""))

	assert.Empty(t, tg.sent)
	assert.Empty(t, tg.edits)
}

func TestRouter_AddChoiceViaReply(t *testing.T) {
	router, tg, svc := setupRouter(t)
	createLunchPoll(t, svc, "Pizza")

	router.HandleUpdate(context.Background(), messageUpdate(userBob, "Salad\nextra ignored", PromptNewChoice))
	assert.Equal(t, "Added new choice *Salad*", tg.lastSent(t).text)

	active, err := svc.Active(context.Background(), fmt.Sprint(testChatID))
	require.NoError(t, err)
	require.Len(t, active.Choices, 2)
	assert.Equal(t, "Salad", active.Choices[1].Text)
}

func TestRouter_VoteFlow(t *testing.T) {
	router, tg, svc := setupRouter(t)
	created := createLunchPoll(t, svc, "Pizza", "Sushi")

	// Vote menu
	router.HandleUpdate(context.Background(), callbackUpdate(userBob, "/vote"))
	edit := tg.lastEdit(t)
	assert.Equal(t, respVoteMenu, edit.text)
	require.NotNil(t, edit.opts.ReplyMarkup)

	// Cast the vote; the poll is re-rendered in place
	voteToken := fmt.Sprintf("/do-vote-%d", created.Choices[0].ID)
	router.HandleUpdate(context.Background(), callbackUpdate(userBob, voteToken))
	edit = tg.lastEdit(t)
	assert.Contains(t, edit.text, "1. Pizza (1)")
	assert.Contains(t, edit.text, "[Bob](tg://user?id=2)")

	assert.Equal(t, []string{"cbq-1", "cbq-1"}, tg.acks, "every callback is acknowledged")
}

func TestRouter_DoubleVote_RejectedWithoutSecondRow(t *testing.T) {
	router, tg, svc := setupRouter(t)
	created := createLunchPoll(t, svc, "Pizza", "Sushi")
	ctx := context.Background()

	router.HandleUpdate(ctx, callbackUpdate(userBob, fmt.Sprintf("/do-vote-%d", created.Choices[0].ID)))
	router.HandleUpdate(ctx, callbackUpdate(userBob, fmt.Sprintf("/do-vote-%d", created.Choices[1].ID)))

	assert.Equal(t, "You have voted already", tg.lastEdit(t).text)
	assert.Len(t, tg.acks, 2, "failed operations still acknowledge the callback")

	active, err := svc.Active(ctx, fmt.Sprint(testChatID))
	require.NoError(t, err)
	assert.Len(t, active.Choices[0].Votes, 1)
	assert.Empty(t, active.Choices[1].Votes)
}

func TestRouter_ClosePoll_TallyOrder(t *testing.T) {
	router, tg, svc := setupRouter(t)
	created := createLunchPoll(t, svc, "Pizza", "Sushi")
	ctx := context.Background()
	chatID := fmt.Sprint(testChatID)

	require.NoError(t, svc.AllowMultiVote(ctx, chatID, userAlice.ID))
	for i, voters := range [][]poll.Actor{
		{{ID: 3, Name: "Carol"}, {ID: 4, Name: "Dave"}, {ID: 5, Name: "Eve"}},
		{{ID: 6, Name: "Frank"}},
	} {
		for _, voter := range voters {
			_, err := svc.CastVote(ctx, chatID, voter, created.Choices[i].ID)
			require.NoError(t, err)
		}
	}

	// Confirmation first
	router.HandleUpdate(ctx, callbackUpdate(userAlice, "/close-poll"))
	assert.Equal(t, respClosePollConfirm, tg.lastEdit(t).text)

	router.HandleUpdate(ctx, callbackUpdate(userAlice, "/do-close-poll"))
	edit := tg.lastEdit(t)
	assert.Contains(t, edit.text, "Result:\n")
	pizza := indexOf(t, edit.text, "1. Pizza (3)")
	sushi := indexOf(t, edit.text, "2. Sushi (1)")
	assert.Less(t, pizza, sushi)
	assert.Nil(t, edit.opts.ReplyMarkup, "closed poll renders without controls")

	_, err := svc.Active(ctx, chatID)
	assert.ErrorIs(t, err, poll.ErrNoActivePoll)
}

func TestRouter_ClosePoll_NotCreator(t *testing.T) {
	router, tg, svc := setupRouter(t)
	createLunchPoll(t, svc, "Pizza")

	router.HandleUpdate(context.Background(), callbackUpdate(userBob, "/do-close-poll"))
	assert.Equal(t, "Only the poll creator can do that", tg.lastEdit(t).text)
	assert.Len(t, tg.acks, 1)
}

func TestRouter_RemoveChoiceFlow(t *testing.T) {
	router, tg, svc := setupRouter(t)
	created := createLunchPoll(t, svc, "Pizza", "Sushi")
	ctx := context.Background()

	// The menu is creator-only
	router.HandleUpdate(ctx, callbackUpdate(userBob, "/rm-choice"))
	assert.Equal(t, "Only the poll creator can do that", tg.lastEdit(t).text)

	router.HandleUpdate(ctx, callbackUpdate(userAlice, "/rm-choice"))
	edit := tg.lastEdit(t)
	assert.Equal(t, respRemoveChoiceMenu, edit.text)
	require.NotNil(t, edit.opts.ReplyMarkup)

	router.HandleUpdate(ctx, callbackUpdate(userAlice, fmt.Sprintf("/do-rm-choice-%d", created.Choices[0].ID)))
	assert.Equal(t, "Removed choice *Pizza*", tg.lastEdit(t).text)

	// The survivor is now the last choice and protected
	router.HandleUpdate(ctx, callbackUpdate(userAlice, fmt.Sprintf("/do-rm-choice-%d", created.Choices[1].ID)))
	assert.Equal(t, "Can't remove the last choice", tg.lastEdit(t).text)
}

func TestRouter_AllowMultiVoteFlow(t *testing.T) {
	router, tg, svc := setupRouter(t)
	createLunchPoll(t, svc, "Pizza", "Sushi")
	ctx := context.Background()

	router.HandleUpdate(ctx, callbackUpdate(userAlice, "/allow-multi-vote"))
	assert.Equal(t, respAllowMultiConfirm, tg.lastEdit(t).text)

	router.HandleUpdate(ctx, callbackUpdate(userAlice, "/do-allow-multi-vote"))
	assert.Equal(t, respMultiVoteAllowed, tg.lastEdit(t).text)

	active, err := svc.Active(ctx, fmt.Sprint(testChatID))
	require.NoError(t, err)
	assert.True(t, active.MultiVote)
}

func TestRouter_NewPollPromptFromOffer(t *testing.T) {
	router, tg, svc := setupRouter(t)
	ctx := context.Background()

	router.HandleUpdate(ctx, callbackUpdate(userAlice, "/new-poll"))
	assert.Equal(t, PromptNewPoll, tg.lastEdit(t).text)

	// The race: a poll appeared after the offer was shown
	createLunchPoll(t, svc, "Pizza")
	router.HandleUpdate(ctx, callbackUpdate(userBob, "/new-poll"))
	assert.Equal(t, "There can only be one active poll per chat, see /poll", tg.lastEdit(t).text)
}

func TestRouter_NewChoicePrompt_IsANewMessage(t *testing.T) {
	router, tg, svc := setupRouter(t)
	createLunchPoll(t, svc, "Pizza")

	router.HandleUpdate(context.Background(), callbackUpdate(userBob, "/new-choice"))
	assert.Equal(t, PromptNewChoice, tg.lastSent(t).text)
	assert.Empty(t, tg.edits)
}

func TestRouter_Cancel_DeletesOrEdits(t *testing.T) {
	router, tg, _ := setupRouter(t)
	ctx := context.Background()

	router.HandleUpdate(ctx, callbackUpdate(userAlice, "/cancel-op"))
	assert.Equal(t, []int64{20}, tg.deleted)
	assert.Empty(t, tg.edits)

	// Deletion can fail for old messages; the text is edited away instead
	tg.deleteErr = &telegram.APIError{Code: 400, Description: "Bad Request: message can't be deleted"}
	router.HandleUpdate(ctx, callbackUpdate(userAlice, "/cancel-op"))
	assert.Equal(t, respCancelled, tg.lastEdit(t).text)
}

func TestRouter_MalformedTokenID(t *testing.T) {
	router, tg, svc := setupRouter(t)
	createLunchPoll(t, svc, "Pizza")

	router.HandleUpdate(context.Background(), callbackUpdate(userBob, "/do-vote-abc"))
	assert.Equal(t, respInvalidFormat, tg.lastEdit(t).text)
	assert.Len(t, tg.acks, 1)
}

func TestRouter_UnknownToken_OnlyAcknowledged(t *testing.T) {
	router, tg, _ := setupRouter(t)

	router.HandleUpdate(context.Background(), callbackUpdate(userBob, "/who-knows"))
	router.HandleUpdate(context.Background(), callbackUpdate(userBob, "not-a-token"))

	assert.Empty(t, tg.sent)
	assert.Empty(t, tg.edits)
	assert.Len(t, tg.acks, 2)
}

func TestRouter_CallbackWithoutMessage_OnlyAcknowledged(t *testing.T) {
	router, tg, _ := setupRouter(t)

	router.HandleUpdate(context.Background(), &telegram.Update{
		CallbackQuery: &telegram.CallbackQuery{ID: "cbq-orphan", From: userBob, Data: "/vote"},
	})

	assert.Equal(t, []string{"cbq-orphan"}, tg.acks)
	assert.Empty(t, tg.sent)
	assert.Empty(t, tg.edits)
}

func TestRouter_NotModifiedEdit_Swallowed(t *testing.T) {
	router, tg, svc := setupRouter(t)
	createLunchPoll(t, svc, "Pizza")
	tg.editErr = &telegram.APIError{Code: 400, Description: "Bad Request: message is not modified"}

	// Must not panic or surface anything; the callback is still acknowledged
	router.HandleUpdate(context.Background(), callbackUpdate(userBob, "/vote"))
	assert.Len(t, tg.acks, 1)
	assert.Empty(t, tg.sent)
}

func indexOf(t *testing.T, haystack, needle string) int {
	t.Helper()
	idx := strings.Index(haystack, needle)
	require.GreaterOrEqual(t, idx, 0, "expected %q in %q", needle, haystack)
	return idx
}
