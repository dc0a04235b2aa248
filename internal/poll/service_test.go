// ABOUTME: Tests for the poll operations
// ABOUTME: Covers lifecycle preconditions, vote rules, cascades and close

package poll

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/pollgate/internal/store"
)

func setupService(t *testing.T) *Service {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	return NewService(st)
}

var (
	alice = Actor{ID: 1, Name: "Alice"}
	bob   = Actor{ID: 2, Name: "Bob"}
)

func TestService_Create(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, "chat-1", alice, "Lunch?", []string{"Pizza", "Sushi"})
	require.NoError(t, err)
	assert.Equal(t, "Lunch?", created.Title)
	require.Len(t, created.Choices, 2)

	active, err := svc.Active(ctx, "chat-1")
	require.NoError(t, err)
	assert.Equal(t, created.ID, active.ID)
	assert.Equal(t, "Pizza", active.Choices[0].Text)
	assert.Equal(t, "Sushi", active.Choices[1].Text)
}

func TestService_Create_SecondPollRejected(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "chat-1", alice, "Lunch?", []string{"Pizza"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, "chat-1", bob, "Dinner?", []string{"Pasta"})
	assert.ErrorIs(t, err, ErrPollExists)

	// A different chat is unaffected
	_, err = svc.Create(ctx, "chat-2", bob, "Dinner?", []string{"Pasta"})
	assert.NoError(t, err)
}

func TestService_Create_MissingChoices(t *testing.T) {
	svc := setupService(t)

	_, err := svc.Create(context.Background(), "chat-1", alice, "Lunch?", nil)
	assert.ErrorIs(t, err, ErrMissingChoices)
}

func TestService_Active_None(t *testing.T) {
	svc := setupService(t)

	_, err := svc.Active(context.Background(), "chat-1")
	assert.ErrorIs(t, err, ErrNoActivePoll)
}

func TestService_AddChoice(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	_, err := svc.AddChoice(ctx, "chat-1", "Salad")
	assert.ErrorIs(t, err, ErrNoActivePoll)

	_, err = svc.Create(ctx, "chat-1", alice, "Lunch?", []string{"Pizza"})
	require.NoError(t, err)

	choice, err := svc.AddChoice(ctx, "chat-1", "Salad")
	require.NoError(t, err)
	assert.NotZero(t, choice.ID)

	active, err := svc.Active(ctx, "chat-1")
	require.NoError(t, err)
	require.Len(t, active.Choices, 2)
	assert.Equal(t, "Salad", active.Choices[1].Text)
}

func TestService_RemoveChoice(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, "chat-1", alice, "Lunch?", []string{"Pizza", "Sushi"})
	require.NoError(t, err)
	pizza := created.Choices[0]

	// Bob voted for pizza; his vote goes with the choice
	_, err = svc.CastVote(ctx, "chat-1", bob, pizza.ID)
	require.NoError(t, err)

	_, err = svc.RemoveChoice(ctx, "chat-1", bob.ID, pizza.ID)
	assert.ErrorIs(t, err, ErrNotCreator)

	removed, err := svc.RemoveChoice(ctx, "chat-1", alice.ID, pizza.ID)
	require.NoError(t, err)
	assert.Equal(t, "Pizza", removed)

	active, err := svc.Active(ctx, "chat-1")
	require.NoError(t, err)
	require.Len(t, active.Choices, 1)
	assert.Equal(t, "Sushi", active.Choices[0].Text)
	assert.Empty(t, active.Choices[0].Votes)
}

func TestService_RemoveChoice_LastChoice(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, "chat-1", alice, "Lunch?", []string{"Pizza"})
	require.NoError(t, err)

	_, err = svc.RemoveChoice(ctx, "chat-1", alice.ID, created.Choices[0].ID)
	assert.ErrorIs(t, err, ErrLastChoice)
}

func TestService_RemoveChoice_UnknownID(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "chat-1", alice, "Lunch?", []string{"Pizza", "Sushi"})
	require.NoError(t, err)

	_, err = svc.RemoveChoice(ctx, "chat-1", alice.ID, 9999)
	assert.ErrorIs(t, err, ErrUnknownChoice)
}

func TestService_CastVote_SingleVoteRule(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, "chat-1", alice, "Lunch?", []string{"Pizza", "Sushi"})
	require.NoError(t, err)
	pizza, sushi := created.Choices[0], created.Choices[1]

	updated, err := svc.CastVote(ctx, "chat-1", bob, pizza.ID)
	require.NoError(t, err)
	require.Len(t, updated.Choices[0].Votes, 1)
	assert.Equal(t, "Bob", updated.Choices[0].Votes[0].UserName)

	// Second vote anywhere on a single-vote poll is rejected
	_, err = svc.CastVote(ctx, "chat-1", bob, sushi.ID)
	assert.ErrorIs(t, err, ErrDuplicateVote)

	active, err := svc.Active(ctx, "chat-1")
	require.NoError(t, err)
	assert.Len(t, active.Choices[0].Votes, 1)
	assert.Empty(t, active.Choices[1].Votes)
}

func TestService_CastVote_MultiVoteRule(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, "chat-1", alice, "Lunch?", []string{"Pizza", "Sushi"})
	require.NoError(t, err)
	pizza, sushi := created.Choices[0], created.Choices[1]

	require.NoError(t, svc.AllowMultiVote(ctx, "chat-1", alice.ID))

	_, err = svc.CastVote(ctx, "chat-1", bob, pizza.ID)
	require.NoError(t, err)
	_, err = svc.CastVote(ctx, "chat-1", bob, sushi.ID)
	require.NoError(t, err)

	// Still at most one vote per choice
	_, err = svc.CastVote(ctx, "chat-1", bob, pizza.ID)
	assert.ErrorIs(t, err, ErrDuplicateVote)
}

func TestService_AllowMultiVote_CreatorOnly(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "chat-1", alice, "Lunch?", []string{"Pizza"})
	require.NoError(t, err)

	err = svc.AllowMultiVote(ctx, "chat-1", bob.ID)
	assert.ErrorIs(t, err, ErrNotCreator)

	require.NoError(t, svc.AllowMultiVote(ctx, "chat-1", alice.ID))

	active, err := svc.Active(ctx, "chat-1")
	require.NoError(t, err)
	assert.True(t, active.MultiVote)
}

func TestService_CastVote_UnknownChoice(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "chat-1", alice, "Lunch?", []string{"Pizza"})
	require.NoError(t, err)

	_, err = svc.CastVote(ctx, "chat-1", bob, 9999)
	assert.ErrorIs(t, err, ErrUnknownChoice)
}

func TestService_Close(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	_, err := svc.Close(ctx, "chat-1", alice.ID)
	assert.ErrorIs(t, err, ErrNoActivePoll)

	_, err = svc.Create(ctx, "chat-1", alice, "Lunch?", []string{"Pizza"})
	require.NoError(t, err)

	_, err = svc.Close(ctx, "chat-1", bob.ID)
	assert.ErrorIs(t, err, ErrNotCreator)

	closed, err := svc.Close(ctx, "chat-1", alice.ID)
	require.NoError(t, err)
	assert.True(t, closed.Closed())

	// Closing removed the poll from the active slot
	_, err = svc.Active(ctx, "chat-1")
	assert.ErrorIs(t, err, ErrNoActivePoll)

	// A new poll may now be created
	_, err = svc.Create(ctx, "chat-1", bob, "Dinner?", []string{"Pasta"})
	assert.NoError(t, err)
}
