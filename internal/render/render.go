// ABOUTME: Pure rendering of poll state into display text and inline keyboards
// ABOUTME: Identical poll state always renders identical output, so in-place edits are idempotent

package render

import (
	"fmt"
	"sort"
	"strings"

	"github.com/2389/pollgate/internal/store"
	"github.com/2389/pollgate/internal/telegram"
)

// Callback tokens minted on rendered controls. The tokens are the only
// state a button carries; parameterized ones embed the target choice id in
// base-10.
const (
	CallbackNewPoll          = "/new-poll"
	CallbackVote             = "/vote"
	CallbackDoVotePrefix     = "/do-vote-"
	CallbackEditPoll         = "/edit-poll"
	CallbackNewChoice        = "/new-choice"
	CallbackRemoveChoice     = "/rm-choice"
	CallbackDoRemovePrefix   = "/do-rm-choice-"
	CallbackAllowMultiVote   = "/allow-multi-vote"
	CallbackDoAllowMultiVote = "/do-allow-multi-vote"
	CallbackClosePoll        = "/close-poll"
	CallbackDoClosePoll      = "/do-close-poll"
	CallbackCancel           = "/cancel-op"
)

// keyboardColumns is the grid width for per-choice controls.
const keyboardColumns = 2

// Poll renders the poll with choices in declaration order.
func Poll(p *store.Poll) string {
	return renderChoices(p.Title, numberedChoices(p))
}

// Tally renders the final result, choices sorted by vote count descending.
// Choices with equal counts keep ascending declaration order; the sort is
// stable so ties never depend on insertion accident.
func Tally(p *store.Poll) string {
	choices := numberedChoices(p)
	sort.SliceStable(choices, func(i, j int) bool {
		return len(choices[i].choice.Votes) > len(choices[j].choice.Votes)
	})
	return "Result:\n" + renderChoices(p.Title, choices)
}

// numberedChoice pairs a choice with its 1-based declaration number, which
// survives tally reordering.
type numberedChoice struct {
	number int
	choice *store.Choice
}

func numberedChoices(p *store.Poll) []numberedChoice {
	choices := make([]numberedChoice, len(p.Choices))
	for i, c := range p.Choices {
		choices[i] = numberedChoice{number: i + 1, choice: c}
	}
	return choices
}

func renderChoices(title string, choices []numberedChoice) string {
	var b strings.Builder
	b.WriteString(title)
	b.WriteString("\n")

	blocks := make([]string, 0, len(choices))
	for _, nc := range choices {
		block := fmt.Sprintf("%d. %s (%d)", nc.number, nc.choice.Text, len(nc.choice.Votes))
		if len(nc.choice.Votes) > 0 {
			mentions := make([]string, 0, len(nc.choice.Votes))
			for _, v := range nc.choice.Votes {
				mentions = append(mentions, fmt.Sprintf("[%s](tg://user?id=%d)", v.UserName, v.UserID))
			}
			block += "\n  " + strings.Join(mentions, ", ")
		}
		blocks = append(blocks, block)
	}
	b.WriteString(strings.Join(blocks, "\n\n"))
	return b.String()
}

// PollKeyboard is the control layout under a rendered poll: Vote for
// everyone, Edit for everyone, Close only for the creator.
func PollKeyboard(isCreator bool) *telegram.InlineKeyboardMarkup {
	rows := [][]telegram.InlineKeyboardButton{
		{{Text: "Vote", CallbackData: CallbackVote}},
		{{Text: "Edit", CallbackData: CallbackEditPoll}},
	}
	if isCreator {
		rows[1] = append(rows[1], telegram.InlineKeyboardButton{
			Text: "Close poll", CallbackData: CallbackClosePoll,
		})
	}
	return &telegram.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// OfferKeyboard is attached to the "no ongoing poll" response.
func OfferKeyboard() *telegram.InlineKeyboardMarkup {
	return &telegram.InlineKeyboardMarkup{InlineKeyboard: [][]telegram.InlineKeyboardButton{
		{{Text: "Create new poll", CallbackData: CallbackNewPoll}},
	}}
}

// EditKeyboard is the edit menu: adding a choice is open to everyone,
// removing one requires the creator and at least two choices, and the
// multi-vote flip is offered to the creator while the flag is still off.
func EditKeyboard(p *store.Poll, isCreator bool) *telegram.InlineKeyboardMarkup {
	rows := [][]telegram.InlineKeyboardButton{
		{{Text: "Add a choice", CallbackData: CallbackNewChoice}},
	}
	if isCreator {
		if len(p.Choices) > 1 {
			rows[0] = append(rows[0], telegram.InlineKeyboardButton{
				Text: "Remove a choice", CallbackData: CallbackRemoveChoice,
			})
		}
		if !p.MultiVote {
			rows = append(rows, []telegram.InlineKeyboardButton{
				{Text: "Allow multiple votes", CallbackData: CallbackAllowMultiVote},
			})
		}
	}
	return &telegram.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// VoteKeyboard lays out one button per choice in a two-column grid.
func VoteKeyboard(p *store.Poll) *telegram.InlineKeyboardMarkup {
	return &telegram.InlineKeyboardMarkup{
		InlineKeyboard: choiceGrid(p, CallbackDoVotePrefix),
	}
}

// RemoveChoiceKeyboard lays out one button per choice plus a Cancel row.
func RemoveChoiceKeyboard(p *store.Poll) *telegram.InlineKeyboardMarkup {
	rows := choiceGrid(p, CallbackDoRemovePrefix)
	rows = append(rows, []telegram.InlineKeyboardButton{
		{Text: "Cancel", CallbackData: CallbackCancel},
	})
	return &telegram.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// ConfirmKeyboard is a Yes/No row for destructive confirmations; Yes
// carries the do- token, No cancels.
func ConfirmKeyboard(confirmToken string) *telegram.InlineKeyboardMarkup {
	return &telegram.InlineKeyboardMarkup{InlineKeyboard: [][]telegram.InlineKeyboardButton{
		{
			{Text: "Yes", CallbackData: confirmToken},
			{Text: "No", CallbackData: CallbackCancel},
		},
	}}
}

// choiceGrid chunks per-choice buttons into keyboardColumns columns.
func choiceGrid(p *store.Poll, tokenPrefix string) [][]telegram.InlineKeyboardButton {
	buttons := make([]telegram.InlineKeyboardButton, 0, len(p.Choices))
	for _, c := range p.Choices {
		buttons = append(buttons, telegram.InlineKeyboardButton{
			Text:         c.Text,
			CallbackData: fmt.Sprintf("%s%d", tokenPrefix, c.ID),
		})
	}

	var rows [][]telegram.InlineKeyboardButton
	for len(buttons) > 0 {
		n := keyboardColumns
		if len(buttons) < n {
			n = len(buttons)
		}
		rows = append(rows, buttons[:n])
		buttons = buttons[n:]
	}
	return rows
}
