// ABOUTME: Canned prompts and responses for the conversation router
// ABOUTME: Prompt texts double as the context key for interpreting free-text replies

package bot

// Prompts the bot asks users to reply to. The router recognizes a free-text
// message as a poll definition or a new choice solely by which of these the
// message is replying to; there is no persisted conversation state.
const (
	PromptNewPoll   = "To create a new poll, reply to this message with the poll title and choices\n\nExample:\nWhat to eat tonight?\nBurger\nPasta"
	PromptNewChoice = "To add a new choice, reply to this message with the choice in one line"
)

// Responses shown to actors.
const (
	respUnknownError = "Unknown error"
	respNoPollOffer  = "Hi, there's no ongoing poll, would you like to start one?"

	respPollCreatedF  = "Created new poll *%s*. You can use /poll to check out the current poll"
	respChoiceAddedF  = "Added new choice *%s*"
	respInvalidFormat = "Invalid input format"

	respVoteMenu           = "Pick your choice"
	respEditMenu           = "What do you want to modify?"
	respRemoveChoiceMenu   = "Pick a choice to be removed with its associated votes. You *cannot* undo this action"
	respChoiceRemovedF     = "Removed choice *%s*"
	respAllowMultiConfirm  = "Allow multiple votes per person? You *cannot* undo this action"
	respMultiVoteAllowed   = "Multiple votes allowed"
	respClosePollConfirm   = "Close the poll? You *cannot* undo this action"
	respCancelled          = "Cancelled"
)
