// ABOUTME: Expected-state errors for poll operations
// ABOUTME: Each carries the exact message shown to the actor

package poll

// StateError is an expected precondition failure: the command was well
// formed but the poll state does not allow it. The message is surfaced to
// the actor verbatim and the failure is not logged as a fault.
type StateError struct {
	Message string
}

func (e *StateError) Error() string {
	return e.Message
}

// Expected failures of the poll operations.
var (
	ErrNoActivePoll   = &StateError{Message: "No active poll in this chat. Enter /start"}
	ErrPollExists     = &StateError{Message: "There can only be one active poll per chat, see /poll"}
	ErrNotCreator     = &StateError{Message: "Only the poll creator can do that"}
	ErrDuplicateVote  = &StateError{Message: "You have voted already"}
	ErrMissingChoices = &StateError{Message: "Missing poll choices"}
	ErrLastChoice     = &StateError{Message: "Can't remove the last choice"}
	ErrUnknownChoice  = &StateError{Message: "That choice is no longer part of the poll"}
)
