// Package poll implements the poll lifecycle operations: create, add and
// remove choices, cast votes, allow multi-vote and close. Each operation is
// one store transaction; preconditions that fail are returned as
// *StateError values carrying the user-visible message.
package poll
