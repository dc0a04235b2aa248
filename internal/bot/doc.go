// Package bot routes inbound chat updates to poll operations.
//
// Text messages are either command tokens (/start, /poll), replies to one
// of the bot's canned prompts (interpreted as a poll definition or a new
// choice), or ignored. Callback presses carry opaque tokens, optionally
// with an embedded choice id, and are always acknowledged exactly once.
// All failures are mapped to outbound content here; nothing escapes to the
// transport layer.
package bot
