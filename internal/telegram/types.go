// ABOUTME: Telegram Bot API wire types used by pollgate
// ABOUTME: Updates, messages, callback queries and inline keyboard markup

package telegram

// Update is one inbound event from the Bot API. Exactly one of Message and
// CallbackQuery is set for the updates this bot subscribes to. UpdateID is
// the transport-assigned identifier used for dedup; it is not globally
// unique across time.
type Update struct {
	UpdateID      int64          `json:"update_id"`
	Message       *Message       `json:"message,omitempty"`
	CallbackQuery *CallbackQuery `json:"callback_query,omitempty"`
}

// Message is a chat message, possibly a reply to an earlier bot prompt.
type Message struct {
	MessageID      int64    `json:"message_id"`
	From           *User    `json:"from,omitempty"`
	Chat           Chat     `json:"chat"`
	Text           string   `json:"text,omitempty"`
	ReplyToMessage *Message `json:"reply_to_message,omitempty"`
}

// Chat identifies the conversation a message belongs to.
type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type,omitempty"`
}

// User is the actor issuing a message or pressing a button.
type User struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name,omitempty"`
	Username  string `json:"username,omitempty"`
}

// CallbackQuery is generated when a user presses an inline keyboard button.
// Data carries the opaque token the bot attached to the button; Message is
// the message the button was attached to and may be absent when that
// message is too old.
type CallbackQuery struct {
	ID      string   `json:"id"`
	From    User     `json:"from"`
	Message *Message `json:"message,omitempty"`
	Data    string   `json:"data,omitempty"`
}

// InlineKeyboardMarkup is the control layout attached to a message.
type InlineKeyboardMarkup struct {
	InlineKeyboard [][]InlineKeyboardButton `json:"inline_keyboard"`
}

// InlineKeyboardButton is a single pressable control carrying a callback token.
type InlineKeyboardButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data,omitempty"`
}
