package orderbot

import "context"

// Button is a single pressable choice. Action is the callback payload
// carried back on press; reply-keyboard buttons leave it empty and echo
// their label as a plain message instead.
type Button struct {
	Label  string
	Action string
}

type Keyboard struct {
	Inline bool
	Rows   [][]Button
}

// User identifies the requester of an inbound event.
type User struct {
	ID        int64
	FirstName string
}

// MessageEvent is an inbound command or free-text message.
type MessageEvent struct {
	ChatID  int64
	From    User
	Text    string
	Command string
}

// CallbackEvent is an inbound button press on a previously sent prompt.
type CallbackEvent struct {
	ChatID    int64
	From      User
	MessageID int
	Data      string
}

// Gateway is the outbound half of the messaging transport. The engine
// renders text and keyboards through it and never talks to Telegram
// directly, which keeps conversation tests transport-free.
type Gateway interface {
	SendMessage(ctx context.Context, chatID int64, text string, keyboard *Keyboard) (messageID int, err error)
	EditMessage(ctx context.Context, chatID int64, messageID int, text string, keyboard *Keyboard) error
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	SendTyping(ctx context.Context, chatID int64) error
}
