// Package chat defines the transport-neutral values exchanged between the
// Telegram adapter, the dispatcher and the scenarios.
package chat

import (
	"context"
	"strings"
)

// Message is an inbound text message.
type Message struct {
	ChatID   int64
	Username string
	Text     string
}

// TrimmedText returns the message text without surrounding whitespace.
func (m Message) TrimmedText() string {
	return strings.TrimSpace(m.Text)
}

// Callback is an inbound inline-button press.
type Callback struct {
	ChatID   int64
	Username string
	Action   Action
}

// Keyboard is either a ReplyKeyboard, an InlineKeyboard, RemoveKeyboard or nil.
type Keyboard interface {
	isKeyboard()
}

// ReplyKeyboard is a persistent keyboard of text buttons.
type ReplyKeyboard struct {
	Rows [][]string
}

// InlineButton is one button under a message.
type InlineButton struct {
	Text   string
	Action Action
}

// InlineKeyboard is a set of inline buttons attached to a message.
type InlineKeyboard struct {
	Rows [][]InlineButton
}

// RemoveKeyboard hides the reply keyboard.
type RemoveKeyboard struct{}

func (ReplyKeyboard) isKeyboard()  {}
func (InlineKeyboard) isKeyboard() {}
func (RemoveKeyboard) isKeyboard() {}

// Sender delivers text with an optional keyboard to a chat.
type Sender interface {
	Send(ctx context.Context, chatID int64, text string, kb Keyboard) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, chatID int64, text string, kb Keyboard) error

// Send calls f.
func (f SenderFunc) Send(ctx context.Context, chatID int64, text string, kb Keyboard) error {
	return f(ctx, chatID, text, kb)
}
