// Package events publishes notification and audit events for downstream consumers.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event types.
const (
	TypeNotificationSent   = "notification.sent"
	TypeNotificationFailed = "notification.failed"
	TypeSecurityMissing    = "notification.security_missing"
)

// Event is one JSON-encoded record.
type Event struct {
	ID     string    `json:"id"`
	Type   string    `json:"type"`
	ChatID int64     `json:"chat_id"`
	List   string    `json:"list,omitempty"`
	Ticker string    `json:"ticker,omitempty"`
	Board  string    `json:"board,omitempty"`
	Price  string    `json:"price,omitempty"`
	Error  string    `json:"error,omitempty"`
	TickID string    `json:"tick_id,omitempty"`
	Time   time.Time `json:"time"`
}

// New stamps an event with a fresh id and the current time.
func New(typ string, chatID int64) Event {
	return Event{ID: uuid.NewString(), Type: typ, ChatID: chatID, Time: time.Now().UTC()}
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Nop discards events.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, Event) error { return nil }

// Close implements Publisher.
func (Nop) Close() error { return nil }
