package state

import "errors"

// ErrReleased is returned when a lease is used after Release.
var ErrReleased = errors.New("state: lease released")

// Store is the minimal view routers need to decide whether a chat is mid-conversation.
type Store interface {
	Active(chatID int64) bool
}
