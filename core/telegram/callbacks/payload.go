package callbacks

import (
	"strings"
)

// Sep separates fields inside a callback payload.
const Sep = "|"

// MaxDataLen is Telegram's limit on callback_data in bytes.
const MaxDataLen = 64

// JoinPayload encodes fields into a payload. Empty trailing fields are dropped.
func JoinPayload(fields ...string) string {
	end := len(fields)
	for end > 0 && fields[end-1] == "" {
		end--
	}
	return strings.Join(fields[:end], Sep)
}

// PayloadField returns the i-th field of payload or "" when absent.
func PayloadField(payload string, i int) string {
	if payload == "" || i < 0 {
		return ""
	}
	parts := strings.Split(payload, Sep)
	if i >= len(parts) {
		return ""
	}
	return parts[i]
}

// Fits reports whether unique+payload fits into Telegram's callback_data limit
// once telebot adds its \f prefix and separator.
func Fits(unique, payload string) bool {
	n := 1 + len(unique)
	if payload != "" {
		n += 1 + len(payload)
	}
	return n <= MaxDataLen
}
