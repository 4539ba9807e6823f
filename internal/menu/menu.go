// Package menu holds the reply-keyboard labels and layouts of the bot.
package menu

import (
	"strings"

	"github.com/m3rciful/moexbot/internal/chat"
	"github.com/m3rciful/moexbot/internal/domain"
)

const (
	Find       = "🔍 Find security"
	Lists      = "📋 My lists"
	AddList    = "➕ Add list"
	DeleteList = "🗑 Delete list"
	Analytics  = "📊 Analytics"
	About      = "ℹ️ About"
	Back       = "⬅️ Back"
	Cancel     = "❌ Cancel"

	CancelCommand = "/cancel"
)

// IsCancel reports whether text asks to abort the current dialog.
func IsCancel(text string) bool {
	text = strings.TrimSpace(text)
	return text == Cancel || strings.EqualFold(text, CancelCommand)
}

// Main is the top-level menu.
func Main() chat.ReplyKeyboard {
	return chat.ReplyKeyboard{Rows: [][]string{
		{Find, Lists},
		{AddList, DeleteList},
		{Analytics, About},
	}}
}

// UserLists shows one button per list, two per row, followed by list management.
func UserLists(u domain.User) chat.ReplyKeyboard {
	var rows [][]string
	var row []string
	for _, l := range u.Lists {
		row = append(row, l.Name)
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, []string{AddList, DeleteList}, []string{Back})
	return chat.ReplyKeyboard{Rows: rows}
}

// CancelOnly offers a single cancel button while a dialog waits for text.
func CancelOnly() chat.ReplyKeyboard {
	return chat.ReplyKeyboard{Rows: [][]string{{Cancel}}}
}

// Inline lays buttons out n per row.
func Inline(buttons []chat.InlineButton, n int) chat.InlineKeyboard {
	if n < 1 {
		n = 1
	}
	var rows [][]chat.InlineButton
	for i := 0; i < len(buttons); i += n {
		end := min(i+n, len(buttons))
		rows = append(rows, buttons[i:end])
	}
	return chat.InlineKeyboard{Rows: rows}
}
