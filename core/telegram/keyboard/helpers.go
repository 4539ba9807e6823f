package keyboard

import (
	"github.com/m3rciful/moexbot/core/telegram/callbacks"

	tele "gopkg.in/telebot.v4"
)

// InlineBtn is one callback button: Unique selects the handler, Data is its payload.
type InlineBtn struct {
	Text   string
	Unique string
	Data   string
}

// Fits reports whether the button's callback data stays within Telegram's limit.
func (b InlineBtn) Fits() bool { return callbacks.Fits(b.Unique, b.Data) }

// RemoveKeyboard hides the reply keyboard.
func RemoveKeyboard() *tele.ReplyMarkup {
	return &tele.ReplyMarkup{RemoveKeyboard: true}
}

// ReplyButtons builds a resized reply keyboard, one row per slice. Empty rows are skipped.
func ReplyButtons(rows ...[]string) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{ResizeKeyboard: true}
	keyboard := make([]tele.Row, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		buttons := make([]tele.Btn, 0, len(row))
		for _, label := range row {
			buttons = append(buttons, markup.Text(label))
		}
		keyboard = append(keyboard, markup.Row(buttons...))
	}
	markup.Reply(keyboard...)
	return markup
}

// InlineButtonsRows builds an inline keyboard. Buttons whose callback data
// does not fit are left out and returned so the caller can report them.
func InlineButtonsRows(rows ...[]InlineBtn) (*tele.ReplyMarkup, []InlineBtn) {
	var dropped []InlineBtn
	inline := make([][]tele.InlineButton, 0, len(rows))
	for _, row := range rows {
		r := make([]tele.InlineButton, 0, len(row))
		for _, btn := range row {
			if !btn.Fits() {
				dropped = append(dropped, btn)
				continue
			}
			r = append(r, tele.InlineButton{Text: btn.Text, Unique: btn.Unique, Data: btn.Data})
		}
		if len(r) > 0 {
			inline = append(inline, r)
		}
	}
	return &tele.ReplyMarkup{InlineKeyboard: inline}, dropped
}
