package tgui

import (
	tele "gopkg.in/telebot.v4"
)

// Inline is a small builder for inline keyboards (ReplyMarkup).
// It stores rows as tele.Row ([]tele.Btn) and applies them via ReplyMarkup.Inline().
type Inline struct {
	rm   *tele.ReplyMarkup
	rows []tele.Row
}

func NewInline() *Inline {
	return &Inline{rm: &tele.ReplyMarkup{}}
}

// Row appends a new row (buttons) to the inline keyboard.
func (i *Inline) Row(btn ...tele.Btn) *Inline {
	i.rows = append(i.rows, i.rm.Row(btn...))
	i.rm.Inline(i.rows...)
	return i
}

// Buttons reports the total number of buttons added so far.
func (i *Inline) Buttons() int {
	n := 0
	for _, r := range i.rows {
		n += len(r)
	}
	return n
}

// Markup returns the underlying reply markup.
func (i *Inline) Markup() *tele.ReplyMarkup { return i.rm }

// MarkupWithin returns a markup whose option rows fit Telegram's
// MaxInlineButtons cap with room left for the given tail (control) rows.
// When rows are dropped, a single "…" indicator row marks the truncation.
// The tail rows are always kept. The bool reports whether truncation happened.
func (i *Inline) MarkupWithin(tail ...tele.Row) (*tele.ReplyMarkup, bool) {
	reserve := 0
	for _, r := range tail {
		reserve += len(r)
	}

	budget := MaxInlineButtons - reserve
	rows := i.rows
	truncated := false

	count := i.Buttons()
	if count > budget {
		truncated = true
		budget-- // room for the "…" indicator
		kept := make([]tele.Row, 0, len(rows))
		n := 0
		for _, r := range rows {
			if n+len(r) > budget {
				break
			}
			kept = append(kept, r)
			n += len(r)
		}
		rows = append(kept, tele.Row{Btn("…", "noop")})
	}

	rm := &tele.ReplyMarkup{}
	rm.Inline(append(append([]tele.Row(nil), rows...), tail...)...)
	return rm, truncated
}

// Btn creates a callback button with raw callback_data (we do NOT encode it).
// Use pkg/tgui/callback.go helpers to build "action:payload" safely.
func Btn(text, data string) tele.Btn {
	return tele.Btn{Text: text, Data: data}
}

// Grid splits buttons into cols columns and returns the rows.
func Grid(cols int, buttons []tele.Btn) []tele.Row {
	if cols <= 0 {
		cols = 1
	}
	rows := make([]tele.Row, 0, (len(buttons)+cols-1)/cols)
	for len(buttons) > 0 {
		n := cols
		if n > len(buttons) {
			n = len(buttons)
		}
		rows = append(rows, tele.Row(buttons[:n]))
		buttons = buttons[n:]
	}
	return rows
}
