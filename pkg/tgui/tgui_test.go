package tgui

import (
	"fmt"
	"testing"

	tele "gopkg.in/telebot.v4"
)

func buttons(n int) []tele.Btn {
	out := make([]tele.Btn, n)
	for i := range out {
		out[i] = Btn(fmt.Sprintf("b%d", i), Data("opt", fmt.Sprint(i)))
	}
	return out
}

func countButtons(rm *tele.ReplyMarkup) int {
	n := 0
	for _, row := range rm.InlineKeyboard {
		n += len(row)
	}
	return n
}

func TestMarkupWithinUnderCap(t *testing.T) {
	t.Parallel()
	in := NewInline()
	for _, row := range Grid(3, buttons(12)) {
		in.Row(row...)
	}
	tail := tele.Row{Btn("Save", "save"), Btn("Back", "back")}

	rm, truncated := in.MarkupWithin(tail)
	if truncated {
		t.Fatal("truncated a keyboard that fits")
	}
	if got := countButtons(rm); got != 14 {
		t.Fatalf("buttons = %d, want 14", got)
	}
	last := rm.InlineKeyboard[len(rm.InlineKeyboard)-1]
	if len(last) != 2 || last[0].Text != "Save" {
		t.Fatalf("tail row not last: %v", last)
	}
}

func TestMarkupWithinTruncatesAtCap(t *testing.T) {
	t.Parallel()
	in := NewInline()
	for _, row := range Grid(3, buttons(150)) {
		in.Row(row...)
	}
	tail := tele.Row{Btn("Save", "save"), Btn("Back", "back")}

	rm, truncated := in.MarkupWithin(tail)
	if !truncated {
		t.Fatal("oversized keyboard not truncated")
	}
	if got := countButtons(rm); got > MaxInlineButtons {
		t.Fatalf("buttons = %d, above the cap", got)
	}

	rows := rm.InlineKeyboard
	last := rows[len(rows)-1]
	if len(last) != 2 || last[0].Text != "Save" || last[1].Text != "Back" {
		t.Fatalf("tail row lost in truncation: %v", last)
	}
	indicator := rows[len(rows)-2]
	if len(indicator) != 1 || indicator[0].Text != "…" {
		t.Fatalf("no truncation indicator before tail: %v", indicator)
	}
	if got, _ := Split(indicator[0].Data); got != "noop" {
		t.Fatalf("indicator data = %q, want noop", indicator[0].Data)
	}
}

func TestGrid(t *testing.T) {
	t.Parallel()
	cases := []struct {
		n, cols int
		rows    int
		lastRow int
	}{
		{0, 3, 0, 0},
		{1, 3, 1, 1},
		{3, 3, 1, 3},
		{7, 3, 3, 1},
		{48, 3, 16, 3},
		{5, 0, 5, 1}, // cols<=0 falls back to one per row
	}
	for _, tc := range cases {
		rows := Grid(tc.cols, buttons(tc.n))
		if len(rows) != tc.rows {
			t.Errorf("Grid(%d, %d buttons) = %d rows, want %d", tc.cols, tc.n, len(rows), tc.rows)
			continue
		}
		if tc.rows > 0 && len(rows[len(rows)-1]) != tc.lastRow {
			t.Errorf("Grid(%d, %d buttons) last row = %d, want %d",
				tc.cols, tc.n, len(rows[len(rows)-1]), tc.lastRow)
		}
	}
}

func TestDataSplitRoundTrip(t *testing.T) {
	t.Parallel()
	cases := []struct {
		action, payload string
	}{
		{"create", ""},
		{"group", "42"},
		{"slot", "9_30"},
		{"x", "a:b:c"}, // payload keeps its own colons
	}
	for _, tc := range cases {
		action, payload := Split(Data(tc.action, tc.payload))
		if action != tc.action || payload != tc.payload {
			t.Errorf("round trip %q/%q = %q/%q", tc.action, tc.payload, action, payload)
		}
	}
}

func TestEsc(t *testing.T) {
	t.Parallel()
	if got := B(`<b>&"`); got != `<b>&lt;b&gt;&amp;&#34;</b>` {
		t.Fatalf("B() = %q", got)
	}
	if got := Esc("plain"); got != "plain" {
		t.Fatalf("Esc() = %q", got)
	}
}
