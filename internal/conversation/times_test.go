package conversation

import (
	"testing"

	"mailerbot/internal/store"
)

func TestDefaultSlots(t *testing.T) {
	t.Parallel()
	cases := []struct {
		interval int
		want     int
	}{
		{30, 48},
		{60, 24},
		{15, 96},
		{90, 16},
		{7, 206}, // non-dividing interval, last slot 23:55
		{1440, 1},
		{0, 0},
		{-5, 0},
	}
	for _, tc := range cases {
		got := defaultSlots(tc.interval)
		if len(got) != tc.want {
			t.Errorf("defaultSlots(%d) = %d slots, want %d", tc.interval, len(got), tc.want)
		}
		for _, sl := range got {
			if !sl.Valid() {
				t.Errorf("defaultSlots(%d) produced invalid slot %v", tc.interval, sl)
			}
		}
	}

	slots := defaultSlots(30)
	if slots[0] != (store.Slot{}) {
		t.Errorf("first slot = %v, want 00:00", slots[0])
	}
	if last := slots[len(slots)-1]; last != (store.Slot{Hour: 23, Minute: 30}) {
		t.Errorf("last slot = %v, want 23:30", last)
	}
}

func TestDecodeAction(t *testing.T) {
	t.Parallel()
	cases := []struct {
		data string
		want Action
	}{
		{"create", Action{Kind: ActionCreate}},
		{"noop", Action{Kind: ActionNoop}},
		{"back", Action{Kind: ActionBack}},
		{"group:42", Action{Kind: ActionToggleGroup, ID: 42}},
		{"group:-100123", Action{Kind: ActionToggleGroup, ID: -100123}},
		{"interval:30", Action{Kind: ActionInterval, Minutes: 30}},
		{"interval:0", Action{Kind: ActionUnknown}},
		{"interval:abc", Action{Kind: ActionUnknown}},
		{"slot:9_30", Action{Kind: ActionToggleSlot, Slot: store.Slot{Hour: 9, Minute: 30}}},
		{"slot:25_00", Action{Kind: ActionUnknown}}, // out of range
		{"slot:930", Action{Kind: ActionUnknown}},
		{"campaign_del:7", Action{Kind: ActionCampaignDelete, ID: 7}},
		{"principal_del:3", Action{Kind: ActionPrincipalDelete, ID: 3}},
		{"ban:5", Action{Kind: ActionBan, ID: 5}},
		{"", Action{Kind: ActionUnknown}},
		{"bogus", Action{Kind: ActionUnknown}},
		{"group:", Action{Kind: ActionUnknown}},
	}
	for _, tc := range cases {
		if got := DecodeAction(tc.data); got != tc.want {
			t.Errorf("DecodeAction(%q) = %+v, want %+v", tc.data, got, tc.want)
		}
	}
}

func TestSlotDataRoundTrip(t *testing.T) {
	t.Parallel()
	for _, sl := range defaultSlots(25) {
		act := DecodeAction(slotData(sl))
		if act.Kind != ActionToggleSlot || act.Slot != sl {
			t.Fatalf("slot %v round-tripped to %+v", sl, act)
		}
	}
}
