package conversation

import "mailerbot/internal/store"

// defaultSlots spans 24 hours at the given interval starting from midnight.
// interval=30 yields 48 slots (00:00 through 23:30). Intervals below 15 are
// allowed; the resulting dense grid is bounded at render time by the button
// cap, not here.
func defaultSlots(intervalMinutes int) []store.Slot {
	if intervalMinutes <= 0 {
		return nil
	}
	const minutesPerDay = 24 * 60
	slots := make([]store.Slot, 0, minutesPerDay/intervalMinutes+1)
	for m := 0; m < minutesPerDay; m += intervalMinutes {
		slots = append(slots, store.Slot{Hour: m / 60, Minute: m % 60})
	}
	return slots
}
