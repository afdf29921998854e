package tgui

import "strings"

// Data formats inline callback data as "action:payload".
// Payload is kept as-is (no escaping).
func Data(action, payload string) string {
	action = strings.TrimSpace(action)
	if payload == "" {
		return action
	}
	return action + ":" + payload
}

// Split parses "action:payload" back into its parts. Payload may itself
// contain colons; only the first separator counts.
func Split(data string) (action, payload string) {
	action, payload, _ = strings.Cut(data, ":")
	return action, payload
}
