package tgui

import (
	"strings"
)

// Data formats inline callback data as "scope:action:payload".
// The result is clipped to MaxCallbackDataLen bytes on a rune boundary.
func Data(scope, action, payload string) string {
	scope = strings.TrimSpace(scope)
	action = strings.TrimSpace(action)
	s := scope + ":" + action
	if payload != "" {
		s += ":" + payload
	}
	return clipBytes(s, MaxCallbackDataLen)
}

// ParseData splits callback data produced by Data. Payload may contain ':'.
func ParseData(data string) (scope, action, payload string, ok bool) {
	parts := strings.SplitN(strings.TrimSpace(data), ":", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", "", false
	}
	if len(parts) == 3 {
		payload = parts[2]
	}
	return parts[0], parts[1], payload, true
}

func clipBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := 0
	for i := range s {
		if i > n {
			break
		}
		cut = i
	}
	return s[:cut]
}
