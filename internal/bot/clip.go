// internal/bot/clip.go
package bot

import "unicode/utf8"

// Discord message-size budgets. 2000 is the hard message ceiling; streamed
// progress edits stay under 1900 to leave room for the progress marker.
const (
	titleClipLimit  = 50
	streamClipLimit = 1900
	finalClipLimit  = 2000
)

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// clipTitle shortens a prompt into a thread-title preview.
func clipTitle(prompt string) string {
	if len(prompt) > titleClipLimit {
		return truncate(prompt, titleClipLimit) + "..."
	}
	return prompt
}

// clipStreaming formats the accumulated buffer for a progress edit, always
// carrying the in-progress marker.
func clipStreaming(buffer string) string {
	if len(buffer) > streamClipLimit {
		return truncate(buffer, streamClipLimit) + "... ⏳"
	}
	return buffer + " ⏳"
}

// clipFinal enforces the hard message ceiling on the finished response.
func clipFinal(response string) string {
	if len(response) > finalClipLimit {
		return truncate(response, finalClipLimit-3) + "..."
	}
	return response
}
