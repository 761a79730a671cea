// internal/ai/errors.go
package ai

import "errors"

// Provider failures collapse into this small taxonomy. Raw provider error
// text is logged but never shown to end users; the router picks the reply
// with UserMessage.
var (
	ErrRateLimited      = errors.New("provider rate limit exceeded")
	ErrPermissionDenied = errors.New("provider permission denied")
	ErrInvalidRequest   = errors.New("invalid provider request")
	ErrUnknown          = errors.New("provider request failed")
)

// UserMessage maps a classified provider error to the fixed user-safe
// reply for it.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrRateLimited):
		return "⏳ Rate limit exceeded. Please try again in a moment."
	case errors.Is(err, ErrPermissionDenied):
		return "❌ The AI service rejected the request. Please contact an administrator."
	case errors.Is(err, ErrInvalidRequest):
		return "❌ I couldn't process that request. Please try rephrasing it."
	default:
		return "❌ Failed to generate a response. Please try again."
	}
}
