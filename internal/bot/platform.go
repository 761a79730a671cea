// internal/bot/platform.go
package bot

import (
	"context"

	"discord-thread-bot/internal/models"
)

// Platform is the narrow slice of messaging capability the router needs,
// so the routing logic is testable without a live Discord session.
type Platform interface {
	// SendMessage posts content to a channel and returns the new message id.
	SendMessage(channelID, content string) (string, error)
	// EditMessage replaces the content of an existing message.
	EditMessage(channelID, messageID, content string) error
	// CreateThread starts a thread anchored to a message and returns the
	// thread channel id.
	CreateThread(channelID, messageID, title string, autoArchiveMinutes int) (string, error)
	// ArchiveThread archives a thread channel.
	ArchiveThread(threadID, reason string) error
}

// Streamer produces a streamed completion for a prompt given the prior
// transcript. onChunk sees each fragment in emission order; the returned
// string is the exact concatenation of all fragments.
type Streamer interface {
	StreamResponse(ctx context.Context, threadID string, history []models.ThreadMessage, prompt string, onChunk func(string)) (string, error)
}

// InboundMessage is a platform-neutral view of one received message.
type InboundMessage struct {
	ID        string
	ChannelID string
	GuildID   string
	AuthorID  string
	AuthorBot bool
	Content   string
	// Mentions holds the user ids structurally mentioned in the message.
	Mentions []string
	// IsThread reports whether the originating channel is a thread.
	IsThread bool
}
