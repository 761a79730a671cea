// internal/bot/handler.go
package bot

import (
	"context"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"discord-thread-bot/internal/ai"
	"discord-thread-bot/internal/thread"
)

const (
	thinkingMessage   = "🤔 Thinking..."
	processingMessage = "🤔 Processing..."

	contextNotFoundMessage   = "⚠️ Thread context not found. Please start a new query by mentioning the bot."
	newQueryFailedMessage    = "❌ Failed to create a thread and process your query. Please try again."
	threadReplyFailedMessage = "❌ Failed to process your message. Please try again."
	emptyResponseMessage     = "🤷 The model returned an empty response. Please try again."

	threadAutoArchiveMinutes = 60
	defaultEditInterval      = 50 * time.Millisecond
)

// Handler routes inbound messages: a qualifying mention in a top-level
// channel starts a new thread and context, a message inside a thread
// continues the existing context, everything else is ignored.
type Handler struct {
	platform Platform
	contexts *thread.Service
	streamer Streamer
	log      *zap.SugaredLogger
	botID    string

	// Minimum wall-clock gap between progress edits in the thread
	// continuation path. Edits due sooner are skipped, not queued.
	editInterval time.Duration
}

func NewHandler(platform Platform, contexts *thread.Service, streamer Streamer, log *zap.SugaredLogger, botID string) *Handler {
	return &Handler{
		platform:     platform,
		contexts:     contexts,
		streamer:     streamer,
		log:          log,
		botID:        botID,
		editInterval: defaultEditInterval,
	}
}

// HandleMessage processes one inbound message to completion. It is safe
// to run concurrently for different messages; callers dispatch each
// message on its own goroutine.
func (h *Handler) HandleMessage(ctx context.Context, msg InboundMessage) {
	if msg.AuthorBot || msg.AuthorID == h.botID {
		return
	}

	if msg.IsThread {
		h.handleThreadMessage(ctx, msg)
		return
	}

	// Both checks are required: the structured mention and the literal id
	// in the text. Guards against a mention render mismatch.
	isMentioned := slices.Contains(msg.Mentions, h.botID)
	containsID := strings.Contains(msg.Content, h.botID)
	if !isMentioned || !containsID {
		h.log.Debugw("message ignored, bot not properly mentioned",
			"channel", msg.ChannelID, "mentioned", isMentioned, "containsID", containsID)
		return
	}

	h.handleNewQuery(ctx, msg)
}

func (h *Handler) handleNewQuery(ctx context.Context, msg InboundMessage) {
	start := time.Now()
	h.log.Infow("handling new query", "user", msg.AuthorID, "channel", msg.ChannelID)

	title := "Query: " + clipTitle(msg.Content)
	threadID, err := h.platform.CreateThread(msg.ChannelID, msg.ID, title, threadAutoArchiveMinutes)
	if err != nil {
		h.failNewQuery(msg, start, newQueryFailedMessage, err)
		return
	}

	threadContext, err := h.contexts.CreateContext(thread.Meta{
		ThreadID:  threadID,
		UserID:    msg.AuthorID,
		ChannelID: msg.ChannelID,
		GuildID:   msg.GuildID,
	})
	if err != nil {
		h.failNewQuery(msg, start, newQueryFailedMessage, err)
		return
	}

	botMessageID, err := h.platform.SendMessage(threadID, thinkingMessage)
	if err != nil {
		h.failNewQuery(msg, start, newQueryFailedMessage, err)
		return
	}

	// Every fragment triggers an edit attempt here, unlike the throttled
	// continuation path.
	var buffer strings.Builder
	response, err := h.streamer.StreamResponse(ctx, threadID, threadContext.Messages, msg.Content, func(chunk string) {
		buffer.WriteString(chunk)
		if editErr := h.platform.EditMessage(threadID, botMessageID, clipStreaming(buffer.String())); editErr != nil {
			h.log.Warnw("failed to update streaming message", "thread", threadID, "error", editErr)
		}
	})
	if err != nil {
		h.failNewQuery(msg, start, ai.UserMessage(err), err)
		return
	}

	if err := h.platform.EditMessage(threadID, botMessageID, finalContent(response)); err != nil {
		h.failNewQuery(msg, start, newQueryFailedMessage, err)
		return
	}

	if err := h.contexts.RecordExchange(threadID, msg.Content, response); err != nil {
		h.log.Errorw("failed to record exchange", "thread", threadID, "error", err)
	}

	h.log.Infow("new query handled",
		"thread", threadID,
		"duration", time.Since(start),
		"responseLength", len(response))
}

func (h *Handler) handleThreadMessage(ctx context.Context, msg InboundMessage) {
	threadID := msg.ChannelID
	start := time.Now()
	h.log.Infow("handling thread message", "user", msg.AuthorID, "thread", threadID)

	if !h.contexts.IsActive(threadID) {
		h.log.Warnw("thread context not found or inactive", "thread", threadID)
		h.reply(threadID, contextNotFoundMessage)
		return
	}

	threadContext := h.contexts.GetContext(threadID)
	if threadContext == nil {
		h.log.Warnw("failed to retrieve thread context", "thread", threadID)
		h.reply(threadID, contextNotFoundMessage)
		return
	}

	botMessageID, err := h.platform.SendMessage(threadID, processingMessage)
	if err != nil {
		h.failThreadMessage(msg, start, threadReplyFailedMessage, err)
		return
	}

	var buffer strings.Builder
	lastEdit := time.Now()
	response, err := h.streamer.StreamResponse(ctx, threadID, threadContext.Messages, msg.Content, func(chunk string) {
		buffer.WriteString(chunk)

		now := time.Now()
		if now.Sub(lastEdit) < h.editInterval {
			return
		}
		if editErr := h.platform.EditMessage(threadID, botMessageID, clipStreaming(buffer.String())); editErr != nil {
			h.log.Warnw("failed to update streaming message", "thread", threadID, "error", editErr)
			return
		}
		lastEdit = now
	})
	if err != nil {
		h.failThreadMessage(msg, start, ai.UserMessage(err), err)
		return
	}

	if err := h.platform.EditMessage(threadID, botMessageID, finalContent(response)); err != nil {
		h.failThreadMessage(msg, start, threadReplyFailedMessage, err)
		return
	}

	if err := h.contexts.RecordExchange(threadID, msg.Content, response); err != nil {
		h.log.Errorw("failed to record exchange", "thread", threadID, "error", err)
	}

	h.log.Infow("thread message handled",
		"thread", threadID,
		"duration", time.Since(start),
		"messageCount", threadContext.MessageCount+2)
}

// finalContent prepares the response for the closing edit. An empty
// completion gets a fixed placeholder since an empty edit would be
// rejected by the platform.
func finalContent(response string) string {
	if response == "" {
		return emptyResponseMessage
	}
	return clipFinal(response)
}

func (h *Handler) failNewQuery(msg InboundMessage, start time.Time, userReply string, err error) {
	h.log.Errorw("failed to handle new query",
		"user", msg.AuthorID,
		"channel", msg.ChannelID,
		"duration", time.Since(start),
		"error", err)
	h.reply(msg.ChannelID, userReply)
}

func (h *Handler) failThreadMessage(msg InboundMessage, start time.Time, userReply string, err error) {
	h.log.Errorw("failed to handle thread message",
		"user", msg.AuthorID,
		"thread", msg.ChannelID,
		"duration", time.Since(start),
		"error", err)
	h.reply(msg.ChannelID, userReply)
}

// reply sends exactly one user-facing message for a handled failure. A
// failure sending it is logged, never retried.
func (h *Handler) reply(channelID, content string) {
	if _, err := h.platform.SendMessage(channelID, content); err != nil {
		h.log.Errorw("failed to send error reply", "channel", channelID, "error", err)
	}
}
