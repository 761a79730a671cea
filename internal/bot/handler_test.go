// internal/bot/handler_test.go
package bot

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"discord-thread-bot/internal/ai"
	"discord-thread-bot/internal/database"
	"discord-thread-bot/internal/models"
	"discord-thread-bot/internal/thread"
)

const testBotID = "bot123"

type sentMessage struct {
	channelID string
	messageID string
	content   string
}

type editCall struct {
	channelID string
	messageID string
	content   string
}

type threadCall struct {
	channelID          string
	messageID          string
	title              string
	autoArchiveMinutes int
	threadID           string
}

type fakePlatform struct {
	mu      sync.Mutex
	sent    []sentMessage
	edits   []editCall
	threads []threadCall

	nextID          int
	failEdits       int // first N edit calls fail
	createThreadErr error
	sendErr         error
}

func (p *fakePlatform) SendMessage(channelID, content string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sendErr != nil {
		return "", p.sendErr
	}
	p.nextID++
	id := fmt.Sprintf("msg-%d", p.nextID)
	p.sent = append(p.sent, sentMessage{channelID: channelID, messageID: id, content: content})
	return id, nil
}

func (p *fakePlatform) EditMessage(channelID, messageID, content string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failEdits > 0 {
		p.failEdits--
		return errors.New("edit rate limited")
	}
	p.edits = append(p.edits, editCall{channelID: channelID, messageID: messageID, content: content})
	return nil
}

func (p *fakePlatform) CreateThread(channelID, messageID, title string, autoArchiveMinutes int) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.createThreadErr != nil {
		return "", p.createThreadErr
	}
	p.nextID++
	id := fmt.Sprintf("thread-%d", p.nextID)
	p.threads = append(p.threads, threadCall{
		channelID:          channelID,
		messageID:          messageID,
		title:              title,
		autoArchiveMinutes: autoArchiveMinutes,
		threadID:           id,
	})
	return id, nil
}

func (p *fakePlatform) ArchiveThread(threadID, reason string) error {
	return nil
}

func (p *fakePlatform) lastSent() sentMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sent[len(p.sent)-1]
}

type fakeStreamer struct {
	fragments []string
	delays    []time.Duration // per-fragment pause before delivery
	err       error

	gotThreadID string
	gotHistory  []models.ThreadMessage
	gotPrompt   string
}

func (f *fakeStreamer) StreamResponse(ctx context.Context, threadID string, history []models.ThreadMessage, prompt string, onChunk func(string)) (string, error) {
	f.gotThreadID = threadID
	f.gotHistory = history
	f.gotPrompt = prompt

	var full strings.Builder
	for i, fragment := range f.fragments {
		if i < len(f.delays) {
			time.Sleep(f.delays[i])
		}
		full.WriteString(fragment)
		onChunk(fragment)
	}
	if f.err != nil {
		return "", f.err
	}
	return full.String(), nil
}

func newTestHandler(t *testing.T, platform *fakePlatform, streamer *fakeStreamer) (*Handler, *thread.Service) {
	t.Helper()
	db, err := database.NewDB("sqlite", filepath.Join(t.TempDir(), "threads.db"), "")
	require.NoError(t, err)
	contexts := thread.NewService(db, zap.NewNop().Sugar())
	return NewHandler(platform, contexts, streamer, zap.NewNop().Sugar(), testBotID), contexts
}

func mentionMessage(content string) InboundMessage {
	return InboundMessage{
		ID:        "origin-1",
		ChannelID: "channel-1",
		GuildID:   "guild-1",
		AuthorID:  "user-1",
		Content:   content,
		Mentions:  []string{testBotID},
	}
}

func TestHandleMessage_IgnoresBotAuthors(t *testing.T) {
	platform := &fakePlatform{}
	handler, contexts := newTestHandler(t, platform, &fakeStreamer{fragments: []string{"hi"}})

	msg := mentionMessage("hello <@" + testBotID + "> explain X")
	msg.AuthorBot = true
	handler.HandleMessage(context.Background(), msg)

	assert.Empty(t, platform.sent)
	assert.Empty(t, platform.threads)
	assert.EqualValues(t, 0, contexts.ActiveCount())
}

func TestHandleMessage_IgnoresOwnMessages(t *testing.T) {
	platform := &fakePlatform{}
	handler, _ := newTestHandler(t, platform, &fakeStreamer{fragments: []string{"hi"}})

	msg := mentionMessage("hello <@" + testBotID + ">")
	msg.AuthorID = testBotID
	handler.HandleMessage(context.Background(), msg)

	assert.Empty(t, platform.sent)
	assert.Empty(t, platform.threads)
}

func TestHandleMessage_RequiresBothMentionChecks(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		mentions []string
	}{
		{"structural mention only", "hello bot, explain X", []string{testBotID}},
		{"literal id only", "hello " + testBotID + ", explain X", nil},
		{"neither", "hello, explain X", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			platform := &fakePlatform{}
			handler, contexts := newTestHandler(t, platform, &fakeStreamer{fragments: []string{"hi"}})

			handler.HandleMessage(context.Background(), InboundMessage{
				ID:        "origin-1",
				ChannelID: "channel-1",
				AuthorID:  "user-1",
				Content:   tt.content,
				Mentions:  tt.mentions,
			})

			assert.Empty(t, platform.threads)
			assert.Empty(t, platform.sent)
			assert.EqualValues(t, 0, contexts.ActiveCount())
		})
	}
}

func TestHandleNewQuery_EndToEnd(t *testing.T) {
	platform := &fakePlatform{}
	streamer := &fakeStreamer{fragments: []string{"Hello", ", ", "world"}}
	handler, contexts := newTestHandler(t, platform, streamer)

	content := "hello <@" + testBotID + "> explain X"
	handler.HandleMessage(context.Background(), mentionMessage(content))

	// Thread anchored to the triggering message, titled from the prompt.
	require.Len(t, platform.threads, 1)
	created := platform.threads[0]
	assert.Equal(t, "channel-1", created.channelID)
	assert.Equal(t, "origin-1", created.messageID)
	assert.Equal(t, "Query: "+clipTitle(content), created.title)
	assert.Equal(t, threadAutoArchiveMinutes, created.autoArchiveMinutes)

	// Placeholder posted into the new thread.
	require.NotEmpty(t, platform.sent)
	placeholder := platform.sent[0]
	assert.Equal(t, created.threadID, placeholder.channelID)
	assert.Equal(t, thinkingMessage, placeholder.content)

	// Every fragment triggered a progress edit, plus the final edit.
	require.Len(t, platform.edits, len(streamer.fragments)+1)
	assert.Equal(t, clipStreaming("Hello"), platform.edits[0].content)
	assert.Equal(t, clipStreaming("Hello, "), platform.edits[1].content)
	assert.Equal(t, clipStreaming("Hello, world"), platform.edits[2].content)
	assert.Equal(t, "Hello, world", platform.edits[3].content)

	// Exchange recorded: one user turn, one assistant turn.
	threadContext := contexts.GetContext(created.threadID)
	require.NotNil(t, threadContext)
	assert.Equal(t, 2, threadContext.MessageCount)
	require.Len(t, threadContext.Messages, 2)
	assert.Equal(t, models.RoleUser, threadContext.Messages[0].Role)
	assert.Equal(t, content, threadContext.Messages[0].Content)
	assert.Equal(t, models.RoleAssistant, threadContext.Messages[1].Role)
	assert.Equal(t, "Hello, world", threadContext.Messages[1].Content)

	// The stream saw an empty history for a fresh thread.
	assert.Empty(t, streamer.gotHistory)
	assert.Equal(t, content, streamer.gotPrompt)
}

func TestHandleThreadMessage_MissingContext(t *testing.T) {
	platform := &fakePlatform{}
	handler, contexts := newTestHandler(t, platform, &fakeStreamer{fragments: []string{"hi"}})

	handler.HandleMessage(context.Background(), InboundMessage{
		ID:        "msg-1",
		ChannelID: "thread-unknown",
		AuthorID:  "user-1",
		Content:   "are you there?",
		IsThread:  true,
	})

	require.Len(t, platform.sent, 1)
	assert.Equal(t, contextNotFoundMessage, platform.sent[0].content)
	assert.Empty(t, platform.edits)

	// No context row is created as a side effect.
	assert.Nil(t, contexts.GetContext("thread-unknown"))
}

func TestHandleThreadMessage_ArchivedContext(t *testing.T) {
	platform := &fakePlatform{}
	handler, contexts := newTestHandler(t, platform, &fakeStreamer{fragments: []string{"hi"}})

	_, err := contexts.CreateContext(thread.Meta{ThreadID: "thread-1", UserID: "user-1", ChannelID: "channel-1", GuildID: "guild-1"})
	require.NoError(t, err)
	contexts.Archive("thread-1")

	handler.HandleMessage(context.Background(), InboundMessage{
		ID:        "msg-1",
		ChannelID: "thread-1",
		AuthorID:  "user-1",
		Content:   "continue",
		IsThread:  true,
	})

	require.Len(t, platform.sent, 1)
	assert.Equal(t, contextNotFoundMessage, platform.sent[0].content)
}

func TestHandleThreadMessage_ContinueFlow(t *testing.T) {
	platform := &fakePlatform{}
	streamer := &fakeStreamer{fragments: []string{"foo", "bar"}}
	handler, contexts := newTestHandler(t, platform, streamer)
	// Force the throttle to skip every mid-stream edit.
	handler.editInterval = time.Hour

	_, err := contexts.CreateContext(thread.Meta{ThreadID: "thread-1", UserID: "user-1", ChannelID: "channel-1", GuildID: "guild-1"})
	require.NoError(t, err)
	require.NoError(t, contexts.RecordExchange("thread-1", "first question", "first answer"))

	handler.HandleMessage(context.Background(), InboundMessage{
		ID:        "msg-1",
		ChannelID: "thread-1",
		AuthorID:  "user-1",
		Content:   "follow-up",
		IsThread:  true,
	})

	// Placeholder, then only the final edit: throttled edits were skipped,
	// not queued, and the buffer still accumulated everything.
	require.Len(t, platform.sent, 1)
	assert.Equal(t, processingMessage, platform.sent[0].content)
	require.Len(t, platform.edits, 1)
	assert.Equal(t, "foobar", platform.edits[0].content)

	// Prior transcript was passed as history.
	require.Len(t, streamer.gotHistory, 2)
	assert.Equal(t, "first question", streamer.gotHistory[0].Content)
	assert.Equal(t, "follow-up", streamer.gotPrompt)

	threadContext := contexts.GetContext("thread-1")
	require.NotNil(t, threadContext)
	assert.Equal(t, 4, threadContext.MessageCount)
	assert.Equal(t, "foobar", threadContext.Messages[3].Content)
}

func TestHandleThreadMessage_EditIssuedAfterInterval(t *testing.T) {
	platform := &fakePlatform{}
	// Each fragment arrives well after the throttle interval has elapsed.
	streamer := &fakeStreamer{
		fragments: []string{"foo", "bar"},
		delays:    []time.Duration{20 * time.Millisecond, 20 * time.Millisecond},
	}
	handler, contexts := newTestHandler(t, platform, streamer)
	handler.editInterval = time.Millisecond

	_, err := contexts.CreateContext(thread.Meta{ThreadID: "thread-1", UserID: "user-1", ChannelID: "channel-1", GuildID: "guild-1"})
	require.NoError(t, err)

	handler.HandleMessage(context.Background(), InboundMessage{
		ID:        "msg-1",
		ChannelID: "thread-1",
		AuthorID:  "user-1",
		Content:   "follow-up",
		IsThread:  true,
	})

	// Both fragments produced a progress edit, then the final edit.
	require.Len(t, platform.edits, 3)
	assert.Equal(t, clipStreaming("foo"), platform.edits[0].content)
	assert.Equal(t, clipStreaming("foobar"), platform.edits[1].content)
	assert.Equal(t, "foobar", platform.edits[2].content)
}

func TestHandleThreadMessage_ThrottleAdvancesOnlyOnSuccessfulEdit(t *testing.T) {
	platform := &fakePlatform{failEdits: 1}
	// First fragment arrives past the interval but its edit fails; the
	// second follows too soon after it and must still be attempted, since
	// the failed edit did not reset the throttle clock.
	streamer := &fakeStreamer{
		fragments: []string{"a", "b"},
		delays:    []time.Duration{250 * time.Millisecond, 50 * time.Millisecond},
	}
	handler, contexts := newTestHandler(t, platform, streamer)
	handler.editInterval = 200 * time.Millisecond

	_, err := contexts.CreateContext(thread.Meta{ThreadID: "thread-1", UserID: "user-1", ChannelID: "channel-1", GuildID: "guild-1"})
	require.NoError(t, err)

	handler.HandleMessage(context.Background(), InboundMessage{
		ID:        "msg-1",
		ChannelID: "thread-1",
		AuthorID:  "user-1",
		Content:   "follow-up",
		IsThread:  true,
	})

	// The second fragment's edit carried both fragments, then the final
	// edit landed. Had the failed edit advanced the clock, the second
	// fragment would have been skipped.
	require.Len(t, platform.edits, 2)
	assert.Equal(t, clipStreaming("ab"), platform.edits[0].content)
	assert.Equal(t, "ab", platform.edits[1].content)
}

func TestHandleNewQuery_EmptyCompletion(t *testing.T) {
	platform := &fakePlatform{}
	streamer := &fakeStreamer{}
	handler, contexts := newTestHandler(t, platform, streamer)

	content := "hi <@" + testBotID + "> explain X"
	handler.HandleMessage(context.Background(), mentionMessage(content))

	// A successful empty completion shows the fixed placeholder rather
	// than degrading into the failure path.
	require.Len(t, platform.edits, 1)
	assert.Equal(t, emptyResponseMessage, platform.edits[0].content)
	require.Len(t, platform.sent, 1)
	assert.Equal(t, thinkingMessage, platform.sent[0].content)

	// The exchange is still recorded, with an empty assistant turn.
	require.Len(t, platform.threads, 1)
	threadContext := contexts.GetContext(platform.threads[0].threadID)
	require.NotNil(t, threadContext)
	assert.Equal(t, 2, threadContext.MessageCount)
	assert.Equal(t, content, threadContext.Messages[0].Content)
	assert.Equal(t, "", threadContext.Messages[1].Content)
}

func TestHandleNewQuery_RateLimitedProvider(t *testing.T) {
	platform := &fakePlatform{}
	streamer := &fakeStreamer{err: fmt.Errorf("%w: quota exhausted", ai.ErrRateLimited)}
	handler, contexts := newTestHandler(t, platform, streamer)

	handler.HandleMessage(context.Background(), mentionMessage("hi <@"+testBotID+"> explain X"))

	// Fixed rate-limit reply in the origin channel, not raw provider text.
	last := platform.lastSent()
	assert.Equal(t, "channel-1", last.channelID)
	assert.Equal(t, ai.UserMessage(ai.ErrRateLimited), last.content)
	assert.NotContains(t, last.content, "quota exhausted")

	// The exchange was not recorded.
	require.Len(t, platform.threads, 1)
	threadContext := contexts.GetContext(platform.threads[0].threadID)
	require.NotNil(t, threadContext)
	assert.Equal(t, 0, threadContext.MessageCount)
}

func TestHandleNewQuery_EditFailuresDoNotAbortStream(t *testing.T) {
	platform := &fakePlatform{failEdits: 3} // every progress edit fails
	streamer := &fakeStreamer{fragments: []string{"a", "b", "c"}}
	handler, contexts := newTestHandler(t, platform, streamer)

	handler.HandleMessage(context.Background(), mentionMessage("hi <@"+testBotID+"> explain X"))

	// Only the final edit landed, carrying the full concatenation.
	require.Len(t, platform.edits, 1)
	assert.Equal(t, "abc", platform.edits[0].content)

	require.Len(t, platform.threads, 1)
	threadContext := contexts.GetContext(platform.threads[0].threadID)
	require.NotNil(t, threadContext)
	assert.Equal(t, 2, threadContext.MessageCount)
	assert.Equal(t, "abc", threadContext.Messages[1].Content)
}

func TestHandleNewQuery_ThreadCreationFailure(t *testing.T) {
	platform := &fakePlatform{createThreadErr: errors.New("missing permission")}
	handler, contexts := newTestHandler(t, platform, &fakeStreamer{fragments: []string{"hi"}})

	handler.HandleMessage(context.Background(), mentionMessage("hi <@"+testBotID+"> explain X"))

	// One apology in the origin channel, nothing persisted.
	require.Len(t, platform.sent, 1)
	assert.Equal(t, "channel-1", platform.sent[0].channelID)
	assert.Equal(t, newQueryFailedMessage, platform.sent[0].content)
	assert.EqualValues(t, 0, contexts.ActiveCount())
}
