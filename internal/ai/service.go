// internal/ai/service.go
package ai

import (
	"context"
	"time"

	"discord-thread-bot/internal/models"

	"go.uber.org/zap"
)

// Generation parameters shared by all providers.
const (
	temperature     = 0.7
	maxOutputTokens = 400
)

// Message is one ordered role/content pair sent to a provider.
type Message struct {
	Role    string
	Content string
}

// Provider turns an ordered message sequence into a streamed completion.
// Implementations invoke onDelta once per fragment in emission order and
// return the exact concatenation of all fragments. Errors are classified
// into the package taxonomy before being returned.
type Provider interface {
	Name() string
	Stream(ctx context.Context, messages []Message, onDelta func(string)) (string, error)
}

// Service wraps a Provider with request assembly and stream observability.
type Service struct {
	provider Provider
	log      *zap.SugaredLogger
}

func NewService(provider Provider, log *zap.SugaredLogger) *Service {
	return &Service{provider: provider, log: log}
}

// StreamResponse streams the assistant's reply to prompt given the prior
// transcript. onChunk receives each fragment as it arrives; the returned
// string is the full concatenated reply.
func (s *Service) StreamResponse(ctx context.Context, threadID string, history []models.ThreadMessage, prompt string, onChunk func(string)) (string, error) {
	start := time.Now()

	messages := make([]Message, 0, len(history)+1)
	for _, m := range history {
		messages = append(messages, Message{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, Message{Role: models.RoleUser, Content: prompt})

	s.log.Infow("starting completion stream",
		"thread", threadID,
		"provider", s.provider.Name(),
		"historyMessages", len(history))

	chunkCount := 0
	streamedLen := 0
	full, err := s.provider.Stream(ctx, messages, func(chunk string) {
		chunkCount++
		streamedLen += len(chunk)
		if chunkCount%10 == 0 {
			s.log.Debugw("streaming progress",
				"thread", threadID, "chunks", chunkCount, "length", streamedLen)
		}
		onChunk(chunk)
	})

	duration := time.Since(start)
	if err != nil {
		s.log.Errorw("completion stream failed",
			"thread", threadID, "duration", duration, "error", err)
		return "", err
	}

	s.log.Infow("completion stream finished",
		"thread", threadID,
		"duration", duration,
		"length", len(full),
		"chunks", chunkCount)
	return full, nil
}

// EstimateTokens gives a rough token count for a transcript, at the usual
// one-token-per-four-characters approximation.
func EstimateTokens(messages []models.ThreadMessage) int {
	total := 0
	for _, m := range messages {
		total += (len(m.Content) + 3) / 4
	}
	return total
}
