// internal/thread/service.go
package thread

import (
	"errors"
	"time"

	"discord-thread-bot/internal/database"
	"discord-thread-bot/internal/models"

	"go.uber.org/zap"
)

// Meta is the origin metadata for a freshly minted thread. The thread id
// comes from Discord; the rest identifies where the conversation started.
type Meta struct {
	ThreadID  string
	UserID    string
	ChannelID string
	GuildID   string
}

// Service enforces the thread context lifecycle above the raw store: a
// context is created exactly once per thread, transcripts only grow in
// user/assistant pairs, archiving is one-way, and cleanup is destructive.
//
// Read paths never propagate store errors to callers: a context that
// cannot be loaded is reported as absent so the message handler can tell
// the user to start over instead of crashing.
type Service struct {
	db  *database.DB
	log *zap.SugaredLogger
}

func NewService(db *database.DB, log *zap.SugaredLogger) *Service {
	return &Service{db: db, log: log}
}

// CreateContext builds and persists a fresh context with an empty
// transcript. A duplicate thread id is propagated; thread ids are minted
// by Discord so that should never happen in normal flow.
func (s *Service) CreateContext(meta Meta) (*models.ThreadContext, error) {
	now := time.Now()
	context := &models.ThreadContext{
		ThreadID:     meta.ThreadID,
		UserID:       meta.UserID,
		ChannelID:    meta.ChannelID,
		GuildID:      meta.GuildID,
		Messages:     []models.ThreadMessage{},
		CreatedAt:    now,
		LastActivity: now,
		IsActive:     true,
		MessageCount: 0,
	}

	if err := s.db.InsertThreadContext(context); err != nil {
		s.log.Errorw("failed to create thread context", "thread", meta.ThreadID, "error", err)
		return nil, err
	}

	s.log.Infow("thread context created", "thread", meta.ThreadID, "user", meta.UserID)
	return context, nil
}

// GetContext loads a context, or nil when it is missing or unreadable.
func (s *Service) GetContext(threadID string) *models.ThreadContext {
	context, err := s.db.GetThreadContext(threadID)
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			s.log.Errorw("failed to get thread context", "thread", threadID, "error", err)
		}
		return nil
	}
	return context
}

// IsActive reports whether a context exists and is still active. Any
// failure reads as inactive.
func (s *Service) IsActive(threadID string) bool {
	context, err := s.db.GetThreadContext(threadID)
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			s.log.Errorw("failed to check thread active status", "thread", threadID, "error", err)
		}
		return false
	}
	return context.IsActive
}

// RecordExchange appends one user turn and one assistant turn to an
// existing context, bumping last activity and the message count together
// in a single store update. A missing context is a logged no-op: contexts
// are only ever created through the new-thread path.
func (s *Service) RecordExchange(threadID, userText, assistantText string) error {
	context := s.GetContext(threadID)
	if context == nil {
		s.log.Warnw("attempted to record exchange on missing thread context", "thread", threadID)
		return nil
	}

	now := time.Now()
	messages := append(context.Messages,
		models.ThreadMessage{Role: models.RoleUser, Content: userText, Timestamp: now},
		models.ThreadMessage{Role: models.RoleAssistant, Content: assistantText, Timestamp: now},
	)
	messageCount := context.MessageCount + 2

	if err := s.db.UpdateThreadContext(threadID, messages, now, messageCount); err != nil {
		s.log.Errorw("failed to update thread context", "thread", threadID, "error", err)
		return err
	}

	s.log.Debugw("thread context updated", "thread", threadID, "messageCount", messageCount)
	return nil
}

// Archive marks a context inactive. Best effort: failures are logged for
// operational follow-up, never propagated.
func (s *Service) Archive(threadID string) {
	if err := s.db.SetThreadActive(threadID, false); err != nil {
		s.log.Errorw("failed to archive thread context", "thread", threadID, "error", err)
		return
	}
	s.log.Infow("thread context archived", "thread", threadID)
}

// Delete removes a context row entirely. A deleted thread id can only
// come back through the new-thread path.
func (s *Service) Delete(threadID string) {
	deleted, err := s.db.DeleteThread(threadID)
	if err != nil {
		s.log.Errorw("failed to delete thread context", "thread", threadID, "error", err)
		return
	}
	if deleted {
		s.log.Infow("thread context deleted", "thread", threadID)
	}
}

// Cleanup hard-deletes every context idle for more than maxAgeHours,
// active or not, and returns the number removed.
func (s *Service) Cleanup(maxAgeHours int) int64 {
	cutoff := time.Now().Add(-time.Duration(maxAgeHours) * time.Hour)

	count, err := s.db.CleanupOldThreads(cutoff)
	if err != nil {
		s.log.Errorw("failed to clean up old thread contexts", "error", err)
		return 0
	}
	if count > 0 {
		s.log.Infow("cleaned up old thread contexts", "count", count, "maxAgeHours", maxAgeHours)
	}
	return count
}

// ActiveCount returns the number of active contexts, 0 on any failure.
func (s *Service) ActiveCount() int64 {
	count, err := s.db.ActiveThreadCount()
	if err != nil {
		s.log.Errorw("failed to count active threads", "error", err)
		return 0
	}
	return count
}

// UserThreads returns every context a user has created, empty on failure.
func (s *Service) UserThreads(userID string) []*models.ThreadContext {
	contexts, err := s.db.GetUserThreads(userID)
	if err != nil {
		s.log.Errorw("failed to get user threads", "user", userID, "error", err)
		return nil
	}
	return contexts
}
