// internal/models/models.go
package models

import (
	"encoding/json"
	"time"
)

// Transcript roles. Only these two ever appear in a stored transcript.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ThreadMessage is one finalized turn in a thread transcript. Partial
// (streamed) text is never persisted, only the finished turn.
type ThreadMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ThreadContext is the persisted conversation state for one Discord thread.
// Messages is append-only and MessageCount always equals len(Messages).
type ThreadContext struct {
	ThreadID     string
	UserID       string
	ChannelID    string
	GuildID      string
	Messages     []ThreadMessage
	CreatedAt    time.Time
	LastActivity time.Time
	IsActive     bool
	MessageCount int
}

// ThreadContextRow is the gorm row backing a ThreadContext. The transcript
// is stored as an opaque JSON blob in the messages column.
type ThreadContextRow struct {
	ThreadID     string    `gorm:"primaryKey;column:thread_id"`
	UserID       string    `gorm:"not null"`
	ChannelID    string    `gorm:"not null"`
	GuildID      string    `gorm:"not null"`
	Messages     string    `gorm:"type:text;not null"`
	CreatedAt    time.Time `gorm:"not null"`
	LastActivity time.Time `gorm:"not null"`
	IsActive     bool      `gorm:"not null"`
	MessageCount int       `gorm:"not null"`
}

func (ThreadContextRow) TableName() string {
	return "thread_contexts"
}

// EncodeMessages serializes a transcript for the messages column.
func EncodeMessages(messages []ThreadMessage) (string, error) {
	if messages == nil {
		messages = []ThreadMessage{}
	}
	data, err := json.Marshal(messages)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DecodeMessages parses the messages column back into a transcript.
func DecodeMessages(encoded string) ([]ThreadMessage, error) {
	var messages []ThreadMessage
	if err := json.Unmarshal([]byte(encoded), &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// ToRow converts a ThreadContext to its storable form.
func (c *ThreadContext) ToRow() (*ThreadContextRow, error) {
	encoded, err := EncodeMessages(c.Messages)
	if err != nil {
		return nil, err
	}
	return &ThreadContextRow{
		ThreadID:     c.ThreadID,
		UserID:       c.UserID,
		ChannelID:    c.ChannelID,
		GuildID:      c.GuildID,
		Messages:     encoded,
		CreatedAt:    c.CreatedAt,
		LastActivity: c.LastActivity,
		IsActive:     c.IsActive,
		MessageCount: c.MessageCount,
	}, nil
}

// ToContext converts a stored row back to a ThreadContext. Fails if the
// messages blob does not decode; callers must not treat that as an empty
// transcript.
func (r *ThreadContextRow) ToContext() (*ThreadContext, error) {
	messages, err := DecodeMessages(r.Messages)
	if err != nil {
		return nil, err
	}
	return &ThreadContext{
		ThreadID:     r.ThreadID,
		UserID:       r.UserID,
		ChannelID:    r.ChannelID,
		GuildID:      r.GuildID,
		Messages:     messages,
		CreatedAt:    r.CreatedAt,
		LastActivity: r.LastActivity,
		IsActive:     r.IsActive,
		MessageCount: r.MessageCount,
	}, nil
}
