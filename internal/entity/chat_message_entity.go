package entity

import (
	"time"

	"github.com/google/uuid"
)

// ChatMessage ids are allocated by the database sequence; insertion order
// within a session is recovered by ordering on Id.
type ChatMessage struct {
	Id            int64
	ChatSessionId uuid.UUID
	Role          string
	Content       string
	CreatedAt     time.Time
}
