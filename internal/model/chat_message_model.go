package model

import (
	"time"

	"github.com/google/uuid"
)

type ChatMessage struct {
	Id            int64     `gorm:"primaryKey;autoIncrement"`
	ChatSessionId uuid.UUID `gorm:"type:uuid;not null;index"`
	Role          string    `gorm:"type:varchar(50);not null"`
	Content       string    `gorm:"type:text;not null"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`

	// Cascade from the session row so deleting a session can never leave
	// orphaned messages, even outside the service-level transaction.
	Session *ChatSession `gorm:"foreignKey:ChatSessionId;constraint:OnDelete:CASCADE"`
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}
