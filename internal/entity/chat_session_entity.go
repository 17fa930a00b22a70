package entity

import (
	"time"

	"github.com/google/uuid"
)

type ChatSession struct {
	Id        uuid.UUID
	UserId    string
	Title     string
	CreatedAt time.Time
	UpdatedAt *time.Time
}
