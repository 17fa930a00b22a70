package dto

import "github.com/google/uuid"

type StartSessionResponse struct {
	SessionId uuid.UUID `json:"session_id"`
}

type SendChatRequest struct {
	SessionId uuid.UUID `json:"session_id" validate:"required"`
	UserInput string    `json:"user_input" validate:"required"`
}

type SendChatResponse struct {
	Response  string    `json:"response"`
	SessionId uuid.UUID `json:"session_id"`
}

type SessionSummaryResponse struct {
	Id    uuid.UUID `json:"id"`
	Title string    `json:"title"`
}

type HistoryMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type GetHistoryResponse struct {
	History []HistoryMessage `json:"history"`
}

type DeleteSessionResponse struct {
	Message string `json:"message"`
}
