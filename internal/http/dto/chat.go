package dto

import (
	"time"

	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/model"
)

type ChatRequest struct {
	Message        string  `json:"message"`
	ConversationID *string `json:"conversation_id,omitempty"`
}

type ChatHistoryResponse struct {
	Success       bool                   `json:"success"`
	Conversations []ConversationResponse `json:"conversations"`
}

type ConversationResponse struct {
	ID        int64             `json:"id,string"`
	Title     string            `json:"title"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	Messages  []MessageResponse `json:"messages"`
}

type MessageResponse struct {
	ID        int64                  `json:"id,string"`
	Role      model.MessageRole      `json:"role"`
	Content   string                 `json:"content"`
	Metadata  *model.MessageMetadata `json:"metadata,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

func ToChatHistoryResponse(conversations []model.Conversation) *ChatHistoryResponse {
	resp := &ChatHistoryResponse{
		Success:       true,
		Conversations: make([]ConversationResponse, len(conversations)),
	}
	for i, c := range conversations {
		msgs := make([]MessageResponse, len(c.Messages))
		for j, m := range c.Messages {
			msgs[j] = MessageResponse{
				ID:        m.ID,
				Role:      m.Role,
				Content:   m.Content,
				Metadata:  m.Metadata,
				CreatedAt: m.CreatedAt,
			}
		}
		resp.Conversations[i] = ConversationResponse{
			ID:        c.ID,
			Title:     c.Title,
			CreatedAt: c.CreatedAt,
			UpdatedAt: c.UpdatedAt,
			Messages:  msgs,
		}
	}
	return resp
}
