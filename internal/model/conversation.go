package model

import "time"

type ContextType string

const (
	ContextGeneral ContextType = "general"
	ContextJourney ContextType = "journey"
)

type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Conversation groups the messages of one chat thread on an assessment.
// General and journey threads never share history.
type Conversation struct {
	ID           int64       `json:"id,string"`
	AssessmentID int64       `json:"assessment_id,string"`
	UserID       *string     `json:"user_id,omitempty"`
	ContextType  ContextType `json:"context_type"`
	Title        string      `json:"title"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
	Messages     []Message   `json:"messages,omitempty"`
}

// VisibleTo reports whether userID may read or continue the conversation.
// Ownerless conversations are shared; owned ones belong to their owner only.
func (c *Conversation) VisibleTo(userID *string) bool {
	if c.UserID == nil {
		return true
	}
	return userID != nil && *userID == *c.UserID
}

// Message is append-only. Token counts and Model are set on assistant messages.
type Message struct {
	ID             int64            `json:"id,string"`
	ConversationID int64            `json:"conversation_id,string"`
	Role           MessageRole      `json:"role"`
	Content        string           `json:"content"`
	InputTokens    int              `json:"input_tokens,omitempty"`
	OutputTokens   int              `json:"output_tokens,omitempty"`
	Model          string           `json:"model,omitempty"`
	Metadata       *MessageMetadata `json:"metadata,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
}

type InsightStatus string

const (
	// InsightStatusNone means extraction ran and found nothing actionable.
	InsightStatusNone   InsightStatus = "none"
	InsightStatusFound  InsightStatus = "found"
	InsightStatusFailed InsightStatus = "failed"
)

type MessageMetadata struct {
	Insights      []Insight     `json:"insights"`
	InsightStatus InsightStatus `json:"insight_status"`
	ExtractedAt   time.Time     `json:"extracted_at"`
}
