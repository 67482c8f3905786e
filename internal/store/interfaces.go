package store

import (
	"context"
	"errors"

	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// AssessmentStore defines the contract for assessment data access
type AssessmentStore interface {
	Create(ctx context.Context, a *model.Assessment) error
	GetByID(ctx context.Context, id int64) (*model.Assessment, error)
}

// ResponseStore defines the contract for per-question answers
type ResponseStore interface {
	CreateBatch(ctx context.Context, responses []model.Response) error
	ListByAssessment(ctx context.Context, assessmentID int64) ([]model.Response, error)
}

// ResultsStore reads generated results. Rows are written by the generator.
type ResultsStore interface {
	GetByAssessment(ctx context.Context, assessmentID int64) (*model.Results, error)
}

// ConversationStore defines the contract for chat threads
type ConversationStore interface {
	Create(ctx context.Context, c *model.Conversation) error
	GetByID(ctx context.Context, id int64) (*model.Conversation, error)
	// ListVisible returns conversations newest-first. Ownerless conversations
	// are always visible; owned ones only to their owner.
	ListVisible(ctx context.Context, assessmentID int64, contextType model.ContextType, userID *string) ([]model.Conversation, error)
}

// MessageStore defines the contract for chat messages. Messages are append-only
// apart from the insight metadata attached after extraction.
type MessageStore interface {
	Create(ctx context.Context, m *model.Message) error
	GetByID(ctx context.Context, id int64) (*model.Message, error)
	ListByConversation(ctx context.Context, conversationID int64) ([]model.Message, error)
	ListByConversations(ctx context.Context, conversationIDs []int64) (map[int64][]model.Message, error)
	SetMetadata(ctx context.Context, id int64, meta *model.MessageMetadata) error
}

// JourneyStore reads the journey workspace of an assessment
type JourneyStore interface {
	ListProjects(ctx context.Context, assessmentID int64) ([]model.Project, error)
	ListBacklogItems(ctx context.Context, assessmentID int64) ([]model.BacklogItem, error)
	ListSprints(ctx context.Context, assessmentID int64) ([]model.Sprint, error)
	ListRisks(ctx context.Context, assessmentID int64) ([]model.Risk, error)
}

// LLMEvalStore records structured LLM calls for offline evaluation
type LLMEvalStore interface {
	Create(ctx context.Context, eval *model.LLMEval) error
	ListByStage(ctx context.Context, stage string, limit int32) ([]model.LLMEval, error)
}
