package queue

import "github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/model"

type TaskType string

const (
	// TaskTypeInsightExtraction mines a persisted assistant message for insights.
	TaskTypeInsightExtraction TaskType = "insight_extraction"
)

// Task is what producers enqueue. The message text is not carried; the
// worker reads it from the message store so a task never outlives its data.
type Task struct {
	TaskType       TaskType
	MessageID      int64
	AssessmentID   int64
	ConversationID int64
	Summary        model.JourneySummary
	TraceID        *string
	Attempt        int
}
