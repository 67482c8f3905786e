package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields contains structured fields automatically added to all logs within a context.
// Handlers enrich the request context once and every slog.*Context call below them
// carries the assessment/conversation being worked on.
type LogFields struct {
	AssessmentID   *int64  // Assessment the request operates on
	ConversationID *int64  // Chat conversation
	MessageID      *int64  // Persisted chat message
	SessionID      *string // Wizard session identifier
	UserID         *string // Authenticated caller (Supabase subject)
	TaskID         *string // Redis stream message ID
	Component      string  // Component name (OTel semantic convention style, e.g., "advisor.brain.pipeline")
}

// WithLogFields enriches context with structured log fields.
// Multiple calls merge fields, with newer non-nil/non-empty values taking precedence.
// Context timeouts and cancellation are preserved.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	existing := GetLogFields(ctx)
	merged := mergeFields(existing, fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields retrieves log fields from context.
// Returns empty LogFields if none are set.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

func mergeFields(existing, new LogFields) LogFields {
	result := existing

	if new.AssessmentID != nil {
		result.AssessmentID = new.AssessmentID
	}
	if new.ConversationID != nil {
		result.ConversationID = new.ConversationID
	}
	if new.MessageID != nil {
		result.MessageID = new.MessageID
	}
	if new.SessionID != nil {
		result.SessionID = new.SessionID
	}
	if new.UserID != nil {
		result.UserID = new.UserID
	}
	if new.TaskID != nil {
		result.TaskID = new.TaskID
	}
	if new.Component != "" {
		result.Component = new.Component
	}

	return result
}

// Ptr is a helper to create a pointer from a value.
// Useful for setting LogFields inline: logger.WithLogFields(ctx, logger.LogFields{AssessmentID: logger.Ptr(id)})
func Ptr[T any](v T) *T {
	return &v
}

// Truncate truncates a string to maxLen bytes, appending "..." if truncated.
// Useful for logging potentially long strings like prompts or model output.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
