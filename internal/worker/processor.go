package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/brain"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/metrics"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/model"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/queue"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/store"
)

// InsightProcessor annotates a persisted assistant message with the insights
// found in its content.
type InsightProcessor struct {
	messages    store.MessageStore
	extractor   Extractor
	metrics     *metrics.Metrics
	maxAttempts int
	now         func() time.Time
}

func NewInsightProcessor(messages store.MessageStore, extractor Extractor, m *metrics.Metrics, maxAttempts int) *InsightProcessor {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &InsightProcessor{
		messages:    messages,
		extractor:   extractor,
		metrics:     m,
		maxAttempts: maxAttempts,
		now:         time.Now,
	}
}

func (p *InsightProcessor) Process(ctx context.Context, msg queue.Message) error {
	message, err := p.messages.GetByID(ctx, msg.MessageID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			slog.WarnContext(ctx, "message for insight task not found, skipping")
			return nil
		}
		return fmt.Errorf("loading message: %w", err)
	}

	if message.Role != model.RoleAssistant {
		slog.WarnContext(ctx, "insight task points at a non-assistant message, skipping",
			"role", message.Role)
		return nil
	}

	// Reclaimed tasks can arrive after a previous delivery already finished.
	if message.Metadata != nil && message.Metadata.InsightStatus != model.InsightStatusFailed {
		slog.InfoContext(ctx, "message already annotated, skipping",
			"insight_status", message.Metadata.InsightStatus)
		return nil
	}

	insights, extractErr := p.extractor.Extract(ctx, brain.ExtractRequest{
		MessageID: &message.ID,
		Text:      message.Content,
		Summary:   msg.Summary,
	})
	if extractErr != nil && msg.Attempt < p.maxAttempts {
		return fmt.Errorf("extracting insights: %w", extractErr)
	}
	if extractErr != nil {
		slog.WarnContext(ctx, "insight extraction failed on final attempt, recording failure",
			"error", extractErr,
			"attempt", msg.Attempt)
	}

	meta := brain.InsightMetadata(insights, extractErr, p.now())
	p.metrics.RecordInsightExtraction(string(meta.InsightStatus), len(meta.Insights))

	if err := p.messages.SetMetadata(ctx, message.ID, meta); err != nil {
		return fmt.Errorf("saving insight metadata: %w", err)
	}

	slog.InfoContext(ctx, "message annotated",
		"insight_status", meta.InsightStatus,
		"insight_count", len(meta.Insights))
	return nil
}
