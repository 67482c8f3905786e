package brain

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/common/logger"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/model"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/queue"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/store"
)

// InsightStrategy decides whether extraction finishes before the done event.
type InsightStrategy int

const (
	// StrategyInline extracts before done and streams the result as metadata.
	StrategyInline InsightStrategy = iota
	// StrategyDetached emits done first and hands extraction to a dispatcher.
	StrategyDetached
)

func (s InsightStrategy) String() string {
	if s == StrategyInline {
		return "inline"
	}
	return "detached"
}

// StrategyFor returns the extraction strategy of a conversation context.
// Journey chat extracts inline; general chat is detached.
func StrategyFor(ct model.ContextType) InsightStrategy {
	if ct == model.ContextJourney {
		return StrategyInline
	}
	return StrategyDetached
}

// InsightJob is a detached extraction over a persisted assistant message.
type InsightJob struct {
	MessageID      int64
	AssessmentID   int64
	ConversationID int64
	Text           string
	Summary        model.JourneySummary
}

type InsightDispatcher interface {
	Dispatch(ctx context.Context, job InsightJob) error
}

// GoroutineDispatcher runs each job in its own goroutine, detached from the
// request context. Errors are only logged.
type GoroutineDispatcher struct {
	extractor *InsightExtractor
	messages  store.MessageStore
	wg        sync.WaitGroup
}

func NewGoroutineDispatcher(extractor *InsightExtractor, messages store.MessageStore) *GoroutineDispatcher {
	return &GoroutineDispatcher{extractor: extractor, messages: messages}
}

func (d *GoroutineDispatcher) Dispatch(ctx context.Context, job InsightJob) error {
	ctx = logger.WithLogFields(context.WithoutCancel(ctx), logger.LogFields{
		MessageID: logger.Ptr(job.MessageID),
		Component: "advisor.brain.insights",
	})

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				slog.ErrorContext(ctx, "insight extraction panicked", "panic", r)
			}
		}()
		d.extractor.Annotate(ctx, d.messages, ExtractRequest{
			MessageID: &job.MessageID,
			Text:      job.Text,
			Summary:   job.Summary,
		})
	}()
	return nil
}

// Wait blocks until every dispatched job has finished.
func (d *GoroutineDispatcher) Wait() {
	d.wg.Wait()
}

// QueueDispatcher enqueues jobs for the insight worker.
type QueueDispatcher struct {
	producer queue.Producer
}

func NewQueueDispatcher(producer queue.Producer) *QueueDispatcher {
	return &QueueDispatcher{producer: producer}
}

func (d *QueueDispatcher) Dispatch(ctx context.Context, job InsightJob) error {
	task := queue.Task{
		TaskType:       queue.TaskTypeInsightExtraction,
		MessageID:      job.MessageID,
		AssessmentID:   job.AssessmentID,
		ConversationID: job.ConversationID,
		Summary:        job.Summary,
	}
	if traceID := logger.TraceIDFromContext(ctx); traceID != "" {
		task.TraceID = &traceID
	}
	if err := d.producer.Enqueue(ctx, task); err != nil {
		return fmt.Errorf("dispatching insight job: %w", err)
	}
	return nil
}
