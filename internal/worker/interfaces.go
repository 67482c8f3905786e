package worker

import (
	"context"

	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/brain"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/model"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/queue"
)

// Consumer abstracts the message queue for testability.
type Consumer interface {
	Read(ctx context.Context) ([]queue.Message, error)
	Ack(ctx context.Context, msg queue.Message) error
	Requeue(ctx context.Context, msg queue.Message, errMsg string) error
	SendDLQ(ctx context.Context, msg queue.Message, errMsg string) error
}

// TaskProcessor runs one queued task. A returned error requeues the task or,
// after the last attempt, moves it to the DLQ.
type TaskProcessor interface {
	Process(ctx context.Context, msg queue.Message) error
}

// Extractor abstracts the insight extractor for testability.
type Extractor interface {
	Extract(ctx context.Context, req brain.ExtractRequest) ([]model.Insight, error)
}

// ProcessFunc handles a reclaimed message end to end.
type ProcessFunc func(ctx context.Context, msg queue.Message) error
