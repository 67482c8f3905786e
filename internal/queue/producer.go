package queue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

type Producer interface {
	Enqueue(ctx context.Context, task Task) error
}

type redisProducer struct {
	client redis.Cmdable
	stream string
	logger *slog.Logger
}

func NewRedisProducer(client redis.Cmdable, stream string, logger *slog.Logger) Producer {
	if logger == nil {
		logger = slog.Default()
	}
	return &redisProducer{
		client: client,
		stream: stream,
		logger: logger,
	}
}

func (p *redisProducer) Enqueue(ctx context.Context, task Task) error {
	attempt := task.Attempt
	if attempt <= 0 {
		attempt = 1
	}
	taskType := task.TaskType
	if taskType == "" {
		taskType = TaskTypeInsightExtraction
	}

	msg := Message{
		TaskType:       taskType,
		MessageID:      task.MessageID,
		AssessmentID:   task.AssessmentID,
		ConversationID: task.ConversationID,
		Summary:        task.Summary,
	}
	if task.TraceID != nil {
		msg.TraceID = *task.TraceID
	}

	if err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: messageValues(msg, attempt),
	}).Err(); err != nil {
		return fmt.Errorf("enqueue task: %w", err)
	}

	p.logger.InfoContext(ctx, "enqueued insight task",
		"message_id", task.MessageID,
		"assessment_id", task.AssessmentID,
		"attempt", attempt)
	return nil
}
