package store

import (
	"context"
	"fmt"

	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/core/db"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/model"
)

type llmEvalStore struct {
	db db.DBTX
}

func newLLMEvalStore(db db.DBTX) LLMEvalStore {
	return &llmEvalStore{db: db}
}

func (s *llmEvalStore) Create(ctx context.Context, eval *model.LLMEval) error {
	var output []byte
	if len(eval.OutputJSON) > 0 {
		output = eval.OutputJSON
	}
	err := s.db.QueryRow(ctx, `
		INSERT INTO llm_evals (id, message_id, stage, input_text, output_json, model, prompt_version,
			latency_ms, prompt_tokens, output_tokens, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at`,
		eval.ID, eval.MessageID, eval.Stage, eval.InputText, output, eval.Model, eval.PromptVersion,
		eval.LatencyMs, eval.PromptTokens, eval.OutputTokens, eval.Error).
		Scan(&eval.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting llm eval: %w", err)
	}
	return nil
}

func (s *llmEvalStore) ListByStage(ctx context.Context, stage string, limit int32) ([]model.LLMEval, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, message_id, stage, input_text, output_json, model, prompt_version,
			latency_ms, prompt_tokens, output_tokens, error, created_at
		FROM llm_evals
		WHERE stage = $1
		ORDER BY created_at DESC
		LIMIT $2`, stage, limit)
	if err != nil {
		return nil, fmt.Errorf("listing llm evals: %w", err)
	}
	defer rows.Close()

	var out []model.LLMEval
	for rows.Next() {
		var e model.LLMEval
		var output []byte
		if err := rows.Scan(&e.ID, &e.MessageID, &e.Stage, &e.InputText, &output, &e.Model, &e.PromptVersion,
			&e.LatencyMs, &e.PromptTokens, &e.OutputTokens, &e.Error, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning llm eval: %w", err)
		}
		e.OutputJSON = output
		out = append(out, e)
	}
	return out, rows.Err()
}
