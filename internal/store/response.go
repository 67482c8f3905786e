package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/core/db"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/model"
)

type responseStore struct {
	db db.DBTX
}

func newResponseStore(db db.DBTX) ResponseStore {
	return &responseStore{db: db}
}

const insertResponse = `
	INSERT INTO assessment_responses (id, assessment_id, step_number, question_key, question_text, answer_value)
	VALUES ($1, $2, $3, $4, $5, $6)`

// CreateBatch inserts all responses in one round trip. Run it inside a
// transaction together with the assessment insert.
func (s *responseStore) CreateBatch(ctx context.Context, responses []model.Response) error {
	if len(responses) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, r := range responses {
		value, err := model.MarshalAnswer(r.Answer)
		if err != nil {
			return fmt.Errorf("encoding answer %s: %w", r.QuestionKey, err)
		}
		batch.Queue(insertResponse, r.ID, r.AssessmentID, r.StepNumber, r.QuestionKey, r.QuestionText, []byte(value))
	}

	br := s.db.SendBatch(ctx, batch)
	defer br.Close()
	for _, r := range responses {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("inserting response %s: %w", r.QuestionKey, err)
		}
	}
	return br.Close()
}

func (s *responseStore) ListByAssessment(ctx context.Context, assessmentID int64) ([]model.Response, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, assessment_id, step_number, question_key, question_text, answer_value, created_at, updated_at
		FROM assessment_responses
		WHERE assessment_id = $1
		ORDER BY step_number, id`, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("listing responses: %w", err)
	}
	defer rows.Close()

	var out []model.Response
	for rows.Next() {
		var r model.Response
		var raw []byte
		if err := rows.Scan(&r.ID, &r.AssessmentID, &r.StepNumber, &r.QuestionKey, &r.QuestionText,
			&raw, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning response: %w", err)
		}
		if r.Answer, err = model.InferAnswer(raw); err != nil {
			return nil, fmt.Errorf("decoding answer %s: %w", r.QuestionKey, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
