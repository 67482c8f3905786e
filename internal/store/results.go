package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/core/db"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/model"
)

type resultsStore struct {
	db db.DBTX
}

func newResultsStore(db db.DBTX) ResultsStore {
	return &resultsStore{db: db}
}

func (s *resultsStore) GetByAssessment(ctx context.Context, assessmentID int64) (*model.Results, error) {
	var r model.Results
	var scores, recs []byte
	err := s.db.QueryRow(ctx, `
		SELECT id, assessment_id, maturity_scores, overall_score, recommendations, created_at
		FROM assessment_results
		WHERE assessment_id = $1`, assessmentID).
		Scan(&r.ID, &r.AssessmentID, &scores, &r.OverallScore, &recs, &r.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}

	if err := json.Unmarshal(scores, &r.MaturityScores); err != nil {
		return nil, fmt.Errorf("decoding maturity scores: %w", err)
	}
	if err := json.Unmarshal(recs, &r.Recommendations); err != nil {
		return nil, fmt.Errorf("decoding recommendations: %w", err)
	}
	return &r, nil
}
