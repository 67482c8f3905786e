package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/core/db"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/model"
)

type assessmentStore struct {
	db db.DBTX
}

func newAssessmentStore(db db.DBTX) AssessmentStore {
	return &assessmentStore{db: db}
}

const assessmentColumns = `id, session_id, user_id, company_name, industry, company_size, role,
	change_readiness, contact_name, contact_email, status, completed_at, created_at, updated_at`

func (s *assessmentStore) Create(ctx context.Context, a *model.Assessment) error {
	row := s.db.QueryRow(ctx, `
		INSERT INTO assessments (id, session_id, user_id, company_name, industry, company_size, role,
			change_readiness, contact_name, contact_email, status, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at`,
		a.ID, a.SessionID, a.UserID, a.CompanyName, a.Industry, a.CompanySize, a.Role,
		a.ChangeReadiness, a.ContactName, a.ContactEmail, string(a.Status), a.CompletedAt)
	if err := row.Scan(&a.CreatedAt, &a.UpdatedAt); err != nil {
		return fmt.Errorf("inserting assessment: %w", err)
	}
	return nil
}

func (s *assessmentStore) GetByID(ctx context.Context, id int64) (*model.Assessment, error) {
	row := s.db.QueryRow(ctx, `SELECT `+assessmentColumns+` FROM assessments WHERE id = $1`, id)
	a, err := scanAssessment(row)
	if err != nil {
		return nil, notFound(err)
	}
	return a, nil
}

func scanAssessment(row pgx.Row) (*model.Assessment, error) {
	var a model.Assessment
	var status string
	err := row.Scan(&a.ID, &a.SessionID, &a.UserID, &a.CompanyName, &a.Industry, &a.CompanySize, &a.Role,
		&a.ChangeReadiness, &a.ContactName, &a.ContactEmail, &status, &a.CompletedAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.Status = model.AssessmentStatus(status)
	return &a, nil
}
