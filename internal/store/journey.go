package store

import (
	"context"
	"fmt"

	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/core/db"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/model"
)

type journeyStore struct {
	db db.DBTX
}

func newJourneyStore(db db.DBTX) JourneyStore {
	return &journeyStore{db: db}
}

func (s *journeyStore) ListProjects(ctx context.Context, assessmentID int64) ([]model.Project, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, assessment_id, title, description, status, priority, estimated_savings, actual_savings, progress
		FROM journey_projects
		WHERE assessment_id = $1
		ORDER BY created_at, id`, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	defer rows.Close()

	var out []model.Project
	for rows.Next() {
		var p model.Project
		if err := rows.Scan(&p.ID, &p.AssessmentID, &p.Title, &p.Description, &p.Status, &p.Priority,
			&p.EstimatedSavings, &p.ActualSavings, &p.Progress); err != nil {
			return nil, fmt.Errorf("scanning project: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *journeyStore) ListBacklogItems(ctx context.Context, assessmentID int64) ([]model.BacklogItem, error) {
	rows, err := s.db.Query(ctx, `
		SELECT b.id, b.project_id, b.sprint_id, b.title, b.status, b.priority, b.story_points
		FROM journey_backlog_items b
		JOIN journey_projects p ON p.id = b.project_id
		WHERE p.assessment_id = $1
		ORDER BY b.id`, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("listing backlog items: %w", err)
	}
	defer rows.Close()

	var out []model.BacklogItem
	for rows.Next() {
		var b model.BacklogItem
		if err := rows.Scan(&b.ID, &b.ProjectID, &b.SprintID, &b.Title, &b.Status, &b.Priority, &b.StoryPoints); err != nil {
			return nil, fmt.Errorf("scanning backlog item: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *journeyStore) ListSprints(ctx context.Context, assessmentID int64) ([]model.Sprint, error) {
	rows, err := s.db.Query(ctx, `
		SELECT sp.id, sp.project_id, sp.name, sp.status, sp.start_date, sp.end_date
		FROM journey_sprints sp
		JOIN journey_projects p ON p.id = sp.project_id
		WHERE p.assessment_id = $1
		ORDER BY sp.start_date NULLS LAST, sp.id`, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("listing sprints: %w", err)
	}
	defer rows.Close()

	var out []model.Sprint
	for rows.Next() {
		var sp model.Sprint
		if err := rows.Scan(&sp.ID, &sp.ProjectID, &sp.Name, &sp.Status, &sp.StartDate, &sp.EndDate); err != nil {
			return nil, fmt.Errorf("scanning sprint: %w", err)
		}
		out = append(out, sp)
	}
	return out, rows.Err()
}

func (s *journeyStore) ListRisks(ctx context.Context, assessmentID int64) ([]model.Risk, error) {
	rows, err := s.db.Query(ctx, `
		SELECT r.id, r.project_id, r.title, r.severity, r.probability, r.status
		FROM journey_risks r
		JOIN journey_projects p ON p.id = r.project_id
		WHERE p.assessment_id = $1
		ORDER BY r.id`, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("listing risks: %w", err)
	}
	defer rows.Close()

	var out []model.Risk
	for rows.Next() {
		var r model.Risk
		if err := rows.Scan(&r.ID, &r.ProjectID, &r.Title, &r.Severity, &r.Probability, &r.Status); err != nil {
			return nil, fmt.Errorf("scanning risk: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
