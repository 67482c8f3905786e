package model

import "time"

type Project struct {
	ID               int64    `json:"id,string"`
	AssessmentID     int64    `json:"assessment_id,string"`
	Title            string   `json:"title"`
	Description      string   `json:"description"`
	Status           string   `json:"status"`
	Priority         string   `json:"priority"`
	EstimatedSavings float64  `json:"estimated_savings"`
	ActualSavings    *float64 `json:"actual_savings,omitempty"`
	Progress         int      `json:"progress"`
}

// BacklogItem is a product backlog item (PBI) under a project.
type BacklogItem struct {
	ID          int64  `json:"id,string"`
	ProjectID   int64  `json:"project_id,string"`
	SprintID    *int64 `json:"sprint_id,omitempty,string"`
	Title       string `json:"title"`
	Status      string `json:"status"`
	Priority    string `json:"priority"`
	StoryPoints *int   `json:"story_points,omitempty"`
}

type Sprint struct {
	ID        int64      `json:"id,string"`
	ProjectID int64      `json:"project_id,string"`
	Name      string     `json:"name"`
	Status    string     `json:"status"`
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
}

type Risk struct {
	ID          int64  `json:"id,string"`
	ProjectID   int64  `json:"project_id,string"`
	Title       string `json:"title"`
	Severity    string `json:"severity"`
	Probability string `json:"probability"`
	Status      string `json:"status"`
}

// JourneyData is the journey workspace of one assessment.
type JourneyData struct {
	Projects     []Project
	BacklogItems []BacklogItem
	Sprints      []Sprint
	Risks        []Risk
}

// JourneySummary is the count-only view handed to the insight extractor.
type JourneySummary struct {
	Projects     int `json:"projects"`
	BacklogItems int `json:"backlog_items"`
	Sprints      int `json:"sprints"`
	Risks        int `json:"risks"`
}

func (j *JourneyData) Summary() JourneySummary {
	if j == nil {
		return JourneySummary{}
	}
	return JourneySummary{
		Projects:     len(j.Projects),
		BacklogItems: len(j.BacklogItems),
		Sprints:      len(j.Sprints),
		Risks:        len(j.Risks),
	}
}
