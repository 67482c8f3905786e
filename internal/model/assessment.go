package model

import "time"

type AssessmentStatus string

const (
	AssessmentStatusInProgress   AssessmentStatus = "in_progress"
	AssessmentStatusCompleted    AssessmentStatus = "completed"
	AssessmentStatusProcessing   AssessmentStatus = "processing"
	AssessmentStatusResultsReady AssessmentStatus = "results_ready"
)

// Assessment is one submitted questionnaire. Only Status changes after creation.
type Assessment struct {
	ID              int64            `json:"id,string"`
	SessionID       string           `json:"session_id"`
	UserID          *string          `json:"user_id,omitempty"`
	CompanyName     string           `json:"company_name"`
	Industry        string           `json:"industry"`
	CompanySize     string           `json:"company_size"`
	Role            string           `json:"role"`
	ChangeReadiness int              `json:"change_readiness"`
	ContactName     string           `json:"contact_name,omitempty"`
	ContactEmail    string           `json:"contact_email,omitempty"`
	Status          AssessmentStatus `json:"status"`
	CompletedAt     *time.Time       `json:"completed_at,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// OwnedBy reports whether userID may act on the assessment. Ownerless
// assessments are open to anyone, including anonymous callers.
func (a *Assessment) OwnedBy(userID *string) bool {
	if a.UserID == nil {
		return true
	}
	return userID != nil && *userID == *a.UserID
}

// Response is one answered question. QuestionText is copied from the catalog
// at submission so later catalog edits never change history.
type Response struct {
	ID           int64     `json:"id,string"`
	AssessmentID int64     `json:"assessment_id,string"`
	StepNumber   int       `json:"step_number"`
	QuestionKey  string    `json:"question_key"`
	QuestionText string    `json:"question_text"`
	Answer       Answer    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Submission is what the wizard produces and the submission endpoint persists.
type Submission struct {
	Assessment Assessment
	Responses  []Response
}

type RecommendationTier string

const (
	TierQuickWin         RecommendationTier = "quick_win"
	TierStrategic        RecommendationTier = "strategic"
	TierTransformational RecommendationTier = "transformational"
)

type Recommendation struct {
	Title       string             `json:"title"`
	Tier        RecommendationTier `json:"tier"`
	Description string             `json:"description,omitempty"`
}

// Results are produced by the downstream generator and only read here.
type Results struct {
	ID              int64              `json:"id,string"`
	AssessmentID    int64              `json:"assessment_id,string"`
	MaturityScores  map[string]float64 `json:"maturity_scores"`
	OverallScore    float64            `json:"overall_score"`
	Recommendations []Recommendation   `json:"recommendations"`
	CreatedAt       time.Time          `json:"created_at"`
}

// TierCounts counts recommendations per tier.
func (r *Results) TierCounts() map[RecommendationTier]int {
	counts := map[RecommendationTier]int{}
	for _, rec := range r.Recommendations {
		counts[rec.Tier]++
	}
	return counts
}
