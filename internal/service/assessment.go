package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/common/id"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/common/logger"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/catalog"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/metrics"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/model"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/progress"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/store"
)

const (
	defaultChangeReadiness = 3
	maxChangeReadiness     = 5
)

var (
	ErrInvalidSubmission  = errors.New("invalid submission")
	ErrAssessmentNotFound = errors.New("assessment not found")
	ErrForbidden          = errors.New("not allowed to access this assessment")
)

// CatalogProvider returns the question catalog in effect right now.
type CatalogProvider interface {
	Current() *catalog.Catalog
}

// SubmitInput is a completed questionnaire as posted by a client.
type SubmitInput struct {
	SessionID  string
	UserID     *string
	Assessment AssessmentFields
	Responses  []ResponseInput
}

type AssessmentFields struct {
	CompanyName     string
	Industry        string
	CompanySize     string
	Role            string
	ChangeReadiness int
	ContactName     string
	ContactEmail    string
}

type ResponseInput struct {
	StepNumber   int
	QuestionKey  string
	QuestionText string
	AnswerValue  json.RawMessage
}

// AssessmentDetail is an assessment with its responses in step order.
type AssessmentDetail struct {
	Assessment *model.Assessment
	Responses  []model.Response
}

type AssessmentService interface {
	Submit(ctx context.Context, in SubmitInput) (*model.Assessment, error)
	Get(ctx context.Context, assessmentID int64, userID *string) (*AssessmentDetail, error)
}

type assessmentService struct {
	txRunner    TxRunner
	assessments store.AssessmentStore
	responses   store.ResponseStore
	catalog     CatalogProvider
	progress    progress.Store
	metrics     *metrics.Metrics
}

// NewAssessmentService builds the submission service. progressStore may be nil.
func NewAssessmentService(
	txRunner TxRunner,
	assessments store.AssessmentStore,
	responses store.ResponseStore,
	catalog CatalogProvider,
	progressStore progress.Store,
	m *metrics.Metrics,
) AssessmentService {
	return &assessmentService{
		txRunner:    txRunner,
		assessments: assessments,
		responses:   responses,
		catalog:     catalog,
		progress:    progressStore,
		metrics:     m,
	}
}

// Submit persists one assessment and one response per answered question in a
// single transaction. Question text and step are taken from the current
// catalog for known keys, so history reflects what was asked at submit time.
func (s *assessmentService) Submit(ctx context.Context, in SubmitInput) (*model.Assessment, error) {
	now := time.Now().UTC()
	a, err := s.buildAssessment(in, now)
	if err != nil {
		s.metrics.RecordSubmission("invalid")
		return nil, err
	}
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		AssessmentID: logger.Ptr(a.ID),
		SessionID:    optionalString(in.SessionID),
		Component:    "advisor.service.assessment",
	})

	responses, err := s.resolveResponses(ctx, a.ID, in.Responses)
	if err != nil {
		s.metrics.RecordSubmission("invalid")
		return nil, err
	}

	err = s.txRunner.WithTx(ctx, func(stores StoreProvider) error {
		if err := stores.Assessments().Create(ctx, a); err != nil {
			return err
		}
		return stores.Responses().CreateBatch(ctx, responses)
	})
	if err != nil {
		s.metrics.RecordSubmission("error")
		return nil, fmt.Errorf("saving submission: %w", err)
	}
	s.metrics.RecordSubmission("created")

	// Progress is only cleared once the submission is durable.
	if s.progress != nil && in.SessionID != "" {
		if sid, err := progress.ParseSessionID(in.SessionID); err == nil {
			if err := s.progress.Delete(ctx, sid); err != nil {
				slog.WarnContext(ctx, "failed to clear saved progress", "error", err)
			}
		}
	}

	slog.InfoContext(ctx, "assessment submitted",
		"response_count", len(responses),
		"industry", a.Industry,
		"anonymous", a.UserID == nil)
	return a, nil
}

func (s *assessmentService) buildAssessment(in SubmitInput, now time.Time) (*model.Assessment, error) {
	f := in.Assessment
	if strings.TrimSpace(f.CompanyName) == "" {
		return nil, fmt.Errorf("%w: company_name is required", ErrInvalidSubmission)
	}
	if len(in.Responses) == 0 {
		return nil, fmt.Errorf("%w: at least one response is required", ErrInvalidSubmission)
	}
	readiness := f.ChangeReadiness
	if readiness < 1 || readiness > maxChangeReadiness {
		readiness = defaultChangeReadiness
	}

	return &model.Assessment{
		ID:              id.New(),
		SessionID:       strings.TrimSpace(in.SessionID),
		UserID:          in.UserID,
		CompanyName:     strings.TrimSpace(f.CompanyName),
		Industry:        strings.TrimSpace(f.Industry),
		CompanySize:     strings.TrimSpace(f.CompanySize),
		Role:            strings.TrimSpace(f.Role),
		ChangeReadiness: readiness,
		ContactName:     strings.TrimSpace(f.ContactName),
		ContactEmail:    strings.TrimSpace(f.ContactEmail),
		Status:          model.AssessmentStatusCompleted,
		CompletedAt:     &now,
	}, nil
}

func (s *assessmentService) resolveResponses(ctx context.Context, assessmentID int64, inputs []ResponseInput) ([]model.Response, error) {
	cat := s.catalog.Current()
	seen := make(map[string]bool, len(inputs))
	out := make([]model.Response, 0, len(inputs))

	for _, in := range inputs {
		key := strings.TrimSpace(in.QuestionKey)
		if key == "" {
			return nil, fmt.Errorf("%w: question_key is required", ErrInvalidSubmission)
		}
		if seen[key] {
			return nil, fmt.Errorf("%w: duplicate question_key %q", ErrInvalidSubmission, key)
		}
		seen[key] = true

		r := model.Response{
			ID:           id.New(),
			AssessmentID: assessmentID,
			StepNumber:   in.StepNumber,
			QuestionKey:  key,
			QuestionText: strings.TrimSpace(in.QuestionText),
		}

		var ans model.Answer
		var err error
		if q, ok := cat.Question(key); ok {
			r.QuestionText = q.Text
			r.StepNumber = cat.StepOf(key)
			ans, err = model.DecodeAnswer(q.AnswerKind(), in.AnswerValue)
		} else {
			slog.WarnContext(ctx, "response for question not in catalog", "question_key", key)
			ans, err = model.InferAnswer(in.AnswerValue)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: answer for %q: %v", ErrInvalidSubmission, key, err)
		}
		// Unanswered questions are not stored.
		if model.AnswerIsEmpty(ans) {
			continue
		}
		if r.QuestionText == "" {
			return nil, fmt.Errorf("%w: question_text is required for %q", ErrInvalidSubmission, key)
		}
		r.Answer = ans
		out = append(out, r)
	}
	return out, nil
}

func (s *assessmentService) Get(ctx context.Context, assessmentID int64, userID *string) (*AssessmentDetail, error) {
	a, err := s.assessments.GetByID(ctx, assessmentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrAssessmentNotFound
		}
		return nil, fmt.Errorf("loading assessment: %w", err)
	}
	if !a.OwnedBy(userID) {
		return nil, ErrForbidden
	}

	responses, err := s.responses.ListByAssessment(ctx, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("loading responses: %w", err)
	}
	return &AssessmentDetail{Assessment: a, Responses: responses}, nil
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
