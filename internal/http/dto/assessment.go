package dto

import (
	"encoding/json"

	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/model"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/service"
)

type SubmitAssessmentRequest struct {
	Assessment AssessmentFields `json:"assessment" binding:"required"`
	Responses  []ResponseInput  `json:"responses"`
}

type AssessmentFields struct {
	SessionID       string `json:"session_id"`
	CompanyName     string `json:"company_name" binding:"required,max=255"`
	Industry        string `json:"industry"`
	CompanySize     string `json:"company_size"`
	Role            string `json:"role"`
	ChangeReadiness int    `json:"change_readiness"`
	ContactName     string `json:"contact_name" binding:"max=255"`
	ContactEmail    string `json:"contact_email" binding:"omitempty,email,max=255"`
}

type ResponseInput struct {
	StepNumber   int             `json:"step_number"`
	QuestionKey  string          `json:"question_key"`
	QuestionText string          `json:"question_text"`
	AnswerValue  json.RawMessage `json:"answer_value"`
}

func (r SubmitAssessmentRequest) ToInput(userID *string) service.SubmitInput {
	in := service.SubmitInput{
		SessionID: r.Assessment.SessionID,
		UserID:    userID,
		Assessment: service.AssessmentFields{
			CompanyName:     r.Assessment.CompanyName,
			Industry:        r.Assessment.Industry,
			CompanySize:     r.Assessment.CompanySize,
			Role:            r.Assessment.Role,
			ChangeReadiness: r.Assessment.ChangeReadiness,
			ContactName:     r.Assessment.ContactName,
			ContactEmail:    r.Assessment.ContactEmail,
		},
		Responses: make([]service.ResponseInput, len(r.Responses)),
	}
	for i, resp := range r.Responses {
		in.Responses[i] = service.ResponseInput{
			StepNumber:   resp.StepNumber,
			QuestionKey:  resp.QuestionKey,
			QuestionText: resp.QuestionText,
			AnswerValue:  resp.AnswerValue,
		}
	}
	return in
}

type SubmitAssessmentResponse struct {
	Success      bool  `json:"success"`
	AssessmentID int64 `json:"assessment_id,string"`
}

type ResponseItem struct {
	StepNumber   int             `json:"step_number"`
	QuestionKey  string          `json:"question_key"`
	QuestionText string          `json:"question_text"`
	AnswerValue  json.RawMessage `json:"answer_value"`
}

type AssessmentResponse struct {
	Success    bool              `json:"success"`
	Assessment *model.Assessment `json:"assessment"`
	Responses  []ResponseItem    `json:"responses"`
}

func ToAssessmentResponse(d *service.AssessmentDetail) (*AssessmentResponse, error) {
	resp := &AssessmentResponse{
		Success:    true,
		Assessment: d.Assessment,
		Responses:  make([]ResponseItem, 0, len(d.Responses)),
	}
	for _, r := range d.Responses {
		raw, err := model.MarshalAnswer(r.Answer)
		if err != nil {
			return nil, err
		}
		resp.Responses = append(resp.Responses, ResponseItem{
			StepNumber:   r.StepNumber,
			QuestionKey:  r.QuestionKey,
			QuestionText: r.QuestionText,
			AnswerValue:  raw,
		})
	}
	return resp, nil
}
