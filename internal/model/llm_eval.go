package model

import (
	"encoding/json"
	"time"
)

const LLMEvalStageInsightExtraction = "insight_extraction"

// LLMEval records one structured LLM call for offline evaluation.
type LLMEval struct {
	ID            int64           `json:"id,string"`
	MessageID     *int64          `json:"message_id,omitempty,string"`
	Stage         string          `json:"stage"`
	InputText     string          `json:"input_text"`
	OutputJSON    json.RawMessage `json:"output_json,omitempty"`
	Model         string          `json:"model"`
	PromptVersion string          `json:"prompt_version"`
	LatencyMs     int             `json:"latency_ms"`
	PromptTokens  int             `json:"prompt_tokens"`
	OutputTokens  int             `json:"output_tokens"`
	Error         *string         `json:"error,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}
