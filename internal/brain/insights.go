package brain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/common/id"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/common/llm"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/common/logger"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/metrics"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/model"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/store"
)

// MinInsightConfidence is the exclusive lower bound for surfacing an insight.
const MinInsightConfidence = 0.7

const insightsPromptVersion = "v3"

// ErrExtractionFailed covers every way the second model call can fail to
// produce a usable answer. Callers record it as insight_status=failed.
var ErrExtractionFailed = errors.New("insight extraction failed")

type InsightsResponse struct {
	Insights []InsightItem `json:"insights" jsonschema_description:"Suggestions explicitly stated in the message. Empty when there are none."`
}

type InsightItem struct {
	Type            string              `json:"type" jsonschema:"enum=project,enum=pbi,enum=user_story,enum=sprint,enum=risk,enum=new_project,enum=new_pbi,enum=new_user_story,enum=new_sprint,enum=new_risk"`
	Action          string              `json:"action" jsonschema:"enum=update,enum=create"`
	Confidence      float64             `json:"confidence" jsonschema_description:"How explicitly the message states this suggestion, 0.0-1.0"`
	SuggestedUpdate SuggestedUpdateItem `json:"suggestedUpdate"`
}

type SuggestedUpdateItem struct {
	EntityID       string `json:"entityId" jsonschema_description:"Id of the existing entity, empty for new entities or when unknown"`
	EntityName     string `json:"entityName"`
	Field          string `json:"field" jsonschema_description:"Field to change, e.g. status, priority, severity, title"`
	CurrentValue   string `json:"currentValue" jsonschema_description:"Current value if stated, otherwise empty"`
	SuggestedValue string `json:"suggestedValue"`
	Reason         string `json:"reason"`
}

var insightsSchema = llm.GenerateSchema[InsightsResponse]()

// ExtractRequest is the input of one extraction. MessageID is only used to
// link the eval record and may be nil.
type ExtractRequest struct {
	MessageID *int64
	Text      string
	Summary   model.JourneySummary
}

type InsightExtractor struct {
	llm      llm.Client
	evals    store.LLMEvalStore
	metrics  *metrics.Metrics
	attempts int
	backoff  time.Duration
}

type ExtractorOption func(*InsightExtractor)

// WithRetryBackoff sets the base delay between attempts. Delays double per attempt.
func WithRetryBackoff(d time.Duration) ExtractorOption {
	return func(e *InsightExtractor) { e.backoff = d }
}

func WithExtractorMetrics(m *metrics.Metrics) ExtractorOption {
	return func(e *InsightExtractor) { e.metrics = m }
}

func NewInsightExtractor(client llm.Client, evals store.LLMEvalStore, opts ...ExtractorOption) *InsightExtractor {
	e := &InsightExtractor{
		llm:      client,
		evals:    evals,
		attempts: 2,
		backoff:  time.Second,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract runs the extraction call over a finished assistant message. It
// never touches application state; the eval log is its only write.
func (e *InsightExtractor) Extract(ctx context.Context, req ExtractRequest) ([]model.Insight, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, nil
	}

	sc := logger.StartSpan(ctx, "brain.insights.extract")
	defer sc.End()
	ctx = sc.Context()

	prompt := buildInsightsPrompt(req)
	var raw json.RawMessage
	var llmResp *llm.Response
	var err error
	start := time.Now()

	for attempt := 0; attempt < e.attempts; attempt++ {
		raw = nil
		llmResp, err = e.llm.Chat(ctx, llm.Request{
			SystemPrompt: insightsSystemPrompt,
			UserPrompt:   prompt,
			SchemaName:   "insights_response",
			Schema:       insightsSchema,
			Temperature:  llm.Temp(0),
		}, &raw)
		if err == nil {
			break
		}
		if attempt == e.attempts-1 || !llm.IsRetryable(ctx, err) {
			break
		}
		slog.WarnContext(ctx, "insight extraction retry", "attempt", attempt+1, "error", err)
		select {
		case <-ctx.Done():
			err = ctx.Err()
		case <-time.After(e.backoff << attempt):
		}
		if ctx.Err() != nil {
			break
		}
	}

	latency := time.Since(start)
	if llmResp != nil {
		e.metrics.RecordTokens(e.llm.Model(), model.LLMEvalStageInsightExtraction, llmResp.PromptTokens, llmResp.CompletionTokens)
	}

	if err != nil {
		sc.RecordError(err)
		e.logEval(ctx, req.MessageID, prompt, raw, latency, llmResp, err)
		return nil, fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}

	insights, err := ParseInsights(ctx, string(raw))
	e.logEval(ctx, req.MessageID, prompt, raw, latency, llmResp, err)
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "insights extracted",
		"insight_count", len(insights),
		"latency_ms", latency.Milliseconds())
	return insights, nil
}

// Annotate runs Extract and attaches the outcome to the stored assistant
// message. It returns the metadata even when storing it fails.
func (e *InsightExtractor) Annotate(ctx context.Context, messages store.MessageStore, req ExtractRequest) *model.MessageMetadata {
	insights, err := e.Extract(ctx, req)
	if err != nil {
		slog.WarnContext(ctx, "insight extraction degraded to no insights", "error", err)
	}
	meta := InsightMetadata(insights, err, time.Now())
	e.metrics.RecordInsightExtraction(string(meta.InsightStatus), len(meta.Insights))

	if req.MessageID == nil {
		slog.WarnContext(ctx, "assistant message was not persisted, insights not attached")
		return meta
	}
	if err := messages.SetMetadata(ctx, *req.MessageID, meta); err != nil {
		slog.ErrorContext(ctx, "failed to attach insights to message", "error", err, "message_id", *req.MessageID)
	}
	return meta
}

// InsightMetadata maps an extraction outcome to message metadata. Failed and
// empty extractions both carry an empty insight list.
func InsightMetadata(insights []model.Insight, err error, now time.Time) *model.MessageMetadata {
	meta := &model.MessageMetadata{Insights: []model.Insight{}, ExtractedAt: now.UTC()}
	switch {
	case err != nil:
		meta.InsightStatus = model.InsightStatusFailed
	case len(insights) == 0:
		meta.InsightStatus = model.InsightStatusNone
	default:
		meta.InsightStatus = model.InsightStatusFound
		meta.Insights = insights
	}
	return meta
}

type rawInsight struct {
	Type            string         `json:"type"`
	Action          string         `json:"action"`
	Confidence      *float64       `json:"confidence"`
	SuggestedUpdate *rawSuggestion `json:"suggestedUpdate"`
}

type rawSuggestion struct {
	EntityID       json.RawMessage `json:"entityId"`
	EntityName     string          `json:"entityName"`
	Field          string          `json:"field"`
	CurrentValue   any             `json:"currentValue"`
	SuggestedValue any             `json:"suggestedValue"`
	Reason         string          `json:"reason"`
}

var errNoInsightsArray = errors.New("reply has no insights array")

func decodeInsightItems(body json.RawMessage) ([]rawInsight, error) {
	var items []rawInsight
	if bytes.HasPrefix(body, []byte("[")) {
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, err
		}
		return items, nil
	}

	var wrapper struct {
		Insights json.RawMessage `json:"insights"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil, err
	}
	if len(wrapper.Insights) == 0 {
		return nil, errNoInsightsArray
	}
	if err := json.Unmarshal(wrapper.Insights, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// ParseInsights decodes a model reply that is either a bare JSON array or an
// {"insights": [...]} object; the first JSON value in the reply with either
// shape is used and surrounding prose is ignored. A null insights array means
// nothing was found. Entries outside the closed type set, with missing fields
// or with confidence at or below MinInsightConfidence are dropped. When two
// entries target the same entity field the later one wins.
func ParseInsights(ctx context.Context, raw string) ([]model.Insight, error) {
	var (
		items    []rawInsight
		firstErr error
	)
	body := llm.FindJSON(raw, func(candidate json.RawMessage) bool {
		parsed, err := decodeInsightItems(candidate)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return false
		}
		items = parsed
		return true
	})
	if body == "" {
		if firstErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, firstErr)
		}
		return nil, fmt.Errorf("%w: no JSON in reply", ErrExtractionFailed)
	}

	out := make([]model.Insight, 0, len(items))
	seen := make(map[string]int)
	for i, item := range items {
		insight, ok := toInsight(item)
		if !ok {
			slog.DebugContext(ctx, "dropping insight", "index", i, "type", item.Type)
			continue
		}

		key := conflictKey(insight)
		if prev, dup := seen[key]; dup {
			slog.WarnContext(ctx, "conflicting insights for the same field, keeping the later one",
				"type", insight.Type,
				"entity", insight.SuggestedUpdate.EntityName,
				"field", insight.SuggestedUpdate.Field)
			out[prev] = insight
			continue
		}
		seen[key] = len(out)
		out = append(out, insight)
	}
	return out, nil
}

func toInsight(item rawInsight) (model.Insight, bool) {
	t := model.InsightType(strings.ToLower(strings.TrimSpace(item.Type)))
	if !t.Valid() || item.SuggestedUpdate == nil || item.Confidence == nil {
		return model.Insight{}, false
	}
	if *item.Confidence <= MinInsightConfidence {
		return model.Insight{}, false
	}

	action := model.InsightAction(strings.ToLower(strings.TrimSpace(item.Action)))
	switch {
	case t.IsCreate():
		action = model.InsightActionCreate
	case action != model.InsightActionUpdate && action != model.InsightActionCreate:
		return model.Insight{}, false
	}

	s := item.SuggestedUpdate
	if strings.TrimSpace(s.EntityName) == "" || strings.TrimSpace(s.Field) == "" || isBlank(s.SuggestedValue) {
		return model.Insight{}, false
	}

	return model.Insight{
		Type:       t,
		Action:     action,
		Confidence: *item.Confidence,
		SuggestedUpdate: model.SuggestedUpdate{
			EntityID:       entityID(s.EntityID),
			EntityName:     strings.TrimSpace(s.EntityName),
			Field:          strings.TrimSpace(s.Field),
			CurrentValue:   blankToNil(s.CurrentValue),
			SuggestedValue: s.SuggestedValue,
			Reason:         strings.TrimSpace(s.Reason),
		},
	}, true
}

// entityID accepts a string or number and treats null and "" as absent.
func entityID(raw json.RawMessage) *string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s = strings.TrimSpace(s); s == "" {
			return nil
		}
		return &s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		v := n.String()
		return &v
	}
	return nil
}

func conflictKey(in model.Insight) string {
	entity := strings.ToLower(in.SuggestedUpdate.EntityName)
	if in.SuggestedUpdate.EntityID != nil {
		entity = *in.SuggestedUpdate.EntityID
	}
	return string(in.Type) + "\x00" + entity + "\x00" + strings.ToLower(in.SuggestedUpdate.Field)
}

func isBlank(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	}
	return false
}

func blankToNil(v any) any {
	if isBlank(v) {
		return nil
	}
	return v
}

func (e *InsightExtractor) logEval(ctx context.Context, messageID *int64, prompt string, output json.RawMessage, latency time.Duration, llmResp *llm.Response, callErr error) {
	if e.evals == nil {
		return
	}

	eval := &model.LLMEval{
		ID:            id.New(),
		MessageID:     messageID,
		Stage:         model.LLMEvalStageInsightExtraction,
		InputText:     prompt,
		Model:         e.llm.Model(),
		PromptVersion: insightsPromptVersion,
		LatencyMs:     int(latency.Milliseconds()),
	}
	if len(output) > 0 && json.Valid(output) {
		eval.OutputJSON = output
	}
	if llmResp != nil {
		eval.PromptTokens = llmResp.PromptTokens
		eval.OutputTokens = llmResp.CompletionTokens
	}
	if callErr != nil {
		msg := callErr.Error()
		eval.Error = &msg
	}

	if err := e.evals.Create(ctx, eval); err != nil {
		slog.ErrorContext(ctx, "failed to log eval", "error", err)
	}
}

func buildInsightsPrompt(req ExtractRequest) string {
	var sb strings.Builder
	sb.WriteString("## Current journey\n")
	fmt.Fprintf(&sb, "- Projects: %d\n", req.Summary.Projects)
	fmt.Fprintf(&sb, "- Backlog items: %d\n", req.Summary.BacklogItems)
	fmt.Fprintf(&sb, "- Sprints: %d\n", req.Summary.Sprints)
	fmt.Fprintf(&sb, "- Risks: %d\n", req.Summary.Risks)
	sb.WriteString("\n## Assistant message\n")
	sb.WriteString(req.Text)
	return sb.String()
}

const insightsSystemPrompt = `You read one message written by a transformation advisor and list the project-management changes it explicitly recommends.

Return {"insights": [...]}. Each insight has:
- type: project, pbi, user_story, sprint, risk for changes to existing work; new_project, new_pbi, new_user_story, new_sprint, new_risk for new work
- action: "update" for existing entities, "create" for new_* types
- confidence: 0.0-1.0, how explicitly and concretely the message states the change
- suggestedUpdate: entityId (empty if unknown), entityName, field, currentValue (empty if not stated), suggestedValue, reason

## Examples

Message: "Given the delays, mark Project X as in_progress and raise its priority to high."
Insights:
- project "Project X", field status, suggestedValue in_progress, confidence 0.95
- project "Project X", field priority, suggestedValue high, confidence 0.9

Message: "Consider adding a risk for vendor lock-in on the ERP migration, severity high."
Insights:
- new_risk "Vendor lock-in on ERP migration", field severity, suggestedValue high, confidence 0.85

Message: "Your cloud adoption looks healthy. Keep focusing on data quality."
Insights: none

## Rules

- Only extract changes the message states explicitly. Do not infer or invent suggestions.
- General advice, questions and observations are not insights.
- Use the entity names exactly as written in the message.
- When nothing qualifies return {"insights": []}.`
