package brain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/common/id"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/common/llm"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/common/logger"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/metrics"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/model"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/store"
)

var (
	ErrEmptyMessage         = errors.New("message is required")
	ErrAssessmentNotFound   = errors.New("assessment not found")
	ErrResultsNotFound      = errors.New("assessment results not found")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrForbidden            = errors.New("not allowed to access this assessment")
	ErrLLMNotConfigured     = errors.New("AI service not configured")
)

const titleMaxRunes = 60

// ChatRequest is one user turn. ConversationID nil starts a new conversation.
type ChatRequest struct {
	AssessmentID   int64
	ConversationID *int64
	Message        string
	UserID         *string
	Context        model.ContextType
}

// PipelineStores are the stores the chat pipeline reads and appends to.
type PipelineStores struct {
	Assessments   store.AssessmentStore
	Results       store.ResultsStore
	Journey       store.JourneyStore
	Conversations store.ConversationStore
	Messages      store.MessageStore
}

type ChatPipeline struct {
	stores     PipelineStores
	llm        llm.Client
	extractor  *InsightExtractor
	dispatcher InsightDispatcher
	metrics    *metrics.Metrics
	maxTokens  int
}

type PipelineOption func(*ChatPipeline)

func WithPipelineMetrics(m *metrics.Metrics) PipelineOption {
	return func(p *ChatPipeline) { p.metrics = m }
}

func WithMaxTokens(n int) PipelineOption {
	return func(p *ChatPipeline) { p.maxTokens = n }
}

// NewChatPipeline wires the pipeline. client may be nil when no API key is
// configured; every request then fails with ErrLLMNotConfigured. extractor
// and dispatcher may be nil to disable insight extraction.
func NewChatPipeline(stores PipelineStores, client llm.Client, extractor *InsightExtractor, dispatcher InsightDispatcher, opts ...PipelineOption) *ChatPipeline {
	p := &ChatPipeline{
		stores:     stores,
		llm:        client,
		extractor:  extractor,
		dispatcher: dispatcher,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Turn is a prepared chat turn: context loaded, conversation resolved and the
// user message persisted. Stream completes it.
type Turn struct {
	Conversation *model.Conversation
	UserMessage  *model.Message
	Created      bool

	req     ChatRequest
	input   PromptInput
	history []model.Message
}

// Prepare runs every step that can fail with a plain error response. Nothing
// is written unless the assessment and its results exist.
func (p *ChatPipeline) Prepare(ctx context.Context, req ChatRequest) (*Turn, error) {
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		return nil, ErrEmptyMessage
	}
	if p.llm == nil {
		return nil, ErrLLMNotConfigured
	}
	if req.Context == "" {
		req.Context = model.ContextGeneral
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		AssessmentID: logger.Ptr(req.AssessmentID),
		Component:    "advisor.brain.pipeline",
	})

	input, err := p.loadContext(ctx, req)
	if err != nil {
		return nil, err
	}

	conv, created, err := p.resolveConversation(ctx, req)
	if err != nil {
		return nil, err
	}

	var history []model.Message
	if !created {
		history, err = p.stores.Messages.ListByConversation(ctx, conv.ID)
		if err != nil {
			return nil, fmt.Errorf("loading history: %w", err)
		}
	}

	userMsg := &model.Message{
		ID:             id.New(),
		ConversationID: conv.ID,
		Role:           model.RoleUser,
		Content:        req.Message,
	}
	if err := p.stores.Messages.Create(ctx, userMsg); err != nil {
		return nil, fmt.Errorf("persisting user message: %w", err)
	}

	slog.InfoContext(ctx, "chat turn prepared",
		"conversation_id", conv.ID,
		"new_conversation", created,
		"history_len", len(history),
		"context_type", req.Context)

	return &Turn{
		Conversation: conv,
		UserMessage:  userMsg,
		Created:      created,
		req:          req,
		input:        input,
		history:      history,
	}, nil
}

func (p *ChatPipeline) loadContext(ctx context.Context, req ChatRequest) (PromptInput, error) {
	assessment, err := p.stores.Assessments.GetByID(ctx, req.AssessmentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return PromptInput{}, ErrAssessmentNotFound
		}
		return PromptInput{}, fmt.Errorf("loading assessment: %w", err)
	}
	if !assessment.OwnedBy(req.UserID) {
		return PromptInput{}, ErrForbidden
	}

	results, err := p.stores.Results.GetByAssessment(ctx, req.AssessmentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return PromptInput{}, ErrResultsNotFound
		}
		return PromptInput{}, fmt.Errorf("loading results: %w", err)
	}

	in := PromptInput{Assessment: assessment, Results: results}
	if req.Context == model.ContextJourney {
		journey, err := p.loadJourney(ctx, req.AssessmentID)
		if err != nil {
			return PromptInput{}, err
		}
		in.Journey = journey
	}
	return in, nil
}

func (p *ChatPipeline) loadJourney(ctx context.Context, assessmentID int64) (*model.JourneyData, error) {
	var j model.JourneyData
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		j.Projects, err = p.stores.Journey.ListProjects(gctx, assessmentID)
		return err
	})
	g.Go(func() (err error) {
		j.BacklogItems, err = p.stores.Journey.ListBacklogItems(gctx, assessmentID)
		return err
	})
	g.Go(func() (err error) {
		j.Sprints, err = p.stores.Journey.ListSprints(gctx, assessmentID)
		return err
	})
	g.Go(func() (err error) {
		j.Risks, err = p.stores.Journey.ListRisks(gctx, assessmentID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("loading journey: %w", err)
	}
	return &j, nil
}

func (p *ChatPipeline) resolveConversation(ctx context.Context, req ChatRequest) (*model.Conversation, bool, error) {
	if req.ConversationID != nil {
		conv, err := p.stores.Conversations.GetByID(ctx, *req.ConversationID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, false, ErrConversationNotFound
			}
			return nil, false, fmt.Errorf("loading conversation: %w", err)
		}
		// Conversations of another assessment, context or owner are reported as missing.
		if conv.AssessmentID != req.AssessmentID || conv.ContextType != req.Context {
			return nil, false, ErrConversationNotFound
		}
		if !conv.VisibleTo(req.UserID) {
			return nil, false, ErrConversationNotFound
		}
		return conv, false, nil
	}

	conv := &model.Conversation{
		ID:           id.New(),
		AssessmentID: req.AssessmentID,
		UserID:       req.UserID,
		ContextType:  req.Context,
		Title:        ConversationTitle(req.Message),
	}
	if err := p.stores.Conversations.Create(ctx, conv); err != nil {
		return nil, false, fmt.Errorf("creating conversation: %w", err)
	}
	return conv, true, nil
}

// ConversationTitle derives a title from the first message.
func ConversationTitle(message string) string {
	title := strings.Join(strings.Fields(message), " ")
	if utf8.RuneCountInString(title) <= titleMaxRunes {
		return title
	}
	runes := []rune(title)
	return strings.TrimSpace(string(runes[:titleMaxRunes-3])) + "..."
}

// Stream generates the assistant reply for a prepared turn and writes every
// event to sink. It always ends with exactly one done or error event, unless
// the sink itself is gone.
func (p *ChatPipeline) Stream(ctx context.Context, turn *Turn, sink EventSink) {
	start := time.Now()
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		AssessmentID:   logger.Ptr(turn.req.AssessmentID),
		ConversationID: logger.Ptr(turn.Conversation.ID),
		Component:      "advisor.brain.pipeline",
	})
	variant := string(turn.req.Context)
	strategy := StrategyFor(turn.req.Context)

	// Persistence after the stream must survive a client disconnect.
	persistCtx := context.WithoutCancel(ctx)

	if err := sink.Send(ctx, Event{Type: EventConversationID, ConversationID: turn.Conversation.ID}); err != nil {
		slog.WarnContext(ctx, "client gone before stream start", "error", err)
		return
	}

	sc := logger.StartSpan(ctx, "brain.pipeline.stream")
	resp, streamErr := p.llm.Stream(sc.Context(), llm.StreamRequest{
		SystemPrompt: BuildSystemPrompt(turn.input),
		Messages:     buildTurns(turn.history, turn.req.Message),
		MaxTokens:    p.maxTokens,
	}, func(delta string) error {
		return sink.Send(ctx, Event{Type: EventText, Content: delta})
	})
	sc.RecordError(streamErr)
	sc.End()

	if resp == nil {
		resp = &llm.Response{}
	}
	p.metrics.RecordTokens(p.llm.Model(), "chat", resp.PromptTokens, resp.CompletionTokens)

	messageID := p.persistAssistant(persistCtx, turn, resp)

	if streamErr != nil {
		slog.ErrorContext(ctx, "chat stream failed",
			"error", streamErr,
			"partial_len", len(resp.Content),
			"message_persisted", messageID != nil)
		p.metrics.RecordChatTurn(variant, "error", time.Since(start).Seconds())
		_ = sink.Send(persistCtx, Event{Type: EventError, Error: "Failed to generate response"})
		return
	}

	usage := Usage{InputTokens: resp.PromptTokens, OutputTokens: resp.CompletionTokens}
	summary := turn.input.Journey.Summary()

	switch {
	case p.extractor == nil:
		p.sendDone(ctx, sink, messageID, usage)
	case strategy == StrategyInline:
		_ = sink.Send(ctx, Event{Type: EventAnalyzing})
		meta := p.extractor.Annotate(persistCtx, p.stores.Messages, ExtractRequest{
			MessageID: messageID,
			Text:      resp.Content,
			Summary:   summary,
		})
		if len(meta.Insights) > 0 {
			_ = sink.Send(ctx, Event{Type: EventMetadata, Insights: meta.Insights})
		}
		p.sendDone(ctx, sink, messageID, usage)
	default:
		p.sendDone(ctx, sink, messageID, usage)
		p.dispatch(persistCtx, turn, messageID, resp.Content, summary)
	}

	p.metrics.RecordChatTurn(variant, "done", time.Since(start).Seconds())
	slog.InfoContext(ctx, "chat turn completed",
		"input_tokens", usage.InputTokens,
		"output_tokens", usage.OutputTokens,
		"strategy", strategy.String(),
		"duration_ms", time.Since(start).Milliseconds())
}

func (p *ChatPipeline) sendDone(ctx context.Context, sink EventSink, messageID *int64, usage Usage) {
	if err := sink.Send(ctx, Event{Type: EventDone, MessageID: messageID, Usage: usage}); err != nil {
		slog.WarnContext(ctx, "failed to send done event", "error", err)
	}
}

func (p *ChatPipeline) dispatch(ctx context.Context, turn *Turn, messageID *int64, text string, summary model.JourneySummary) {
	if p.dispatcher == nil {
		return
	}
	if messageID == nil {
		slog.WarnContext(ctx, "skipping insight extraction, assistant message not persisted")
		return
	}
	err := p.dispatcher.Dispatch(ctx, InsightJob{
		MessageID:      *messageID,
		AssessmentID:   turn.req.AssessmentID,
		ConversationID: turn.Conversation.ID,
		Text:           text,
		Summary:        summary,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to dispatch insight extraction", "error", err, "message_id", *messageID)
	}
}

// persistAssistant saves the full or partial reply. It returns nil when there
// is nothing to save or the write fails.
func (p *ChatPipeline) persistAssistant(ctx context.Context, turn *Turn, resp *llm.Response) *int64 {
	if strings.TrimSpace(resp.Content) == "" {
		return nil
	}
	msg := &model.Message{
		ID:             id.New(),
		ConversationID: turn.Conversation.ID,
		Role:           model.RoleAssistant,
		Content:        resp.Content,
		InputTokens:    resp.PromptTokens,
		OutputTokens:   resp.CompletionTokens,
		Model:          p.llm.Model(),
	}
	if err := p.stores.Messages.Create(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "failed to persist assistant message", "error", err)
		return nil
	}
	return &msg.ID
}

// buildTurns replays history in order and appends the new user turn.
// Consecutive turns of the same role, left by a failed earlier reply, are
// merged so roles alternate.
func buildTurns(history []model.Message, message string) []llm.Message {
	turns := make([]llm.Message, 0, len(history)+1)
	add := func(role, content string) {
		if n := len(turns); n > 0 && turns[n-1].Role == role {
			turns[n-1].Content += "\n\n" + content
			return
		}
		turns = append(turns, llm.Message{Role: role, Content: content})
	}
	for _, m := range history {
		add(string(m.Role), m.Content)
	}
	add(string(model.RoleUser), message)
	return turns
}
