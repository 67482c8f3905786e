package brain_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/common/llm"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/brain"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/model"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/store"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ChatPipeline", func() {
	const assessmentID = int64(1001)

	var (
		ctx           context.Context
		mockLLM       *mockLLMClient
		assessments   *mockAssessmentStore
		results       *mockResultsStore
		journey       *mockJourneyStore
		conversations *memConversationStore
		messages      *memMessageStore
		dispatcher    *mockDispatcher
		pipeline      *brain.ChatPipeline
		sink          *recordingSink
	)

	newPipeline := func(client llm.Client) *brain.ChatPipeline {
		extractor := brain.NewInsightExtractor(mockLLM, nil, brain.WithRetryBackoff(time.Millisecond))
		return brain.NewChatPipeline(brain.PipelineStores{
			Assessments:   assessments,
			Results:       results,
			Journey:       journey,
			Conversations: conversations,
			Messages:      messages,
		}, client, extractor, dispatcher)
	}

	BeforeEach(func() {
		ctx = context.Background()
		mockLLM = &mockLLMClient{}
		assessments = &mockAssessmentStore{getByIDFn: func(_ context.Context, id int64) (*model.Assessment, error) {
			return &model.Assessment{ID: id, CompanyName: "Acme Manufacturing", Industry: "manufacturing", ChangeReadiness: 4}, nil
		}}
		results = &mockResultsStore{getFn: func(_ context.Context, id int64) (*model.Results, error) {
			return &model.Results{AssessmentID: id, OverallScore: 2.5}, nil
		}}
		journey = &mockJourneyStore{
			projects: []model.Project{{ID: 1, Title: "Project X", Status: "planning"}},
			risks:    []model.Risk{{ID: 2, Title: "Vendor delay", Severity: "high", Status: "open"}},
		}
		conversations = newMemConversationStore()
		messages = newMemMessageStore()
		dispatcher = &mockDispatcher{}
		sink = &recordingSink{}
		pipeline = newPipeline(mockLLM)
	})

	Describe("Prepare", func() {
		It("rejects an empty message", func() {
			_, err := pipeline.Prepare(ctx, brain.ChatRequest{AssessmentID: assessmentID, Message: "   "})
			Expect(err).To(MatchError(brain.ErrEmptyMessage))
			Expect(conversations.count()).To(Equal(0))
		})

		It("fails when no model is configured", func() {
			pipeline = newPipeline(nil)
			_, err := pipeline.Prepare(ctx, brain.ChatRequest{AssessmentID: assessmentID, Message: "hi"})
			Expect(err).To(MatchError(brain.ErrLLMNotConfigured))
		})

		It("reports a blank message before a missing model", func() {
			pipeline = newPipeline(nil)
			_, err := pipeline.Prepare(ctx, brain.ChatRequest{AssessmentID: assessmentID, Message: "\t "})
			Expect(err).To(MatchError(brain.ErrEmptyMessage))
		})

		It("returns not found for a missing assessment", func() {
			assessments.getByIDFn = nil
			_, err := pipeline.Prepare(ctx, brain.ChatRequest{AssessmentID: assessmentID, Message: "hi"})
			Expect(err).To(MatchError(brain.ErrAssessmentNotFound))
		})

		It("creates no conversation when results are missing", func() {
			results.getFn = func(context.Context, int64) (*model.Results, error) {
				return nil, store.ErrNotFound
			}

			_, err := pipeline.Prepare(ctx, brain.ChatRequest{AssessmentID: assessmentID, Message: "What first?"})

			Expect(err).To(MatchError(brain.ErrResultsNotFound))
			Expect(conversations.count()).To(Equal(0))
			Expect(messages.all()).To(BeEmpty())
			Expect(mockLLM.streamCalls).To(BeEmpty())
		})

		It("forbids anonymous callers on an owned assessment", func() {
			owner := "user-1"
			assessments.getByIDFn = func(_ context.Context, id int64) (*model.Assessment, error) {
				return &model.Assessment{ID: id, UserID: &owner}, nil
			}

			_, err := pipeline.Prepare(ctx, brain.ChatRequest{AssessmentID: assessmentID, Message: "hi"})
			Expect(err).To(MatchError(brain.ErrForbidden))

			other := "user-2"
			_, err = pipeline.Prepare(ctx, brain.ChatRequest{AssessmentID: assessmentID, Message: "hi", UserID: &other})
			Expect(err).To(MatchError(brain.ErrForbidden))

			_, err = pipeline.Prepare(ctx, brain.ChatRequest{AssessmentID: assessmentID, Message: "hi", UserID: &owner})
			Expect(err).NotTo(HaveOccurred())
		})

		It("persists the user message in a new titled conversation", func() {
			turn, err := pipeline.Prepare(ctx, brain.ChatRequest{AssessmentID: assessmentID, Message: "  Where should we start?  "})

			Expect(err).NotTo(HaveOccurred())
			Expect(turn.Created).To(BeTrue())
			Expect(turn.Conversation.ContextType).To(Equal(model.ContextGeneral))
			Expect(turn.Conversation.Title).To(Equal("Where should we start?"))
			Expect(messages.all()).To(HaveLen(1))
			Expect(messages.all()[0].Role).To(Equal(model.RoleUser))
			Expect(messages.all()[0].Content).To(Equal("Where should we start?"))
		})

		It("does not reuse a conversation from the other context", func() {
			general, err := pipeline.Prepare(ctx, brain.ChatRequest{AssessmentID: assessmentID, Message: "hi"})
			Expect(err).NotTo(HaveOccurred())

			_, err = pipeline.Prepare(ctx, brain.ChatRequest{
				AssessmentID:   assessmentID,
				ConversationID: &general.Conversation.ID,
				Message:        "hi again",
				Context:        model.ContextJourney,
			})
			Expect(err).To(MatchError(brain.ErrConversationNotFound))
		})

		It("does not reuse a conversation of another assessment", func() {
			turn, err := pipeline.Prepare(ctx, brain.ChatRequest{AssessmentID: assessmentID, Message: "hi"})
			Expect(err).NotTo(HaveOccurred())

			_, err = pipeline.Prepare(ctx, brain.ChatRequest{
				AssessmentID:   assessmentID + 1,
				ConversationID: &turn.Conversation.ID,
				Message:        "hi again",
			})
			Expect(err).To(MatchError(brain.ErrConversationNotFound))
		})
	})

	Describe("Stream", func() {
		It("streams a general reply and detaches extraction", func() {
			mockLLM.streamFn = streamChunks(nil, "Start ", "with ERP.")

			turn, err := pipeline.Prepare(ctx, brain.ChatRequest{AssessmentID: assessmentID, Message: "Where should we start?"})
			Expect(err).NotTo(HaveOccurred())
			pipeline.Stream(ctx, turn, sink)

			Expect(sink.types()).To(Equal([]brain.EventType{
				brain.EventConversationID, brain.EventText, brain.EventText, brain.EventDone,
			}))
			Expect(sink.events[0].ConversationID).To(Equal(turn.Conversation.ID))

			stored := messages.all()
			Expect(stored).To(HaveLen(2))
			Expect(stored[0].Role).To(Equal(model.RoleUser))
			Expect(stored[1].Role).To(Equal(model.RoleAssistant))
			Expect(stored[1].Content).To(Equal("Start with ERP."))
			Expect(stored[1].Model).To(Equal("test-model"))
			Expect(stored[1].InputTokens).To(Equal(500))

			done := sink.last()
			Expect(done.MessageID).To(HaveValue(Equal(stored[1].ID)))
			Expect(done.Usage).To(Equal(brain.Usage{InputTokens: 500, OutputTokens: 2}))

			Expect(dispatcher.jobs).To(HaveLen(1))
			Expect(dispatcher.jobs[0].MessageID).To(Equal(stored[1].ID))
			Expect(dispatcher.jobs[0].Text).To(Equal("Start with ERP."))
			Expect(mockLLM.calls()).To(Equal(0))
		})

		It("builds the prompt from current context and replays history", func() {
			mockLLM.streamFn = streamChunks(nil, "First answer.")
			first, err := pipeline.Prepare(ctx, brain.ChatRequest{AssessmentID: assessmentID, Message: "First question"})
			Expect(err).NotTo(HaveOccurred())
			pipeline.Stream(ctx, first, sink)

			mockLLM.streamFn = streamChunks(nil, "Second answer.")
			second, err := pipeline.Prepare(ctx, brain.ChatRequest{
				AssessmentID:   assessmentID,
				ConversationID: &first.Conversation.ID,
				Message:        "Second question",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(second.Created).To(BeFalse())
			pipeline.Stream(ctx, second, &recordingSink{})

			Expect(mockLLM.streamCalls).To(HaveLen(2))
			req := mockLLM.streamCalls[1]
			Expect(req.SystemPrompt).To(ContainSubstring("Acme Manufacturing"))
			Expect(req.SystemPrompt).NotTo(ContainSubstring("Transformation Journey"))
			Expect(req.Messages).To(Equal([]llm.Message{
				{Role: "user", Content: "First question"},
				{Role: "assistant", Content: "First answer."},
				{Role: "user", Content: "Second question"},
			}))
			Expect(messages.all()).To(HaveLen(4))
		})

		It("extracts journey insights before done", func() {
			mockLLM.streamFn = streamChunks(nil, "Mark Project X as in_progress.")
			mockLLM.chatFn = replyJSON(projectXReply)

			turn, err := pipeline.Prepare(ctx, brain.ChatRequest{
				AssessmentID: assessmentID,
				Message:      "What next?",
				Context:      model.ContextJourney,
			})
			Expect(err).NotTo(HaveOccurred())
			pipeline.Stream(ctx, turn, sink)

			Expect(sink.types()).To(Equal([]brain.EventType{
				brain.EventConversationID, brain.EventText, brain.EventAnalyzing, brain.EventMetadata, brain.EventDone,
			}))
			Expect(sink.events[3].Insights).To(HaveLen(1))
			Expect(sink.events[3].Insights[0].SuggestedUpdate.EntityName).To(Equal("Project X"))

			Expect(mockLLM.streamCalls[0].SystemPrompt).To(ContainSubstring("Transformation Journey"))

			assistantID := *sink.last().MessageID
			meta := messages.metadataFor(assistantID)
			Expect(meta).NotTo(BeNil())
			Expect(meta.InsightStatus).To(Equal(model.InsightStatusFound))
			Expect(dispatcher.jobs).To(BeEmpty())
		})

		It("omits metadata when the journey reply has no insights", func() {
			mockLLM.streamFn = streamChunks(nil, "Things look on track.")
			mockLLM.chatFn = replyJSON(`{"insights": []}`)

			turn, err := pipeline.Prepare(ctx, brain.ChatRequest{AssessmentID: assessmentID, Message: "Status?", Context: model.ContextJourney})
			Expect(err).NotTo(HaveOccurred())
			pipeline.Stream(ctx, turn, sink)

			Expect(sink.types()).To(Equal([]brain.EventType{
				brain.EventConversationID, brain.EventText, brain.EventAnalyzing, brain.EventDone,
			}))
			meta := messages.metadataFor(*sink.last().MessageID)
			Expect(meta.InsightStatus).To(Equal(model.InsightStatusNone))
		})

		It("still completes when journey extraction fails", func() {
			mockLLM.streamFn = streamChunks(nil, "Mark Project X as in_progress.")
			mockLLM.chatFn = func(context.Context, llm.Request, any) (*llm.Response, error) {
				return nil, context.Canceled
			}

			turn, err := pipeline.Prepare(ctx, brain.ChatRequest{AssessmentID: assessmentID, Message: "Status?", Context: model.ContextJourney})
			Expect(err).NotTo(HaveOccurred())
			pipeline.Stream(ctx, turn, sink)

			Expect(sink.last().Type).To(Equal(brain.EventDone))
			meta := messages.metadataFor(*sink.last().MessageID)
			Expect(meta.InsightStatus).To(Equal(model.InsightStatusFailed))
		})

		It("ends with an error event after a mid-stream failure", func() {
			mockLLM.streamFn = streamChunks(errors.New("overloaded"), "one ", "two ", "three")

			turn, err := pipeline.Prepare(ctx, brain.ChatRequest{AssessmentID: assessmentID, Message: "Tell me more"})
			Expect(err).NotTo(HaveOccurred())
			pipeline.Stream(ctx, turn, sink)

			Expect(sink.types()).To(Equal([]brain.EventType{
				brain.EventConversationID, brain.EventText, brain.EventText, brain.EventText, brain.EventError,
			}))
			Expect(sink.last().Error).NotTo(BeEmpty())

			stored := messages.all()
			Expect(stored).To(HaveLen(2))
			Expect(stored[0].Role).To(Equal(model.RoleUser))
			Expect(stored[1].Content).To(Equal("one two three"))
			Expect(dispatcher.jobs).To(BeEmpty())
		})

		It("keeps the user message when the model fails before any text", func() {
			mockLLM.streamFn = streamChunks(errors.New("unauthorized"))

			turn, err := pipeline.Prepare(ctx, brain.ChatRequest{AssessmentID: assessmentID, Message: "Hello"})
			Expect(err).NotTo(HaveOccurred())
			pipeline.Stream(ctx, turn, sink)

			Expect(sink.types()).To(Equal([]brain.EventType{brain.EventConversationID, brain.EventError}))
			stored := messages.all()
			Expect(stored).To(HaveLen(1))
			Expect(stored[0].Role).To(Equal(model.RoleUser))
		})

		It("sends done with a null message id when saving the reply fails", func() {
			mockLLM.streamFn = streamChunks(nil, "Answer.")
			messages.createFn = func(m *model.Message) error {
				if m.Role == model.RoleAssistant {
					return errors.New("db down")
				}
				return nil
			}

			turn, err := pipeline.Prepare(ctx, brain.ChatRequest{AssessmentID: assessmentID, Message: "Hello"})
			Expect(err).NotTo(HaveOccurred())
			pipeline.Stream(ctx, turn, sink)

			done := sink.last()
			Expect(done.Type).To(Equal(brain.EventDone))
			Expect(done.MessageID).To(BeNil())
			Expect(dispatcher.jobs).To(BeEmpty())

			payload, err := json.Marshal(done)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(payload)).To(ContainSubstring(`"message_id":null`))
		})

		It("saves partial text when the client disconnects", func() {
			mockLLM.streamFn = streamChunks(nil, "one ", "two ", "three")
			sink.failAfter = 3

			turn, err := pipeline.Prepare(ctx, brain.ChatRequest{AssessmentID: assessmentID, Message: "Hello"})
			Expect(err).NotTo(HaveOccurred())
			pipeline.Stream(ctx, turn, sink)

			Expect(sink.events).To(HaveLen(3))
			stored := messages.all()
			Expect(stored).To(HaveLen(2))
			Expect(stored[1].Content).To(Equal("one two "))
		})
	})
})

var _ = Describe("ConversationTitle", func() {
	It("keeps short messages and collapses whitespace", func() {
		Expect(brain.ConversationTitle("How do we\n start?")).To(Equal("How do we start?"))
	})

	It("truncates long messages to 60 runes", func() {
		title := brain.ConversationTitle(strings.Repeat("é", 100))
		Expect([]rune(title)).To(HaveLen(60))
		Expect(title).To(HaveSuffix("..."))
	})
})

var _ = Describe("Event", func() {
	It("encodes only the fields of its type", func() {
		id := int64(42)
		Expect(mustJSON(brain.Event{Type: brain.EventText, Content: "hi"})).To(MatchJSON(`{"type":"text","content":"hi"}`))
		Expect(mustJSON(brain.Event{Type: brain.EventConversationID, ConversationID: 7})).To(MatchJSON(`{"type":"conversation_id","conversation_id":"7"}`))
		Expect(mustJSON(brain.Event{Type: brain.EventAnalyzing})).To(MatchJSON(`{"type":"analyzing"}`))
		Expect(mustJSON(brain.Event{Type: brain.EventDone, MessageID: &id, Usage: brain.Usage{InputTokens: 1, OutputTokens: 2}})).
			To(MatchJSON(`{"type":"done","message_id":"42","usage":{"input_tokens":1,"output_tokens":2}}`))
		Expect(mustJSON(brain.Event{Type: brain.EventError, Error: "boom"})).To(MatchJSON(`{"type":"error","error":"boom"}`))
	})

	It("marks done and error as terminal", func() {
		Expect(brain.EventDone.Terminal()).To(BeTrue())
		Expect(brain.EventError.Terminal()).To(BeTrue())
		Expect(brain.EventText.Terminal()).To(BeFalse())
	})
})
