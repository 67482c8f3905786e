package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/brain"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/http/handler"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/http/middleware"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/model"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/service"
)

var _ = Describe("ChatHandler", func() {
	var (
		router   *gin.Engine
		pipeline *mockChatPipeline
		history  *mockChatHistoryService
	)

	post := func(path string, body any) *httptest.ResponseRecorder {
		raw, _ := json.Marshal(body)
		req := httptest.NewRequest(http.MethodPost, path, bytes.NewBuffer(raw))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	BeforeEach(func() {
		router = gin.New()
		pipeline = &mockChatPipeline{}
		history = &mockChatHistoryService{}
		h := handler.NewChatHandler(pipeline, history)

		router.Use(func(c *gin.Context) {
			if user := c.GetHeader("X-Test-User"); user != "" {
				c.Request = c.Request.WithContext(middleware.WithUserID(c.Request.Context(), user))
			}
			c.Next()
		})
		router.POST("/assessments/:id/chat", h.GeneralChat)
		router.GET("/assessments/:id/chat/history", h.GeneralHistory)
		router.POST("/assessments/:id/journey/chat", h.JourneyChat)
		router.GET("/assessments/:id/journey/chat/history", h.JourneyHistory)
	})

	Describe("streaming", func() {
		It("relays pipeline events as SSE data frames", func() {
			messageID := int64(77)
			pipeline.streamFn = func(ctx context.Context, turn *brain.Turn, sink brain.EventSink) {
				Expect(sink.Send(ctx, brain.Event{Type: brain.EventConversationID, ConversationID: turn.Conversation.ID})).To(Succeed())
				Expect(sink.Send(ctx, brain.Event{Type: brain.EventText, Content: "Hello"})).To(Succeed())
				Expect(sink.Send(ctx, brain.Event{Type: brain.EventText, Content: " there"})).To(Succeed())
				Expect(sink.Send(ctx, brain.Event{Type: brain.EventDone, MessageID: &messageID, Usage: brain.Usage{InputTokens: 10, OutputTokens: 2}})).To(Succeed())
			}

			w := post("/assessments/7/chat", map[string]string{"message": "What next?"})

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Header().Get("Content-Type")).To(Equal("text/event-stream"))

			events := sseEvents(w.Body.String())
			Expect(events).To(HaveLen(4))
			Expect(events[0]).To(Equal(map[string]any{"type": "conversation_id", "conversation_id": "1"}))
			Expect(events[1]["content"]).To(Equal("Hello"))
			Expect(events[3]["type"]).To(Equal("done"))
			Expect(events[3]["message_id"]).To(Equal("77"))
			Expect(events[3]["usage"]).To(Equal(map[string]any{"input_tokens": float64(10), "output_tokens": float64(2)}))
		})

		It("builds the pipeline request from the route, body and caller", func() {
			w := post("/assessments/7/journey/chat", map[string]string{
				"message":         "Add a risk",
				"conversation_id": "12",
			})
			Expect(w.Code).To(Equal(http.StatusOK))

			Expect(pipeline.requests).To(HaveLen(1))
			req := pipeline.requests[0]
			Expect(req.AssessmentID).To(Equal(int64(7)))
			Expect(req.Context).To(Equal(model.ContextJourney))
			Expect(req.Message).To(Equal("Add a risk"))
			Expect(*req.ConversationID).To(Equal(int64(12)))
			Expect(req.UserID).To(BeNil())
		})

		It("forwards the authenticated caller", func() {
			raw, _ := json.Marshal(map[string]string{"message": "hi"})
			req := httptest.NewRequest(http.MethodPost, "/assessments/7/chat", bytes.NewBuffer(raw))
			req.Header.Set("X-Test-User", "user-1")
			router.ServeHTTP(httptest.NewRecorder(), req)

			Expect(pipeline.requests).To(HaveLen(1))
			Expect(*pipeline.requests[0].UserID).To(Equal("user-1"))
			Expect(pipeline.requests[0].Context).To(Equal(model.ContextGeneral))
		})

		It("stops sending once the request context is done", func() {
			var sendErr error
			pipeline.streamFn = func(ctx context.Context, turn *brain.Turn, sink brain.EventSink) {
				cctx, cancel := context.WithCancel(ctx)
				cancel()
				sendErr = sink.Send(cctx, brain.Event{Type: brain.EventText, Content: "late"})
			}

			w := post("/assessments/7/chat", map[string]string{"message": "hi"})
			Expect(sendErr).To(MatchError(context.Canceled))
			Expect(sseEvents(w.Body.String())).To(BeEmpty())
		})
	})

	Describe("errors before the stream", func() {
		DescribeTable("map pipeline errors to JSON statuses",
			func(err error, status int, message string) {
				pipeline.prepareFn = func(ctx context.Context, req brain.ChatRequest) (*brain.Turn, error) {
					return nil, err
				}

				w := post("/assessments/7/chat", map[string]string{"message": "hi"})

				Expect(w.Code).To(Equal(status))
				Expect(w.Header().Get("Content-Type")).To(ContainSubstring("application/json"))
				var resp map[string]any
				Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
				Expect(resp["error"]).To(Equal(message))
			},
			Entry("empty message", brain.ErrEmptyMessage, http.StatusBadRequest, "message is required"),
			Entry("missing assessment", brain.ErrAssessmentNotFound, http.StatusNotFound, "assessment not found"),
			Entry("missing results", brain.ErrResultsNotFound, http.StatusNotFound, "assessment results not found"),
			Entry("foreign conversation", brain.ErrConversationNotFound, http.StatusNotFound, "conversation not found"),
			Entry("not the owner", brain.ErrForbidden, http.StatusForbidden, "forbidden"),
			Entry("no API key", brain.ErrLLMNotConfigured, http.StatusInternalServerError, "AI service not configured"),
			Entry("unexpected", errors.New("db down"), http.StatusInternalServerError, "failed to start chat"),
		)

		It("rejects a non-numeric assessment id", func() {
			w := post("/assessments/abc/chat", map[string]string{"message": "hi"})
			Expect(w.Code).To(Equal(http.StatusBadRequest))
			Expect(pipeline.requests).To(BeEmpty())
		})

		It("rejects a malformed conversation id", func() {
			w := post("/assessments/7/chat", map[string]string{"message": "hi", "conversation_id": "x"})
			Expect(w.Code).To(Equal(http.StatusBadRequest))
			Expect(pipeline.requests).To(BeEmpty())
		})
	})

	Describe("history", func() {
		It("returns conversations with their messages", func() {
			now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
			history.listFn = func(ctx context.Context, assessmentID int64, contextType model.ContextType, userID *string) ([]model.Conversation, error) {
				Expect(assessmentID).To(Equal(int64(7)))
				Expect(contextType).To(Equal(model.ContextJourney))
				return []model.Conversation{{
					ID:        3,
					Title:     "Roadmap",
					CreatedAt: now,
					UpdatedAt: now,
					Messages: []model.Message{
						{ID: 4, Role: model.RoleUser, Content: "hi", CreatedAt: now},
						{ID: 5, Role: model.RoleAssistant, Content: "hello", CreatedAt: now, Metadata: &model.MessageMetadata{
							Insights:      []model.Insight{},
							InsightStatus: model.InsightStatusNone,
						}},
					},
				}}, nil
			}

			req := httptest.NewRequest(http.MethodGet, "/assessments/7/journey/chat/history", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusOK))
			var resp map[string]any
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp["success"]).To(BeTrue())
			convs := resp["conversations"].([]any)
			Expect(convs).To(HaveLen(1))
			conv := convs[0].(map[string]any)
			Expect(conv["id"]).To(Equal("3"))
			Expect(conv["title"]).To(Equal("Roadmap"))
			msgs := conv["messages"].([]any)
			Expect(msgs).To(HaveLen(2))
			Expect(msgs[1].(map[string]any)["metadata"]).To(HaveKeyWithValue("insight_status", "none"))
		})

		It("returns an empty list rather than null", func() {
			req := httptest.NewRequest(http.MethodGet, "/assessments/7/chat/history", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Body.String()).To(ContainSubstring(`"conversations":[]`))
		})

		It("returns 404 for an unknown assessment", func() {
			history.listFn = func(ctx context.Context, assessmentID int64, contextType model.ContextType, userID *string) ([]model.Conversation, error) {
				return nil, service.ErrAssessmentNotFound
			}

			req := httptest.NewRequest(http.MethodGet, "/assessments/7/chat/history", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusNotFound))
		})
	})
})
