package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/common/logger"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/brain"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/http/dto"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/http/middleware"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/model"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/service"
	"github.com/gin-gonic/gin"
)

// ChatPipeline is the part of brain.ChatPipeline the handler drives.
type ChatPipeline interface {
	Prepare(ctx context.Context, req brain.ChatRequest) (*brain.Turn, error)
	Stream(ctx context.Context, turn *brain.Turn, sink brain.EventSink)
}

type ChatHandler struct {
	pipeline ChatPipeline
	history  service.ChatHistoryService
}

func NewChatHandler(pipeline ChatPipeline, history service.ChatHistoryService) *ChatHandler {
	return &ChatHandler{pipeline: pipeline, history: history}
}

// GeneralChat streams an answer about the assessment results.
func (h *ChatHandler) GeneralChat(c *gin.Context) {
	h.chat(c, model.ContextGeneral)
}

// JourneyChat streams an answer grounded in the journey workspace and
// reports proposed changes before the stream ends.
func (h *ChatHandler) JourneyChat(c *gin.Context) {
	h.chat(c, model.ContextJourney)
}

func (h *ChatHandler) GeneralHistory(c *gin.Context) {
	h.listHistory(c, model.ContextGeneral)
}

func (h *ChatHandler) JourneyHistory(c *gin.Context) {
	h.listHistory(c, model.ContextJourney)
}

func (h *ChatHandler) chat(c *gin.Context, contextType model.ContextType) {
	assessmentID, ok := parseIDParam(c, "id")
	if !ok {
		respondError(c, http.StatusBadRequest, "invalid assessment id")
		return
	}
	ctx := logger.WithLogFields(c.Request.Context(), logger.LogFields{
		AssessmentID: &assessmentID,
		Component:    "advisor.http.chat",
	})

	var body dto.ChatRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	req := brain.ChatRequest{
		AssessmentID: assessmentID,
		Message:      body.Message,
		UserID:       middleware.GetUserID(ctx),
		Context:      contextType,
	}
	if body.ConversationID != nil && *body.ConversationID != "" {
		convID, err := strconv.ParseInt(*body.ConversationID, 10, 64)
		if err != nil {
			respondError(c, http.StatusBadRequest, "invalid conversation_id")
			return
		}
		req.ConversationID = &convID
	}

	turn, err := h.pipeline.Prepare(ctx, req)
	if err != nil {
		status, msg := chatErrorStatus(err)
		if status == http.StatusInternalServerError {
			slog.ErrorContext(ctx, "failed to prepare chat turn", "error", err)
		}
		respondError(c, status, msg)
		return
	}

	h.pipeline.Stream(ctx, turn, newSSESink(c))
}

func chatErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, brain.ErrEmptyMessage):
		return http.StatusBadRequest, "message is required"
	case errors.Is(err, brain.ErrAssessmentNotFound):
		return http.StatusNotFound, "assessment not found"
	case errors.Is(err, brain.ErrResultsNotFound):
		return http.StatusNotFound, "assessment results not found"
	case errors.Is(err, brain.ErrConversationNotFound):
		return http.StatusNotFound, "conversation not found"
	case errors.Is(err, brain.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, brain.ErrLLMNotConfigured):
		return http.StatusInternalServerError, "AI service not configured"
	default:
		return http.StatusInternalServerError, "failed to start chat"
	}
}

func (h *ChatHandler) listHistory(c *gin.Context, contextType model.ContextType) {
	assessmentID, ok := parseIDParam(c, "id")
	if !ok {
		respondError(c, http.StatusBadRequest, "invalid assessment id")
		return
	}
	ctx := logger.WithLogFields(c.Request.Context(), logger.LogFields{
		AssessmentID: &assessmentID,
	})

	conversations, err := h.history.List(ctx, assessmentID, contextType, middleware.GetUserID(ctx))
	if err != nil {
		if errors.Is(err, service.ErrAssessmentNotFound) {
			respondError(c, http.StatusNotFound, "assessment not found")
			return
		}
		slog.ErrorContext(ctx, "failed to list chat history", "error", err)
		respondError(c, http.StatusInternalServerError, "failed to load chat history")
		return
	}

	c.JSON(http.StatusOK, dto.ToChatHistoryResponse(conversations))
}
