package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/common/logger"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/http/dto"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/http/middleware"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/service"
	"github.com/gin-gonic/gin"
)

type AssessmentHandler struct {
	assessments service.AssessmentService
}

func NewAssessmentHandler(assessments service.AssessmentService) *AssessmentHandler {
	return &AssessmentHandler{assessments: assessments}
}

// Submit persists a completed questionnaire.
func (h *AssessmentHandler) Submit(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.SubmitAssessmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	a, err := h.assessments.Submit(ctx, req.ToInput(middleware.GetUserID(ctx)))
	if err != nil {
		if errors.Is(err, service.ErrInvalidSubmission) {
			respondError(c, http.StatusBadRequest, "invalid submission", err.Error())
			return
		}
		slog.ErrorContext(ctx, "failed to submit assessment", "error", err)
		respondError(c, http.StatusInternalServerError, "failed to save assessment")
		return
	}

	c.JSON(http.StatusCreated, dto.SubmitAssessmentResponse{
		Success:      true,
		AssessmentID: a.ID,
	})
}

func (h *AssessmentHandler) Get(c *gin.Context) {
	assessmentID, ok := parseIDParam(c, "id")
	if !ok {
		respondError(c, http.StatusBadRequest, "invalid assessment id")
		return
	}
	ctx := logger.WithLogFields(c.Request.Context(), logger.LogFields{
		AssessmentID: &assessmentID,
	})

	detail, err := h.assessments.Get(ctx, assessmentID, middleware.GetUserID(ctx))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAssessmentNotFound):
			respondError(c, http.StatusNotFound, "assessment not found")
		case errors.Is(err, service.ErrForbidden):
			respondError(c, http.StatusForbidden, "forbidden")
		default:
			slog.ErrorContext(ctx, "failed to load assessment", "error", err)
			respondError(c, http.StatusInternalServerError, "failed to load assessment")
		}
		return
	}

	resp, err := dto.ToAssessmentResponse(detail)
	if err != nil {
		slog.ErrorContext(ctx, "failed to encode assessment responses", "error", err)
		respondError(c, http.StatusInternalServerError, "failed to load assessment")
		return
	}
	c.JSON(http.StatusOK, resp)
}
