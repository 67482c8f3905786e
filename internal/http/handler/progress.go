package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/common/logger"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/http/dto"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/progress"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/service"
	"github.com/gin-gonic/gin"
)

type ProgressHandler struct {
	progress service.ProgressService
}

func NewProgressHandler(progress service.ProgressService) *ProgressHandler {
	return &ProgressHandler{progress: progress}
}

func (h *ProgressHandler) Get(c *gin.Context) {
	sessionID := c.Param("session_id")
	ctx := logger.WithLogFields(c.Request.Context(), logger.LogFields{SessionID: &sessionID})

	snap, err := h.progress.Load(ctx, sessionID)
	if err != nil {
		switch {
		case errors.Is(err, progress.ErrInvalidSessionID):
			respondError(c, http.StatusBadRequest, "invalid session id")
		case errors.Is(err, progress.ErrNoSnapshot):
			respondError(c, http.StatusNotFound, "no saved progress")
		default:
			slog.ErrorContext(ctx, "failed to load progress", "error", err)
			respondError(c, http.StatusInternalServerError, "failed to load progress")
		}
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *ProgressHandler) Put(c *gin.Context) {
	sessionID := c.Param("session_id")
	ctx := logger.WithLogFields(c.Request.Context(), logger.LogFields{SessionID: &sessionID})

	var req dto.SaveProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	snap, err := h.progress.Save(ctx, sessionID, req.Answers, req.CurrentStep, req.FurthestStep)
	if err != nil {
		switch {
		case errors.Is(err, progress.ErrInvalidSessionID):
			respondError(c, http.StatusBadRequest, "invalid session id")
		case errors.Is(err, service.ErrInvalidProgress):
			respondError(c, http.StatusBadRequest, "invalid progress", err.Error())
		default:
			slog.ErrorContext(ctx, "failed to save progress", "error", err)
			respondError(c, http.StatusInternalServerError, "failed to save progress")
		}
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *ProgressHandler) Delete(c *gin.Context) {
	sessionID := c.Param("session_id")
	ctx := logger.WithLogFields(c.Request.Context(), logger.LogFields{SessionID: &sessionID})

	if err := h.progress.Delete(ctx, sessionID); err != nil {
		if errors.Is(err, progress.ErrInvalidSessionID) {
			respondError(c, http.StatusBadRequest, "invalid session id")
			return
		}
		slog.ErrorContext(ctx, "failed to delete progress", "error", err)
		respondError(c, http.StatusInternalServerError, "failed to delete progress")
		return
	}
	c.Status(http.StatusNoContent)
}
