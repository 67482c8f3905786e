package dto

import (
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/model"
)

type SaveProgressRequest struct {
	Answers      model.Answers `json:"answers"`
	CurrentStep  int           `json:"current_step" binding:"required,min=1"`
	FurthestStep int           `json:"furthest_step"`
}
