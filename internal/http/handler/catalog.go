package handler

import (
	"net/http"

	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/service"
	"github.com/gin-gonic/gin"
)

type CatalogHandler struct {
	catalog service.CatalogProvider
}

func NewCatalogHandler(catalog service.CatalogProvider) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

// Get returns the question catalog the wizard should render right now.
func (h *CatalogHandler) Get(c *gin.Context) {
	c.JSON(http.StatusOK, h.catalog.Current())
}
