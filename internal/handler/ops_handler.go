package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/vidsage/vidsage/internal/pkg/response"
	"github.com/vidsage/vidsage/internal/service"
)

// OpsHandler exposes operator actions: limiter introspection and cache
// invalidation.
type OpsHandler struct {
	svc *service.Service
}

func NewOpsHandler(svc *service.Service) *OpsHandler {
	return &OpsHandler{svc: svc}
}

func (h *OpsHandler) LimiterStats(c *gin.Context) {
	response.Success(c, h.svc.LimiterStats())
}

// InvalidateSource drops every cached artifact for one source key.
func (h *OpsHandler) InvalidateSource(c *gin.Context) {
	if err := h.svc.InvalidateSource(c.Request.Context(), c.Param("key")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"invalidated": c.Param("key")})
}

// InvalidateAll wipes all cache namespaces.
func (h *OpsHandler) InvalidateAll(c *gin.Context) {
	if err := h.svc.InvalidateAll(c.Request.Context()); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"invalidated": "all"})
}
