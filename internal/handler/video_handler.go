package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/vidsage/vidsage/internal/pkg/errcode"
	"github.com/vidsage/vidsage/internal/pkg/response"
	"github.com/vidsage/vidsage/internal/service"
)

type VideoHandler struct {
	svc *service.Service
}

func NewVideoHandler(svc *service.Service) *VideoHandler {
	return &VideoHandler{svc: svc}
}

type loadVideoRequest struct {
	URL string `json:"url"`
}

// Load fetches a video transcript and opens a chat session over it.
func (h *VideoHandler) Load(c *gin.Context) {
	var req loadVideoRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.URL == "" {
		response.Error(c, errcode.ErrInvalid, "url is required")
		return
	}
	res, err := h.svc.LoadVideo(c.Request.Context(), callerID(c), req.URL)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, res)
}
