package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/vidsage/vidsage/internal/answer"
	"github.com/vidsage/vidsage/internal/pkg/errcode"
	"github.com/vidsage/vidsage/internal/pkg/response"
	"github.com/vidsage/vidsage/internal/service"
)

type SessionHandler struct {
	svc *service.Service
}

func NewSessionHandler(svc *service.Service) *SessionHandler {
	return &SessionHandler{svc: svc}
}

type askRequest struct {
	Question string `json:"question"`
}

type askResponse struct {
	Answer  string `json:"answer"`
	Sources []int  `json:"sources,omitempty"`
}

// Ask answers one question inside a session.
func (h *SessionHandler) Ask(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Question == "" {
		response.Error(c, errcode.ErrInvalid, "question is required")
		return
	}
	out, err := h.svc.Ask(c.Request.Context(), callerID(c), c.Param("id"), req.Question)
	if err != nil {
		handleError(c, err)
		return
	}
	switch v := out.(type) {
	case answer.Answered:
		response.Success(c, askResponse{Answer: v.Text, Sources: v.Sources})
	case answer.Refused:
		response.Error(c, errcode.ErrSecurityRejected, v.Reason)
	case answer.SystemNotReady:
		response.Error(c, errcode.ErrSystemNotReady, "load a video before asking questions")
	case answer.InternalError:
		response.Error(c, errcode.ErrUnknown, "internal error")
	default:
		response.Error(c, errcode.ErrUnknown, "internal error")
	}
}

// History returns the running chat transcript for a session.
func (h *SessionHandler) History(c *gin.Context) {
	turns, err := h.svc.History(c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"turns": turns})
}
