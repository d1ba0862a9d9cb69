package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/vidsage/vidsage/internal/pkg/errcode"
	appErr "github.com/vidsage/vidsage/internal/pkg/errors"
	"github.com/vidsage/vidsage/internal/pkg/response"
)

// callerID identifies a caller for per-caller rate limiting.
func callerID(c *gin.Context) string {
	return c.ClientIP()
}

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	logutil.GetLogger(c.Request.Context()).Warn("request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err))
	switch {
	case errors.Is(err, appErr.ErrNotFound):
		response.Error(c, errcode.ErrNotFound, "not found")
	case errors.Is(err, appErr.ErrBadSourceURL):
		response.Error(c, errcode.ErrBadSourceURL, "invalid video url")
	case errors.Is(err, appErr.ErrNoTranscript):
		response.Error(c, errcode.ErrNoTranscript, "no transcript available for this video")
	case errors.Is(err, appErr.ErrSourceTooLarge):
		response.Error(c, errcode.ErrSourceTooLarge, "transcript exceeds the configured size limit")
	case errors.Is(err, appErr.ErrTooMany), errors.Is(err, appErr.ErrQuotaExceeded), errors.Is(err, appErr.ErrQuotaExhausted):
		response.Error(c, errcode.ErrTooMany, "too many requests, try again shortly")
	case errors.Is(err, appErr.ErrAIUnavailable):
		response.Error(c, errcode.ErrAIUnavailable, "ai backend unavailable")
	case errors.Is(err, appErr.ErrInvalid):
		response.Error(c, errcode.ErrInvalid, "invalid request")
	default:
		response.Error(c, errcode.ErrUnknown, "internal error")
	}
}
