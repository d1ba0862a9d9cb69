package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vidsage/vidsage/internal/middleware"
)

type RouterDeps struct {
	Videos   *VideoHandler
	Sessions *SessionHandler
	Ops      *OpsHandler
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	// Loading a video is the expensive operation; throttle it harder than
	// questions, which the security gate budgets per caller anyway.
	api.POST("/videos/load", middleware.RateLimit(2*time.Second), deps.Videos.Load)

	api.POST("/sessions/:id/ask", deps.Sessions.Ask)
	api.GET("/sessions/:id/history", deps.Sessions.History)

	api.GET("/ops/limiter", deps.Ops.LimiterStats)
	api.DELETE("/ops/cache/:key", deps.Ops.InvalidateSource)
	api.DELETE("/ops/cache", deps.Ops.InvalidateAll)
}
