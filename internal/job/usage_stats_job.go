package job

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/vidsage/vidsage/internal/ratelimit"
	"github.com/vidsage/vidsage/internal/session"
)

// UsageStatsJob periodically logs limiter utilization and live session
// count so quota pressure shows up in the logs before callers feel it.
type UsageStatsJob struct {
	limiter  *ratelimit.Limiter
	sessions *session.Manager
}

func NewUsageStatsJob(limiter *ratelimit.Limiter, sessions *session.Manager) *UsageStatsJob {
	return &UsageStatsJob{limiter: limiter, sessions: sessions}
}

func (j *UsageStatsJob) Name() string {
	return "usage_stats"
}

func (j *UsageStatsJob) Run(ctx context.Context) error {
	if j.limiter == nil {
		return nil
	}
	stats := j.limiter.Stats()
	fields := []zap.Field{
		zap.Int("window_requests", stats.CurrentRequests),
		zap.Int("window_tokens", stats.CurrentTokens),
		zap.Float64("request_utilization", stats.RequestUtilization),
		zap.Float64("token_utilization", stats.TokenUtilization),
		zap.Bool("backoff_active", stats.BackoffActive),
	}
	if j.sessions != nil {
		fields = append(fields, zap.Int("live_sessions", j.sessions.Len()))
	}
	logutil.GetLogger(ctx).Info("usage stats", fields...)
	return nil
}
