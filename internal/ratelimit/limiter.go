package ratelimit

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	appErr "github.com/vidsage/vidsage/internal/pkg/errors"
)

const (
	window          = 60 * time.Second
	backoffDuration = 15 * time.Second
	maxQuotaRetries = 5
	estimateSample  = 2000
	minEstimate     = 50
	maxEstimate     = 4000
)

type tokenCoeff struct {
	base    int
	perChar float64
}

var tokenEstimates = map[string]tokenCoeff{
	"llama":   {base: 80, perChar: 0.3},
	"default": {base: 50, perChar: 0.25},
}

// EstimateTokens guesses the backend cost of a call carrying text. The
// result is always within [50, 4000], empty text included.
func EstimateTokens(text string, model string) int {
	if text == "" {
		return minEstimate
	}
	coeff := tokenEstimates["default"]
	if strings.Contains(strings.ToLower(model), "llama") {
		coeff = tokenEstimates["llama"]
	}
	estimated := coeff.base + int(float64(len(text))*coeff.perChar)
	if estimated < minEstimate {
		return minEstimate
	}
	if estimated > maxEstimate {
		return maxEstimate
	}
	return estimated
}

type tokenEntry struct {
	at     time.Time
	tokens int
}

type Config struct {
	MaxRequestsPerMinute int
	MaxTokensPerMinute   int
	MinDelay             time.Duration
	MaxDelay             time.Duration
}

// Limiter gates every outbound generation call behind a sliding one-minute
// request and token budget. One instance is shared process-wide; all window
// and backoff state is guarded by a single mutex, and every sleep happens
// outside of it so concurrent callers only serialize on the decision point.
type Limiter struct {
	mu           sync.Mutex
	maxRequests  int
	maxTokens    int
	minDelay     time.Duration
	maxDelay     time.Duration
	requestTimes []time.Time
	tokenUsage   []tokenEntry
	backoffUntil time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func New(cfg Config) *Limiter {
	if cfg.MaxRequestsPerMinute <= 0 {
		cfg.MaxRequestsPerMinute = 30
	}
	if cfg.MaxTokensPerMinute <= 0 {
		cfg.MaxTokensPerMinute = 6000
	}
	if cfg.MinDelay <= 0 {
		cfg.MinDelay = 500 * time.Millisecond
	}
	if cfg.MaxDelay <= cfg.MinDelay {
		cfg.MaxDelay = 3 * time.Second
	}
	return &Limiter{
		maxRequests: cfg.MaxRequestsPerMinute,
		maxTokens:   cfg.MaxTokensPerMinute,
		minDelay:    cfg.MinDelay,
		maxDelay:    cfg.MaxDelay,
		now:         time.Now,
		sleep:       sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// trimLocked drops window entries older than the 60s horizon. Both slices
// are insertion ordered, so this is a prefix trim.
func (l *Limiter) trimLocked(now time.Time) {
	cutoff := now.Add(-window)
	idx := 0
	for idx < len(l.requestTimes) && !l.requestTimes[idx].After(cutoff) {
		idx++
	}
	l.requestTimes = l.requestTimes[idx:]
	idx = 0
	for idx < len(l.tokenUsage) && !l.tokenUsage[idx].at.After(cutoff) {
		idx++
	}
	l.tokenUsage = l.tokenUsage[idx:]
}

func (l *Limiter) currentTokensLocked() int {
	total := 0
	for _, e := range l.tokenUsage {
		total += e.tokens
	}
	return total
}

// smartDelayLocked interpolates the pre-call pause between the configured
// floor and ceiling from current window pressure.
func (l *Limiter) smartDelayLocked(estimated int) time.Duration {
	curRequests := len(l.requestTimes)
	curTokens := l.currentTokensLocked()

	if float64(curRequests) >= float64(l.maxRequests)*0.9 {
		return l.maxDelay
	}
	if float64(curTokens+estimated) >= float64(l.maxTokens)*0.9 {
		return l.maxDelay
	}
	if float64(curRequests) < float64(l.maxRequests)*0.5 && float64(curTokens) < float64(l.maxTokens)*0.5 {
		return l.minDelay
	}
	requestRatio := float64(curRequests) / float64(l.maxRequests)
	tokenRatio := float64(curTokens) / float64(l.maxTokens)
	usageRatio := requestRatio
	if tokenRatio > usageRatio {
		usageRatio = tokenRatio
	}
	delay := l.minDelay + time.Duration(float64(l.maxDelay-l.minDelay)*usageRatio)
	if delay > l.maxDelay {
		delay = l.maxDelay
	}
	return delay
}

// Acquire admits one call of the given estimated cost, sleeping as the
// policy demands. On return the call has been recorded into both windows.
func (l *Limiter) Acquire(ctx context.Context, estimated int) error {
	for {
		l.mu.Lock()
		now := l.now()

		// Backoff from a previous quota rejection takes precedence over
		// window accounting.
		if now.Before(l.backoffUntil) {
			wait := l.backoffUntil.Sub(now)
			l.mu.Unlock()
			logutil.GetLogger(ctx).Warn("backoff active, waiting", zap.Duration("wait", wait))
			if err := l.sleep(ctx, wait); err != nil {
				return err
			}
			continue
		}

		l.trimLocked(now)

		// Hard waits: at the request cap, or the token budget would
		// overflow. Wait until the oldest entry exits the horizon.
		if len(l.requestTimes) >= l.maxRequests {
			wait := window - now.Sub(l.requestTimes[0])
			l.mu.Unlock()
			if wait > 0 {
				logutil.GetLogger(ctx).Warn("at request limit, waiting", zap.Duration("wait", wait))
				if err := l.sleep(ctx, wait); err != nil {
					return err
				}
			}
			continue
		}
		if curTokens := l.currentTokensLocked(); curTokens+estimated >= l.maxTokens && len(l.tokenUsage) > 0 {
			wait := window - now.Sub(l.tokenUsage[0].at)
			l.mu.Unlock()
			if wait > 0 {
				logutil.GetLogger(ctx).Warn("token budget exhausted, waiting", zap.Duration("wait", wait))
				if err := l.sleep(ctx, wait); err != nil {
					return err
				}
			}
			continue
		}

		// Soft adaptive delay relative to the previous admission.
		var wait time.Duration
		if len(l.requestTimes) > 0 {
			sinceLast := now.Sub(l.requestTimes[len(l.requestTimes)-1])
			if required := l.smartDelayLocked(estimated); sinceLast < required {
				wait = required - sinceLast
			}
		}
		l.requestTimes = append(l.requestTimes, now)
		l.tokenUsage = append(l.tokenUsage, tokenEntry{at: now, tokens: estimated})
		l.mu.Unlock()
		return l.sleep(ctx, wait)
	}
}

// Execute runs call through the admission policy, transparently recovering
// from quota rejections with a 15s backoff and full re-admission. Retries
// are capped; sustained throttling surfaces as ErrQuotaExhausted.
func (l *Limiter) Execute(ctx context.Context, model string, estimateText string, call func(ctx context.Context) (string, error)) (string, error) {
	if len(estimateText) > estimateSample {
		estimateText = estimateText[:estimateSample]
	}
	estimated := EstimateTokens(estimateText, model)

	for attempt := 0; attempt <= maxQuotaRetries; attempt++ {
		if err := l.Acquire(ctx, estimated); err != nil {
			return "", err
		}
		res, err := call(ctx)
		if err == nil {
			return res, nil
		}
		if !appErr.IsQuotaExceeded(err) {
			return "", err
		}
		l.noteQuotaRejection()
		logutil.GetLogger(ctx).Warn("quota rejection, backing off",
			zap.Int("attempt", attempt+1), zap.Duration("backoff", backoffDuration))
		if serr := l.sleep(ctx, backoffDuration); serr != nil {
			return "", serr
		}
	}
	return "", appErr.ErrQuotaExhausted
}

// noteQuotaRejection extends the shared backoff horizon. It only ever moves
// forward; a later rejection can lengthen it but nothing shortens it.
func (l *Limiter) noteQuotaRejection() {
	l.mu.Lock()
	defer l.mu.Unlock()
	until := l.now().Add(backoffDuration)
	if until.After(l.backoffUntil) {
		l.backoffUntil = until
	}
}

type Stats struct {
	CurrentRequests    int     `json:"current_requests"`
	CurrentTokens      int     `json:"current_tokens"`
	MaxRequests        int     `json:"max_requests"`
	MaxTokens          int     `json:"max_tokens"`
	RequestUtilization float64 `json:"request_utilization"`
	TokenUtilization   float64 `json:"token_utilization"`
	BackoffActive      bool    `json:"backoff_active"`
	BackoffRemaining   float64 `json:"backoff_remaining_seconds"`
}

// Stats reports a point-in-time view of the windows without mutating them.
func (l *Limiter) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	cutoff := now.Add(-window)

	requests := 0
	for _, t := range l.requestTimes {
		if t.After(cutoff) {
			requests++
		}
	}
	tokens := 0
	for _, e := range l.tokenUsage {
		if e.at.After(cutoff) {
			tokens += e.tokens
		}
	}
	stats := Stats{
		CurrentRequests:    requests,
		CurrentTokens:      tokens,
		MaxRequests:        l.maxRequests,
		MaxTokens:          l.maxTokens,
		RequestUtilization: float64(requests) / float64(l.maxRequests) * 100,
		TokenUtilization:   float64(tokens) / float64(l.maxTokens) * 100,
	}
	if now.Before(l.backoffUntil) {
		stats.BackoffActive = true
		stats.BackoffRemaining = l.backoffUntil.Sub(now).Seconds()
	}
	return stats
}
