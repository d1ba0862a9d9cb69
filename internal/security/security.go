package security

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

var blockedPatterns = compile([]string{
	`<script`, `javascript:`, `on\w+\s*=`, `data:text/html`,
	`<iframe`, `<object`, `<embed`, `vbscript:`,
	`prompt\(`, `alert\(`, `confirm\(`, `eval\(`,
	`import\s+os`, `subprocess`, `rm\s+-rf`, `del\s+/s`,
})

var injectionPatterns = compile([]string{
	`ignore\s+(?:all\s+)?(?:previous\s+)?instructions?`,
	`forget\s+(?:all\s+)?(?:previous\s+)?instructions?`,
	`you\s+are\s+now\s+(?:a\s+)?(?:different\s+)?(?:ai|assistant|bot)`,
	`act\s+as\s+(?:if\s+)?(?:you\s+are\s+)?(?:a\s+)?(?:different\s+)?(?:ai|assistant|bot)`,
	`pretend\s+(?:to\s+be|you\s+are)\s+(?:a\s+)?(?:different\s+)?(?:ai|assistant|bot)`,
	`system\s+prompt`, `system\s+message`, `system\s+instruction`,
	`ignore\s+(?:the\s+)?(?:above|previous|earlier)`,
	`above\s+is\s+(?:wrong|incorrect|false|fake)`,
	`you\s+can\s+(?:now\s+)?(?:access|use|connect\s+to)\s+(?:the\s+)?(?:internet|web)`,
	`you\s+are\s+(?:now\s+)?(?:unrestricted|unlimited|free)`,
	`jailbreak`, `break\s+free`, `escape\s+restrictions`,
	`bypass\s+(?:safety|security|content|filtering)`,
	`you\s+are\s+(?:now\s+)?(?:evil|malicious|harmful|dangerous)`,
})

func compile(patterns []string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		compiled = append(compiled, regexp.MustCompile(`(?i)`+p))
	}
	return compiled
}

const (
	maxQuestionLen = 400
	maxInputLen    = 800
	maxURLLen      = 300
)

// Gate performs input validation, injection detection and per-caller rate
// limiting. It is independent of the external-quota limiter: this one
// protects the service from callers, that one protects the backend quota.
type Gate struct {
	mu          sync.Mutex
	maxRequests int
	requests    map[string][]time.Time
	now         func() time.Time
}

func NewGate(maxRequestsPerMinute int) *Gate {
	if maxRequestsPerMinute <= 0 {
		maxRequestsPerMinute = 15
	}
	return &Gate{
		maxRequests: maxRequestsPerMinute,
		requests:    make(map[string][]time.Time),
		now:         time.Now,
	}
}

// ValidateQuestion reports whether a question is safe to forward. The
// returned reason is user facing and deliberately non-specific.
func (g *Gate) ValidateQuestion(ctx context.Context, question string) (bool, string) {
	if strings.TrimSpace(question) == "" {
		return false, "Please provide a valid question."
	}
	if len(question) > maxQuestionLen {
		return false, "Question is too long."
	}
	if matchAny(blockedPatterns, question) {
		g.logEvent(ctx, "dangerous_content", question)
		return false, "Question contains unsafe content."
	}
	if matchAny(injectionPatterns, question) {
		g.logEvent(ctx, "prompt_injection", question)
		return false, "Question contains inappropriate content."
	}
	return true, ""
}

func matchAny(patterns []*regexp.Regexp, text string) bool {
	for _, p := range patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

func (g *Gate) logEvent(ctx context.Context, event string, offending string) {
	excerpt := offending
	if len(excerpt) > 50 {
		excerpt = excerpt[:50] + "..."
	}
	logutil.GetLogger(ctx).Warn("security event",
		zap.String("event", event), zap.String("excerpt", excerpt))
}

var (
	inputStrip = strings.NewReplacer(
		"<", "", ">", "", `"`, "", "'", "", "&", "", ";", "",
		"(", "", ")", "", "{", "", "}", "", "[", "", "]", "")
	whitespaceRe = regexp.MustCompile(`\s+`)
	blankLineRe  = regexp.MustCompile(`\n\s+\n`)
	spacesTabsRe = regexp.MustCompile(`[ \t]+`)
)

// CleanInput strips disallowed characters, collapses whitespace and caps
// the length. Inputs are capped, outputs never are.
func CleanInput(text string) string {
	if text == "" {
		return ""
	}
	cleaned := inputStrip.Replace(text)
	cleaned = strings.TrimSpace(whitespaceRe.ReplaceAllString(cleaned, " "))
	if len(cleaned) > maxInputLen {
		cleaned = cleaned[:maxInputLen] + "..."
	}
	return cleaned
}

var dangerousOutput = []string{
	"<script", "<iframe", "<object", "<embed", "javascript:", "vbscript:",
}

// CleanOutput removes dangerous substrings and normalizes whitespace while
// preserving formatting and full length.
func CleanOutput(text string) string {
	if text == "" {
		return ""
	}
	cleaned := text
	for _, danger := range dangerousOutput {
		cleaned = strings.ReplaceAll(cleaned, danger, "")
	}
	cleaned = blankLineRe.ReplaceAllString(cleaned, "\n\n")
	cleaned = spacesTabsRe.ReplaceAllString(cleaned, " ")
	return strings.TrimSpace(cleaned)
}

// ValidateSourceURL checks that a source URL is a plausible, safe YouTube
// link before any fetch happens.
func (g *Gate) ValidateSourceURL(ctx context.Context, raw string) (bool, string) {
	if strings.TrimSpace(raw) == "" {
		return false, "Please provide a valid video URL."
	}
	if len(raw) > maxURLLen {
		return false, "URL is too long."
	}
	if matchAny(blockedPatterns, raw) {
		g.logEvent(ctx, "dangerous_url", raw)
		return false, "URL contains unsafe content."
	}
	return true, ""
}

// CheckRateLimit records one request for the caller and reports whether it
// is within the per-minute budget. The window trims lazily on access.
func (g *Gate) CheckRateLimit(callerID string) (bool, string) {
	now := g.now()
	cutoff := now.Add(-time.Minute)

	g.mu.Lock()
	defer g.mu.Unlock()
	recent := g.requests[callerID][:0]
	for _, ts := range g.requests[callerID] {
		if ts.After(cutoff) {
			recent = append(recent, ts)
		}
	}
	if len(recent) >= g.maxRequests {
		g.requests[callerID] = recent
		return false, "You're making requests too quickly. Please wait a moment."
	}
	g.requests[callerID] = append(recent, now)
	return true, ""
}
