package ai

import (
	"fmt"
	"net/http"
	"strings"

	appErr "github.com/vidsage/vidsage/internal/pkg/errors"
)

// classifyHTTPError maps a backend HTTP failure onto the typed error
// taxonomy exactly once, at the call boundary. Everything downstream
// dispatches with errors.Is instead of re-matching strings.
func classifyHTTPError(provider string, status int, body string) error {
	detail := strings.TrimSpace(body)
	if len(detail) > 200 {
		detail = detail[:200]
	}
	lower := strings.ToLower(detail)
	switch {
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%s: %w: %s", provider, appErr.ErrQuotaExceeded, detail)
	case status == http.StatusRequestEntityTooLarge:
		return fmt.Errorf("%s: %w: %s", provider, appErr.ErrPromptTooLarge, detail)
	case status == http.StatusBadRequest && (strings.Contains(lower, "too large") || strings.Contains(lower, "token")):
		return fmt.Errorf("%s: %w: %s", provider, appErr.ErrPromptTooLarge, detail)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%s: %w: status %d", provider, ErrUnavailable, status)
	default:
		return fmt.Errorf("%s request failed: status %d: %s", provider, status, detail)
	}
}

// classifyOpaqueError covers SDK backends that only surface error strings.
// This is the single place where pattern matching on error text is allowed.
func classifyOpaqueError(provider string, err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "rate_limit") ||
		strings.Contains(msg, "rate limit") || strings.Contains(msg, "too many requests"):
		return fmt.Errorf("%s: %w: %v", provider, appErr.ErrQuotaExceeded, err)
	case strings.Contains(msg, "413") || strings.Contains(msg, "too large") || strings.Contains(msg, "token"):
		return fmt.Errorf("%s: %w: %v", provider, appErr.ErrPromptTooLarge, err)
	default:
		return fmt.Errorf("%s: %w", provider, err)
	}
}
