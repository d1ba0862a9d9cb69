package errors

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrInvalid        = errors.New("invalid")
	ErrTooMany        = errors.New("too many requests")
	ErrInternal       = errors.New("internal")
	ErrNoTranscript   = errors.New("no transcript available")
	ErrSourceTooLarge = errors.New("transcript too large")
	ErrBadSourceURL   = errors.New("invalid source url")
	ErrQuotaExceeded  = errors.New("generation quota exceeded")
	ErrQuotaExhausted = errors.New("generation quota exhausted after retries")
	ErrPromptTooLarge = errors.New("prompt too large")
	ErrAIUnavailable  = errors.New("ai backend unavailable")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsQuotaExceeded(err error) bool {
	return errors.Is(err, ErrQuotaExceeded)
}

func IsPromptTooLarge(err error) bool {
	return errors.Is(err, ErrPromptTooLarge)
}
