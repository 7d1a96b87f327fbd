package llm

import (
	"fmt"
	"net/http"

	"github.com/Veraticus/spice-deduct/internal/common"
)

const maxErrorBody = 512

// StatusError is a non-200 answer from a provider API.
type StatusError struct {
	Provider   string
	Body       string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.StatusCode, e.Body)
}

// statusError marks rate limits and server errors retryable; any other
// client error (bad key, unknown model) cannot succeed on retry.
func statusError(provider string, code int, body []byte) error {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	err := &StatusError{Provider: provider, StatusCode: code, Body: string(body)}

	switch {
	case code == http.StatusTooManyRequests:
		return common.Transient(fmt.Errorf("%w: %w", common.ErrRateLimit, err))
	case code >= http.StatusInternalServerError:
		return common.Transient(err)
	default:
		return common.Permanent(err)
	}
}

// transportError wraps failures to reach the provider at all.
func transportError(err error) error {
	return common.Transient(fmt.Errorf("request failed: %w", err))
}

func emptyResponse(provider string) error {
	return fmt.Errorf("%w: %s returned no content", common.ErrInvalidResponse, provider)
}

func envelopeError(provider string, err error) error {
	return fmt.Errorf("%w: failed to decode %s envelope: %w", common.ErrInvalidResponse, provider, err)
}
