package ai

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrCredentialsExhausted is returned after every key failed with a
// retryable error.
var ErrCredentialsExhausted = errors.New("all api credentials exhausted")

// UpstreamError is a failed call to the generation backend.
type UpstreamError struct {
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	if e.StatusCode == 0 {
		return "upstream: " + e.Message
	}
	return fmt.Sprintf("upstream status %d: %s", e.StatusCode, e.Message)
}

// IsRateLimited reports HTTP 429.
func (e *UpstreamError) IsRateLimited() bool {
	return e.StatusCode == 429
}

// IsCredentialRejected reports HTTP 401/403.
func (e *UpstreamError) IsCredentialRejected() bool {
	return e.StatusCode == 401 || e.StatusCode == 403
}

var retryableFragments = []string{
	"quota",
	"rate limit",
	"ratelimit",
	"rate_limit",
	"too many requests",
	"resource exhausted",
	"resource_exhausted",
	"invalid api key",
	"api key not valid",
	"invalid_api_key",
	"unauthorized",
	"forbidden",
	"permission denied",
	"accessdenied",
	"authenticationerror",
}

// status codes only count next to a status marker, never as a bare number
var retryableStatus = regexp.MustCompile(`(?:status(?:[ _]?code)?|code|http(?:/[0-9.]+)?)\s*[:=]?\s*(?:401|403|429)\b`)

// IsRetryable reports whether err belongs to the quota/rate/credential class
// that warrants switching to another key.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var upstream *UpstreamError
	if errors.As(err, &upstream) && (upstream.IsRateLimited() || upstream.IsCredentialRejected()) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, fragment := range retryableFragments {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return retryableStatus.MatchString(msg)
}
