package ai

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limited status", &UpstreamError{StatusCode: 429, Message: "slow down"}, true},
		{"forbidden status", &UpstreamError{StatusCode: 403}, true},
		{"unauthorized status", &UpstreamError{StatusCode: 401}, true},
		{"wrapped upstream", fmt.Errorf("call: %w", &UpstreamError{StatusCode: 429}), true},
		{"server error", &UpstreamError{StatusCode: 500, Message: "boom"}, false},
		{"quota text", errors.New("Quota exceeded for this month"), true},
		{"rate limit text", errors.New("rate limit reached"), true},
		{"too many requests", errors.New("Too Many Requests"), true},
		{"invalid key", errors.New("Invalid API key provided"), true},
		{"bare status in message", errors.New("request failed: status 429"), true},
		{"status inside number", errors.New("order 14290 failed"), false},
		{"bare number without status", errors.New("event 429 not found"), false},
		{"error code field", errors.New("error code: 403"), true},
		{"http status line", errors.New("got HTTP/1.1 401 from gateway"), true},
		{"status_code key", errors.New("status_code=429"), true},
		{"timeout", errors.New("context deadline exceeded"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestUpstreamErrorMessage(t *testing.T) {
	assert.Equal(t, "upstream status 429: slow down", (&UpstreamError{StatusCode: 429, Message: "slow down"}).Error())
	assert.Equal(t, "upstream: empty response", (&UpstreamError{Message: "empty response"}).Error())
}
