package ai

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedClient answers per key: an error if one is registered, otherwise
// a reply naming the key.
type scriptedClient struct {
	key     string
	backend *scriptedBackend
}

func (c *scriptedClient) Generate(_ context.Context, prompt string) (string, error) {
	c.backend.mu.Lock()
	defer c.backend.mu.Unlock()
	c.backend.calls = append(c.backend.calls, c.key)
	if err, ok := c.backend.failures[c.key]; ok {
		return "", err
	}
	return "answer from " + c.key, nil
}

type scriptedBackend struct {
	mu       sync.Mutex
	failures map[string]error
	calls    []string
	builds   []string
}

func (b *scriptedBackend) factory(_ context.Context, apiKey string) (Client, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.builds = append(b.builds, apiKey)
	return &scriptedClient{key: apiKey, backend: b}, nil
}

func newTestDispatcher(t *testing.T, keys []string, failures map[string]error) (*Dispatcher, *CredentialPool, *scriptedBackend) {
	t.Helper()
	pool, err := NewCredentialPool(keys)
	require.NoError(t, err)
	backend := &scriptedBackend{failures: failures}
	return NewDispatcher(pool, backend.factory), pool, backend
}

func TestCompleteFailsOverToNextKey(t *testing.T) {
	d, pool, backend := newTestDispatcher(t, []string{"A", "B"}, map[string]error{
		"A": &UpstreamError{StatusCode: 429, Message: "quota"},
	})

	text, err := d.Complete(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "answer from B", text)
	assert.Equal(t, []string{"A", "B"}, backend.calls)
	assert.Equal(t, []string{"A", "B"}, backend.builds)

	idx, _ := pool.Current()
	assert.Equal(t, 1, idx)
}

func TestCompleteStopsAfterPoolSizeAttempts(t *testing.T) {
	quota := &UpstreamError{StatusCode: 429, Message: "quota"}
	d, pool, backend := newTestDispatcher(t, []string{"A", "B"}, map[string]error{"A": quota, "B": quota})

	_, err := d.Complete(context.Background(), "hi")
	require.ErrorIs(t, err, ErrCredentialsExhausted)
	assert.Len(t, backend.calls, 2)

	// both keys consumed once, index wrapped back to the start
	idx, _ := pool.Current()
	assert.Equal(t, 0, idx)
}

func TestGenerateFallsBackWhenExhausted(t *testing.T) {
	quota := errors.New("429 Too Many Requests")
	d, _, backend := newTestDispatcher(t, []string{"A", "B"}, map[string]error{"A": quota, "B": quota})

	reply := d.Generate(context.Background(), PromptInput{Input: "มีอะไรแนะนำ"})
	assert.True(t, reply.Fallback)
	assert.Equal(t, FallbackMessage, reply.Text)
	assert.Equal(t, []string{"ลองใหม่", "ช่วยเหลือ", "ติดต่อผู้ดูแล"}, reply.Suggestions)
	assert.Len(t, backend.calls, 2)
}

func TestCompleteNonRetryableAbortsImmediately(t *testing.T) {
	d, pool, backend := newTestDispatcher(t, []string{"A", "B", "C"}, map[string]error{
		"A": &UpstreamError{StatusCode: 500, Message: "internal"},
	})

	_, err := d.Complete(context.Background(), "hi")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCredentialsExhausted)
	assert.Equal(t, []string{"A"}, backend.calls)

	idx, _ := pool.Current()
	assert.Equal(t, 0, idx)
}

func TestCompleteReusesClientForSameKey(t *testing.T) {
	d, _, backend := newTestDispatcher(t, []string{"A"}, nil)

	for i := 0; i < 3; i++ {
		_, err := d.Complete(context.Background(), "hi")
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"A"}, backend.builds)
}

func TestCompleteFactoryErrorRotates(t *testing.T) {
	pool, err := NewCredentialPool([]string{"bad", "good"})
	require.NoError(t, err)

	backend := &scriptedBackend{}
	factory := func(ctx context.Context, apiKey string) (Client, error) {
		if apiKey == "bad" {
			return nil, errors.New("invalid api key")
		}
		return backend.factory(ctx, apiKey)
	}

	text, err := NewDispatcher(pool, factory).Complete(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "answer from good", text)
}

func TestGenerateSuccessCarriesSuggestions(t *testing.T) {
	d, _, _ := newTestDispatcher(t, []string{"A"}, nil)

	reply := d.Generate(context.Background(), PromptInput{Input: "สวัสดี"})
	assert.False(t, reply.Fallback)
	assert.Equal(t, "answer from A", reply.Text)
	assert.NotEmpty(t, reply.Suggestions)
}

func TestOfflineAlwaysFallsBack(t *testing.T) {
	reply := Offline{}.Generate(context.Background(), PromptInput{Input: "สวัสดี"})
	assert.True(t, reply.Fallback)
	assert.Equal(t, FallbackMessage, reply.Text)
}
