// Package ai dispatches prompts to the generation backend, failing over
// across a pool of API keys.
package ai

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
)

// FallbackMessage is shown when no key could produce an answer.
const FallbackMessage = "ขออภัย ระบบผู้ช่วยไม่สามารถตอบกลับได้ในขณะนี้ กรุณาลองใหม่อีกครั้งในภายหลัง"

// FallbackSuggestions accompany FallbackMessage.
var FallbackSuggestions = []string{"ลองใหม่", "ช่วยเหลือ", "ติดต่อผู้ดูแล"}

var defaultSuggestions = []string{"ดูอีเวนต์ทั้งหมด", "แนะนำอีเวนต์", "ตั๋วของฉัน"}

// Client is a generation backend bound to one credential.
type Client interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ClientFactory builds a Client for apiKey.
type ClientFactory func(ctx context.Context, apiKey string) (Client, error)

// Reply is the outcome of Generate.
type Reply struct {
	Text        string
	Suggestions []string
	Fallback    bool
}

// Dispatcher is shared process-wide so a rotation helps every session.
type Dispatcher struct {
	pool    *CredentialPool
	factory ClientFactory

	mu          sync.Mutex
	client      Client
	clientIndex int
}

// NewDispatcher binds a pool to a client factory. The client for the current
// key is built lazily on first use.
func NewDispatcher(pool *CredentialPool, factory ClientFactory) *Dispatcher {
	return &Dispatcher{pool: pool, factory: factory, clientIndex: -1}
}

// Complete sends prompt once per attempt. Retryable failures rotate to the
// next key; at most pool size attempts are made. Any other failure aborts.
func (d *Dispatcher) Complete(ctx context.Context, prompt string) (string, error) {
	attempts := d.pool.Size()
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		idx, key := d.pool.Current()

		client, err := d.clientFor(ctx, idx, key)
		if err == nil {
			var text string
			text, err = client.Generate(ctx, prompt)
			if err == nil {
				return text, nil
			}
			if !IsRetryable(err) {
				return "", fmt.Errorf("generate: %w", err)
			}
		}

		lastErr = err
		next := d.pool.RotateFrom(idx)
		log.Printf("[dispatcher] credential #%d failed (attempt %d/%d), switching to #%d: %v", idx, attempt, attempts, next, err)
	}

	return "", fmt.Errorf("%w: %v", ErrCredentialsExhausted, lastErr)
}

// Generate composes the prompt and answers. It never returns an upstream
// error: any failure yields the fallback reply.
func (d *Dispatcher) Generate(ctx context.Context, in PromptInput) Reply {
	text, err := d.Complete(ctx, BuildPrompt(in))
	if err != nil {
		log.Printf("[dispatcher] generation failed, using fallback: %v", err)
		return FallbackReply()
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return FallbackReply()
	}
	return Reply{Text: text, Suggestions: append([]string(nil), defaultSuggestions...)}
}

// FallbackReply is the fixed safe answer.
func FallbackReply() Reply {
	return Reply{
		Text:        FallbackMessage,
		Suggestions: append([]string(nil), FallbackSuggestions...),
		Fallback:    true,
	}
}

// clientFor returns the client for idx, rebuilding it when the pool has moved
// since the last build.
func (d *Dispatcher) clientFor(ctx context.Context, idx int, key string) (Client, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.client != nil && d.clientIndex == idx {
		return d.client, nil
	}

	client, err := d.factory(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("build client for credential #%d: %w", idx, err)
	}
	d.client = client
	d.clientIndex = idx
	return client, nil
}

// Offline stands in for a Dispatcher when no API key is configured.
type Offline struct{}

// Generate always returns the fallback reply.
func (Offline) Generate(context.Context, PromptInput) Reply {
	return FallbackReply()
}
