package ai

import (
	"context"
	"fmt"
	"log"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/ticket-assistant/backend/internal/config"
)

// arkClient runs a compiled eino chain over one Ark chat model.
type arkClient struct {
	chain compose.Runnable[map[string]any, *schema.Message]
}

// NewArkFactory returns a ClientFactory that builds an Ark-backed chain per
// API key.
func NewArkFactory(cfg config.AIConfig) ClientFactory {
	return func(ctx context.Context, apiKey string) (Client, error) {
		chatModel, err := cfg.NewChatModel(ctx, apiKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create chat model: %w", err)
		}

		promptTemplate := prompt.FromMessages(
			schema.GoTemplate,
			schema.SystemMessage("{{.system}}"),
			schema.UserMessage("{{.query}}"),
		)

		chain := compose.NewChain[map[string]any, *schema.Message]()
		chain.AppendChatTemplate(promptTemplate)
		chain.AppendChatModel(chatModel)

		runnable, err := chain.Compile(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to compile chat chain: %w", err)
		}

		return &arkClient{chain: runnable}, nil
	}
}

// Generate runs the chain with the assistant system prompt.
func (c *arkClient) Generate(ctx context.Context, query string) (string, error) {
	response, err := c.chain.Invoke(ctx, map[string]any{
		"system": systemPrompt,
		"query":  query,
	})
	if err != nil {
		return "", fmt.Errorf("failed to run AI chain: %w", err)
	}
	if response == nil {
		return "", &UpstreamError{Message: "empty response"}
	}

	log.Printf("[ai] generated response length=%d", len(response.Content))
	return response.Content, nil
}
