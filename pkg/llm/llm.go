// Package llm wraps a chat-completion model: reply generation with a
// persona prompt plus optional retrieved context, and short summaries of a
// memory set.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/ollama"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/voxhall/voxhall/pkg/config"
	"github.com/voxhall/voxhall/pkg/logging"
	"github.com/voxhall/voxhall/pkg/memory"
)

const (
	summaryTemperature float32 = 0.3
	summaryMaxTokens           = 300
	// At most this many memory texts go into one summarization prompt.
	maxSummaryMemories = 10
)

// Client generates replies and memory summaries through one configured
// chat model.
type Client struct {
	model       model.BaseChatModel
	agentName   string
	temperature float32
	maxTokens   int
	logger      *slog.Logger
}

// New builds a Client for the configured provider (openai, custom, or
// ollama).
func New(ctx context.Context, cfg config.LLMConfig, agentName string) (*Client, error) {
	var (
		chatModel model.BaseChatModel
		err       error
	)
	switch cfg.Provider {
	case "openai", "custom":
		chatModel, err = openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL: cfg.BaseURL,
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
		})
	case "ollama":
		chatModel, err = ollama.NewChatModel(ctx, &ollama.ChatModelConfig{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
		})
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s chat model: %w", cfg.Provider, err)
	}

	return NewWithModel(chatModel, agentName, cfg.Temperature, cfg.MaxTokens), nil
}

// NewWithModel wires an already-constructed chat model; tests use this to
// substitute a scripted model.
func NewWithModel(m model.BaseChatModel, agentName string, temperature float32, maxTokens int) *Client {
	return &Client{
		model:       m,
		agentName:   agentName,
		temperature: temperature,
		maxTokens:   maxTokens,
		logger:      logging.Get(),
	}
}

// GenerateReply produces one assistant reply for the given conversation
// turns. contextSummary, when non-empty, is injected as a second system
// message describing relevant past conversations.
func (c *Client) GenerateReply(ctx context.Context, turns []*schema.Message, contextSummary string) (string, error) {
	conversation := make([]*schema.Message, 0, len(turns)+2)
	conversation = append(conversation, schema.SystemMessage(c.SystemPrompt()))
	if contextSummary != "" {
		conversation = append(conversation,
			schema.SystemMessage("Relevant context from previous conversations:\n"+contextSummary))
	}
	conversation = append(conversation, turns...)

	resp, err := c.model.Generate(ctx, conversation,
		model.WithTemperature(c.temperature), model.WithMaxTokens(c.maxTokens))
	if err != nil {
		return "", fmt.Errorf("generate completion: %w", err)
	}

	c.logger.Info("Generated reply", "chars", len(resp.Content))
	return resp.Content, nil
}

// SummarizeMemories condenses a memory set into a short context string.
// An empty record set yields ""; so does a summarization failure, which is
// never fatal to the caller.
func (c *Client) SummarizeMemories(ctx context.Context, records []memory.Record) string {
	if len(records) == 0 {
		return ""
	}

	texts := make([]string, 0, len(records))
	for _, r := range records {
		if r.Text != "" {
			texts = append(texts, r.Text)
		}
	}
	if len(texts) == 0 {
		return ""
	}
	if len(texts) > maxSummaryMemories {
		texts = texts[:maxSummaryMemories]
	}

	prompt := "Please create a concise summary of the following previous conversation context " +
		"that would be helpful for continuing a conversation:\n\nPrevious conversations:\n" +
		strings.Join(texts, "\n") + "\n\nSummary:"

	resp, err := c.model.Generate(ctx, []*schema.Message{schema.UserMessage(prompt)},
		model.WithTemperature(summaryTemperature), model.WithMaxTokens(summaryMaxTokens))
	if err != nil {
		c.logger.Error("Context summarization failed", "error", err)
		return ""
	}

	c.logger.Info("Generated context summary", "chars", len(resp.Content))
	return resp.Content
}

// SystemPrompt is the static persona text, parameterized only by the agent
// display name.
func (c *Client) SystemPrompt() string {
	return fmt.Sprintf(`You are %s, a helpful AI assistant participating in a real-time chat room.

Key instructions:
- You have access to context from previous conversations with users
- Be conversational, friendly, and engaging
- Remember and reference previous interactions when relevant
- Keep responses concise but informative (1-3 sentences typically)
- Ask follow-up questions to maintain engagement
- If you don't have context about a user, treat them warmly as a new friend
- Adapt your personality to match the conversation tone
- Be helpful with questions and provide value in every interaction

Remember: This is a real-time chat environment, so keep responses natural and conversational.`, c.agentName)
}
