// Package llm provides the chat-completion clients for the bot's generation
// backends. All four backends (Groq llama for default chat, DeepSeek for
// reasoning, Qwen for high-volume chat and for summarization) speak the
// OpenAI-compatible chat API, so a single client type covers them.
package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/mtaspro/neuraflow/internal/memory"
)

const (
	groqBaseURL       = "https://api.groq.com/openai/v1"
	openRouterBaseURL = "https://openrouter.ai/api/v1"

	// OpenRouter app-attribution headers.
	openRouterReferer = "https://github.com/mtaspro/Neuraflowai"
	openRouterTitle   = "NEURAFLOW WhatsApp Bot"
)

// Config holds the settings for one backend.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	// SystemPrompt is the backend's standard prompt. The identity prompt
	// replaces it when the query is a self-introduction question.
	SystemPrompt string
	// AttributionHeaders adds the OpenRouter referer/title headers.
	AttributionHeaders bool
}

// Client is a chat-completion client for one backend. Safe for concurrent
// use.
type Client struct {
	api          *openai.Client
	model        string
	temperature  float32
	maxTokens    int
	systemPrompt string
}

// NewClient builds a client from cfg.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("llm: API key is required")
	}
	if cfg.Model == "" {
		return nil, errors.New("llm: model is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	if cfg.AttributionHeaders {
		clientConfig.HTTPClient = &http.Client{
			Transport: &headerTransport{base: http.DefaultTransport},
		}
	}

	return &Client{
		api:          openai.NewClientWithConfig(clientConfig),
		model:        cfg.Model,
		temperature:  cfg.Temperature,
		maxTokens:    cfg.MaxTokens,
		systemPrompt: cfg.SystemPrompt,
	}, nil
}

// Generate sends the conversation to the backend and returns the trimmed
// reply. An empty reply with a nil error means the backend had nothing to
// say; callers treat that as a silent no-op.
func (c *Client) Generate(ctx context.Context, history []memory.Message, identity bool) (string, error) {
	prompt := c.systemPrompt
	if identity {
		prompt = IdentityPrompt
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: prompt,
	})
	// Timestamps are storage metadata; the API only sees role and content.
	for _, m := range history {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// headerTransport adds the OpenRouter attribution headers to every request.
type headerTransport struct {
	base http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.Header.Set("HTTP-Referer", openRouterReferer)
	clone.Header.Set("X-Title", openRouterTitle)
	return t.base.RoundTrip(clone)
}

// NewGroqChat returns the default community-chat client (Groq llama).
func NewGroqChat(apiKey, model string) (*Client, error) {
	if model == "" {
		model = "llama3-8b-8192"
	}
	return NewClient(Config{
		APIKey:       apiKey,
		BaseURL:      groqBaseURL,
		Model:        model,
		Temperature:  0.7,
		SystemPrompt: CommunityPrompt,
	})
}

// NewDeepSeekReasoner returns the reasoning client (DeepSeek via OpenRouter).
func NewDeepSeekReasoner(apiKey, model string) (*Client, error) {
	if model == "" {
		model = "deepseek/deepseek-chat-v3-0324:free"
	}
	return NewClient(Config{
		APIKey:             apiKey,
		BaseURL:            openRouterBaseURL,
		Model:              model,
		Temperature:        0.3,
		MaxTokens:          2000,
		SystemPrompt:       ReasoningPrompt,
		AttributionHeaders: true,
	})
}

// NewQwenChat returns the high-volume chat client (Qwen via OpenRouter).
func NewQwenChat(apiKey, model string) (*Client, error) {
	if model == "" {
		model = "qwen/qwen3-235b-a22b:free"
	}
	return NewClient(Config{
		APIKey:             apiKey,
		BaseURL:            openRouterBaseURL,
		Model:              model,
		Temperature:        0.7,
		SystemPrompt:       CommunityPrompt,
		AttributionHeaders: true,
	})
}

// NewQwenSummarizer returns the summarization client (Qwen via OpenRouter).
func NewQwenSummarizer(apiKey, model string) (*Client, error) {
	if model == "" {
		model = "qwen/qwen3-235b-a22b:free"
	}
	return NewClient(Config{
		APIKey:             apiKey,
		BaseURL:            openRouterBaseURL,
		Model:              model,
		Temperature:        0.3,
		MaxTokens:          1000,
		SystemPrompt:       SummaryPrompt,
		AttributionHeaders: true,
	})
}
