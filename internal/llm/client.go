package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// Config describes an OpenAI-compatible chat completion endpoint.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	// JSONMode asks the endpoint for a JSON object response.
	JSONMode bool

	HTTPClient *http.Client
}

// Client generates text through an OpenAI-compatible chat completion endpoint.
type Client struct {
	api      *openai.Client
	model    string
	jsonMode bool
}

const systemPrompt = "You are a music tag classifier. Reply with a single JSON object and nothing else."

// New creates a client. BaseURL and Model are required.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" || cfg.Model == "" {
		return nil, fmt.Errorf("llm: base URL and model required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	clientConfig.HTTPClient = cfg.HTTPClient
	if cfg.HTTPClient == nil {
		clientConfig.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}

	return &Client{
		api:      openai.NewClientWithConfig(clientConfig),
		model:    cfg.Model,
		jsonMode: cfg.JSONMode,
	}, nil
}

// Generate sends prompt as a single user turn and returns the reply text.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	if c.jsonMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("llm error (status %d): %s", apiErr.HTTPStatusCode, apiErr.Message)
		}
		return "", fmt.Errorf("llm: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llm: empty response")
	}
	return resp.Choices[0].Message.Content, nil
}
