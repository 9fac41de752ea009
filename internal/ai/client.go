// Package ai talks to an OpenAI-compatible chat completion API to write
// trivia questions and judge free-text answers.
package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"trivia/internal/domain"
)

// Config configures a Client
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client sends chat completion requests
type Client struct {
	api    openai.Client
	model  string
	hasKey bool
	logger *slog.Logger
}

// NewClient creates a client. A missing API key is reported on first use.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	return &Client{
		api:    openai.NewClient(opts...),
		model:  cfg.Model,
		hasKey: strings.TrimSpace(cfg.APIKey) != "",
		logger: logger,
	}
}

// IsAvailable reports whether an API key is configured
func (c *Client) IsAvailable() bool {
	return c.hasKey
}

// complete sends one system and one user message and returns the reply text
func (c *Client) complete(ctx context.Context, system, user string, jsonReply bool) (string, error) {
	if !c.hasKey {
		return "", fmt.Errorf("%w: AI_API_KEY is not set", domain.ErrCredential)
	}

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
	}
	if jsonReply {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	start := time.Now()
	resp, err := c.api.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", classifyAPIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty response from AI")
	}

	c.logger.Debug("chat completion",
		"model", resp.Model,
		"duration", time.Since(start),
		"totalTokens", resp.Usage.TotalTokens,
	)
	return resp.Choices[0].Message.Content, nil
}

// classifyAPIError tags rejected credentials; everything else stays a plain
// request failure
func classifyAPIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
			return fmt.Errorf("chat completion: %w: %w", domain.ErrCredential, err)
		}
	}
	return fmt.Errorf("chat completion: %w", err)
}

// cleanJSONContent strips a markdown code fence around a JSON reply
func cleanJSONContent(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}
