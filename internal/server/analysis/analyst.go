// Package analysis asks an OpenAI-compatible chat completion endpoint for a
// short security review of a user's account recovery graph.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/andrii-malakhovtsev/accountmap/internal/common"
	"github.com/sashabaranov/go-openai"
)

const systemPrompt = `You are a Digital Forensic Architect specializing in "Account Recovery Graphs." ` +
	`Focus solely on "Single Points of Failure", "Circular Loops", and "SMS Risks". ` +
	`Be technical, concise, and stay under 100 words.`

const userPromptPrefix = "Analyze the following user account security data for vulnerabilities:\n"

// Options configures the upstream endpoint.
type Options struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Analyst sends one completion request per call.
type Analyst struct {
	client *openai.Client
	model  string
}

func New(opts Options) *Analyst {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	if opts.Timeout > 0 {
		cfg.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	return &Analyst{client: openai.NewClientWithConfig(cfg), model: opts.Model}
}

// Analyze submits payload (JSON describing accounts and identities) and
// returns the model's text. An upstream 429 maps to common.ErrUpstreamQuota,
// every other failure to common.ErrUpstream.
func (a *Analyst) Analyze(ctx context.Context, payload []byte) (string, error) {
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPromptPrefix + string(payload)},
		},
	})
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty completion", common.ErrUpstream)
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("%w: empty completion", common.ErrUpstream)
	}
	return text, nil
}

func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %v", common.ErrUpstreamQuota, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %v", common.ErrUpstreamQuota, err)
	}
	return fmt.Errorf("%w: %v", common.ErrUpstream, err)
}
