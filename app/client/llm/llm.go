package llm

import (
	"context"
	"fmt"
	"moobot/app/config"
	"net/http"
	"strings"
	"time"

	"github.com/samber/do"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Completer sends one system instruction plus one user utterance and returns the reply text.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

var _ Completer = (*Client)(nil)

type Client struct {
	model   llms.Model
	name    string
	timeout time.Duration
	opts    []llms.CallOption
}

func NewClient(cfg config.ModelConfig, timeout time.Duration, opts ...llms.CallOption) (*Client, error) {
	model, err := openai.New(
		openai.WithToken(cfg.Token),
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithModel(cfg.Model),
		openai.WithHTTPClient(&http.Client{
			Timeout: timeout,
		}),
		openai.WithCallback(LogCallbackHandler{}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", cfg.Model, err)
	}

	return NewWithModel(model, cfg.Model, timeout, opts...), nil
}

func NewWithModel(model llms.Model, name string, timeout time.Duration, opts ...llms.CallOption) *Client {
	return &Client{
		model:   model,
		name:    name,
		timeout: timeout,
		opts:    opts,
	}
}

func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.model.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, user),
	}, c.opts...)
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no chat completion found")
	}

	return strings.TrimSpace(resp.Choices[0].Content), nil
}

// Clients holds one client per pipeline role.
type Clients struct {
	Classify *Client
	Query    *Client
	Reply    *Client
}

func NewClients(di *do.Injector) (*Clients, error) {
	cfg := do.MustInvoke[*config.Config](di)

	classify, err := NewClient(cfg.OpenAI.Classify, cfg.OpenAI.Timeout,
		llms.WithTemperature(0), llms.WithMaxTokens(20))
	if err != nil {
		return nil, err
	}

	query, err := NewClient(cfg.OpenAI.Query, cfg.OpenAI.Timeout,
		llms.WithTemperature(0.2), llms.WithMaxTokens(1500))
	if err != nil {
		return nil, err
	}

	reply, err := NewClient(cfg.OpenAI.Reply, cfg.OpenAI.Timeout,
		llms.WithTemperature(0.7), llms.WithMaxTokens(800))
	if err != nil {
		return nil, err
	}

	return &Clients{
		Classify: classify,
		Query:    query,
		Reply:    reply,
	}, nil
}
