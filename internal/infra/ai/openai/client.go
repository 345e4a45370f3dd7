package openai

import (
	"context"
	"errors"
	"math"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/bryanwahyu/aml-analyser/internal/domain/ai"
)

const (
	provider     = "openai"
	maxTokens    = 4096
	DefaultModel = "gpt-4o"
)

type Client struct {
	*openai.Client
	Model string
}

func NewClient(apiKey, model string) *Client {
	return &Client{Client: openai.NewClient(apiKey), Model: model}
}

// NewClientWithConfig allows a custom base URL (Azure, proxies, tests).
func NewClientWithConfig(cfg openai.ClientConfig, model string) *Client {
	return &Client{Client: openai.NewClientWithConfig(cfg), Model: model}
}

func (c *Client) Generate(ctx context.Context, req ai.Request) (string, error) {
	model := req.Model
	if model == "" {
		model = c.Model
	}
	if model == "" {
		model = DefaultModel
	}

	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := openai.ChatMessageRoleUser
		if m.Role == ai.RoleSystem {
			role = openai.ChatMessageRoleSystem
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	oreq := openai.ChatCompletionRequest{
		Model:    model,
		Messages: msgs,
	}
	if req.JSONOutput {
		oreq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	// For reasoning models (o1/o3/o4/gpt-5*) use MaxCompletionTokens instead of MaxTokens;
	// they also reject a temperature.
	if isReasoningModel(model) {
		oreq.MaxCompletionTokens = maxTokens
	} else {
		oreq.MaxTokens = maxTokens
		oreq.Temperature = req.Temperature
		if oreq.Temperature == 0 {
			// zero is dropped by omitempty; the smallest float keeps decoding greedy
			oreq.Temperature = math.SmallestNonzeroFloat32
		}
	}

	resp, err := c.CreateChatCompletion(ctx, oreq)
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", ai.NewRemoteError(provider, 0, ai.ErrEmptyResponse)
	}
	return resp.Choices[0].Message.Content, nil
}

func isReasoningModel(model string) bool {
	for _, p := range []string{"o1", "o3", "o4", "gpt-5"} {
		if strings.HasPrefix(model, p) {
			return true
		}
	}
	return false
}

func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return ai.NewRemoteError(provider, apiErr.HTTPStatusCode, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return ai.NewRemoteError(provider, reqErr.HTTPStatusCode, err)
	}
	return ai.NewRemoteError(provider, 0, err)
}
