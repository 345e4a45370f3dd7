// Package vertex adapts Gemini on Vertex AI to the ai.Client port.
package vertex

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/bryanwahyu/aml-analyser/internal/domain/ai"
)

const (
	provider        = "vertex"
	DefaultModel    = "gemini-1.5-pro"
	DefaultLocation = "us-central1"
)

// Config selects the deployment. With a Project the client talks to Vertex AI
// using application default credentials; with only an APIKey it uses the
// Gemini API.
type Config struct {
	Project  string
	Location string
	APIKey   string
	Model    string
	// BaseURL overrides the service endpoint (proxies, tests).
	BaseURL string
}

type Client struct {
	models *genai.Models
	model  string
}

func New(ctx context.Context, cfg Config) (*Client, error) {
	cc := &genai.ClientConfig{Backend: genai.BackendVertexAI, Project: cfg.Project, Location: cfg.Location}
	if cc.Location == "" {
		cc.Location = DefaultLocation
	}
	if cfg.Project == "" {
		if cfg.APIKey == "" {
			return nil, errors.New("vertex: project or api key is required")
		}
		cc = &genai.ClientConfig{Backend: genai.BackendGeminiAPI, APIKey: cfg.APIKey}
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions.BaseURL = cfg.BaseURL
	}

	c, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("vertex: create client: %w", err)
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	return &Client{models: c.Models, model: model}, nil
}

func (c *Client) Generate(ctx context.Context, req ai.Request) (string, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	var system []string
	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case ai.RoleSystem:
			system = append(system, m.Content)
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}

	gc := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(req.Temperature),
	}
	if len(system) > 0 {
		gc.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}
	if req.JSONOutput {
		gc.ResponseMIMEType = "application/json"
	}

	resp, err := c.models.GenerateContent(ctx, model, contents, gc)
	if err != nil {
		return "", classify(err)
	}
	text := resp.Text()
	if text == "" {
		return "", ai.NewRemoteError(provider, 0, ai.ErrEmptyResponse)
	}
	return text, nil
}

// classify turns a genai failure into an *ai.RemoteError carrying the
// provider's HTTP status when there is one.
func classify(err error) error {
	for e := err; e != nil; e = errors.Unwrap(e) {
		switch v := any(e).(type) {
		case genai.APIError:
			return ai.NewRemoteError(provider, v.Code, err)
		case *genai.APIError:
			return ai.NewRemoteError(provider, v.Code, err)
		}
	}
	return ai.NewRemoteError(provider, 0, err)
}
