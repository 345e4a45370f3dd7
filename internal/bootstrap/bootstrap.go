// Package bootstrap turns a config.Config into ready components for the
// binaries.
package bootstrap

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	appai "github.com/bryanwahyu/aml-analyser/internal/application/ai"
	"github.com/bryanwahyu/aml-analyser/internal/config"
	"github.com/bryanwahyu/aml-analyser/internal/domain/ai"
	"github.com/bryanwahyu/aml-analyser/internal/infra/ai/openai"
	"github.com/bryanwahyu/aml-analyser/internal/infra/ai/prompt"
	"github.com/bryanwahyu/aml-analyser/internal/infra/ai/schema"
	"github.com/bryanwahyu/aml-analyser/internal/infra/ai/vertex"
	"github.com/bryanwahyu/aml-analyser/internal/infra/search/serpapi"
)

// NewLogger builds the process logger from cfg.Log.
func NewLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Log.Level)}
	if strings.EqualFold(cfg.Log.Format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// NewModelClient returns the configured provider and the model to ask for.
func NewModelClient(ctx context.Context, cfg *config.Config) (ai.Client, string, error) {
	switch cfg.AI.Provider {
	case config.ProviderOpenAI:
		model := cfg.AI.Model
		if model == "" {
			model = openai.DefaultModel
		}
		oc := goopenai.DefaultConfig(cfg.AI.APIKey)
		if cfg.AI.BaseURL != "" {
			oc.BaseURL = cfg.AI.BaseURL
		}
		return openai.NewClientWithConfig(oc, model), model, nil
	case config.ProviderVertex:
		model := cfg.AI.Model
		if model == "" {
			model = vertex.DefaultModel
		}
		c, err := vertex.New(ctx, vertex.Config{
			Project:  cfg.AI.Project,
			Location: cfg.AI.Location,
			APIKey:   cfg.AI.APIKey,
			Model:    model,
			BaseURL:  cfg.AI.BaseURL,
		})
		if err != nil {
			return nil, "", err
		}
		return c, model, nil
	default:
		return nil, "", fmt.Errorf("unknown ai provider %q", cfg.AI.Provider)
	}
}

// NewAgent builds the analyser agent with the configured provider, prompts
// and schema.
func NewAgent(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*appai.Agent, error) {
	client, model, err := NewModelClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	opts := []appai.Option{
		appai.WithModel(model),
		appai.WithTemperature(cfg.AI.Temperature),
		appai.WithAgentName(cfg.AI.Agent),
		appai.WithSchema(schema.Name(cfg.AI.Schema)),
		appai.WithLogger(logger),
	}
	if cfg.AI.PromptsDir != "" {
		opts = append(opts, appai.WithPromptStore(prompt.DirStore(cfg.AI.PromptsDir)))
	}
	return appai.NewAgent(client, opts...)
}

// NewSearchClient returns nil, serpapi.ErrMissingAPIKey when no key is set.
func NewSearchClient(cfg *config.Config) (*serpapi.Client, error) {
	return serpapi.NewClient(cfg.Search.APIKey,
		serpapi.WithBaseURL(cfg.Search.BaseURL),
		serpapi.WithTimeout(cfg.Search.Timeout),
		serpapi.WithUserAgent("aml-analyser"),
	)
}
