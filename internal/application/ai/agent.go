// Package ai runs the CDD/CRP analyser: it renders the prompts for one alert,
// makes a single model call and returns the schema-validated result.
package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bryanwahyu/aml-analyser/internal/application"
	"github.com/bryanwahyu/aml-analyser/internal/domain/ai"
	"github.com/bryanwahyu/aml-analyser/internal/domain/alerts"
	"github.com/bryanwahyu/aml-analyser/internal/domain/analysis"
	"github.com/bryanwahyu/aml-analyser/internal/infra/ai/prompt"
	"github.com/bryanwahyu/aml-analyser/internal/infra/ai/schema"
)

// Agent holds only immutable state after NewAgent, so it can be shared across
// goroutines whenever its ai.Client can.
type Agent struct {
	client       ai.Client
	model        string
	temperature  float32
	agentName    string
	systemPrompt string
	userTemplate string
	schema       *schema.Schema
	clock        application.Clock
	logger       *slog.Logger
}

// Result is a successful run together with what was sent and received.
type Result struct {
	Output      *analysis.Output
	Model       string
	UserMessage string
	RawResponse string
}

// NewAgent loads the system prompt, user template and output schema. A
// missing one fails here, before any remote call.
func NewAgent(client ai.Client, opts ...Option) (*Agent, error) {
	if client == nil {
		return nil, errors.New("analyser: nil model client")
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.prompts == nil {
		o.prompts = prompt.DefaultStore()
	}
	if o.registry == nil {
		reg, err := schema.Default()
		if err != nil {
			return nil, fmt.Errorf("analyser: build schema registry: %w", err)
		}
		o.registry = reg
	}

	system, err := o.prompts.SystemPrompt(o.agentName)
	if err != nil {
		return nil, fmt.Errorf("analyser: %w", err)
	}
	user, err := o.prompts.UserTemplate(o.agentName)
	if err != nil {
		return nil, fmt.Errorf("analyser: %w", err)
	}
	out, err := o.registry.Lookup(o.schemaName)
	if err != nil {
		return nil, fmt.Errorf("analyser: %w", err)
	}

	return &Agent{
		client:       client,
		model:        o.model,
		temperature:  o.temperature,
		agentName:    o.agentName,
		systemPrompt: system,
		userTemplate: user,
		schema:       out,
		clock:        o.clock,
		logger:       o.logger,
	}, nil
}

func (a *Agent) Model() string { return a.model }

// Run analyses one alert. Errors are *ai.RemoteError when the model call
// fails and *ai.ValidationError when its answer does not fit the schema.
func (a *Agent) Run(ctx context.Context, info *alerts.Information, docs []alerts.Document, rfis []string, additionalContext string) (*analysis.Output, error) {
	res, err := a.RunDetailed(ctx, info, docs, rfis, additionalContext)
	if err != nil {
		return nil, err
	}
	return res.Output, nil
}

// RunDetailed is Run that also returns the rendered user message and the raw
// model text.
func (a *Agent) RunDetailed(ctx context.Context, info *alerts.Information, docs []alerts.Document, rfis []string, additionalContext string) (*Result, error) {
	userMessage, err := prompt.BuildUserMessage(a.userTemplate, info, docs, rfis, additionalContext)
	if err != nil {
		return nil, fmt.Errorf("analyser: %w", err)
	}

	req := ai.Request{
		Model:       a.model,
		Temperature: a.temperature,
		JSONOutput:  true,
		Messages: []ai.Message{
			{Role: ai.RoleSystem, Content: a.systemPrompt},
			{Role: ai.RoleUser, Content: userMessage},
		},
	}

	start := time.Now()
	raw, err := a.client.Generate(ctx, req)
	if err != nil {
		a.logger.ErrorContext(ctx, "model call failed",
			"agent", a.agentName, "model", a.model, "duration", time.Since(start), "error", err)
		return nil, err
	}
	a.logger.DebugContext(ctx, "model call done",
		"agent", a.agentName, "model", a.model, "duration", time.Since(start), "response_bytes", len(raw))

	var out analysis.Output
	if err := a.schema.Decode(schema.ExtractJSON(raw), &out); err != nil {
		var verr *ai.ValidationError
		if errors.As(err, &verr) {
			verr.Raw = raw
		}
		return nil, err
	}
	out.Normalize(a.clock.Now())

	return &Result{
		Output:      &out,
		Model:       a.model,
		UserMessage: userMessage,
		RawResponse: raw,
	}, nil
}
