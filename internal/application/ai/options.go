package ai

import (
	"log/slog"

	"github.com/bryanwahyu/aml-analyser/internal/application"
	"github.com/bryanwahyu/aml-analyser/internal/infra/ai/prompt"
	"github.com/bryanwahyu/aml-analyser/internal/infra/ai/schema"
)

const (
	DefaultModel     = "gemini-1.5-pro"
	DefaultAgentName = "cdd_crp_analyser"
	DefaultSchema    = schema.TransactionHistoryAnalysis
)

// Option configures an Agent at construction.
type Option func(*options)

type options struct {
	model       string
	temperature float32
	agentName   string
	schemaName  schema.Name
	prompts     *prompt.Store
	registry    *schema.Registry
	clock       application.Clock
	logger      *slog.Logger
}

func defaultOptions() options {
	return options{
		model:      DefaultModel,
		agentName:  DefaultAgentName,
		schemaName: DefaultSchema,
		clock:      application.SystemClock{},
		logger:     slog.Default(),
	}
}

func WithModel(model string) Option {
	return func(o *options) {
		if model != "" {
			o.model = model
		}
	}
}

// WithTemperature sets the sampling temperature; the default 0 is greedy decoding.
func WithTemperature(t float32) Option { return func(o *options) { o.temperature = t } }

// WithAgentName selects the prompt folder the agent loads.
func WithAgentName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.agentName = name
		}
	}
}

func WithSchema(name schema.Name) Option {
	return func(o *options) {
		if name != "" {
			o.schemaName = name
		}
	}
}

func WithPromptStore(s *prompt.Store) Option { return func(o *options) { o.prompts = s } }

func WithSchemaRegistry(r *schema.Registry) Option { return func(o *options) { o.registry = r } }

func WithClock(c application.Clock) Option { return func(o *options) { o.clock = c } }

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
