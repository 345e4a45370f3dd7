package ai

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/aml-analyser/internal/application"
	"github.com/bryanwahyu/aml-analyser/internal/domain/ai"
	"github.com/bryanwahyu/aml-analyser/internal/domain/alerts"
	"github.com/bryanwahyu/aml-analyser/internal/domain/analysis"
	"github.com/bryanwahyu/aml-analyser/internal/infra/ai/prompt"
	"github.com/bryanwahyu/aml-analyser/internal/infra/ai/schema"
)

const modelAnswer = `{
  "transaction_summary": "Incoming wires from a new counterparty were moved out within hours.",
  "rule_triggered_analysis": {
    "rule_id": "RM-3",
    "rule_description": "Rapid movement of funds",
    "supporting_transactions": ["TX-9"]
  },
  "counterparties": ["Globex"],
  "suspicious_patterns": [],
  "overall_transaction_risk": "MEDIUM",
  "key_findings": ["Pass-through behaviour"],
  "red_flags": [],
  "data_source": "Core Banking System"
}`

type fakeClient struct {
	mu       sync.Mutex
	requests []ai.Request
	answer   string
	err      error
}

func (f *fakeClient) Generate(_ context.Context, req ai.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return f.answer, f.err
}

func (f *fakeClient) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

var fixedNow = time.Date(2024, 5, 2, 9, 30, 0, 0, time.UTC)

func testStore() *prompt.Store {
	return prompt.NewStore(fstest.MapFS{
		"analyst/system.yaml": {Data: []byte("prompt: You are an AML investigator.\n")},
		"analyst/user.yaml": {Data: []byte("template: |\n" +
			"  {{ .alert_information }}\n" +
			"  ---\n" +
			"  {{ .cdd_crp_documents }}\n" +
			"  ---\n" +
			"  {{ .rfi_options }}\n" +
			"  ---\n" +
			"  {{ .additional_context }}\n")},
		"strict/system.yaml": {Data: []byte("prompt: sys\n")},
		"strict/user.yaml":   {Data: []byte("template: \"{{ .customer_profile }}\"\n")},
		"nouser/system.yaml": {Data: []byte("prompt: sys\n")},
	})
}

func newTestAgent(t *testing.T, client ai.Client, opts ...Option) *Agent {
	t.Helper()
	base := []Option{
		WithPromptStore(testStore()),
		WithAgentName("analyst"),
		WithClock(application.FixedClock{T: fixedNow}),
	}
	a, err := NewAgent(client, append(base, opts...)...)
	require.NoError(t, err)
	return a
}

func sampleInfo() *alerts.Information {
	return alerts.NewInformation().
		Set("alert_id", analysis.String("AL-42")).
		Set("amount", analysis.Number(250000))
}

func TestAgent_Run(t *testing.T) {
	client := &fakeClient{answer: modelAnswer}
	a := newTestAgent(t, client)
	name, content := "kyc.pdf", "Director: J. Doe"

	out, err := a.Run(context.Background(), sampleInfo(),
		[]alerts.Document{{Filename: &name, Content: &content}},
		[]string{"Purpose of the wires"}, "Customer onboarded last month")
	require.NoError(t, err)

	assert.Equal(t, analysis.RiskMedium, out.OverallTransactionRisk)
	assert.Equal(t, "RM-3", out.RuleTriggeredAnalysis.RuleID)
	assert.Equal(t, fixedNow, out.AnalysisTimestamp.Time)
	assert.NotNil(t, out.SuspiciousPatterns)

	require.Equal(t, 1, client.calls())
	req := client.requests[0]
	assert.Equal(t, DefaultModel, req.Model)
	assert.Equal(t, float32(0), req.Temperature)
	assert.True(t, req.JSONOutput)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, ai.RoleSystem, req.Messages[0].Role)
	assert.Equal(t, "You are an AML investigator.", req.Messages[0].Content)
	assert.Equal(t, ai.RoleUser, req.Messages[1].Role)

	user := req.Messages[1].Content
	assert.Contains(t, user, "- **alert_id**: AL-42\n- **amount**: 250000")
	assert.Contains(t, user, "### Document 1: kyc.pdf")
	assert.Contains(t, user, "```\nDirector: J. Doe\n```")
	assert.Contains(t, user, "1. Purpose of the wires")
	assert.Contains(t, user, "Customer onboarded last month")
}

func TestAgent_RunEmptyInputs(t *testing.T) {
	client := &fakeClient{answer: modelAnswer}
	a := newTestAgent(t, client)

	_, err := a.Run(context.Background(), nil, nil, nil, "")
	require.NoError(t, err)

	user := client.requests[0].Messages[1].Content
	assert.True(t, strings.HasPrefix(user, "\n---\n"), "empty alert information renders as an empty line: %q", user)
	assert.Contains(t, user, prompt.NoDocuments)
	assert.Contains(t, user, prompt.NoRFIOptions)
}

func TestAgent_Options(t *testing.T) {
	client := &fakeClient{answer: modelAnswer}
	a := newTestAgent(t, client, WithModel("gemini-1.5-flash"), WithTemperature(0.2))
	assert.Equal(t, "gemini-1.5-flash", a.Model())

	_, err := a.Run(context.Background(), sampleInfo(), nil, nil, "")
	require.NoError(t, err)
	assert.Equal(t, "gemini-1.5-flash", client.requests[0].Model)
	assert.Equal(t, float32(0.2), client.requests[0].Temperature)
}

func TestAgent_KeepsModelTimestamp(t *testing.T) {
	answer := strings.Replace(modelAnswer, `"data_source": "Core Banking System"`,
		`"data_source": "Core Banking System", "analysis_timestamp": "2024-04-30T08:00:00Z"`, 1)
	a := newTestAgent(t, &fakeClient{answer: answer})

	out, err := a.Run(context.Background(), sampleInfo(), nil, nil, "")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 4, 30, 8, 0, 0, 0, time.UTC), out.AnalysisTimestamp.UTC())
}

func TestAgent_LocalTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2024-04-30T08:00:00.123456", time.Date(2024, 4, 30, 8, 0, 0, 123456000, time.UTC)},
		{"2024-04-30T08:00:00", time.Date(2024, 4, 30, 8, 0, 0, 0, time.UTC)},
		{"2024-04-30T15:00:00+07:00", time.Date(2024, 4, 30, 8, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			answer := strings.Replace(modelAnswer, `"data_source": "Core Banking System"`,
				`"data_source": "Core Banking System", "analysis_timestamp": "`+tt.in+`"`, 1)
			a := newTestAgent(t, &fakeClient{answer: answer})

			out, err := a.Run(context.Background(), sampleInfo(), nil, nil, "")
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(out.AnalysisTimestamp.Time), "got %s", out.AnalysisTimestamp)
		})
	}

	t.Run("garbage", func(t *testing.T) {
		answer := strings.Replace(modelAnswer, `"data_source": "Core Banking System"`,
			`"data_source": "Core Banking System", "analysis_timestamp": "yesterday"`, 1)
		a := newTestAgent(t, &fakeClient{answer: answer})

		_, err := a.Run(context.Background(), sampleInfo(), nil, nil, "")
		var verr *ai.ValidationError
		require.ErrorAs(t, err, &verr)
	})
}

func TestAgent_BackticksInsideValues(t *testing.T) {
	summary := "Document 1 quotes the memo ```wire ref 77``` verbatim."
	answer := strings.Replace(modelAnswer,
		"Incoming wires from a new counterparty were moved out within hours.", summary, 1)

	for name, raw := range map[string]string{
		"bare":   answer,
		"fenced": "```json\n" + answer + "\n```",
	} {
		t.Run(name, func(t *testing.T) {
			a := newTestAgent(t, &fakeClient{answer: raw})
			out, err := a.Run(context.Background(), sampleInfo(), nil, nil, "")
			require.NoError(t, err)
			assert.Equal(t, summary, out.TransactionSummary)
		})
	}
}

func TestAgent_FencedAnswer(t *testing.T) {
	a := newTestAgent(t, &fakeClient{answer: "```json\n" + modelAnswer + "\n```"})

	res, err := a.RunDetailed(context.Background(), sampleInfo(), nil, nil, "")
	require.NoError(t, err)
	assert.Equal(t, analysis.RiskMedium, res.Output.OverallTransactionRisk)
	assert.True(t, strings.HasPrefix(res.RawResponse, "```json"))
	assert.Contains(t, res.UserMessage, "AL-42")
	assert.Equal(t, DefaultModel, res.Model)
}

func TestAgent_ValidationError(t *testing.T) {
	answer := strings.Replace(modelAnswer, `"MEDIUM"`, `"SEVERE"`, 1)
	a := newTestAgent(t, &fakeClient{answer: answer})

	out, err := a.Run(context.Background(), sampleInfo(), nil, nil, "")
	assert.Nil(t, out)

	var verr *ai.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, string(schema.TransactionHistoryAnalysis), verr.Schema)
	assert.Equal(t, answer, verr.Raw)
	assert.NotEmpty(t, verr.Violations)

	var rerr *ai.RemoteError
	assert.False(t, errors.As(err, &rerr))
}

func TestAgent_NotJSON(t *testing.T) {
	a := newTestAgent(t, &fakeClient{answer: "I am unable to analyse this alert."})

	_, err := a.Run(context.Background(), sampleInfo(), nil, nil, "")
	var verr *ai.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "I am unable to analyse this alert.", verr.Raw)
}

func TestAgent_RemoteError(t *testing.T) {
	remote := ai.NewRemoteError("vertex", 429, errors.New("quota"))
	a := newTestAgent(t, &fakeClient{err: remote})

	_, err := a.Run(context.Background(), sampleInfo(), nil, nil, "")
	assert.ErrorIs(t, err, ai.ErrQuotaExceeded)

	var rerr *ai.RemoteError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, 429, rerr.StatusCode)

	var verr *ai.ValidationError
	assert.False(t, errors.As(err, &verr))
}

func TestNewAgent_ConfigurationErrors(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
		want error
	}{
		{"unknown agent", []Option{WithAgentName("nobody")}, prompt.ErrPromptNotFound},
		{"missing user prompt", []Option{WithAgentName("nouser")}, prompt.ErrPromptNotFound},
		{"unknown schema", []Option{WithAgentName("analyst"), WithSchema("customer_profile")}, schema.ErrUnknownSchema},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeClient{answer: modelAnswer}
			opts := append([]Option{WithPromptStore(testStore())}, tt.opts...)
			_, err := NewAgent(client, opts...)
			assert.ErrorIs(t, err, tt.want)
			assert.Zero(t, client.calls())
		})
	}

	_, err := NewAgent(nil)
	assert.Error(t, err)
}

func TestAgent_TemplateErrorBeforeRemoteCall(t *testing.T) {
	client := &fakeClient{answer: modelAnswer}
	a, err := NewAgent(client, WithPromptStore(testStore()), WithAgentName("strict"))
	require.NoError(t, err)

	_, err = a.Run(context.Background(), sampleInfo(), nil, nil, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "customer_profile")
	assert.Zero(t, client.calls())
}

func TestNewAgent_DefaultPrompts(t *testing.T) {
	a, err := NewAgent(&fakeClient{answer: modelAnswer})
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, a.Model())
}
