package analysis

import (
	"time"

	"github.com/invopop/jsonschema"
)

// RiskLevel is the severity scale shared by patterns and the overall verdict.
type RiskLevel string

const (
	RiskLow     RiskLevel = "LOW"
	RiskMedium  RiskLevel = "MEDIUM"
	RiskHigh    RiskLevel = "HIGH"
	RiskUnknown RiskLevel = "UNKNOWN"
)

// RiskLevels lists every accepted literal, lowest first.
var RiskLevels = []RiskLevel{RiskLow, RiskMedium, RiskHigh, RiskUnknown}

func (r RiskLevel) Valid() bool {
	for _, l := range RiskLevels {
		if r == l {
			return true
		}
	}
	return false
}

func (RiskLevel) JSONSchema() *jsonschema.Schema {
	enum := make([]any, 0, len(RiskLevels))
	for _, l := range RiskLevels {
		enum = append(enum, string(l))
	}
	return &jsonschema.Schema{Type: "string", Enum: enum}
}

// DateRange bounds the period a pattern was observed in (YYYY-MM-DD).
type DateRange struct {
	Start string `json:"start,omitempty" jsonschema:"format=date"`
	End   string `json:"end,omitempty" jsonschema:"format=date"`
}

// Pattern is a suspicious or significant transaction pattern.
type Pattern struct {
	PatternType    string     `json:"pattern_type" jsonschema:"required" jsonschema_description:"Type of pattern (e.g. 'Structuring', 'Round Amount', 'Rapid Movement')"`
	Severity       RiskLevel  `json:"severity" jsonschema:"required" jsonschema_description:"Severity level of this pattern"`
	Description    string     `json:"description" jsonschema:"required" jsonschema_description:"Detailed description of the pattern"`
	TransactionIDs []string   `json:"transaction_ids" jsonschema_description:"Related transaction IDs"`
	DateRange      *DateRange `json:"date_range,omitempty" jsonschema:"nullable" jsonschema_description:"Start and end date of when the pattern was observed"`

	FrequencyAnomaly *bool `json:"frequency_anomaly,omitempty" jsonschema:"nullable" jsonschema_description:"Whether there is an unusual frequency"`
	AmountAnomaly    *bool `json:"amount_anomaly,omitempty" jsonschema:"nullable" jsonschema_description:"Whether there is an unusual amount pattern"`
	TimingAnomaly    *bool `json:"timing_anomaly,omitempty" jsonschema:"nullable" jsonschema_description:"Whether there is unusual timing"`
}

// RuleTriggeredAnalysis explains why the monitoring rule fired.
type RuleTriggeredAnalysis struct {
	RuleID                 string           `json:"rule_id" jsonschema:"required" jsonschema_description:"ID of the triggered rule"`
	RuleDescription        string           `json:"rule_description" jsonschema:"required" jsonschema_description:"Description of what the rule detects"`
	SupportingTransactions []string         `json:"supporting_transactions" jsonschema_description:"Transaction IDs that caused the trigger"`
	ThresholdBreached      map[string]Value `json:"threshold_breached,omitempty" jsonschema:"nullable" jsonschema_description:"Details of the threshold breached (e.g. amount, count)"`
}

// Output is the structured result of one alert analysis. It is built once per
// run from the model response and not mutated afterwards.
type Output struct {
	TransactionSummary     string                `json:"transaction_summary" jsonschema:"required" jsonschema_description:"Narrative description of the transaction history: the rule that triggered the analysis, overall behaviour, inflow vs outflow, notable trends or anomalies, key counterparties and high-level patterns."`
	RuleTriggeredAnalysis  RuleTriggeredAnalysis `json:"rule_triggered_analysis" jsonschema:"required" jsonschema_description:"Analysis of the specific rule that triggered this alert"`
	Counterparties         []string              `json:"counterparties" jsonschema_description:"Counterparties the investigated company transacted with"`
	SuspiciousPatterns     []Pattern             `json:"suspicious_patterns" jsonschema_description:"Suspicious or significant transaction patterns. Leave empty if none are identified."`
	OverallTransactionRisk RiskLevel             `json:"overall_transaction_risk" jsonschema:"required" jsonschema_description:"Overall risk level based on transaction analysis"`
	KeyFindings            []string              `json:"key_findings" jsonschema_description:"Key findings from the transaction history analysis"`
	RedFlags               []string              `json:"red_flags" jsonschema_description:"Transaction-related red flags. Leave empty if none are present."`
	DataSource             string                `json:"data_source" jsonschema:"required" jsonschema_description:"Source of transaction data (e.g. 'Core Banking System')"`
	AnalysisTimestamp      Timestamp             `json:"analysis_timestamp" jsonschema:"nullable" jsonschema_description:"Timestamp when the analysis was completed (ISO 8601, UTC when no offset is given)"`
	Notes                  *string               `json:"notes,omitempty" jsonschema:"nullable" jsonschema_description:"Additional notes or context from the analysis"`
}

// Normalize replaces nil lists with empty ones and stamps the analysis time
// when the model left it out.
func (o *Output) Normalize(now time.Time) {
	if o.Counterparties == nil {
		o.Counterparties = []string{}
	}
	if o.SuspiciousPatterns == nil {
		o.SuspiciousPatterns = []Pattern{}
	}
	for i := range o.SuspiciousPatterns {
		if o.SuspiciousPatterns[i].TransactionIDs == nil {
			o.SuspiciousPatterns[i].TransactionIDs = []string{}
		}
	}
	if o.RuleTriggeredAnalysis.SupportingTransactions == nil {
		o.RuleTriggeredAnalysis.SupportingTransactions = []string{}
	}
	if o.KeyFindings == nil {
		o.KeyFindings = []string{}
	}
	if o.RedFlags == nil {
		o.RedFlags = []string{}
	}
	if o.AnalysisTimestamp.IsZero() {
		o.AnalysisTimestamp = Timestamp{now.UTC()}
	}
}
