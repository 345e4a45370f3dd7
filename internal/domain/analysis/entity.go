package analysis

import "time"

// ID identifier type
type ID string

// Record is a validated analysis stored for auditing and retrieval.
type Record struct {
	ID          ID        `json:"id"`
	TenantID    string    `json:"tenant_id"`
	AlertID     string    `json:"alert_id,omitempty"`
	Model       string    `json:"model"`
	Risk        RiskLevel `json:"overall_transaction_risk"`
	Output      Output    `json:"output"`
	PromptURL   string    `json:"prompt_url,omitempty"`
	ResponseURL string    `json:"response_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Phase names the step of a run that failed.
type Phase string

const (
	PhaseRemote     Phase = "remote"
	PhaseValidation Phase = "validation"
	PhaseStorage    Phase = "storage"
	PhaseOther      Phase = "other"
)

// Failure is a persisted record of an analysis run that produced no result.
type Failure struct {
	ID          int64     `json:"id"`
	TenantID    string    `json:"tenant_id"`
	AlertID     string    `json:"alert_id"`
	AnalysisID  string    `json:"analysis_id,omitempty"`
	Phase       Phase     `json:"phase"`
	Message     string    `json:"message"`
	DetailsJSON string    `json:"details_json,omitempty"` // raw JSON string
	CreatedAt   time.Time `json:"created_at"`
}
