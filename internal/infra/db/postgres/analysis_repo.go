package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	domain "github.com/bryanwahyu/aml-analyser/internal/domain/analysis"
)

type AnalysisRepository struct {
	db *sql.DB
}

func NewAnalysisRepository(db *sql.DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

const analysisColumns = `id, tenant_id, alert_id, model, risk, output_json, prompt_url, response_url, created_at`

// Save inserts or updates an analysis record
func (r *AnalysisRepository) Save(ctx context.Context, a *domain.Record) error {
	const q = `
INSERT INTO aml_analyses
  (` + analysisColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (id) DO UPDATE SET
  risk=EXCLUDED.risk, output_json=EXCLUDED.output_json,
  prompt_url=EXCLUDED.prompt_url, response_url=EXCLUDED.response_url;
`
	output, err := json.Marshal(a.Output)
	if err != nil {
		return fmt.Errorf("encode analysis output: %w", err)
	}
	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = r.db.ExecContext(ctx, q,
		a.ID, stringOrDash(a.TenantID), stringOrDash(a.AlertID), a.Model, string(a.Risk),
		string(output), stringOrDash(a.PromptURL), stringOrDash(a.ResponseURL), createdAt,
	)
	return err
}

// Get by ID + Tenant
func (r *AnalysisRepository) Get(ctx context.Context, tenant string, id domain.ID) (*domain.Record, error) {
	const q = `SELECT ` + analysisColumns + `
FROM aml_analyses
WHERE tenant_id=$1 AND id=$2
LIMIT 1;`
	return scanAnalysis(r.db.QueryRowContext(ctx, q, tenant, id))
}

// Paginate returns a page of analysis records ordered by created_at desc
func (r *AnalysisRepository) Paginate(ctx context.Context, tenant string, page, pageSize int) ([]*domain.Record, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	const q = `SELECT ` + analysisColumns + `
FROM aml_analyses
WHERE tenant_id=$1
ORDER BY created_at DESC, id DESC
LIMIT $2 OFFSET $3;
`
	rows, err := r.db.QueryContext(ctx, q, tenant, pageSize, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*domain.Record{}
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// LatestByAlert returns the latest analysis for a given alert
func (r *AnalysisRepository) LatestByAlert(ctx context.Context, tenant string, alertID string) (*domain.Record, error) {
	const q = `SELECT ` + analysisColumns + `
FROM aml_analyses
WHERE tenant_id=$1 AND alert_id=$2
ORDER BY created_at DESC, id DESC
LIMIT 1;`
	return scanAnalysis(r.db.QueryRowContext(ctx, q, tenant, stringOrDash(alertID)))
}

func scanAnalysis(row scanner) (*domain.Record, error) {
	var a domain.Record
	var risk string
	var output []byte
	if err := row.Scan(&a.ID, &a.TenantID, &a.AlertID, &a.Model, &risk, &output, &a.PromptURL, &a.ResponseURL, &a.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(output, &a.Output); err != nil {
		return nil, fmt.Errorf("decode analysis %s: %w", a.ID, err)
	}
	a.Risk = domain.RiskLevel(risk)
	a.AlertID = dashToEmpty(a.AlertID)
	a.PromptURL = dashToEmpty(a.PromptURL)
	a.ResponseURL = dashToEmpty(a.ResponseURL)
	return &a, nil
}
