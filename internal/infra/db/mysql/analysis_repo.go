package mysql

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

// Save inserts an analysis record
func (r *AnalysisRepository) Save(ctx context.Context, a *domain.Record) error {
	const q = `
INSERT INTO aml_analyses
  (` + analysisColumns + `)
VALUES (?,?,?,?,?,?,?,?,?)
ON DUPLICATE KEY UPDATE
  risk=VALUES(risk), output_json=VALUES(output_json),
  prompt_url=VALUES(prompt_url), response_url=VALUES(response_url);
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
WHERE tenant_id=? AND id=?
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
WHERE tenant_id=?
ORDER BY created_at DESC, id DESC
LIMIT ? OFFSET ?;
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
WHERE tenant_id=? AND alert_id=?
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
