package postgres

import (
	"context"
	"database/sql"
	"time"

	domain "github.com/bryanwahyu/aml-analyser/internal/domain/analysis"
)

type FailureRepository struct {
	db *sql.DB
}

func NewFailureRepository(db *sql.DB) *FailureRepository { return &FailureRepository{db: db} }

func (r *FailureRepository) Save(ctx context.Context, f *domain.Failure) error {
	const q = `
INSERT INTO aml_analysis_failures
  (tenant_id, alert_id, analysis_id, phase, message, details_json, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
RETURNING id;`
	created := f.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	return r.db.QueryRowContext(ctx, q,
		stringOrDash(f.TenantID), stringOrDash(f.AlertID), stringOrDash(f.AnalysisID),
		stringOrDash(string(f.Phase)), stringOrDash(f.Message), jsonOrEmpty(f.DetailsJSON), created,
	).Scan(&f.ID)
}

func (r *FailureRepository) ListByAlert(ctx context.Context, tenant string, alertID string, limit int) ([]*domain.Failure, error) {
	if limit <= 0 { limit = 20 }
	const q = `
SELECT id, tenant_id, alert_id, analysis_id, phase, message, details_json, created_at
FROM aml_analysis_failures
WHERE tenant_id = $1 AND alert_id = $2
ORDER BY created_at DESC, id DESC
LIMIT $3;`
	rows, err := r.db.QueryContext(ctx, q, tenant, stringOrDash(alertID), limit)
	if err != nil { return nil, err }
	defer rows.Close()

	out := []*domain.Failure{}
	for rows.Next() {
		var f domain.Failure
		var phase string
		if err := rows.Scan(&f.ID, &f.TenantID, &f.AlertID, &f.AnalysisID, &phase, &f.Message, &f.DetailsJSON, &f.CreatedAt); err != nil {
			return nil, err
		}
		f.Phase = domain.Phase(phase)
		f.AlertID = dashToEmpty(f.AlertID)
		f.AnalysisID = dashToEmpty(f.AnalysisID)
		out = append(out, &f)
	}
	return out, rows.Err()
}
