package mysql

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
VALUES (?,?,?,?,?,?,?)
`
	created := f.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	res, err := r.db.ExecContext(ctx, q,
		stringOrDash(f.TenantID), stringOrDash(f.AlertID), stringOrDash(f.AnalysisID),
		stringOrDash(string(f.Phase)), stringOrDash(f.Message), jsonOrEmpty(f.DetailsJSON), created,
	)
	if err != nil {
		return err
	}
	if id, err := res.LastInsertId(); err == nil {
		f.ID = id
	}
	return nil
}

func (r *FailureRepository) ListByAlert(ctx context.Context, tenant string, alertID string, limit int) ([]*domain.Failure, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, tenant_id, alert_id, analysis_id, phase, message, details_json, created_at
FROM aml_analysis_failures
WHERE tenant_id = ? AND alert_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ?;`
	rows, err := r.db.QueryContext(ctx, q, tenant, stringOrDash(alertID), limit)
	if err != nil {
		return nil, err
	}
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
