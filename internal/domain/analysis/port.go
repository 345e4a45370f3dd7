package analysis

import (
	"context"
	"errors"
)

// Repository port for persisting and querying analyses
type Repository interface {
	Save(ctx context.Context, r *Record) error
	Get(ctx context.Context, tenant string, id ID) (*Record, error)
	Paginate(ctx context.Context, tenant string, page, pageSize int) ([]*Record, error)
	LatestByAlert(ctx context.Context, tenant string, alertID string) (*Record, error)
}

// FailureRepository persists runs that ended in an error.
type FailureRepository interface {
	Save(ctx context.Context, f *Failure) error
	ListByAlert(ctx context.Context, tenant string, alertID string, limit int) ([]*Failure, error)
}

// ArchiveStore keeps the exact prompt and model response of every run.
type ArchiveStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string) (string, error)
}

// ErrNotFound is returned by repositories when no row matches.
var ErrNotFound = errors.New("analysis not found")
