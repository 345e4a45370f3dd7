package analyses

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bryanwahyu/aml-analyser/internal/application"
	appai "github.com/bryanwahyu/aml-analyser/internal/application/ai"
	"github.com/bryanwahyu/aml-analyser/internal/domain/ai"
	"github.com/bryanwahyu/aml-analyser/internal/domain/alerts"
	domain "github.com/bryanwahyu/aml-analyser/internal/domain/analysis"
)

// Analyser is the agent as seen by the service.
type Analyser interface {
	RunDetailed(ctx context.Context, info *alerts.Information, docs []alerts.Document, rfis []string, additionalContext string) (*appai.Result, error)
}

// Outcome labels reported to Observe.
const (
	OutcomeSuccess         = "success"
	OutcomeRemoteError     = "remote_error"
	OutcomeValidationError = "validation_error"
	OutcomeStorageError    = "storage_error"
	OutcomeError           = "error"
)

// Service runs analyses for tenants and keeps an audit trail: the archived
// prompt and response, the validated record, and every failed run.
type Service struct {
	Analyser Analyser
	Repo     domain.Repository
	Failures domain.FailureRepository
	Archive  domain.ArchiveStore // optional
	Clock    application.Clock
	Logger   *slog.Logger
	// Observe is called once per Analyse with its outcome (optional).
	Observe func(outcome string, d time.Duration)
	// Timeout bounds the model call; zero leaves it to the caller's context.
	Timeout time.Duration
}

// AnalyseCommand is one alert to analyse for a tenant.
type AnalyseCommand struct {
	TenantID      string
	Investigation alerts.Investigation
}

// Analyse runs the agent once. No record is stored when the run fails; the
// failure is stored instead and the original error returned.
func (s *Service) Analyse(ctx context.Context, cmd AnalyseCommand) (rec *domain.Record, err error) {
	start := time.Now()
	id := uuid.New().String()
	inv := cmd.Investigation

	phase := domain.PhaseOther
	defer func() {
		outcome := OutcomeSuccess
		if err != nil {
			outcome = outcomeFor(phase)
		}
		if s.Observe != nil {
			s.Observe(outcome, time.Since(start))
		}
	}()

	runCtx := ctx
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}
	res, err := s.Analyser.RunDetailed(runCtx, inv.Information, inv.Documents, inv.RFIOptions, inv.AdditionalContext)
	if err != nil {
		phase = phaseOf(err)
		s.recordFailure(ctx, cmd.TenantID, inv.AlertID, id, phase, err)
		return nil, err
	}

	rec = &domain.Record{
		ID:        domain.ID(id),
		TenantID:  cmd.TenantID,
		AlertID:   inv.AlertID,
		Model:     res.Model,
		Risk:      res.Output.OverallTransactionRisk,
		Output:    *res.Output,
		CreatedAt: s.now(),
	}

	if s.Archive != nil {
		prefix := fmt.Sprintf("%s/%s/%s", cmd.TenantID, alertKey(inv.AlertID), id)
		if rec.PromptURL, err = s.Archive.Put(ctx, prefix+"/prompt.md", []byte(res.UserMessage), "text/markdown"); err == nil {
			rec.ResponseURL, err = s.Archive.Put(ctx, prefix+"/response.json", []byte(res.RawResponse), "application/json")
		}
		if err != nil {
			phase = domain.PhaseStorage
			err = fmt.Errorf("archive analysis %s: %w", id, err)
			s.recordFailure(ctx, cmd.TenantID, inv.AlertID, id, phase, err)
			return nil, err
		}
	}

	if err = s.Repo.Save(ctx, rec); err != nil {
		phase = domain.PhaseStorage
		err = fmt.Errorf("save analysis %s: %w", id, err)
		s.recordFailure(ctx, cmd.TenantID, inv.AlertID, id, phase, err)
		return nil, err
	}

	s.logger().InfoContext(ctx, "analysis stored",
		"tenant", cmd.TenantID, "alert_id", inv.AlertID, "analysis_id", id,
		"risk", rec.Risk, "duration", time.Since(start))
	return rec, nil
}

// Get returns one stored analysis.
func (s *Service) Get(ctx context.Context, tenant string, id domain.ID) (*domain.Record, error) {
	return s.Repo.Get(ctx, tenant, id)
}

// List pages through a tenant's analyses, newest first.
func (s *Service) List(ctx context.Context, tenant string, page, pageSize int) ([]*domain.Record, error) {
	return s.Repo.Paginate(ctx, tenant, page, pageSize)
}

// LatestByAlert returns the newest analysis of an alert.
func (s *Service) LatestByAlert(ctx context.Context, tenant, alertID string) (*domain.Record, error) {
	return s.Repo.LatestByAlert(ctx, tenant, alertID)
}

// FailuresByAlert lists failed runs of an alert, newest first.
func (s *Service) FailuresByAlert(ctx context.Context, tenant, alertID string, limit int) ([]*domain.Failure, error) {
	if s.Failures == nil {
		return []*domain.Failure{}, nil
	}
	return s.Failures.ListByAlert(ctx, tenant, alertID, limit)
}

func (s *Service) recordFailure(ctx context.Context, tenant, alertID, analysisID string, phase domain.Phase, cause error) {
	s.logger().WarnContext(ctx, "analysis failed",
		"tenant", tenant, "alert_id", alertID, "analysis_id", analysisID, "phase", phase, "error", cause)
	if s.Failures == nil {
		return
	}

	f := &domain.Failure{
		TenantID:    tenant,
		AlertID:     alertID,
		AnalysisID:  analysisID,
		Phase:       phase,
		Message:     cause.Error(),
		DetailsJSON: failureDetails(cause),
		CreatedAt:   s.now(),
	}
	// audit write errors are only logged
	if err := s.Failures.Save(context.WithoutCancel(ctx), f); err != nil {
		s.logger().ErrorContext(ctx, "save analysis failure", "analysis_id", analysisID, "error", err)
	}
}

func (s *Service) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock.Now()
}

func (s *Service) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

func phaseOf(err error) domain.Phase {
	var verr *ai.ValidationError
	var rerr *ai.RemoteError
	switch {
	case errors.As(err, &verr):
		return domain.PhaseValidation
	case errors.As(err, &rerr):
		return domain.PhaseRemote
	default:
		return domain.PhaseOther
	}
}

func outcomeFor(p domain.Phase) string {
	switch p {
	case domain.PhaseRemote:
		return OutcomeRemoteError
	case domain.PhaseValidation:
		return OutcomeValidationError
	case domain.PhaseStorage:
		return OutcomeStorageError
	default:
		return OutcomeError
	}
}

// failureDetails keeps what an investigator needs to replay the failure.
func failureDetails(err error) string {
	details := map[string]any{}
	var verr *ai.ValidationError
	if errors.As(err, &verr) {
		details["schema"] = verr.Schema
		details["violations"] = verr.Violations
		details["raw_response"] = verr.Raw
	}
	var rerr *ai.RemoteError
	if errors.As(err, &rerr) {
		details["provider"] = rerr.Provider
		details["status_code"] = rerr.StatusCode
	}
	if len(details) == 0 {
		return ""
	}
	b, err := json.Marshal(details)
	if err != nil {
		return ""
	}
	return string(b)
}

func alertKey(alertID string) string {
	if alertID == "" {
		return "-"
	}
	return alertID
}
