package httpserver

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	appanalyses "github.com/bryanwahyu/aml-analyser/internal/application/analyses"
	domai "github.com/bryanwahyu/aml-analyser/internal/domain/ai"
	"github.com/bryanwahyu/aml-analyser/internal/domain/alerts"
	domain "github.com/bryanwahyu/aml-analyser/internal/domain/analysis"
	"github.com/bryanwahyu/aml-analyser/internal/infra/search/serpapi"
	"github.com/bryanwahyu/aml-analyser/internal/middleware"
)

// AnalysisService is the part of analyses.Service the API exposes.
type AnalysisService interface {
	Analyse(ctx context.Context, cmd appanalyses.AnalyseCommand) (*domain.Record, error)
	Get(ctx context.Context, tenant string, id domain.ID) (*domain.Record, error)
	List(ctx context.Context, tenant string, page, pageSize int) ([]*domain.Record, error)
	LatestByAlert(ctx context.Context, tenant, alertID string) (*domain.Record, error)
	FailuresByAlert(ctx context.Context, tenant, alertID string, limit int) ([]*domain.Failure, error)
}

// Searcher runs a web search; nil disables the search route.
type Searcher interface {
	Search(ctx context.Context, query, domain string, extra map[string]string) (map[string]any, error)
}

// Options configures NewRouter. Zero values disable the optional parts.
type Options struct {
	APIKeys        map[string]string
	AllowedOrigins []string
	Checks         map[string]middleware.HealthChecker
	Metrics        *middleware.Metrics
	Logger         *slog.Logger
	// MaxBodyBytes caps request bodies; 0 means 10 MiB.
	MaxBodyBytes int64
}

type Router struct {
	analyses AnalysisService
	search   Searcher
	logger   *slog.Logger
	maxBody  int64
}

func NewRouter(analyses AnalysisService, search Searcher, opts Options) http.Handler {
	r := &Router{analyses: analyses, search: search, logger: opts.Logger, maxBody: opts.MaxBodyBytes}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.maxBody <= 0 {
		r.maxBody = 10 << 20
	}

	mux := chi.NewRouter()
	if opts.Metrics != nil {
		mux.Use(opts.Metrics.Middleware)
	}
	mux.Use(middleware.Logging(r.logger))
	if len(opts.AllowedOrigins) > 0 {
		mux.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
			MaxAge:         300,
		}))
	}
	mux.Use(middleware.APIKeyAuth(opts.APIKeys))

	mux.Get("/health", middleware.HealthHandler(opts.Checks))
	mux.Get("/healthz", middleware.LivenessHandler)
	mux.Get("/readyz", middleware.ReadinessHandler)
	if opts.Metrics != nil {
		mux.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}

	mux.Route("/v1/{tenant}", func(rt chi.Router) {
		rt.Use(middleware.RequireValidTenant)
		rt.Post("/alerts/analyze", r.wrap(r.handleAnalyze))
		rt.Get("/alerts/{alertID}/analysis", r.wrap(r.handleLatestByAlert))
		rt.Get("/alerts/{alertID}/failures", r.wrap(r.handleFailures))
		rt.Get("/analyses", r.wrap(r.handleList))
		rt.Get("/analyses/{id}", r.wrap(r.handleGet))
		if search != nil {
			rt.Post("/search", r.wrap(r.handleSearch))
		}
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// badRequest marks client input errors.
type badRequest struct{ msg string }

func (e badRequest) Error() string { return e.msg }

func badRequestf(format string, args ...any) error { return badRequest{msg: fmt.Sprintf(format, args...)} }

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}

		var br badRequest
		var verr *domai.ValidationError
		var rerr *domai.RemoteError
		switch {
		case errors.As(err, &br):
			middleware.WriteError(w, http.StatusBadRequest, br.msg)
		case errors.Is(err, domain.ErrNotFound), errors.Is(err, sql.ErrNoRows):
			middleware.WriteError(w, http.StatusNotFound, "not found")
		case errors.As(err, &verr):
			middleware.WriteJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"error":      "model output does not match schema",
				"schema":     verr.Schema,
				"violations": verr.Violations,
			})
		case errors.Is(err, domai.ErrQuotaExceeded):
			middleware.WriteError(w, http.StatusTooManyRequests, "ai quota exceeded")
		case errors.As(err, &rerr):
			middleware.WriteError(w, http.StatusBadGateway, rerr.Error())
		case errors.Is(err, context.DeadlineExceeded):
			middleware.WriteError(w, http.StatusGatewayTimeout, "deadline exceeded")
		default:
			r.logger.ErrorContext(req.Context(), "request failed", "path", req.URL.Path, "error", err)
			middleware.WriteError(w, http.StatusInternalServerError, "internal error")
		}
	}
}

func (r *Router) decode(w http.ResponseWriter, req *http.Request, v any) error {
	req.Body = http.MaxBytesReader(w, req.Body, r.maxBody)
	dec := json.NewDecoder(req.Body)
	if err := dec.Decode(v); err != nil {
		return badRequestf("invalid JSON body: %v", err)
	}
	return nil
}

// POST /v1/{tenant}/alerts/analyze
// Body: {"alert_id": "...", "alert_information": {...}, "documents": [...], "rfi_options": [...], "additional_context": "..."}
func (r *Router) handleAnalyze(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")

	var body alerts.Investigation
	if err := r.decode(w, req, &body); err != nil {
		return err
	}
	body.AlertID = middleware.SanitizeString(body.AlertID)
	if err := middleware.ValidateAlertID(body.AlertID); err != nil {
		return badRequest{msg: err.Error()}
	}

	rec, err := r.analyses.Analyse(req.Context(), appanalyses.AnalyseCommand{
		TenantID:      tenant,
		Investigation: body,
	})
	if err != nil {
		return err
	}
	middleware.WriteJSON(w, http.StatusCreated, rec)
	return nil
}

// GET /v1/{tenant}/analyses?page=&page_size=
func (r *Router) handleList(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	page := middleware.ValidatePage(middleware.QueryInt(req, "page"))
	size := middleware.ValidateLimit(middleware.QueryInt(req, "page_size"))

	list, err := r.analyses.List(req.Context(), tenant, page, size)
	if err != nil {
		return err
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"page":      page,
		"page_size": size,
		"items":     list,
	})
	return nil
}

// GET /v1/{tenant}/analyses/{id}
func (r *Router) handleGet(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	id := chi.URLParam(req, "id")
	if err := middleware.ValidateAnalysisID(id); err != nil {
		return badRequest{msg: err.Error()}
	}

	rec, err := r.analyses.Get(req.Context(), tenant, domain.ID(id))
	if err != nil {
		return err
	}
	middleware.WriteJSON(w, http.StatusOK, rec)
	return nil
}

// GET /v1/{tenant}/alerts/{alertID}/analysis
func (r *Router) handleLatestByAlert(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	alertID := chi.URLParam(req, "alertID")
	if err := middleware.ValidateAlertID(alertID); err != nil {
		return badRequest{msg: err.Error()}
	}

	rec, err := r.analyses.LatestByAlert(req.Context(), tenant, alertID)
	if err != nil {
		return err
	}
	middleware.WriteJSON(w, http.StatusOK, rec)
	return nil
}

// GET /v1/{tenant}/alerts/{alertID}/failures?limit=20
func (r *Router) handleFailures(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	alertID := chi.URLParam(req, "alertID")
	if err := middleware.ValidateAlertID(alertID); err != nil {
		return badRequest{msg: err.Error()}
	}
	limit := middleware.ValidateLimit(middleware.QueryInt(req, "limit"))

	list, err := r.analyses.FailuresByAlert(req.Context(), tenant, alertID, limit)
	if err != nil {
		return err
	}
	middleware.WriteJSON(w, http.StatusOK, list)
	return nil
}

// POST /v1/{tenant}/search
// Body: {"query": "...", "domain": "google.com", "params": {"num": "5"}}
func (r *Router) handleSearch(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Query  string            `json:"query"`
		Domain *string           `json:"domain"`
		Params map[string]string `json:"params"`
	}
	if err := r.decode(w, req, &body); err != nil {
		return err
	}
	body.Query = middleware.SanitizeString(body.Query)
	if body.Query == "" {
		return badRequestf("query is required")
	}
	// an absent domain means the default; an explicit "" omits google_domain
	domainName := serpapi.DefaultDomain
	if body.Domain != nil {
		domainName = *body.Domain
	}

	res, err := r.search.Search(req.Context(), body.Query, domainName, body.Params)
	if err != nil {
		return err
	}
	middleware.WriteJSON(w, http.StatusOK, res)
	return nil
}
