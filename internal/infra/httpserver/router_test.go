package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appanalyses "github.com/bryanwahyu/aml-analyser/internal/application/analyses"
	domai "github.com/bryanwahyu/aml-analyser/internal/domain/ai"
	domain "github.com/bryanwahyu/aml-analyser/internal/domain/analysis"
	"github.com/bryanwahyu/aml-analyser/internal/middleware"
)

const analysisID = "0b6f4c1e-6c4d-4a8e-9b8c-1f2e3d4c5b6a"

type fakeService struct {
	lastCmd  appanalyses.AnalyseCommand
	analyse  error
	page     int
	pageSize int
}

func (f *fakeService) Analyse(_ context.Context, cmd appanalyses.AnalyseCommand) (*domain.Record, error) {
	f.lastCmd = cmd
	if f.analyse != nil {
		return nil, f.analyse
	}
	return &domain.Record{ID: analysisID, TenantID: cmd.TenantID, AlertID: cmd.Investigation.AlertID, Risk: domain.RiskLow}, nil
}

func (f *fakeService) Get(_ context.Context, tenant string, id domain.ID) (*domain.Record, error) {
	if id != analysisID {
		return nil, domain.ErrNotFound
	}
	return &domain.Record{ID: id, TenantID: tenant}, nil
}

func (f *fakeService) List(_ context.Context, _ string, page, pageSize int) ([]*domain.Record, error) {
	f.page, f.pageSize = page, pageSize
	return []*domain.Record{}, nil
}

func (f *fakeService) LatestByAlert(_ context.Context, tenant, alertID string) (*domain.Record, error) {
	return &domain.Record{ID: analysisID, TenantID: tenant, AlertID: alertID}, nil
}

func (f *fakeService) FailuresByAlert(_ context.Context, tenant, alertID string, _ int) ([]*domain.Failure, error) {
	return []*domain.Failure{{ID: 1, TenantID: tenant, AlertID: alertID, Phase: domain.PhaseValidation}}, nil
}

type fakeSearcher struct {
	query, domain string
	extra         map[string]string
}

func (f *fakeSearcher) Search(_ context.Context, query, domain string, extra map[string]string) (map[string]any, error) {
	f.query, f.domain, f.extra = query, domain, extra
	return map[string]any{"organic_results": []any{}}, nil
}

func do(t *testing.T, h http.Handler, method, path, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter_Analyze(t *testing.T) {
	svc := &fakeService{}
	h := NewRouter(svc, nil, Options{})

	rec := do(t, h, http.MethodPost, "/v1/bank-a/alerts/analyze", `{
		"alert_id": "AL-7",
		"alert_information": {"customer": "ACME", "amount": 12000},
		"documents": [{"filename": "kyc.pdf", "summary": "ok"}],
		"rfi_options": ["Source of funds"],
		"additional_context": "  first alert\r\n  second line "
	}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var got domain.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, domain.ID(analysisID), got.ID)

	assert.Equal(t, "bank-a", svc.lastCmd.TenantID)
	inv := svc.lastCmd.Investigation
	assert.Equal(t, "AL-7", inv.AlertID)
	assert.Equal(t, 2, inv.Information.Len())
	require.Len(t, inv.Documents, 1)
	assert.Equal(t, []string{"Source of funds"}, inv.RFIOptions)
	assert.Equal(t, "  first alert\r\n  second line ", inv.AdditionalContext)
}

func TestRouter_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"validation", &domai.ValidationError{Schema: "s", Violations: []string{"v"}}, http.StatusUnprocessableEntity},
		{"quota", domai.NewRemoteError("vertex", 429, errors.New("quota")), http.StatusTooManyRequests},
		{"remote", domai.NewRemoteError("vertex", 503, errors.New("down")), http.StatusBadGateway},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewRouter(&fakeService{analyse: tt.err}, nil, Options{})
			rec := do(t, h, http.MethodPost, "/v1/bank-a/alerts/analyze", `{"alert_id":"AL-1"}`)
			assert.Equal(t, tt.code, rec.Code)

			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestRouter_BadInput(t *testing.T) {
	h := NewRouter(&fakeService{}, nil, Options{})

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/v1/bank-a/alerts/analyze", `{`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/v1/bank-a/alerts/analyze", `{"alert_id":""}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/v1/bank-a/alerts/analyze", `{"alert_id":"AL 1/../x"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/v1/bank-a/analyses/not-a-uuid", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/v1/bank$a/analyses", "").Code)
}

func TestRouter_Queries(t *testing.T) {
	svc := &fakeService{}
	h := NewRouter(svc, nil, Options{})

	rec := do(t, h, http.MethodGet, "/v1/bank-a/analyses/"+analysisID, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/v1/bank-a/analyses/11111111-2222-3333-4444-555555555555", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodGet, "/v1/bank-a/analyses?page=0&page_size=500", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, svc.page)
	assert.Equal(t, 100, svc.pageSize)

	rec = do(t, h, http.MethodGet, "/v1/bank-a/alerts/AL-7/analysis", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"alert_id":"AL-7"`)

	rec = do(t, h, http.MethodGet, "/v1/bank-a/alerts/AL-7/failures", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"phase":"validation"`)
}

func TestRouter_Search(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		h := NewRouter(&fakeService{}, nil, Options{})
		rec := do(t, h, http.MethodPost, "/v1/bank-a/search", `{"query":"ACME"}`)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("default domain", func(t *testing.T) {
		s := &fakeSearcher{}
		h := NewRouter(&fakeService{}, s, Options{})
		rec := do(t, h, http.MethodPost, "/v1/bank-a/search", `{"query":"ACME Ltd","params":{"num":"5"}}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "ACME Ltd", s.query)
		assert.Equal(t, "google.com", s.domain)
		assert.Equal(t, map[string]string{"num": "5"}, s.extra)
	})

	t.Run("explicit empty domain", func(t *testing.T) {
		s := &fakeSearcher{}
		h := NewRouter(&fakeService{}, s, Options{})
		rec := do(t, h, http.MethodPost, "/v1/bank-a/search", `{"query":"ACME","domain":""}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "", s.domain)
	})

	t.Run("query required", func(t *testing.T) {
		h := NewRouter(&fakeService{}, &fakeSearcher{}, Options{})
		rec := do(t, h, http.MethodPost, "/v1/bank-a/search", `{"query":"  "}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestRouter_Auth(t *testing.T) {
	h := NewRouter(&fakeService{}, nil, Options{
		APIKeys: map[string]string{"bank-a": "key-a", "bank-b": "key-b"},
		Metrics: middleware.NewMetrics(),
	})

	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodGet, "/v1/bank-a/analyses", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodGet, "/v1/bank-a/analyses", "", "Authorization", "Bearer nope").Code)
	assert.Equal(t, http.StatusForbidden, do(t, h, http.MethodGet, "/v1/bank-a/analyses", "", "Authorization", "Bearer key-b").Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/v1/bank-a/analyses", "", "Authorization", "Bearer key-a").Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/v1/bank-a/analyses", "", "Authorization", "key-a").Code)

	// probes and metrics stay public
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/healthz", "").Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/readyz", "").Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/health", "").Code)

	rec := do(t, h, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `aml_analyser_http_requests_total{code="200",method="GET",route="/v1/{tenant}/analyses"}`)
}

func TestRouter_Health(t *testing.T) {
	h := NewRouter(&fakeService{}, nil, Options{
		Checks: map[string]middleware.HealthChecker{
			"database": middleware.CheckFunc(func(context.Context) error { return errors.New("down") }),
		},
	})
	rec := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"database"`)
}
