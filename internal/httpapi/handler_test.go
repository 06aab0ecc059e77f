package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finmetrics/internal/orchestrator"
	"finmetrics/internal/provider"
	"finmetrics/internal/testutil"
)

func newTestRouter(t *testing.T, primary, fallback *testutil.StubAdapter) http.Handler {
	t.Helper()
	adapters := []provider.Adapter{primary}
	if fallback != primary {
		adapters = append(adapters, fallback)
	}
	reg, err := provider.NewRegistry(adapters, primary.AdapterName, fallback.AdapterName)
	require.NoError(t, err)
	orc := orchestrator.New(reg, true, nil)
	h := New(orc, nil, nil, "http://localhost:5173", primary.AdapterName)
	return h.Router(nil)
}

func doRequest(t *testing.T, router http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func decodeDetail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Detail string `json:"detail"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Detail
}

func TestStatusForCoversEveryKind(t *testing.T) {
	assert.Equal(t, http.StatusTooManyRequests, StatusFor(provider.KindRateLimited))
	assert.Equal(t, http.StatusNotFound, StatusFor(provider.KindNotFound))
	assert.Equal(t, http.StatusUnauthorized, StatusFor(provider.KindUnauthorized))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(provider.KindUnknown))
}

func TestHealth(t *testing.T) {
	primary := testutil.NewStubAdapter("yahoo", []provider.Statement{testutil.Statement("AAPL")}, nil)
	router := newTestRouter(t, primary, primary)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/health")

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "yahoo", body["provider"])
}

func TestFinancialsSuccess(t *testing.T) {
	primary := testutil.NewStubAdapter("yahoo", []provider.Statement{testutil.Statement("AAPL")}, nil)
	router := newTestRouter(t, primary, primary)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/financials/aapl")

	require.Equal(t, http.StatusOK, rec.Code)
	var body FinancialsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "AAPL", body.Ticker, "path ticker is uppercased")
	assert.Equal(t, "yahoo", body.Provider)
	assert.Equal(t, 391_035_000_000.0, *body.Revenues)
	assert.Equal(t, -23_405_000_000.0, body.WorkingCapital)
	require.NotNil(t, body.ROCE)
	assert.InDelta(t, 0.6534, *body.ROCE, 0.0001)
	require.NotNil(t, body.ROCEPercent)
	assert.Equal(t, "65.34%", *body.ROCEPercent)
}

func TestFinancialsValidation(t *testing.T) {
	primary := testutil.NewStubAdapter("yahoo", []provider.Statement{testutil.Statement("AAPL")}, nil)
	router := newTestRouter(t, primary, primary)

	tests := []struct {
		name   string
		target string
	}{
		{"bad timeframe", "/api/v1/financials/AAPL?timeframe=weekly"},
		{"limit too small", "/api/v1/financials/AAPL?limit=0"},
		{"limit too large", "/api/v1/financials/AAPL?limit=11"},
		{"limit not a number", "/api/v1/financials/AAPL?limit=abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, router, http.MethodGet, tt.target)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.NotEmpty(t, decodeDetail(t, rec))
			assert.Equal(t, 0, primary.Calls, "invalid input must never reach a provider")
		})
	}
}

func TestProviderErrorTranslation(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"rate limited", provider.NewRateLimited("alphavantage", "daily quota reached"), http.StatusTooManyRequests},
		{"not found", provider.NewNotFound("alphavantage", "no data for ticker"), http.StatusNotFound},
		{"unauthorized", provider.NewUnauthorized("alphavantage", "bad key"), http.StatusUnauthorized},
		{"unknown", provider.NewUnknown("alphavantage", "upstream exploded", assert.AnError), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// primary is its own fallback so classified errors surface directly
			primary := testutil.NewStubAdapter("alphavantage", nil, tt.err)
			router := newTestRouter(t, primary, primary)

			rec := doRequest(t, router, http.MethodGet, "/api/v1/financials/AAPL")

			assert.Equal(t, tt.wantStatus, rec.Code)
			detail := decodeDetail(t, rec)
			assert.Contains(t, detail, "(Provider: alphavantage)")
			assert.NotContains(t, rec.Body.String(), assert.AnError.Error(), "the internal cause must never leak")
		})
	}
}

func TestRateLimitedPrimaryDoesNotFallBack(t *testing.T) {
	primary := testutil.NewStubAdapter("alphavantage", nil,
		provider.NewRateLimited("alphavantage", "daily quota reached"))
	fallback := testutil.NewStubAdapter("yahoo", []provider.Statement{testutil.Statement("AAPL")}, nil)
	router := newTestRouter(t, primary, fallback)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/financials/AAPL")

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, decodeDetail(t, rec), "(Provider: alphavantage)")
	assert.Equal(t, 0, fallback.Calls)
}

func TestNotFoundOnBothProvidersNamesFallback(t *testing.T) {
	primary := testutil.NewStubAdapter("alphavantage", nil,
		provider.NewNotFound("alphavantage", "no data"))
	fallback := testutil.NewStubAdapter("yahoo", nil,
		provider.NewNotFound("yahoo", "nothing here either"))
	router := newTestRouter(t, primary, fallback)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/financials/INVALIDTICKER")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, decodeDetail(t, rec), "(Provider: yahoo)", "the fallback's error wins")
	assert.Equal(t, 1, primary.Calls)
	assert.Equal(t, 1, fallback.Calls)
}

func TestFallbackRecoversFromPrimaryFailure(t *testing.T) {
	primary := testutil.NewStubAdapter("polygon", nil,
		provider.NewUnknown("polygon", "upstream exploded", nil))
	fallback := testutil.NewStubAdapter("yahoo", []provider.Statement{testutil.Statement("AAPL")}, nil)
	router := newTestRouter(t, primary, fallback)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/financials/AAPL")

	require.Equal(t, http.StatusOK, rec.Code)
	var body FinancialsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "yahoo", body.Provider)
}

func TestProviderQueryParamSelectsAdapter(t *testing.T) {
	primary := testutil.NewStubAdapter("yahoo", []provider.Statement{testutil.Statement("AAPL")}, nil)
	other := testutil.NewStubAdapter("polygon", []provider.Statement{testutil.Statement("AAPL")}, nil)
	reg, err := provider.NewRegistry([]provider.Adapter{primary, other}, "yahoo", "yahoo")
	require.NoError(t, err)
	h := New(orchestrator.New(reg, true, nil), nil, nil, "http://localhost:5173", "yahoo")
	router := h.Router(nil)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/financials/AAPL?provider=polygon")

	require.Equal(t, http.StatusOK, rec.Code)
	var body FinancialsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "polygon", body.Provider)
	assert.Equal(t, 0, primary.Calls)
	assert.Equal(t, 1, other.Calls)
}

func TestUnknownProviderNameServedByDefault(t *testing.T) {
	primary := testutil.NewStubAdapter("yahoo", []provider.Statement{testutil.Statement("AAPL")}, nil)
	router := newTestRouter(t, primary, primary)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/financials/AAPL?provider=bogus")

	require.Equal(t, http.StatusOK, rec.Code)
	var body FinancialsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "yahoo", body.Provider, "unrecognized names fall back to the default silently")
}

func TestMetricsSuccess(t *testing.T) {
	primary := testutil.NewStubAdapter("yahoo", []provider.Statement{testutil.Statement("AAPL")}, nil)
	router := newTestRouter(t, primary, primary)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/metrics/AAPL")

	require.Equal(t, http.StatusOK, rec.Code)
	var body MetricsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "AAPL", body.Ticker)
	require.NotNil(t, body.ROCE)
	assert.InDelta(t, 0.6534, *body.ROCE, 0.0001)
	assert.Equal(t, 106_629_000_000.0, body.TotalDebt)
	require.NotNil(t, body.EnterpriseValue)
	assert.Equal(t, 3_476_686_000_000.0, *body.EnterpriseValue)
	require.NotNil(t, body.EarningsYield)
	assert.InDelta(t, 0.03544, *body.EarningsYield, 0.0001)
	assert.Empty(t, body.Notes)
}

func TestMetricsNotesExplainMissingInputs(t *testing.T) {
	sparse := provider.Statement{
		Ticker: "SPARSE",
		Date:   "2024-09-28",
		Period: provider.PeriodAnnual,
	}
	primary := testutil.NewStubAdapter("yahoo", []provider.Statement{sparse}, nil)
	router := newTestRouter(t, primary, primary)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/metrics/SPARSE")

	require.Equal(t, http.StatusOK, rec.Code)
	var body MetricsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Nil(t, body.ROCE)
	assert.Nil(t, body.EnterpriseValue)
	assert.Contains(t, body.Notes, "Operating income not available")
	assert.Contains(t, body.Notes, "Cash and cash equivalents not reported separately - EV calculation may be overstated")
	assert.Contains(t, body.Notes, "Enterprise value not available - cannot calculate earnings yield")
}

func TestMetricsMarketCapDerivedFromPriceAndShares(t *testing.T) {
	s := testutil.Statement("AAPL")
	s.MarketCap = nil
	primary := testutil.NewStubAdapter("yahoo", []provider.Statement{s}, nil)
	router := newTestRouter(t, primary, primary)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/metrics/AAPL")

	require.Equal(t, http.StatusOK, rec.Code)
	var body MetricsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotNil(t, body.MarketCap)
	assert.Equal(t, 225.0*15_100_000_000, *body.MarketCap)
}

func TestSchwabEndpointsUnavailableWhenNotConfigured(t *testing.T) {
	primary := testutil.NewStubAdapter("yahoo", []provider.Statement{testutil.Statement("AAPL")}, nil)
	router := newTestRouter(t, primary, primary)

	for _, target := range []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/oauth/connect"},
		{http.MethodGet, "/api/v1/oauth/status"},
		{http.MethodPost, "/api/v1/oauth/refresh"},
		{http.MethodPost, "/api/v1/oauth/disconnect"},
		{http.MethodGet, "/api/v1/oauth/quote/AAPL"},
		{http.MethodGet, "/api/v1/oauth/quotes?symbols=AAPL"},
	} {
		rec := doRequest(t, router, target.method, target.path)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, "%s %s", target.method, target.path)
	}
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	primary := testutil.NewStubAdapter("yahoo", []provider.Statement{testutil.Statement("AAPL")}, nil)
	reg, err := provider.NewRegistry([]provider.Adapter{primary}, "yahoo", "yahoo")
	require.NoError(t, err)
	h := New(orchestrator.New(reg, true, nil), nil, nil, "http://localhost:5173", "yahoo")
	router := h.Router([]string{"http://localhost:5173"})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
