package httpapi

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"finmetrics/internal/metrics"
	"finmetrics/internal/orchestrator"
	"finmetrics/internal/provider"
	"finmetrics/internal/schwab"
)

// Handler is the HTTP boundary. It validates inputs, delegates to the
// orchestrator, and translates outcomes to the external contract.
type Handler struct {
	orc         *orchestrator.Orchestrator
	schwab      *schwab.Client // nil when the Schwab integration is not configured
	logger      *slog.Logger
	frontendURL string
	defaultName string
}

// New creates a Handler. schwabClient may be nil.
func New(orc *orchestrator.Orchestrator, schwabClient *schwab.Client, logger *slog.Logger, frontendURL, defaultProvider string) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		orc:         orc,
		schwab:      schwabClient,
		logger:      logger,
		frontendURL: frontendURL,
		defaultName: defaultProvider,
	}
}

// Router builds the chi router with all endpoints mounted.
func (h *Handler) Router(corsOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger(h.logger))
	r.Use(cors(corsOrigins))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", h.handleHealth)
		r.Get("/financials/{ticker}", h.handleFinancials)
		r.Get("/metrics/{ticker}", h.handleMetrics)

		r.Route("/oauth", func(r chi.Router) {
			r.Get("/connect", h.handleSchwabConnect)
			r.Get("/callback", h.handleSchwabCallback)
			r.Get("/status", h.handleSchwabStatus)
			r.Post("/refresh", h.handleSchwabRefresh)
			r.Post("/disconnect", h.handleSchwabDisconnect)
			r.Get("/quote/{symbol}", h.handleSchwabQuote)
			r.Get("/quotes", h.handleSchwabQuotes)
		})
	})

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "healthy",
		"service":  "finmetrics",
		"provider": h.defaultName,
	})
}

// fetchParams are the validated inputs shared by the data endpoints.
type fetchParams struct {
	ticker   string
	period   provider.Period
	limit    int
	provider string
}

func parseFetchParams(r *http.Request, withLimit bool) (fetchParams, string) {
	p := fetchParams{limit: 1}

	p.ticker = strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "ticker")))
	if p.ticker == "" {
		return p, "ticker must not be empty"
	}

	timeframe := r.URL.Query().Get("timeframe")
	if timeframe == "" {
		timeframe = string(provider.PeriodAnnual)
	}
	p.period = provider.Period(timeframe)
	if !p.period.Valid() {
		return p, "timeframe must be 'annual' or 'quarterly'"
	}

	if withLimit {
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 || n > 10 {
				return p, "limit must be an integer between 1 and 10"
			}
			p.limit = n
		}
	}

	p.provider = r.URL.Query().Get("provider")
	return p, ""
}

// FinancialsResponse is the external shape of the financials endpoint.
type FinancialsResponse struct {
	Ticker       string `json:"ticker"`
	Date         string `json:"date"`
	Period       string `json:"period"`
	FiscalYear   string `json:"fiscal_year,omitempty"`
	FiscalPeriod string `json:"fiscal_period,omitempty"`
	Provider     string `json:"provider"`

	Revenues        *float64 `json:"revenues"`
	GrossProfit     *float64 `json:"gross_profit"`
	OperatingIncome *float64 `json:"operating_income"`
	NetIncome       *float64 `json:"net_income"`

	CurrentAssets      *float64 `json:"current_assets"`
	CurrentLiabilities *float64 `json:"current_liabilities"`
	TotalAssets        *float64 `json:"total_assets"`
	TotalLiabilities   *float64 `json:"total_liabilities"`
	Equity             *float64 `json:"equity"`

	WorkingCapital float64  `json:"working_capital"`
	ROCE           *float64 `json:"roce"`
	ROCEPercent    *string  `json:"roce_percent"`
}

func (h *Handler) handleFinancials(w http.ResponseWriter, r *http.Request) {
	params, problem := parseFetchParams(r, true)
	if problem != "" {
		writeBadRequest(w, problem)
		return
	}

	result, err := h.orc.Fetch(r.Context(), params.ticker, params.period, params.limit, params.provider)
	if err != nil {
		writeProviderError(w, err)
		return
	}

	latest := result.Statements[0]
	roce := metrics.ROCE(latest.OperatingIncome, latest.TotalAssets, latest.CurrentLiabilities)

	writeJSON(w, http.StatusOK, FinancialsResponse{
		Ticker:       latest.Ticker,
		Date:         latest.Date,
		Period:       string(latest.Period),
		FiscalYear:   latest.FiscalYear,
		FiscalPeriod: latest.FiscalPeriod,
		Provider:     result.Provider,

		Revenues:        latest.Revenues,
		GrossProfit:     latest.GrossProfit,
		OperatingIncome: latest.OperatingIncome,
		NetIncome:       latest.NetIncome,

		CurrentAssets:      latest.CurrentAssets,
		CurrentLiabilities: latest.CurrentLiabilities,
		TotalAssets:        latest.TotalAssets,
		TotalLiabilities:   latest.TotalLiabilities,
		Equity:             latest.Equity,

		WorkingCapital: metrics.WorkingCapital(latest.CurrentAssets, latest.CurrentLiabilities),
		ROCE:           roce,
		ROCEPercent:    metrics.Percent(roce),
	})
}

// MetricsResponse is the external shape of the metrics endpoint.
type MetricsResponse struct {
	Ticker   string `json:"ticker"`
	Date     string `json:"date"`
	Period   string `json:"period"`
	Provider string `json:"provider"`

	ROCE            *float64 `json:"roce"`
	ROCEPercent     *string  `json:"roce_percent"`
	WorkingCapital  float64  `json:"working_capital"`
	CapitalEmployed float64  `json:"capital_employed"`

	EarningsYield        *float64 `json:"earnings_yield"`
	EarningsYieldPercent *string  `json:"earnings_yield_percent"`
	EBIT                 *float64 `json:"ebit"`

	EnterpriseValue   *float64 `json:"enterprise_value"`
	MarketCap         *float64 `json:"market_cap"`
	StockPrice        *float64 `json:"stock_price"`
	SharesOutstanding *float64 `json:"shares_outstanding"`

	TotalDebt    float64  `json:"total_debt"`
	Cash         *float64 `json:"cash_and_equivalents"`
	CurrentDebt  *float64 `json:"current_debt"`
	LongTermDebt *float64 `json:"long_term_debt"`

	TotalAssets        *float64 `json:"total_assets"`
	CurrentLiabilities *float64 `json:"current_liabilities"`

	Notes []string `json:"notes"`
}

func (h *Handler) handleMetrics(w http.ResponseWriter, r *http.Request) {
	params, problem := parseFetchParams(r, false)
	if problem != "" {
		writeBadRequest(w, problem)
		return
	}

	result, err := h.orc.Fetch(r.Context(), params.ticker, params.period, 1, params.provider)
	if err != nil {
		writeProviderError(w, err)
		return
	}

	latest := result.Statements[0]
	notes := []string{}

	roce := metrics.ROCE(latest.OperatingIncome, latest.TotalAssets, latest.CurrentLiabilities)
	capitalEmployed := metrics.CapitalEmployed(latest.TotalAssets, latest.CurrentLiabilities)
	if latest.OperatingIncome == nil {
		notes = append(notes, "Operating income not available")
	} else if capitalEmployed == 0 {
		notes = append(notes, "Capital employed is zero - cannot calculate ROCE")
	}

	marketCap := latest.MarketCap
	if marketCap == nil {
		marketCap = metrics.MarketCap(latest.SharePrice, latest.SharesOutstanding)
	}
	stockPrice := latest.SharePrice
	if stockPrice == nil && marketCap != nil && latest.SharesOutstanding != nil && *latest.SharesOutstanding > 0 {
		p := *marketCap / *latest.SharesOutstanding
		stockPrice = &p
	}

	totalDebt := metrics.TotalDebt(latest.CurrentDebt, latest.LongTermDebt, latest.TotalDebt)
	if latest.Cash == nil {
		notes = append(notes, "Cash and cash equivalents not reported separately - EV calculation may be overstated")
	}

	enterpriseValue := metrics.EnterpriseValue(marketCap, totalDebt, latest.Cash)
	earningsYield := metrics.EarningsYield(latest.OperatingIncome, enterpriseValue)
	if enterpriseValue == nil {
		notes = append(notes, "Enterprise value not available - cannot calculate earnings yield")
	} else if latest.OperatingIncome == nil {
		notes = append(notes, "EBIT not available - cannot calculate earnings yield")
	}

	writeJSON(w, http.StatusOK, MetricsResponse{
		Ticker:   latest.Ticker,
		Date:     latest.Date,
		Period:   string(latest.Period),
		Provider: result.Provider,

		ROCE:            roce,
		ROCEPercent:     metrics.Percent(roce),
		WorkingCapital:  metrics.WorkingCapital(latest.CurrentAssets, latest.CurrentLiabilities),
		CapitalEmployed: capitalEmployed,

		EarningsYield:        earningsYield,
		EarningsYieldPercent: metrics.Percent(earningsYield),
		EBIT:                 latest.OperatingIncome,

		EnterpriseValue:   enterpriseValue,
		MarketCap:         marketCap,
		StockPrice:        stockPrice,
		SharesOutstanding: latest.SharesOutstanding,

		TotalDebt:    totalDebt,
		Cash:         latest.Cash,
		CurrentDebt:  latest.CurrentDebt,
		LongTermDebt: latest.LongTermDebt,

		TotalAssets:        latest.TotalAssets,
		CurrentLiabilities: latest.CurrentLiabilities,

		Notes: notes,
	})
}
