package alphavantage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"resty.dev/v3"

	"finmetrics/internal/provider"
	"finmetrics/internal/ratelimit"
)

// Name is the registry identifier for this adapter.
const Name = "alphavantage"

// report is one fiscal period from INCOME_STATEMENT or BALANCE_SHEET.
// Alpha Vantage encodes every number as a string, with the literal "None"
// standing in for missing values.
type report map[string]string

// statementResponse is the shared shape of the statement endpoints. The
// Note/Information/ErrorMessage fields only appear on failures, which Alpha
// Vantage delivers with HTTP 200.
type statementResponse struct {
	Symbol           string   `json:"symbol"`
	AnnualReports    []report `json:"annualReports"`
	QuarterlyReports []report `json:"quarterlyReports"`
	Note             string   `json:"Note"`
	Information      string   `json:"Information"`
	ErrorMessage     string   `json:"Error Message"`
}

type overviewResponse struct {
	Symbol               string `json:"Symbol"`
	MarketCapitalization string `json:"MarketCapitalization"`
	SharesOutstanding    string `json:"SharesOutstanding"`
	Note                 string `json:"Note"`
	Information          string `json:"Information"`
	ErrorMessage         string `json:"Error Message"`
}

// Adapter fetches fundamentals from the Alpha Vantage API. The free tier
// allows 25 requests per day, and quota exhaustion arrives as an HTTP 200
// with an explanatory message instead of a 429.
type Adapter struct {
	apiKey  string
	client  *resty.Client
	limiter *ratelimit.Limiter
}

// New creates an Alpha Vantage adapter.
func New(apiKey, baseURL string, timeout time.Duration) *Adapter {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	return &Adapter{
		apiKey:  apiKey,
		client:  client,
		limiter: ratelimit.GetLimiter(),
	}
}

// Name implements provider.Adapter.
func (a *Adapter) Name() string { return Name }

// Fetch implements provider.Adapter. It makes three upstream calls: income
// statement, balance sheet, and company overview for the market data.
func (a *Adapter) Fetch(ctx context.Context, ticker string, period provider.Period, limit int) ([]provider.Statement, error) {
	var income statementResponse
	if err := a.call(ctx, "INCOME_STATEMENT", ticker, &income); err != nil {
		return nil, err
	}
	if err := classifyBody(income.Note, income.Information, income.ErrorMessage, ticker); err != nil {
		return nil, err
	}

	var balance statementResponse
	if err := a.call(ctx, "BALANCE_SHEET", ticker, &balance); err != nil {
		return nil, err
	}
	if err := classifyBody(balance.Note, balance.Information, balance.ErrorMessage, ticker); err != nil {
		return nil, err
	}

	incomeReports := income.AnnualReports
	balanceReports := balance.AnnualReports
	if period == provider.PeriodQuarterly {
		incomeReports = income.QuarterlyReports
		balanceReports = balance.QuarterlyReports
	}
	if len(incomeReports) == 0 || len(balanceReports) == 0 {
		return nil, provider.NewNotFound(Name,
			fmt.Sprintf("no financial data found for ticker %s. Verify the ticker symbol.", ticker))
	}

	// Overview failures beyond quota problems are tolerated; the market
	// fields just stay unknown.
	var overview overviewResponse
	overviewOK := true
	if err := a.call(ctx, "OVERVIEW", ticker, &overview); err != nil {
		if provider.KindOf(err) == provider.KindRateLimited || provider.KindOf(err) == provider.KindUnauthorized {
			return nil, err
		}
		overviewOK = false
	} else if err := classifyBody(overview.Note, overview.Information, overview.ErrorMessage, ticker); err != nil {
		if provider.KindOf(err) == provider.KindRateLimited || provider.KindOf(err) == provider.KindUnauthorized {
			return nil, err
		}
		overviewOK = false
	}

	var marketCap, shares, price *float64
	if overviewOK {
		marketCap = parseNum(overview.MarketCapitalization)
		shares = parseNum(overview.SharesOutstanding)
		if marketCap != nil && shares != nil && *shares > 0 {
			p := *marketCap / *shares
			price = &p
		}
	}

	n := len(incomeReports)
	if len(balanceReports) < n {
		n = len(balanceReports)
	}
	if limit > 0 && limit < n {
		n = limit
	}

	statements := make([]provider.Statement, 0, n)
	for i := 0; i < n; i++ {
		inc, bal := incomeReports[i], balanceReports[i]
		date := inc["fiscalDateEnding"]

		currentDebt := parseNum(bal["currentDebt"])
		if currentDebt == nil {
			// currentDebt and shortTermDebt are synonymous in practice
			currentDebt = parseNum(bal["shortTermDebt"])
		}

		s := provider.Statement{
			Ticker:          ticker,
			Date:            date,
			Period:          period,
			FiscalPeriod:    fiscalPeriod(period, i),
			Revenues:        parseNum(inc["totalRevenue"]),
			GrossProfit:     parseNum(inc["grossProfit"]),
			OperatingIncome: parseNum(inc["operatingIncome"]),
			NetIncome:       parseNum(inc["netIncome"]),

			CurrentAssets:      parseNum(bal["totalCurrentAssets"]),
			CurrentLiabilities: parseNum(bal["totalCurrentLiabilities"]),
			TotalAssets:        parseNum(bal["totalAssets"]),
			TotalLiabilities:   parseNum(bal["totalLiabilities"]),
			Equity:             parseNum(bal["totalShareholderEquity"]),
			Cash:               parseNum(bal["cashAndCashEquivalentsAtCarryingValue"]),
			CurrentDebt:        currentDebt,
			LongTermDebt:       parseNum(bal["longTermDebt"]),
			TotalDebt:          parseNum(bal["shortLongTermDebtTotal"]),

			MarketCap:         marketCap,
			SharePrice:        price,
			SharesOutstanding: shares,
		}
		if len(date) >= 4 {
			s.FiscalYear = date[:4]
		}
		statements = append(statements, s)
	}

	return statements, nil
}

// call performs one Alpha Vantage request and decodes the body into out.
func (a *Adapter) call(ctx context.Context, function, ticker string, out any) error {
	if err := a.limiter.Wait(ctx, ratelimit.APIAlphaVantage); err != nil {
		return provider.NewUnknown(Name, "request canceled while waiting for rate limiter", err)
	}

	resp, err := a.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"function": function,
			"symbol":   ticker,
			"apikey":   a.apiKey,
		}).
		Get("")
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return provider.NewUnknown(Name, "request to Alpha Vantage timed out", err)
		}
		return provider.NewUnknown(Name, "network request to Alpha Vantage failed", err)
	}

	switch code := resp.StatusCode(); {
	case code == 401 || code == 403:
		return provider.NewUnauthorized(Name, "Alpha Vantage rejected the API key. Check ALPHAVANTAGE_API_KEY.")
	case code == 429:
		return provider.NewRateLimited(Name, "Alpha Vantage rate limit exceeded. Wait before retrying or try provider=yahoo.")
	case code >= 300:
		return provider.NewUnknown(Name, fmt.Sprintf("Alpha Vantage returned status %d", code), nil)
	}

	if err := json.Unmarshal(resp.Bytes(), out); err != nil {
		return provider.NewUnknown(Name, "failed to decode Alpha Vantage response", err)
	}
	return nil
}

// classifyBody inspects the in-band diagnostic fields Alpha Vantage delivers
// with HTTP 200. The free-tier daily quota message ("25 requests per day")
// arrives in the Information field, per-minute throttling in Note.
func classifyBody(note, information, errorMessage, ticker string) error {
	for _, msg := range []string{note, information} {
		if msg == "" {
			continue
		}
		lower := strings.ToLower(msg)
		if strings.Contains(lower, "requests per day") ||
			strings.Contains(lower, "call frequency") ||
			strings.Contains(lower, "rate limit") ||
			strings.Contains(lower, "per minute") {
			return provider.NewRateLimited(Name,
				"Alpha Vantage daily quota reached (25 requests per day on the free tier). Try provider=yahoo or wait until tomorrow.")
		}
		if strings.Contains(lower, "api key") || strings.Contains(lower, "apikey") {
			return provider.NewUnauthorized(Name, "Alpha Vantage rejected the API key. Check ALPHAVANTAGE_API_KEY.")
		}
	}
	if errorMessage != "" {
		return provider.NewNotFound(Name,
			fmt.Sprintf("no data for ticker %s: %s", ticker, errorMessage))
	}
	return nil
}

func parseNum(s string) *float64 {
	if s == "" || s == "None" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

func fiscalPeriod(period provider.Period, idx int) string {
	if period == provider.PeriodAnnual {
		return "FY"
	}
	return fmt.Sprintf("Q%d", (idx%4)+1)
}

var _ provider.Adapter = (*Adapter)(nil)
