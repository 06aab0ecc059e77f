package polygon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"resty.dev/v3"

	"finmetrics/internal/provider"
	"finmetrics/internal/ratelimit"
)

// Name is the registry identifier for this adapter.
const Name = "polygon"

// lineItem is Polygon's number envelope inside vX financials.
type lineItem struct {
	Value *float64 `json:"value"`
}

type financialsResponse struct {
	Status  string `json:"status"`
	Error   string `json:"error"`
	Results []struct {
		EndDate      string `json:"end_date"`
		FiscalPeriod string `json:"fiscal_period"`
		FiscalYear   string `json:"fiscal_year"`
		Financials   struct {
			IncomeStatement struct {
				Revenues            lineItem `json:"revenues"`
				GrossProfit         lineItem `json:"gross_profit"`
				OperatingIncomeLoss lineItem `json:"operating_income_loss"`
				NetIncomeLoss       lineItem `json:"net_income_loss"`
			} `json:"income_statement"`
			BalanceSheet struct {
				CurrentAssets      lineItem `json:"current_assets"`
				CurrentLiabilities lineItem `json:"current_liabilities"`
				Assets             lineItem `json:"assets"`
				Liabilities        lineItem `json:"liabilities"`
				Equity             lineItem `json:"equity"`
			} `json:"balance_sheet"`
		} `json:"financials"`
	} `json:"results"`
}

type tickerDetailsResponse struct {
	Status  string `json:"status"`
	Results struct {
		MarketCap                   *float64 `json:"market_cap"`
		WeightedSharesOutstanding   *float64 `json:"weighted_shares_outstanding"`
		ShareClassSharesOutstanding *float64 `json:"share_class_shares_outstanding"`
	} `json:"results"`
}

// Adapter fetches fundamentals from the Polygon.io reference endpoints.
type Adapter struct {
	apiKey  string
	client  *resty.Client
	limiter *ratelimit.Limiter
}

// New creates a Polygon adapter.
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

// Fetch implements provider.Adapter.
func (a *Adapter) Fetch(ctx context.Context, ticker string, period provider.Period, limit int) ([]provider.Statement, error) {
	if err := a.limiter.Wait(ctx, ratelimit.APIPolygon); err != nil {
		return nil, provider.NewUnknown(Name, "request canceled while waiting for rate limiter", err)
	}

	resp, err := a.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"ticker":    ticker,
			"timeframe": string(period),
			"limit":     strconv.Itoa(limit),
			"apiKey":    a.apiKey,
		}).
		Get("/vX/reference/financials")
	if err != nil {
		return nil, classifyTransport(err)
	}
	if err := classifyStatus(resp.StatusCode(), ticker); err != nil {
		return nil, err
	}

	var body financialsResponse
	if err := json.Unmarshal(resp.Bytes(), &body); err != nil {
		return nil, provider.NewUnknown(Name, "failed to decode Polygon response", err)
	}
	if len(body.Results) == 0 {
		return nil, provider.NewNotFound(Name,
			fmt.Sprintf("no financial data available for ticker %s. The ticker may be invalid or not covered by Polygon.", ticker))
	}

	// Market data comes from the ticker details endpoint. Failures here are
	// tolerated; the market fields just stay unknown.
	marketCap, shares, price := a.tickerDetails(ctx, ticker)

	n := len(body.Results)
	if limit > 0 && limit < n {
		n = limit
	}

	statements := make([]provider.Statement, 0, n)
	for i := 0; i < n; i++ {
		r := body.Results[i]
		inc := r.Financials.IncomeStatement
		bal := r.Financials.BalanceSheet
		statements = append(statements, provider.Statement{
			Ticker:          ticker,
			Date:            r.EndDate,
			Period:          period,
			FiscalYear:      r.FiscalYear,
			FiscalPeriod:    r.FiscalPeriod,
			Revenues:        inc.Revenues.Value,
			GrossProfit:     inc.GrossProfit.Value,
			OperatingIncome: inc.OperatingIncomeLoss.Value,
			NetIncome:       inc.NetIncomeLoss.Value,

			CurrentAssets:      bal.CurrentAssets.Value,
			CurrentLiabilities: bal.CurrentLiabilities.Value,
			TotalAssets:        bal.Assets.Value,
			TotalLiabilities:   bal.Liabilities.Value,
			Equity:             bal.Equity.Value,

			MarketCap:         marketCap,
			SharePrice:        price,
			SharesOutstanding: shares,
		})
	}

	return statements, nil
}

// tickerDetails fetches market cap and shares outstanding. Best effort only.
func (a *Adapter) tickerDetails(ctx context.Context, ticker string) (marketCap, shares, price *float64) {
	if err := a.limiter.Wait(ctx, ratelimit.APIPolygon); err != nil {
		return nil, nil, nil
	}

	resp, err := a.client.R().
		SetContext(ctx).
		SetQueryParam("apiKey", a.apiKey).
		Get("/v3/reference/tickers/" + ticker)
	if err != nil || resp.StatusCode() != 200 {
		return nil, nil, nil
	}

	var body tickerDetailsResponse
	if err := json.Unmarshal(resp.Bytes(), &body); err != nil {
		return nil, nil, nil
	}

	marketCap = body.Results.MarketCap
	shares = body.Results.WeightedSharesOutstanding
	if shares == nil {
		shares = body.Results.ShareClassSharesOutstanding
	}
	if marketCap != nil && shares != nil && *shares > 0 {
		p := *marketCap / *shares
		price = &p
	}
	return marketCap, shares, price
}

func classifyStatus(code int, ticker string) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == 401 || code == 403:
		return provider.NewUnauthorized(Name, "Invalid Polygon API key. Check POLYGON_API_KEY.")
	case code == 404:
		return provider.NewNotFound(Name, fmt.Sprintf("ticker %s not found in the Polygon database", ticker))
	case code == 429:
		return provider.NewRateLimited(Name, "Polygon rate limit exceeded. Upgrade the plan, wait, or try provider=yahoo.")
	default:
		return provider.NewUnknown(Name, fmt.Sprintf("Polygon returned status %d", code), nil)
	}
}

func classifyTransport(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
		return provider.NewUnknown(Name, "request to Polygon timed out", err)
	}
	return provider.NewUnknown(Name, "network request to Polygon failed", err)
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

var _ provider.Adapter = (*Adapter)(nil)
