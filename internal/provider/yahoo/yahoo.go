package yahoo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"resty.dev/v3"

	"finmetrics/internal/provider"
	"finmetrics/internal/ratelimit"
)

// Name is the registry identifier for this adapter.
const Name = "yahoo"

// rawValue is Yahoo's number envelope: {"raw": 123, "fmt": "123"}.
type rawValue struct {
	Raw *float64 `json:"raw"`
	Fmt string   `json:"fmt"`
}

type incomeEntry struct {
	EndDate         rawValue `json:"endDate"`
	TotalRevenue    rawValue `json:"totalRevenue"`
	GrossProfit     rawValue `json:"grossProfit"`
	OperatingIncome rawValue `json:"operatingIncome"`
	NetIncome       rawValue `json:"netIncome"`
}

type balanceEntry struct {
	EndDate                 rawValue `json:"endDate"`
	TotalAssets             rawValue `json:"totalAssets"`
	TotalCurrentAssets      rawValue `json:"totalCurrentAssets"`
	TotalCurrentLiabilities rawValue `json:"totalCurrentLiabilities"`
	TotalLiab               rawValue `json:"totalLiab"`
	TotalStockholderEquity  rawValue `json:"totalStockholderEquity"`
	Cash                    rawValue `json:"cash"`
	ShortLongTermDebt       rawValue `json:"shortLongTermDebt"`
	LongTermDebt            rawValue `json:"longTermDebt"`
}

// quoteSummaryResponse covers both the annual and quarterly module names.
type quoteSummaryResponse struct {
	QuoteSummary struct {
		Result []struct {
			IncomeStatementHistory struct {
				IncomeStatementHistory []incomeEntry `json:"incomeStatementHistory"`
			} `json:"incomeStatementHistory"`
			IncomeStatementHistoryQuarterly struct {
				IncomeStatementHistory []incomeEntry `json:"incomeStatementHistory"`
			} `json:"incomeStatementHistoryQuarterly"`
			BalanceSheetHistory struct {
				BalanceSheetStatements []balanceEntry `json:"balanceSheetStatements"`
			} `json:"balanceSheetHistory"`
			BalanceSheetHistoryQuarterly struct {
				BalanceSheetStatements []balanceEntry `json:"balanceSheetStatements"`
			} `json:"balanceSheetHistoryQuarterly"`
			Price struct {
				RegularMarketPrice rawValue `json:"regularMarketPrice"`
				MarketCap          rawValue `json:"marketCap"`
			} `json:"price"`
			DefaultKeyStatistics struct {
				SharesOutstanding rawValue `json:"sharesOutstanding"`
			} `json:"defaultKeyStatistics"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"quoteSummary"`
}

// Adapter fetches financial statements from Yahoo Finance's quoteSummary
// endpoint. It needs no API key, which makes it the natural fallback target.
type Adapter struct {
	client  *resty.Client
	limiter *ratelimit.Limiter
}

// New creates a Yahoo Finance adapter.
func New(baseURL string, timeout time.Duration) *Adapter {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "finmetrics/1.0")

	return &Adapter{
		client:  client,
		limiter: ratelimit.GetLimiter(),
	}
}

// Name implements provider.Adapter.
func (a *Adapter) Name() string { return Name }

// Fetch implements provider.Adapter.
func (a *Adapter) Fetch(ctx context.Context, ticker string, period provider.Period, limit int) ([]provider.Statement, error) {
	if err := a.limiter.Wait(ctx, ratelimit.APIYahoo); err != nil {
		return nil, provider.NewUnknown(Name, "request canceled while waiting for rate limiter", err)
	}

	modules := "incomeStatementHistory,balanceSheetHistory,price,defaultKeyStatistics"
	if period == provider.PeriodQuarterly {
		modules = "incomeStatementHistoryQuarterly,balanceSheetHistoryQuarterly,price,defaultKeyStatistics"
	}

	resp, err := a.client.R().
		SetContext(ctx).
		SetQueryParam("modules", modules).
		Get("/v10/finance/quoteSummary/" + ticker)
	if err != nil {
		return nil, classifyTransport(err)
	}

	if err := classifyStatus(resp.StatusCode(), ticker); err != nil {
		return nil, err
	}

	var body quoteSummaryResponse
	if err := json.Unmarshal(resp.Bytes(), &body); err != nil {
		// Yahoo serves an HTML error page instead of JSON when throttling,
		// so a parse failure at the first byte is treated as a rate limit.
		var syn *json.SyntaxError
		if errors.As(err, &syn) && syn.Offset <= 1 {
			return nil, provider.NewRateLimited(Name,
				"Yahoo Finance returned a non-JSON response, which usually means throttling. Wait a moment or try provider=alphavantage.")
		}
		return nil, provider.NewUnknown(Name, "failed to decode Yahoo response", err)
	}

	if body.QuoteSummary.Error != nil {
		desc := body.QuoteSummary.Error.Description
		if desc == "" {
			desc = body.QuoteSummary.Error.Code
		}
		return nil, provider.NewNotFound(Name, fmt.Sprintf("no data for ticker %s: %s", ticker, desc))
	}
	if len(body.QuoteSummary.Result) == 0 {
		return nil, provider.NewNotFound(Name, fmt.Sprintf("no financial data found for ticker %s. Verify the ticker symbol.", ticker))
	}

	result := body.QuoteSummary.Result[0]
	income := result.IncomeStatementHistory.IncomeStatementHistory
	balance := result.BalanceSheetHistory.BalanceSheetStatements
	if period == provider.PeriodQuarterly {
		income = result.IncomeStatementHistoryQuarterly.IncomeStatementHistory
		balance = result.BalanceSheetHistoryQuarterly.BalanceSheetStatements
	}
	if len(income) == 0 || len(balance) == 0 {
		return nil, provider.NewNotFound(Name, fmt.Sprintf("no %s statements available for ticker %s", period, ticker))
	}

	n := len(income)
	if len(balance) < n {
		n = len(balance)
	}
	if limit > 0 && limit < n {
		n = limit
	}

	statements := make([]provider.Statement, 0, n)
	for i := 0; i < n; i++ {
		inc, bal := income[i], balance[i]
		s := provider.Statement{
			Ticker:          ticker,
			Date:            inc.EndDate.Fmt,
			Period:          period,
			FiscalPeriod:    fiscalPeriod(period, i),
			Revenues:        inc.TotalRevenue.Raw,
			GrossProfit:     inc.GrossProfit.Raw,
			OperatingIncome: inc.OperatingIncome.Raw,
			NetIncome:       inc.NetIncome.Raw,

			CurrentAssets:      bal.TotalCurrentAssets.Raw,
			CurrentLiabilities: bal.TotalCurrentLiabilities.Raw,
			TotalAssets:        bal.TotalAssets.Raw,
			TotalLiabilities:   bal.TotalLiab.Raw,
			Equity:             bal.TotalStockholderEquity.Raw,
			Cash:               bal.Cash.Raw,
			CurrentDebt:        bal.ShortLongTermDebt.Raw,
			LongTermDebt:       bal.LongTermDebt.Raw,

			MarketCap:         result.Price.MarketCap.Raw,
			SharePrice:        result.Price.RegularMarketPrice.Raw,
			SharesOutstanding: result.DefaultKeyStatistics.SharesOutstanding.Raw,
		}
		if len(s.Date) >= 4 {
			s.FiscalYear = s.Date[:4]
		}
		statements = append(statements, s)
	}

	return statements, nil
}

func classifyStatus(code int, ticker string) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == 401 || code == 403:
		return provider.NewUnauthorized(Name, "Yahoo Finance rejected the request as unauthorized")
	case code == 404:
		return provider.NewNotFound(Name, fmt.Sprintf("ticker %s not found on Yahoo Finance", ticker))
	case code == 429:
		return provider.NewRateLimited(Name, "Yahoo Finance rate limit exceeded. Wait a moment or try provider=alphavantage.")
	default:
		return provider.NewUnknown(Name, fmt.Sprintf("Yahoo Finance returned status %d", code), nil)
	}
}

func classifyTransport(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
		return provider.NewUnknown(Name, "request to Yahoo Finance timed out", err)
	}
	return provider.NewUnknown(Name, "network request to Yahoo Finance failed", err)
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

func fiscalPeriod(period provider.Period, idx int) string {
	if period == provider.PeriodAnnual {
		return "FY"
	}
	return fmt.Sprintf("Q%d", (idx%4)+1)
}

var _ provider.Adapter = (*Adapter)(nil)
