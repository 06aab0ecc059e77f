package provider

import "context"

// Period selects which reporting cadence to fetch.
type Period string

const (
	PeriodAnnual    Period = "annual"
	PeriodQuarterly Period = "quarterly"
)

// Valid reports whether p is one of the supported reporting periods.
func (p Period) Valid() bool {
	return p == PeriodAnnual || p == PeriodQuarterly
}

// Statement is the normalized financial snapshot shared by all providers.
// Numeric fields are pointers so that a value the upstream did not report
// stays an explicit unknown instead of a zero.
type Statement struct {
	Ticker       string `json:"ticker"`
	Date         string `json:"date"`
	Period       Period `json:"period"`
	FiscalYear   string `json:"fiscal_year,omitempty"`
	FiscalPeriod string `json:"fiscal_period,omitempty"`

	// Income statement
	Revenues        *float64 `json:"revenues"`
	GrossProfit     *float64 `json:"gross_profit"`
	OperatingIncome *float64 `json:"operating_income"`
	NetIncome       *float64 `json:"net_income"`

	// Balance sheet
	CurrentAssets      *float64 `json:"current_assets"`
	CurrentLiabilities *float64 `json:"current_liabilities"`
	TotalAssets        *float64 `json:"total_assets"`
	TotalLiabilities   *float64 `json:"total_liabilities"`
	Equity             *float64 `json:"equity"`
	Cash               *float64 `json:"cash_and_equivalents"`
	CurrentDebt        *float64 `json:"current_debt"`
	LongTermDebt       *float64 `json:"long_term_debt"`
	TotalDebt          *float64 `json:"total_debt"`

	// Market data (point-in-time, fetched alongside the statements)
	MarketCap         *float64 `json:"market_cap"`
	SharePrice        *float64 `json:"share_price"`
	SharesOutstanding *float64 `json:"shares_outstanding"`
}

// Adapter is the contract every upstream provider implements. Fetch returns
// up to limit periods, newest first. Any failure crossing this boundary must
// be a *Error; raw transport or parse errors never escape an adapter.
type Adapter interface {
	Name() string
	Fetch(ctx context.Context, ticker string, period Period, limit int) ([]Statement, error)
}
