package testutil

import (
	"context"

	"finmetrics/internal/provider"
)

// StubAdapter is a configurable fake provider adapter for tests. It counts
// Fetch invocations so tests can assert on fallback behavior.
type StubAdapter struct {
	AdapterName string
	Statements  []provider.Statement
	Err         error
	FetchFunc   func(ctx context.Context, ticker string, period provider.Period, limit int) ([]provider.Statement, error)

	Calls int
}

// Name implements the provider.Adapter interface
func (s *StubAdapter) Name() string {
	return s.AdapterName
}

// Fetch implements the provider.Adapter interface
func (s *StubAdapter) Fetch(ctx context.Context, ticker string, period provider.Period, limit int) ([]provider.Statement, error) {
	s.Calls++
	if s.FetchFunc != nil {
		return s.FetchFunc(ctx, ticker, period, limit)
	}
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Statements, nil
}

// NewStubAdapter creates a stub with a fixed outcome.
func NewStubAdapter(name string, statements []provider.Statement, err error) *StubAdapter {
	return &StubAdapter{AdapterName: name, Statements: statements, Err: err}
}

// F64 returns a pointer to v, for building Statement fixtures.
func F64(v float64) *float64 {
	return &v
}

// Statement builds a minimally populated fixture for ticker.
func Statement(ticker string) provider.Statement {
	return provider.Statement{
		Ticker:             ticker,
		Date:               "2024-09-28",
		Period:             provider.PeriodAnnual,
		FiscalYear:         "2024",
		FiscalPeriod:       "FY",
		Revenues:           F64(391_035_000_000),
		OperatingIncome:    F64(123_216_000_000),
		NetIncome:          F64(93_736_000_000),
		CurrentAssets:      F64(152_987_000_000),
		CurrentLiabilities: F64(176_392_000_000),
		TotalAssets:        F64(364_980_000_000),
		Cash:               F64(29_943_000_000),
		TotalDebt:          F64(106_629_000_000),
		MarketCap:          F64(3_400_000_000_000),
		SharePrice:         F64(225.0),
		SharesOutstanding:  F64(15_100_000_000),
	}
}

var _ provider.Adapter = (*StubAdapter)(nil)
