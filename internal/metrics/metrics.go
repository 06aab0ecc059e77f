// Package metrics holds the derived-ratio arithmetic: ROCE, enterprise
// value, and earnings yield. Inputs are nullable; a nil input that a formula
// needs yields a nil result rather than a misleading zero.
package metrics

import "fmt"

// ROCE computes Return on Capital Employed:
// operating income / (total assets - current liabilities).
func ROCE(operatingIncome, totalAssets, currentLiabilities *float64) *float64 {
	if operatingIncome == nil || totalAssets == nil || currentLiabilities == nil {
		return nil
	}
	capitalEmployed := *totalAssets - *currentLiabilities
	if capitalEmployed == 0 {
		return nil
	}
	v := *operatingIncome / capitalEmployed
	return &v
}

// WorkingCapital computes current assets - current liabilities, treating a
// missing side as zero, matching the upstream dashboard's behavior.
func WorkingCapital(currentAssets, currentLiabilities *float64) float64 {
	return orZero(currentAssets) - orZero(currentLiabilities)
}

// CapitalEmployed computes total assets - current liabilities with missing
// sides treated as zero.
func CapitalEmployed(totalAssets, currentLiabilities *float64) float64 {
	return orZero(totalAssets) - orZero(currentLiabilities)
}

// MarketCap computes share price x shares outstanding.
func MarketCap(sharePrice, sharesOutstanding *float64) *float64 {
	if sharePrice == nil || sharesOutstanding == nil || *sharePrice == 0 || *sharesOutstanding == 0 {
		return nil
	}
	v := *sharePrice * *sharesOutstanding
	return &v
}

// TotalDebt prefers the directly reported total when available, otherwise
// sums the current and long-term components, treating missing ones as zero.
func TotalDebt(currentDebt, longTermDebt, reportedTotal *float64) float64 {
	if reportedTotal != nil {
		return *reportedTotal
	}
	return orZero(currentDebt) + orZero(longTermDebt)
}

// EnterpriseValue computes market cap + total debt - cash. A missing market
// cap makes the whole value unknown; missing cash is treated as zero.
func EnterpriseValue(marketCap *float64, totalDebt float64, cash *float64) *float64 {
	if marketCap == nil || *marketCap == 0 {
		return nil
	}
	v := *marketCap + totalDebt - orZero(cash)
	return &v
}

// EarningsYield computes EBIT / enterprise value.
func EarningsYield(ebit, enterpriseValue *float64) *float64 {
	if ebit == nil || *ebit == 0 || enterpriseValue == nil || *enterpriseValue == 0 {
		return nil
	}
	v := *ebit / *enterpriseValue
	return &v
}

// Percent renders a ratio as a percentage string, e.g. 0.1523 -> "15.23%".
// Returns nil for a nil ratio so JSON omits the field.
func Percent(ratio *float64) *string {
	if ratio == nil {
		return nil
	}
	s := fmt.Sprintf("%.2f%%", *ratio*100)
	return &s
}

func orZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
