package ratelimit

import (
	"context"
	"os"
	"sync"

	"golang.org/x/time/rate"
)

// API represents the different upstream providers we pace requests against
type API string

const (
	// APIYahoo represents the Yahoo Finance endpoints
	APIYahoo API = "yahoo"
	// APIAlphaVantage represents the Alpha Vantage API
	APIAlphaVantage API = "alphavantage"
	// APIPolygon represents the Polygon.io API
	APIPolygon API = "polygon"
	// APISchwab represents the Schwab trader API
	APISchwab API = "schwab"
)

// Limiter manages client-side rate limits for the upstream providers
type Limiter struct {
	limiters map[API]*rate.Limiter
	mu       sync.RWMutex
}

var (
	instance *Limiter
	once     sync.Once
)

// GetLimiter returns the singleton rate limiter instance
func GetLimiter() *Limiter {
	once.Do(func() {
		instance = &Limiter{
			limiters: make(map[API]*rate.Limiter),
		}
		instance.initLimiters()
	})
	return instance
}

// initLimiters initializes rate limiters for each API with conservative defaults
func (l *Limiter) initLimiters() {
	// In test mode, use unlimited rate limits to avoid slowing down tests
	if os.Getenv("GO_TESTING") == "1" || isTestMode() {
		l.limiters[APIYahoo] = rate.NewLimiter(rate.Inf, 1)
		l.limiters[APIAlphaVantage] = rate.NewLimiter(rate.Inf, 1)
		l.limiters[APIPolygon] = rate.NewLimiter(rate.Inf, 1)
		l.limiters[APISchwab] = rate.NewLimiter(rate.Inf, 1)
		return
	}

	// Production rate limits
	// Yahoo: no published quota, keep a 2/s ceiling so the unofficial
	// endpoints don't start serving HTML throttle pages
	l.limiters[APIYahoo] = rate.NewLimiter(rate.Limit(2), 1)

	// AlphaVantage: 5 requests per minute on free tier = 1 request every 12 seconds
	l.limiters[APIAlphaVantage] = rate.NewLimiter(rate.Limit(1.0/12.0), 1)

	// Polygon: 5 requests per minute on free tier
	l.limiters[APIPolygon] = rate.NewLimiter(rate.Limit(1.0/12.0), 1)

	// Schwab: published trader API limit is 120 per minute
	l.limiters[APISchwab] = rate.NewLimiter(rate.Limit(2), 2)
}

// isTestMode checks if we're running in test mode
func isTestMode() bool {
	for _, arg := range os.Args {
		if len(arg) > 6 && arg[:6] == "-test." {
			return true
		}
	}
	return false
}

// Wait blocks until the rate limiter permits an event for the given API
// It returns an error if the context is canceled before the event can proceed
func (l *Limiter) Wait(ctx context.Context, api API) error {
	l.mu.RLock()
	limiter, exists := l.limiters[api]
	l.mu.RUnlock()

	if !exists {
		// If no limiter exists for this API, allow the request without limiting
		return nil
	}

	return limiter.Wait(ctx)
}

// Allow reports whether an event for the given API may happen now
func (l *Limiter) Allow(api API) bool {
	l.mu.RLock()
	limiter, exists := l.limiters[api]
	l.mu.RUnlock()

	if !exists {
		return true
	}

	return limiter.Allow()
}
