package crawler

import (
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/nao1215/harvester/internal/config"
)

// RetryPolicy controls how failed requests are retried.
// Intervals grow exponentially from InitialInterval by Multiplier, capped at
// MaxInterval, with RandomizationFactor jitter. Retrying stops once
// MaxElapsedTime has passed since the first attempt, or after MaxRetries
// retries when MaxRetries is non-zero.
type RetryPolicy struct {
	InitialInterval     time.Duration
	Multiplier          float64
	RandomizationFactor float64
	MaxInterval         time.Duration
	MaxElapsedTime      time.Duration
	MaxRetries          uint64
}

// DefaultRetryPolicy returns the default exponential policy:
// 500ms initial interval, x1.5 growth, 60s cap, 15 minutes total.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		InitialInterval:     config.DefaultRetryInitialInterval,
		Multiplier:          config.DefaultRetryMultiplier,
		RandomizationFactor: config.DefaultRetryRandomization,
		MaxInterval:         config.DefaultRetryMaxInterval,
		MaxElapsedTime:      config.DefaultRetryMaxElapsedTime,
	}
}

// RetryPolicyFromConfig converts retry settings loaded from configuration.
func RetryPolicyFromConfig(r config.RetryConfig) RetryPolicy {
	return RetryPolicy{
		InitialInterval:     r.InitialInterval,
		Multiplier:          r.Multiplier,
		RandomizationFactor: config.DefaultRetryRandomization,
		MaxInterval:         r.MaxInterval,
		MaxElapsedTime:      r.MaxElapsedTime,
		MaxRetries:          r.MaxRetries,
	}
}

// newBackOff builds a fresh backoff state for one visit.
func (p RetryPolicy) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.Multiplier = p.Multiplier
	b.RandomizationFactor = p.RandomizationFactor
	b.MaxInterval = p.MaxInterval
	b.MaxElapsedTime = p.MaxElapsedTime
	b.Reset()
	if p.MaxRetries > 0 {
		return backoff.WithMaxRetries(b, p.MaxRetries)
	}
	return b
}

// retryableStatus reports whether a non-2xx status is worth retrying.
// Server errors, request timeouts and throttling are transient; any other
// client error will not change on retry.
func retryableStatus(code int) bool {
	switch {
	case code >= http.StatusInternalServerError:
		return true
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests:
		return true
	default:
		return false
	}
}
