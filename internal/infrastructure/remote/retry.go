package remote

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy backoff exponencial para llamadas remotas transitorias.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	Multiplier      float64
}

// DefaultRetryPolicy 3 intentos, 500ms iniciales, ×2.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, InitialInterval: 500 * time.Millisecond, Multiplier: 2}
}

// backOff construye el backoff sin jitter, limitado a MaxAttempts intentos en total.
func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.InitialInterval
	exp.Multiplier = p.Multiplier
	exp.RandomizationFactor = 0
	exp.MaxInterval = 30 * time.Second
	exp.MaxElapsedTime = 0
	exp.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(p.MaxAttempts-1)), ctx)
}
