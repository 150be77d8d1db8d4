package reputation

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
)

// resilientDoer wraps an HTTP client with timeout-only retries and a
// per-provider circuit breaker. Retries are limited to timeouts: a 4xx/5xx
// answer is a definitive answer from the provider and retrying it would
// only burn quota.
type resilientDoer struct {
	client     *http.Client
	breaker    *gobreaker.CircuitBreaker
	maxRetries int
}

func newResilientDoer(name string, timeout time.Duration, maxRetries int) *resilientDoer {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
	return &resilientDoer{
		client:     &http.Client{Timeout: timeout},
		breaker:    gobreaker.NewCircuitBreaker(settings),
		maxRetries: maxRetries,
	}
}

// do builds and executes the request through the breaker, retrying on
// timeout with exponential backoff. The build callback is invoked per
// attempt so request bodies can be replayed safely.
func (d *resilientDoer) do(ctx context.Context, build func() (*http.Request, error)) (*http.Response, error) {
	result, err := d.breaker.Execute(func() (interface{}, error) {
		return d.doWithRetry(ctx, build)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) {
			return nil, fmt.Errorf("provider circuit open: %w", err)
		}
		return nil, err
	}
	return result.(*http.Response), nil
}

func (d *resilientDoer) doWithRetry(ctx context.Context, build func() (*http.Request, error)) (*http.Response, error) {
	var resp *http.Response

	operation := func() error {
		req, err := build()
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err = d.client.Do(req.WithContext(ctx))
		if err != nil {
			if isTimeout(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		return nil
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 500 * time.Millisecond
	expBackoff.MaxInterval = 5 * time.Second

	policy := backoff.WithContext(
		backoff.WithMaxRetries(expBackoff, uint64(d.maxRetries)),
		ctx,
	)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return resp, nil
}

func isTimeout(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
