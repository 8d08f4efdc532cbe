// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package explorer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/ratelimit"
)

const (
	// breakerMinRequests is the number of requests in one breaker interval
	// before the failure ratio is considered.
	breakerMinRequests = 10

	// breakerFailureRatio trips the breaker.
	breakerFailureRatio = 0.6

	// retryBackoff is multiplied by the attempt number between retries.
	retryBackoff = 100 * time.Millisecond

	// maxResponseSize caps the bytes read from one response.
	maxResponseSize = 16 << 20
)

// StatusError is returned for responses with an unexpected status code.
type StatusError struct {
	Code int
	Body string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("API returned status %d: %s", e.Code, e.Body)
}

// response is a completed HTTP exchange.
type response struct {
	code int
	body []byte
}

// requester performs paced, retried GET requests against one API behind a
// circuit breaker.
type requester struct {
	baseURL    string
	host       string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	limiter    ratelimit.Limiter
	attempts   int
}

// newRequester builds a requester for baseURL. A non-positive rps disables
// pacing.
func newRequester(name, baseURL string, timeout time.Duration, attempts,
	rps int) *requester {

	host := baseURL
	if u, err := url.Parse(baseURL); err == nil && u.Host != "" {
		host = u.Host
	}

	limiter := ratelimit.NewUnlimited()
	if rps > 0 {
		limiter = ratelimit.New(rps)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name: name,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			ratio := float64(counts.TotalFailures) /
				float64(counts.Requests)

			return counts.Requests > breakerMinRequests &&
				ratio >= breakerFailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warnf("Circuit breaker %s changed from %v to %v",
				name, from, to)
		},
	})

	return &requester{
		baseURL:    baseURL,
		host:       host,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    breaker,
		limiter:    limiter,
		attempts:   max(attempts, 1),
	}
}

// roundTrip performs one request. Server errors count as breaker failures,
// any other completed response does not.
func (r *requester) roundTrip(ctx context.Context,
	path string) (*response, error) {

	res, err := r.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(
			ctx, http.MethodGet, r.baseURL+path, nil,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := r.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}

		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, &StatusError{
				Code: resp.StatusCode, Body: string(body),
			}
		}

		return &response{code: resp.StatusCode, body: body}, nil
	})
	if err != nil {
		return nil, err
	}

	return res.(*response), nil
}

// get fetches path, retrying transport and server failures. A 404 is
// returned as ErrNotFound without retrying.
func (r *requester) get(ctx context.Context, path string) ([]byte, error) {
	var lastErr error
	for i := 0; i < r.attempts; i++ {
		if i > 0 {
			log.Debugf("Retrying %s%s (attempt %d of %d): %v", r.host,
				path, i+1, r.attempts, lastErr)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(i) * retryBackoff):
			}
		}

		r.limiter.Take()

		start := time.Now()
		resp, err := r.roundTrip(ctx, path)
		requestDuration.WithLabelValues(r.host).Observe(
			time.Since(start).Seconds(),
		)

		switch {
		case errors.Is(err, gobreaker.ErrOpenState),
			errors.Is(err, gobreaker.ErrTooManyRequests):

			requestsTotal.WithLabelValues(r.host, outcomeBreakerOpen).Inc()
			return nil, fmt.Errorf("%s unavailable: %w", r.host, err)

		case err != nil:
			requestsTotal.WithLabelValues(r.host, outcomeError).Inc()
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err

			continue

		case resp.code == http.StatusNotFound:
			requestsTotal.WithLabelValues(r.host, outcomeNotFound).Inc()
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)

		case resp.code != http.StatusOK:
			requestsTotal.WithLabelValues(r.host, outcomeError).Inc()
			return nil, &StatusError{
				Code: resp.code, Body: string(resp.body),
			}
		}

		requestsTotal.WithLabelValues(r.host, outcomeOK).Inc()

		return resp.body, nil
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w",
		r.attempts, lastErr)
}
