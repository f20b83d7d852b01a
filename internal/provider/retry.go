package provider

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net"
	"net/http"
	"time"
)

// PooledClient returns the HTTP client the providers of one Factory share.
// The timeout bounds a single attempt; the caller's context bounds the whole
// exchange including retries.
func PooledClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = time.Minute
	}
	dialer := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           dialer.DialContext,
			MaxIdleConns:          20,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: timeout,
		},
	}
}

// retryAttempts is the number of tries per provider call.
const retryAttempts = 4

// retryBaseDelay scales the quadratic backoff between attempts.
var retryBaseDelay = time.Second

// statusError is a non-2xx reply worth another attempt.
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.status, e.body)
}

func transientStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// backoff returns the wait before attempt n (n >= 1) with up to 50% jitter.
func backoff(n int) time.Duration {
	d := time.Duration(n*n) * retryBaseDelay
	return d + time.Duration(rand.Int64N(int64(d/2)+1))
}

// doWithRetry sends the request built by newReq until it gets a reply that
// is not transient. Network errors, 429 and 5xx are retried; waits never
// outlast ctx.
func doWithRetry(ctx context.Context, client *http.Client, newReq func() (*http.Request, error), logger *slog.Logger) (*http.Response, error) {
	var lastErr error
	for n := range retryAttempts {
		if n > 0 {
			wait := backoff(n)
			logger.Warn("provider request retry", "attempt", n+1, "wait", wait, "err", lastErr)
			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				return nil, ctx.Err()
			case <-t.C:
			}
		}

		req, err := newReq()
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		resp, err := client.Do(req)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
		case transientStatus(resp.StatusCode):
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			lastErr = &statusError{status: resp.StatusCode, body: string(body)}
		default:
			return resp, nil
		}
	}
	return nil, fmt.Errorf("gave up after %d attempts: %w", retryAttempts, lastErr)
}
