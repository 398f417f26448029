package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	headerUsedWeight = "X-MBX-USED-WEIGHT-1M"
	headerRetryAfter = "Retry-After"
)

// APIError is a non-2xx response from the exchange.
type APIError struct {
	StatusCode int
	Code       int // exchange error code, e.g. -1003; 0 if the body had none
	Message    string
	RetryAfter time.Duration // from the Retry-After header on 429 and 418
	Body       []byte
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("exchange api error %d (code %d): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("exchange api error %d: %s", e.StatusCode, e.Message)
}

// IsRetryable reports whether the request may be repeated: server errors
// and rate limiting (429).
func (e *APIError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// Banned reports an IP ban (418), issued after 429s are ignored. Requests
// during the ban extend it.
func (e *APIError) Banned() bool {
	return e.StatusCode == http.StatusTeapot
}

// send issues one GET and returns the body of a 2xx response.
func (c *Client) send(ctx context.Context, path string, query url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	c.requests.Add(1)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if w, err := strconv.ParseInt(resp.Header.Get(headerUsedWeight), 10, 64); err == nil {
		c.usedWeight.Store(w)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 300 {
		return body, nil
	}

	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Message:    http.StatusText(resp.StatusCode),
		Body:       body,
	}
	if secs, err := strconv.Atoi(resp.Header.Get(headerRetryAfter)); err == nil && secs > 0 {
		apiErr.RetryAfter = time.Duration(secs) * time.Second
	}
	var eb errorBody
	if json.Unmarshal(body, &eb) == nil && eb.Msg != "" {
		apiErr.Code = eb.Code
		apiErr.Message = eb.Msg
	}
	return nil, apiErr
}

// getJSON fetches path and decodes the body into out, retrying server
// errors, rate limits and transport failures.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	var lastErr error
	for try := 0; try <= c.attempts; try++ {
		if try > 0 {
			wait := c.retryWait(try, lastErr)
			c.retries.Add(1)
			c.logger.Debug("retrying request", "path", path, "retry", try, "wait", wait, "error", lastErr)

			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		body, err := c.send(ctx, path, query)
		if err == nil {
			if err := json.Unmarshal(body, out); err != nil {
				return fmt.Errorf("decode %s: %w", path, err)
			}
			return nil
		}
		c.failures.Add(1)
		lastErr = err

		if ctx.Err() != nil {
			return ctx.Err()
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			if apiErr.Banned() {
				c.logger.Error("ip banned by exchange", "path", path, "retry_after", apiErr.RetryAfter)
				return err
			}
			if !apiErr.IsRetryable() {
				return err
			}
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", path, c.attempts+1, lastErr)
}

// retryWait returns the delay before retry number try: exponential backoff
// with jitter in [0.5, 1.5), raised to the server's Retry-After if longer.
func (c *Client) retryWait(try int, lastErr error) time.Duration {
	backoff := c.backoff << (try - 1)
	wait := backoff/2 + time.Duration(rand.Int64N(int64(backoff)+1))

	var apiErr *APIError
	if errors.As(lastErr, &apiErr) && apiErr.RetryAfter > wait {
		wait = apiErr.RetryAfter
	}
	return wait
}
