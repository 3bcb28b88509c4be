package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/night-crawler/async-fetcher/pkg/result"
	"github.com/night-crawler/async-fetcher/pkg/task"
)

// fetch runs the per-task retry state machine: issue an attempt,
// classify the outcome, wait the fixed retry delay on transient
// failures, and stop once the attempt budget is exhausted.
func (f *Fetcher) fetch(ctx context.Context, client *http.Client, d task.Descriptor) (result.Result, error) {
	attempts := d.NumRetries
	if attempts < 0 {
		attempts = f.cfg.NumRetries
	}
	if attempts < 1 {
		attempts = 1
	}
	if f.cfg.SkipRetries {
		attempts = 1
	}

	var lastErr *NetworkError
	for attempt := 1; attempt <= attempts; attempt++ {
		res, err := f.attempt(ctx, client, d)
		if err == nil {
			if attempt > 1 {
				f.logger.Info().
					Str("url", d.URL).
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return res, nil
		}

		var netErr *NetworkError
		if !errors.As(err, &netErr) {
			// ReceiveError or context cancellation, neither is
			// retried.
			return result.Result{}, err
		}
		netErr.RetriesLeft = attempts - attempt
		netErr.MaxRetries = attempts
		lastErr = netErr

		fetchRetriesTotal.WithLabelValues(f.cfg.ServiceName).Inc()
		f.logger.Warn().
			Str("url", d.URL).
			Int("attempt", attempt).
			Int("max_attempts", attempts).
			Int("response_code", netErr.ResponseCode).
			Err(netErr.Err).
			Msg("Retryable failure")

		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return result.Result{}, ctx.Err()
		case <-time.After(f.cfg.RetryDelay):
		}
	}

	fetchRetryExhaustedTotal.WithLabelValues(f.cfg.ServiceName).Inc()
	if d.FailSilently {
		f.logger.Warn().
			Str("url", d.URL).
			Int("max_attempts", attempts).
			Msg("Retries exhausted, failing silently")
		return result.Empty(), nil
	}
	f.logger.Error().
		Str("url", d.URL).
		Int("max_attempts", attempts).
		Msg("Retries exhausted")
	return result.Result{}, lastErr
}

// attempt performs one HTTP round trip and classifies its outcome.
func (f *Fetcher) attempt(ctx context.Context, client *http.Client, d task.Descriptor) (result.Result, error) {
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = f.cfg.Timeout
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if len(d.Body) > 0 {
		body = bytes.NewReader(d.Body)
	}
	req, err := http.NewRequestWithContext(attemptCtx, strings.ToUpper(d.Method), d.URL, body)
	if err != nil {
		return result.Result{}, &ReceiveError{Service: f.cfg.ServiceName, Err: err}
	}
	if len(d.Headers) > 0 {
		req.Header = d.Headers.Clone()
	}

	start := time.Now()
	resp, err := client.Do(req)
	fetchRequestDuration.WithLabelValues(f.cfg.ServiceName).Observe(time.Since(start).Seconds())
	if err != nil {
		// A cancelled batch aborts immediately; only genuine network
		// failures and per-attempt timeouts are retryable.
		if ctx.Err() != nil {
			return result.Result{}, ctx.Err()
		}
		fetchRequestsTotal.WithLabelValues(f.cfg.ServiceName, "network_error").Inc()
		return result.Result{}, &NetworkError{
			Service: f.cfg.ServiceName,
			URL:     d.URL,
			Err:     err,
		}
	}
	fetchRequestsTotal.WithLabelValues(f.cfg.ServiceName, strconv.Itoa(resp.StatusCode)).Inc()

	if d.DoNotWait {
		resp.Body.Close()
		return result.Empty(), nil
	}

	if isRetryableStatus(resp.StatusCode) {
		resp.Body.Close()
		return result.Result{}, &NetworkError{
			Service:      f.cfg.ServiceName,
			URL:          d.URL,
			ResponseCode: resp.StatusCode,
		}
	}

	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		if ctx.Err() != nil {
			return result.Result{}, ctx.Err()
		}
		return result.Result{}, &NetworkError{
			Service:      f.cfg.ServiceName,
			URL:          d.URL,
			ResponseCode: resp.StatusCode,
			Err:          err,
		}
	}

	decoded, err := decodeBody(d.Decoding, resp.Header.Get("Content-Type"), data)
	if err != nil {
		return result.Result{}, &ReceiveError{Service: f.cfg.ServiceName, Err: err}
	}
	return result.Result{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header.Clone(),
		Body:       decoded,
		URL:        d.URL,
	}, nil
}

// decodeBody decodes a response payload per the descriptor's decoding
// mode. JSON decoding falls back to text when the response does not
// declare a JSON content type.
func decodeBody(mode task.Decoding, contentType string, data []byte) (any, error) {
	switch mode {
	case task.DecodeRaw:
		return data, nil
	case task.DecodeText:
		return string(data), nil
	default:
		if !strings.Contains(contentType, "json") {
			return string(data), nil
		}
		if len(data) == 0 {
			return map[string]any{}, nil
		}
		var v any
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("decode json response: %w", err)
		}
		return v, nil
	}
}
