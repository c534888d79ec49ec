// Package client holds the typed HTTP bindings the loans service uses to
// reach the books and members services. Every call goes through a circuit
// breaker. When the breaker is open or the call fails in transport, the
// accessor returns its fallback value (absent / false) together with a
// DEPENDENCY_UNAVAILABLE error, so callers can tell a business rejection
// from an infrastructure failure.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/segyhp/jaryq-library/internal/breaker"
	"github.com/segyhp/jaryq-library/internal/correlation"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// StatusError is a 5xx answer from a peer. It counts as a breaker failure.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

type envelope struct {
	Success bool                `json:"success"`
	Data    jsoniter.RawMessage `json:"data"`
}

// result of one round trip that passed the breaker
type result struct {
	status int
	data   jsoniter.RawMessage
}

// hasData reports a 2xx answer carrying a non-null payload
func (r result) hasData() bool {
	if r.status < 200 || r.status >= 300 {
		return false
	}
	d := strings.TrimSpace(string(r.data))
	return d != "" && d != "null"
}

type restClient struct {
	baseURL string
	http    *http.Client
	breaker *breaker.Breaker
}

func newRestClient(baseURL string, httpClient *http.Client, b *breaker.Breaker) *restClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &restClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		breaker: b,
	}
}

// do sends one request through the breaker. 4xx answers are returned as a
// result, not an error, and are not counted against the breaker.
func (c *restClient) do(ctx context.Context, method, path string, query url.Values) (result, error) {
	var res result

	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		target := c.baseURL + path
		if len(query) > 0 {
			target += "?" + query.Encode()
		}

		req, err := http.NewRequestWithContext(ctx, method, target, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		correlation.Propagate(ctx, req)

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}

		if resp.StatusCode >= http.StatusInternalServerError {
			return &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
		}

		res.status = resp.StatusCode
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			var env envelope
			if err := json.Unmarshal(body, &env); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
			res.data = env.Data
		}
		return nil
	})
	if err != nil {
		level := slog.LevelWarn
		if errors.Is(err, breaker.ErrOpen) {
			level = slog.LevelInfo
		}
		slog.Log(ctx, level, "falling back",
			"dependency", c.breaker.Name(),
			"method", method,
			"path", path,
			"error", err,
		)
	}

	return res, err
}
