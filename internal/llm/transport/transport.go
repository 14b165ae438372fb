// Package transport is a minimal JSON-over-HTTP client for local LLM
// providers (ollama's /api/tags, /api/chat, /api/generate, /api/embed
// endpoints), collapsed from the teacher's generic internal/http
// package down to the surface those calls actually exercise: JSON
// GET/POST with bounded retry. The retry loop is the same
// exponential-backoff-with-cap idiom as internal/ingest's
// embedWithRetry, applied here to transient transport failures instead
// of embedding-provider failures.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Klarline/academe/internal/apperrors"
)

// Config bounds one JSONClient's timeout and retry policy.
type Config struct {
	Timeout     time.Duration
	MaxAttempts int
	BackoffBase time.Duration
	BackoffCap  time.Duration
}

// DefaultConfig is used when a provider client is built without an
// explicit transport.Config.
func DefaultConfig() Config {
	return Config{
		Timeout:     30 * time.Second,
		MaxAttempts: 3,
		BackoffBase: 500 * time.Millisecond,
		BackoffCap:  8 * time.Second,
	}
}

// JSONClient posts/gets JSON bodies against a base URL, retrying
// network errors and 5xx responses with exponential backoff.
type JSONClient struct {
	baseURL string
	http    *http.Client
	cfg     Config
}

// NewJSONClient builds a client rooted at baseURL ("" is legal — every
// path is then taken as an absolute URL). baseURL is given a scheme of
// http:// when none is present, matching how Ollama/LM Studio are
// normally addressed by host:port alone.
func NewJSONClient(baseURL string, cfg Config) (*JSONClient, error) {
	normalized, err := normalizeBaseURL(baseURL)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.InputInvalid, err)
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	return &JSONClient{
		baseURL: normalized,
		http:    &http.Client{Timeout: cfg.Timeout},
		cfg:     cfg,
	}, nil
}

func normalizeBaseURL(s string) (string, error) {
	if s == "" {
		return "", nil
	}
	if strings.Contains(s, " ") {
		return "", fmt.Errorf("invalid base url: %q", s)
	}
	if !strings.Contains(s, "://") {
		s = "http://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(u.String(), "/"), nil
}

// Get decodes the JSON response body into respObj.
func (c *JSONClient) Get(ctx context.Context, path string, respObj any) error {
	return c.do(ctx, http.MethodGet, path, nil, respObj)
}

// Post marshals reqObj as the JSON request body and decodes the
// response into respObj (nil respObj discards the body).
func (c *JSONClient) Post(ctx context.Context, path string, reqObj, respObj any) error {
	return c.do(ctx, http.MethodPost, path, reqObj, respObj)
}

func (c *JSONClient) do(ctx context.Context, method, path string, reqObj, respObj any) error {
	var body []byte
	if reqObj != nil {
		var err error
		body, err = json.Marshal(reqObj)
		if err != nil {
			return apperrors.Wrap(apperrors.InputInvalid, err)
		}
	}

	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxAttempts; attempt++ {
		respBody, status, err := c.roundtrip(ctx, method, path, body)
		switch {
		case err == nil && status < 500 && status < 400:
			if respObj != nil && len(respBody) > 0 {
				if jsonErr := json.Unmarshal(respBody, respObj); jsonErr != nil {
					return apperrors.Wrap(apperrors.Internal, jsonErr)
				}
			}
			return nil
		case err == nil && status < 500:
			// 4xx: the request itself is invalid, retrying won't help.
			return apperrors.New(apperrors.InputInvalid, fmt.Sprintf("%s %s: status %d: %s", method, path, status, respBody), nil)
		case err != nil:
			lastErr = err
		default:
			lastErr = fmt.Errorf("status %d", status)
		}

		if attempt == c.cfg.MaxAttempts-1 {
			break
		}
		wait := c.cfg.BackoffBase * time.Duration(1<<attempt)
		if wait > c.cfg.BackoffCap {
			wait = c.cfg.BackoffCap
		}
		select {
		case <-ctx.Done():
			return apperrors.Wrap(apperrors.DependencyTimeout, ctx.Err())
		case <-time.After(wait):
		}
	}
	return apperrors.New(apperrors.DependencyUnavailable, fmt.Sprintf("%s %s failed after %d attempts", method, path, c.cfg.MaxAttempts), lastErr).WithSuggestion(apperrors.SuggestRetry)
}

func (c *JSONClient) roundtrip(ctx context.Context, method, path string, body []byte) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return respBody, resp.StatusCode, nil
}
