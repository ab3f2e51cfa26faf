// Copyright (C) 2024 IntuneAutomation
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/ugurkocde/IntuneAutomation-sub001/client/query"
)

// ErrRetriesExhausted is returned when a retry ceiling is configured and a
// request is still throttled after the final attempt.
var ErrRetriesExhausted = errors.New("rest: throttled and retry limit reached")

// RestClient issues authenticated requests against a single service root and
// applies the throttle retry policy to every call.
type RestClient interface {
	Get(ctx context.Context, path string, params query.Params, headers map[string]string) (*http.Response, error)
	Post(ctx context.Context, path string, body interface{}, params map[string]string, headers map[string]string) (*http.Response, error)
	Patch(ctx context.Context, path string, body interface{}, params map[string]string, headers map[string]string) (*http.Response, error)
	Delete(ctx context.Context, path string, body interface{}, params map[string]string, headers map[string]string) (*http.Response, error)
	Send(req *http.Request) (*http.Response, error)
	CloseIdleConnections()
}

// Options tune the retry behavior of a RestClient.
type Options struct {
	// MaxRetries bounds the number of retries after a throttled response.
	// Zero preserves the source behavior: retry forever.
	MaxRetries int

	// Sleep is the wait function used between retries. Defaults to a
	// context-aware sleep; tests substitute an instant one.
	Sleep func(ctx context.Context, d time.Duration) error
}

type restClient struct {
	base    *url.URL
	http    *http.Client
	tokens  TokenSource
	options Options
}

// NewRestClient builds a client rooted at baseUrl. All request paths are
// resolved against it; absolute continuation URIs bypass it.
func NewRestClient(baseUrl string, tokens TokenSource, options Options) (RestClient, error) {
	base, err := url.Parse(baseUrl)
	if err != nil {
		return nil, fmt.Errorf("parsing base url %q: %w", baseUrl, err)
	}
	if options.Sleep == nil {
		options.Sleep = sleepContext
	}
	return &restClient{
		base:    base,
		http:    &http.Client{Timeout: 5 * time.Minute},
		tokens:  tokens,
		options: options,
	}, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// NewRequest builds a JSON request for the given absolute URL, applying query
// parameters and headers. The body, when non-nil, is marshaled to JSON.
func NewRequest(ctx context.Context, verb string, endpoint *url.URL, body interface{}, params map[string]string, headers map[string]string) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(buf)
	}

	if len(params) > 0 {
		values := endpoint.Query()
		for key, value := range params {
			values.Set(key, value)
		}
		endpoint.RawQuery = values.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, verb, endpoint.String(), reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	return req, nil
}

func (s *restClient) resolve(path string) *url.URL {
	endpoint := *s.base
	endpoint.Path = path
	return &endpoint
}

func (s *restClient) Get(ctx context.Context, path string, params query.Params, headers map[string]string) (*http.Response, error) {
	paramsMap := make(map[string]string)
	if params != nil {
		paramsMap = params.AsMap()
		if params.NeedsEventualConsistencyHeaderFlag() {
			if headers == nil {
				headers = make(map[string]string)
			}
			headers["ConsistencyLevel"] = "eventual"
		}
	}
	req, err := NewRequest(ctx, http.MethodGet, s.resolve(path), nil, paramsMap, headers)
	if err != nil {
		return nil, err
	}
	return s.Send(req)
}

func (s *restClient) Post(ctx context.Context, path string, body interface{}, params map[string]string, headers map[string]string) (*http.Response, error) {
	req, err := NewRequest(ctx, http.MethodPost, s.resolve(path), body, params, headers)
	if err != nil {
		return nil, err
	}
	return s.Send(req)
}

func (s *restClient) Patch(ctx context.Context, path string, body interface{}, params map[string]string, headers map[string]string) (*http.Response, error) {
	req, err := NewRequest(ctx, http.MethodPatch, s.resolve(path), body, params, headers)
	if err != nil {
		return nil, err
	}
	return s.Send(req)
}

func (s *restClient) Delete(ctx context.Context, path string, body interface{}, params map[string]string, headers map[string]string) (*http.Response, error) {
	req, err := NewRequest(ctx, http.MethodDelete, s.resolve(path), body, params, headers)
	if err != nil {
		return nil, err
	}
	return s.Send(req)
}

// Send issues the request, injecting the authorization header and a
// client-request-id, and retries the same request after the fixed backoff for
// as long as the service keeps throttling (or until the configured ceiling).
func (s *restClient) Send(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		buf, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		body = buf
	}

	for attempt := 1; ; attempt++ {
		if s.tokens != nil {
			auth, err := s.tokens.AccessToken(req.Context())
			if err != nil {
				return nil, fmt.Errorf("acquiring access token: %w", err)
			}
			req.Header.Set("Authorization", auth)
		}
		req.Header.Set("client-request-id", uuid.NewString())
		if body != nil {
			req.Body = io.NopCloser(bytes.NewReader(body))
		}

		res, err := s.http.Do(req)
		if err != nil {
			return nil, err
		}
		if res.StatusCode < 300 {
			return res, nil
		}

		graphErr := NewGraphError(res)
		if Classify(graphErr) == Fatal {
			return nil, graphErr
		}

		if s.options.MaxRetries > 0 && attempt > s.options.MaxRetries {
			return nil, fmt.Errorf("%w: %s", ErrRetriesExhausted, req.URL)
		}

		wait := BackoffDuration(attempt)
		log.Warn().
			Str("url", req.URL.String()).
			Int("attempt", attempt).
			Dur("wait", wait).
			Msg("request throttled, backing off")
		if err := s.options.Sleep(req.Context(), wait); err != nil {
			return nil, err
		}
	}
}

func (s *restClient) CloseIdleConnections() {
	s.http.CloseIdleConnections()
}
