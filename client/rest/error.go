// Copyright (C) 2024 IntuneAutomation
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package rest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// GraphError is the error envelope returned by Microsoft Graph.
type GraphError struct {
	StatusCode int
	Inner      struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (s *GraphError) Error() string {
	return fmt.Sprintf("graph error: status=%d code=%s message=%s", s.StatusCode, s.Inner.Code, s.Inner.Message)
}

// IsNotFound reports whether the remote service could not locate the
// requested resource.
func (s *GraphError) IsNotFound() bool {
	return s.StatusCode == http.StatusNotFound || s.Inner.Code == "Request_ResourceNotFound"
}

// throttlingPatterns are matched case-insensitively against error payloads
// from endpoints that signal throttling without a 429 status.
var throttlingPatterns = []string{
	"too many requests",
	"activitylimitreached",
	"request_throttledtemporarily",
	"throttl",
}

// IsThrottled reports whether the response signals rate limiting. An explicit
// 429 always does; otherwise the error payload message is matched against the
// known throttling patterns.
func (s *GraphError) IsThrottled() bool {
	if s.StatusCode == http.StatusTooManyRequests {
		return true
	}
	haystack := strings.ToLower(s.Inner.Code + " " + s.Inner.Message)
	for _, pattern := range throttlingPatterns {
		if strings.Contains(haystack, pattern) {
			return true
		}
	}
	return false
}

// NewGraphError decodes the error envelope from a non-2xx response. The body
// is consumed; a body that is not a Graph error envelope still yields a
// GraphError carrying the status code.
func NewGraphError(res *http.Response) *GraphError {
	var graphErr GraphError
	graphErr.StatusCode = res.StatusCode
	if body, err := io.ReadAll(res.Body); err == nil {
		_ = json.Unmarshal(body, &graphErr)
	}
	_ = res.Body.Close()
	return &graphErr
}

// Decode deserializes a JSON response body into out and closes the body.
func Decode(body io.ReadCloser, out interface{}) error {
	defer body.Close()
	return json.NewDecoder(body).Decode(out)
}
