// Copyright (C) 2024 IntuneAutomation
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package rest

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func graphError(status int, code, message string) *GraphError {
	var err GraphError
	err.StatusCode = status
	err.Inner.Code = code
	err.Inner.Message = message
	return &err
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected Classification
	}{
		{
			name:     "explicit 429 is retryable",
			err:      graphError(http.StatusTooManyRequests, "", ""),
			expected: Retryable,
		},
		{
			name:     "throttling message pattern is retryable",
			err:      graphError(http.StatusServiceUnavailable, "activityLimitReached", "The request has been throttled"),
			expected: Retryable,
		},
		{
			name:     "too many requests text is retryable",
			err:      graphError(http.StatusBadRequest, "", "Too Many Requests"),
			expected: Retryable,
		},
		{
			name:     "not found is fatal",
			err:      graphError(http.StatusNotFound, "Request_ResourceNotFound", "Resource not found"),
			expected: Fatal,
		},
		{
			name:     "forbidden is fatal",
			err:      graphError(http.StatusForbidden, "Authorization_RequestDenied", "Insufficient privileges"),
			expected: Fatal,
		},
		{
			name:     "plain transport error is fatal",
			err:      errors.New("connection refused"),
			expected: Fatal,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Classify(tc.err))
		})
	}
}

func TestBackoffDurationIsFlat(t *testing.T) {
	for _, attempt := range []int{1, 2, 5, 100} {
		assert.Equal(t, 60*time.Second, BackoffDuration(attempt))
	}
}

func TestGraphErrorNotFound(t *testing.T) {
	assert.True(t, graphError(http.StatusNotFound, "", "").IsNotFound())
	assert.True(t, graphError(http.StatusBadRequest, "Request_ResourceNotFound", "").IsNotFound())
	assert.False(t, graphError(http.StatusForbidden, "", "").IsNotFound())
}
