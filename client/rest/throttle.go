// Copyright (C) 2024 IntuneAutomation
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package rest

import (
	"errors"
	"time"
)

// ThrottleWait is the fixed wait applied after a throttled response. The
// remote service's guidance is a flat 60 second cool-off; there is no
// exponential growth and no jitter.
const ThrottleWait = 60 * time.Second

// Classification is the retry decision for a failed call.
type Classification int

const (
	// Fatal errors propagate immediately: not-found, forbidden, malformed
	// requests, transport failures.
	Fatal Classification = iota
	// Retryable errors are rate-limit signals; the same request is reissued
	// after BackoffDuration.
	Retryable
)

// Classify maps an error from a Graph call to a retry decision. Only
// throttling signals are Retryable.
func Classify(err error) Classification {
	var graphErr *GraphError
	if errors.As(err, &graphErr) && graphErr.IsThrottled() {
		return Retryable
	}
	return Fatal
}

// BackoffDuration returns the wait before retry attempt number attempt
// (1-based). The policy is a flat wait regardless of attempt count.
func BackoffDuration(attempt int) time.Duration {
	return ThrottleWait
}
