// Copyright (C) 2024 IntuneAutomation
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/ugurkocde/IntuneAutomation-sub001/client/query"
	"github.com/ugurkocde/IntuneAutomation-sub001/client/rest"
	"github.com/ugurkocde/IntuneAutomation-sub001/panicrecovery"
	"github.com/ugurkocde/IntuneAutomation-sub001/pipeline"
)

// Result is one item from a streamed listing. Exactly one of Ok or Error is
// meaningful; an Error item is always the last thing a producer emits.
type Result[T any] struct {
	Error error
	Ok    T
}

// getGraphObjectList walks a paginated Graph listing to exhaustion, streaming
// each entity over out. Pages are requested strictly in continuation order
// and entities preserve server order. Throttle retries happen inside the rest
// client; any error surfacing here is fatal to the walk, so the producer
// emits it and stops, leaving the consumer with everything accumulated so far.
func getGraphObjectList[T any](client rest.RestClient, ctx context.Context, path string, params query.Params, limiter *rate.Limiter, out chan Result[T]) {
	defer panicrecovery.PanicRecovery()
	defer close(out)

	var (
		errResult Result[T]
		nextLink  string
		visited   = map[string]bool{}
	)

	for {
		var (
			list struct {
				CountGraph    int    `json:"@odata.count,omitempty"`
				NextLinkGraph string `json:"@odata.nextLink,omitempty"`
				ContextGraph  string `json:"@odata.context,omitempty"`
				NextLinkRM    string `json:"nextLink,omitempty"`
				Value         []T    `json:"value"`
			}
			res *http.Response
			err error
		)

		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				errResult.Error = err
				_ = pipeline.Send(ctx.Done(), out, errResult)
				return
			}
		}

		if nextLink != "" {
			if nextUrl, err := url.Parse(nextLink); err != nil {
				errResult.Error = err
				_ = pipeline.Send(ctx.Done(), out, errResult)
				return
			} else {
				paramsMap := make(map[string]string)
				if params != nil {
					paramsMap = params.AsMap()
				}
				if req, err := rest.NewRequest(ctx, "GET", nextUrl, nil, paramsMap, nil); err != nil {
					errResult.Error = err
					_ = pipeline.Send(ctx.Done(), out, errResult)
					return
				} else if res, err = client.Send(req); err != nil {
					log.Warn().Err(err).Str("url", nextLink).Msg("page fetch failed, returning partial results")
					errResult.Error = err
					_ = pipeline.Send(ctx.Done(), out, errResult)
					return
				}
			}
		} else {
			if res, err = client.Get(ctx, path, params, nil); err != nil {
				log.Warn().Err(err).Str("path", path).Msg("page fetch failed, returning partial results")
				errResult.Error = err
				_ = pipeline.Send(ctx.Done(), out, errResult)
				return
			}
		}

		if err := rest.Decode(res.Body, &list); err != nil {
			errResult.Error = err
			_ = pipeline.Send(ctx.Done(), out, errResult)
			return
		} else {
			for _, u := range list.Value {
				if ok := pipeline.Send(ctx.Done(), out, Result[T]{Ok: u}); !ok {
					return
				}
			}
		}

		if list.NextLinkRM == "" && list.NextLinkGraph == "" {
			break
		} else if list.NextLinkGraph != "" {
			nextLink = list.NextLinkGraph
		} else {
			nextLink = list.NextLinkRM
		}

		// Guard against a continuation that points back at a page already
		// walked; a misbehaving endpoint must not loop us forever.
		if visited[nextLink] {
			log.Warn().Str("url", nextLink).Msg("continuation loop detected, terminating fetch")
			break
		}
		visited[nextLink] = true
	}
}

// FetchAll drains a streamed listing into a slice. A non-nil error means the
// walk terminated early and the slice holds a possibly incomplete prefix;
// callers that need completeness must treat a short result accordingly.
func FetchAll[T any](stream <-chan Result[T]) ([]T, error) {
	var (
		out     = make([]T, 0)
		lastErr error
	)
	for result := range stream {
		if result.Error != nil {
			lastErr = result.Error
		} else {
			out = append(out, result.Ok)
		}
	}
	return out, lastErr
}
