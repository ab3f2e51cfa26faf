// Copyright (C) 2024 IntuneAutomation
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package query

import "strconv"

// Params is implemented by any set of OData query parameters that can be
// attached to a Graph request.
type Params interface {
	AsMap() map[string]string
	NeedsEventualConsistencyHeaderFlag() bool
}

// GraphParams are the OData system query options accepted by Microsoft Graph
// listing endpoints.
type GraphParams struct {
	Count   bool
	Expand  string
	Filter  string
	Format  string
	Orderby string
	Search  string
	Select  []string
	Skip    int
	Top     int
}

func (s GraphParams) AsMap() map[string]string {
	params := make(map[string]string)
	if s.Count {
		params["$count"] = "true"
	}
	if s.Expand != "" {
		params["$expand"] = s.Expand
	}
	if s.Filter != "" {
		params["$filter"] = s.Filter
	}
	if s.Format != "" {
		params["$format"] = s.Format
	}
	if s.Orderby != "" {
		params["$orderby"] = s.Orderby
	}
	if s.Search != "" {
		params["$search"] = s.Search
	}
	if len(s.Select) > 0 {
		select_ := ""
		for i, col := range s.Select {
			if i > 0 {
				select_ += ","
			}
			select_ += col
		}
		params["$select"] = select_
	}
	if s.Skip > 0 {
		params["$skip"] = strconv.Itoa(s.Skip)
	}
	if s.Top > 0 {
		params["$top"] = strconv.Itoa(s.Top)
	}
	return params
}

// NeedsEventualConsistencyHeaderFlag reports whether the request must carry
// the ConsistencyLevel: eventual header. Graph requires it for $count and
// $search and for several advanced $filter operators.
func (s GraphParams) NeedsEventualConsistencyHeaderFlag() bool {
	return s.Count || s.Search != ""
}
