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

package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/ugurkocde/IntuneAutomation-sub001/client"
	"github.com/ugurkocde/IntuneAutomation-sub001/client/query"
	"github.com/ugurkocde/IntuneAutomation-sub001/constants"
	"github.com/ugurkocde/IntuneAutomation-sub001/models/azure"
)

// Mode selects how Reconcile treats the target group.
type Mode string

const (
	// ModeCreateOnly creates the group and populates it; an existing group
	// is a fatal error because updating it was not explicitly requested.
	ModeCreateOnly Mode = "create-only"
	// ModeCreateOrUpdate creates the group when absent and updates its
	// membership either way.
	ModeCreateOrUpdate Mode = "create-or-update"
	// ModeDryRun computes and reports the plan without issuing writes.
	ModeDryRun Mode = "dry-run"
)

// ErrGroupExists is returned in ModeCreateOnly when the target group already
// exists.
var ErrGroupExists = errors.New("group already exists and update was not requested")

// GroupService is the group surface the reconciler consumes. The Graph
// client satisfies it.
type GroupService interface {
	GetGroupByName(ctx context.Context, displayName string) (*azure.Group, error)
	CreateGroup(ctx context.Context, group azure.Group) (*azure.Group, error)
	ListGroupMembers(ctx context.Context, groupId string, params query.GraphParams) <-chan client.Result[azure.DirectoryObject]
	AddGroupMembers(ctx context.Context, groupId string, memberIds []string) error
	RemoveGroupMember(ctx context.Context, groupId string, memberId string) error
}

// Options tune a single reconciliation.
type Options struct {
	// Additive suppresses removals: devices already in the group stay even
	// when they are not in the desired set.
	Additive bool

	// GroupDescription is applied when the group has to be created.
	GroupDescription string
}

// Plan is the computed difference between current and desired membership.
// ToAdd is disjoint from current membership and ToRemove is a subset of it.
type Plan struct {
	ToAdd    []string `json:"toAdd"`
	ToRemove []string `json:"toRemove"`
}

// BatchError records one failed write without aborting the rest.
type BatchError struct {
	Operation string   `json:"operation"` // "add" or "remove"
	MemberIds []string `json:"memberIds"`
	Err       string   `json:"error"`
}

// Outcome is the aggregate result of one reconciliation.
type Outcome struct {
	GroupId      string       `json:"groupId"`
	GroupName    string       `json:"groupName"`
	Mode         Mode         `json:"mode"`
	CreatedGroup bool         `json:"createdGroup"`
	Plan         Plan         `json:"plan"`
	Unresolved   []Unresolved `json:"-"`

	AddedCount       int `json:"addedCount"`
	RemovedCount     int `json:"removedCount"`
	UnresolvedCount  int `json:"unresolvedCount"`
	FailedBatchCount int `json:"failedBatchCount"`

	BatchErrors []BatchError `json:"batchErrors,omitempty"`
}

// Failed reports whether the calling script should exit non-zero even though
// partial progress may have been made.
func (s *Outcome) Failed() bool {
	return s.UnresolvedCount > 0 || s.FailedBatchCount > 0
}

// Reconciler moves a group's membership to match a desired device set.
type Reconciler struct {
	groups   GroupService
	resolver *Resolver
}

func NewReconciler(groups GroupService, resolver *Resolver) *Reconciler {
	return &Reconciler{groups: groups, resolver: resolver}
}

// Reconcile resolves the desired set, reads current membership, computes the
// minimal add/remove plan and applies it in bounded batches. Per-item and
// per-batch failures are recorded in the outcome and do not abort the run;
// only a failure locating or creating the group itself is fatal. Running the
// same reconciliation twice with no external changes plans nothing the
// second time.
func (s *Reconciler) Reconcile(ctx context.Context, groupName string, desired []Device, mode Mode, opts Options) (*Outcome, error) {
	outcome := &Outcome{GroupName: groupName, Mode: mode}

	// Step 1: translate the desired set into directory object ids.
	resolved, unresolved := s.resolver.ResolveAll(ctx, desired)
	outcome.Unresolved = unresolved
	outcome.UnresolvedCount = len(unresolved)

	// Step 2: locate (or create) the target group.
	group, err := s.groups.GetGroupByName(ctx, groupName)
	switch {
	case err == nil:
		if mode == ModeCreateOnly {
			return nil, fmt.Errorf("%w: %s", ErrGroupExists, groupName)
		}
	case errors.Is(err, client.ErrGroupNotFound):
		if mode == ModeDryRun {
			// Nothing to diff against; the whole resolved set would be added.
			outcome.Plan = Plan{ToAdd: resolved, ToRemove: []string{}}
			log.Info().Str("group", groupName).Int("toAdd", len(resolved)).
				Msg("dry run: group does not exist, all resolved devices would be added")
			return outcome, nil
		}
		created, err := s.groups.CreateGroup(ctx, azure.Group{
			DisplayName: groupName,
			Description: opts.GroupDescription,
		})
		if err != nil {
			return nil, fmt.Errorf("creating group %q: %w", groupName, err)
		}
		group = created
		outcome.CreatedGroup = true
		log.Info().Str("group", groupName).Str("id", group.Id).Msg("created group")
	default:
		return nil, fmt.Errorf("locating group %q: %w", groupName, err)
	}
	outcome.GroupId = group.Id

	// Step 3: read current membership once, up front.
	members, memberErr := client.FetchAll(s.groups.ListGroupMembers(ctx, group.Id, query.GraphParams{
		Select: []string{"id"},
	}))
	current := make(map[string]bool, len(members))
	currentOrder := make([]string, 0, len(members))
	for _, m := range members {
		if !current[m.Id] {
			current[m.Id] = true
			currentOrder = append(currentOrder, m.Id)
		}
	}

	// Step 4: plan. A membership read that terminated early yields a
	// partial view; removals computed against it would evict members that
	// are still present, so they are suppressed for this run.
	desiredSet := make(map[string]bool, len(resolved))
	for _, id := range resolved {
		desiredSet[id] = true
	}

	plan := Plan{ToAdd: []string{}, ToRemove: []string{}}
	for _, id := range resolved {
		if !current[id] {
			plan.ToAdd = append(plan.ToAdd, id)
		}
	}
	skipRemovals := opts.Additive
	if memberErr != nil {
		log.Warn().Err(memberErr).Str("group", groupName).
			Msg("membership listing incomplete, suppressing removals this run")
		skipRemovals = true
	}
	if !skipRemovals {
		for _, id := range currentOrder {
			if !desiredSet[id] {
				plan.ToRemove = append(plan.ToRemove, id)
			}
		}
	}
	outcome.Plan = plan

	if mode == ModeDryRun {
		log.Info().Str("group", groupName).
			Int("toAdd", len(plan.ToAdd)).Int("toRemove", len(plan.ToRemove)).
			Msg("dry run: no writes issued")
		return outcome, nil
	}

	// Step 5: apply. Adds go in bounded batches, removals one reference at
	// a time; a failed write is recorded and the rest continue.
	for _, batch := range chunk(plan.ToAdd, constants.GroupMemberBatchSize) {
		if err := s.groups.AddGroupMembers(ctx, group.Id, batch); err != nil {
			log.Error().Err(err).Str("group", groupName).Int("size", len(batch)).Msg("add batch failed")
			outcome.FailedBatchCount++
			outcome.BatchErrors = append(outcome.BatchErrors, BatchError{
				Operation: "add",
				MemberIds: batch,
				Err:       err.Error(),
			})
			continue
		}
		outcome.AddedCount += len(batch)
	}

	for _, id := range plan.ToRemove {
		if err := s.groups.RemoveGroupMember(ctx, group.Id, id); err != nil {
			log.Error().Err(err).Str("group", groupName).Str("member", id).Msg("remove failed")
			outcome.FailedBatchCount++
			outcome.BatchErrors = append(outcome.BatchErrors, BatchError{
				Operation: "remove",
				MemberIds: []string{id},
				Err:       err.Error(),
			})
			continue
		}
		outcome.RemovedCount++
	}

	log.Info().
		Str("group", groupName).
		Int("added", outcome.AddedCount).
		Int("removed", outcome.RemovedCount).
		Int("unresolved", outcome.UnresolvedCount).
		Int("failedBatches", outcome.FailedBatchCount).
		Msg("reconciliation complete")

	return outcome, nil
}

// chunk partitions ids into slices of at most size elements, preserving
// order.
func chunk(ids []string, size int) [][]string {
	var batches [][]string
	for size > 0 && len(ids) > 0 {
		n := size
		if n > len(ids) {
			n = len(ids)
		}
		batches = append(batches, ids[:n])
		ids = ids[n:]
	}
	return batches
}
