// Copyright (C) 2024 IntuneAutomation
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package sync

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ugurkocde/IntuneAutomation-sub001/client"
	"github.com/ugurkocde/IntuneAutomation-sub001/client/query"
	"github.com/ugurkocde/IntuneAutomation-sub001/models/azure"
)

// fakeGroups is an in-memory GroupService whose writes actually mutate
// membership, so reconcile-twice tests observe real convergence.
type fakeGroups struct {
	group   *azure.Group
	members []string

	addBatches    [][]string
	removeCalls   []string
	createCalls   int
	failAddBatch  map[int]bool // batch index -> fail
	failRemove    map[string]bool
	listMemberErr error
}

func newFakeGroups(name string, members ...string) *fakeGroups {
	return &fakeGroups{
		group:      &azure.Group{Id: "grp-1", DisplayName: name},
		members:    members,
		failRemove: map[string]bool{},
	}
}

func (s *fakeGroups) GetGroupByName(ctx context.Context, displayName string) (*azure.Group, error) {
	if s.group == nil || s.group.DisplayName != displayName {
		return nil, fmt.Errorf("%w: %s", client.ErrGroupNotFound, displayName)
	}
	return s.group, nil
}

func (s *fakeGroups) CreateGroup(ctx context.Context, group azure.Group) (*azure.Group, error) {
	s.createCalls++
	s.group = &azure.Group{Id: "grp-new", DisplayName: group.DisplayName, Description: group.Description}
	s.members = nil
	return s.group, nil
}

func (s *fakeGroups) ListGroupMembers(ctx context.Context, groupId string, params query.GraphParams) <-chan client.Result[azure.DirectoryObject] {
	out := make(chan client.Result[azure.DirectoryObject])
	go func() {
		defer close(out)
		for _, id := range s.members {
			out <- client.Result[azure.DirectoryObject]{Ok: azure.DirectoryObject{Id: id}}
		}
		if s.listMemberErr != nil {
			out <- client.Result[azure.DirectoryObject]{Error: s.listMemberErr}
		}
	}()
	return out
}

func (s *fakeGroups) AddGroupMembers(ctx context.Context, groupId string, memberIds []string) error {
	index := len(s.addBatches)
	s.addBatches = append(s.addBatches, append([]string(nil), memberIds...))
	if s.failAddBatch[index] {
		return errors.New("add batch rejected")
	}
	s.members = append(s.members, memberIds...)
	return nil
}

func (s *fakeGroups) RemoveGroupMember(ctx context.Context, groupId string, memberId string) error {
	s.removeCalls = append(s.removeCalls, memberId)
	if s.failRemove[memberId] {
		return errors.New("remove rejected")
	}
	kept := s.members[:0]
	for _, id := range s.members {
		if id != memberId {
			kept = append(kept, id)
		}
	}
	s.members = kept
	return nil
}

// desiredOf builds a desired set whose identities are already known, keeping
// reconciler tests independent of lookup behavior.
func desiredOf(ids ...string) []Device {
	out := make([]Device, len(ids))
	for i, id := range ids {
		out[i] = Device{Name: "dev-" + id, DirectoryObjectId: id}
	}
	return out
}

func newTestReconciler(groups *fakeGroups) *Reconciler {
	return NewReconciler(groups, NewResolver(&fakeFinder{}))
}

func TestReconcilePlanSetDifference(t *testing.T) {
	groups := newFakeGroups("Workstations", "A", "B", "C")
	outcome, err := newTestReconciler(groups).Reconcile(
		context.Background(), "Workstations", desiredOf("B", "C", "D"), ModeCreateOrUpdate, Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"D"}, outcome.Plan.ToAdd)
	assert.Equal(t, []string{"A"}, outcome.Plan.ToRemove)
	assert.Equal(t, 1, outcome.AddedCount)
	assert.Equal(t, 1, outcome.RemovedCount)
	assert.ElementsMatch(t, []string{"B", "C", "D"}, groups.members)
}

func TestReconcileAdditiveNeverRemoves(t *testing.T) {
	groups := newFakeGroups("Workstations", "A", "B", "C")
	outcome, err := newTestReconciler(groups).Reconcile(
		context.Background(), "Workstations", desiredOf("B", "C", "D"), ModeCreateOrUpdate, Options{Additive: true})
	require.NoError(t, err)

	assert.Equal(t, []string{"D"}, outcome.Plan.ToAdd)
	assert.Empty(t, outcome.Plan.ToRemove)
	assert.Empty(t, groups.removeCalls)
	assert.ElementsMatch(t, []string{"A", "B", "C", "D"}, groups.members)
}

func TestReconcileAdditiveScenario(t *testing.T) {
	// Current {X}, desired {X, Y, Z}, additive.
	groups := newFakeGroups("Scenario", "X")
	outcome, err := newTestReconciler(groups).Reconcile(
		context.Background(), "Scenario", desiredOf("X", "Y", "Z"), ModeCreateOrUpdate, Options{Additive: true})
	require.NoError(t, err)

	assert.Equal(t, 2, outcome.AddedCount)
	assert.Equal(t, 0, outcome.RemovedCount)
	assert.Equal(t, 0, outcome.UnresolvedCount)
	assert.ElementsMatch(t, []string{"X", "Y", "Z"}, groups.members)
}

func TestReconcileBatchCeiling(t *testing.T) {
	const total = 45 // expect ceil(45/20) = 3 batches
	ids := make([]string, total)
	for i := range ids {
		ids[i] = fmt.Sprintf("obj-%02d", i)
	}

	groups := newFakeGroups("Big")
	outcome, err := newTestReconciler(groups).Reconcile(
		context.Background(), "Big", desiredOf(ids...), ModeCreateOrUpdate, Options{})
	require.NoError(t, err)

	require.Len(t, groups.addBatches, 3)
	assert.Len(t, groups.addBatches[0], 20)
	assert.Len(t, groups.addBatches[1], 20)
	assert.Len(t, groups.addBatches[2], 5)
	for _, batch := range groups.addBatches {
		assert.LessOrEqual(t, len(batch), 20)
	}
	assert.Equal(t, total, outcome.AddedCount)
}

func TestReconcileIsIdempotent(t *testing.T) {
	groups := newFakeGroups("Idem", "A", "Z")
	reconciler := newTestReconciler(groups)
	desired := desiredOf("A", "B", "C")

	first, err := reconciler.Reconcile(context.Background(), "Idem", desired, ModeCreateOrUpdate, Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, first.AddedCount)
	assert.Equal(t, 1, first.RemovedCount)

	second, err := reconciler.Reconcile(context.Background(), "Idem", desired, ModeCreateOrUpdate, Options{})
	require.NoError(t, err)
	assert.Empty(t, second.Plan.ToAdd)
	assert.Empty(t, second.Plan.ToRemove)
	assert.Zero(t, second.AddedCount)
	assert.Zero(t, second.RemovedCount)
}

func TestReconcilePartialResolutionFailure(t *testing.T) {
	finder := &fakeFinder{devices: map[string][]azure.Device{
		"aad-1": {{Id: "obj-1"}},
		"aad-2": {{Id: "obj-2"}},
		"aad-3": {{Id: "obj-3"}},
		"aad-4": {{Id: "obj-4"}},
	}}
	groups := newFakeGroups("Partial")
	reconciler := NewReconciler(groups, NewResolver(finder))

	desired := []Device{
		{Name: "d1", PlatformDeviceId: "aad-1"},
		{Name: "d2", PlatformDeviceId: "aad-2"},
		{Name: "d3", PlatformDeviceId: "aad-3"},
		{Name: "d4", PlatformDeviceId: "aad-4"},
		{Name: "d5", PlatformDeviceId: "aad-missing"},
	}

	outcome, err := reconciler.Reconcile(context.Background(), "Partial", desired, ModeCreateOrUpdate, Options{})
	require.NoError(t, err)
	assert.Equal(t, 4, outcome.AddedCount)
	assert.Equal(t, 1, outcome.UnresolvedCount)
	assert.True(t, outcome.Failed())
}

func TestReconcileContinuesPastFailedBatch(t *testing.T) {
	ids := make([]string, 30) // two batches: 20 + 10
	for i := range ids {
		ids[i] = fmt.Sprintf("obj-%02d", i)
	}
	groups := newFakeGroups("Flaky")
	groups.failAddBatch = map[int]bool{0: true}

	outcome, err := newTestReconciler(groups).Reconcile(
		context.Background(), "Flaky", desiredOf(ids...), ModeCreateOrUpdate, Options{})
	require.NoError(t, err)

	require.Len(t, groups.addBatches, 2, "second batch must still be attempted")
	assert.Equal(t, 10, outcome.AddedCount)
	assert.Equal(t, 1, outcome.FailedBatchCount)
	require.Len(t, outcome.BatchErrors, 1)
	assert.Equal(t, "add", outcome.BatchErrors[0].Operation)
	assert.True(t, outcome.Failed())
}

func TestReconcileContinuesPastFailedRemove(t *testing.T) {
	groups := newFakeGroups("Removals", "A", "B", "C")
	groups.failRemove["B"] = true

	outcome, err := newTestReconciler(groups).Reconcile(
		context.Background(), "Removals", desiredOf(), ModeCreateOrUpdate, Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B", "C"}, groups.removeCalls)
	assert.Equal(t, 2, outcome.RemovedCount)
	assert.Equal(t, 1, outcome.FailedBatchCount)
	assert.Equal(t, []string{"B"}, groups.members)
}

func TestReconcileDryRunIssuesNoWrites(t *testing.T) {
	groups := newFakeGroups("Dry", "A", "B")
	outcome, err := newTestReconciler(groups).Reconcile(
		context.Background(), "Dry", desiredOf("B", "C"), ModeDryRun, Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"C"}, outcome.Plan.ToAdd)
	assert.Equal(t, []string{"A"}, outcome.Plan.ToRemove)
	assert.Empty(t, groups.addBatches)
	assert.Empty(t, groups.removeCalls)
	assert.Zero(t, outcome.AddedCount)
	assert.Equal(t, []string{"A", "B"}, groups.members, "membership must be untouched")
}

func TestReconcileDryRunMissingGroup(t *testing.T) {
	groups := &fakeGroups{failRemove: map[string]bool{}}
	outcome, err := newTestReconciler(groups).Reconcile(
		context.Background(), "Ghost", desiredOf("A", "B"), ModeDryRun, Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B"}, outcome.Plan.ToAdd)
	assert.Zero(t, groups.createCalls)
}

func TestReconcileCreateOnlyFailsWhenGroupExists(t *testing.T) {
	groups := newFakeGroups("Existing")
	_, err := newTestReconciler(groups).Reconcile(
		context.Background(), "Existing", desiredOf("A"), ModeCreateOnly, Options{})
	assert.ErrorIs(t, err, ErrGroupExists)
	assert.Empty(t, groups.addBatches)
}

func TestReconcileCreateOnlyCreatesMissingGroup(t *testing.T) {
	groups := &fakeGroups{failRemove: map[string]bool{}}
	outcome, err := newTestReconciler(groups).Reconcile(
		context.Background(), "Brand-New", desiredOf("A"), ModeCreateOnly, Options{})
	require.NoError(t, err)

	assert.True(t, outcome.CreatedGroup)
	assert.Equal(t, 1, groups.createCalls)
	assert.Equal(t, []string{"A"}, groups.members)
}

func TestReconcileCreateOrUpdateCreatesMissingGroup(t *testing.T) {
	groups := &fakeGroups{failRemove: map[string]bool{}}
	outcome, err := newTestReconciler(groups).Reconcile(
		context.Background(), "Fresh", desiredOf("A", "B"), ModeCreateOrUpdate, Options{GroupDescription: "made by sync"})
	require.NoError(t, err)

	assert.True(t, outcome.CreatedGroup)
	assert.Equal(t, 1, groups.createCalls)
	assert.Equal(t, "made by sync", groups.group.Description)
	assert.Equal(t, 2, outcome.AddedCount)
	assert.ElementsMatch(t, []string{"A", "B"}, groups.members)
}

func TestReconcileIncompleteMembershipSuppressesRemovals(t *testing.T) {
	groups := newFakeGroups("Partial", "A", "B")
	groups.listMemberErr = errors.New("page fetch failed")

	outcome, err := newTestReconciler(groups).Reconcile(
		context.Background(), "Partial", desiredOf("B", "C"), ModeCreateOrUpdate, Options{})
	require.NoError(t, err)

	assert.Empty(t, outcome.Plan.ToRemove, "removals must not be planned from a partial membership view")
	assert.Empty(t, groups.removeCalls)
	assert.Equal(t, []string{"C"}, outcome.Plan.ToAdd)
}

func TestOutcomeFailed(t *testing.T) {
	assert.False(t, (&Outcome{}).Failed())
	assert.True(t, (&Outcome{UnresolvedCount: 1}).Failed())
	assert.True(t, (&Outcome{FailedBatchCount: 1}).Failed())
}
