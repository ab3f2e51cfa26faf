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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ugurkocde/IntuneAutomation-sub001/models/azure"
)

type fakeFinder struct {
	devices map[string][]azure.Device // platform device id -> matches
	err     error
	calls   int
}

func (s *fakeFinder) FindDevicesByPlatformId(ctx context.Context, platformDeviceId string) ([]azure.Device, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.devices[platformDeviceId], nil
}

func TestResolvePrefersKnownDirectoryObjectId(t *testing.T) {
	finder := &fakeFinder{}
	resolver := NewResolver(finder)

	id, err := resolver.Resolve(context.Background(), Device{
		Name:              "LAPTOP-01",
		PlatformDeviceId:  "aad-1",
		DirectoryObjectId: "obj-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "obj-1", id)
	assert.Zero(t, finder.calls, "a known id must not trigger a lookup")
}

func TestResolveLooksUpByPlatformId(t *testing.T) {
	finder := &fakeFinder{devices: map[string][]azure.Device{
		"aad-1": {{Id: "obj-1", DeviceId: "aad-1"}},
	}}
	resolver := NewResolver(finder)

	id, err := resolver.Resolve(context.Background(), Device{Name: "LAPTOP-01", PlatformDeviceId: "aad-1"})
	require.NoError(t, err)
	assert.Equal(t, "obj-1", id)
	assert.Equal(t, 1, finder.calls)

	// Second resolution of the same platform id hits the cache.
	id, err = resolver.Resolve(context.Background(), Device{Name: "LAPTOP-01", PlatformDeviceId: "aad-1"})
	require.NoError(t, err)
	assert.Equal(t, "obj-1", id)
	assert.Equal(t, 1, finder.calls)
}

func TestResolvePrimedListingAvoidsLookups(t *testing.T) {
	finder := &fakeFinder{}
	resolver := NewResolver(finder)
	resolver.Prime([]azure.Device{
		{Id: "obj-1", DeviceId: "aad-1"},
		{Id: "obj-2", DeviceId: "aad-2"},
	})

	for platformId, want := range map[string]string{"aad-1": "obj-1", "aad-2": "obj-2"} {
		id, err := resolver.Resolve(context.Background(), Device{PlatformDeviceId: platformId})
		require.NoError(t, err)
		assert.Equal(t, want, id)
	}
	assert.Zero(t, finder.calls)
}

func TestResolveMissingPlatformIdIsNotFound(t *testing.T) {
	resolver := NewResolver(&fakeFinder{})

	_, err := resolver.Resolve(context.Background(), Device{Name: "never-joined"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveNoMatchIsNotFound(t *testing.T) {
	resolver := NewResolver(&fakeFinder{devices: map[string][]azure.Device{}})

	_, err := resolver.Resolve(context.Background(), Device{Name: "gone", PlatformDeviceId: "aad-x"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveMultipleMatchesIsAmbiguous(t *testing.T) {
	finder := &fakeFinder{devices: map[string][]azure.Device{
		"aad-dup": {{Id: "obj-1", DeviceId: "aad-dup"}, {Id: "obj-2", DeviceId: "aad-dup"}},
	}}
	resolver := NewResolver(finder)

	_, err := resolver.Resolve(context.Background(), Device{Name: "dup", PlatformDeviceId: "aad-dup"})
	assert.ErrorIs(t, err, ErrAmbiguousIdentity)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestResolveAllContinuesPastFailures(t *testing.T) {
	finder := &fakeFinder{devices: map[string][]azure.Device{
		"aad-1": {{Id: "obj-1"}},
		"aad-2": {{Id: "obj-2"}},
		"aad-3": {{Id: "obj-3"}},
		"aad-4": {{Id: "obj-4"}},
	}}
	resolver := NewResolver(finder)

	devices := []Device{
		{Name: "d1", PlatformDeviceId: "aad-1"},
		{Name: "d2", PlatformDeviceId: "aad-2"},
		{Name: "broken"}, // no platform id
		{Name: "d3", PlatformDeviceId: "aad-3"},
		{Name: "d4", PlatformDeviceId: "aad-4"},
	}

	resolved, unresolved := resolver.ResolveAll(context.Background(), devices)
	assert.Equal(t, []string{"obj-1", "obj-2", "obj-3", "obj-4"}, resolved)
	require.Len(t, unresolved, 1)
	assert.Equal(t, "broken", unresolved[0].Device.Name)
	assert.ErrorIs(t, unresolved[0].Reason, ErrNotFound)
}

func TestResolveAllDeduplicates(t *testing.T) {
	finder := &fakeFinder{devices: map[string][]azure.Device{
		"aad-1": {{Id: "obj-1"}},
	}}
	resolver := NewResolver(finder)

	resolved, unresolved := resolver.ResolveAll(context.Background(), []Device{
		{Name: "d1", PlatformDeviceId: "aad-1"},
		{Name: "d1-again", PlatformDeviceId: "aad-1"},
	})
	assert.Equal(t, []string{"obj-1"}, resolved)
	assert.Empty(t, unresolved)
}

func TestResolveLookupErrorIsReported(t *testing.T) {
	finder := &fakeFinder{err: errors.New("boom")}
	resolver := NewResolver(finder)

	_, unresolved := resolver.ResolveAll(context.Background(), []Device{
		{Name: "d1", PlatformDeviceId: "aad-1"},
	})
	require.Len(t, unresolved, 1)
	assert.ErrorContains(t, unresolved[0].Reason, "boom")
}
