// Copyright (C) 2024 IntuneAutomation
// Managed-device and directory-device listing API calls.

package client

import (
	"context"
	"fmt"

	"github.com/ugurkocde/IntuneAutomation-sub001/client/query"
	"github.com/ugurkocde/IntuneAutomation-sub001/constants"
	"github.com/ugurkocde/IntuneAutomation-sub001/models/azure"
	"github.com/ugurkocde/IntuneAutomation-sub001/models/intune"
)

// ListManagedDevices retrieves all managed devices from the management
// catalogue.
// GET /deviceManagement/managedDevices
func (s *graphClient) ListManagedDevices(ctx context.Context, params query.GraphParams) <-chan Result[intune.ManagedDevice] {
	var (
		out  = make(chan Result[intune.ManagedDevice])
		path = fmt.Sprintf("/%s/deviceManagement/managedDevices", constants.GraphApiVersion)
	)

	if params.Top == 0 {
		params.Top = 999
	}

	go getGraphObjectList[intune.ManagedDevice](s.msgraph, ctx, path, params, s.limiter, out)

	return out
}

// ListDetectedApps retrieves applications discovered across managed devices.
// GET /deviceManagement/detectedApps
func (s *graphClient) ListDetectedApps(ctx context.Context, params query.GraphParams) <-chan Result[intune.DetectedApp] {
	var (
		out  = make(chan Result[intune.DetectedApp])
		path = fmt.Sprintf("/%s/deviceManagement/detectedApps", constants.GraphApiBetaVersion)
	)

	if params.Top == 0 {
		params.Top = 999
	}

	go getGraphObjectList[intune.DetectedApp](s.msgraph, ctx, path, params, s.limiter, out)

	return out
}

// ListDetectedAppManagedDevices retrieves the managed devices a detected
// application was found on.
// GET /deviceManagement/detectedApps/{id}/managedDevices
func (s *graphClient) ListDetectedAppManagedDevices(ctx context.Context, appId string, params query.GraphParams) <-chan Result[intune.ManagedDevice] {
	var (
		out  = make(chan Result[intune.ManagedDevice])
		path = fmt.Sprintf("/%s/deviceManagement/detectedApps/%s/managedDevices", constants.GraphApiBetaVersion, appId)
	)

	if params.Top == 0 {
		params.Top = 999
	}

	go getGraphObjectList[intune.ManagedDevice](s.msgraph, ctx, path, params, s.limiter, out)

	return out
}

// ListDirectoryDevices retrieves device objects from the directory.
// GET /devices
func (s *graphClient) ListDirectoryDevices(ctx context.Context, params query.GraphParams) <-chan Result[azure.Device] {
	var (
		out  = make(chan Result[azure.Device])
		path = fmt.Sprintf("/%s/devices", constants.GraphApiVersion)
	)

	if params.Top == 0 {
		params.Top = 999
	}

	go getGraphObjectList[azure.Device](s.msgraph, ctx, path, params, s.limiter, out)

	return out
}

// FindDevicesByPlatformId looks up directory devices whose deviceId equals
// the platform device identifier the management catalogue reports. A correct
// directory holds zero or one match; the caller decides what an ambiguous
// result means.
// GET /devices?$filter=deviceId eq '{id}'
func (s *graphClient) FindDevicesByPlatformId(ctx context.Context, platformDeviceId string) ([]azure.Device, error) {
	params := query.GraphParams{
		Filter: fmt.Sprintf("deviceId eq '%s'", platformDeviceId),
		Select: []string{"id", "deviceId", "displayName"},
	}
	return FetchAll(s.ListDirectoryDevices(ctx, params))
}
