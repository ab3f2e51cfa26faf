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

	"github.com/ugurkocde/IntuneAutomation-sub001/models/azure"
	"github.com/ugurkocde/IntuneAutomation-sub001/models/intune"
)

// Namespace identifies one of the three addressing schemes a device can be
// referred to by.
type Namespace string

const (
	// NamespaceManagementID is the management service's own device id.
	NamespaceManagementID Namespace = "managementId"
	// NamespaceHardwareSerial covers the hardware serial and the platform
	// device identifier the catalogue shares with the directory.
	NamespaceHardwareSerial Namespace = "hardwareSerial"
	// NamespaceDirectoryObjectID is the directory object id that group
	// membership references require.
	NamespaceDirectoryObjectID Namespace = "directoryObjectId"
)

var (
	// ErrNotFound means the device has no identity in the requested
	// namespace: it was never directory-joined, or the lookup found nothing.
	ErrNotFound = errors.New("device identity not found")

	// ErrAmbiguousIdentity means a lookup expected to return at most one
	// match returned several. The identity is treated as unresolved rather
	// than acted on.
	ErrAmbiguousIdentity = errors.New("ambiguous device identity")
)

// Device is the resolver's view of a desired-set entry. Any field may be
// empty; DirectoryObjectId, when already known to the caller, short-circuits
// the lookup entirely.
type Device struct {
	ManagementId      string
	Name              string
	SerialNumber      string
	PlatformDeviceId  string
	DirectoryObjectId string
}

// FromManagedDevice adapts a management-catalogue record.
func FromManagedDevice(d intune.ManagedDevice) Device {
	return Device{
		ManagementId:     d.Id,
		Name:             d.DeviceName,
		SerialNumber:     d.SerialNumber,
		PlatformDeviceId: d.AzureADDeviceId,
	}
}

// DeviceFinder is the directory lookup surface the resolver consumes.
type DeviceFinder interface {
	FindDevicesByPlatformId(ctx context.Context, platformDeviceId string) ([]azure.Device, error)
}

// Resolver translates devices into the directory object id namespace. It can
// be primed with a previously fetched directory listing to avoid per-device
// lookups; otherwise it issues one filtered query per device.
type Resolver struct {
	finder DeviceFinder
	known  map[string]string // platform device id -> directory object id
}

func NewResolver(finder DeviceFinder) *Resolver {
	return &Resolver{
		finder: finder,
		known:  make(map[string]string),
	}
}

// Prime records directory devices fetched earlier so their identities resolve
// without a lookup call.
func (s *Resolver) Prime(devices []azure.Device) {
	for _, d := range devices {
		if d.DeviceId != "" {
			s.known[d.DeviceId] = d.Id
		}
	}
}

// Resolve returns the directory object id for a device. Preference order:
// an id already present on the record, then the primed cache, then one
// filtered directory lookup. Zero matches is ErrNotFound; several matches is
// ErrAmbiguousIdentity.
func (s *Resolver) Resolve(ctx context.Context, device Device) (string, error) {
	if device.DirectoryObjectId != "" {
		return device.DirectoryObjectId, nil
	}
	if device.PlatformDeviceId == "" {
		return "", fmt.Errorf("%w: %s has no platform device id", ErrNotFound, device.describe())
	}
	if id, ok := s.known[device.PlatformDeviceId]; ok {
		return id, nil
	}

	matches, err := s.finder.FindDevicesByPlatformId(ctx, device.PlatformDeviceId)
	if err != nil {
		return "", fmt.Errorf("looking up %s: %w", device.describe(), err)
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrNotFound, device.describe())
	case 1:
		s.known[device.PlatformDeviceId] = matches[0].Id
		return matches[0].Id, nil
	default:
		log.Warn().
			Str("device", device.describe()).
			Int("matches", len(matches)).
			Msg("identity lookup returned multiple directory devices, skipping")
		return "", fmt.Errorf("%w: %s matched %d directory objects", ErrAmbiguousIdentity, device.describe(), len(matches))
	}
}

// Unresolved pairs a device with the reason its identity could not be
// established.
type Unresolved struct {
	Device Device
	Reason error
}

// ResolveAll resolves every device, one lookup at a time, continuing past
// per-device failures. Resolved ids preserve input order and are
// deduplicated.
func (s *Resolver) ResolveAll(ctx context.Context, devices []Device) ([]string, []Unresolved) {
	var (
		resolved   = make([]string, 0, len(devices))
		seen       = make(map[string]bool, len(devices))
		unresolved []Unresolved
	)

	for _, device := range devices {
		id, err := s.Resolve(ctx, device)
		if err != nil {
			log.Warn().Err(err).Str("device", device.describe()).Msg("skipping unresolved device")
			unresolved = append(unresolved, Unresolved{Device: device, Reason: err})
			continue
		}
		if !seen[id] {
			seen[id] = true
			resolved = append(resolved, id)
		}
	}

	return resolved, unresolved
}

func (s Device) describe() string {
	switch {
	case s.Name != "":
		return s.Name
	case s.SerialNumber != "":
		return "serial " + s.SerialNumber
	case s.ManagementId != "":
		return "managed device " + s.ManagementId
	default:
		return "unidentified device"
	}
}
