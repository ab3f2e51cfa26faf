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
	"time"

	"golang.org/x/time/rate"

	"github.com/ugurkocde/IntuneAutomation-sub001/client/query"
	"github.com/ugurkocde/IntuneAutomation-sub001/client/rest"
	"github.com/ugurkocde/IntuneAutomation-sub001/constants"
	"github.com/ugurkocde/IntuneAutomation-sub001/models/azure"
	"github.com/ugurkocde/IntuneAutomation-sub001/models/intune"
)

// Config wires a GraphClient to a tenant.
type Config struct {
	// GraphUrl is the Graph service root. Defaults to the public cloud.
	GraphUrl string

	// Tokens supplies authorization headers for every request.
	Tokens rest.TokenSource

	// MaxRetries bounds throttle retries per request; 0 retries forever.
	MaxRetries int

	// PageDelay is the minimum spacing between successive page requests of
	// one listing walk. Defaults to 100ms.
	PageDelay time.Duration
}

// GraphClient is the surface the synchronization engine and the commands
// consume. Listing methods stream; point methods return directly.
type GraphClient interface {
	// Management catalogue (Intune).
	ListManagedDevices(ctx context.Context, params query.GraphParams) <-chan Result[intune.ManagedDevice]
	ListDetectedApps(ctx context.Context, params query.GraphParams) <-chan Result[intune.DetectedApp]
	ListDetectedAppManagedDevices(ctx context.Context, appId string, params query.GraphParams) <-chan Result[intune.ManagedDevice]

	// Directory (Entra ID).
	ListDirectoryDevices(ctx context.Context, params query.GraphParams) <-chan Result[azure.Device]
	FindDevicesByPlatformId(ctx context.Context, platformDeviceId string) ([]azure.Device, error)

	// Groups.
	GetGroupByName(ctx context.Context, displayName string) (*azure.Group, error)
	CreateGroup(ctx context.Context, group azure.Group) (*azure.Group, error)
	ListGroupMembers(ctx context.Context, groupId string, params query.GraphParams) <-chan Result[azure.DirectoryObject]
	AddGroupMembers(ctx context.Context, groupId string, memberIds []string) error
	RemoveGroupMember(ctx context.Context, groupId string, memberId string) error

	CloseIdleConnections()
}

type graphClient struct {
	msgraph rest.RestClient
	limiter *rate.Limiter
}

// NewClient builds a GraphClient from config.
func NewClient(config Config) (GraphClient, error) {
	graphUrl := config.GraphUrl
	if graphUrl == "" {
		graphUrl = constants.DefaultGraphUrl
	}
	pageDelay := config.PageDelay
	if pageDelay <= 0 {
		pageDelay = 100 * time.Millisecond
	}

	msgraph, err := rest.NewRestClient(graphUrl, config.Tokens, rest.Options{MaxRetries: config.MaxRetries})
	if err != nil {
		return nil, err
	}

	return &graphClient{
		msgraph: msgraph,
		limiter: rate.NewLimiter(rate.Every(pageDelay), 1),
	}, nil
}

func (s *graphClient) CloseIdleConnections() {
	s.msgraph.CloseIdleConnections()
}
