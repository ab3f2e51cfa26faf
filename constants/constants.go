// Copyright (C) 2024 IntuneAutomation
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package constants

const (
	// GraphApiVersion is the stable Microsoft Graph API version used for
	// directory and group operations.
	GraphApiVersion = "v1.0"

	// GraphApiBetaVersion is used for endpoints that have not reached v1.0,
	// such as detected applications.
	GraphApiBetaVersion = "beta"

	// DefaultGraphUrl is the Microsoft Graph service root.
	DefaultGraphUrl = "https://graph.microsoft.com"

	// DefaultAuthorityUrl is the Entra ID token authority.
	DefaultAuthorityUrl = "https://login.microsoftonline.com"

	// GroupMemberBatchSize is the hard ceiling the Graph API imposes on the
	// number of members@odata.bind references accepted in a single PATCH.
	GroupMemberBatchSize = 20
)
