// Copyright (C) 2024 IntuneAutomation
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package azure

import "time"

// Device is a directory device object from Entra ID. Id is the directory
// object id that group membership references use; DeviceId is the platform
// device identifier shared with the management catalogue.
type Device struct {
	Id              string    `json:"id"`
	DeviceId        string    `json:"deviceId"`
	DisplayName     string    `json:"displayName"`
	OperatingSystem string    `json:"operatingSystem"`
	TrustType       string    `json:"trustType"`
	AccountEnabled  bool      `json:"accountEnabled"`
	RegisteredAt    time.Time `json:"registrationDateTime"`
}

// DirectoryObject is the minimal shape shared by everything that can be a
// group member. Membership listings are read with $select=id, so only the id
// is guaranteed to be populated.
type DirectoryObject struct {
	Id          string `json:"id"`
	DisplayName string `json:"displayName"`
	ODataType   string `json:"@odata.type"`
}

// Group is an Entra ID security group, the target collection whose
// membership gets synchronized.
type Group struct {
	Id              string   `json:"id"`
	DisplayName     string   `json:"displayName"`
	Description     string   `json:"description"`
	MailEnabled     bool     `json:"mailEnabled"`
	MailNickname    string   `json:"mailNickname"`
	SecurityEnabled bool     `json:"securityEnabled"`
	GroupTypes      []string `json:"groupTypes"`
}
