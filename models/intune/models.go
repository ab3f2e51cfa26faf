// Copyright (C) 2024 IntuneAutomation
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package intune

import (
	"time"
)

// ManagedDevice is a device record from the Intune management catalogue.
// Three identifier namespaces live on this record: Id is the management
// service's own device id, AzureADDeviceId is the platform device identifier
// shared with the directory, and SerialNumber is the hardware serial.
type ManagedDevice struct {
	Id                   string    `json:"id"`
	DeviceName           string    `json:"deviceName"`
	OperatingSystem      string    `json:"operatingSystem"`
	OSVersion            string    `json:"osVersion"`
	ComplianceState      string    `json:"complianceState"`
	LastSyncDateTime     time.Time `json:"lastSyncDateTime"`
	EnrollmentType       string    `json:"enrollmentType"`
	ManagementAgent      string    `json:"managementAgent"`
	AzureADDeviceId      string    `json:"azureADDeviceId"`
	UserPrincipalName    string    `json:"userPrincipalName"`
	SerialNumber         string    `json:"serialNumber"`
	Manufacturer         string    `json:"manufacturer"`
	Model                string    `json:"model"`
	ManagedDeviceName    string    `json:"managedDeviceName"`
	DeviceEnrollmentType string    `json:"deviceEnrollmentType"`
	JoinType             string    `json:"joinType"`
	EmailAddress         string    `json:"emailAddress"`
	UserId               string    `json:"userId"`
	UserDisplayName      string    `json:"userDisplayName"`
}

// DetectedApp is an application discovered on managed devices, used as a
// desired-set criterion ("devices with application X installed").
type DetectedApp struct {
	Id          string `json:"id"`
	DisplayName string `json:"displayName"`
	Version     string `json:"version"`
	Publisher   string `json:"publisher"`
	DeviceCount int    `json:"deviceCount"`
	Platform    string `json:"platform"`
}
