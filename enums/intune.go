// Copyright (C) 2024 IntuneAutomation
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package enums

// ComplianceState is the compliance status reported for a managed device.
type ComplianceState string

const (
	ComplianceStateCompliant     ComplianceState = "compliant"
	ComplianceStateNoncompliant  ComplianceState = "noncompliant"
	ComplianceStateConflict      ComplianceState = "conflict"
	ComplianceStateError         ComplianceState = "error"
	ComplianceStateUnknown       ComplianceState = "unknown"
	ComplianceStateInGracePeriod ComplianceState = "inGracePeriod"
)

// ValidComplianceState reports whether s is a compliance state the service
// understands, used to validate the --compliance flag before a filtered
// listing is issued.
func ValidComplianceState(s string) bool {
	switch ComplianceState(s) {
	case ComplianceStateCompliant, ComplianceStateNoncompliant, ComplianceStateConflict,
		ComplianceStateError, ComplianceStateUnknown, ComplianceStateInGracePeriod:
		return true
	}
	return false
}
