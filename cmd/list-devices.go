// Copyright (C) 2024 IntuneAutomation
// Command implementation for listing managed devices.

package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ugurkocde/IntuneAutomation-sub001/client"
	"github.com/ugurkocde/IntuneAutomation-sub001/client/query"
	"github.com/ugurkocde/IntuneAutomation-sub001/enums"
	"github.com/ugurkocde/IntuneAutomation-sub001/models/intune"
)

var (
	listDevicesOS         string
	listDevicesCompliance string
)

func init() {
	listDevicesCmd.Flags().StringVar(&listDevicesOS, "os", "", "filter by operating system (e.g. Windows, macOS). Empty for all")
	listDevicesCmd.Flags().StringVar(&listDevicesCompliance, "compliance", "", "filter by compliance state: compliant, noncompliant, conflict, error, unknown, inGracePeriod")
	rootCmd.AddCommand(listDevicesCmd)
}

var listDevicesCmd = &cobra.Command{
	Use:          "list-devices",
	Long:         "Lists managed devices from the management catalogue",
	RunE:         listDevicesCmdImpl,
	SilenceUsage: true,
}

func listDevicesCmdImpl(cmd *cobra.Command, args []string) error {
	ctx, stop := context.WithCancel(cmd.Context())
	defer stop()

	if listDevicesCompliance != "" && !enums.ValidComplianceState(listDevicesCompliance) {
		return fmt.Errorf("unknown compliance state %q", listDevicesCompliance)
	}

	graphClient := connectAndCreateClient()
	defer graphClient.CloseIdleConnections()

	devices, err := listManagedDevices(ctx, graphClient, listDevicesOS, listDevicesCompliance)
	if err != nil {
		// Partial results still print; the error decides the exit status.
		fmt.Printf("warning: listing incomplete: %v\n", err)
	}

	fmt.Printf("Found %d managed devices\n", len(devices))
	for _, device := range devices {
		fmt.Printf("Device: %s (%s %s) serial=%s compliance=%s\n",
			device.DeviceName,
			device.OperatingSystem,
			device.OSVersion,
			device.SerialNumber,
			device.ComplianceState)
	}
	return err
}

func listManagedDevices(ctx context.Context, graphClient client.GraphClient, osFilter, complianceFilter string) ([]intune.ManagedDevice, error) {
	var clauses []string
	if osFilter != "" {
		clauses = append(clauses, fmt.Sprintf("operatingSystem eq '%s'", osFilter))
	}
	if complianceFilter != "" {
		clauses = append(clauses, fmt.Sprintf("complianceState eq '%s'", complianceFilter))
	}

	params := query.GraphParams{Filter: strings.Join(clauses, " and ")}
	return client.FetchAll(graphClient.ListManagedDevices(ctx, params))
}
