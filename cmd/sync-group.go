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

package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ugurkocde/IntuneAutomation-sub001/client"
	"github.com/ugurkocde/IntuneAutomation-sub001/client/query"
	"github.com/ugurkocde/IntuneAutomation-sub001/enums"
	"github.com/ugurkocde/IntuneAutomation-sub001/panicrecovery"
	"github.com/ugurkocde/IntuneAutomation-sub001/sync"
)

var (
	syncGroupName        string
	syncGroupApp         string
	syncGroupDeviceFile  string
	syncGroupOS          string
	syncGroupCompliance  string
	syncGroupAdditive    bool
	syncGroupCreateOnly  bool
	syncGroupDryRun      bool
	syncGroupDescription string
	syncGroupReport      string
)

func init() {
	syncGroupCmd.Flags().StringVar(&syncGroupName, "group", "", "display name of the target group")
	syncGroupCmd.Flags().StringVar(&syncGroupApp, "app", "", "desired set: devices with this detected application installed")
	syncGroupCmd.Flags().StringVar(&syncGroupDeviceFile, "device-file", "", "desired set: file of device names, one per line")
	syncGroupCmd.Flags().StringVar(&syncGroupOS, "os", "", "desired set: restrict to this operating system")
	syncGroupCmd.Flags().StringVar(&syncGroupCompliance, "compliance", "", "desired set: restrict to this compliance state")
	syncGroupCmd.Flags().BoolVar(&syncGroupAdditive, "additive", false, "only add members, never remove")
	syncGroupCmd.Flags().BoolVar(&syncGroupCreateOnly, "create-only", false, "create the group; fail if it already exists")
	syncGroupCmd.Flags().BoolVar(&syncGroupDryRun, "dry-run", false, "compute and report the plan without writing")
	syncGroupCmd.Flags().StringVar(&syncGroupDescription, "description", "", "description applied when the group is created")
	syncGroupCmd.Flags().StringVar(&syncGroupReport, "report", "", "write the outcome as JSON to this file")
	_ = syncGroupCmd.MarkFlagRequired("group")
	rootCmd.AddCommand(syncGroupCmd)
}

var syncGroupCmd = &cobra.Command{
	Use:          "sync-group",
	Long:         "Reconciles an Entra ID group's membership against a desired set of managed devices",
	RunE:         syncGroupCmdImpl,
	SilenceUsage: true,
}

func syncGroupCmdImpl(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	panicrecovery.HandleBubbledPanic(ctx.Done(), stop)

	if syncGroupApp == "" && syncGroupDeviceFile == "" && syncGroupOS == "" && syncGroupCompliance == "" {
		return fmt.Errorf("at least one desired-set criterion is required: --app, --device-file, --os or --compliance")
	}
	if syncGroupCompliance != "" && !enums.ValidComplianceState(syncGroupCompliance) {
		return fmt.Errorf("unknown compliance state %q", syncGroupCompliance)
	}

	graphClient := connectAndCreateClient()
	defer graphClient.CloseIdleConnections()

	log.Info().Str("group", syncGroupName).Msg("building desired device set")
	start := time.Now()

	desired, err := buildDesiredSet(ctx, graphClient)
	if err != nil {
		exit(err)
	}
	log.Info().Int("devices", len(desired)).Msg("desired set built")

	mode := sync.ModeCreateOrUpdate
	if syncGroupCreateOnly {
		mode = sync.ModeCreateOnly
	}
	if syncGroupDryRun {
		mode = sync.ModeDryRun
	}

	reconciler := sync.NewReconciler(graphClient, sync.NewResolver(graphClient))
	outcome, err := reconciler.Reconcile(ctx, syncGroupName, desired, mode, sync.Options{
		Additive:         syncGroupAdditive,
		GroupDescription: syncGroupDescription,
	})
	if err != nil {
		exit(err)
	}

	log.Info().Dur("duration", time.Since(start)).Msg("sync completed")
	printOutcome(outcome)

	if syncGroupReport != "" {
		if err := writeReport(syncGroupReport, outcome); err != nil {
			exit(err)
		}
		log.Info().Str("path", syncGroupReport).Msg("outcome report written")
	}

	if outcome.Failed() {
		os.Exit(1)
	}
	return nil
}

// buildDesiredSet turns the command's criteria into the device set that must
// end up in the group. Criteria compose: --app narrows to devices carrying
// the application, --device-file to names from the file, --os/--compliance
// filter the catalogue listing.
func buildDesiredSet(ctx context.Context, graphClient client.GraphClient) ([]sync.Device, error) {
	if syncGroupApp != "" {
		return desiredFromDetectedApp(ctx, graphClient, syncGroupApp)
	}

	devices, err := listManagedDevices(ctx, graphClient, syncGroupOS, syncGroupCompliance)
	if err != nil {
		return nil, fmt.Errorf("listing managed devices: %w", err)
	}

	if syncGroupDeviceFile == "" {
		out := make([]sync.Device, 0, len(devices))
		for _, d := range devices {
			out = append(out, sync.FromManagedDevice(d))
		}
		return out, nil
	}

	names, err := readDeviceNames(syncGroupDeviceFile)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]sync.Device, len(devices))
	for _, d := range devices {
		byName[strings.ToLower(d.DeviceName)] = sync.FromManagedDevice(d)
	}

	out := make([]sync.Device, 0, len(names))
	for _, name := range names {
		if device, ok := byName[strings.ToLower(name)]; ok {
			out = append(out, device)
		} else {
			// Unknown names flow through as bare devices so the outcome
			// reports them as unresolved instead of silently dropping them.
			out = append(out, sync.Device{Name: name})
		}
	}
	return out, nil
}

func desiredFromDetectedApp(ctx context.Context, graphClient client.GraphClient, appName string) ([]sync.Device, error) {
	apps, err := client.FetchAll(graphClient.ListDetectedApps(ctx, query.GraphParams{
		Filter: fmt.Sprintf("displayName eq '%s'", strings.ReplaceAll(appName, "'", "''")),
	}))
	if err != nil {
		return nil, fmt.Errorf("looking up detected app %q: %w", appName, err)
	}
	if len(apps) == 0 {
		return nil, fmt.Errorf("no detected application named %q", appName)
	}

	var (
		out  []sync.Device
		seen = make(map[string]bool)
	)
	// The same app name can appear once per version; walk the devices of
	// every match.
	for _, app := range apps {
		devices, err := client.FetchAll(graphClient.ListDetectedAppManagedDevices(ctx, app.Id, query.GraphParams{}))
		if err != nil {
			log.Warn().Err(err).Str("app", app.DisplayName).Str("version", app.Version).
				Msg("device listing for app incomplete")
		}
		for _, d := range devices {
			if syncGroupOS != "" && !strings.EqualFold(d.OperatingSystem, syncGroupOS) {
				continue
			}
			if !seen[d.Id] {
				seen[d.Id] = true
				out = append(out, sync.FromManagedDevice(d))
			}
		}
	}
	return out, nil
}

// readDeviceNames reads one device name per line; blank lines and #-comments
// are skipped.
func readDeviceNames(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening device file: %w", err)
	}
	defer f.Close()

	var names []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		names = append(names, line)
	}
	return names, scanner.Err()
}

func printOutcome(outcome *sync.Outcome) {
	if outcome.Mode == sync.ModeDryRun {
		fmt.Printf("Dry run for group %q\n", outcome.GroupName)
		fmt.Printf("  would add:    %d\n", len(outcome.Plan.ToAdd))
		fmt.Printf("  would remove: %d\n", len(outcome.Plan.ToRemove))
	} else {
		fmt.Printf("Sync result for group %q\n", outcome.GroupName)
		fmt.Printf("  added:   %d\n", outcome.AddedCount)
		fmt.Printf("  removed: %d\n", outcome.RemovedCount)
	}
	fmt.Printf("  unresolved: %d\n", outcome.UnresolvedCount)
	fmt.Printf("  failed batches: %d\n", outcome.FailedBatchCount)
	for _, u := range outcome.Unresolved {
		fmt.Printf("  unresolved device: %s (%v)\n", u.Device.Name, u.Reason)
	}
}

func writeReport(path string, outcome *sync.Outcome) error {
	data, err := json.MarshalIndent(outcome, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
