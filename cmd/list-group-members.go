// Copyright (C) 2024 IntuneAutomation
// Command implementation for listing the members of a target group.

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ugurkocde/IntuneAutomation-sub001/client"
	"github.com/ugurkocde/IntuneAutomation-sub001/client/query"
)

var listGroupMembersGroup string

func init() {
	listGroupMembersCmd.Flags().StringVar(&listGroupMembersGroup, "group", "", "display name of the group")
	_ = listGroupMembersCmd.MarkFlagRequired("group")
	rootCmd.AddCommand(listGroupMembersCmd)
}

var listGroupMembersCmd = &cobra.Command{
	Use:          "list-group-members",
	Long:         "Lists the current members of an Entra ID group",
	RunE:         listGroupMembersCmdImpl,
	SilenceUsage: true,
}

func listGroupMembersCmdImpl(cmd *cobra.Command, args []string) error {
	ctx, stop := context.WithCancel(cmd.Context())
	defer stop()

	graphClient := connectAndCreateClient()
	defer graphClient.CloseIdleConnections()

	group, err := graphClient.GetGroupByName(ctx, listGroupMembersGroup)
	if err != nil {
		return err
	}

	members, err := client.FetchAll(graphClient.ListGroupMembers(ctx, group.Id, query.GraphParams{
		Select: []string{"id", "displayName"},
	}))
	if err != nil {
		fmt.Printf("warning: listing incomplete: %v\n", err)
	}

	fmt.Printf("Group %s (%s): %d members\n", group.DisplayName, group.Id, len(members))
	for _, member := range members {
		fmt.Printf("  %s %s\n", member.Id, member.DisplayName)
	}
	return err
}
