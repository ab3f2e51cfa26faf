// Copyright (C) 2024 IntuneAutomation
// Group lookup, creation and membership API calls.

package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ugurkocde/IntuneAutomation-sub001/client/query"
	"github.com/ugurkocde/IntuneAutomation-sub001/client/rest"
	"github.com/ugurkocde/IntuneAutomation-sub001/constants"
	"github.com/ugurkocde/IntuneAutomation-sub001/models/azure"
)

// ErrGroupNotFound is returned by GetGroupByName when no group carries the
// requested display name.
var ErrGroupNotFound = errors.New("group not found")

// GetGroupByName locates a group by exact display name.
// GET /groups?$filter=displayName eq '{name}'
func (s *graphClient) GetGroupByName(ctx context.Context, displayName string) (*azure.Group, error) {
	var (
		path   = fmt.Sprintf("/%s/groups", constants.GraphApiVersion)
		out    = make(chan Result[azure.Group])
		params = query.GraphParams{
			Filter: fmt.Sprintf("displayName eq '%s'", strings.ReplaceAll(displayName, "'", "''")),
		}
	)

	go getGraphObjectList[azure.Group](s.msgraph, ctx, path, params, s.limiter, out)

	groups, err := FetchAll(out)
	if err != nil {
		return nil, err
	}
	if len(groups) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrGroupNotFound, displayName)
	}
	if len(groups) > 1 {
		return nil, fmt.Errorf("ambiguous group name %q: %d matches", displayName, len(groups))
	}
	return &groups[0], nil
}

// CreateGroup creates a security group.
// POST /groups
func (s *graphClient) CreateGroup(ctx context.Context, group azure.Group) (*azure.Group, error) {
	path := fmt.Sprintf("/%s/groups", constants.GraphApiVersion)

	body := map[string]interface{}{
		"displayName":     group.DisplayName,
		"description":     group.Description,
		"mailEnabled":     false,
		"mailNickname":    group.MailNickname,
		"securityEnabled": true,
	}
	if body["mailNickname"] == "" {
		body["mailNickname"] = mailNickname(group.DisplayName)
	}

	res, err := s.msgraph.Post(ctx, path, body, nil, nil)
	if err != nil {
		return nil, err
	}

	var created azure.Group
	if err := rest.Decode(res.Body, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// ListGroupMembers retrieves the members of a group. Membership planning only
// needs object ids, so callers pass $select=id and get back sparse records.
// GET /groups/{id}/members
func (s *graphClient) ListGroupMembers(ctx context.Context, groupId string, params query.GraphParams) <-chan Result[azure.DirectoryObject] {
	var (
		out  = make(chan Result[azure.DirectoryObject])
		path = fmt.Sprintf("/%s/groups/%s/members", constants.GraphApiVersion, groupId)
	)

	if params.Top == 0 {
		params.Top = 999
	}

	go getGraphObjectList[azure.DirectoryObject](s.msgraph, ctx, path, params, s.limiter, out)

	return out
}

// AddGroupMembers binds up to GroupMemberBatchSize directory objects to a
// group in one call. The service rejects larger batches, so callers partition
// before invoking this.
// PATCH /groups/{id} with members@odata.bind
func (s *graphClient) AddGroupMembers(ctx context.Context, groupId string, memberIds []string) error {
	if len(memberIds) == 0 {
		return nil
	}
	if len(memberIds) > constants.GroupMemberBatchSize {
		return fmt.Errorf("batch of %d exceeds the %d member bind limit", len(memberIds), constants.GroupMemberBatchSize)
	}

	refs := make([]string, len(memberIds))
	for i, id := range memberIds {
		refs[i] = fmt.Sprintf("%s/%s/directoryObjects/%s", constants.DefaultGraphUrl, constants.GraphApiVersion, id)
	}

	path := fmt.Sprintf("/%s/groups/%s", constants.GraphApiVersion, groupId)
	body := map[string]interface{}{
		"members@odata.bind": refs,
	}

	res, err := s.msgraph.Patch(ctx, path, body, nil, nil)
	if err != nil {
		return err
	}
	drain(res.Body)
	return nil
}

// RemoveGroupMember removes a single member reference. The service exposes no
// batched removal, so reconciliation issues one call per member.
// DELETE /groups/{id}/members/{memberId}/$ref
func (s *graphClient) RemoveGroupMember(ctx context.Context, groupId string, memberId string) error {
	path := fmt.Sprintf("/%s/groups/%s/members/%s/$ref", constants.GraphApiVersion, groupId, memberId)

	res, err := s.msgraph.Delete(ctx, path, nil, nil, nil)
	if err != nil {
		return err
	}
	drain(res.Body)
	return nil
}

func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}

// mailNickname derives a mail nickname from a display name; Graph requires
// one even for security groups and rejects spaces.
func mailNickname(displayName string) string {
	nick := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return -1
		}
	}, displayName)
	if nick == "" {
		nick = "group"
	}
	return nick
}
