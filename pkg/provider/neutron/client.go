// Package neutron implements the rule-set backend against the OpenStack
// networking API, authenticating through keystone with the credential
// context's password.
package neutron

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudseal/secallow/pkg/provider"
	"resty.dev/v3"
)

type Client struct {
	resty    *resty.Client
	groupIDs map[string]string // group name -> neutron UUID
}

// New authenticates against keystone and returns a client bound to the
// network endpoint advertised in the service catalog.
func New(ctx context.Context, creds Credentials) (*Client, error) {
	restyClient := resty.New()

	token, networkURL, err := authenticate(ctx, restyClient, creds)
	if err != nil {
		return nil, err
	}

	restyClient.SetBaseURL(networkURL)
	restyClient.SetHeader("X-Auth-Token", token)

	return &Client{
		resty:    restyClient,
		groupIDs: make(map[string]string),
	}, nil
}

type securityGroupRule struct {
	ID             string `json:"id,omitempty"`
	SecurityGroup  string `json:"security_group_id,omitempty"`
	Direction      string `json:"direction,omitempty"`
	Ethertype      string `json:"ethertype,omitempty"`
	Protocol       string `json:"protocol,omitempty"`
	PortRangeMin   *int   `json:"port_range_min,omitempty"`
	PortRangeMax   *int   `json:"port_range_max,omitempty"`
	RemoteIPPrefix string `json:"remote_ip_prefix,omitempty"`
	Description    string `json:"description,omitempty"`
}

type securityGroup struct {
	ID    string              `json:"id"`
	Name  string              `json:"name"`
	Rules []securityGroupRule `json:"security_group_rules"`
}

type securityGroupList struct {
	SecurityGroups []securityGroup `json:"security_groups"`
}

func statusError(status int, msg string) error {
	switch {
	case status == 401 || status == 403:
		return &provider.Error{Code: provider.AuthFailureError, Msg: msg}
	case status == 404:
		return &provider.Error{Code: provider.NotFoundError, Msg: msg}
	case status == 400:
		return &provider.Error{Code: provider.BadRequestError, Msg: msg}
	default:
		return &provider.Error{Code: provider.InternalError, Msg: msg}
	}
}

func (c *Client) ListRules(ctx context.Context, group string) ([]provider.Rule, error) {
	var result securityGroupList
	res, err := c.resty.R().
		SetContext(ctx).
		SetQueryParam("name", group).
		SetResult(&result).
		Get("/v2.0/security-groups")
	if err != nil {
		return nil, fmt.Errorf("failed to list security groups: %w", err)
	}
	if res.IsError() {
		return nil, statusError(res.StatusCode(), fmt.Sprintf("listing security group %s failed (HTTP %d)", group, res.StatusCode()))
	}

	if len(result.SecurityGroups) == 0 {
		return nil, &provider.Error{Code: provider.NotFoundError, Msg: fmt.Sprintf("security group %s not found", group)}
	}

	sg := result.SecurityGroups[0]
	c.groupIDs[group] = sg.ID

	rules := make([]provider.Rule, 0, len(sg.Rules))
	for _, rule := range sg.Rules {
		rules = append(rules, provider.Rule{
			ID:          rule.ID,
			SourceRange: rule.RemoteIPPrefix,
			Direction:   provider.Direction(strings.ToLower(rule.Direction)),
		})
	}
	return rules, nil
}

func (c *Client) DeleteRule(ctx context.Context, group, ruleID string) error {
	res, err := c.resty.R().
		SetContext(ctx).
		Delete("/v2.0/security-group-rules/" + ruleID)
	if err != nil {
		return fmt.Errorf("failed to delete rule %s: %w", ruleID, err)
	}
	if res.IsError() {
		return statusError(res.StatusCode(), fmt.Sprintf("deleting rule %s failed (HTTP %d)", ruleID, res.StatusCode()))
	}
	return nil
}

func (c *Client) CreateRule(ctx context.Context, req provider.CreateRuleRequest) (string, error) {
	groupID, err := c.groupID(ctx, req.Group)
	if err != nil {
		return "", err
	}

	rule := securityGroupRule{
		SecurityGroup:  groupID,
		Direction:      string(provider.DirectionIngress),
		Ethertype:      "IPv4",
		Protocol:       req.Protocol,
		RemoteIPPrefix: req.SourceRange,
		Description:    req.Description,
	}
	if req.Protocol == provider.ProtocolTCP {
		port := req.Port
		rule.PortRangeMin = &port
		rule.PortRangeMax = &port
	}

	res, err := c.resty.R().
		SetContext(ctx).
		SetBody(map[string]securityGroupRule{"security_group_rule": rule}).
		Post("/v2.0/security-group-rules")
	if err != nil {
		return "", fmt.Errorf("failed to create %s rule: %w", req.Protocol, err)
	}
	if res.IsError() {
		return res.String(), statusError(res.StatusCode(), fmt.Sprintf("creating %s rule failed (HTTP %d)", req.Protocol, res.StatusCode()))
	}
	return res.String(), nil
}

// groupID resolves a group name to its neutron UUID, reusing the result of
// a previous listing when available.
func (c *Client) groupID(ctx context.Context, group string) (string, error) {
	if id, ok := c.groupIDs[group]; ok {
		return id, nil
	}
	if _, err := c.ListRules(ctx, group); err != nil {
		return "", err
	}
	return c.groupIDs[group], nil
}
