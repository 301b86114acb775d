// Package openstackcli implements the rule-set backend on top of an
// openstack-compatible command line client. The subprocess inherits the
// credential context through OS_* environment variables.
package openstackcli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/cloudseal/secallow/pkg/provider"
	"github.com/rs/zerolog/log"
)

type Client struct {
	command string
	env     []string
}

// New returns a client invoking the given command binary. env carries extra
// KEY=VALUE pairs appended to the inherited process environment.
func New(command string, env []string) *Client {
	return &Client{command: command, env: env}
}

func (c *Client) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, c.command, args...)
	cmd.Env = append(os.Environ(), c.env...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log.Debug().Msgf("Running %s %s", c.command, strings.Join(args, " "))

	if err := cmd.Run(); err != nil {
		return stdout.String(), classifyError(stderr.String(), err)
	}
	return stdout.String(), nil
}

// classifyError maps command failures onto the provider error taxonomy by
// inspecting stderr. Authentication failures must be told apart from
// everything else since they abort the whole run.
func classifyError(stderr string, err error) error {
	msg := strings.TrimSpace(stderr)
	if msg == "" {
		msg = err.Error()
	}

	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "requires authentication"),
		strings.Contains(lower, "unauthorized"),
		strings.Contains(lower, "http 401"),
		strings.Contains(lower, "missing value auth-url"),
		strings.Contains(lower, "invalid credentials"):
		return &provider.Error{Code: provider.AuthFailureError, Msg: msg}
	case strings.Contains(lower, "not found"),
		strings.Contains(lower, "no securitygroup"),
		strings.Contains(lower, "unable to find security group"):
		return &provider.Error{Code: provider.NotFoundError, Msg: msg}
	default:
		return &provider.Error{Code: provider.InternalError, Msg: msg}
	}
}

func (c *Client) ListRules(ctx context.Context, group string) ([]provider.Rule, error) {
	out, err := c.run(ctx, "security", "group", "rule", "list", group, "--long", "-f", "csv")
	if err != nil {
		return nil, fmt.Errorf("failed to list rules for %s: %w", group, err)
	}
	return parseRuleList(out), nil
}

func (c *Client) DeleteRule(ctx context.Context, group, ruleID string) error {
	if _, err := c.run(ctx, "security", "group", "rule", "delete", ruleID); err != nil {
		return fmt.Errorf("failed to delete rule %s: %w", ruleID, err)
	}
	return nil
}

func (c *Client) CreateRule(ctx context.Context, req provider.CreateRuleRequest) (string, error) {
	args := []string{"security", "group", "rule", "create", "--ingress", "--remote-ip", req.SourceRange}

	switch req.Protocol {
	case provider.ProtocolICMP:
		args = append(args, "--protocol", "icmp")
	case provider.ProtocolTCP:
		args = append(args, "--protocol", "tcp", "--dst-port", strconv.Itoa(req.Port))
	default:
		return "", &provider.Error{Code: provider.BadRequestError, Msg: fmt.Sprintf("unsupported protocol %q", req.Protocol)}
	}

	if req.Description != "" {
		args = append(args, "--description", req.Description)
	}
	args = append(args, req.Group)

	out, err := c.run(ctx, args...)
	if err != nil {
		return out, fmt.Errorf("failed to create %s rule: %w", req.Protocol, err)
	}
	return out, nil
}
