// Package reconciler replaces the contents of a single-source ingress
// rule-set with rules allowing one address. It refuses to touch rule-sets
// that do not look like its own work.
package reconciler

import (
	"context"
	"fmt"
	"io"
	"regexp"

	"github.com/cloudseal/secallow/pkg/provider"
	"github.com/cloudseal/secallow/pkg/resolver"
	"github.com/rs/zerolog/log"
)

// hostRangePattern matches a single-host IPv4 range, the only source shape
// this tool ever writes.
var hostRangePattern = regexp.MustCompile(`^\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}/32$`)

// Input bundles the parameters of one reconciliation pass.
type Input struct {
	// Group names the rule-set to reconcile.
	Group string
	// Target is the dotted-quad address to authorize, or "none" to
	// reconcile the rule-set down to empty.
	Target string
	// Ports are the TCP destination ports to open, in creation order.
	Ports []int
	// AllICMP opens ICMP from the target as well.
	AllICMP bool
	// Output receives raw backend output from rule creation. Usually
	// io.Discard unless the operator asked to keep it.
	Output io.Writer
	// Description is stamped on every created rule.
	Description string
}

// Reconcile lists, validates, deletes and recreates the rules of one
// rule-set. It returns the number of rule-sets updated: 1 on success, 0 when
// the rule-set was skipped over a precondition. Errors are fatal for the
// whole run: authentication failures, and any delete or create failure
// (which leaves the rule-set partially modified with no rollback).
func Reconcile(ctx context.Context, client provider.Client, in Input) (int, error) {
	rules, err := client.ListRules(ctx, in.Group)
	if err != nil {
		if provider.IsErrAuthFailure(err) {
			return 0, fmt.Errorf("authentication failed while listing %s: %w", in.Group, err)
		}
		if provider.IsErrNotFound(err) {
			log.Warn().Msgf("Security group %s not found, skipping.", in.Group)
			return 0, nil
		}
		return 0, fmt.Errorf("failed to list rules of %s: %w", in.Group, err)
	}

	if !validateRules(in.Group, rules) {
		return 0, nil
	}

	for _, rule := range rules {
		if err := client.DeleteRule(ctx, in.Group, rule.ID); err != nil {
			if provider.IsErrAuthFailure(err) {
				return 0, fmt.Errorf("authentication failed while deleting rule %s: %w", rule.ID, err)
			}
			// The rule-set is now partially modified; nothing to do but stop.
			return 0, fmt.Errorf("failed to delete rule %s of %s: %w", rule.ID, in.Group, err)
		}
		log.Debug().Msgf("Deleted rule %s (%s) from %s", rule.ID, rule.SourceRange, in.Group)
	}

	if in.Target == resolver.AddressNone {
		log.Info().Msgf("Removed all rules from %s, none created.", in.Group)
		return 1, nil
	}

	sourceRange := in.Target + "/32"

	if in.AllICMP {
		if err := create(ctx, client, in, provider.CreateRuleRequest{
			Group:       in.Group,
			Protocol:    provider.ProtocolICMP,
			SourceRange: sourceRange,
			Description: in.Description,
		}); err != nil {
			return 0, err
		}
	}

	for _, port := range in.Ports {
		if err := create(ctx, client, in, provider.CreateRuleRequest{
			Group:       in.Group,
			Protocol:    provider.ProtocolTCP,
			Port:        port,
			SourceRange: sourceRange,
			Description: in.Description,
		}); err != nil {
			return 0, err
		}
	}

	log.Info().Msgf("Updated %s: %d rule(s) removed, rules for %s created.", in.Group, len(rules), sourceRange)
	return 1, nil
}

// validateRules enforces the precondition that the existing rule-set is a
// single-source ingress-only set: every rule ingress, every rule sharing one
// identical /32 source range. Anything else is presumed to belong to another
// purpose and is left alone.
func validateRules(group string, rules []provider.Rule) bool {
	observedRange := ""
	haveRange := false

	for _, rule := range rules {
		if rule.Direction != provider.DirectionIngress {
			log.Warn().Msgf("Security group %s contains a %s rule, skipping.", group, rule.Direction)
			return false
		}
		if !haveRange {
			observedRange = rule.SourceRange
			haveRange = true
			continue
		}
		if rule.SourceRange != observedRange {
			log.Warn().Msgf(
				"Security group %s contains rules with differing source ranges (%s vs %s), skipping.",
				group, observedRange, rule.SourceRange,
			)
			return false
		}
	}

	if haveRange && !hostRangePattern.MatchString(observedRange) {
		log.Warn().Msgf("Security group %s has source range %s, not a single host, skipping.", group, observedRange)
		return false
	}
	return true
}

func create(ctx context.Context, client provider.Client, in Input, req provider.CreateRuleRequest) error {
	out, err := client.CreateRule(ctx, req)
	if out != "" && in.Output != nil {
		_, _ = io.WriteString(in.Output, out)
	}
	if err != nil {
		if provider.IsErrAuthFailure(err) {
			return fmt.Errorf("authentication failed while creating %s rule: %w", req.Protocol, err)
		}
		return fmt.Errorf("failed to create %s rule in %s: %w", req.Protocol, in.Group, err)
	}
	return nil
}
