// Package provider contains the access-control backend interfaces and models.
package provider

import "context"

// Direction describes the traffic direction of a rule.
// Ingress applies to incoming traffic. Egress applies to outbound traffic.
type Direction string

const (
	DirectionIngress Direction = "ingress"
	DirectionEgress  Direction = "egress"
)

// Protocols accepted by CreateRule.
const (
	ProtocolICMP = "icmp"
	ProtocolTCP  = "tcp"
)

// Rule is one existing rule as reported by a backend listing. Only the
// fields the reconciler validates are carried; everything else stays with
// the remote service.
type Rule struct {
	ID          string
	SourceRange string
	Direction   Direction
}

// CreateRuleRequest describes a single ingress rule to create.
type CreateRuleRequest struct {
	Group       string
	Protocol    string
	Port        int // TCP destination port, ignored for ICMP
	SourceRange string
	Description string
}

// Client is the typed interface every rule-set backend implements. The
// reconciler never talks to a backend any other way.
type Client interface {
	// ListRules returns every rule in the named rule-set. A missing
	// rule-set yields a NotFoundError, an authentication problem an
	// AuthFailureError.
	ListRules(ctx context.Context, group string) ([]Rule, error)

	// DeleteRule removes one rule by its backend identifier.
	DeleteRule(ctx context.Context, group, ruleID string) error

	// CreateRule adds one ingress rule and returns the backend's raw
	// output, which the caller may redirect or discard.
	CreateRule(ctx context.Context, req CreateRuleRequest) (string, error)
}
