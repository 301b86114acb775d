// Package awsec2 implements the rule-set backend on top of EC2 security
// groups. EC2 does not hand out per-rule identifiers through this API, so
// rule IDs are a synthetic encoding of the permission that the client
// itself decodes again on delete.
package awsec2

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/ec2"

	"github.com/cloudseal/secallow/pkg/provider"
)

// ec2API is the slice of the EC2 API the client uses.
type ec2API interface {
	DescribeSecurityGroupsWithContext(aws.Context, *ec2.DescribeSecurityGroupsInput, ...request.Option) (*ec2.DescribeSecurityGroupsOutput, error)
	AuthorizeSecurityGroupIngressWithContext(aws.Context, *ec2.AuthorizeSecurityGroupIngressInput, ...request.Option) (*ec2.AuthorizeSecurityGroupIngressOutput, error)
	RevokeSecurityGroupIngressWithContext(aws.Context, *ec2.RevokeSecurityGroupIngressInput, ...request.Option) (*ec2.RevokeSecurityGroupIngressOutput, error)
	RevokeSecurityGroupEgressWithContext(aws.Context, *ec2.RevokeSecurityGroupEgressInput, ...request.Option) (*ec2.RevokeSecurityGroupEgressOutput, error)
}

type Client struct {
	ec2      ec2API
	groupIDs map[string]string // group name -> sg-... identifier
}

// New builds a client from the default AWS credential chain (environment,
// shared credentials file, instance metadata).
func New() (*Client, error) {
	sess, err := session.NewSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}
	return &Client{ec2: ec2.New(sess), groupIDs: make(map[string]string)}, nil
}

func (c *Client) ListRules(ctx context.Context, group string) ([]provider.Rule, error) {
	res, err := c.ec2.DescribeSecurityGroupsWithContext(ctx, &ec2.DescribeSecurityGroupsInput{
		Filters: []*ec2.Filter{{
			Name:   aws.String("group-name"),
			Values: aws.StringSlice([]string{group}),
		}},
	})
	if err != nil {
		return nil, decodeError("failed to describe security groups", err)
	}
	if len(res.SecurityGroups) == 0 {
		return nil, &provider.Error{Code: provider.NotFoundError, Msg: fmt.Sprintf("security group %s not found", group)}
	}

	sg := res.SecurityGroups[0]
	c.groupIDs[group] = aws.StringValue(sg.GroupId)

	var rules []provider.Rule
	rules = appendPermissionRules(rules, sg.IpPermissions, provider.DirectionIngress)
	rules = appendPermissionRules(rules, sg.IpPermissionsEgress, provider.DirectionEgress)
	return rules, nil
}

func appendPermissionRules(rules []provider.Rule, perms []*ec2.IpPermission, direction provider.Direction) []provider.Rule {
	for _, perm := range perms {
		for _, ipRange := range perm.IpRanges {
			rules = append(rules, provider.Rule{
				ID:          encodeRuleID(direction, perm, ipRange),
				SourceRange: aws.StringValue(ipRange.CidrIp),
				Direction:   direction,
			})
		}
	}
	return rules
}

func (c *Client) DeleteRule(ctx context.Context, group, ruleID string) error {
	direction, perm, err := decodeRuleID(ruleID)
	if err != nil {
		return err
	}

	groupID, err := c.groupID(ctx, group)
	if err != nil {
		return err
	}

	if direction == provider.DirectionEgress {
		_, err = c.ec2.RevokeSecurityGroupEgressWithContext(ctx, &ec2.RevokeSecurityGroupEgressInput{
			GroupId:       aws.String(groupID),
			IpPermissions: []*ec2.IpPermission{perm},
		})
	} else {
		_, err = c.ec2.RevokeSecurityGroupIngressWithContext(ctx, &ec2.RevokeSecurityGroupIngressInput{
			GroupId:       aws.String(groupID),
			IpPermissions: []*ec2.IpPermission{perm},
		})
	}
	if err != nil {
		return decodeError(fmt.Sprintf("failed to revoke rule %s", ruleID), err)
	}
	return nil
}

func (c *Client) CreateRule(ctx context.Context, req provider.CreateRuleRequest) (string, error) {
	groupID, err := c.groupID(ctx, req.Group)
	if err != nil {
		return "", err
	}

	perm := &ec2.IpPermission{
		IpProtocol: aws.String(req.Protocol),
		IpRanges: []*ec2.IpRange{{
			CidrIp:      aws.String(req.SourceRange),
			Description: aws.String(req.Description),
		}},
	}
	switch req.Protocol {
	case provider.ProtocolICMP:
		// -1/-1 covers every ICMP type and code
		perm.FromPort = aws.Int64(-1)
		perm.ToPort = aws.Int64(-1)
	case provider.ProtocolTCP:
		perm.FromPort = aws.Int64(int64(req.Port))
		perm.ToPort = aws.Int64(int64(req.Port))
	default:
		return "", &provider.Error{Code: provider.BadRequestError, Msg: fmt.Sprintf("unsupported protocol %q", req.Protocol)}
	}

	_, err = c.ec2.AuthorizeSecurityGroupIngressWithContext(ctx, &ec2.AuthorizeSecurityGroupIngressInput{
		GroupId:       aws.String(groupID),
		IpPermissions: []*ec2.IpPermission{perm},
	})
	if err != nil {
		return "", decodeError(fmt.Sprintf("failed to authorize %s ingress", req.Protocol), err)
	}
	return fmt.Sprintf("authorized %s ingress from %s on %s\n", req.Protocol, req.SourceRange, groupID), nil
}

func (c *Client) groupID(ctx context.Context, group string) (string, error) {
	if id, ok := c.groupIDs[group]; ok {
		return id, nil
	}
	if _, err := c.ListRules(ctx, group); err != nil {
		return "", err
	}
	return c.groupIDs[group], nil
}
