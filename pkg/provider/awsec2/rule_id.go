package awsec2

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/ec2"

	"github.com/cloudseal/secallow/pkg/provider"
)

// ruleIDSeparator joins the fields of a synthetic rule identifier.
// CIDR ranges contain '/' and '.', protocols '-', so '|' is safe.
const ruleIDSeparator = "|"

func encodeRuleID(direction provider.Direction, perm *ec2.IpPermission, ipRange *ec2.IpRange) string {
	return strings.Join([]string{
		string(direction),
		aws.StringValue(perm.IpProtocol),
		strconv.FormatInt(aws.Int64Value(perm.FromPort), 10),
		strconv.FormatInt(aws.Int64Value(perm.ToPort), 10),
		aws.StringValue(ipRange.CidrIp),
	}, ruleIDSeparator)
}

func decodeRuleID(ruleID string) (provider.Direction, *ec2.IpPermission, error) {
	fields := strings.Split(ruleID, ruleIDSeparator)
	if len(fields) != 5 {
		return "", nil, &provider.Error{Code: provider.BadRequestError, Msg: fmt.Sprintf("malformed rule id %q", ruleID)}
	}

	fromPort, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return "", nil, &provider.Error{Code: provider.BadRequestError, Msg: fmt.Sprintf("malformed rule id %q", ruleID)}
	}
	toPort, err := strconv.ParseInt(fields[3], 10, 64)
	if err != nil {
		return "", nil, &provider.Error{Code: provider.BadRequestError, Msg: fmt.Sprintf("malformed rule id %q", ruleID)}
	}

	perm := &ec2.IpPermission{
		IpProtocol: aws.String(fields[1]),
		FromPort:   aws.Int64(fromPort),
		ToPort:     aws.Int64(toPort),
		IpRanges:   []*ec2.IpRange{{CidrIp: aws.String(fields[4])}},
	}
	return provider.Direction(fields[0]), perm, nil
}
