package openstackcli

import (
	"errors"
	"testing"

	"github.com/cloudseal/secallow/pkg/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleListing = `"ID","IP Protocol","Ethertype","IP Range","Port Range","Direction","Remote Security Group"
"11111111-aaaa-4bbb-8ccc-000000000001","tcp","IPv4","198.51.100.7/32","22:22","ingress",""
"11111111-aaaa-4bbb-8ccc-000000000002","icmp","IPv4","198.51.100.7/32","","ingress",""
`

func TestParseRuleListSkipsHeader(t *testing.T) {
	rules := parseRuleList(sampleListing)

	require.Len(t, rules, 2)
	assert.Equal(t, "11111111-aaaa-4bbb-8ccc-000000000001", rules[0].ID)
	assert.Equal(t, "198.51.100.7/32", rules[0].SourceRange)
	assert.Equal(t, provider.DirectionIngress, rules[0].Direction)
}

func TestParseRuleListEmptyOutput(t *testing.T) {
	assert.Empty(t, parseRuleList(""))
	assert.Empty(t, parseRuleList("\n"))
}

func TestParseRuleListSkipsMalformedRows(t *testing.T) {
	out := `"ID","IP Protocol","Ethertype","IP Range","Port Range","Direction","Remote Security Group"
"short","row"
"11111111-aaaa-4bbb-8ccc-000000000001","tcp","IPv4","198.51.100.7/32","22:22","ingress",""
"22222222-aaaa-4bbb-8ccc-000000000002","tcp","IPv4","198.51.100.7/32","80:80","sideways",""
`
	rules := parseRuleList(out)

	require.Len(t, rules, 1)
	assert.Equal(t, "11111111-aaaa-4bbb-8ccc-000000000001", rules[0].ID)
}

func TestParseRuleListKeepsEgressRules(t *testing.T) {
	out := `"ID","IP Protocol","Ethertype","IP Range","Port Range","Direction","Remote Security Group"
"33333333-aaaa-4bbb-8ccc-000000000003","tcp","IPv4","0.0.0.0/0","","egress",""
`
	rules := parseRuleList(out)

	// Egress rules must surface so the reconciler can refuse the group.
	require.Len(t, rules, 1)
	assert.Equal(t, provider.DirectionEgress, rules[0].Direction)
}

func TestClassifyErrorAuthFailure(t *testing.T) {
	for _, stderr := range []string{
		"The request you have made requires authentication. (HTTP 401)",
		"Unauthorized: bad credentials",
		"Missing value auth-url required for auth plugin password",
	} {
		err := classifyError(stderr, errors.New("exit status 1"))
		assert.True(t, provider.IsErrAuthFailure(err), stderr)
	}
}

func TestClassifyErrorNotFound(t *testing.T) {
	err := classifyError("No SecurityGroup found for shell-access", errors.New("exit status 1"))
	assert.True(t, provider.IsErrNotFound(err))

	err = classifyError("Error while executing command: No security group with a name or ID of 'x' exists. not found", errors.New("exit status 1"))
	assert.True(t, provider.IsErrNotFound(err))
}

func TestClassifyErrorFallsBackToInternal(t *testing.T) {
	err := classifyError("something exploded", errors.New("exit status 1"))

	var perr *provider.Error
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, provider.InternalError, perr.Code)
	assert.Contains(t, perr.Msg, "something exploded")
}

func TestClassifyErrorEmptyStderrUsesExecError(t *testing.T) {
	err := classifyError("", errors.New("exec: \"openstack\": executable file not found in $PATH"))

	var perr *provider.Error
	require.True(t, errors.As(err, &perr))
	assert.Contains(t, perr.Msg, "executable file not found")
}
