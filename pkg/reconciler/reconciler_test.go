package reconciler

import (
	"bytes"
	"context"
	"testing"

	"github.com/cloudseal/secallow/pkg/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient records every call the reconciler makes.
type fakeClient struct {
	rules   []provider.Rule
	listErr error

	deleteErr error
	createErr error

	deleted []string
	created []provider.CreateRuleRequest
}

func (f *fakeClient) ListRules(ctx context.Context, group string) ([]provider.Rule, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.rules, nil
}

func (f *fakeClient) DeleteRule(ctx context.Context, group, ruleID string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, ruleID)
	return nil
}

func (f *fakeClient) CreateRule(ctx context.Context, req provider.CreateRuleRequest) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	f.created = append(f.created, req)
	return "created\n", nil
}

func input(target string) Input {
	return Input{
		Group:   "shell-access",
		Target:  target,
		Ports:   []int{22, 80, 443},
		AllICMP: true,
	}
}

func TestReconcileEmptyGroupCreatesWithoutDeleting(t *testing.T) {
	client := &fakeClient{}

	count, err := Reconcile(context.Background(), client, input("203.0.113.5"))
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	assert.Empty(t, client.deleted)
	require.Len(t, client.created, 4)

	assert.Equal(t, provider.ProtocolICMP, client.created[0].Protocol)
	for i, port := range []int{22, 80, 443} {
		assert.Equal(t, provider.ProtocolTCP, client.created[i+1].Protocol)
		assert.Equal(t, port, client.created[i+1].Port)
		assert.Equal(t, "203.0.113.5/32", client.created[i+1].SourceRange)
	}
}

func TestReconcileReplacesExistingSingleSourceRules(t *testing.T) {
	client := &fakeClient{rules: []provider.Rule{
		{ID: "a", SourceRange: "198.51.100.7/32", Direction: provider.DirectionIngress},
		{ID: "b", SourceRange: "198.51.100.7/32", Direction: provider.DirectionIngress},
	}}

	count, err := Reconcile(context.Background(), client, input("203.0.113.5"))
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	assert.Equal(t, []string{"a", "b"}, client.deleted)
	assert.Len(t, client.created, 4)
}

func TestReconcileSkipsDifferingSourceRanges(t *testing.T) {
	client := &fakeClient{rules: []provider.Rule{
		{ID: "a", SourceRange: "198.51.100.7/32", Direction: provider.DirectionIngress},
		{ID: "b", SourceRange: "198.51.100.8/32", Direction: provider.DirectionIngress},
	}}

	count, err := Reconcile(context.Background(), client, input("203.0.113.5"))
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	// A foreign-looking rule-set must not be touched at all.
	assert.Empty(t, client.deleted)
	assert.Empty(t, client.created)
}

func TestReconcileSkipsNonIngressRules(t *testing.T) {
	client := &fakeClient{rules: []provider.Rule{
		{ID: "a", SourceRange: "198.51.100.7/32", Direction: provider.DirectionEgress},
	}}

	count, err := Reconcile(context.Background(), client, input("203.0.113.5"))
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.Empty(t, client.deleted)
	assert.Empty(t, client.created)
}

func TestReconcileSkipsNonHostSourceRange(t *testing.T) {
	for _, sourceRange := range []string{"198.51.100.0/24", "0.0.0.0/0", "", "bogus"} {
		client := &fakeClient{rules: []provider.Rule{
			{ID: "a", SourceRange: sourceRange, Direction: provider.DirectionIngress},
		}}

		count, err := Reconcile(context.Background(), client, input("203.0.113.5"))
		require.NoError(t, err, sourceRange)
		assert.Equal(t, 0, count, sourceRange)
		assert.Empty(t, client.deleted, sourceRange)
	}
}

func TestReconcileSkipsMissingGroup(t *testing.T) {
	client := &fakeClient{listErr: &provider.Error{Code: provider.NotFoundError, Msg: "no such group"}}

	count, err := Reconcile(context.Background(), client, input("203.0.113.5"))
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestReconcileAuthFailureIsFatal(t *testing.T) {
	client := &fakeClient{listErr: &provider.Error{Code: provider.AuthFailureError, Msg: "denied"}}

	_, err := Reconcile(context.Background(), client, input("203.0.113.5"))
	require.Error(t, err)
	assert.True(t, provider.IsErrAuthFailure(err))
}

func TestReconcileDeleteFailureIsFatal(t *testing.T) {
	client := &fakeClient{
		rules:     []provider.Rule{{ID: "a", SourceRange: "198.51.100.7/32", Direction: provider.DirectionIngress}},
		deleteErr: &provider.Error{Code: provider.InternalError, Msg: "boom"},
	}

	_, err := Reconcile(context.Background(), client, input("203.0.113.5"))
	assert.Error(t, err)
}

func TestReconcileCreateFailureIsFatal(t *testing.T) {
	client := &fakeClient{createErr: &provider.Error{Code: provider.InternalError, Msg: "boom"}}

	_, err := Reconcile(context.Background(), client, input("203.0.113.5"))
	assert.Error(t, err)
}

func TestReconcileNoneDeletesAllAndCreatesNothing(t *testing.T) {
	client := &fakeClient{rules: []provider.Rule{
		{ID: "a", SourceRange: "198.51.100.7/32", Direction: provider.DirectionIngress},
	}}

	count, err := Reconcile(context.Background(), client, input("none"))
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, []string{"a"}, client.deleted)
	assert.Empty(t, client.created)
}

func TestReconcileWithoutICMP(t *testing.T) {
	client := &fakeClient{}

	in := input("203.0.113.5")
	in.AllICMP = false
	count, err := Reconcile(context.Background(), client, in)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	for _, req := range client.created {
		assert.Equal(t, provider.ProtocolTCP, req.Protocol)
	}
}

func TestReconcileForwardsCreateOutput(t *testing.T) {
	client := &fakeClient{}
	var out bytes.Buffer

	in := input("203.0.113.5")
	in.Output = &out
	_, err := Reconcile(context.Background(), client, in)
	require.NoError(t, err)

	assert.Equal(t, "created\ncreated\ncreated\ncreated\n", out.String())
}

func TestReconcileStampsDescription(t *testing.T) {
	client := &fakeClient{}

	in := input("203.0.113.5")
	in.Description = "secallow run 42"
	_, err := Reconcile(context.Background(), client, in)
	require.NoError(t, err)

	for _, req := range client.created {
		assert.Equal(t, "secallow run 42", req.Description)
	}
}
