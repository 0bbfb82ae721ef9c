package rules

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fraud-graph-engine/internal/domain/fraud"
)

// stubGraph answers rule queries from fixed data
type stubGraph struct {
	senderFlag, receiverFlag *bool
	flagsErr                 error

	senderSide, receiverSide []any
	counterpartiesErr        error

	accounts, devices []any
	networkErr        error
}

func (s *stubGraph) EndpointFraudFlags(context.Context, any, any) (*bool, *bool, error) {
	return s.senderFlag, s.receiverFlag, s.flagsErr
}

func (s *stubGraph) FlaggedCounterparties(context.Context, any) ([]any, []any, error) {
	return s.senderSide, s.receiverSide, s.counterpartiesErr
}

func (s *stubGraph) FlaggedDeviceNetwork(context.Context, any) ([]any, []any, error) {
	return s.accounts, s.devices, s.networkErr
}

func boolPtr(b bool) *bool { return &b }

func testTx() fraud.TransactionInfo {
	return fraud.TransactionInfo{
		EdgeID:     "edge-1",
		SenderID:   "acct-s",
		ReceiverID: "acct-r",
	}
}

func TestFlaggedCounterpartyClean(t *testing.T) {
	rule := NewFlaggedCounterparty(&stubGraph{
		senderFlag: boolPtr(false), receiverFlag: boolPtr(false),
	})

	v := rule.Evaluate(context.Background(), testTx())
	assert.False(t, v.IsFraud)
	assert.Equal(t, fraud.StatusCleared, v.Status)
	assert.False(t, v.Exception)
	assert.True(t, v.Perf.Successful)
}

func TestFlaggedCounterpartyFires(t *testing.T) {
	rule := NewFlaggedCounterparty(&stubGraph{
		senderFlag: boolPtr(false), receiverFlag: boolPtr(true),
	})

	v := rule.Evaluate(context.Background(), testTx())
	require.True(t, v.IsFraud)
	assert.Equal(t, 100, v.Score)
	assert.Equal(t, fraud.StatusBlocked, v.Status)
	assert.Equal(t, []any{"acct-r"}, v.Evidence["flagged_endpoints"])
}

func TestFlaggedCounterpartyMissingVertexIsException(t *testing.T) {
	rule := NewFlaggedCounterparty(&stubGraph{
		senderFlag: boolPtr(true), receiverFlag: nil,
	})

	v := rule.Evaluate(context.Background(), testTx())
	assert.True(t, v.Exception)
	assert.False(t, v.IsFraud)
	assert.Equal(t, fraud.StatusCleared, v.Status)
	assert.Contains(t, v.Err, fraud.ErrMissingVertex.Error())
}

func TestFlaggedCounterpartyGraphError(t *testing.T) {
	rule := NewFlaggedCounterparty(&stubGraph{flagsErr: errors.New("pool exhausted")})

	v := rule.Evaluate(context.Background(), testTx())
	assert.True(t, v.Exception)
	assert.False(t, v.Perf.Successful)
}

func TestFlaggedNeighborhoodScoreScaling(t *testing.T) {
	cases := []struct {
		name       string
		sender     []any
		receiver   []any
		wantScore  int
		wantStatus fraud.Status
	}{
		{"one counterparty", []any{"a"}, nil, 80, fraud.StatusReview},
		{"two counterparties", []any{"a"}, []any{"b"}, 85, fraud.StatusReview},
		{"three counterparties", []any{"a", "b"}, []any{"c"}, 90, fraud.StatusBlocked},
		{"score capped at 95", []any{"a", "b", "c", "d"}, []any{"e", "f", "g"}, 95, fraud.StatusBlocked},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rule := NewFlaggedNeighborhood(&stubGraph{
				senderSide: tc.sender, receiverSide: tc.receiver,
			})
			v := rule.Evaluate(context.Background(), testTx())
			require.True(t, v.IsFraud)
			assert.Equal(t, tc.wantScore, v.Score)
			assert.Equal(t, tc.wantStatus, v.Status)
			assert.Equal(t, len(tc.sender)+len(tc.receiver), v.Evidence["count"])
		})
	}
}

func TestFlaggedNeighborhoodClean(t *testing.T) {
	rule := NewFlaggedNeighborhood(&stubGraph{})
	v := rule.Evaluate(context.Background(), testTx())
	assert.False(t, v.IsFraud)
	assert.Equal(t, fraud.StatusCleared, v.Status)
}

func TestFlaggedDeviceFires(t *testing.T) {
	rule := NewFlaggedDevice(&stubGraph{
		accounts: []any{"a1", "a2"},
		devices:  []any{"d1"},
	})

	v := rule.Evaluate(context.Background(), testTx())
	require.True(t, v.IsFraud)
	assert.Equal(t, 85, v.Score)
	assert.Equal(t, fraud.StatusReview, v.Status)
	assert.Equal(t, []any{"d1"}, v.Evidence["flagged_devices"])
	assert.Equal(t, 2, v.Evidence["network_accounts"])
}

func TestFlaggedDeviceCleanWithoutDevices(t *testing.T) {
	// Reachable accounts alone do not fire the rule
	rule := NewFlaggedDevice(&stubGraph{accounts: []any{"a1"}})
	v := rule.Evaluate(context.Background(), testTx())
	assert.False(t, v.IsFraud)
}

func TestRegistrySnapshotAndToggle(t *testing.T) {
	g := &stubGraph{}
	reg := NewRegistry(NewFlaggedCounterparty(g), NewFlaggedNeighborhood(g), NewFlaggedDevice(g))

	snap := reg.EnabledSnapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, "flagged_counterparty", snap[0].Name())

	require.NoError(t, reg.Toggle("flagged_neighborhood", false))
	snap = reg.EnabledSnapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "flagged_counterparty", snap[0].Name())
	assert.Equal(t, "flagged_device_network", snap[1].Name())

	// A snapshot taken before a toggle is unaffected by it
	before := reg.EnabledSnapshot()
	require.NoError(t, reg.Toggle("flagged_counterparty", false))
	assert.Len(t, before, 2)

	assert.ErrorIs(t, reg.Toggle("nope", true), fraud.ErrRuleNotFound)
}

func TestRegistryList(t *testing.T) {
	g := &stubGraph{}
	reg := NewRegistry(NewFlaggedCounterparty(g), NewFlaggedDevice(g))
	require.NoError(t, reg.Toggle("flagged_device_network", false))

	infos := reg.List()
	require.Len(t, infos, 2)
	assert.True(t, infos[0].Enabled)
	assert.False(t, infos[1].Enabled)
	assert.Equal(t, ComplexityHigh, infos[1].Metadata.Complexity)
}
