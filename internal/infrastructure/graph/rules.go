package graph

import (
	"context"
	"fmt"

	gremlingo "github.com/apache/tinkerpop/gremlin-go/v3/driver"
)

// Rule-facing reads. These run on the fraud pool so heavy traversals never
// contend with transaction writes.

// EndpointFraudFlags reads the fraud_flag property of both endpoint
// vertices of a transaction. A nil flag means the vertex was not found.
func (c *Client) EndpointFraudFlags(ctx context.Context, senderID, receiverID any) (sender, receiver *bool, err error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	results, err := c.fraud.V(senderID, receiverID).ElementMap("fraud_flag").ToList()
	if err != nil {
		return nil, nil, fmt.Errorf("endpoint flags: %w", err)
	}

	for _, res := range results {
		m, err := resultMap(res)
		if err != nil {
			return nil, nil, err
		}
		flag, _ := asBool(m["fraud_flag"])
		flagged := flag
		switch idKey(m["id"]) {
		case idKey(senderID):
			sender = &flagged
		case idKey(receiverID):
			receiver = &flagged
		}
	}
	return sender, receiver, nil
}

// FlaggedCounterparties collects, for each endpoint of the edge, the
// distinct ids of flagged accounts the endpoint has transacted with
func (c *Client) FlaggedCounterparties(ctx context.Context, edgeID any) (senderIDs, receiverIDs []any, err error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	res, err := c.fraud.E(edgeID).
		Project("sender", "receiver").
		By(gremlingo.T__.OutV().BothE("TRANSACTS").BothV().
			Has("fraud_flag", true).Id().Dedup().Fold()).
		By(gremlingo.T__.InV().BothE("TRANSACTS").BothV().
			Has("fraud_flag", true).Id().Dedup().Fold()).
		Next()
	if err != nil {
		return nil, nil, fmt.Errorf("flagged counterparties: %w", err)
	}

	m, err := resultMap(res)
	if err != nil {
		return nil, nil, err
	}
	return asSlice(m["sender"]), asSlice(m["receiver"]), nil
}

// FlaggedDeviceNetwork walks the ownership network around both endpoints
// of the edge and collects the accounts reachable through shared owners
// plus any flagged devices those owners use
func (c *Client) FlaggedDeviceNetwork(ctx context.Context, edgeID any) (accountIDs, deviceIDs []any, err error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	res, err := c.fraud.E(edgeID).
		Project("accounts", "devices").
		By(gremlingo.T__.BothV().In("OWNS").Out("OWNS").
			Both("TRANSACTS").In("OWNS").Id().Dedup().Fold()).
		By(gremlingo.T__.BothV().In("OWNS").Out("OWNS").
			Both("TRANSACTS").In("OWNS").Out("USES").
			Has("fraud_flag", true).Id().Dedup().Fold()).
		Next()
	if err != nil {
		return nil, nil, fmt.Errorf("flagged device network: %w", err)
	}

	m, err := resultMap(res)
	if err != nil {
		return nil, nil, err
	}
	return asSlice(m["accounts"]), asSlice(m["devices"]), nil
}
