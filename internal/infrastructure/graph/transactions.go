package graph

import (
	"context"
	"fmt"
	"time"

	gremlingo "github.com/apache/tinkerpop/gremlin-go/v3/driver"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"fraud-graph-engine/internal/domain/fraud"
	"fraud-graph-engine/internal/infrastructure/metadata"
)

// defaultAccountLimit caps account listings when the caller passes no limit
const defaultAccountLimit = 100000

// CreateTransaction adds a TRANSACTS edge between two account vertices and
// returns the stored transaction. Successful writes bump the fraud.total
// and fraud.amount counters.
func (c *Client) CreateTransaction(ctx context.Context, senderID, receiverID any,
	amount decimal.Decimal, txType fraud.TransactionType, location string,
	genType fraud.GenType) (fraud.TransactionInfo, error) {

	perf := fraud.NewPerformanceInfo()
	tx := fraud.TransactionInfo{
		TxnID:      uuid.NewString(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Amount:     amount.Round(2),
		Currency:   "USD",
		Type:       txType,
		Location:   location,
		Timestamp:  time.Now().UTC(),
		GenType:    genType,
	}

	if err := ctx.Err(); err != nil {
		tx.Perf = perf.Complete(false)
		return tx, err
	}
	if idKey(senderID) == idKey(receiverID) {
		tx.Perf = perf.Complete(false)
		return tx, fmt.Errorf("sender and receiver accounts must differ")
	}

	res, err := c.main.V(senderID).
		AddE("TRANSACTS").
		To(gremlingo.T__.V(receiverID)).
		Property("txn_id", tx.TxnID).
		Property("amount", tx.Amount.InexactFloat64()).
		Property("currency", tx.Currency).
		Property("type", string(tx.Type)).
		Property("method", "electronic_transfer").
		Property("location", tx.Location).
		Property("timestamp", tx.Timestamp.Format(time.RFC3339Nano)).
		Property("status", "completed").
		Property("gen_type", string(tx.GenType)).
		Id().
		Next()
	if err != nil {
		tx.Perf = perf.Complete(false)
		return tx, fmt.Errorf("create transaction: %w", err)
	}

	tx.EdgeID = res.GetInterface()
	tx.Perf = perf.Complete(true)

	c.counters.Add(metadata.RecordFraud, metadata.BinTotal, 1)
	c.counters.Add(metadata.RecordFraud, metadata.BinAmount, tx.Amount.IntPart())

	c.log.WithFields(map[string]any{
		"txn_id": tx.TxnID, "gen_type": tx.GenType, "amount": tx.Amount,
	}).Debug("transaction created")

	return tx, nil
}

// AnnotateTransaction writes the consolidated fraud result onto an edge in
// a single traversal. Re-annotating with the same result is harmless; the
// write overwrites every annotation property including eval_timestamp.
func (c *Client) AnnotateTransaction(ctx context.Context, edgeID any, ann fraud.Annotation) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	promise := c.main.E(edgeID).
		Property("is_fraud", ann.IsFraud).
		Property("fraud_score", ann.Score).
		Property("fraud_status", string(ann.Status)).
		Property("eval_timestamp", ann.EvalTimestamp.UTC().Format(time.RFC3339Nano)).
		Property("details", ann.Details).
		Iterate()
	if err := <-promise; err != nil {
		return fmt.Errorf("annotate edge %v: %w", edgeID, err)
	}
	return nil
}

// FlagAccount marks an account vertex as fraudulent
func (c *Client) FlagAccount(ctx context.Context, accountID any, reason string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	promise := c.main.V(accountID).
		Property("fraud_flag", true).
		Property("flag_reason", reason).
		Property("flag_timestamp", time.Now().UTC().Format(time.RFC3339Nano)).
		Iterate()
	if err := <-promise; err != nil {
		return fmt.Errorf("flag account %v: %w", accountID, err)
	}

	c.counters.Add(metadata.RecordAccounts, metadata.BinFlagged, 1)
	c.log.WithFields(map[string]any{"account": accountID, "reason": reason}).
		Info("account flagged")
	return nil
}

// UnflagAccount clears the fraud flag on an account vertex
func (c *Client) UnflagAccount(ctx context.Context, accountID any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	promise := c.main.V(accountID).
		Property("fraud_flag", false).
		Property("unflag_timestamp", time.Now().UTC().Format(time.RFC3339Nano)).
		Iterate()
	if err := <-promise; err != nil {
		return fmt.Errorf("unflag account %v: %w", accountID, err)
	}

	c.log.WithField("account", accountID).Info("account unflagged")
	return nil
}

// AccountIDs lists up to limit account vertex ids. The generator samples
// sender/receiver pairs from this set. A limit of zero or less means the
// default cap.
func (c *Client) AccountIDs(ctx context.Context, limit int) ([]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultAccountLimit
	}

	results, err := c.main.V().HasLabel("account").Limit(limit).Id().ToList()
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	ids := make([]any, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.GetInterface())
	}
	if len(ids) == 0 {
		return nil, fraud.ErrNoAccounts
	}
	return ids, nil
}

// DropTransactionsByGenType deletes every TRANSACTS edge with the given
// gen_type. Warmup traffic is removed this way once warmup completes.
func (c *Client) DropTransactionsByGenType(ctx context.Context, genType fraud.GenType) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	promise := c.main.E().HasLabel("TRANSACTS").
		Has("gen_type", string(genType)).
		Drop().
		Iterate()
	if err := <-promise; err != nil {
		return fmt.Errorf("drop %s transactions: %w", genType, err)
	}
	return nil
}
