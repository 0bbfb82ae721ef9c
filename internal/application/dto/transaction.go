package dto

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"fraud-graph-engine/internal/domain/fraud"
)

// CreateTransactionRequest asks the engine to record and evaluate one
// transaction between two existing accounts
type CreateTransactionRequest struct {
	SenderID   string          `json:"sender_id"`
	ReceiverID string          `json:"receiver_id"`
	Amount     decimal.Decimal `json:"amount"`
	Type       string          `json:"type"`
	Location   string          `json:"location"`
}

// Validate checks the request fields and returns the resolved transaction
// type
func (r CreateTransactionRequest) Validate() (fraud.TransactionType, error) {
	if r.SenderID == "" || r.ReceiverID == "" {
		return "", fmt.Errorf("sender_id and receiver_id are required")
	}
	if r.Amount.IsNegative() || r.Amount.IsZero() {
		return "", fmt.Errorf("amount must be positive")
	}
	if r.Type == "" {
		return fraud.TypeTransfer, nil
	}
	for _, t := range fraud.TransactionTypes {
		if string(t) == r.Type {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown transaction type %q", r.Type)
}

// VerdictResponse is one rule's outcome for a transaction
type VerdictResponse struct {
	RuleName  string         `json:"rule_name"`
	IsFraud   bool           `json:"is_fraud"`
	Score     int            `json:"fraud_score"`
	Status    string         `json:"fraud_status"`
	Evidence  map[string]any `json:"evidence,omitempty"`
	Exception bool           `json:"exception,omitempty"`
	Error     string         `json:"error,omitempty"`
	TimeMs    float64        `json:"time_ms"`
}

// TransactionResponse is the evaluated transaction returned to the caller
type TransactionResponse struct {
	TxnID      string            `json:"txn_id"`
	SenderID   any               `json:"sender_id"`
	ReceiverID any               `json:"receiver_id"`
	Amount     decimal.Decimal   `json:"amount"`
	Currency   string            `json:"currency"`
	Type       string            `json:"type"`
	Location   string            `json:"location"`
	Timestamp  time.Time         `json:"timestamp"`
	GenType    string            `json:"gen_type"`
	Verdicts   []VerdictResponse `json:"verdicts"`
}

// NewTransactionResponse maps an evaluated transaction to its wire shape
func NewTransactionResponse(summary fraud.TransactionSummary) TransactionResponse {
	tx := summary.Transaction
	out := TransactionResponse{
		TxnID:      tx.TxnID,
		SenderID:   tx.SenderID,
		ReceiverID: tx.ReceiverID,
		Amount:     tx.Amount,
		Currency:   tx.Currency,
		Type:       string(tx.Type),
		Location:   tx.Location,
		Timestamp:  tx.Timestamp,
		GenType:    string(tx.GenType),
		Verdicts:   make([]VerdictResponse, 0, len(summary.Verdicts)),
	}
	for _, v := range summary.Verdicts {
		out.Verdicts = append(out.Verdicts, VerdictResponse{
			RuleName:  v.RuleName,
			IsFraud:   v.IsFraud,
			Score:     v.Score,
			Status:    string(v.Status),
			Evidence:  v.Evidence,
			Exception: v.Exception,
			Error:     v.Err,
			TimeMs:    float64(v.Perf.Duration) / float64(time.Millisecond),
		})
	}
	return out
}
