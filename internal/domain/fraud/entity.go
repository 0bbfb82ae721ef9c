package fraud

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the fraud disposition of a transaction. Statuses are ordered:
// a blocked verdict always wins over review, review over cleared.
type Status string

const (
	StatusCleared Status = "cleared"
	StatusReview  Status = "review"
	StatusBlocked Status = "blocked"
)

// Rank returns the severity order of the status
func (s Status) Rank() int {
	switch s {
	case StatusBlocked:
		return 2
	case StatusReview:
		return 1
	default:
		return 0
	}
}

// Max returns the more severe of two statuses
func (s Status) Max(other Status) Status {
	if other.Rank() > s.Rank() {
		return other
	}
	return s
}

// TransactionType is the kind of payment a TRANSACTS edge represents
type TransactionType string

const (
	TypeTransfer   TransactionType = "transfer"
	TypePayment    TransactionType = "payment"
	TypeDeposit    TransactionType = "deposit"
	TypeWithdrawal TransactionType = "withdrawal"
)

// TransactionTypes lists all supported transaction types
var TransactionTypes = []TransactionType{TypeTransfer, TypePayment, TypeDeposit, TypeWithdrawal}

// GenType records whether a transaction came from the load generator or an
// explicit external request
type GenType string

const (
	GenAuto   GenType = "AUTO"
	GenManual GenType = "MANUAL"
	GenWarmup GenType = "WARMUP"
)

// TransactionInfo describes a TRANSACTS edge between two account vertices.
// Identifiers are provider-assigned and treated as opaque; different graph
// backends use different id types.
type TransactionInfo struct {
	EdgeID     any
	TxnID      string
	SenderID   any
	ReceiverID any
	Amount     decimal.Decimal
	Currency   string
	Type       TransactionType
	Location   string
	Timestamp  time.Time
	GenType    GenType
	Perf       PerformanceInfo
}

// PerformanceInfo carries timing for one evaluated unit of work. A sample
// without timing (zero Start) still counts toward success/failure totals.
type PerformanceInfo struct {
	Start      time.Time
	Duration   time.Duration
	Successful bool
}

// NewPerformanceInfo stamps the start of a timed unit of work
func NewPerformanceInfo() PerformanceInfo {
	return PerformanceInfo{Start: time.Now()}
}

// Complete closes the timing window and records the outcome
func (p PerformanceInfo) Complete(successful bool) PerformanceInfo {
	p.Duration = time.Since(p.Start)
	p.Successful = successful
	return p
}

// Verdict is the outcome of evaluating a single rule against a single
// transaction. Rules never surface Go errors; a failed evaluation is a
// Verdict with Exception set and StatusCleared.
type Verdict struct {
	RuleName  string
	IsFraud   bool
	Score     int
	Status    Status
	Evidence  map[string]any
	Exception bool
	Err       string
	Perf      PerformanceInfo
}

// ExceptionVerdict builds the verdict recorded when a rule evaluation fails
func ExceptionVerdict(ruleName string, perf PerformanceInfo, err error) Verdict {
	v := Verdict{
		RuleName:  ruleName,
		Status:    StatusCleared,
		Exception: true,
		Perf:      perf.Complete(false),
	}
	if err != nil {
		v.Err = err.Error()
	}
	return v
}

// TransactionSummary pairs a transaction with the verdicts of every rule
// that evaluated it
type TransactionSummary struct {
	Transaction TransactionInfo
	Verdicts    []Verdict
}
