package domain

import (
	"fmt"
	"time"
)

// ErrorKind classifies an operation failure for the caller. Kinds are stable
// strings so they can be persisted and rendered by the UI layer.
type ErrorKind string

const (
	ErrKindInvalidAmount      ErrorKind = "invalid_amount"
	ErrKindInsufficientFunds  ErrorKind = "insufficient_balance"
	ErrKindInsufficientPaired ErrorKind = "insufficient_paired_balance"
	ErrKindApprovalRejected   ErrorKind = "approval_rejected"
	ErrKindApprovalFailed     ErrorKind = "approval_failed"
	ErrKindUserRejected       ErrorKind = "user_rejected"
	ErrKindTxFailed           ErrorKind = "transaction_failed"
	ErrKindExternalService    ErrorKind = "external_service_error"
	ErrKindConfigMissing      ErrorKind = "configuration_missing"
)

// OperationKind names an orchestrated operation for journaling.
type OperationKind string

const (
	OpSplit    OperationKind = "split"
	OpMerge    OperationKind = "merge"
	OpSwap     OperationKind = "swap"
	OpApproval OperationKind = "approval"
	OpRedeem   OperationKind = "redeem"
)

// Receipt is the subset of a transaction receipt the lifecycle core needs.
type Receipt struct {
	TxHash      string
	Status      uint64
	BlockNumber uint64
	GasUsed     uint64
}

// Succeeded reports whether the receipt carries a success status.
func (r *Receipt) Succeeded() bool {
	return r != nil && r.Status == 1
}

// OperationResult is the outcome of every orchestrated operation (split,
// merge, swap, approval). Operations return a result, never panic past their
// boundary: Success carries the transaction hash and receipt, failure carries
// a classified kind and a human-readable message.
type OperationResult struct {
	Success   bool
	TxHash    string
	Receipt   *Receipt
	ErrorKind ErrorKind
	Message   string
}

// OK builds a successful result from a receipt.
func OK(receipt *Receipt) OperationResult {
	res := OperationResult{Success: true, Receipt: receipt}
	if receipt != nil {
		res.TxHash = receipt.TxHash
	}
	return res
}

// Fail builds a failed result with a formatted message.
func Fail(kind ErrorKind, format string, args ...any) OperationResult {
	return OperationResult{
		Success:   false,
		ErrorKind: kind,
		Message:   fmt.Sprintf(format, args...),
	}
}

// Err returns the failure as an error, or nil for a successful result.
func (r OperationResult) Err() error {
	if r.Success {
		return nil
	}
	return fmt.Errorf("%s: %s", r.ErrorKind, r.Message)
}

// OperationRecord is the journal row persisted for every orchestrated
// operation, successful or not.
type OperationRecord struct {
	ID        string
	Kind      OperationKind
	Family    TokenFamily
	Side      Side
	Owner     string
	Amount    string // fixed-point integer, decimal string
	Success   bool
	TxHash    string
	ErrorKind ErrorKind
	Message   string
	CreatedAt time.Time
}
