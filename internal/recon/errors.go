package recon

import (
	"errors"
	"fmt"
)

// ErrDuplicateMedicine is returned when a medicine id is added to a ledger
// that already holds a line for it.
var ErrDuplicateMedicine = errors.New("medicine is already part of this batch")

// ValidationError describes a malformed line-item input. It is always
// recoverable; callers surface the message inline and keep editing.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// BlockReason distinguishes why a draft cannot be submitted.
type BlockReason string

const (
	// BlockedEmpty means the draft has no line items.
	BlockedEmpty BlockReason = "empty"
	// BlockedExceeded means the grand total exceeds the declared bill amount.
	BlockedExceeded BlockReason = "exceeded"
)

// NotSubmittableError is returned by the assembler when the submission gate
// fails. The reason is part of the contract: callers show different messages
// for an empty batch versus a price exceedance.
type NotSubmittableError struct {
	Reason BlockReason
}

func (e *NotSubmittableError) Error() string {
	switch e.Reason {
	case BlockedEmpty:
		return "batch has no medicine line items"
	case BlockedExceeded:
		return "grand total exceeds the declared cheque/bill amount"
	default:
		return "batch is not submittable"
	}
}
