package recon

import "github.com/shopspring/decimal"

// Tolerance absorbs rounding noise when comparing the grand total against
// the declared bill amount. It is a business tolerance, not an invitation to
// let real mismatches through.
var Tolerance = decimal.RequireFromString("0.01")

// Reconciliation is the evaluation of one draft snapshot. All fields are
// derived; nothing here is stored.
type Reconciliation struct {
	Subtotal        decimal.Decimal `json:"subtotal"`
	GrandTotal      decimal.Decimal `json:"grand_total"`
	RemainingAmount decimal.Decimal `json:"remaining_amount"`
	PriceDifference decimal.Decimal `json:"price_difference"`
	HasMismatch     bool            `json:"has_mismatch"`
	IsExceeded      bool            `json:"is_exceeded"`
	CanSubmit       bool            `json:"can_submit"`
}

// Evaluate recomputes the reconciliation for the draft. Only the exceeded
// direction blocks submission: a grand total above the declared price (past
// tolerance) keeps the draft in editing, while an undershoot is reported as a
// mismatch but still submits.
func Evaluate(d *Draft) Reconciliation {
	subtotal := d.ledger.Subtotal()
	grandTotal := subtotal.Add(d.Miscellaneous())

	remaining := d.DeclaredPrice.Sub(subtotal)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}

	diff := grandTotal.Sub(d.DeclaredPrice).Abs()
	hasMismatch := diff.GreaterThan(Tolerance)
	isExceeded := grandTotal.GreaterThan(d.DeclaredPrice)

	return Reconciliation{
		Subtotal:        subtotal,
		GrandTotal:      grandTotal,
		RemainingAmount: remaining,
		PriceDifference: diff,
		HasMismatch:     hasMismatch,
		IsExceeded:      isExceeded,
		CanSubmit:       d.ledger.Len() > 0 && !(hasMismatch && isExceeded),
	}
}

// BlockReasonFor returns why the draft cannot be submitted, or "" when it
// can. The two reasons carry distinct user-facing messages.
func BlockReasonFor(d *Draft) BlockReason {
	r := Evaluate(d)
	switch {
	case r.CanSubmit:
		return ""
	case d.ledger.Len() == 0:
		return BlockedEmpty
	default:
		return BlockedExceeded
	}
}
