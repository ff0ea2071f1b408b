package recon

import "github.com/shopspring/decimal"

// AdjustmentSlot holds the single optional miscellaneous amount of a batch.
// Committing replaces the previous value outright; selecting the adjustment
// twice overwrites, never doubles.
type AdjustmentSlot struct {
	amount decimal.Decimal
	set    bool
}

// Commit stores the amount, replacing any previous one.
func (s *AdjustmentSlot) Commit(amount decimal.Decimal) {
	s.amount = amount
	s.set = true
}

// Clear resets the slot to zero.
func (s *AdjustmentSlot) Clear() {
	s.amount = decimal.Zero
	s.set = false
}

// Amount returns the committed amount, or zero when unset.
func (s *AdjustmentSlot) Amount() decimal.Decimal {
	if !s.set {
		return decimal.Zero
	}
	return s.amount
}

// IsSet reports whether an amount has been committed.
func (s *AdjustmentSlot) IsSet() bool {
	return s.set
}

// SuggestFromRemaining returns the amount that would bring the ledger
// subtotal up to the declared price, floored at zero. It is the value the
// adjustment input is pre-filled with; the user may commit any other signed
// amount instead.
func SuggestFromRemaining(l *Ledger, declaredPrice decimal.Decimal) decimal.Decimal {
	remaining := declaredPrice.Sub(l.Subtotal())
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}
