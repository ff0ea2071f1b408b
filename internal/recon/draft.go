package recon

import (
	"time"

	"github.com/shopspring/decimal"
)

// Draft is the aggregate for one batch being edited. It is owned by exactly
// one interactive session and is never shared, so it needs no locking. A
// draft ends in one of two ways: the caller submits the assembled payload and
// discards it, or the user abandons it.
type Draft struct {
	BatchNumber   string
	BillID        string
	DeclaredPrice decimal.Decimal
	Attachments   []string

	ledger     *Ledger
	adjustment AdjustmentSlot
}

// NewDraft starts an empty draft for the given batch metadata.
func NewDraft(batchNumber, billID string, declaredPrice decimal.Decimal) *Draft {
	return NewDraftAt(batchNumber, billID, declaredPrice, time.Now)
}

// NewDraftAt starts an empty draft with an injected clock.
func NewDraftAt(batchNumber, billID string, declaredPrice decimal.Decimal, now func() time.Time) *Draft {
	return &Draft{
		BatchNumber:   batchNumber,
		BillID:        billID,
		DeclaredPrice: declaredPrice,
		ledger:        NewLedgerAt(now),
	}
}

// AddMedicine appends a medicine line to the ledger.
func (d *Draft) AddMedicine(line MedicineLine) (LineItem, error) {
	return d.ledger.Add(line)
}

// SetMiscellaneous commits the adjustment amount, replacing any previous one.
func (d *Draft) SetMiscellaneous(line MiscellaneousLine) {
	d.adjustment.Commit(line.Amount)
}

// ClearMiscellaneous resets the adjustment to zero.
func (d *Draft) ClearMiscellaneous() {
	d.adjustment.Clear()
}

// SuggestMiscellaneous returns the pre-fill value for the adjustment input:
// the declared price minus the current subtotal, floored at zero.
func (d *Draft) SuggestMiscellaneous() decimal.Decimal {
	return SuggestFromRemaining(d.ledger, d.DeclaredPrice)
}

// RemoveItem drops the line item at index; out of range is a no-op.
func (d *Draft) RemoveItem(index int) {
	d.ledger.Remove(index)
}

// Items returns the medicine lines in insertion order.
func (d *Draft) Items() []LineItem {
	return d.ledger.Items()
}

// Miscellaneous returns the committed adjustment, zero when unset.
func (d *Draft) Miscellaneous() decimal.Decimal {
	return d.adjustment.Amount()
}

// HasMedicine reports whether the draft already holds a line for the id.
func (d *Draft) HasMedicine(medicineID int64) bool {
	return d.ledger.Contains(medicineID)
}
