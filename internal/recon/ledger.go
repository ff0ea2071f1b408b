package recon

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultExpiryYears is applied when a medicine line carries no expiry date.
const DefaultExpiryYears = 2

// MedicineLine is the input for a real medicine entry. The miscellaneous
// adjustment is a separate type (MiscellaneousLine); a batch entry is one or
// the other, never a medicine with a magic id.
type MedicineLine struct {
	MedicineID   int64
	MedicineName string
	Quantity     int64
	UnitPrice    decimal.Decimal
	ExpiryDate   time.Time // zero value means "use the default"
}

// MiscellaneousLine is the input for the single signed cost adjustment of a
// batch. Positive is a surcharge, negative a discount.
type MiscellaneousLine struct {
	Amount decimal.Decimal
}

// LineItem is a confirmed medicine entry held by a Ledger.
type LineItem struct {
	MedicineID   int64
	MedicineName string
	Quantity     int64
	UnitPrice    decimal.Decimal
	ExpiryDate   time.Time
}

// Cost returns quantity times unit price.
func (li LineItem) Cost() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(li.Quantity))
}

// Ledger holds the medicine line items of one in-progress batch. It enforces
// at most one line per medicine id and preserves insertion order, which is
// also display order.
type Ledger struct {
	items []LineItem
	seen  map[int64]struct{}
	now   func() time.Time
}

// NewLedger returns an empty ledger using the wall clock for expiry defaults.
func NewLedger() *Ledger {
	return NewLedgerAt(time.Now)
}

// NewLedgerAt returns an empty ledger with an injected clock.
func NewLedgerAt(now func() time.Time) *Ledger {
	return &Ledger{seen: make(map[int64]struct{}), now: now}
}

// Add validates the candidate and appends it. The duplicate check runs before
// any amount math so the same drug can never be counted twice in one batch.
func (l *Ledger) Add(line MedicineLine) (LineItem, error) {
	if line.MedicineID <= 0 {
		return LineItem{}, &ValidationError{Field: "medicine_id", Reason: "a medicine must be selected"}
	}
	if line.MedicineID == MiscellaneousID {
		return LineItem{}, &ValidationError{Field: "medicine_id", Reason: "miscellaneous is an adjustment, not a stock item"}
	}
	if _, dup := l.seen[line.MedicineID]; dup {
		return LineItem{}, ErrDuplicateMedicine
	}
	if line.Quantity <= 0 {
		return LineItem{}, &ValidationError{Field: "quantity", Reason: "must be greater than zero"}
	}
	if !line.UnitPrice.IsPositive() {
		return LineItem{}, &ValidationError{Field: "unit_price", Reason: "must be greater than zero"}
	}

	expiry := line.ExpiryDate
	if expiry.IsZero() {
		expiry = l.now().AddDate(DefaultExpiryYears, 0, 0)
	}
	item := LineItem{
		MedicineID:   line.MedicineID,
		MedicineName: line.MedicineName,
		Quantity:     line.Quantity,
		UnitPrice:    line.UnitPrice,
		ExpiryDate:   expiry,
	}
	l.seen[line.MedicineID] = struct{}{}
	l.items = append(l.items, item)
	return item, nil
}

// Remove drops the item at index. Out-of-range indexes are a no-op.
func (l *Ledger) Remove(index int) {
	if index < 0 || index >= len(l.items) {
		return
	}
	delete(l.seen, l.items[index].MedicineID)
	l.items = append(l.items[:index], l.items[index+1:]...)
}

// Items returns a copy of the line items in insertion order.
func (l *Ledger) Items() []LineItem {
	out := make([]LineItem, len(l.items))
	copy(out, l.items)
	return out
}

// Len returns the number of line items.
func (l *Ledger) Len() int {
	return len(l.items)
}

// Contains reports whether a line exists for the medicine id.
func (l *Ledger) Contains(medicineID int64) bool {
	_, ok := l.seen[medicineID]
	return ok
}

// Subtotal returns the sum of all line costs.
func (l *Ledger) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range l.items {
		total = total.Add(item.Cost())
	}
	return total
}
