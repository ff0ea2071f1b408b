package recon

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultReorderLevel is applied to assembled items when the editing flow
// does not specify one.
const DefaultReorderLevel int64 = 20

const dateLayout = "2006-01-02"

// ItemPayload is one medicine line as the persistence API expects it.
type ItemPayload struct {
	MedicineID   int64           `json:"medicine_id"`
	MedicineName string          `json:"medicine_name"`
	Quantity     int64           `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	ExpiryDate   string          `json:"expiry_date"`
	PurchaseDate string          `json:"purchase_date"`
	ReorderLevel int64           `json:"reorder_level"`
}

// SubmissionPayload is the batch contract handed to the persistence API. The
// assembler only builds it; the caller performs the call and discards the
// draft once it succeeds.
type SubmissionPayload struct {
	BatchNumber   string          `json:"batch_number"`
	BillID        string          `json:"bill_id"`
	DeclaredPrice decimal.Decimal `json:"declared_price"`
	Miscellaneous decimal.Decimal `json:"miscellaneous"`
	Attachments   []string        `json:"attachments"`
	Items         []ItemPayload   `json:"items"`
}

// Assembler turns a submittable draft into a SubmissionPayload. The clock is
// injected so that date defaults are deterministic under test.
type Assembler struct {
	now func() time.Time
}

// NewAssembler returns an assembler on the wall clock.
func NewAssembler() *Assembler {
	return &Assembler{now: time.Now}
}

// NewAssemblerAt returns an assembler with an injected clock.
func NewAssemblerAt(now func() time.Time) *Assembler {
	return &Assembler{now: now}
}

// Assemble builds the payload, or fails with NotSubmittableError when the
// submission gate is closed. It performs no I/O and never mutates the draft,
// so assembling the same draft twice yields identical payloads.
func (a *Assembler) Assemble(d *Draft) (SubmissionPayload, error) {
	if reason := BlockReasonFor(d); reason != "" {
		return SubmissionPayload{}, &NotSubmittableError{Reason: reason}
	}

	purchaseDate := a.now().Format(dateLayout)
	items := d.Items()
	payload := SubmissionPayload{
		BatchNumber:   d.BatchNumber,
		BillID:        d.BillID,
		DeclaredPrice: d.DeclaredPrice,
		Miscellaneous: d.Miscellaneous(),
		Attachments:   append([]string(nil), d.Attachments...),
		Items:         make([]ItemPayload, 0, len(items)),
	}
	for _, item := range items {
		payload.Items = append(payload.Items, ItemPayload{
			MedicineID:   item.MedicineID,
			MedicineName: item.MedicineName,
			Quantity:     item.Quantity,
			UnitPrice:    item.UnitPrice,
			ExpiryDate:   item.ExpiryDate.Format(dateLayout),
			PurchaseDate: purchaseDate,
			ReorderLevel: DefaultReorderLevel,
		})
	}
	return payload, nil
}
