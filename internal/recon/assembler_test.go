package recon_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medistock/m/internal/recon"
)

func TestAssembleSubmittableDraft(t *testing.T) {
	d := draftWith(t, "1000.00",
		recon.MedicineLine{MedicineID: 2, MedicineName: "Napa 500mg", Quantity: 10, UnitPrice: dec("50.00")})
	d.SetMiscellaneous(recon.MiscellaneousLine{Amount: dec("500.00")})
	d.Attachments = []string{"/uploads/bill-77.pdf"}

	a := recon.NewAssemblerAt(frozenNow)
	payload, err := a.Assemble(d)
	require.NoError(t, err)

	assert.Equal(t, "B-001", payload.BatchNumber)
	assert.Equal(t, "CHQ-77", payload.BillID)
	assert.True(t, payload.DeclaredPrice.Equal(dec("1000.00")))
	assert.True(t, payload.Miscellaneous.Equal(dec("500.00")))
	assert.Equal(t, []string{"/uploads/bill-77.pdf"}, payload.Attachments)

	require.Len(t, payload.Items, 1)
	item := payload.Items[0]
	assert.Equal(t, int64(2), item.MedicineID)
	assert.Equal(t, "Napa 500mg", item.MedicineName)
	assert.Equal(t, int64(10), item.Quantity)
	assert.True(t, item.UnitPrice.Equal(dec("50.00")))
	assert.Equal(t, "2028-03-15", item.ExpiryDate, "defaulted expiry is two years from the frozen clock")
	assert.Equal(t, "2026-03-15", item.PurchaseDate, "purchase date defaults to today")
	assert.Equal(t, recon.DefaultReorderLevel, item.ReorderLevel)
}

func TestAssembleMiscellaneousDefaultsToZero(t *testing.T) {
	d := draftWith(t, "500.00",
		recon.MedicineLine{MedicineID: 2, MedicineName: "Napa 500mg", Quantity: 10, UnitPrice: dec("50.00")})

	payload, err := recon.NewAssemblerAt(frozenNow).Assemble(d)
	require.NoError(t, err)
	assert.True(t, payload.Miscellaneous.IsZero())
}

func TestAssembleEmptyDraftFails(t *testing.T) {
	d := draftWith(t, "1000.00")

	_, err := recon.NewAssemblerAt(frozenNow).Assemble(d)
	var nsErr *recon.NotSubmittableError
	require.ErrorAs(t, err, &nsErr)
	assert.Equal(t, recon.BlockedEmpty, nsErr.Reason)
	assert.Contains(t, nsErr.Error(), "no medicine line items")
}

func TestAssembleExceededDraftFails(t *testing.T) {
	d := draftWith(t, "100.00",
		recon.MedicineLine{MedicineID: 2, MedicineName: "Napa 500mg", Quantity: 10, UnitPrice: dec("50.00")})

	_, err := recon.NewAssemblerAt(frozenNow).Assemble(d)
	var nsErr *recon.NotSubmittableError
	require.ErrorAs(t, err, &nsErr)
	assert.Equal(t, recon.BlockedExceeded, nsErr.Reason)
	assert.Contains(t, nsErr.Error(), "exceeds the declared")
}

func TestAssembleIsIdempotent(t *testing.T) {
	d := draftWith(t, "1000.00",
		recon.MedicineLine{MedicineID: 2, MedicineName: "Napa 500mg", Quantity: 10, UnitPrice: dec("50.00")},
		recon.MedicineLine{MedicineID: 3, MedicineName: "Seclo 20mg", Quantity: 4, UnitPrice: dec("125.00")})

	a := recon.NewAssemblerAt(frozenNow)
	first, err := a.Assemble(d)
	require.NoError(t, err)
	second, err := a.Assemble(d)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
