package recon_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medistock/m/internal/recon"
)

func draftWith(t *testing.T, declared string, lines ...recon.MedicineLine) *recon.Draft {
	t.Helper()
	d := recon.NewDraftAt("B-001", "CHQ-77", dec(declared), frozenNow)
	for _, line := range lines {
		_, err := d.AddMedicine(line)
		require.NoError(t, err)
	}
	return d
}

func TestEvaluateEmptyDraft(t *testing.T) {
	d := draftWith(t, "1000.00")

	r := recon.Evaluate(d)
	assert.False(t, r.CanSubmit, "empty ledger never submits")
	assert.True(t, r.Subtotal.IsZero())
	assert.True(t, r.RemainingAmount.Equal(dec("1000.00")))
	assert.Equal(t, recon.BlockedEmpty, recon.BlockReasonFor(d))
}

func TestEvaluateRemainingAmount(t *testing.T) {
	d := draftWith(t, "1000.00",
		recon.MedicineLine{MedicineID: 2, MedicineName: "Napa 500mg", Quantity: 10, UnitPrice: dec("50.00")})

	r := recon.Evaluate(d)
	assert.True(t, r.Subtotal.Equal(dec("500.00")))
	assert.True(t, r.RemainingAmount.Equal(dec("500.00")))
}

func TestEvaluateMiscellaneousClosesTheGap(t *testing.T) {
	d := draftWith(t, "1000.00",
		recon.MedicineLine{MedicineID: 2, MedicineName: "Napa 500mg", Quantity: 10, UnitPrice: dec("50.00")})

	suggested := d.SuggestMiscellaneous()
	assert.True(t, suggested.Equal(dec("500.00")), "adjustment input pre-fills with the remaining amount")

	d.SetMiscellaneous(recon.MiscellaneousLine{Amount: suggested})
	r := recon.Evaluate(d)
	assert.True(t, r.GrandTotal.Equal(dec("1000.00")))
	assert.False(t, r.HasMismatch)
	assert.False(t, r.IsExceeded)
	assert.True(t, r.CanSubmit)
}

func TestEvaluateExceedanceBlocks(t *testing.T) {
	d := draftWith(t, "1000.00",
		recon.MedicineLine{MedicineID: 2, MedicineName: "Napa 500mg", Quantity: 10, UnitPrice: dec("50.00")},
		recon.MedicineLine{MedicineID: 3, MedicineName: "Seclo 20mg", Quantity: 5, UnitPrice: dec("150.00")})

	r := recon.Evaluate(d)
	assert.True(t, r.GrandTotal.Equal(dec("1250.00")))
	assert.True(t, r.HasMismatch)
	assert.True(t, r.IsExceeded)
	assert.False(t, r.CanSubmit)
	assert.Equal(t, recon.BlockedExceeded, recon.BlockReasonFor(d))
}

func TestEvaluateUndershootReportsButDoesNotBlock(t *testing.T) {
	// Totals below the declared price are flagged as a mismatch yet still
	// submit; only the exceeded direction closes the gate.
	d := draftWith(t, "1000.00",
		recon.MedicineLine{MedicineID: 2, MedicineName: "Napa 500mg", Quantity: 1, UnitPrice: dec("1.00")})

	r := recon.Evaluate(d)
	assert.True(t, r.PriceDifference.Equal(dec("999.00")))
	assert.True(t, r.HasMismatch)
	assert.False(t, r.IsExceeded)
	assert.True(t, r.CanSubmit)
}

func TestEvaluateToleranceAbsorbsRounding(t *testing.T) {
	d := draftWith(t, "10.00",
		recon.MedicineLine{MedicineID: 2, MedicineName: "Napa 500mg", Quantity: 1, UnitPrice: dec("10.01")})

	r := recon.Evaluate(d)
	assert.True(t, r.IsExceeded, "grand total is above the declared price")
	assert.False(t, r.HasMismatch, "one cent of drift stays within tolerance")
	assert.True(t, r.CanSubmit)

	d = draftWith(t, "10.00",
		recon.MedicineLine{MedicineID: 2, MedicineName: "Napa 500mg", Quantity: 1, UnitPrice: dec("10.02")})
	r = recon.Evaluate(d)
	assert.True(t, r.HasMismatch)
	assert.False(t, r.CanSubmit)
}

func TestEvaluateGateFlipsWithMutations(t *testing.T) {
	d := draftWith(t, "1000.00",
		recon.MedicineLine{MedicineID: 2, MedicineName: "Napa 500mg", Quantity: 10, UnitPrice: dec("50.00")})
	d.SetMiscellaneous(recon.MiscellaneousLine{Amount: dec("500.00")})
	require.True(t, recon.Evaluate(d).CanSubmit)

	// Pushing the total past declared+tolerance flips the gate shut.
	_, err := d.AddMedicine(recon.MedicineLine{MedicineID: 3, MedicineName: "Seclo 20mg", Quantity: 5, UnitPrice: dec("150.00")})
	require.NoError(t, err)
	require.False(t, recon.Evaluate(d).CanSubmit)

	// Removing the same item flips it back.
	d.RemoveItem(1)
	assert.True(t, recon.Evaluate(d).CanSubmit)
}

func TestMiscellaneousCommitReplacesNotAdds(t *testing.T) {
	d := draftWith(t, "1000.00",
		recon.MedicineLine{MedicineID: 2, MedicineName: "Napa 500mg", Quantity: 10, UnitPrice: dec("50.00")})

	d.SetMiscellaneous(recon.MiscellaneousLine{Amount: dec("500.00")})
	d.SetMiscellaneous(recon.MiscellaneousLine{Amount: dec("500.00")})
	r := recon.Evaluate(d)
	assert.True(t, r.GrandTotal.Equal(dec("1000.00")), "committing twice overwrites, never doubles")

	d.ClearMiscellaneous()
	assert.True(t, recon.Evaluate(d).GrandTotal.Equal(dec("500.00")))
}

func TestMiscellaneousNegativeDiscount(t *testing.T) {
	d := draftWith(t, "450.00",
		recon.MedicineLine{MedicineID: 2, MedicineName: "Napa 500mg", Quantity: 10, UnitPrice: dec("50.00")})

	// Subtotal already exceeds the declared price; the suggestion floors at
	// zero and a negative commit brings the total back down.
	assert.True(t, d.SuggestMiscellaneous().IsZero())

	d.SetMiscellaneous(recon.MiscellaneousLine{Amount: dec("-50.00")})
	r := recon.Evaluate(d)
	assert.True(t, r.GrandTotal.Equal(dec("450.00")))
	assert.False(t, r.HasMismatch)
	assert.True(t, r.CanSubmit)
}
