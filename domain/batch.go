package domain

type Batch struct {
	ID            int64   `db:"id" json:"id"`
	BatchNumber   string  `db:"batch_number" json:"batch_number"`
	BillID        string  `db:"bill_id" json:"bill_id"`
	DeclaredPrice float64 `db:"declared_price" json:"declared_price"`
	Miscellaneous float64 `db:"miscellaneous" json:"miscellaneous"`
	CreatedBy     *int64  `db:"created_by" json:"created_by,omitempty"`
	CreatedAt     string  `db:"created_at" json:"created_at"`
	UpdatedAt     string  `db:"updated_at" json:"updated_at"`
}

type BatchItem struct {
	ID           int64   `db:"id" json:"id"`
	BatchID      int64   `db:"batch_id" json:"batch_id"`
	MedicineID   int64   `db:"medicine_id" json:"medicine_id"`
	MedicineName string  `db:"medicine_name" json:"medicine_name"`
	Quantity     int64   `db:"quantity" json:"quantity"`
	UnitPrice    float64 `db:"unit_price" json:"unit_price"`
	ExpiryDate   string  `db:"expiry_date" json:"expiry_date"`
	PurchaseDate string  `db:"purchase_date" json:"purchase_date"`
	ReorderLevel int64   `db:"reorder_level" json:"reorder_level"`
}
