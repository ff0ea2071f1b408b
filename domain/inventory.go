package domain

type InventoryItem struct {
	ID           int64   `db:"id" json:"id"`
	MedicineID   int64   `db:"medicine_id" json:"medicine_id"`
	Quantity     int64   `db:"quantity" json:"quantity"`
	CostPrice    float64 `db:"cost_price" json:"cost_price"`
	ReorderLevel int64   `db:"reorder_level" json:"reorder_level"`
	ExpiryDate   *string `db:"expiry_date" json:"expiry_date,omitempty"`
	CreatedAt    string  `db:"created_at" json:"created_at"`
	UpdatedAt    string  `db:"updated_at" json:"updated_at"`
}
