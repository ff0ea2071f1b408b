package domain

type Medicine struct {
	ID           int64  `db:"id" json:"id"`
	Name         string `db:"name" json:"name"`
	GenericName  string `db:"generic_name" json:"generic_name"`
	Manufacturer string `db:"manufacturer" json:"manufacturer"`
}
