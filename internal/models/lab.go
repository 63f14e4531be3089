package models

import "time"

// Lab represents one laboratory and its responsible staff.
type Lab struct {
	ID         string    `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	Department string    `db:"department" json:"department"`
	Location   string    `db:"location" json:"location"`
	InchargeID *string   `db:"incharge_id" json:"inchargeId,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time `db:"updated_at" json:"updatedAt"`
}

// EquipmentCount is a per-lab tally of one equipment category.
type EquipmentCount struct {
	ID        string    `db:"id" json:"id"`
	LabID     string    `db:"lab_id" json:"labId"`
	Category  string    `db:"category" json:"category"`
	Working   int       `db:"working" json:"working"`
	Defective int       `db:"defective" json:"defective"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// LabFilter constrains lab listing queries.
type LabFilter struct {
	Department string
	Search     string
	Page       int
	PageSize   int
}
