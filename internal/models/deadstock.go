package models

import "time"

// DeadstockEntry records one equipment-disposal report for a lab.
type DeadstockEntry struct {
	ID         string    `db:"id" json:"id"`
	LabID      string    `db:"lab_id" json:"labId"`
	ItemName   string    `db:"item_name" json:"itemName"`
	Quantity   int       `db:"quantity" json:"quantity"`
	Reason     string    `db:"reason" json:"reason"`
	ReportDate string    `db:"report_date" json:"reportDate"`
	RecordedBy string    `db:"recorded_by" json:"recordedBy"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

// DeadstockFilter constrains deadstock listing queries.
type DeadstockFilter struct {
	LabID    string
	Search   string
	FromDate string
	ToDate   string
	Limit    int
	Offset   int
}
