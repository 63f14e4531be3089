package dto

// CreateLabRequest registers a laboratory.
type CreateLabRequest struct {
	Name       string  `json:"name" validate:"required"`
	Department string  `json:"department" validate:"required"`
	Location   string  `json:"location"`
	InchargeID *string `json:"inchargeId,omitempty"`
}

// UpdateLabRequest mutates laboratory master data.
type UpdateLabRequest struct {
	Name       *string `json:"name,omitempty"`
	Department *string `json:"department,omitempty"`
	Location   *string `json:"location,omitempty"`
	InchargeID *string `json:"inchargeId,omitempty"`
}

// UpsertEquipmentCountRequest sets the working/defective tally for one
// equipment category of a lab.
type UpsertEquipmentCountRequest struct {
	Category  string `json:"category" validate:"required"`
	Working   int    `json:"working" validate:"gte=0"`
	Defective int    `json:"defective" validate:"gte=0"`
}

// CreateDeadstockRequest files an equipment-disposal record.
type CreateDeadstockRequest struct {
	LabID      string `json:"labId" validate:"required"`
	ItemName   string `json:"itemName" validate:"required"`
	Quantity   int    `json:"quantity" validate:"required,gt=0"`
	Reason     string `json:"reason" validate:"required"`
	ReportDate string `json:"reportDate" validate:"required"`
}
