package dto

// CreateRequestRequest opens a new maintenance ticket with the
// problem-report fields of step 1.
type CreateRequestRequest struct {
	LabID              string `json:"labId" validate:"required"`
	TypeOfProblem      string `json:"typeOfProblem" validate:"required"`
	Date               string `json:"date" validate:"required"`
	Department         string `json:"department" validate:"required"`
	Location           string `json:"location" validate:"required"`
	ComplaintDetails   string `json:"complaintDetails" validate:"required"`
	RecurringComplaint bool   `json:"recurringComplaint"`
	RecurringTimes     *int   `json:"recurringTimes,omitempty" validate:"omitempty,gt=0"`
}

// UpdateStepRequest carries a partial write against one step's fields.
// Only fields present in the payload are touched; every present field
// is authorized against the caller's (role, current step) before any
// write happens.
type UpdateStepRequest struct {
	TypeOfProblem      *string `json:"typeOfProblem,omitempty"`
	Date               *string `json:"date,omitempty"`
	Department         *string `json:"department,omitempty"`
	Location           *string `json:"location,omitempty"`
	ComplaintDetails   *string `json:"complaintDetails,omitempty"`
	RecurringComplaint *bool   `json:"recurringComplaint,omitempty"`
	RecurringTimes     *int    `json:"recurringTimes,omitempty"`

	LabAssistant     *string `json:"labAssistant,omitempty"`
	LabAssistantDate *string `json:"labAssistantDate,omitempty"`
	HOD              *string `json:"hod,omitempty"`
	HODDate          *string `json:"hodDate,omitempty"`

	AssignedPerson      *string `json:"assignedPerson,omitempty"`
	InChargeDate        *string `json:"inChargeDate,omitempty"`
	VerificationRemarks *string `json:"verificationRemarks,omitempty"`

	MaterialsUsed        *string `json:"materialsUsed,omitempty"`
	ResolvedInhouse      *bool   `json:"resolvedInhouse,omitempty"`
	ResolvedRemark       *string `json:"resolvedRemark,omitempty"`
	ConsumablesNeeded    *bool   `json:"consumablesNeeded,omitempty"`
	ConsumableDetails    *string `json:"consumableDetails,omitempty"`
	ExternalAgencyNeeded *bool   `json:"externalAgencyNeeded,omitempty"`
	AgencyName           *string `json:"agencyName,omitempty"`
	ApproxExpenditure    *string `json:"approxExpenditure,omitempty"`

	CompletionRemarkLab         *string `json:"completionRemarkLab,omitempty"`
	LabCompletionName           *string `json:"labCompletionName,omitempty"`
	LabCompletionDate           *string `json:"labCompletionDate,omitempty"`
	CompletionRemarkMaintenance *string `json:"completionRemarkMaintenance,omitempty"`
	MaintenanceClosedDate       *string `json:"maintenanceClosedDate,omitempty"`
	MaintenanceClosedSignature  *string `json:"maintenanceClosedSignature,omitempty"`
}

// FieldNames lists every workflow field present in the payload.
func (u *UpdateStepRequest) FieldNames() []string {
	var names []string
	add := func(name string, present bool) {
		if present {
			names = append(names, name)
		}
	}
	add("typeOfProblem", u.TypeOfProblem != nil)
	add("date", u.Date != nil)
	add("department", u.Department != nil)
	add("location", u.Location != nil)
	add("complaintDetails", u.ComplaintDetails != nil)
	add("recurringComplaint", u.RecurringComplaint != nil)
	add("recurringTimes", u.RecurringTimes != nil)
	add("labAssistant", u.LabAssistant != nil)
	add("labAssistantDate", u.LabAssistantDate != nil)
	add("hod", u.HOD != nil)
	add("hodDate", u.HODDate != nil)
	add("assignedPerson", u.AssignedPerson != nil)
	add("inChargeDate", u.InChargeDate != nil)
	add("verificationRemarks", u.VerificationRemarks != nil)
	add("materialsUsed", u.MaterialsUsed != nil)
	add("resolvedInhouse", u.ResolvedInhouse != nil)
	add("resolvedRemark", u.ResolvedRemark != nil)
	add("consumablesNeeded", u.ConsumablesNeeded != nil)
	add("consumableDetails", u.ConsumableDetails != nil)
	add("externalAgencyNeeded", u.ExternalAgencyNeeded != nil)
	add("agencyName", u.AgencyName != nil)
	add("approxExpenditure", u.ApproxExpenditure != nil)
	add("completionRemarkLab", u.CompletionRemarkLab != nil)
	add("labCompletionName", u.LabCompletionName != nil)
	add("labCompletionDate", u.LabCompletionDate != nil)
	add("completionRemarkMaintenance", u.CompletionRemarkMaintenance != nil)
	add("maintenanceClosedDate", u.MaintenanceClosedDate != nil)
	add("maintenanceClosedSignature", u.MaintenanceClosedSignature != nil)
	return names
}

// DecisionRequest records the admin's terminal approval outcome.
type DecisionRequest struct {
	Status string `json:"status" validate:"required,oneof=APPROVED REJECTED"`
	Note   string `json:"note"`
}

// RequestView is the role-aware read model for one ticket.
type RequestView struct {
	ID               string      `json:"id"`
	CurrentStep      int         `json:"currentStep"`
	CompletedThrough int         `json:"completedThrough"`
	CanAdvance       bool        `json:"canAdvance"`
	CanGoBack        bool        `json:"canGoBack"`
	EditableStep     int         `json:"editableStep"`
	Sections         interface{} `json:"sections"`
}
