package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ProblemType enumerates the maintenance problem categories.
type ProblemType string

const (
	ProblemTypeSystem     ProblemType = "SYSTEM"
	ProblemTypeFurniture  ProblemType = "FURNITURE"
	ProblemTypeCivil      ProblemType = "CIVIL"
	ProblemTypeElectrical ProblemType = "ELECTRICAL"
	ProblemTypeWorkshop   ProblemType = "WORKSHOP"
)

// ParseProblemType validates a raw problem type value.
func ParseProblemType(raw string) (ProblemType, error) {
	t := ProblemType(strings.ToUpper(strings.TrimSpace(raw)))
	switch t {
	case ProblemTypeSystem, ProblemTypeFurniture, ProblemTypeCivil, ProblemTypeElectrical, ProblemTypeWorkshop:
		return t, nil
	default:
		return "", fmt.Errorf("unknown problem type: %s", raw)
	}
}

// ApprovalStatus captures the ternary admin decision outcome.
// The empty string means no decision has been recorded yet.
type ApprovalStatus string

const (
	ApprovalUnset    ApprovalStatus = ""
	ApprovalApproved ApprovalStatus = "APPROVED"
	ApprovalRejected ApprovalStatus = "REJECTED"
)

// Decided reports whether a terminal decision has been recorded.
func (s ApprovalStatus) Decided() bool {
	return s == ApprovalApproved || s == ApprovalRejected
}

// MaintenanceRequest is one maintenance ticket moving through the
// six-stage lifecycle. All step fields live flat on the record; which
// of them are required at which stage is defined by the workflow step
// table, not here.
type MaintenanceRequest struct {
	ID    string `db:"id" json:"id"`
	LabID string `db:"lab_id" json:"labId"`

	// Step 1 — problem report.
	TypeOfProblem      ProblemType `db:"type_of_problem" json:"typeOfProblem"`
	ReportDate         string      `db:"report_date" json:"date"`
	Department         string      `db:"department" json:"department"`
	Location           string      `db:"location" json:"location"`
	ComplaintDetails   string      `db:"complaint_details" json:"complaintDetails"`
	RecurringComplaint bool        `db:"recurring_complaint" json:"recurringComplaint"`
	RecurringTimes     *int        `db:"recurring_times" json:"recurringTimes,omitempty"`

	// Step 2 — originator sign-off.
	LabAssistant     string `db:"lab_assistant" json:"labAssistant"`
	LabAssistantDate string `db:"lab_assistant_date" json:"labAssistantDate"`
	HOD              string `db:"hod" json:"hod"`
	HODDate          string `db:"hod_date" json:"hodDate"`

	// Step 3 — verification.
	AssignedPerson     string `db:"assigned_person" json:"assignedPerson"`
	InChargeDate       string `db:"in_charge_date" json:"inChargeDate"`
	VerificationRemark string `db:"verification_remarks" json:"verificationRemarks"`

	// Step 4 — corrective action.
	MaterialsUsed        string `db:"materials_used" json:"materialsUsed"`
	ResolvedInhouse      bool   `db:"resolved_inhouse" json:"resolvedInhouse"`
	ResolvedRemark       string `db:"resolved_remark" json:"resolvedRemark"`
	ConsumablesNeeded    bool   `db:"consumables_needed" json:"consumablesNeeded"`
	ConsumableDetails    string `db:"consumable_details" json:"consumableDetails"`
	ExternalAgencyNeeded bool   `db:"external_agency_needed" json:"externalAgencyNeeded"`
	AgencyName           string `db:"agency_name" json:"agencyName"`
	ApproxExpenditure    string `db:"approx_expenditure" json:"approxExpenditure"`

	// Step 5 — admin approval.
	AdminApprovalStatus ApprovalStatus `db:"admin_approval_status" json:"adminApprovalStatus"`
	AdminApprovalDate   *time.Time     `db:"admin_approval_date" json:"adminApprovalDate,omitempty"`
	AdminApprovalNote   string         `db:"admin_approval_note" json:"adminApprovalNote,omitempty"`

	// Step 6 — closure.
	CompletionRemarkLab         string `db:"completion_remark_lab" json:"completionRemarkLab"`
	LabCompletionName           string `db:"lab_completion_name" json:"labCompletionName"`
	LabCompletionDate           string `db:"lab_completion_date" json:"labCompletionDate"`
	CompletionRemarkMaintenance string `db:"completion_remark_maintenance" json:"completionRemarkMaintenance"`
	MaintenanceClosedDate       string `db:"maintenance_closed_date" json:"maintenanceClosedDate"`
	MaintenanceClosedSignature  string `db:"maintenance_closed_signature" json:"maintenanceClosedSignature"`

	CurrentStep int       `db:"current_step" json:"currentStep"`
	RequestedBy string    `db:"requested_by" json:"requestedBy"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

// FieldValue resolves a workflow field name to its trimmed string view.
// Numbers and booleans are stringified before the emptiness check the
// workflow evaluator performs. Unknown names return ok=false.
func (r *MaintenanceRequest) FieldValue(name string) (string, bool) {
	switch name {
	case "typeOfProblem":
		return strings.TrimSpace(string(r.TypeOfProblem)), true
	case "date":
		return strings.TrimSpace(r.ReportDate), true
	case "department":
		return strings.TrimSpace(r.Department), true
	case "location":
		return strings.TrimSpace(r.Location), true
	case "complaintDetails":
		return strings.TrimSpace(r.ComplaintDetails), true
	case "recurringComplaint":
		return strconv.FormatBool(r.RecurringComplaint), true
	case "recurringTimes":
		if r.RecurringTimes == nil {
			return "", true
		}
		return strconv.Itoa(*r.RecurringTimes), true
	case "labAssistant":
		return strings.TrimSpace(r.LabAssistant), true
	case "labAssistantDate":
		return strings.TrimSpace(r.LabAssistantDate), true
	case "hod":
		return strings.TrimSpace(r.HOD), true
	case "hodDate":
		return strings.TrimSpace(r.HODDate), true
	case "assignedPerson":
		return strings.TrimSpace(r.AssignedPerson), true
	case "inChargeDate":
		return strings.TrimSpace(r.InChargeDate), true
	case "verificationRemarks":
		return strings.TrimSpace(r.VerificationRemark), true
	case "materialsUsed":
		return strings.TrimSpace(r.MaterialsUsed), true
	case "resolvedInhouse":
		return strconv.FormatBool(r.ResolvedInhouse), true
	case "resolvedRemark":
		return strings.TrimSpace(r.ResolvedRemark), true
	case "consumablesNeeded":
		return strconv.FormatBool(r.ConsumablesNeeded), true
	case "consumableDetails":
		return strings.TrimSpace(r.ConsumableDetails), true
	case "externalAgencyNeeded":
		return strconv.FormatBool(r.ExternalAgencyNeeded), true
	case "agencyName":
		return strings.TrimSpace(r.AgencyName), true
	case "approxExpenditure":
		return strings.TrimSpace(r.ApproxExpenditure), true
	case "adminApprovalStatus":
		return string(r.AdminApprovalStatus), true
	case "adminApprovalDate":
		if r.AdminApprovalDate == nil {
			return "", true
		}
		return r.AdminApprovalDate.Format("2006-01-02"), true
	case "completionRemarkLab":
		return strings.TrimSpace(r.CompletionRemarkLab), true
	case "labCompletionName":
		return strings.TrimSpace(r.LabCompletionName), true
	case "labCompletionDate":
		return strings.TrimSpace(r.LabCompletionDate), true
	case "completionRemarkMaintenance":
		return strings.TrimSpace(r.CompletionRemarkMaintenance), true
	case "maintenanceClosedDate":
		return strings.TrimSpace(r.MaintenanceClosedDate), true
	case "maintenanceClosedSignature":
		return strings.TrimSpace(r.MaintenanceClosedSignature), true
	default:
		return "", false
	}
}

// RequestFilter constrains maintenance request listing queries.
type RequestFilter struct {
	LabID       string
	LabIDs      []string
	Type        ProblemType
	Approval    []ApprovalStatus
	RequestedBy string
	Step        int
	Limit       int
	Offset      int
}
