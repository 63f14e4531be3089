package workflow

import (
	"fmt"

	"github.com/campuslabs/labops-api/internal/models"
)

// Step describes one stage of the maintenance request lifecycle: its
// position, the role allowed to edit it, and the fields that must be
// populated before the ticket may leave it.
type Step struct {
	Ordinal        int
	Title          string
	OwningRole     models.UserRole
	RequiredFields []string
}

const (
	// TotalSteps is the number of lifecycle stages.
	TotalSteps = 6
	// ApprovalStep is the ordinal of the admin decision stage.
	ApprovalStep = 5
	// ClosureStep is the terminal stage; it has no "next".
	ClosureStep = 6
)

// steps is the single source of truth for stage ordering and ownership.
// Every stage carries at least one required field so no stage is
// vacuously complete.
var steps = []Step{
	{
		Ordinal:    1,
		Title:      "Problem Report",
		OwningRole: models.RoleLabAssistant,
		RequiredFields: []string{
			"typeOfProblem", "date", "department", "location", "complaintDetails",
		},
	},
	{
		Ordinal:    2,
		Title:      "Originator Sign-off",
		OwningRole: models.RoleLabIncharge,
		RequiredFields: []string{
			"labAssistant", "labAssistantDate", "hod", "hodDate",
		},
	},
	{
		Ordinal:    3,
		Title:      "Verification",
		OwningRole: models.RoleMaintenance,
		RequiredFields: []string{
			"assignedPerson", "inChargeDate", "verificationRemarks",
		},
	},
	{
		Ordinal:    4,
		Title:      "Corrective Action",
		OwningRole: models.RoleMaintenance,
		RequiredFields: []string{
			"materialsUsed", "resolvedRemark",
		},
	},
	{
		Ordinal:    5,
		Title:      "Admin Approval",
		OwningRole: models.RoleAdmin,
		RequiredFields: []string{
			"adminApprovalStatus",
		},
	},
	{
		Ordinal:    6,
		Title:      "Closure",
		OwningRole: models.RoleMaintenance,
		RequiredFields: []string{
			"completionRemarkLab", "labCompletionName", "labCompletionDate",
			"completionRemarkMaintenance", "maintenanceClosedDate", "maintenanceClosedSignature",
		},
	},
}

// conditionalRule ties dependent fields to the boolean flag governing
// them: the dependents are required only while the flag is true, and
// are suppressed from rendering while it is false.
type conditionalRule struct {
	Flag       string
	Dependents []string
}

var conditionalRules = []conditionalRule{
	{Flag: "recurringComplaint", Dependents: []string{"recurringTimes"}},
	{Flag: "consumablesNeeded", Dependents: []string{"consumableDetails"}},
	{Flag: "externalAgencyNeeded", Dependents: []string{"agencyName", "approxExpenditure"}},
}

// fieldLabels maps workflow field names to their printable labels, in
// no particular order; stepFields below fixes render ordering.
var fieldLabels = map[string]string{
	"typeOfProblem":               "Type of Problem",
	"date":                        "Date of Report",
	"department":                  "Department",
	"location":                    "Location",
	"complaintDetails":            "Complaint Details",
	"recurringComplaint":          "Recurring Complaint",
	"recurringTimes":              "Times Recurred",
	"labAssistant":                "Lab Assistant",
	"labAssistantDate":            "Lab Assistant Date",
	"hod":                         "Head of Department",
	"hodDate":                     "HOD Date",
	"assignedPerson":              "Assigned Person",
	"inChargeDate":                "In-charge Date",
	"verificationRemarks":         "Verification Remarks",
	"materialsUsed":               "Materials Used",
	"resolvedInhouse":             "Resolved In-house",
	"resolvedRemark":              "Resolution Remark",
	"consumablesNeeded":           "Consumables Needed",
	"consumableDetails":           "Consumable Details",
	"externalAgencyNeeded":        "External Agency Needed",
	"agencyName":                  "Agency Name",
	"approxExpenditure":           "Approx. Expenditure",
	"adminApprovalStatus":         "Admin Approval",
	"adminApprovalDate":           "Approval Date",
	"completionRemarkLab":         "Completion Remark (Lab)",
	"labCompletionName":           "Completed By (Lab)",
	"labCompletionDate":           "Lab Completion Date",
	"completionRemarkMaintenance": "Completion Remark (Maintenance)",
	"maintenanceClosedDate":       "Maintenance Closed Date",
	"maintenanceClosedSignature":  "Maintenance Signature",
}

// stepFields lists every renderable field per step, in display order.
// It is a superset of RequiredFields: flags and their dependents and
// informational fields appear here even when optional.
var stepFields = map[int][]string{
	1: {"typeOfProblem", "date", "department", "location", "complaintDetails", "recurringComplaint", "recurringTimes"},
	2: {"labAssistant", "labAssistantDate", "hod", "hodDate"},
	3: {"assignedPerson", "inChargeDate", "verificationRemarks"},
	4: {"materialsUsed", "resolvedInhouse", "resolvedRemark", "consumablesNeeded", "consumableDetails", "externalAgencyNeeded", "agencyName", "approxExpenditure"},
	5: {"adminApprovalStatus", "adminApprovalDate"},
	6: {"completionRemarkLab", "labCompletionName", "labCompletionDate", "completionRemarkMaintenance", "maintenanceClosedDate", "maintenanceClosedSignature"},
}

// fieldToStep is derived from stepFields at init time.
var fieldToStep = func() map[string]int {
	m := make(map[string]int)
	for ordinal, fields := range stepFields {
		for _, f := range fields {
			m[f] = ordinal
		}
	}
	return m
}()

// Steps returns a copy of the ordered step table.
func Steps() []Step {
	out := make([]Step, len(steps))
	copy(out, steps)
	return out
}

// StepByOrdinal returns the step descriptor for the given ordinal.
// Unknown ordinals are an input-contract violation and are rejected.
func StepByOrdinal(ordinal int) (Step, error) {
	if ordinal < 1 || ordinal > TotalSteps {
		return Step{}, fmt.Errorf("unknown step ordinal %d", ordinal)
	}
	return steps[ordinal-1], nil
}

// StepForField resolves the step a field belongs to.
func StepForField(name string) (Step, error) {
	ordinal, ok := fieldToStep[name]
	if !ok {
		return Step{}, fmt.Errorf("unknown workflow field %q", name)
	}
	return steps[ordinal-1], nil
}

// FieldLabel returns the printable label for a workflow field.
func FieldLabel(name string) string {
	if label, ok := fieldLabels[name]; ok {
		return label
	}
	return name
}
