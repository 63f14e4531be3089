package workflow

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/campuslabs/labops-api/internal/models"
)

func intPtr(v int) *int { return &v }

// recordThrough returns a request populated through the given step.
func recordThrough(step int) *models.MaintenanceRequest {
	r := &models.MaintenanceRequest{CurrentStep: step}
	if step >= 1 {
		r.TypeOfProblem = models.ProblemTypeElectrical
		r.ReportDate = "2025-01-10"
		r.Department = "Computer Engineering"
		r.Location = "Lab 204"
		r.ComplaintDetails = "UPS trips under load"
	}
	if step >= 2 {
		r.LabAssistant = "S. Kulkarni"
		r.LabAssistantDate = "2025-01-10"
		r.HOD = "Dr. Mehta"
		r.HODDate = "2025-01-11"
	}
	if step >= 3 {
		r.AssignedPerson = "R. Pawar"
		r.InChargeDate = "2025-01-12"
		r.VerificationRemark = "confirmed on site"
	}
	if step >= 4 {
		r.MaterialsUsed = "replacement battery"
		r.ResolvedRemark = "battery swapped"
	}
	if step >= 5 {
		now := r.CreatedAt
		r.AdminApprovalStatus = models.ApprovalApproved
		r.AdminApprovalDate = &now
	}
	if step >= 6 {
		r.CompletionRemarkLab = "working fine"
		r.LabCompletionName = "S. Kulkarni"
		r.LabCompletionDate = "2025-01-15"
		r.CompletionRemarkMaintenance = "closed"
		r.MaintenanceClosedDate = "2025-01-15"
		r.MaintenanceClosedSignature = "RP"
	}
	return r
}

func TestIsStepCompleteRequiresEveryField(t *testing.T) {
	r := recordThrough(1)

	complete, err := IsStepComplete(r, 1)
	require.NoError(t, err)
	require.True(t, complete)

	r.Location = "   "
	complete, err = IsStepComplete(r, 1)
	require.NoError(t, err)
	require.False(t, complete, "whitespace-only field must read as empty")

	missing, err := MissingFields(r, 1)
	require.NoError(t, err)
	require.Equal(t, []string{"location"}, missing)
}

func TestIsStepCompleteConditionalFields(t *testing.T) {
	r := recordThrough(1)

	// flag off: recurringTimes is not required
	complete, err := IsStepComplete(r, 1)
	require.NoError(t, err)
	require.True(t, complete)

	// flag on without a count: step goes incomplete
	r.RecurringComplaint = true
	complete, err = IsStepComplete(r, 1)
	require.NoError(t, err)
	require.False(t, complete)

	r.RecurringTimes = intPtr(3)
	complete, err = IsStepComplete(r, 1)
	require.NoError(t, err)
	require.True(t, complete)
}

func TestIsStepCompleteExternalAgencyPair(t *testing.T) {
	r := recordThrough(4)
	r.ExternalAgencyNeeded = true

	missing, err := MissingFields(r, 4)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"agencyName", "approxExpenditure"}, missing)

	r.AgencyName = "CoolTech Services"
	r.ApproxExpenditure = "12500"
	complete, err := IsStepComplete(r, 4)
	require.NoError(t, err)
	require.True(t, complete)
}

func TestApprovalStepTwoOutcomeRule(t *testing.T) {
	r := recordThrough(4)

	complete, err := IsStepComplete(r, ApprovalStep)
	require.NoError(t, err)
	require.False(t, complete, "unset approval must read incomplete")

	r.AdminApprovalStatus = models.ApprovalApproved
	complete, err = IsStepComplete(r, ApprovalStep)
	require.NoError(t, err)
	require.True(t, complete)

	r.AdminApprovalStatus = models.ApprovalRejected
	complete, err = IsStepComplete(r, ApprovalStep)
	require.NoError(t, err)
	require.True(t, complete, "rejection is a terminal outcome and completes the stage")
}

func TestUnknownOrdinalRejected(t *testing.T) {
	r := recordThrough(1)

	_, err := IsStepComplete(r, 0)
	require.Error(t, err)
	_, err = IsStepComplete(r, TotalSteps+1)
	require.Error(t, err)

	_, err = StepByOrdinal(99)
	require.Error(t, err)
}

func TestCompletedThroughWatermark(t *testing.T) {
	require.Equal(t, 0, CompletedThrough(&models.MaintenanceRequest{}))
	require.Equal(t, 1, CompletedThrough(recordThrough(1)))
	require.Equal(t, 3, CompletedThrough(recordThrough(3)))
	require.Equal(t, TotalSteps, CompletedThrough(recordThrough(6)))

	// a gap in an earlier step caps the watermark there
	r := recordThrough(4)
	r.HOD = ""
	require.Equal(t, 1, CompletedThrough(r))
}

func TestSpecExampleElectricalReport(t *testing.T) {
	r := &models.MaintenanceRequest{
		TypeOfProblem:    models.ProblemTypeElectrical,
		ReportDate:       "2025-01-10",
		Department:       "Electrical",
		Location:         "Machines Lab",
		ComplaintDetails: "panel sparks",
		CurrentStep:      2,
	}

	complete, err := IsStepComplete(r, 1)
	require.NoError(t, err)
	require.True(t, complete)

	complete, err = IsStepComplete(r, 2)
	require.NoError(t, err)
	require.False(t, complete)

	ok, err := CanAdvance(r)
	require.NoError(t, err)
	require.False(t, ok, "navigation to step 3 must be refused while step 2 is incomplete")
}
