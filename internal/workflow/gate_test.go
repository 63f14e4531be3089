package workflow

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/campuslabs/labops-api/internal/models"
)

func TestCanAdvanceGatesOnCurrentStep(t *testing.T) {
	r := recordThrough(1)
	r.CurrentStep = 1

	ok, err := CanAdvance(r)
	require.NoError(t, err)
	require.True(t, ok)

	r.ComplaintDetails = ""
	ok, err = CanAdvance(r)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCanAdvanceTerminalStep(t *testing.T) {
	r := recordThrough(6)
	r.CurrentStep = ClosureStep

	ok, err := CanAdvance(r)
	require.NoError(t, err)
	require.False(t, ok, "closure has no next step")
}

func TestCanGoBack(t *testing.T) {
	require.False(t, CanGoBack(1))
	require.True(t, CanGoBack(2))
	require.True(t, CanGoBack(TotalSteps))
}

func TestCanEditFieldCapability(t *testing.T) {
	cases := []struct {
		name        string
		role        models.UserRole
		field       string
		currentStep int
		want        bool
	}{
		{"owner on own step", models.RoleLabAssistant, "complaintDetails", 1, true},
		{"owner after step moved on", models.RoleLabAssistant, "complaintDetails", 2, false},
		{"wrong role on step", models.RoleLabIncharge, "complaintDetails", 1, false},
		{"incharge signs off", models.RoleLabIncharge, "hod", 2, true},
		{"maintenance verification", models.RoleMaintenance, "verificationRemarks", 3, true},
		{"admin cannot edit verification", models.RoleAdmin, "verificationRemarks", 3, false},
		{"admin approval on step 5", models.RoleAdmin, "adminApprovalStatus", 5, true},
		{"maintenance closure", models.RoleMaintenance, "maintenanceClosedDate", 6, true},
		{"unknown field", models.RoleAdmin, "nonexistent", 5, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, CanEditField(tc.role, tc.field, tc.currentStep))
		})
	}
}

func TestEditableStep(t *testing.T) {
	require.Equal(t, 1, EditableStep(models.RoleLabAssistant, 1))
	require.Equal(t, 0, EditableStep(models.RoleLabAssistant, 2))
	require.Equal(t, 5, EditableStep(models.RoleAdmin, 5))
	require.Equal(t, 0, EditableStep(models.RoleAdmin, 99))
}

func TestStepForField(t *testing.T) {
	step, err := StepForField("hodDate")
	require.NoError(t, err)
	require.Equal(t, 2, step.Ordinal)
	require.Equal(t, models.RoleLabIncharge, step.OwningRole)

	_, err = StepForField("doesNotExist")
	require.Error(t, err)
}
