package workflow

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/campuslabs/labops-api/internal/models"
)

func fieldNames(sections []RenderedSection) []string {
	var names []string
	for _, s := range sections {
		for _, f := range s.Fields {
			names = append(names, f.Name)
		}
	}
	return names
}

func findField(t *testing.T, sections []RenderedSection, name string) RenderedField {
	t.Helper()
	for _, s := range sections {
		for _, f := range s.Fields {
			if f.Name == name {
				return f
			}
		}
	}
	t.Fatalf("field %s not rendered", name)
	return RenderedField{}
}

func TestRenderFollowsStepOrder(t *testing.T) {
	r := recordThrough(3)
	sections := Render(r, models.RoleAdmin)

	require.Len(t, sections, TotalSteps)
	for i, section := range sections {
		require.Equal(t, i+1, section.Ordinal)
	}
	require.Equal(t, "Problem Report", sections[0].Title)
	require.Equal(t, "Closure", sections[5].Title)

	names := fieldNames(sections)
	require.Equal(t, "typeOfProblem", names[0])
}

func TestRenderPlaceholderForMissingValues(t *testing.T) {
	r := recordThrough(1)
	sections := Render(r, models.RoleLabAssistant)

	hod := findField(t, sections, "hod")
	require.Equal(t, Placeholder, hod.Value)

	details := findField(t, sections, "complaintDetails")
	require.Equal(t, "UPS trips under load", details.Value)
}

func TestRenderOmitsStaleConditionalFields(t *testing.T) {
	r := recordThrough(4)
	// stale value left behind after the flag flipped back to false
	r.ConsumablesNeeded = false
	r.ConsumableDetails = "fuses, tape"

	names := fieldNames(Render(r, models.RoleAdmin))
	require.NotContains(t, names, "consumableDetails")
	require.NotContains(t, names, "recurringTimes")
	require.NotContains(t, names, "agencyName")

	r.ConsumablesNeeded = true
	names = fieldNames(Render(r, models.RoleAdmin))
	require.Contains(t, names, "consumableDetails")
}

func TestRenderEditableFlags(t *testing.T) {
	r := recordThrough(2)
	r.CurrentStep = 3

	sections := Render(r, models.RoleMaintenance)
	require.True(t, findField(t, sections, "verificationRemarks").Editable)
	require.False(t, findField(t, sections, "complaintDetails").Editable)

	sections = Render(r, models.RoleLabAssistant)
	require.False(t, findField(t, sections, "verificationRemarks").Editable)
	require.False(t, findField(t, sections, "complaintDetails").Editable,
		"assistant views own step read-only once the ticket moved on")
}
