package workflow

import (
	"github.com/campuslabs/labops-api/internal/models"
)

// CanAdvance reports whether the ticket may move off its current step:
// there must be a next step, and the step being left must be complete
// at the moment of the attempt. Completeness is always recomputed from
// the record, never read from a stored counter.
func CanAdvance(r *models.MaintenanceRequest) (bool, error) {
	if r.CurrentStep >= TotalSteps {
		return false, nil
	}
	return IsStepComplete(r, r.CurrentStep)
}

// CanGoBack reports whether earlier steps may be viewed. Viewing
// history is always free; it never un-completes anything.
func CanGoBack(currentStep int) bool {
	return currentStep > 1
}

// CanEditField is the per-field capability check: the session's role
// must own the step the field belongs to, and the ticket must
// currently sit on that step. Everyone else gets the field read-only.
// It is independent of navigation: any role may view any step.
func CanEditField(role models.UserRole, field string, currentStep int) bool {
	step, err := StepForField(field)
	if err != nil {
		return false
	}
	return role == step.OwningRole && currentStep == step.Ordinal
}

// EditableStep returns the step the given role may currently edit, or
// 0 when the role has no editable step at the ticket's present stage.
func EditableStep(role models.UserRole, currentStep int) int {
	step, err := StepByOrdinal(currentStep)
	if err != nil {
		return 0
	}
	if step.OwningRole == role {
		return step.Ordinal
	}
	return 0
}
