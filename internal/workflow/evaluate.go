package workflow

import (
	"fmt"

	"github.com/campuslabs/labops-api/internal/models"
)

// requiredFieldsFor expands a step's required fields with any
// conditional dependents whose governing flag is set on the record.
func requiredFieldsFor(r *models.MaintenanceRequest, step Step) []string {
	fields := append([]string(nil), step.RequiredFields...)
	for _, rule := range conditionalRules {
		owner, ok := fieldToStep[rule.Flag]
		if !ok || owner != step.Ordinal {
			continue
		}
		value, _ := r.FieldValue(rule.Flag)
		if value == "true" {
			fields = append(fields, rule.Dependents...)
		}
	}
	return fields
}

// MissingFields lists every required field of the given step that is
// still empty on the record. The approval step follows the two-outcome
// rule instead: it is only ever "missing" its decision.
func MissingFields(r *models.MaintenanceRequest, ordinal int) ([]string, error) {
	if r == nil {
		return nil, fmt.Errorf("nil request record")
	}
	step, err := StepByOrdinal(ordinal)
	if err != nil {
		return nil, err
	}

	if ordinal == ApprovalStep {
		if r.AdminApprovalStatus.Decided() {
			return nil, nil
		}
		return []string{"adminApprovalStatus"}, nil
	}

	var missing []string
	for _, name := range requiredFieldsFor(r, step) {
		value, known := r.FieldValue(name)
		if !known {
			return nil, fmt.Errorf("step %d references unknown field %q", ordinal, name)
		}
		if value == "" {
			missing = append(missing, name)
		}
	}
	return missing, nil
}

// IsStepComplete reports whether every required field of the step is
// populated. Pure: it never mutates the record and holds no state.
func IsStepComplete(r *models.MaintenanceRequest, ordinal int) (bool, error) {
	missing, err := MissingFields(r, ordinal)
	if err != nil {
		return false, err
	}
	return len(missing) == 0, nil
}

// CompletedThrough derives the completion watermark: the highest step
// ordinal N such that steps 1..N are all complete. It is recomputed
// from the record on every call and never stored.
func CompletedThrough(r *models.MaintenanceRequest) int {
	watermark := 0
	for ordinal := 1; ordinal <= TotalSteps; ordinal++ {
		complete, err := IsStepComplete(r, ordinal)
		if err != nil || !complete {
			break
		}
		watermark = ordinal
	}
	return watermark
}
