package workflow

import (
	"github.com/campuslabs/labops-api/internal/models"
)

// Placeholder stands in for values not yet filled when rendering.
const Placeholder = "-"

// RenderedField is one (label, value) pair of a snapshot, annotated
// with the owning step and whether the viewing role may edit it.
type RenderedField struct {
	Name     string `json:"name"`
	Label    string `json:"label"`
	Value    string `json:"value"`
	Step     int    `json:"step"`
	Editable bool   `json:"editable"`
}

// RenderedSection groups a step's fields under its title.
type RenderedSection struct {
	Ordinal int             `json:"ordinal"`
	Title   string          `json:"title"`
	Fields  []RenderedField `json:"fields"`
}

// suppressed reports whether a conditional field must be omitted
// because its governing flag is false, regardless of any stale value
// still stored on the record.
func suppressed(r *models.MaintenanceRequest, name string) bool {
	for _, rule := range conditionalRules {
		for _, dep := range rule.Dependents {
			if dep != name {
				continue
			}
			value, _ := r.FieldValue(rule.Flag)
			return value != "true"
		}
	}
	return false
}

// Render produces the deterministic ordered field list for a record
// snapshot, following step-table order. Empty values render as the
// placeholder dash; suppressed conditional fields are omitted.
func Render(r *models.MaintenanceRequest, viewer models.UserRole) []RenderedSection {
	sections := make([]RenderedSection, 0, len(steps))
	for _, step := range steps {
		section := RenderedSection{Ordinal: step.Ordinal, Title: step.Title}
		for _, name := range stepFields[step.Ordinal] {
			if suppressed(r, name) {
				continue
			}
			value, ok := r.FieldValue(name)
			if !ok {
				continue
			}
			if value == "" {
				value = Placeholder
			}
			section.Fields = append(section.Fields, RenderedField{
				Name:     name,
				Label:    FieldLabel(name),
				Value:    value,
				Step:     step.Ordinal,
				Editable: CanEditField(viewer, name, r.CurrentStep),
			})
		}
		sections = append(sections, section)
	}
	return sections
}
