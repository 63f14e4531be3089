package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campuslabs/labops-api/internal/models"
)

const requestColumns = `id, lab_id, type_of_problem, report_date, department, location, complaint_details,
	recurring_complaint, recurring_times, lab_assistant, lab_assistant_date, hod, hod_date,
	assigned_person, in_charge_date, verification_remarks, materials_used, resolved_inhouse,
	resolved_remark, consumables_needed, consumable_details, external_agency_needed, agency_name,
	approx_expenditure, admin_approval_status, admin_approval_date, admin_approval_note,
	completion_remark_lab, lab_completion_name, lab_completion_date, completion_remark_maintenance,
	maintenance_closed_date, maintenance_closed_signature, current_step, requested_by, created_at, updated_at`

// fieldColumns maps workflow field names onto their columns. Writes
// against any name missing here are rejected, so the set of columns a
// step update can touch is closed.
var fieldColumns = map[string]string{
	"typeOfProblem":               "type_of_problem",
	"date":                        "report_date",
	"department":                  "department",
	"location":                    "location",
	"complaintDetails":            "complaint_details",
	"recurringComplaint":          "recurring_complaint",
	"recurringTimes":              "recurring_times",
	"labAssistant":                "lab_assistant",
	"labAssistantDate":            "lab_assistant_date",
	"hod":                         "hod",
	"hodDate":                     "hod_date",
	"assignedPerson":              "assigned_person",
	"inChargeDate":                "in_charge_date",
	"verificationRemarks":         "verification_remarks",
	"materialsUsed":               "materials_used",
	"resolvedInhouse":             "resolved_inhouse",
	"resolvedRemark":              "resolved_remark",
	"consumablesNeeded":           "consumables_needed",
	"consumableDetails":           "consumable_details",
	"externalAgencyNeeded":        "external_agency_needed",
	"agencyName":                  "agency_name",
	"approxExpenditure":           "approx_expenditure",
	"completionRemarkLab":         "completion_remark_lab",
	"labCompletionName":           "lab_completion_name",
	"labCompletionDate":           "lab_completion_date",
	"completionRemarkMaintenance": "completion_remark_maintenance",
	"maintenanceClosedDate":       "maintenance_closed_date",
	"maintenanceClosedSignature":  "maintenance_closed_signature",
}

// RequestRepository persists maintenance request tickets.
type RequestRepository struct {
	db *sqlx.DB
}

// NewRequestRepository constructs the repository.
func NewRequestRepository(db *sqlx.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// Create inserts a new ticket starting at step 1.
func (r *RequestRepository) Create(ctx context.Context, req *models.MaintenanceRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.CurrentStep == 0 {
		req.CurrentStep = 1
	}
	now := time.Now().UTC()
	if req.CreatedAt.IsZero() {
		req.CreatedAt = now
	}
	req.UpdatedAt = now

	const query = `INSERT INTO maintenance_requests
	(id, lab_id, type_of_problem, report_date, department, location, complaint_details,
	 recurring_complaint, recurring_times, lab_assistant, lab_assistant_date, hod, hod_date,
	 assigned_person, in_charge_date, verification_remarks, materials_used, resolved_inhouse,
	 resolved_remark, consumables_needed, consumable_details, external_agency_needed, agency_name,
	 approx_expenditure, admin_approval_status, admin_approval_date, admin_approval_note,
	 completion_remark_lab, lab_completion_name, lab_completion_date, completion_remark_maintenance,
	 maintenance_closed_date, maintenance_closed_signature, current_step, requested_by, created_at, updated_at)
	VALUES (:id, :lab_id, :type_of_problem, :report_date, :department, :location, :complaint_details,
	 :recurring_complaint, :recurring_times, :lab_assistant, :lab_assistant_date, :hod, :hod_date,
	 :assigned_person, :in_charge_date, :verification_remarks, :materials_used, :resolved_inhouse,
	 :resolved_remark, :consumables_needed, :consumable_details, :external_agency_needed, :agency_name,
	 :approx_expenditure, :admin_approval_status, :admin_approval_date, :admin_approval_note,
	 :completion_remark_lab, :lab_completion_name, :lab_completion_date, :completion_remark_maintenance,
	 :maintenance_closed_date, :maintenance_closed_signature, :current_step, :requested_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, req); err != nil {
		return fmt.Errorf("create maintenance request: %w", err)
	}
	return nil
}

// GetByID fetches one ticket.
func (r *RequestRepository) GetByID(ctx context.Context, id string) (*models.MaintenanceRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM maintenance_requests WHERE id = $1`, requestColumns)
	var req models.MaintenanceRequest
	if err := r.db.GetContext(ctx, &req, query, id); err != nil {
		return nil, err
	}
	return &req, nil
}

// List returns tickets matching the filter, latest first.
func (r *RequestRepository) List(ctx context.Context, filter models.RequestFilter) ([]models.MaintenanceRequest, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 6)
	builder.WriteString(fmt.Sprintf(`SELECT %s FROM maintenance_requests`, requestColumns))

	conditions := make([]string, 0, 5)
	if filter.LabID != "" {
		args = append(args, filter.LabID)
		conditions = append(conditions, fmt.Sprintf("lab_id = $%d", len(args)))
	}
	if len(filter.LabIDs) > 0 {
		placeholders := make([]string, len(filter.LabIDs))
		for i, labID := range filter.LabIDs {
			args = append(args, labID)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("lab_id IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		conditions = append(conditions, fmt.Sprintf("type_of_problem = $%d", len(args)))
	}
	if len(filter.Approval) > 0 {
		placeholders := make([]string, len(filter.Approval))
		for i, status := range filter.Approval {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("admin_approval_status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.RequestedBy != "" {
		args = append(args, filter.RequestedBy)
		conditions = append(conditions, fmt.Sprintf("requested_by = $%d", len(args)))
	}
	if filter.Step > 0 {
		args = append(args, filter.Step)
		conditions = append(conditions, fmt.Sprintf("current_step = $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY created_at DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var requests []models.MaintenanceRequest
	if err := r.db.SelectContext(ctx, &requests, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list maintenance requests: %w", err)
	}
	return requests, nil
}

// FieldChange is one authorized field write.
type FieldChange struct {
	Field string
	Value interface{}
}

// UpdateStepFields writes the given field changes, guarded by the step
// the caller believes the ticket is on. A concurrent advance makes the
// guard miss and the update reports sql.ErrNoRows instead of writing
// into the wrong stage.
func (r *RequestRepository) UpdateStepFields(ctx context.Context, id string, step int, changes []FieldChange) error {
	if len(changes) == 0 {
		return nil
	}

	setParts := make([]string, 0, len(changes)+1)
	args := make([]interface{}, 0, len(changes)+2)
	for _, change := range changes {
		column, ok := fieldColumns[change.Field]
		if !ok {
			return fmt.Errorf("field %q is not writable", change.Field)
		}
		args = append(args, change.Value)
		setParts = append(setParts, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	args = append(args, time.Now().UTC())
	setParts = append(setParts, fmt.Sprintf("updated_at = $%d", len(args)))

	args = append(args, id)
	idArg := len(args)
	args = append(args, step)
	stepArg := len(args)

	query := fmt.Sprintf("UPDATE maintenance_requests SET %s WHERE id = $%d AND current_step = $%d",
		strings.Join(setParts, ", "), idArg, stepArg)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update request fields: %w", err)
	}
	return requireRowsAffected(result)
}

// Advance moves the ticket from the given step to the next one. The
// guard keeps current_step monotonic under concurrent advances.
func (r *RequestRepository) Advance(ctx context.Context, id string, from int) error {
	const query = `UPDATE maintenance_requests SET current_step = $3, updated_at = $4 WHERE id = $1 AND current_step = $2`
	result, err := r.db.ExecContext(ctx, query, id, from, from+1, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("advance request: %w", err)
	}
	return requireRowsAffected(result)
}

// DecideParams groups the approval decision columns.
type DecideParams struct {
	ID        string
	Status    models.ApprovalStatus
	DecidedAt time.Time
	Note      string
	NextStep  int
}

// Decide records the terminal approval outcome. The empty-status guard
// makes the decision write-once: a second decision affects zero rows
// and surfaces as sql.ErrNoRows.
func (r *RequestRepository) Decide(ctx context.Context, params DecideParams) error {
	const query = `UPDATE maintenance_requests
	SET admin_approval_status = $2, admin_approval_date = $3, admin_approval_note = $4, current_step = $5, updated_at = $6
	WHERE id = $1 AND admin_approval_status = ''`
	result, err := r.db.ExecContext(ctx, query,
		params.ID, params.Status, params.DecidedAt, params.Note, params.NextStep, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("decide request: %w", err)
	}
	return requireRowsAffected(result)
}

func requireRowsAffected(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
