package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/campuslabs/labops-api/internal/models"
)

func newRequestRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func requestRows(req *models.MaintenanceRequest) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "lab_id", "type_of_problem", "report_date", "department", "location", "complaint_details",
		"recurring_complaint", "recurring_times", "lab_assistant", "lab_assistant_date", "hod", "hod_date",
		"assigned_person", "in_charge_date", "verification_remarks", "materials_used", "resolved_inhouse",
		"resolved_remark", "consumables_needed", "consumable_details", "external_agency_needed", "agency_name",
		"approx_expenditure", "admin_approval_status", "admin_approval_date", "admin_approval_note",
		"completion_remark_lab", "lab_completion_name", "lab_completion_date", "completion_remark_maintenance",
		"maintenance_closed_date", "maintenance_closed_signature", "current_step", "requested_by", "created_at", "updated_at",
	}).AddRow(
		req.ID, req.LabID, req.TypeOfProblem, req.ReportDate, req.Department, req.Location, req.ComplaintDetails,
		req.RecurringComplaint, req.RecurringTimes, req.LabAssistant, req.LabAssistantDate, req.HOD, req.HODDate,
		req.AssignedPerson, req.InChargeDate, req.VerificationRemark, req.MaterialsUsed, req.ResolvedInhouse,
		req.ResolvedRemark, req.ConsumablesNeeded, req.ConsumableDetails, req.ExternalAgencyNeeded, req.AgencyName,
		req.ApproxExpenditure, req.AdminApprovalStatus, req.AdminApprovalDate, req.AdminApprovalNote,
		req.CompletionRemarkLab, req.LabCompletionName, req.LabCompletionDate, req.CompletionRemarkMaintenance,
		req.MaintenanceClosedDate, req.MaintenanceClosedSignature, req.CurrentStep, req.RequestedBy, req.CreatedAt, req.UpdatedAt,
	)
}

func TestRequestRepositoryCreateAndGet(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()

	repo := NewRequestRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO maintenance_requests")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	req := &models.MaintenanceRequest{
		LabID:            "lab-1",
		TypeOfProblem:    models.ProblemTypeElectrical,
		ReportDate:       "2026-02-10",
		Department:       "Mechanical",
		Location:         "CAD Lab, Block B",
		ComplaintDetails: "Main supply trips when all machines run",
		RequestedBy:      "user-1",
	}
	require.NoError(t, repo.Create(context.Background(), req))
	require.NotEmpty(t, req.ID)
	require.Equal(t, 1, req.CurrentStep)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, lab_id, type_of_problem")).
		WithArgs(req.ID).
		WillReturnRows(requestRows(req))

	found, err := repo.GetByID(context.Background(), req.ID)
	require.NoError(t, err)
	require.Equal(t, req.ID, found.ID)
	require.Equal(t, models.ProblemTypeElectrical, found.TypeOfProblem)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()

	repo := NewRequestRepository(db)
	stored := &models.MaintenanceRequest{
		ID:            "req-1",
		LabID:         "lab-1",
		TypeOfProblem: models.ProblemTypeSystem,
		CurrentStep:   3,
		RequestedBy:   "user-1",
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	mock.ExpectQuery("SELECT .+ FROM maintenance_requests WHERE lab_id = \\$1 AND type_of_problem = \\$2 AND current_step = \\$3").
		WithArgs("lab-1", models.ProblemTypeSystem, 3).
		WillReturnRows(requestRows(stored))

	requests, err := repo.List(context.Background(), models.RequestFilter{
		LabID: "lab-1",
		Type:  models.ProblemTypeSystem,
		Step:  3,
	})
	require.NoError(t, err)
	require.Len(t, requests, 1)
	require.Equal(t, "req-1", requests[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryUpdateStepFields(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()

	repo := NewRequestRepository(db)
	mock.ExpectExec("UPDATE maintenance_requests SET verification_remarks = \\$1, updated_at = \\$2 WHERE id = \\$3 AND current_step = \\$4").
		WithArgs("checked wiring", sqlmock.AnyArg(), "req-1", 3).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateStepFields(context.Background(), "req-1", 3, []FieldChange{
		{Field: "verificationRemarks", Value: "checked wiring"},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryUpdateStepFieldsRejectsUnknownField(t *testing.T) {
	db, _, cleanup := newRequestRepoMock(t)
	defer cleanup()

	repo := NewRequestRepository(db)
	err := repo.UpdateStepFields(context.Background(), "req-1", 1, []FieldChange{
		{Field: "currentStep", Value: 6},
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "not writable")
}

func TestRequestRepositoryUpdateStepFieldsGuardMiss(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()

	repo := NewRequestRepository(db)
	mock.ExpectExec("UPDATE maintenance_requests SET").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStepFields(context.Background(), "req-1", 2, []FieldChange{
		{Field: "hod", Value: "Dr. Rao"},
	})
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryAdvance(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()

	repo := NewRequestRepository(db)
	mock.ExpectExec("UPDATE maintenance_requests SET current_step = \\$3").
		WithArgs("req-1", 2, 3, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Advance(context.Background(), "req-1", 2))

	mock.ExpectExec("UPDATE maintenance_requests SET current_step = \\$3").
		WithArgs("req-1", 2, 3, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.ErrorIs(t, repo.Advance(context.Background(), "req-1", 2), sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryDecideWriteOnce(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()

	repo := NewRequestRepository(db)
	decidedAt := time.Now()
	mock.ExpectExec("UPDATE maintenance_requests\\s+SET admin_approval_status = \\$2").
		WithArgs("req-1", models.ApprovalRejected, decidedAt, "budget exceeded", 6, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Decide(context.Background(), DecideParams{
		ID:        "req-1",
		Status:    models.ApprovalRejected,
		DecidedAt: decidedAt,
		Note:      "budget exceeded",
		NextStep:  6,
	})
	require.NoError(t, err)

	mock.ExpectExec("UPDATE maintenance_requests\\s+SET admin_approval_status = \\$2").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = repo.Decide(context.Background(), DecideParams{
		ID:        "req-1",
		Status:    models.ApprovalApproved,
		DecidedAt: decidedAt,
		NextStep:  6,
	})
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}
