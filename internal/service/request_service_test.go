package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/campuslabs/labops-api/internal/dto"
	"github.com/campuslabs/labops-api/internal/models"
	"github.com/campuslabs/labops-api/internal/repository"
	appErrors "github.com/campuslabs/labops-api/pkg/errors"
)

type requestStoreStub struct {
	requests    map[string]*models.MaintenanceRequest
	lastFilter  models.RequestFilter
	lastChanges []repository.FieldChange
}

func newRequestStoreStub() *requestStoreStub {
	return &requestStoreStub{requests: make(map[string]*models.MaintenanceRequest)}
}

func (s *requestStoreStub) Create(ctx context.Context, req *models.MaintenanceRequest) error {
	if req.ID == "" {
		req.ID = "req-stub"
	}
	stored := *req
	s.requests[req.ID] = &stored
	return nil
}

func (s *requestStoreStub) GetByID(ctx context.Context, id string) (*models.MaintenanceRequest, error) {
	if req, ok := s.requests[id]; ok {
		copy := *req
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (s *requestStoreStub) List(ctx context.Context, filter models.RequestFilter) ([]models.MaintenanceRequest, error) {
	s.lastFilter = filter
	result := make([]models.MaintenanceRequest, 0, len(s.requests))
	for _, req := range s.requests {
		result = append(result, *req)
	}
	return result, nil
}

func (s *requestStoreStub) UpdateStepFields(ctx context.Context, id string, step int, changes []repository.FieldChange) error {
	req, ok := s.requests[id]
	if !ok || req.CurrentStep != step {
		return sql.ErrNoRows
	}
	s.lastChanges = changes
	return nil
}

func (s *requestStoreStub) Advance(ctx context.Context, id string, from int) error {
	req, ok := s.requests[id]
	if !ok || req.CurrentStep != from {
		return sql.ErrNoRows
	}
	req.CurrentStep = from + 1
	return nil
}

func (s *requestStoreStub) Decide(ctx context.Context, params repository.DecideParams) error {
	req, ok := s.requests[params.ID]
	if !ok || req.AdminApprovalStatus.Decided() {
		return sql.ErrNoRows
	}
	req.AdminApprovalStatus = params.Status
	req.AdminApprovalDate = &params.DecidedAt
	req.AdminApprovalNote = params.Note
	req.CurrentStep = params.NextStep
	return nil
}

type labStoreStub struct {
	labIDs map[string][]string
}

func (s *labStoreStub) InchargeLabIDs(ctx context.Context, userID string) ([]string, error) {
	return s.labIDs[userID], nil
}

type cacheStub struct {
	sets    int
	deletes int
}

func (c *cacheStub) Get(ctx context.Context, key string, dest interface{}) error {
	return appErrors.ErrCacheMiss
}

func (c *cacheStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	c.sets++
	return nil
}

func (c *cacheStub) DeleteByPattern(ctx context.Context, pattern string) error {
	c.deletes++
	return nil
}

type auditStub struct {
	logs []*models.AuditLog
}

func (a *auditStub) CreateAuditLog(ctx context.Context, entry *models.AuditLog) error {
	a.logs = append(a.logs, entry)
	return nil
}

func newTestRequestService(store *requestStoreStub, labs *labStoreStub) (*RequestService, *auditStub, *cacheStub) {
	if labs == nil {
		labs = &labStoreStub{labIDs: map[string][]string{}}
	}
	audit := &auditStub{}
	cache := &cacheStub{}
	return NewRequestService(store, labs, cache, audit, nil, nil, time.Minute), audit, cache
}

func claimsFor(role models.UserRole, userID string) *models.JWTClaims {
	return &models.JWTClaims{UserID: userID, Role: role}
}

// storedRequest builds a ticket with every field through the given
// step populated.
func storedRequest(step int) *models.MaintenanceRequest {
	req := &models.MaintenanceRequest{
		ID:          "req-1",
		LabID:       "lab-1",
		CurrentStep: step,
		RequestedBy: "assistant-1",
	}
	if step >= 1 {
		req.TypeOfProblem = models.ProblemTypeElectrical
		req.ReportDate = "2026-02-10"
		req.Department = "Mechanical"
		req.Location = "CAD Lab"
		req.ComplaintDetails = "Supply trips under load"
	}
	if step >= 2 {
		req.LabAssistant = "A. Kumar"
		req.LabAssistantDate = "2026-02-10"
		req.HOD = "Dr. Rao"
		req.HODDate = "2026-02-11"
	}
	if step >= 3 {
		req.AssignedPerson = "R. Singh"
		req.InChargeDate = "2026-02-12"
		req.VerificationRemark = "Wiring inspected"
	}
	if step >= 4 {
		req.MaterialsUsed = "Cabling, MCB"
		req.ResolvedRemark = "Replaced breaker"
	}
	return req
}

func TestRequestServiceCreate(t *testing.T) {
	store := newRequestStoreStub()
	svc, audit, cache := newTestRequestService(store, nil)

	created, err := svc.Create(context.Background(), claimsFor(models.RoleLabAssistant, "assistant-1"), dto.CreateRequestRequest{
		LabID:            "lab-1",
		TypeOfProblem:    "ELECTRICAL",
		Date:             "2026-02-10",
		Department:       "Mechanical",
		Location:         "CAD Lab",
		ComplaintDetails: "Supply trips under load",
	})
	require.NoError(t, err)
	require.Equal(t, 1, created.CurrentStep)
	require.Equal(t, "assistant-1", created.RequestedBy)
	require.Len(t, audit.logs, 1)
	require.Equal(t, models.AuditActionRequestCreate, audit.logs[0].Action)
	require.Equal(t, 1, cache.deletes)
}

func TestRequestServiceCreateForbiddenRole(t *testing.T) {
	store := newRequestStoreStub()
	svc, _, _ := newTestRequestService(store, nil)

	_, err := svc.Create(context.Background(), claimsFor(models.RoleMaintenance, "maint-1"), dto.CreateRequestRequest{
		LabID:            "lab-1",
		TypeOfProblem:    "CIVIL",
		Date:             "2026-02-10",
		Department:       "Civil",
		Location:         "Survey Lab",
		ComplaintDetails: "Ceiling leak",
	})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestRequestServiceCreateRecurringNeedsCount(t *testing.T) {
	store := newRequestStoreStub()
	svc, _, _ := newTestRequestService(store, nil)

	_, err := svc.Create(context.Background(), claimsFor(models.RoleLabAssistant, "assistant-1"), dto.CreateRequestRequest{
		LabID:              "lab-1",
		TypeOfProblem:      "SYSTEM",
		Date:               "2026-02-10",
		Department:         "CS",
		Location:           "Programming Lab",
		ComplaintDetails:   "Workstation 12 does not boot",
		RecurringComplaint: true,
	})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestRequestServiceUpdateStepAuthorizesEachField(t *testing.T) {
	store := newRequestStoreStub()
	store.requests["req-1"] = storedRequest(2)
	svc, _, _ := newTestRequestService(store, &labStoreStub{labIDs: map[string][]string{"incharge-1": {"lab-1"}}})

	hod := "Dr. Rao"
	_, err := svc.UpdateStep(context.Background(), claimsFor(models.RoleLabIncharge, "incharge-1"), "req-1", 2, dto.UpdateStepRequest{HOD: &hod})
	require.NoError(t, err)
	require.Len(t, store.lastChanges, 1)
	require.Equal(t, "hod", store.lastChanges[0].Field)
}

func TestRequestServiceUpdateStepLockedForWrongRole(t *testing.T) {
	store := newRequestStoreStub()
	store.requests["req-1"] = storedRequest(2)
	svc, _, _ := newTestRequestService(store, nil)

	hod := "Dr. Rao"
	_, err := svc.UpdateStep(context.Background(), claimsFor(models.RoleMaintenance, "maint-1"), "req-1", 2, dto.UpdateStepRequest{HOD: &hod})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrStepLocked.Code, appErrors.FromError(err).Code)
}

func TestRequestServiceUpdateStepRejectsForeignField(t *testing.T) {
	store := newRequestStoreStub()
	store.requests["req-1"] = storedRequest(2)
	svc, _, _ := newTestRequestService(store, &labStoreStub{labIDs: map[string][]string{"incharge-1": {"lab-1"}}})

	remark := "sneaky closure"
	_, err := svc.UpdateStep(context.Background(), claimsFor(models.RoleLabIncharge, "incharge-1"), "req-1", 2, dto.UpdateStepRequest{CompletionRemarkMaintenance: &remark})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestRequestServiceAdvanceNamesMissingFields(t *testing.T) {
	store := newRequestStoreStub()
	record := storedRequest(2)
	record.HOD = ""
	record.HODDate = ""
	store.requests["req-1"] = record
	svc, _, _ := newTestRequestService(store, &labStoreStub{labIDs: map[string][]string{"incharge-1": {"lab-1"}}})

	_, err := svc.Advance(context.Background(), claimsFor(models.RoleLabIncharge, "incharge-1"), "req-1")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrStepIncomplete.Code, appErr.Code)
	require.Contains(t, appErr.Message, "HOD")
}

func TestRequestServiceAdvanceMovesToNextStep(t *testing.T) {
	store := newRequestStoreStub()
	store.requests["req-1"] = storedRequest(2)
	svc, audit, _ := newTestRequestService(store, &labStoreStub{labIDs: map[string][]string{"incharge-1": {"lab-1"}}})

	updated, err := svc.Advance(context.Background(), claimsFor(models.RoleLabIncharge, "incharge-1"), "req-1")
	require.NoError(t, err)
	require.Equal(t, 3, updated.CurrentStep)
	require.Len(t, audit.logs, 1)
	require.Equal(t, models.AuditActionRequestAdvance, audit.logs[0].Action)
}

func TestRequestServiceDecideAdminOnly(t *testing.T) {
	store := newRequestStoreStub()
	store.requests["req-1"] = storedRequest(5)
	svc, _, _ := newTestRequestService(store, nil)

	_, err := svc.Decide(context.Background(), claimsFor(models.RoleMaintenance, "maint-1"), "req-1", dto.DecisionRequest{Status: "APPROVED"})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestRequestServiceDecideRejectionStillAdvances(t *testing.T) {
	store := newRequestStoreStub()
	store.requests["req-1"] = storedRequest(5)
	svc, audit, _ := newTestRequestService(store, nil)

	updated, err := svc.Decide(context.Background(), claimsFor(models.RoleAdmin, "admin-1"), "req-1", dto.DecisionRequest{
		Status: "REJECTED",
		Note:   "budget exceeded",
	})
	require.NoError(t, err)
	require.Equal(t, models.ApprovalRejected, updated.AdminApprovalStatus)
	require.Equal(t, 6, updated.CurrentStep)
	require.Len(t, audit.logs, 1)
}

func TestRequestServiceDecideIsWriteOnce(t *testing.T) {
	store := newRequestStoreStub()
	store.requests["req-1"] = storedRequest(5)
	svc, _, _ := newTestRequestService(store, nil)
	admin := claimsFor(models.RoleAdmin, "admin-1")

	_, err := svc.Decide(context.Background(), admin, "req-1", dto.DecisionRequest{Status: "APPROVED"})
	require.NoError(t, err)

	_, err = svc.Decide(context.Background(), admin, "req-1", dto.DecisionRequest{Status: "REJECTED"})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrDecisionRecorded.Code, appErrors.FromError(err).Code)
}

func TestRequestServiceListScopesAssistantToOwnTickets(t *testing.T) {
	store := newRequestStoreStub()
	svc, _, cache := newTestRequestService(store, nil)

	_, err := svc.List(context.Background(), claimsFor(models.RoleLabAssistant, "assistant-1"), models.RequestFilter{})
	require.NoError(t, err)
	require.Equal(t, "assistant-1", store.lastFilter.RequestedBy)
	require.Equal(t, 1, cache.sets)
}

func TestRequestServiceListScopesInchargeToOwnLabs(t *testing.T) {
	store := newRequestStoreStub()
	labs := &labStoreStub{labIDs: map[string][]string{"incharge-1": {"lab-1", "lab-2"}}}
	svc, _, _ := newTestRequestService(store, labs)

	_, err := svc.List(context.Background(), claimsFor(models.RoleLabIncharge, "incharge-1"), models.RequestFilter{})
	require.NoError(t, err)
	require.Equal(t, []string{"lab-1", "lab-2"}, store.lastFilter.LabIDs)

	_, err = svc.List(context.Background(), claimsFor(models.RoleLabIncharge, "incharge-1"), models.RequestFilter{LabID: "lab-9"})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestRequestServiceViewReflectsProgress(t *testing.T) {
	store := newRequestStoreStub()
	store.requests["req-1"] = storedRequest(3)
	svc, _, _ := newTestRequestService(store, nil)

	view, err := svc.View(context.Background(), claimsFor(models.RoleMaintenance, "maint-1"), "req-1")
	require.NoError(t, err)
	require.Equal(t, 3, view.CurrentStep)
	require.Equal(t, 3, view.CompletedThrough)
	require.True(t, view.CanGoBack)
	require.Equal(t, 3, view.EditableStep)
}
