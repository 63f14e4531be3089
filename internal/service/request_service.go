package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campuslabs/labops-api/internal/dto"
	"github.com/campuslabs/labops-api/internal/models"
	"github.com/campuslabs/labops-api/internal/repository"
	"github.com/campuslabs/labops-api/internal/workflow"
	appErrors "github.com/campuslabs/labops-api/pkg/errors"
)

type requestStore interface {
	Create(ctx context.Context, req *models.MaintenanceRequest) error
	GetByID(ctx context.Context, id string) (*models.MaintenanceRequest, error)
	List(ctx context.Context, filter models.RequestFilter) ([]models.MaintenanceRequest, error)
	UpdateStepFields(ctx context.Context, id string, step int, changes []repository.FieldChange) error
	Advance(ctx context.Context, id string, from int) error
	Decide(ctx context.Context, params repository.DecideParams) error
}

type requestLabStore interface {
	InchargeLabIDs(ctx context.Context, userID string) ([]string, error)
}

type requestCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

type auditStore interface {
	CreateAuditLog(ctx context.Context, entry *models.AuditLog) error
}

const requestListCachePrefix = "requests:list:"

// RequestService drives maintenance tickets through the six-stage
// lifecycle. Every mutation is authorized here per field against the
// caller's role and the ticket's current stage, so a crafted payload
// cannot reach fields of another stage.
type RequestService struct {
	store     requestStore
	labs      requestLabStore
	cache     requestCache
	audit     auditStore
	validator *validator.Validate
	logger    *zap.Logger
	listTTL   time.Duration
	metrics   *MetricsService
}

// RequestServiceOption customises optional collaborators.
type RequestServiceOption func(*RequestService)

// WithRequestMetrics attaches lifecycle counters.
func WithRequestMetrics(metrics *MetricsService) RequestServiceOption {
	return func(s *RequestService) {
		s.metrics = metrics
	}
}

// NewRequestService constructs a RequestService.
func NewRequestService(store requestStore, labs requestLabStore, cache requestCache, audit auditStore, validate *validator.Validate, logger *zap.Logger, listTTL time.Duration, opts ...RequestServiceOption) *RequestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	s := &RequestService{
		store:     store,
		labs:      labs,
		cache:     cache,
		audit:     audit,
		validator: validate,
		logger:    logger,
		listTTL:   listTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create opens a new ticket on step 1 with the problem-report fields.
func (s *RequestService) Create(ctx context.Context, claims *models.JWTClaims, req dto.CreateRequestRequest) (*models.MaintenanceRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request payload")
	}
	if claims.Role != models.RoleLabAssistant && claims.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only lab assistants may open maintenance requests")
	}

	problemType, err := models.ParseProblemType(req.TypeOfProblem)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unknown problem type")
	}
	if req.RecurringComplaint && req.RecurringTimes == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "recurringTimes is required for a recurring complaint")
	}

	record := &models.MaintenanceRequest{
		LabID:              req.LabID,
		TypeOfProblem:      problemType,
		ReportDate:         req.Date,
		Department:         req.Department,
		Location:           req.Location,
		ComplaintDetails:   req.ComplaintDetails,
		RecurringComplaint: req.RecurringComplaint,
		RecurringTimes:     req.RecurringTimes,
		CurrentStep:        1,
		RequestedBy:        claims.UserID,
	}
	if err := s.store.Create(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create maintenance request")
	}

	s.invalidateListCache(ctx)
	s.recordAudit(ctx, claims, models.AuditActionRequestCreate, record.ID, record)
	if s.metrics != nil {
		s.metrics.TicketOpened()
	}
	return record, nil
}

// Get returns one ticket if the caller's role may see it.
func (s *RequestService) Get(ctx context.Context, claims *models.JWTClaims, id string) (*models.MaintenanceRequest, error) {
	record, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeRead(ctx, claims, record); err != nil {
		return nil, err
	}
	return record, nil
}

// View returns the role-aware rendering of one ticket: sections in
// step order, placeholders for blanks, per-field editability for the
// caller, and the derived progress watermark.
func (s *RequestService) View(ctx context.Context, claims *models.JWTClaims, id string) (*dto.RequestView, error) {
	record, err := s.Get(ctx, claims, id)
	if err != nil {
		return nil, err
	}

	canAdvance, err := workflow.CanAdvance(record)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to evaluate ticket")
	}

	return &dto.RequestView{
		ID:               record.ID,
		CurrentStep:      record.CurrentStep,
		CompletedThrough: workflow.CompletedThrough(record),
		CanAdvance:       canAdvance,
		CanGoBack:        workflow.CanGoBack(record.CurrentStep),
		EditableStep:     workflow.EditableStep(claims.Role, record.CurrentStep),
		Sections:         workflow.Render(record, claims.Role),
	}, nil
}

// List returns the tickets visible to the caller's role. Assistants
// see their own tickets, in-charge users see their labs' tickets, and
// maintenance staff and admins see everything.
func (s *RequestService) List(ctx context.Context, claims *models.JWTClaims, filter models.RequestFilter) ([]models.MaintenanceRequest, error) {
	switch claims.Role {
	case models.RoleLabAssistant:
		filter.RequestedBy = claims.UserID
	case models.RoleLabIncharge:
		labIDs, err := s.labs.InchargeLabIDs(ctx, claims.UserID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve labs")
		}
		if len(labIDs) == 0 {
			return []models.MaintenanceRequest{}, nil
		}
		if filter.LabID != "" && !contains(labIDs, filter.LabID) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "lab is not assigned to this user")
		}
		if filter.LabID == "" {
			filter.LabIDs = labIDs
		}
	}

	key := s.listCacheKey(claims, filter)
	var cached []models.MaintenanceRequest
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		return cached, nil
	}

	requests, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list maintenance requests")
	}
	if err := s.cache.Set(ctx, key, requests, s.listTTL); err != nil {
		s.logger.Warn("failed to cache request listing", zap.Error(err))
	}
	return requests, nil
}

// UpdateStep applies a partial write against one stage of the ticket.
// Every field present in the payload must belong to the named stage,
// the ticket must currently sit on that stage, and the caller's role
// must own it. Updates are last-write-wins within a stage; a ticket
// that moved on between read and write surfaces as a conflict.
func (s *RequestService) UpdateStep(ctx context.Context, claims *models.JWTClaims, id string, ordinal int, req dto.UpdateStepRequest) (*models.MaintenanceRequest, error) {
	step, err := workflow.StepByOrdinal(ordinal)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrUnknownStep, err.Error())
	}

	record, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeRead(ctx, claims, record); err != nil {
		return nil, err
	}

	names := req.FieldNames()
	if len(names) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no fields in payload")
	}
	for _, name := range names {
		owning, err := workflow.StepForField(name)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown field %q", name))
		}
		if owning.Ordinal != step.Ordinal {
			return nil, appErrors.Clone(appErrors.ErrValidation,
				fmt.Sprintf("field %q belongs to step %d, not step %d", name, owning.Ordinal, step.Ordinal))
		}
		if !workflow.CanEditField(claims.Role, name, record.CurrentStep) {
			return nil, appErrors.Clone(appErrors.ErrStepLocked,
				fmt.Sprintf("field %q is not editable by %s at step %d", name, claims.Role, record.CurrentStep))
		}
	}

	changes, err := buildFieldChanges(req)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid field value")
	}

	if err := s.store.UpdateStepFields(ctx, id, record.CurrentStep, changes); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "ticket moved to another step, reload and retry")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update maintenance request")
	}

	updated, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	s.invalidateListCache(ctx)
	s.recordAudit(ctx, claims, models.AuditActionRequestUpdate, id, map[string]interface{}{"step": ordinal, "fields": names})
	return updated, nil
}

// Advance moves the ticket to the next stage once the current one is
// complete. The missing fields, if any, are named in the error.
func (s *RequestService) Advance(ctx context.Context, claims *models.JWTClaims, id string) (*models.MaintenanceRequest, error) {
	record, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeRead(ctx, claims, record); err != nil {
		return nil, err
	}

	step, err := workflow.StepByOrdinal(record.CurrentStep)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrUnknownStep, err.Error())
	}
	if claims.Role != step.OwningRole && claims.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden,
			fmt.Sprintf("step %d is advanced by %s", step.Ordinal, step.OwningRole))
	}
	if record.CurrentStep >= workflow.TotalSteps {
		return nil, appErrors.Clone(appErrors.ErrValidation, "ticket is already at the final step")
	}

	missing, err := workflow.MissingFields(record, record.CurrentStep)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to evaluate ticket")
	}
	if len(missing) > 0 {
		labels := make([]string, len(missing))
		for i, name := range missing {
			labels[i] = workflow.FieldLabel(name)
		}
		return nil, appErrors.Clone(appErrors.ErrStepIncomplete,
			fmt.Sprintf("step %d is incomplete: %s", record.CurrentStep, strings.Join(labels, ", ")))
	}

	if err := s.store.Advance(ctx, id, record.CurrentStep); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "ticket moved to another step, reload and retry")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to advance maintenance request")
	}

	updated, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	s.invalidateListCache(ctx)
	s.recordAudit(ctx, claims, models.AuditActionRequestAdvance, id, map[string]interface{}{"from": record.CurrentStep, "to": updated.CurrentStep})
	if s.metrics != nil {
		s.metrics.StepAdvanced(updated.CurrentStep)
	}
	return updated, nil
}

// Decide records the admin's terminal approval outcome. Approval and
// rejection both move the ticket to the closure stage; rejection is a
// recorded outcome, not a dead end. A second decision is refused.
func (s *RequestService) Decide(ctx context.Context, claims *models.JWTClaims, id string, req dto.DecisionRequest) (*models.MaintenanceRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid decision payload")
	}
	if claims.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins may record the approval decision")
	}

	record, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if record.AdminApprovalStatus.Decided() {
		return nil, appErrors.Clone(appErrors.ErrDecisionRecorded, "")
	}
	if record.CurrentStep != workflow.ApprovalStep {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("ticket is at step %d, decisions happen at step %d", record.CurrentStep, workflow.ApprovalStep))
	}

	if err := s.store.Decide(ctx, repository.DecideParams{
		ID:        id,
		Status:    models.ApprovalStatus(req.Status),
		DecidedAt: time.Now().UTC(),
		Note:      req.Note,
		NextStep:  workflow.ClosureStep,
	}); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrDecisionRecorded, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record decision")
	}

	updated, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	s.invalidateListCache(ctx)
	s.recordAudit(ctx, claims, models.AuditActionRequestDecide, id, map[string]interface{}{"status": req.Status})
	if s.metrics != nil {
		s.metrics.DecisionRecorded(req.Status)
	}
	return updated, nil
}

func (s *RequestService) load(ctx context.Context, id string) (*models.MaintenanceRequest, error) {
	record, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "maintenance request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load maintenance request")
	}
	return record, nil
}

func (s *RequestService) authorizeRead(ctx context.Context, claims *models.JWTClaims, record *models.MaintenanceRequest) error {
	switch claims.Role {
	case models.RoleAdmin, models.RoleMaintenance:
		return nil
	case models.RoleLabAssistant:
		if record.RequestedBy == claims.UserID {
			return nil
		}
	case models.RoleLabIncharge:
		labIDs, err := s.labs.InchargeLabIDs(ctx, claims.UserID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve labs")
		}
		if contains(labIDs, record.LabID) {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrForbidden, "ticket is outside this user's scope")
}

func (s *RequestService) listCacheKey(claims *models.JWTClaims, filter models.RequestFilter) string {
	return fmt.Sprintf("%s%s:%s:%s:%s:%v:%d:%d:%d",
		requestListCachePrefix, claims.Role, claims.UserID,
		filter.LabID, filter.Type, filter.Approval, filter.Step, filter.Limit, filter.Offset)
}

func (s *RequestService) invalidateListCache(ctx context.Context) {
	if err := s.cache.DeleteByPattern(ctx, requestListCachePrefix+"*"); err != nil {
		s.logger.Warn("failed to invalidate request list cache", zap.Error(err))
	}
}

func (s *RequestService) recordAudit(ctx context.Context, claims *models.JWTClaims, action, resourceID string, payload interface{}) {
	values, err := json.Marshal(payload)
	if err != nil {
		values = nil
	}
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &claims.UserID,
		Action:     action,
		Resource:   "maintenance_request",
		ResourceID: &resourceID,
		NewValues:  values,
	}); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}

// buildFieldChanges converts the present payload fields into typed
// column writes.
func buildFieldChanges(req dto.UpdateStepRequest) ([]repository.FieldChange, error) {
	changes := make([]repository.FieldChange, 0, 8)
	addString := func(name string, value *string) {
		if value != nil {
			changes = append(changes, repository.FieldChange{Field: name, Value: *value})
		}
	}
	addBool := func(name string, value *bool) {
		if value != nil {
			changes = append(changes, repository.FieldChange{Field: name, Value: *value})
		}
	}

	if req.TypeOfProblem != nil {
		problemType, err := models.ParseProblemType(*req.TypeOfProblem)
		if err != nil {
			return nil, err
		}
		changes = append(changes, repository.FieldChange{Field: "typeOfProblem", Value: problemType})
	}
	addString("date", req.Date)
	addString("department", req.Department)
	addString("location", req.Location)
	addString("complaintDetails", req.ComplaintDetails)
	addBool("recurringComplaint", req.RecurringComplaint)
	if req.RecurringTimes != nil {
		changes = append(changes, repository.FieldChange{Field: "recurringTimes", Value: *req.RecurringTimes})
	}

	addString("labAssistant", req.LabAssistant)
	addString("labAssistantDate", req.LabAssistantDate)
	addString("hod", req.HOD)
	addString("hodDate", req.HODDate)

	addString("assignedPerson", req.AssignedPerson)
	addString("inChargeDate", req.InChargeDate)
	addString("verificationRemarks", req.VerificationRemarks)

	addString("materialsUsed", req.MaterialsUsed)
	addBool("resolvedInhouse", req.ResolvedInhouse)
	addString("resolvedRemark", req.ResolvedRemark)
	addBool("consumablesNeeded", req.ConsumablesNeeded)
	addString("consumableDetails", req.ConsumableDetails)
	addBool("externalAgencyNeeded", req.ExternalAgencyNeeded)
	addString("agencyName", req.AgencyName)
	addString("approxExpenditure", req.ApproxExpenditure)

	addString("completionRemarkLab", req.CompletionRemarkLab)
	addString("labCompletionName", req.LabCompletionName)
	addString("labCompletionDate", req.LabCompletionDate)
	addString("completionRemarkMaintenance", req.CompletionRemarkMaintenance)
	addString("maintenanceClosedDate", req.MaintenanceClosedDate)
	addString("maintenanceClosedSignature", req.MaintenanceClosedSignature)
	return changes, nil
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
