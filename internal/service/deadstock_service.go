package service

import (
	"context"
	"encoding/json"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campuslabs/labops-api/internal/dto"
	"github.com/campuslabs/labops-api/internal/models"
	appErrors "github.com/campuslabs/labops-api/pkg/errors"
)

type deadstockStore interface {
	Create(ctx context.Context, entry *models.DeadstockEntry) error
	List(ctx context.Context, filter models.DeadstockFilter) ([]models.DeadstockEntry, error)
}

// DeadstockService files and lists equipment-disposal reports. The
// whole surface can be switched off by deployment flag.
type DeadstockService struct {
	store     deadstockStore
	labs      requestLabStore
	audit     auditStore
	validator *validator.Validate
	logger    *zap.Logger
	enabled   bool
}

// NewDeadstockService constructs a DeadstockService.
func NewDeadstockService(store deadstockStore, labs requestLabStore, audit auditStore, validate *validator.Validate, logger *zap.Logger, enabled bool) *DeadstockService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &DeadstockService{store: store, labs: labs, audit: audit, validator: validate, logger: logger, enabled: enabled}
}

// Enabled reports whether the deadstock surface is switched on.
func (s *DeadstockService) Enabled() bool {
	return s.enabled
}

// Create files a disposal report. In-charge users write only for
// their own labs; admins for any.
func (s *DeadstockService) Create(ctx context.Context, claims *models.JWTClaims, req dto.CreateDeadstockRequest) (*models.DeadstockEntry, error) {
	if !s.enabled {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "deadstock tracking is disabled")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid deadstock payload")
	}

	switch claims.Role {
	case models.RoleAdmin:
	case models.RoleLabIncharge:
		labIDs, err := s.labs.InchargeLabIDs(ctx, claims.UserID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve labs")
		}
		if !contains(labIDs, req.LabID) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "lab is not assigned to this user")
		}
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins and lab in-charges may file deadstock reports")
	}

	entry := &models.DeadstockEntry{
		LabID:      req.LabID,
		ItemName:   req.ItemName,
		Quantity:   req.Quantity,
		Reason:     req.Reason,
		ReportDate: req.ReportDate,
		RecordedBy: claims.UserID,
	}
	if err := s.store.Create(ctx, entry); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to file deadstock entry")
	}

	values, _ := json.Marshal(entry)
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &claims.UserID,
		Action:     models.AuditActionDeadstockEntry,
		Resource:   "deadstock",
		ResourceID: &entry.ID,
		NewValues:  values,
	}); err != nil {
		s.logger.Warn("failed to record deadstock audit log", zap.Error(err))
	}
	return entry, nil
}

// List returns disposal reports. In-charge users see their labs only.
func (s *DeadstockService) List(ctx context.Context, claims *models.JWTClaims, filter models.DeadstockFilter) ([]models.DeadstockEntry, error) {
	if !s.enabled {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "deadstock tracking is disabled")
	}

	if claims.Role == models.RoleLabIncharge && filter.LabID != "" {
		labIDs, err := s.labs.InchargeLabIDs(ctx, claims.UserID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve labs")
		}
		if !contains(labIDs, filter.LabID) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "lab is not assigned to this user")
		}
	}

	entries, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list deadstock entries")
	}
	return entries, nil
}
