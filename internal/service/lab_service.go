package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campuslabs/labops-api/internal/dto"
	"github.com/campuslabs/labops-api/internal/models"
	appErrors "github.com/campuslabs/labops-api/pkg/errors"
)

type labStore interface {
	Create(ctx context.Context, lab *models.Lab) error
	GetByID(ctx context.Context, id string) (*models.Lab, error)
	List(ctx context.Context, filter models.LabFilter) ([]models.Lab, int, error)
	Update(ctx context.Context, lab *models.Lab) error
	Delete(ctx context.Context, id string) error
	UpsertEquipmentCount(ctx context.Context, count *models.EquipmentCount) error
	ListEquipmentCounts(ctx context.Context, labID string) ([]models.EquipmentCount, error)
	InchargeLabIDs(ctx context.Context, userID string) ([]string, error)
}

// LabService manages laboratory master data and equipment tallies.
type LabService struct {
	store     labStore
	audit     auditStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewLabService constructs a LabService.
func NewLabService(store labStore, audit auditStore, validate *validator.Validate, logger *zap.Logger) *LabService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &LabService{store: store, audit: audit, validator: validate, logger: logger}
}

// Create registers a new lab. Admin only.
func (s *LabService) Create(ctx context.Context, claims *models.JWTClaims, req dto.CreateLabRequest) (*models.Lab, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lab payload")
	}
	if claims.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins may manage labs")
	}

	lab := &models.Lab{
		Name:       req.Name,
		Department: req.Department,
		Location:   req.Location,
		InchargeID: req.InchargeID,
	}
	if err := s.store.Create(ctx, lab); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create lab")
	}

	s.recordLabAudit(ctx, claims, lab.ID, lab)
	return lab, nil
}

// Get fetches one lab.
func (s *LabService) Get(ctx context.Context, id string) (*models.Lab, error) {
	lab, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lab not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lab")
	}
	return lab, nil
}

// List returns labs matching the filter with the overall total.
func (s *LabService) List(ctx context.Context, filter models.LabFilter) ([]models.Lab, int, error) {
	labs, total, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list labs")
	}
	return labs, total, nil
}

// Update applies partial changes to a lab. Admin only.
func (s *LabService) Update(ctx context.Context, claims *models.JWTClaims, id string, req dto.UpdateLabRequest) (*models.Lab, error) {
	if claims.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins may manage labs")
	}

	lab, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		lab.Name = *req.Name
	}
	if req.Department != nil {
		lab.Department = *req.Department
	}
	if req.Location != nil {
		lab.Location = *req.Location
	}
	if req.InchargeID != nil {
		lab.InchargeID = req.InchargeID
	}

	if err := s.store.Update(ctx, lab); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lab not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update lab")
	}

	s.recordLabAudit(ctx, claims, lab.ID, req)
	return lab, nil
}

// Delete removes a lab. Admin only.
func (s *LabService) Delete(ctx context.Context, claims *models.JWTClaims, id string) error {
	if claims.Role != models.RoleAdmin {
		return appErrors.Clone(appErrors.ErrForbidden, "only admins may manage labs")
	}
	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "lab not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete lab")
	}

	s.recordLabAudit(ctx, claims, id, map[string]string{"deleted": id})
	return nil
}

// UpsertEquipmentCount sets a category tally. Admins may write any
// lab; in-charge users only their own.
func (s *LabService) UpsertEquipmentCount(ctx context.Context, claims *models.JWTClaims, labID string, req dto.UpsertEquipmentCountRequest) (*models.EquipmentCount, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid equipment count payload")
	}
	if err := s.authorizeLabWrite(ctx, claims, labID); err != nil {
		return nil, err
	}

	count := &models.EquipmentCount{
		LabID:     labID,
		Category:  req.Category,
		Working:   req.Working,
		Defective: req.Defective,
	}
	if err := s.store.UpsertEquipmentCount(ctx, count); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save equipment count")
	}

	s.recordLabAudit(ctx, claims, labID, count)
	return count, nil
}

// ListEquipmentCounts returns the tallies for one lab.
func (s *LabService) ListEquipmentCounts(ctx context.Context, labID string) ([]models.EquipmentCount, error) {
	counts, err := s.store.ListEquipmentCounts(ctx, labID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list equipment counts")
	}
	return counts, nil
}

func (s *LabService) authorizeLabWrite(ctx context.Context, claims *models.JWTClaims, labID string) error {
	if claims.Role == models.RoleAdmin {
		return nil
	}
	if claims.Role == models.RoleLabIncharge {
		labIDs, err := s.store.InchargeLabIDs(ctx, claims.UserID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve labs")
		}
		if contains(labIDs, labID) {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrForbidden, "lab is not assigned to this user")
}

func (s *LabService) recordLabAudit(ctx context.Context, claims *models.JWTClaims, labID string, payload interface{}) {
	values, err := json.Marshal(payload)
	if err != nil {
		values = nil
	}
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &claims.UserID,
		Action:     models.AuditActionLabChange,
		Resource:   "lab",
		ResourceID: &labID,
		NewValues:  values,
	}); err != nil {
		s.logger.Warn("failed to record lab audit log", zap.Error(err))
	}
}
