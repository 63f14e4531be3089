package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/campuslabs/labops-api/internal/dto"
	"github.com/campuslabs/labops-api/internal/models"
	appErrors "github.com/campuslabs/labops-api/pkg/errors"
	"github.com/campuslabs/labops-api/pkg/response"
)

type labService interface {
	Create(ctx context.Context, claims *models.JWTClaims, req dto.CreateLabRequest) (*models.Lab, error)
	Get(ctx context.Context, id string) (*models.Lab, error)
	List(ctx context.Context, filter models.LabFilter) ([]models.Lab, int, error)
	Update(ctx context.Context, claims *models.JWTClaims, id string, req dto.UpdateLabRequest) (*models.Lab, error)
	Delete(ctx context.Context, claims *models.JWTClaims, id string) error
	UpsertEquipmentCount(ctx context.Context, claims *models.JWTClaims, labID string, req dto.UpsertEquipmentCountRequest) (*models.EquipmentCount, error)
	ListEquipmentCounts(ctx context.Context, labID string) ([]models.EquipmentCount, error)
}

// LabHandler serves laboratory master data and equipment tallies.
type LabHandler struct {
	service labService
}

func NewLabHandler(service labService) *LabHandler {
	return &LabHandler{service: service}
}

// Create godoc
// @Summary Register a laboratory
// @Tags Labs
// @Accept json
// @Produce json
// @Param payload body dto.CreateLabRequest true "Lab"
// @Success 201 {object} response.Envelope
// @Router /labs [post]
func (h *LabHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreateLabRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid lab payload"))
		return
	}
	lab, err := h.service.Create(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, lab, nil)
}

// List godoc
// @Summary List laboratories
// @Tags Labs
// @Produce json
// @Param department query string false "Department filter"
// @Param search query string false "Name search"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /labs [get]
func (h *LabHandler) List(c *gin.Context) {
	filter := models.LabFilter{
		Department: strings.TrimSpace(c.Query("department")),
		Search:     strings.TrimSpace(c.Query("search")),
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "20")); err == nil {
		filter.PageSize = size
	}
	labs, total, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, labs, &models.Pagination{
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		TotalCount: total,
	})
}

// Get godoc
// @Summary Get one laboratory
// @Tags Labs
// @Produce json
// @Param id path string true "Lab ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /labs/{id} [get]
func (h *LabHandler) Get(c *gin.Context) {
	lab, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lab, nil)
}

// Update godoc
// @Summary Update laboratory master data
// @Tags Labs
// @Accept json
// @Produce json
// @Param id path string true "Lab ID"
// @Param payload body dto.UpdateLabRequest true "Changed fields"
// @Success 200 {object} response.Envelope
// @Router /labs/{id} [put]
func (h *LabHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.UpdateLabRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid lab payload"))
		return
	}
	lab, err := h.service.Update(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lab, nil)
}

// Delete godoc
// @Summary Delete a laboratory
// @Tags Labs
// @Produce json
// @Param id path string true "Lab ID"
// @Success 200 {object} response.Envelope
// @Router /labs/{id} [delete]
func (h *LabHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.Delete(c.Request.Context(), claims, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"deleted": true}, nil)
}

// UpsertEquipmentCount godoc
// @Summary Set the working/defective tally for an equipment category
// @Tags Labs
// @Accept json
// @Produce json
// @Param id path string true "Lab ID"
// @Param payload body dto.UpsertEquipmentCountRequest true "Tally"
// @Success 200 {object} response.Envelope
// @Router /labs/{id}/equipment [put]
func (h *LabHandler) UpsertEquipmentCount(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.UpsertEquipmentCountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid equipment payload"))
		return
	}
	count, err := h.service.UpsertEquipmentCount(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, count, nil)
}

// ListEquipmentCounts godoc
// @Summary List equipment tallies of a lab
// @Tags Labs
// @Produce json
// @Param id path string true "Lab ID"
// @Success 200 {object} response.Envelope
// @Router /labs/{id}/equipment [get]
func (h *LabHandler) ListEquipmentCounts(c *gin.Context) {
	counts, err := h.service.ListEquipmentCounts(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, counts, nil)
}
