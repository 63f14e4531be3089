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

type deadstockService interface {
	Create(ctx context.Context, claims *models.JWTClaims, req dto.CreateDeadstockRequest) (*models.DeadstockEntry, error)
	List(ctx context.Context, claims *models.JWTClaims, filter models.DeadstockFilter) ([]models.DeadstockEntry, error)
}

// DeadstockHandler serves the equipment-disposal register.
type DeadstockHandler struct {
	service deadstockService
}

func NewDeadstockHandler(service deadstockService) *DeadstockHandler {
	return &DeadstockHandler{service: service}
}

// Create godoc
// @Summary File a deadstock entry
// @Tags Deadstock
// @Accept json
// @Produce json
// @Param payload body dto.CreateDeadstockRequest true "Entry"
// @Success 201 {object} response.Envelope
// @Router /deadstock [post]
func (h *DeadstockHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreateDeadstockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid deadstock payload"))
		return
	}
	entry, err := h.service.Create(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, entry, nil)
}

// List godoc
// @Summary List deadstock entries
// @Tags Deadstock
// @Produce json
// @Param labId query string false "Lab ID"
// @Param search query string false "Item search"
// @Param from query string false "Report date lower bound (YYYY-MM-DD)"
// @Param to query string false "Report date upper bound (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /deadstock [get]
func (h *DeadstockHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	filter := models.DeadstockFilter{
		LabID:    strings.TrimSpace(c.Query("labId")),
		Search:   strings.TrimSpace(c.Query("search")),
		FromDate: strings.TrimSpace(c.Query("from")),
		ToDate:   strings.TrimSpace(c.Query("to")),
	}
	if rawLimit := c.Query("limit"); rawLimit != "" {
		if limit, err := strconv.Atoi(rawLimit); err == nil {
			filter.Limit = limit
		}
	}
	if rawOffset := c.Query("offset"); rawOffset != "" {
		if offset, err := strconv.Atoi(rawOffset); err == nil {
			filter.Offset = offset
		}
	}
	entries, err := h.service.List(c.Request.Context(), claims, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}
