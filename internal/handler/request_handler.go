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

type requestService interface {
	Create(ctx context.Context, claims *models.JWTClaims, req dto.CreateRequestRequest) (*models.MaintenanceRequest, error)
	Get(ctx context.Context, claims *models.JWTClaims, id string) (*models.MaintenanceRequest, error)
	View(ctx context.Context, claims *models.JWTClaims, id string) (*dto.RequestView, error)
	List(ctx context.Context, claims *models.JWTClaims, filter models.RequestFilter) ([]models.MaintenanceRequest, error)
	UpdateStep(ctx context.Context, claims *models.JWTClaims, id string, ordinal int, req dto.UpdateStepRequest) (*models.MaintenanceRequest, error)
	Advance(ctx context.Context, claims *models.JWTClaims, id string) (*models.MaintenanceRequest, error)
	Decide(ctx context.Context, claims *models.JWTClaims, id string, req dto.DecisionRequest) (*models.MaintenanceRequest, error)
}

// RequestHandler exposes the maintenance ticket lifecycle over REST.
type RequestHandler struct {
	service requestService
}

// NewRequestHandler constructs the handler.
func NewRequestHandler(service requestService) *RequestHandler {
	return &RequestHandler{service: service}
}

// Create godoc
// @Summary Open a maintenance request
// @Tags Requests
// @Accept json
// @Produce json
// @Param payload body dto.CreateRequestRequest true "Problem report"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /requests [post]
func (h *RequestHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreateRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request payload"))
		return
	}
	record, err := h.service.Create(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, record, nil)
}

// List godoc
// @Summary List maintenance requests visible to the caller
// @Tags Requests
// @Produce json
// @Param labId query string false "Lab ID"
// @Param type query string false "Problem type"
// @Param approval query string false "Comma separated approval statuses"
// @Param step query int false "Current step"
// @Success 200 {object} response.Envelope
// @Router /requests [get]
func (h *RequestHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	filter := models.RequestFilter{
		LabID: strings.TrimSpace(c.Query("labId")),
	}
	if rawType := c.Query("type"); rawType != "" {
		filter.Type = models.ProblemType(strings.ToUpper(strings.TrimSpace(rawType)))
	}
	if rawApproval := c.Query("approval"); rawApproval != "" {
		for _, part := range strings.Split(rawApproval, ",") {
			part = strings.ToUpper(strings.TrimSpace(part))
			if part == "" {
				continue
			}
			filter.Approval = append(filter.Approval, models.ApprovalStatus(part))
		}
	}
	if rawStep := c.Query("step"); rawStep != "" {
		step, err := strconv.Atoi(rawStep)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "step must be a number"))
			return
		}
		filter.Step = step
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

	requests, err := h.service.List(c.Request.Context(), claims, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, nil)
}

// Get godoc
// @Summary Get one maintenance request
// @Tags Requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /requests/{id} [get]
func (h *RequestHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	record, err := h.service.Get(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// View godoc
// @Summary Role-aware rendering of one request
// @Description Sections in step order with per-field editability for the caller
// @Tags Requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /requests/{id}/view [get]
func (h *RequestHandler) View(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	view, err := h.service.View(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// UpdateStep godoc
// @Summary Write fields of one workflow step
// @Tags Requests
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param ordinal path int true "Step ordinal"
// @Param payload body dto.UpdateStepRequest true "Partial step fields"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /requests/{id}/steps/{ordinal} [put]
func (h *RequestHandler) UpdateStep(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	ordinal, err := strconv.Atoi(c.Param("ordinal"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrUnknownStep, "step ordinal must be a number"))
		return
	}
	var req dto.UpdateStepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid step payload"))
		return
	}
	record, err := h.service.UpdateStep(c.Request.Context(), claims, c.Param("id"), ordinal, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Advance godoc
// @Summary Advance the request to the next step
// @Tags Requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /requests/{id}/advance [post]
func (h *RequestHandler) Advance(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	record, err := h.service.Advance(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Decide godoc
// @Summary Record the admin approval decision
// @Description Approval and rejection both close out the review; the decision is final
// @Tags Requests
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body dto.DecisionRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /requests/{id}/decision [post]
func (h *RequestHandler) Decide(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid decision payload"))
		return
	}
	record, err := h.service.Decide(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}
