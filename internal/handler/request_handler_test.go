package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/campuslabs/labops-api/internal/dto"
	"github.com/campuslabs/labops-api/internal/middleware"
	"github.com/campuslabs/labops-api/internal/models"
	appErrors "github.com/campuslabs/labops-api/pkg/errors"
)

type requestServiceMock struct {
	record     *models.MaintenanceRequest
	view       *dto.RequestView
	list       []models.MaintenanceRequest
	lastFilter models.RequestFilter
	err        error
}

func (m *requestServiceMock) Create(ctx context.Context, claims *models.JWTClaims, req dto.CreateRequestRequest) (*models.MaintenanceRequest, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.record, nil
}

func (m *requestServiceMock) Get(ctx context.Context, claims *models.JWTClaims, id string) (*models.MaintenanceRequest, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.record, nil
}

func (m *requestServiceMock) View(ctx context.Context, claims *models.JWTClaims, id string) (*dto.RequestView, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.view, nil
}

func (m *requestServiceMock) List(ctx context.Context, claims *models.JWTClaims, filter models.RequestFilter) ([]models.MaintenanceRequest, error) {
	m.lastFilter = filter
	if m.err != nil {
		return nil, m.err
	}
	return m.list, nil
}

func (m *requestServiceMock) UpdateStep(ctx context.Context, claims *models.JWTClaims, id string, ordinal int, req dto.UpdateStepRequest) (*models.MaintenanceRequest, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.record, nil
}

func (m *requestServiceMock) Advance(ctx context.Context, claims *models.JWTClaims, id string) (*models.MaintenanceRequest, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.record, nil
}

func (m *requestServiceMock) Decide(ctx context.Context, claims *models.JWTClaims, id string, req dto.DecisionRequest) (*models.MaintenanceRequest, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.record, nil
}

func newRequestTestContext(t *testing.T, method, target string, payload interface{}, role models.UserRole) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, target, body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", Role: role})
	return c, w
}

func TestRequestHandlerCreateSuccess(t *testing.T) {
	handler := NewRequestHandler(&requestServiceMock{
		record: &models.MaintenanceRequest{ID: "req-1", CurrentStep: 1},
	})
	c, w := newRequestTestContext(t, http.MethodPost, "/requests", dto.CreateRequestRequest{
		LabID:            "lab-1",
		TypeOfProblem:    "SYSTEM",
		Date:             "2025-02-10",
		Department:       "Computer Science",
		Location:         "Block A",
		ComplaintDetails: "Monitor flickers",
	}, models.RoleLabAssistant)

	handler.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
}

func TestRequestHandlerCreateInvalidBody(t *testing.T) {
	handler := NewRequestHandler(&requestServiceMock{})
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/requests", bytes.NewReader([]byte(`not json`)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", Role: models.RoleLabAssistant})

	handler.Create(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRequestHandlerMissingClaims(t *testing.T) {
	handler := NewRequestHandler(&requestServiceMock{})
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/requests", nil)

	handler.List(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequestHandlerListParsesFilter(t *testing.T) {
	mock := &requestServiceMock{list: []models.MaintenanceRequest{}}
	handler := NewRequestHandler(mock)
	c, w := newRequestTestContext(t, http.MethodGet,
		"/requests?labId=lab-1&type=system&approval=approved,rejected&step=4",
		nil, models.RoleAdmin)

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "lab-1", mock.lastFilter.LabID)
	require.Equal(t, models.ProblemTypeSystem, mock.lastFilter.Type)
	require.Equal(t, []models.ApprovalStatus{models.ApprovalApproved, models.ApprovalRejected}, mock.lastFilter.Approval)
	require.Equal(t, 4, mock.lastFilter.Step)
}

func TestRequestHandlerListRejectsBadStep(t *testing.T) {
	handler := NewRequestHandler(&requestServiceMock{})
	c, w := newRequestTestContext(t, http.MethodGet, "/requests?step=four", nil, models.RoleAdmin)

	handler.List(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRequestHandlerUpdateStepBadOrdinal(t *testing.T) {
	handler := NewRequestHandler(&requestServiceMock{})
	c, w := newRequestTestContext(t, http.MethodPut, "/requests/req-1/steps/three",
		dto.UpdateStepRequest{}, models.RoleMaintenance)
	c.Params = gin.Params{{Key: "id", Value: "req-1"}, {Key: "ordinal", Value: "three"}}

	handler.UpdateStep(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRequestHandlerUpdateStepLockedMapsToForbidden(t *testing.T) {
	handler := NewRequestHandler(&requestServiceMock{err: appErrors.ErrStepLocked})
	remark := "checked on site"
	c, w := newRequestTestContext(t, http.MethodPut, "/requests/req-1/steps/3",
		dto.UpdateStepRequest{VerificationRemarks: &remark}, models.RoleLabAssistant)
	c.Params = gin.Params{{Key: "id", Value: "req-1"}, {Key: "ordinal", Value: "3"}}

	handler.UpdateStep(c)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequestHandlerDecideConflict(t *testing.T) {
	handler := NewRequestHandler(&requestServiceMock{err: appErrors.ErrDecisionRecorded})
	c, w := newRequestTestContext(t, http.MethodPost, "/requests/req-1/decision",
		dto.DecisionRequest{Status: "APPROVED"}, models.RoleAdmin)
	c.Params = gin.Params{{Key: "id", Value: "req-1"}}

	handler.Decide(c)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestRequestHandlerAdvanceIncomplete(t *testing.T) {
	handler := NewRequestHandler(&requestServiceMock{err: appErrors.ErrStepIncomplete})
	c, w := newRequestTestContext(t, http.MethodPost, "/requests/req-1/advance", nil, models.RoleMaintenance)
	c.Params = gin.Params{{Key: "id", Value: "req-1"}}

	handler.Advance(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRequestHandlerViewSuccess(t *testing.T) {
	handler := NewRequestHandler(&requestServiceMock{
		view: &dto.RequestView{ID: "req-1", CurrentStep: 3, CompletedThrough: 2},
	})
	c, w := newRequestTestContext(t, http.MethodGet, "/requests/req-1/view", nil, models.RoleLabIncharge)
	c.Params = gin.Params{{Key: "id", Value: "req-1"}}

	handler.View(c)
	require.Equal(t, http.StatusOK, w.Code)
}
