package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/campuslabs/labops-api/internal/models"
)

func rbacTestContext(t *testing.T, claims *models.JWTClaims, paramID string) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/users/"+paramID, nil)
	if paramID != "" {
		c.Params = gin.Params{{Key: "id", Value: paramID}}
	}
	if claims != nil {
		c.Set(ContextUserKey, claims)
	}
	return c, w
}

func TestRBACAllowsMatchingRole(t *testing.T) {
	c, w := rbacTestContext(t, &models.JWTClaims{UserID: "u1", Role: models.RoleAdmin}, "u2")

	called := false
	RBAC(string(models.RoleAdmin))(c)
	if !c.IsAborted() {
		called = true
	}
	require.True(t, called)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestRBACRejectsOtherRole(t *testing.T) {
	c, w := rbacTestContext(t, &models.JWTClaims{UserID: "u1", Role: models.RoleLabAssistant}, "u2")

	RBAC(string(models.RoleAdmin))(c)
	require.True(t, c.IsAborted())
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestRBACSelfMatchesOwnID(t *testing.T) {
	c, w := rbacTestContext(t, &models.JWTClaims{UserID: "u1", Role: models.RoleLabAssistant}, "u1")

	RBAC(string(models.RoleAdmin), "SELF")(c)
	require.False(t, c.IsAborted())
	require.Equal(t, http.StatusOK, w.Code)
}

func TestRBACSelfRejectsForeignID(t *testing.T) {
	c, w := rbacTestContext(t, &models.JWTClaims{UserID: "u1", Role: models.RoleLabAssistant}, "u2")

	RBAC(string(models.RoleAdmin), "SELF")(c)
	require.True(t, c.IsAborted())
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestRBACMissingClaims(t *testing.T) {
	c, w := rbacTestContext(t, nil, "u1")

	RBAC(string(models.RoleAdmin))(c)
	require.True(t, c.IsAborted())
	require.Equal(t, http.StatusUnauthorized, w.Code)
}
