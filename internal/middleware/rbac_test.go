package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/identica-edu/portal-api/internal/models"
)

func performGated(min models.Role, claims interface{}) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		if claims != nil {
			c.Set(ContextUserKey, claims)
		}
		c.Next()
	})
	router.GET("/gated", MinRole(min), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/gated", nil))
	return recorder
}

func TestMinRoleAdmitsEqualAndHigherRanks(t *testing.T) {
	for _, role := range []models.Role{models.RoleTeacher, models.RoleAdmin} {
		rec := performGated(models.RoleTeacher, &models.JWTClaims{UserID: "u-1", Username: "teacher1", Role: role})
		if rec.Code != http.StatusNoContent {
			t.Fatalf("role %s: unexpected status %d", role, rec.Code)
		}
	}
}

func TestMinRoleRejectsLowerRank(t *testing.T) {
	rec := performGated(models.RoleTeacher, &models.JWTClaims{UserID: "u-1", Username: "monitor1", Role: models.RoleMonitor})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestMinRoleRejectsUnknownRole(t *testing.T) {
	rec := performGated(models.RoleStudent, &models.JWTClaims{UserID: "u-1", Username: "ghost", Role: models.Role("visitor")})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestMinRoleRequiresClaims(t *testing.T) {
	rec := performGated(models.RoleStudent, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestMinRoleRejectsMalformedClaims(t *testing.T) {
	rec := performGated(models.RoleStudent, "not-claims")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}
