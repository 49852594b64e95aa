package v1

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"luma-ledger/ledger-backend/internal/audit"
	"luma-ledger/ledger-backend/internal/auth"
	"luma-ledger/ledger-backend/internal/documents"
	"luma-ledger/ledger-backend/internal/emissions/factors"
	"luma-ledger/ledger-backend/internal/metrics"
	"luma-ledger/ledger-backend/internal/reports"
)

var secret = []byte("router-secret")

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return SetupRouter(RouterDeps{
		Documents: documents.NewHandler(documents.NewService(documents.Dependencies{Logger: zap.NewNop()}), 1<<20),
		Reports:   reports.NewHandler(reports.NewService(reports.Dependencies{Logger: zap.NewNop()}), zap.NewNop()),
		Factors:   factors.NewHandler(factors.NewStore(nil)),
		Audit:     audit.NewHandler(audit.NewLog(nil, "", zap.NewNop())),
		Metrics:   metrics.NewRegistry(),
		JWTSecret: secret,
		Logger:    zap.NewNop(),
	})
}

func TestHealthAndMetricsArePublic(t *testing.T) {
	r := newRouter()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAPIRequiresToken(t *testing.T) {
	r := newRouter()

	for _, path := range []string{"/api/v1/me", "/api/v1/documents", "/api/v1/dashboard", "/api/v1/factors", "/api/v1/audit"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

func TestAuthenticatedRequest(t *testing.T) {
	r := newRouter()
	companyID := uuid.New()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{CompanyID: companyID.String()}).SignedString(secret)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), companyID.String())

	req = httptest.NewRequest(http.MethodGet, "/api/v1/factors", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/audit", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":0`)
}

func TestCORSPreflight(t *testing.T) {
	r := newRouter()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/api/v1/documents", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
