package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"granpix/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRouter(auth *Authenticator) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	group := engine.Group("/", auth.RequireAuth())
	group.GET("/any", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"subject": Subject(c), "role": Role(c)})
	})
	group.GET("/admin-only", auth.RequireRole(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	group.GET("/team-only", auth.RequireRole(RoleTeam), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return engine
}

func request(t *testing.T, engine *gin.Engine, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestRequireAuth(t *testing.T) {
	auth := NewAuthenticator(&config.Config{JWTSecret: "test-secret"})
	engine := testRouter(auth)

	w := request(t, engine, "/any", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = request(t, engine, "/any", "not-a-token")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, err := auth.GenerateToken("team-1", RoleTeam, time.Minute)
	require.NoError(t, err)
	w = request(t, engine, "/any", token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "team-1")
}

func TestRequireAuthRejectsExpiredToken(t *testing.T) {
	auth := NewAuthenticator(&config.Config{JWTSecret: "test-secret"})
	engine := testRouter(auth)

	token, err := auth.GenerateToken("team-1", RoleTeam, -time.Minute)
	require.NoError(t, err)
	w := request(t, engine, "/any", token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireAuthRejectsForeignSecret(t *testing.T) {
	auth := NewAuthenticator(&config.Config{JWTSecret: "test-secret"})
	other := NewAuthenticator(&config.Config{JWTSecret: "other-secret"})
	engine := testRouter(auth)

	token, err := other.GenerateToken("team-1", RoleTeam, time.Minute)
	require.NoError(t, err)
	w := request(t, engine, "/any", token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireRole(t *testing.T) {
	auth := NewAuthenticator(&config.Config{JWTSecret: "test-secret"})
	engine := testRouter(auth)

	teamToken, err := auth.GenerateToken("team-1", RoleTeam, time.Minute)
	require.NoError(t, err)
	adminToken, err := auth.GenerateToken("root", RoleAdmin, time.Minute)
	require.NoError(t, err)
	driverToken, err := auth.GenerateToken("driver-1", RoleDriver, time.Minute)
	require.NoError(t, err)

	assert.Equal(t, http.StatusForbidden, request(t, engine, "/admin-only", teamToken).Code)
	assert.Equal(t, http.StatusOK, request(t, engine, "/admin-only", adminToken).Code)

	assert.Equal(t, http.StatusOK, request(t, engine, "/team-only", teamToken).Code)
	// Admin passes every role gate.
	assert.Equal(t, http.StatusOK, request(t, engine, "/team-only", adminToken).Code)
	assert.Equal(t, http.StatusForbidden, request(t, engine, "/team-only", driverToken).Code)
}
