package server

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"granpix/internal/config"
	"granpix/internal/database"
	"granpix/internal/middleware"
	"granpix/internal/repository"
	"granpix/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestServer wires only the services the routes under test reach.
func newTestServer(t *testing.T) (*Server, *middleware.Authenticator) {
	t.Helper()

	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "granpix_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.RunMigrations(db, zerolog.Nop()))

	store := repository.NewStore(db, zerolog.Nop())
	locks := service.NewStageLocks()
	log := zerolog.Nop()
	auth := middleware.NewAuthenticator(&config.Config{JWTSecret: "test-secret"})

	srv := NewServer(
		service.NewStageService(store, locks, log),
		service.NewEnrollmentService(store, locks, log),
		nil, nil, nil, nil, nil,
		auth,
		log,
	)
	return srv, auth
}

func postJSON(t *testing.T, engine http.Handler, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestAllocateRouteIsAdminOnly(t *testing.T) {
	srv, auth := newTestServer(t)
	engine := srv.Router()

	teamToken, err := auth.GenerateToken("team-1", middleware.RoleTeam, time.Minute)
	require.NoError(t, err)
	driverToken, err := auth.GenerateToken("driver-1", middleware.RoleDriver, time.Minute)
	require.NoError(t, err)
	adminToken, err := auth.GenerateToken("root", middleware.RoleAdmin, time.Minute)
	require.NoError(t, err)

	body := `{"team_id":"team-1"}`
	assert.Equal(t, http.StatusForbidden,
		postJSON(t, engine, "/api/v1/stages/missing/allocate", teamToken, body).Code)
	assert.Equal(t, http.StatusForbidden,
		postJSON(t, engine, "/api/v1/stages/missing/allocate", driverToken, body).Code)

	// Admin clears the gate and reaches the service, which reports the
	// unknown stage.
	assert.Equal(t, http.StatusNotFound,
		postJSON(t, engine, "/api/v1/stages/missing/allocate", adminToken, body).Code)
}
