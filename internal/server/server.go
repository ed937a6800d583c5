package server

import (
	"net/http"

	"granpix/internal/domain"
	"granpix/internal/middleware"
	"granpix/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Server exposes the stage engine over HTTP. Authentication is bearer
// tokens from the league identity service; authorization is role-based
// with per-subject pinning for team and driver tokens.
type Server struct {
	stages         *service.StageService
	enrollment     *service.EnrollmentService
	qualifying     *service.QualifyingService
	bracket        *service.BracketService
	battles        *service.BattleService
	garage         *service.GarageService
	classification *service.ClassificationService
	auth           *middleware.Authenticator
	logger         zerolog.Logger
}

func NewServer(
	stages *service.StageService,
	enrollment *service.EnrollmentService,
	qualifying *service.QualifyingService,
	bracket *service.BracketService,
	battles *service.BattleService,
	garage *service.GarageService,
	classification *service.ClassificationService,
	auth *middleware.Authenticator,
	logger zerolog.Logger,
) *Server {
	return &Server{
		stages:         stages,
		enrollment:     enrollment,
		qualifying:     qualifying,
		bracket:        bracket,
		battles:        battles,
		garage:         garage,
		classification: classification,
		auth:           auth,
		logger:         logger,
	}
}

func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestID(s.logger))

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := engine.Group("/api/v1", s.auth.RequireAuth())

	admin := s.auth.RequireRole()
	anyRole := s.auth.RequireRole(middleware.RoleTeam, middleware.RoleDriver)

	stages := v1.Group("/stages")
	{
		stages.POST("", admin, s.createStage)
		stages.GET("/:id", anyRole, s.getStage)
		stages.POST("/:id/start-qualifying", admin, s.startQualifying)
		stages.POST("/:id/cancel", admin, s.cancelStage)

		stages.POST("/:id/enroll", s.auth.RequireRole(middleware.RoleTeam), s.enroll)
		stages.GET("/:id/participations", anyRole, s.listParticipations)
		stages.POST("/:id/candidates", s.auth.RequireRole(middleware.RoleDriver), s.addCandidate)
		stages.GET("/:id/candidates", anyRole, s.listCandidacies)
		stages.POST("/:id/allocate", admin, s.allocateDriver)

		stages.PUT("/:id/scores", admin, s.upsertScore)
		stages.GET("/:id/ranking", anyRole, s.ranking)
		stages.POST("/:id/finalize-qualifying", admin, s.finalizeQualifying)

		stages.POST("/:id/bracket", admin, s.createBracket)
		stages.POST("/:id/bracket/sync", admin, s.syncBracket)
		stages.GET("/:id/battles", anyRole, s.listBattles)
		stages.POST("/:id/battles/:match_id/winner", admin, s.reportWinner)
		stages.POST("/:id/battles/:match_id/reopen", admin, s.reopenMatch)
		stages.POST("/:id/walkovers", admin, s.advanceWalkovers)
		stages.POST("/:id/finalize", admin, s.finalizeStage)
		stages.GET("/:id/classification", anyRole, s.listClassification)
	}

	participations := v1.Group("/participations", s.auth.RequireRole(middleware.RoleDriver))
	{
		participations.POST("/:id/confirm", s.confirmParticipation)
		participations.POST("/:id/decline", s.declineParticipation)
	}

	battles := v1.Group("/battles")
	{
		battles.POST("/:id/passes", admin, s.executePass)
		battles.GET("/:id/passes", anyRole, s.listPasses)
	}

	v1.GET("/cars/:id/parts", anyRole, s.partSnapshot)

	garage := v1.Group("/garage", s.auth.RequireRole(middleware.RoleTeam))
	{
		garage.POST("/install", s.installPart)
		garage.POST("/remove", s.removePart)
		garage.POST("/activate", s.activateCar)
	}

	return engine
}

// respondError translates the domain error taxonomy into HTTP statuses.
// Internal errors are logged and not leaked.
func (s *Server) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch domain.KindOf(err) {
	case domain.KindValidation:
		status = http.StatusBadRequest
	case domain.KindInvalidState, domain.KindConflict:
		status = http.StatusConflict
	case domain.KindNotFound:
		status = http.StatusNotFound
	case domain.KindUnavailable:
		status = http.StatusBadGateway
	}

	if status == http.StatusInternalServerError {
		s.logger.Error().Err(err).
			Str("request_id", middleware.GetRequestID(c)).
			Str("path", c.Request.URL.Path).
			Msg("internal error")
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func (s *Server) forbidden(c *gin.Context) {
	c.JSON(http.StatusForbidden, gin.H{"error": "not allowed to act for this subject"})
}
