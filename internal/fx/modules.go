package fx

import (
	"granpix/internal/api"
	"granpix/internal/config"
	"granpix/internal/database"
	"granpix/internal/logger"
	"granpix/internal/middleware"
	"granpix/internal/repository"
	"granpix/internal/server"
	"granpix/internal/service"

	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(logger.New),
	fx.Provide(config.Load),
	fx.Provide(database.New),
	// store
	fx.Provide(repository.NewStore),
	// api client
	fx.Provide(api.NewChallongeClient),
	// svc
	fx.Provide(service.NewStageLocks),
	fx.Provide(service.NewLogPublisher),
	fx.Provide(func(p *service.LogPublisher) service.Publisher { return p }),
	fx.Provide(service.NewStageService),
	fx.Provide(service.NewEnrollmentService),
	fx.Provide(service.NewQualifyingService),
	fx.Provide(service.NewClassificationService),
	fx.Provide(service.NewBracketService),
	fx.Provide(service.NewBattleService),
	fx.Provide(service.NewGarageService),
	// server
	fx.Provide(middleware.NewAuthenticator),
	fx.Provide(server.NewServer),
)
