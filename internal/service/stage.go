package service

import (
	"context"
	"time"

	"granpix/internal/constants"
	"granpix/internal/domain"
	"granpix/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// StageService owns stage lifecycle transitions. Every other service
// validates the current state through it before mutating child records.
type StageService struct {
	store  *repository.Store
	locks  *StageLocks
	logger zerolog.Logger
}

func NewStageService(store *repository.Store, locks *StageLocks, logger zerolog.Logger) *StageService {
	return &StageService{store: store, locks: locks, logger: logger}
}

func (s *StageService) Get(ctx context.Context, stageID string) (*domain.Stage, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()
	return s.store.Stages.Get(ctx, stageID)
}

func (s *StageService) Create(ctx context.Context, championshipID string, number int, name, series string, scheduledAt time.Time) (*domain.Stage, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	if name == "" {
		return nil, domain.E(domain.KindValidation, "stage name must not be empty")
	}
	stage := &domain.Stage{
		ID:             uuid.NewString(),
		ChampionshipID: championshipID,
		Number:         number,
		Name:           name,
		Series:         series,
		ScheduledAt:    scheduledAt,
		State:          domain.StageScheduled,
	}
	if err := s.store.Stages.Create(ctx, stage); err != nil {
		s.logger.Error().Err(err).Str("stage_id", stage.ID).Msg("failed to create stage")
		return nil, err
	}
	s.logger.Info().Str("stage_id", stage.ID).Int("number", number).Str("series", series).Msg("stage created")
	return stage, nil
}

// StartQualifying moves agendada → em_andamento. A stage with no
// enrolled teams cannot start.
func (s *StageService) StartQualifying(ctx context.Context, stageID string) error {
	unlock := s.locks.Lock(stageID)
	defer unlock()

	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	return s.store.InTx(ctx, func(tx *repository.Store) error {
		stage, err := tx.Stages.Get(ctx, stageID)
		if err != nil {
			return err
		}
		if !stage.State.CanTransition(domain.StageQualifying) {
			return domain.ErrInvalidStateTransition
		}
		count, err := tx.Enrollment.CountParticipations(ctx, stageID)
		if err != nil {
			return err
		}
		if count == 0 {
			return domain.E(domain.KindValidation, "stage has no enrolled teams")
		}
		if err := tx.Stages.SetState(ctx, stageID, domain.StageQualifying); err != nil {
			return err
		}
		s.logger.Info().Str("stage_id", stageID).Int("teams", count).Msg("qualifying started")
		return nil
	})
}

// ForceCancel is the admin escape hatch: any state → finalizada.
func (s *StageService) ForceCancel(ctx context.Context, stageID string) error {
	unlock := s.locks.Lock(stageID)
	defer unlock()

	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	stage, err := s.store.Stages.Get(ctx, stageID)
	if err != nil {
		return err
	}
	if stage.State.Terminal() {
		return nil
	}
	if err := s.store.Stages.SetState(ctx, stageID, domain.StageFinished); err != nil {
		return err
	}
	s.logger.Warn().Str("stage_id", stageID).Str("from", string(stage.State)).Msg("stage force-cancelled")
	return nil
}

// guardMutable is the shared state check for child-record mutations:
// a finished stage admits no mutation at all.
func guardMutable(stage *domain.Stage) error {
	if stage.State.Terminal() {
		return domain.ErrInvalidStateTransition
	}
	return nil
}
