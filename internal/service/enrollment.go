package service

import (
	"context"
	"errors"
	"time"

	"granpix/internal/constants"
	"granpix/internal/domain"
	"granpix/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// EnrollmentService tracks which teams race a stage and resolves the
// driver-candidate pool for teams that enroll without one.
type EnrollmentService struct {
	store  *repository.Store
	locks  *StageLocks
	logger zerolog.Logger
}

func NewEnrollmentService(store *repository.Store, locks *StageLocks, logger zerolog.Logger) *EnrollmentService {
	return &EnrollmentService{store: store, locks: locks, logger: logger}
}

// Enroll registers (team, car) for a stage and debits the participation
// fee from the team's PIX balance in the same transaction.
func (s *EnrollmentService) Enroll(ctx context.Context, stageID, teamID, carID string, kind domain.ParticipationKind) (*domain.Participation, error) {
	if kind != domain.HasDriver && kind != domain.NeedsDriver {
		return nil, domain.E(domain.KindValidation, "unknown participation kind")
	}

	unlock := s.locks.Lock(stageID)
	defer unlock()

	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	var participation *domain.Participation
	err := s.store.InTx(ctx, func(tx *repository.Store) error {
		stage, err := tx.Stages.Get(ctx, stageID)
		if err != nil {
			return err
		}
		if stage.State != domain.StageScheduled {
			return domain.ErrStageNotOpen
		}

		if _, err := tx.Teams.Get(ctx, teamID); err != nil {
			return err
		}
		if _, err := tx.Enrollment.GetParticipation(ctx, stageID, teamID); err == nil {
			return domain.ErrTeamAlreadyEnrolled
		} else if !errors.Is(err, domain.ErrParticipationNotFound) {
			return err
		}

		car, err := tx.Teams.GetCar(ctx, carID)
		if err != nil {
			return err
		}
		if car.TeamID != teamID {
			return domain.ErrCarNotOwnedByTeam
		}

		fee, err := tx.Settings.ParticipationFee(ctx)
		if err != nil {
			return err
		}
		if err := tx.Teams.DebitPix(ctx, teamID, fee); err != nil {
			return err
		}

		participation = &domain.Participation{
			ID:         uuid.NewString(),
			StageID:    stageID,
			TeamID:     teamID,
			CarID:      carID,
			Kind:       kind,
			EnrolledAt: time.Now(),
		}
		return tx.Enrollment.CreateParticipation(ctx, participation)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("stage_id", stageID).
		Str("team_id", teamID).
		Str("car_id", carID).
		Str("kind", string(kind)).
		Msg("team enrolled")
	return participation, nil
}

// AddCandidate registers a driver's interest in racing for a team. A
// driver may hold at most one live candidacy per stage; declined
// candidacies do not block a new one.
func (s *EnrollmentService) AddCandidate(ctx context.Context, stageID, teamID, driverID string) (*domain.Candidacy, error) {
	unlock := s.locks.Lock(stageID)
	defer unlock()

	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	var candidacy *domain.Candidacy
	err := s.store.InTx(ctx, func(tx *repository.Store) error {
		stage, err := tx.Stages.Get(ctx, stageID)
		if err != nil {
			return err
		}
		if err := guardMutable(stage); err != nil {
			return err
		}
		if _, err := tx.Teams.GetDriver(ctx, driverID); err != nil {
			return err
		}
		if _, err := tx.Enrollment.GetParticipation(ctx, stageID, teamID); err != nil {
			return err
		}

		committed, err := tx.Enrollment.HasActiveCandidacy(ctx, stageID, driverID)
		if err != nil {
			return err
		}
		if committed {
			return domain.ErrDriverAlreadyCommitted
		}

		candidacy = &domain.Candidacy{
			ID:           uuid.NewString(),
			StageID:      stageID,
			TeamID:       teamID,
			DriverID:     driverID,
			Status:       domain.CandidacyPending,
			RegisteredAt: time.Now(),
		}
		return tx.Enrollment.CreateCandidacy(ctx, candidacy)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("stage_id", stageID).
		Str("team_id", teamID).
		Str("driver_id", driverID).
		Msg("driver candidacy registered")
	return candidacy, nil
}

// AllocateNext promotes the oldest pending candidacy for (stage, team)
// and writes the driver into the participation. FIFO over candidacy
// timestamp is the only rule.
func (s *EnrollmentService) AllocateNext(ctx context.Context, stageID, teamID string) (*domain.Candidacy, error) {
	unlock := s.locks.Lock(stageID)
	defer unlock()

	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	var allocated *domain.Candidacy
	err := s.store.InTx(ctx, func(tx *repository.Store) error {
		stage, err := tx.Stages.Get(ctx, stageID)
		if err != nil {
			return err
		}
		if err := guardMutable(stage); err != nil {
			return err
		}
		allocated, err = s.allocateNextTx(ctx, tx, stageID, teamID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("stage_id", stageID).
		Str("team_id", teamID).
		Str("driver_id", allocated.DriverID).
		Msg("driver allocated to participation")
	return allocated, nil
}

func (s *EnrollmentService) allocateNextTx(ctx context.Context, tx *repository.Store, stageID, teamID string) (*domain.Candidacy, error) {
	participation, err := tx.Enrollment.GetParticipation(ctx, stageID, teamID)
	if err != nil {
		return nil, err
	}
	if participation.DriverID != "" {
		return nil, domain.ErrAlreadyAssigned
	}

	candidacy, err := tx.Enrollment.OldestPending(ctx, stageID, teamID)
	if err != nil {
		return nil, err
	}

	if err := tx.Enrollment.SetParticipationDriver(ctx, participation.ID, candidacy.DriverID); err != nil {
		return nil, err
	}
	if err := tx.Enrollment.SetCandidacyStatus(ctx, candidacy.ID, domain.CandidacyAssigned); err != nil {
		return nil, err
	}
	candidacy.Status = domain.CandidacyAssigned
	return candidacy, nil
}

// Confirm is driver self-service acceptance of an assignment.
func (s *EnrollmentService) Confirm(ctx context.Context, participationID, driverID string) error {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	participation, err := s.store.Enrollment.GetParticipationByID(ctx, participationID)
	if err != nil {
		return err
	}

	unlock := s.locks.Lock(participation.StageID)
	defer unlock()

	return s.store.InTx(ctx, func(tx *repository.Store) error {
		participation, err := tx.Enrollment.GetParticipationByID(ctx, participationID)
		if err != nil {
			return err
		}
		if participation.DriverID != driverID {
			return domain.ErrNotCandidacyOwner
		}
		stage, err := tx.Stages.Get(ctx, participation.StageID)
		if err != nil {
			return err
		}
		if err := guardMutable(stage); err != nil {
			return err
		}
		return tx.Enrollment.SetParticipationConfirmed(ctx, participation.ID)
	})
}

// Decline releases the driver from the participation, marks the
// candidacy declined and automatically allocates the next pending
// candidate. With no candidate left the participation returns to
// driverless.
func (s *EnrollmentService) Decline(ctx context.Context, participationID, driverID string) (*domain.Candidacy, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	participation, err := s.store.Enrollment.GetParticipationByID(ctx, participationID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(participation.StageID)
	defer unlock()

	var next *domain.Candidacy
	err = s.store.InTx(ctx, func(tx *repository.Store) error {
		participation, err := tx.Enrollment.GetParticipationByID(ctx, participationID)
		if err != nil {
			return err
		}
		if participation.DriverID != driverID {
			return domain.ErrNotCandidacyOwner
		}
		stage, err := tx.Stages.Get(ctx, participation.StageID)
		if err != nil {
			return err
		}
		if err := guardMutable(stage); err != nil {
			return err
		}

		candidacy, err := tx.Enrollment.AssignedCandidacy(ctx, participation.StageID, participation.TeamID, driverID)
		if err == nil {
			if err := tx.Enrollment.SetCandidacyStatus(ctx, candidacy.ID, domain.CandidacyDeclined); err != nil {
				return err
			}
		} else if !errors.Is(err, domain.ErrNoCandidates) {
			return err
		}
		if err := tx.Enrollment.SetParticipationDriver(ctx, participation.ID, ""); err != nil {
			return err
		}

		next, err = s.allocateNextTx(ctx, tx, participation.StageID, participation.TeamID)
		if errors.Is(err, domain.ErrNoCandidates) {
			next = nil
			return nil
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	event := s.logger.Info().
		Str("participation_id", participationID).
		Str("declined_by", driverID)
	if next != nil {
		event = event.Str("next_driver_id", next.DriverID)
	}
	event.Msg("driver declined participation")
	return next, nil
}

func (s *EnrollmentService) Participations(ctx context.Context, stageID string) ([]domain.Participation, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()
	return s.store.Enrollment.ListParticipations(ctx, stageID)
}

func (s *EnrollmentService) Candidacies(ctx context.Context, stageID, teamID string) ([]domain.Candidacy, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()
	return s.store.Enrollment.ListCandidacies(ctx, stageID, teamID)
}
