package service

import (
	"context"

	"granpix/internal/constants"
	"granpix/internal/domain"
	"granpix/internal/repository"

	"github.com/rs/zerolog"
)

// GarageService covers the between-stages workshop: installing and
// removing car parts and switching the team's active car. Both charge a
// service fee against the team's PIX balance.
type GarageService struct {
	store  *repository.Store
	logger zerolog.Logger
}

func NewGarageService(store *repository.Store, logger zerolog.Logger) *GarageService {
	return &GarageService{store: store, logger: logger}
}

// InstallPart fits an owned part onto one of the team's cars. Any part
// of the same kind already installed is removed first; the install fee
// is debited in the same transaction.
func (s *GarageService) InstallPart(ctx context.Context, teamID, carID, partID string) error {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	err := s.store.InTx(ctx, func(tx *repository.Store) error {
		car, err := tx.Teams.GetCar(ctx, carID)
		if err != nil {
			return err
		}
		if car.TeamID != teamID {
			return domain.ErrCarNotOwnedByTeam
		}
		part, err := tx.Parts.Get(ctx, partID)
		if err != nil {
			return err
		}
		if part.Broken() {
			return domain.E(domain.KindValidation, "part has no durability left")
		}

		fee, err := tx.Settings.PartInstallFee(ctx)
		if err != nil {
			return err
		}
		if err := tx.Teams.DebitPix(ctx, teamID, fee); err != nil {
			return err
		}

		if current, err := tx.Parts.InstalledByKind(ctx, carID, part.Kind); err == nil {
			if current.ID == partID {
				return nil
			}
			if err := tx.Parts.SetInstalled(ctx, current.ID, "", false); err != nil {
				return err
			}
		}
		return tx.Parts.SetInstalled(ctx, partID, carID, true)
	})
	if err != nil {
		return err
	}

	s.logger.Info().
		Str("team_id", teamID).
		Str("car_id", carID).
		Str("part_id", partID).
		Msg("part installed")
	return nil
}

// RemovePart takes a part off the car and back into the team's stock.
func (s *GarageService) RemovePart(ctx context.Context, teamID, partID string) error {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	err := s.store.InTx(ctx, func(tx *repository.Store) error {
		part, err := tx.Parts.Get(ctx, partID)
		if err != nil {
			return err
		}
		if !part.Installed || part.CarID == "" {
			return domain.ErrPartNotInstalled
		}
		car, err := tx.Teams.GetCar(ctx, part.CarID)
		if err != nil {
			return err
		}
		if car.TeamID != teamID {
			return domain.ErrCarNotOwnedByTeam
		}
		return tx.Parts.SetInstalled(ctx, partID, "", false)
	})
	if err != nil {
		return err
	}

	s.logger.Info().Str("team_id", teamID).Str("part_id", partID).Msg("part removed")
	return nil
}

// ActivateCar makes the given car the team's race car, charging the
// activation fee. Only one car per team is active at a time.
func (s *GarageService) ActivateCar(ctx context.Context, teamID, carID string) error {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	err := s.store.InTx(ctx, func(tx *repository.Store) error {
		car, err := tx.Teams.GetCar(ctx, carID)
		if err != nil {
			return err
		}
		if car.TeamID != teamID {
			return domain.ErrCarNotOwnedByTeam
		}
		if car.Active {
			return nil
		}

		fee, err := tx.Settings.CarActivationFee(ctx)
		if err != nil {
			return err
		}
		if err := tx.Teams.DebitPix(ctx, teamID, fee); err != nil {
			return err
		}
		if err := tx.Teams.SetCarActive(ctx, teamID, carID); err != nil {
			return err
		}
		return tx.Teams.SetActiveCar(ctx, teamID, carID)
	})
	if err != nil {
		return err
	}

	s.logger.Info().Str("team_id", teamID).Str("car_id", carID).Msg("car activated")
	return nil
}
