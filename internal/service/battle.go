package service

import (
	"context"
	"fmt"
	"time"

	"granpix/internal/api"
	"granpix/internal/constants"
	"granpix/internal/domain"
	"granpix/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// BattleService runs the pass phase of a battle: each pass rolls damage
// against one part of the opposing car. Pass records and part wear are
// local; who wins the battle is reported to the bracket separately.
type BattleService struct {
	store  *repository.Store
	locks  *StageLocks
	logger zerolog.Logger
}

func NewBattleService(store *repository.Store, locks *StageLocks, logger zerolog.Logger) *BattleService {
	return &BattleService{store: store, locks: locks, logger: logger}
}

// ExecutePass applies one damage roll from the attacking side against a
// part of the opposing team's car. Damage is roll times the part's
// break coefficient; durability floors at zero and a part at zero is
// failed. At most two passes per battle.
func (s *BattleService) ExecutePass(ctx context.Context, battleID string, attacker domain.BattleSide, kind domain.PartKind, roll int) (*domain.Pass, error) {
	if attacker != domain.SideTeam1 && attacker != domain.SideTeam2 {
		return nil, domain.E(domain.KindValidation, "unknown battle side")
	}
	if !kind.Valid() {
		return nil, domain.E(domain.KindValidation, "unknown part kind")
	}

	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	battle, err := s.store.Battles.Get(ctx, battleID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(battle.StageID)
	defer unlock()

	var pass *domain.Pass
	err = s.store.InTx(ctx, func(tx *repository.Store) error {
		battle, err := tx.Battles.Get(ctx, battleID)
		if err != nil {
			return err
		}
		stage, err := tx.Stages.Get(ctx, battle.StageID)
		if err != nil {
			return err
		}
		if stage.State != domain.StageBattles {
			return domain.ErrInvalidStateTransition
		}
		if battle.WinnerTeam != "" || battle.State == api.MatchComplete {
			return domain.ErrBattleClosed
		}
		if battle.PassesTaken >= domain.MaxPassesPerBattle {
			return domain.ErrPassLimitReached
		}

		sides, err := tx.Settings.DiceDamage(ctx)
		if err != nil {
			return err
		}
		if roll < 1 || roll > sides {
			return domain.E(domain.KindValidation, fmt.Sprintf("roll must be between 1 and %d", sides))
		}

		targetTeam := battle.Team2ID
		if attacker == domain.SideTeam2 {
			targetTeam = battle.Team1ID
		}
		if targetTeam == "" {
			return domain.E(domain.KindValidation, "match has no opposing team")
		}

		participation, err := tx.Enrollment.GetParticipation(ctx, battle.StageID, targetTeam)
		if err != nil {
			return err
		}
		part, err := tx.Parts.InstalledByKind(ctx, participation.CarID, kind)
		if err != nil {
			return err
		}

		damage := float64(roll) * part.BreakCoefficient
		updated, err := tx.Parts.ApplyDamage(ctx, part.ID, damage)
		if err != nil {
			return err
		}

		pass = &domain.Pass{
			ID:         uuid.NewString(),
			BattleID:   battle.ID,
			StageID:    battle.StageID,
			Number:     battle.PassesTaken + 1,
			TargetTeam: targetTeam,
			PartID:     part.ID,
			PartKind:   kind,
			Roll:       roll,
			Damage:     damage,
			PartFailed: updated.Broken(),
			CreatedAt:  time.Now(),
		}
		return tx.Battles.CreatePass(ctx, pass)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("battle_id", battleID).
		Str("target_team_id", pass.TargetTeam).
		Str("part_kind", string(kind)).
		Int("roll", roll).
		Float64("damage", pass.Damage).
		Bool("part_failed", pass.PartFailed).
		Msg("battle pass executed")
	return pass, nil
}

func (s *BattleService) Passes(ctx context.Context, battleID string) ([]domain.Pass, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()
	return s.store.Battles.ListPasses(ctx, battleID)
}

// PartSnapshot returns the car's durability board in canonical part
// order; kinds with nothing installed appear as empty slots.
func (s *BattleService) PartSnapshot(ctx context.Context, carID string) ([]domain.PartStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	if _, err := s.store.Teams.GetCar(ctx, carID); err != nil {
		return nil, err
	}
	installed, err := s.store.Parts.ListByCar(ctx, carID)
	if err != nil {
		return nil, err
	}

	byKind := make(map[domain.PartKind]domain.Part, len(installed))
	for _, p := range installed {
		byKind[p.Kind] = p
	}

	snapshot := make([]domain.PartStatus, 0, len(domain.PartKinds))
	for _, kind := range domain.PartKinds {
		status := domain.PartStatus{Kind: kind}
		if p, ok := byKind[kind]; ok {
			status.PartID = p.ID
			status.Name = p.Name
			status.Durability = p.Durability
			status.MaxDurability = p.MaxDurability
			status.Failed = p.Broken()
			status.Installed = true
		}
		snapshot = append(snapshot, status)
	}
	return snapshot, nil
}
