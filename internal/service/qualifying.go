package service

import (
	"context"
	"sort"

	"granpix/internal/constants"
	"granpix/internal/domain"
	"granpix/internal/repository"

	"github.com/rs/zerolog"
)

// QualifyingService collects the three judged scores per team and
// produces the seeded ranking consumed by the bracket.
type QualifyingService struct {
	store  *repository.Store
	locks  *StageLocks
	logger zerolog.Logger
}

func NewQualifyingService(store *repository.Store, locks *StageLocks, logger zerolog.Logger) *QualifyingService {
	return &QualifyingService{store: store, locks: locks, logger: logger}
}

// RankedTeam is one row of the qualifying order. Teams without judge
// entries score zero and rank below any team with a score.
type RankedTeam struct {
	TeamID string
	Seed   int
	Line   int
	Angle  int
	Style  int
	Total  int
}

func (s *QualifyingService) UpsertScore(ctx context.Context, stageID, teamID string, line, angle, style int) error {
	if line < 0 || line > domain.MaxLineScore {
		return domain.E(domain.KindValidation, "line score out of bounds")
	}
	if angle < 0 || angle > domain.MaxAngleScore {
		return domain.E(domain.KindValidation, "angle score out of bounds")
	}
	if style < 0 || style > domain.MaxStyleScore {
		return domain.E(domain.KindValidation, "style score out of bounds")
	}

	unlock := s.locks.Lock(stageID)
	defer unlock()

	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	err := s.store.InTx(ctx, func(tx *repository.Store) error {
		stage, err := tx.Stages.Get(ctx, stageID)
		if err != nil {
			return err
		}
		if stage.State != domain.StageQualifying || stage.QualifyingFinalized {
			return domain.ErrStageNotInQualifying
		}
		if _, err := tx.Enrollment.GetParticipation(ctx, stageID, teamID); err != nil {
			return err
		}
		return tx.Scores.Upsert(ctx, stageID, teamID, line, angle, style)
	})
	if err != nil {
		return err
	}

	s.logger.Debug().
		Str("stage_id", stageID).
		Str("team_id", teamID).
		Int("line", line).
		Int("angle", angle).
		Int("style", style).
		Msg("qualifying score recorded")
	return nil
}

// Ranking orders teams by total descending, tie-broken by line, then
// angle, then enrollment time, then team id. The sort is deterministic
// for any input.
func (s *QualifyingService) Ranking(ctx context.Context, stageID string) ([]RankedTeam, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()
	return s.ranking(ctx, s.store, stageID)
}

func (s *QualifyingService) ranking(ctx context.Context, tx *repository.Store, stageID string) ([]RankedTeam, error) {
	participations, err := tx.Enrollment.ListParticipations(ctx, stageID)
	if err != nil {
		return nil, err
	}
	scores, err := tx.Scores.ListByStage(ctx, stageID)
	if err != nil {
		return nil, err
	}

	enrolledAt := make(map[string]int64, len(participations))
	ranked := make([]RankedTeam, 0, len(participations))
	for _, p := range participations {
		enrolledAt[p.TeamID] = p.EnrolledAt.UnixNano()
		row := RankedTeam{TeamID: p.TeamID}
		if score, ok := scores[p.TeamID]; ok {
			row.Line = score.Line
			row.Angle = score.Angle
			row.Style = score.Style
			row.Total = score.Total()
		}
		ranked = append(ranked, row)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Total != b.Total {
			return a.Total > b.Total
		}
		if a.Line != b.Line {
			return a.Line > b.Line
		}
		if a.Angle != b.Angle {
			return a.Angle > b.Angle
		}
		if enrolledAt[a.TeamID] != enrolledAt[b.TeamID] {
			return enrolledAt[a.TeamID] < enrolledAt[b.TeamID]
		}
		return a.TeamID < b.TeamID
	})
	for i := range ranked {
		ranked[i].Seed = i + 1
	}
	return ranked, nil
}

// Finalize freezes the stage's qualifying scores, records seeds on the
// participations and moves the stage into the battle phase. Calling it
// again after success is a no-op.
func (s *QualifyingService) Finalize(ctx context.Context, stageID string) error {
	unlock := s.locks.Lock(stageID)
	defer unlock()

	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	return s.store.InTx(ctx, func(tx *repository.Store) error {
		stage, err := tx.Stages.Get(ctx, stageID)
		if err != nil {
			return err
		}
		if stage.QualifyingFinalized {
			return nil
		}
		if !stage.State.CanTransition(domain.StageBattles) {
			return domain.ErrInvalidStateTransition
		}

		ranked, err := s.ranking(ctx, tx, stageID)
		if err != nil {
			return err
		}
		for _, row := range ranked {
			participation, err := tx.Enrollment.GetParticipation(ctx, stageID, row.TeamID)
			if err != nil {
				return err
			}
			if err := tx.Enrollment.SetQualifyingSeed(ctx, participation.ID, row.Seed); err != nil {
				return err
			}
		}

		if err := tx.Stages.SetQualifyingFinalized(ctx, stageID); err != nil {
			return err
		}
		if err := tx.Stages.SetState(ctx, stageID, domain.StageBattles); err != nil {
			return err
		}
		s.logger.Info().Str("stage_id", stageID).Int("teams", len(ranked)).Msg("qualifying finalized")
		return nil
	})
}
