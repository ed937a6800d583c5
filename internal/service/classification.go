package service

import (
	"context"
	"sort"

	"granpix/internal/constants"
	"granpix/internal/domain"
	"granpix/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ClassificationService turns the terminal bracket state plus the
// qualifying order into final stage placements. Championship standings
// are not recomputed here; the result is emitted as an event for the
// downstream consumer.
type ClassificationService struct {
	store     *repository.Store
	publisher Publisher
	logger    zerolog.Logger
}

func NewClassificationService(store *repository.Store, publisher Publisher, logger zerolog.Logger) *ClassificationService {
	return &ClassificationService{store: store, publisher: publisher, logger: logger}
}

func (s *ClassificationService) ListByStage(ctx context.Context, stageID string) ([]domain.Placement, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()
	return s.store.Classifieds.ListByStage(ctx, stageID)
}

// Compute derives and persists the placements for a finished bracket.
// It runs inside the caller's transaction.
func (s *ClassificationService) Compute(ctx context.Context, tx *repository.Store, stage *domain.Stage) ([]domain.Placement, error) {
	battles, err := tx.Battles.ListByStage(ctx, stage.ID)
	if err != nil {
		return nil, err
	}
	bracketTeams, err := tx.Battles.ListParticipants(ctx, stage.ID)
	if err != nil {
		return nil, err
	}
	scores, err := tx.Scores.ListByStage(ctx, stage.ID)
	if err != nil {
		return nil, err
	}
	participations, err := tx.Enrollment.ListParticipations(ctx, stage.ID)
	if err != nil {
		return nil, err
	}

	inBracket := make(map[string]bool, len(bracketTeams))
	for _, p := range bracketTeams {
		inBracket[p.TeamID] = true
	}

	roundReached := make(map[string]int)
	finalRound := 0
	for _, b := range battles {
		if b.Round > finalRound {
			finalRound = b.Round
		}
		for _, team := range []string{b.Team1ID, b.Team2ID} {
			if team != "" && b.Round > roundReached[team] {
				roundReached[team] = b.Round
			}
		}
	}

	total := func(team string) int {
		return scores[team].Total()
	}
	line := func(team string) int {
		return scores[team].Line
	}

	var ordered []string
	placed := make(map[string]bool)
	place := func(team string) {
		if team != "" && !placed[team] {
			placed[team] = true
			ordered = append(ordered, team)
		}
	}

	// Winner and finalist come straight from the final match.
	for _, b := range battles {
		if b.Round == finalRound && b.WinnerTeam != "" {
			place(b.WinnerTeam)
			if b.Team1ID == b.WinnerTeam {
				place(b.Team2ID)
			} else {
				place(b.Team1ID)
			}
		}
	}

	// Remaining bracket teams: deepest round first, then qualifying
	// total, then line.
	var eliminated []string
	for _, p := range bracketTeams {
		if !placed[p.TeamID] {
			eliminated = append(eliminated, p.TeamID)
		}
	}
	sort.SliceStable(eliminated, func(i, j int) bool {
		a, b := eliminated[i], eliminated[j]
		if roundReached[a] != roundReached[b] {
			return roundReached[a] > roundReached[b]
		}
		if total(a) != total(b) {
			return total(a) > total(b)
		}
		if line(a) != line(b) {
			return line(a) > line(b)
		}
		return a < b
	})
	for _, team := range eliminated {
		place(team)
	}

	// Teams that never entered the bracket follow in qualifying order.
	sort.SliceStable(participations, func(i, j int) bool {
		return participations[i].QualifyingSeed < participations[j].QualifyingSeed
	})
	for _, p := range participations {
		if !inBracket[p.TeamID] {
			place(p.TeamID)
		}
	}

	placements := make([]domain.Placement, len(ordered))
	for i, team := range ordered {
		placements[i] = domain.Placement{
			ID:              uuid.NewString(),
			StageID:         stage.ID,
			TeamID:          team,
			Position:        i + 1,
			RoundReached:    roundReached[team],
			QualifyingTotal: total(team),
		}
	}

	if err := tx.Classifieds.Replace(ctx, stage.ID, placements); err != nil {
		return nil, err
	}
	s.logger.Info().Str("stage_id", stage.ID).Int("teams", len(placements)).Msg("classification computed")
	return placements, nil
}

// Publish emits the terminal classification event.
func (s *ClassificationService) Publish(ctx context.Context, stage *domain.Stage, placements []domain.Placement) {
	s.publisher.ClassificationFinalized(ctx, domain.ClassificationFinalized{
		StageID:        stage.ID,
		ChampionshipID: stage.ChampionshipID,
		Placements:     placements,
	})
}
