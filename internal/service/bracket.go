package service

import (
	"context"
	"errors"
	"fmt"

	"granpix/internal/api"
	"granpix/internal/constants"
	"granpix/internal/domain"
	"granpix/internal/repository"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// BracketService coordinates the external single-elimination tournament
// and keeps a local read mirror of its matches. The external service is
// the source of truth for bracket structure and progression; battle
// passes and payouts are local.
type BracketService struct {
	store          *repository.Store
	locks          *StageLocks
	challonge      *api.ChallongeClient
	qualifying     *QualifyingService
	classification *ClassificationService
	logger         zerolog.Logger
}

func NewBracketService(
	store *repository.Store,
	locks *StageLocks,
	challonge *api.ChallongeClient,
	qualifying *QualifyingService,
	classification *ClassificationService,
	logger zerolog.Logger,
) *BracketService {
	return &BracketService{
		store:          store,
		locks:          locks,
		challonge:      challonge,
		qualifying:     qualifying,
		classification: classification,
		logger:         logger,
	}
}

// walkoverSweepLimit bounds the advance loop; a single-elimination
// bracket cannot need more sweeps than rounds.
const walkoverSweepLimit = 16

// Create builds the external tournament from the frozen qualifying
// order: participants are added with their seeds, the tournament is
// started and the slug is persisted on the stage. If any external step
// fails the half-built tournament is deleted and nothing is persisted
// locally, so the operation can be retried from scratch.
func (s *BracketService) Create(ctx context.Context, stageID string) (string, error) {
	unlock := s.locks.Lock(stageID)
	defer unlock()

	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	stage, err := s.store.Stages.Get(ctx, stageID)
	if err != nil {
		return "", err
	}
	if stage.State != domain.StageBattles || !stage.QualifyingFinalized {
		return "", domain.ErrInvalidStateTransition
	}
	if stage.BracketSlug != "" {
		return stage.BracketSlug, nil
	}

	ranked, err := s.qualifying.Ranking(ctx, stageID)
	if err != nil {
		return "", err
	}
	if len(ranked) == 0 {
		return "", domain.E(domain.KindValidation, "stage has no seeded teams")
	}

	suffix, err := gonanoid.Generate(constants.BracketSlugAlphabet, constants.BracketSlugSuffix)
	if err != nil {
		return "", err
	}
	slug := fmt.Sprintf("granpix_e%d_%s", stage.Number, suffix)

	tournament, err := s.challonge.CreateTournament(ctx, stage.Name, slug)
	if err != nil {
		return "", externalErr(err)
	}
	s.logger.Info().
		Str("stage_id", stageID).
		Str("slug", slug).
		Int64("tournament_id", tournament.ID).
		Msg("tournament created")

	participants := make([]repository.BracketParticipant, 0, len(ranked))
	for _, row := range ranked {
		team, err := s.store.Teams.Get(ctx, row.TeamID)
		if err != nil {
			s.discardTournament(ctx, slug)
			return "", err
		}
		added, err := s.challonge.AddParticipant(ctx, slug, team.Name, row.Seed)
		if err != nil {
			s.discardTournament(ctx, slug)
			return "", externalErr(err)
		}
		participants = append(participants, repository.BracketParticipant{
			ID:            uuid.NewString(),
			StageID:       stageID,
			TeamID:        row.TeamID,
			ParticipantID: added.ID,
			Seed:          row.Seed,
		})
	}

	if err := s.challonge.StartTournament(ctx, slug); err != nil {
		s.discardTournament(ctx, slug)
		return "", externalErr(err)
	}

	err = s.store.InTx(ctx, func(tx *repository.Store) error {
		if err := tx.Stages.SetBracketSlug(ctx, stageID, slug); err != nil {
			return err
		}
		for i := range participants {
			if err := tx.Battles.SaveParticipant(ctx, &participants[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	stage.BracketSlug = slug
	if err := s.syncMirror(ctx, stage); err != nil {
		return "", err
	}
	s.logger.Info().Str("stage_id", stageID).Str("slug", slug).Int("teams", len(participants)).Msg("bracket started")
	return slug, nil
}

// ReportWinner pushes a battle result to the external service, then
// refreshes the mirror and settles the local outcome (winner prize,
// driver win/loss records). Reporting the same winner for the same
// match twice is a no-op; reporting a different winner for a closed
// match is a conflict.
func (s *BracketService) ReportWinner(ctx context.Context, stageID string, matchID int64, winnerTeamID, scoresCSV string) error {
	unlock := s.locks.Lock(stageID)
	defer unlock()

	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	stage, err := s.bracketStage(ctx, stageID)
	if err != nil {
		return err
	}

	battle, err := s.store.Battles.GetByMatch(ctx, stageID, matchID)
	if errors.Is(err, domain.ErrBattleNotFound) {
		// Mirror may be behind a walkover advance; refresh once.
		if err := s.syncMirror(ctx, stage); err != nil {
			return err
		}
		battle, err = s.store.Battles.GetByMatch(ctx, stageID, matchID)
	}
	if err != nil {
		return err
	}

	if battle.WinnerTeam != "" {
		if battle.WinnerTeam == winnerTeamID {
			return nil
		}
		return domain.ErrMatchNotOpen
	}
	if battle.State == api.MatchComplete {
		return domain.ErrMatchNotOpen
	}

	var winnerPID int64
	switch winnerTeamID {
	case battle.Team1ID:
		winnerPID = battle.Player1ID
	case battle.Team2ID:
		winnerPID = battle.Player2ID
	default:
		return domain.E(domain.KindValidation, "winner team is not part of this match")
	}
	if winnerPID == 0 {
		return domain.ErrMatchNotOpen
	}
	if scoresCSV == "" {
		scoresCSV = "1-0"
	}

	if _, err := s.challonge.ReportMatch(ctx, stage.BracketSlug, matchID, winnerPID, scoresCSV); err != nil {
		var se *api.StatusError
		if errors.As(err, &se) && se.Status != api.StatusTransient {
			s.logger.Warn().Err(err).Int64("match_id", matchID).Msg("external service rejected match report")
			return domain.ErrMatchNotOpen
		}
		return externalErr(err)
	}

	if err := s.syncMirror(ctx, stage); err != nil {
		return err
	}
	if err := s.settleBattle(ctx, battle, winnerTeamID); err != nil {
		return err
	}

	s.logger.Info().
		Str("stage_id", stageID).
		Int64("match_id", matchID).
		Str("winner_team_id", winnerTeamID).
		Str("scores", scoresCSV).
		Msg("battle winner reported")
	return nil
}

// settleBattle pays the battle prize and records driver results once a
// winner is known. Walkover matches never reach here.
func (s *BracketService) settleBattle(ctx context.Context, battle *domain.Battle, winnerTeamID string) error {
	loserTeamID := battle.Team1ID
	if winnerTeamID == battle.Team1ID {
		loserTeamID = battle.Team2ID
	}

	return s.store.InTx(ctx, func(tx *repository.Store) error {
		prize, err := tx.Settings.BattlePrize(ctx)
		if err != nil {
			return err
		}
		if err := tx.Teams.CreditCredits(ctx, winnerTeamID, prize); err != nil {
			return err
		}
		for teamID, won := range map[string]bool{winnerTeamID: true, loserTeamID: false} {
			if teamID == "" {
				continue
			}
			participation, err := tx.Enrollment.GetParticipation(ctx, battle.StageID, teamID)
			if err != nil {
				return err
			}
			if participation.DriverID == "" {
				continue
			}
			if err := tx.Teams.RecordDriverResult(ctx, participation.DriverID, won); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReopenMatch reverts a completed match so its result can be corrected.
// The external service refuses once a downstream match has been played,
// which surfaces as a conflict. Prize and driver records already settled
// are not reversed; re-reporting settles again for the corrected winner.
func (s *BracketService) ReopenMatch(ctx context.Context, stageID string, matchID int64) error {
	unlock := s.locks.Lock(stageID)
	defer unlock()

	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	stage, err := s.bracketStage(ctx, stageID)
	if err != nil {
		return err
	}
	battle, err := s.store.Battles.GetByMatch(ctx, stageID, matchID)
	if err != nil {
		return err
	}
	if battle.State != api.MatchComplete {
		return nil
	}

	if err := s.challonge.ReopenMatch(ctx, stage.BracketSlug, matchID); err != nil {
		var se *api.StatusError
		if errors.As(err, &se) && se.Status != api.StatusTransient {
			return domain.Wrap(domain.KindConflict, "match can no longer be reopened", err)
		}
		return externalErr(err)
	}

	if err := s.syncMirror(ctx, stage); err != nil {
		return err
	}
	s.logger.Warn().
		Str("stage_id", stageID).
		Int64("match_id", matchID).
		Str("previous_winner", battle.WinnerTeam).
		Msg("match reopened, prior settlement stands")
	return nil
}

// AdvanceWalkovers sweeps the bracket for open matches with a single
// participant and reports them 1-0 until none remain. It returns the
// number of matches advanced. A bracket that never produced a match
// (single participant) finalizes immediately.
func (s *BracketService) AdvanceWalkovers(ctx context.Context, stageID string) (int, error) {
	unlock := s.locks.Lock(stageID)
	defer unlock()

	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	stage, err := s.bracketStage(ctx, stageID)
	if err != nil {
		return 0, err
	}

	advanced := 0
	var matches []api.Match
	for sweep := 0; sweep < walkoverSweepLimit; sweep++ {
		matches, err = s.challonge.ListMatches(ctx, stage.BracketSlug)
		if err != nil {
			return advanced, externalErr(err)
		}

		progressed := false
		for _, m := range matches {
			if m.State != api.MatchOpen {
				continue
			}
			var lone *int64
			switch {
			case m.Player1ID != nil && m.Player2ID == nil:
				lone = m.Player1ID
			case m.Player1ID == nil && m.Player2ID != nil:
				lone = m.Player2ID
			default:
				continue
			}
			if _, err := s.challonge.ReportMatch(ctx, stage.BracketSlug, m.ID, *lone, "1-0"); err != nil {
				return advanced, externalErr(err)
			}
			advanced++
			progressed = true
		}
		if !progressed {
			break
		}
	}

	if err := s.syncMirror(ctx, stage); err != nil {
		return advanced, err
	}

	if len(matches) == 0 {
		mapping, err := s.store.Battles.ListParticipants(ctx, stageID)
		if err != nil {
			return advanced, err
		}
		if len(mapping) == 1 {
			return advanced, s.finalizeLocked(ctx, stage)
		}
	}

	if advanced > 0 {
		s.logger.Info().Str("stage_id", stageID).Int("advanced", advanced).Msg("walkover matches advanced")
	}
	return advanced, nil
}

// Finalize closes the tournament once its final match is complete,
// moves the stage to its terminal state and publishes the
// classification. Finalizing an already finished stage is a no-op.
func (s *BracketService) Finalize(ctx context.Context, stageID string) error {
	unlock := s.locks.Lock(stageID)
	defer unlock()

	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	stage, err := s.store.Stages.Get(ctx, stageID)
	if err != nil {
		return err
	}
	if stage.State.Terminal() {
		return nil
	}
	if stage.State != domain.StageBattles || stage.BracketSlug == "" {
		return domain.ErrInvalidStateTransition
	}
	return s.finalizeLocked(ctx, stage)
}

func (s *BracketService) finalizeLocked(ctx context.Context, stage *domain.Stage) error {
	if err := s.syncMirror(ctx, stage); err != nil {
		return err
	}

	battles, err := s.store.Battles.ListByStage(ctx, stage.ID)
	if err != nil {
		return err
	}
	if len(battles) > 0 {
		finalRound := 0
		for _, b := range battles {
			if b.Round > finalRound {
				finalRound = b.Round
			}
		}
		for _, b := range battles {
			if b.Round == finalRound && (b.State != api.MatchComplete || b.WinnerTeam == "") {
				return domain.E(domain.KindInvalidState, "bracket final is not complete")
			}
		}
	}

	if err := s.challonge.FinalizeTournament(ctx, stage.BracketSlug); err != nil {
		var se *api.StatusError
		if !errors.As(err, &se) || se.Status == api.StatusTransient {
			return externalErr(err)
		}
		// Already-finalized tournaments reject the call; treat as done.
		s.logger.Warn().Err(err).Str("slug", stage.BracketSlug).Msg("tournament finalize rejected, assuming finalized")
	}

	var placements []domain.Placement
	err = s.store.InTx(ctx, func(tx *repository.Store) error {
		if err := tx.Stages.SetState(ctx, stage.ID, domain.StageFinished); err != nil {
			return err
		}
		placements, err = s.classification.Compute(ctx, tx, stage)
		return err
	})
	if err != nil {
		return err
	}

	s.classification.Publish(ctx, stage, placements)
	s.logger.Info().Str("stage_id", stage.ID).Msg("stage finalized")
	return nil
}

// Sync refreshes the local battle mirror on demand.
func (s *BracketService) Sync(ctx context.Context, stageID string) error {
	unlock := s.locks.Lock(stageID)
	defer unlock()

	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	stage, err := s.bracketStage(ctx, stageID)
	if err != nil {
		return err
	}
	return s.syncMirror(ctx, stage)
}

func (s *BracketService) Battles(ctx context.Context, stageID string) ([]domain.Battle, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()
	return s.store.Battles.ListByStage(ctx, stageID)
}

// bracketStage loads the stage and requires a started bracket.
func (s *BracketService) bracketStage(ctx context.Context, stageID string) (*domain.Stage, error) {
	stage, err := s.store.Stages.Get(ctx, stageID)
	if err != nil {
		return nil, err
	}
	if stage.State != domain.StageBattles {
		return nil, domain.ErrInvalidStateTransition
	}
	if stage.BracketSlug == "" {
		return nil, domain.E(domain.KindValidation, "stage has no bracket")
	}
	return stage, nil
}

// syncMirror reads matches and participants from the external service
// in parallel and replaces the local mirror in one transaction. Teams
// are resolved through the participant mapping captured at seeding
// time; participant seeds are refreshed in case the service reassigned
// them on start.
func (s *BracketService) syncMirror(ctx context.Context, stage *domain.Stage) error {
	var matches []api.Match
	var participants []api.Participant

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		matches, err = s.challonge.ListMatches(gctx, stage.BracketSlug)
		return err
	})
	g.Go(func() error {
		var err error
		participants, err = s.challonge.ListParticipants(gctx, stage.BracketSlug)
		return err
	})
	if err := g.Wait(); err != nil {
		return externalErr(err)
	}

	mapping, err := s.store.Battles.ListParticipants(ctx, stage.ID)
	if err != nil {
		return err
	}
	teamByParticipant := make(map[int64]string, len(mapping))
	rowByTeam := make(map[string]repository.BracketParticipant, len(mapping))
	for _, p := range mapping {
		teamByParticipant[p.ParticipantID] = p.TeamID
		rowByTeam[p.TeamID] = p
	}

	battles := make([]domain.Battle, 0, len(matches))
	for _, m := range matches {
		b := domain.Battle{
			ID:        uuid.NewString(),
			StageID:   stage.ID,
			MatchID:   m.ID,
			Round:     m.Round,
			ScoresCSV: m.ScoresCSV,
			State:     m.State,
		}
		if m.Player1ID != nil {
			b.Player1ID = *m.Player1ID
			b.Team1ID = teamByParticipant[*m.Player1ID]
		}
		if m.Player2ID != nil {
			b.Player2ID = *m.Player2ID
			b.Team2ID = teamByParticipant[*m.Player2ID]
		}
		if m.WinnerID != nil {
			b.WinnerID = *m.WinnerID
			b.WinnerTeam = teamByParticipant[*m.WinnerID]
		}
		battles = append(battles, b)
	}

	return s.store.InTx(ctx, func(tx *repository.Store) error {
		for _, p := range participants {
			teamID, ok := teamByParticipant[p.ID]
			if !ok {
				continue
			}
			row := rowByTeam[teamID]
			if row.Seed == p.Seed {
				continue
			}
			row.Seed = p.Seed
			if err := tx.Battles.SaveParticipant(ctx, &row); err != nil {
				return err
			}
		}
		return tx.Battles.ReplaceMirror(ctx, stage.ID, battles)
	})
}

// discardTournament best-effort deletes a tournament after a failed
// creation so a retry can reuse a fresh slug.
func (s *BracketService) discardTournament(ctx context.Context, slug string) {
	if err := s.challonge.DeleteTournament(ctx, slug); err != nil {
		s.logger.Warn().Err(err).Str("slug", slug).Msg("failed to discard partial tournament")
	}
}

// externalErr maps an external-service failure onto the domain error
// taxonomy: exhausted retries and transport failures surface as
// unavailable, terminal rejections as validation.
func externalErr(err error) error {
	if api.IsTransient(err) {
		return fmt.Errorf("%w: %v", domain.ErrBracketUnavailable, err)
	}
	var se *api.StatusError
	if errors.As(err, &se) {
		return domain.Wrap(domain.KindValidation, "tournament service rejected request", err)
	}
	return err
}
