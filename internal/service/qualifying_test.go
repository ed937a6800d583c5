package service

import (
	"testing"

	"granpix/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertScoreBounds(t *testing.T) {
	f := newFixture(t)
	stage := f.createStage(domain.StageScheduled)
	team, _ := f.enrollTeam(stage.ID, "Equipe Alpha")
	require.NoError(t, f.stages.StartQualifying(f.ctx, stage.ID))

	cases := []struct {
		name              string
		line, angle, style int
		wantErr           bool
	}{
		{"all zero", 0, 0, 0, false},
		{"all max", 40, 30, 30, false},
		{"line over", 41, 0, 0, true},
		{"angle over", 0, 31, 0, true},
		{"style over", 0, 0, 31, true},
		{"negative line", -1, 0, 0, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := f.qualifying.UpsertScore(f.ctx, stage.ID, team.ID, tc.line, tc.angle, tc.style)
			if tc.wantErr {
				require.Error(t, err)
				assert.Equal(t, domain.KindValidation, domain.KindOf(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestUpsertScoreOverwrites(t *testing.T) {
	f := newFixture(t)
	stage := f.createStage(domain.StageScheduled)
	team, _ := f.enrollTeam(stage.ID, "Equipe Alpha")
	require.NoError(t, f.stages.StartQualifying(f.ctx, stage.ID))

	require.NoError(t, f.qualifying.UpsertScore(f.ctx, stage.ID, team.ID, 10, 10, 10))
	require.NoError(t, f.qualifying.UpsertScore(f.ctx, stage.ID, team.ID, 35, 25, 20))

	score, err := f.store.Scores.Get(f.ctx, stage.ID, team.ID)
	require.NoError(t, err)
	require.NotNil(t, score)
	assert.Equal(t, 80, score.Total())
}

func TestUpsertScoreOutsideQualifying(t *testing.T) {
	f := newFixture(t)
	stage := f.createStage(domain.StageScheduled)
	team, _ := f.enrollTeam(stage.ID, "Equipe Alpha")

	err := f.qualifying.UpsertScore(f.ctx, stage.ID, team.ID, 10, 10, 10)
	assert.ErrorIs(t, err, domain.ErrStageNotInQualifying)
}

func TestRankingTieBreaks(t *testing.T) {
	f := newFixture(t)
	stage := f.createStage(domain.StageScheduled)

	alpha, _ := f.enrollTeam(stage.ID, "Equipe Alpha")
	beta, _ := f.enrollTeam(stage.ID, "Equipe Beta")
	gamma, _ := f.enrollTeam(stage.ID, "Equipe Gamma")
	delta, _ := f.enrollTeam(stage.ID, "Equipe Delta")
	require.NoError(t, f.stages.StartQualifying(f.ctx, stage.ID))

	// beta and gamma tie on total; beta's higher line score wins the
	// tie. delta trails, alpha leads.
	require.NoError(t, f.qualifying.UpsertScore(f.ctx, stage.ID, alpha.ID, 35, 30, 25)) // 90
	require.NoError(t, f.qualifying.UpsertScore(f.ctx, stage.ID, beta.ID, 35, 20, 15))  // 70, line 35
	require.NoError(t, f.qualifying.UpsertScore(f.ctx, stage.ID, gamma.ID, 30, 25, 15)) // 70, line 30
	require.NoError(t, f.qualifying.UpsertScore(f.ctx, stage.ID, delta.ID, 20, 15, 15)) // 50

	ranked, err := f.qualifying.Ranking(f.ctx, stage.ID)
	require.NoError(t, err)
	require.Len(t, ranked, 4)

	assert.Equal(t, []string{alpha.ID, beta.ID, gamma.ID, delta.ID},
		[]string{ranked[0].TeamID, ranked[1].TeamID, ranked[2].TeamID, ranked[3].TeamID})
	for i, row := range ranked {
		assert.Equal(t, i+1, row.Seed)
	}
}

func TestRankingUnscoredTeamsRankLast(t *testing.T) {
	f := newFixture(t)
	stage := f.createStage(domain.StageScheduled)
	alpha, _ := f.enrollTeam(stage.ID, "Equipe Alpha")
	beta, _ := f.enrollTeam(stage.ID, "Equipe Beta")
	require.NoError(t, f.stages.StartQualifying(f.ctx, stage.ID))

	require.NoError(t, f.qualifying.UpsertScore(f.ctx, stage.ID, beta.ID, 5, 5, 5))

	ranked, err := f.qualifying.Ranking(f.ctx, stage.ID)
	require.NoError(t, err)
	require.Len(t, ranked, 2)
	assert.Equal(t, beta.ID, ranked[0].TeamID)
	assert.Equal(t, alpha.ID, ranked[1].TeamID)
	assert.Zero(t, ranked[1].Total)
}

func TestFinalizeQualifying(t *testing.T) {
	f := newFixture(t)
	stage := f.createStage(domain.StageScheduled)
	alpha, _ := f.enrollTeam(stage.ID, "Equipe Alpha")
	beta, _ := f.enrollTeam(stage.ID, "Equipe Beta")
	require.NoError(t, f.stages.StartQualifying(f.ctx, stage.ID))

	require.NoError(t, f.qualifying.UpsertScore(f.ctx, stage.ID, alpha.ID, 10, 10, 10))
	require.NoError(t, f.qualifying.UpsertScore(f.ctx, stage.ID, beta.ID, 30, 20, 20))

	require.NoError(t, f.qualifying.Finalize(f.ctx, stage.ID))

	got, err := f.stages.Get(f.ctx, stage.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StageBattles, got.State)
	assert.True(t, got.QualifyingFinalized)

	participation, err := f.store.Enrollment.GetParticipation(f.ctx, stage.ID, beta.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, participation.QualifyingSeed)
	participation, err = f.store.Enrollment.GetParticipation(f.ctx, stage.ID, alpha.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, participation.QualifyingSeed)

	// Finalizing again is a no-op.
	require.NoError(t, f.qualifying.Finalize(f.ctx, stage.ID))

	// Scores are frozen after finalization.
	err = f.qualifying.UpsertScore(f.ctx, stage.ID, alpha.ID, 40, 30, 30)
	assert.ErrorIs(t, err, domain.ErrStageNotInQualifying)
}

func TestFinalizeFromScheduledFails(t *testing.T) {
	f := newFixture(t)
	stage := f.createStage(domain.StageScheduled)
	f.enrollTeam(stage.ID, "Equipe Alpha")

	err := f.qualifying.Finalize(f.ctx, stage.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)
}
