package repository

import (
	"context"
	"database/sql"
	"time"

	"granpix/internal/domain"

	"github.com/rs/zerolog"
)

type StageRepository struct {
	db     DBTX
	logger zerolog.Logger
}

func (r *StageRepository) Get(ctx context.Context, id string) (*domain.Stage, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, campeonato_id, numero, nome, data_etapa, serie, status,
		       qualificacao_finalizada, bracket_slug, created_at, updated_at
		FROM etapas WHERE id = ?`, id)

	var s domain.Stage
	var finalized int
	err := row.Scan(&s.ID, &s.ChampionshipID, &s.Number, &s.Name, &s.ScheduledAt,
		&s.Series, &s.State, &finalized, &s.BracketSlug, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrStageNotFound
	}
	if err != nil {
		return nil, err
	}
	s.QualifyingFinalized = finalized != 0
	return &s, nil
}

func (r *StageRepository) Create(ctx context.Context, s *domain.Stage) error {
	now := time.Now()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO etapas (id, campeonato_id, numero, nome, data_etapa, serie,
		                    status, qualificacao_finalizada, bracket_slug, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, '', ?, ?)`,
		s.ID, s.ChampionshipID, s.Number, s.Name, s.ScheduledAt, s.Series,
		domain.StageScheduled, now, now)
	return err
}

func (r *StageRepository) SetState(ctx context.Context, id string, state domain.StageState) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE etapas SET status = ?, updated_at = ? WHERE id = ?`,
		state, time.Now(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrStageNotFound
	}
	r.logger.Debug().Str("stage_id", id).Str("state", string(state)).Msg("stage state updated")
	return nil
}

func (r *StageRepository) SetQualifyingFinalized(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE etapas SET qualificacao_finalizada = 1, updated_at = ? WHERE id = ?`,
		time.Now(), id)
	return err
}

func (r *StageRepository) SetBracketSlug(ctx context.Context, id, slug string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE etapas SET bracket_slug = ?, updated_at = ? WHERE id = ?`,
		slug, time.Now(), id)
	return err
}
