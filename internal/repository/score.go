package repository

import (
	"context"
	"database/sql"
	"time"

	"granpix/internal/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type ScoreRepository struct {
	db     DBTX
	logger zerolog.Logger
}

func (r *ScoreRepository) Upsert(ctx context.Context, stageID, teamID string, line, angle, style int) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO etapa_notas (id, etapa_id, equipe_id, nota_linha, nota_angulo, nota_estilo, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (etapa_id, equipe_id) DO UPDATE SET
			nota_linha = excluded.nota_linha,
			nota_angulo = excluded.nota_angulo,
			nota_estilo = excluded.nota_estilo,
			updated_at = excluded.updated_at`,
		uuid.NewString(), stageID, teamID, line, angle, style, time.Now())
	return err
}

func (r *ScoreRepository) Get(ctx context.Context, stageID, teamID string) (*domain.QualifyingScore, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, etapa_id, equipe_id, nota_linha, nota_angulo, nota_estilo, updated_at
		FROM etapa_notas WHERE etapa_id = ? AND equipe_id = ?`, stageID, teamID)

	var s domain.QualifyingScore
	err := row.Scan(&s.ID, &s.StageID, &s.TeamID, &s.Line, &s.Angle, &s.Style, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *ScoreRepository) ListByStage(ctx context.Context, stageID string) (map[string]domain.QualifyingScore, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, etapa_id, equipe_id, nota_linha, nota_angulo, nota_estilo, updated_at
		FROM etapa_notas WHERE etapa_id = ?`, stageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]domain.QualifyingScore)
	for rows.Next() {
		var s domain.QualifyingScore
		if err := rows.Scan(&s.ID, &s.StageID, &s.TeamID, &s.Line, &s.Angle, &s.Style, &s.UpdatedAt); err != nil {
			return nil, err
		}
		result[s.TeamID] = s
	}
	return result, rows.Err()
}
