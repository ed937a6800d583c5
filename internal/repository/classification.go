package repository

import (
	"context"

	"granpix/internal/domain"

	"github.com/rs/zerolog"
)

type ClassificationRepository struct {
	db     DBTX
	logger zerolog.Logger
}

func (r *ClassificationRepository) Replace(ctx context.Context, stageID string, placements []domain.Placement) error {
	if _, err := r.db.ExecContext(ctx, `
		DELETE FROM classificacoes WHERE etapa_id = ?`, stageID); err != nil {
		return err
	}
	for _, p := range placements {
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO classificacoes (id, etapa_id, equipe_id, posicao, rodada_alcancada, total_qualificacao)
			VALUES (?, ?, ?, ?, ?, ?)`,
			p.ID, p.StageID, p.TeamID, p.Position, p.RoundReached, p.QualifyingTotal)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *ClassificationRepository) ListByStage(ctx context.Context, stageID string) ([]domain.Placement, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, etapa_id, equipe_id, posicao, rodada_alcancada, total_qualificacao
		FROM classificacoes WHERE etapa_id = ? ORDER BY posicao ASC`, stageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Placement
	for rows.Next() {
		var p domain.Placement
		if err := rows.Scan(&p.ID, &p.StageID, &p.TeamID, &p.Position, &p.RoundReached, &p.QualifyingTotal); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}
