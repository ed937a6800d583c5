package repository

import (
	"context"
	"database/sql"
	"time"

	"granpix/internal/domain"

	"github.com/rs/zerolog"
)

type BattleRepository struct {
	db     DBTX
	logger zerolog.Logger
}

const battleColumns = `
	id, etapa_id, match_id, rodada, player1_id, player2_id, equipe1_id,
	equipe2_id, winner_id, equipe_vencedora_id, scores_csv, estado, updated_at`

func scanBattle(row interface{ Scan(...any) error }) (*domain.Battle, error) {
	var b domain.Battle
	err := row.Scan(&b.ID, &b.StageID, &b.MatchID, &b.Round, &b.Player1ID,
		&b.Player2ID, &b.Team1ID, &b.Team2ID, &b.WinnerID, &b.WinnerTeam,
		&b.ScoresCSV, &b.State, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *BattleRepository) Get(ctx context.Context, id string) (*domain.Battle, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+battleColumns+` FROM batalhas WHERE id = ?`, id)
	b, err := scanBattle(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrBattleNotFound
	}
	if err != nil {
		return nil, err
	}
	b.PassesTaken, err = r.CountPasses(ctx, b.ID)
	return b, err
}

func (r *BattleRepository) GetByMatch(ctx context.Context, stageID string, matchID int64) (*domain.Battle, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+battleColumns+` FROM batalhas WHERE etapa_id = ? AND match_id = ?`,
		stageID, matchID)
	b, err := scanBattle(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrBattleNotFound
	}
	if err != nil {
		return nil, err
	}
	b.PassesTaken, err = r.CountPasses(ctx, b.ID)
	return b, err
}

func (r *BattleRepository) ListByStage(ctx context.Context, stageID string) ([]domain.Battle, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+battleColumns+` FROM batalhas
		WHERE etapa_id = ? ORDER BY rodada ASC, match_id ASC`, stageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Battle
	for rows.Next() {
		b, err := scanBattle(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *b)
	}
	return result, rows.Err()
}

// ReplaceMirror swaps the stage's battle mirror for the freshly read
// external state. Pass records reference battles by their own ids, so
// battles are updated in place when the match id already exists.
func (r *BattleRepository) ReplaceMirror(ctx context.Context, stageID string, battles []domain.Battle) error {
	for _, b := range battles {
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO batalhas (`+battleColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (etapa_id, match_id) DO UPDATE SET
				rodada = excluded.rodada,
				player1_id = excluded.player1_id,
				player2_id = excluded.player2_id,
				equipe1_id = excluded.equipe1_id,
				equipe2_id = excluded.equipe2_id,
				winner_id = excluded.winner_id,
				equipe_vencedora_id = excluded.equipe_vencedora_id,
				scores_csv = excluded.scores_csv,
				estado = excluded.estado,
				updated_at = excluded.updated_at`,
			b.ID, b.StageID, b.MatchID, b.Round, b.Player1ID, b.Player2ID,
			b.Team1ID, b.Team2ID, b.WinnerID, b.WinnerTeam, b.ScoresCSV,
			b.State, time.Now())
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *BattleRepository) CountPasses(ctx context.Context, battleID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM passadas WHERE batalha_id = ?`, battleID).Scan(&n)
	return n, err
}

func (r *BattleRepository) CreatePass(ctx context.Context, p *domain.Pass) error {
	failed := 0
	if p.PartFailed {
		failed = 1
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO passadas (id, batalha_id, etapa_id, numero, equipe_alvo_id,
		                      peca_id, tipo_peca, dado, dano, peca_quebrou, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.BattleID, p.StageID, p.Number, p.TargetTeam, p.PartID,
		p.PartKind, p.Roll, p.Damage, failed, p.CreatedAt)
	return err
}

func (r *BattleRepository) ListPasses(ctx context.Context, battleID string) ([]domain.Pass, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, batalha_id, etapa_id, numero, equipe_alvo_id, peca_id,
		       tipo_peca, dado, dano, peca_quebrou, created_at
		FROM passadas WHERE batalha_id = ? ORDER BY numero ASC`, battleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Pass
	for rows.Next() {
		var p domain.Pass
		var failed int
		if err := rows.Scan(&p.ID, &p.BattleID, &p.StageID, &p.Number, &p.TargetTeam,
			&p.PartID, &p.PartKind, &p.Roll, &p.Damage, &failed, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.PartFailed = failed != 0
		result = append(result, p)
	}
	return result, rows.Err()
}

// Bracket participant mapping: external participant id → team.

type BracketParticipant struct {
	ID            string
	StageID       string
	TeamID        string
	ParticipantID int64
	Seed          int
}

func (r *BattleRepository) SaveParticipant(ctx context.Context, p *BracketParticipant) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO participantes_bracket (id, etapa_id, equipe_id, participant_id, seed)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (etapa_id, equipe_id) DO UPDATE SET
			participant_id = excluded.participant_id,
			seed = excluded.seed`,
		p.ID, p.StageID, p.TeamID, p.ParticipantID, p.Seed)
	return err
}

func (r *BattleRepository) ListParticipants(ctx context.Context, stageID string) ([]BracketParticipant, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, etapa_id, equipe_id, participant_id, seed
		FROM participantes_bracket WHERE etapa_id = ? ORDER BY seed ASC`, stageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []BracketParticipant
	for rows.Next() {
		var p BracketParticipant
		if err := rows.Scan(&p.ID, &p.StageID, &p.TeamID, &p.ParticipantID, &p.Seed); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}
