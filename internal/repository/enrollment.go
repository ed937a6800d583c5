package repository

import (
	"context"
	"database/sql"

	"granpix/internal/domain"

	"github.com/rs/zerolog"
)

type EnrollmentRepository struct {
	db     DBTX
	logger zerolog.Logger
}

const participationColumns = `
	id, etapa_id, equipe_id, carro_id, tipo_participacao, piloto_id,
	confirmada, ordem_qualificacao, data_inscricao`

func scanParticipation(row interface{ Scan(...any) error }) (*domain.Participation, error) {
	var p domain.Participation
	var confirmed int
	err := row.Scan(&p.ID, &p.StageID, &p.TeamID, &p.CarID, &p.Kind, &p.DriverID,
		&confirmed, &p.QualifyingSeed, &p.EnrolledAt)
	if err != nil {
		return nil, err
	}
	p.Confirmed = confirmed != 0
	return &p, nil
}

func (r *EnrollmentRepository) CreateParticipation(ctx context.Context, p *domain.Participation) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO participacoes_etapas
			(id, etapa_id, equipe_id, carro_id, tipo_participacao, piloto_id,
			 confirmada, ordem_qualificacao, data_inscricao)
		VALUES (?, ?, ?, ?, ?, ?, 0, 0, ?)`,
		p.ID, p.StageID, p.TeamID, p.CarID, p.Kind, p.DriverID, p.EnrolledAt)
	return err
}

func (r *EnrollmentRepository) GetParticipation(ctx context.Context, stageID, teamID string) (*domain.Participation, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+participationColumns+`
		FROM participacoes_etapas WHERE etapa_id = ? AND equipe_id = ?`, stageID, teamID)
	p, err := scanParticipation(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrParticipationNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *EnrollmentRepository) GetParticipationByID(ctx context.Context, id string) (*domain.Participation, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+participationColumns+`
		FROM participacoes_etapas WHERE id = ?`, id)
	p, err := scanParticipation(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrParticipationNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *EnrollmentRepository) ListParticipations(ctx context.Context, stageID string) ([]domain.Participation, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+participationColumns+`
		FROM participacoes_etapas WHERE etapa_id = ?
		ORDER BY data_inscricao ASC, id ASC`, stageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Participation
	for rows.Next() {
		p, err := scanParticipation(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}
	return result, rows.Err()
}

func (r *EnrollmentRepository) CountParticipations(ctx context.Context, stageID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM participacoes_etapas WHERE etapa_id = ?`, stageID).Scan(&n)
	return n, err
}

func (r *EnrollmentRepository) SetParticipationDriver(ctx context.Context, participationID, driverID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE participacoes_etapas SET piloto_id = ?, confirmada = 0 WHERE id = ?`,
		driverID, participationID)
	return err
}

func (r *EnrollmentRepository) SetParticipationConfirmed(ctx context.Context, participationID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE participacoes_etapas SET confirmada = 1 WHERE id = ?`, participationID)
	return err
}

func (r *EnrollmentRepository) SetQualifyingSeed(ctx context.Context, participationID string, seed int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE participacoes_etapas SET ordem_qualificacao = ? WHERE id = ?`,
		seed, participationID)
	return err
}

func (r *EnrollmentRepository) CreateCandidacy(ctx context.Context, c *domain.Candidacy) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO candidatos_piloto_etapa (id, etapa_id, equipe_id, piloto_id, status, data_inscricao)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.StageID, c.TeamID, c.DriverID, c.Status, c.RegisteredAt)
	return err
}

// HasActiveCandidacy reports whether the driver already holds a pending
// or assigned candidacy anywhere in the stage.
func (r *EnrollmentRepository) HasActiveCandidacy(ctx context.Context, stageID, driverID string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM candidatos_piloto_etapa
		WHERE etapa_id = ? AND piloto_id = ? AND status IN (?, ?)`,
		stageID, driverID, domain.CandidacyPending, domain.CandidacyAssigned).Scan(&n)
	return n > 0, err
}

// OldestPending returns the FIFO head of the team's pending candidacies.
func (r *EnrollmentRepository) OldestPending(ctx context.Context, stageID, teamID string) (*domain.Candidacy, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, etapa_id, equipe_id, piloto_id, status, data_inscricao
		FROM candidatos_piloto_etapa
		WHERE etapa_id = ? AND equipe_id = ? AND status = ?
		ORDER BY data_inscricao ASC, id ASC
		LIMIT 1`, stageID, teamID, domain.CandidacyPending)

	var c domain.Candidacy
	err := row.Scan(&c.ID, &c.StageID, &c.TeamID, &c.DriverID, &c.Status, &c.RegisteredAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNoCandidates
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// AssignedCandidacy returns the driver's currently assigned candidacy
// for the team. Declined rows from earlier allocation rounds are
// ignored; at most one assigned row exists per driver and stage.
func (r *EnrollmentRepository) AssignedCandidacy(ctx context.Context, stageID, teamID, driverID string) (*domain.Candidacy, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, etapa_id, equipe_id, piloto_id, status, data_inscricao
		FROM candidatos_piloto_etapa
		WHERE etapa_id = ? AND equipe_id = ? AND piloto_id = ? AND status = ?
		LIMIT 1`,
		stageID, teamID, driverID, domain.CandidacyAssigned)

	var c domain.Candidacy
	err := row.Scan(&c.ID, &c.StageID, &c.TeamID, &c.DriverID, &c.Status, &c.RegisteredAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNoCandidates
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *EnrollmentRepository) SetCandidacyStatus(ctx context.Context, candidacyID string, status domain.CandidacyStatus) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE candidatos_piloto_etapa SET status = ? WHERE id = ?`, status, candidacyID)
	return err
}

func (r *EnrollmentRepository) ListCandidacies(ctx context.Context, stageID, teamID string) ([]domain.Candidacy, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, etapa_id, equipe_id, piloto_id, status, data_inscricao
		FROM candidatos_piloto_etapa
		WHERE etapa_id = ? AND equipe_id = ?
		ORDER BY data_inscricao ASC, id ASC`, stageID, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Candidacy
	for rows.Next() {
		var c domain.Candidacy
		if err := rows.Scan(&c.ID, &c.StageID, &c.TeamID, &c.DriverID, &c.Status, &c.RegisteredAt); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}
