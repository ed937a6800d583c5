package repository

import (
	"context"
	"database/sql"
	"time"

	"granpix/internal/domain"

	"github.com/rs/zerolog"
)

type TeamRepository struct {
	db     DBTX
	logger zerolog.Logger
}

func (r *TeamRepository) Get(ctx context.Context, id string) (*domain.Team, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, nome, doricoins, saldo_pix, serie, carro_ativo_id, created_at, updated_at
		FROM equipes WHERE id = ?`, id)

	var t domain.Team
	err := row.Scan(&t.ID, &t.Name, &t.Credits, &t.PixBalance, &t.Series,
		&t.ActiveCarID, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrTeamNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TeamRepository) Create(ctx context.Context, t *domain.Team) error {
	now := time.Now()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO equipes (id, nome, doricoins, saldo_pix, serie, carro_ativo_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Name, t.Credits, t.PixBalance, t.Series, t.ActiveCarID, now, now)
	return err
}

// DebitPix decrements the team's PIX balance, failing when the balance
// would go negative. The guard lives in the UPDATE so a concurrent
// debit cannot overdraw.
func (r *TeamRepository) DebitPix(ctx context.Context, teamID string, amount float64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE equipes SET saldo_pix = saldo_pix - ?, updated_at = ?
		WHERE id = ? AND saldo_pix >= ?`,
		amount, time.Now(), teamID, amount)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrInsufficientBalance
	}
	return nil
}

func (r *TeamRepository) CreditCredits(ctx context.Context, teamID string, amount float64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE equipes SET doricoins = doricoins + ?, updated_at = ? WHERE id = ?`,
		amount, time.Now(), teamID)
	return err
}

func (r *TeamRepository) SetActiveCar(ctx context.Context, teamID, carID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE equipes SET carro_ativo_id = ?, updated_at = ? WHERE id = ?`,
		carID, time.Now(), teamID)
	return err
}

func (r *TeamRepository) GetDriver(ctx context.Context, id string) (*domain.Driver, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, nome, serie, vitorias, derrotas, empates, created_at, updated_at
		FROM pilotos WHERE id = ?`, id)

	var d domain.Driver
	err := row.Scan(&d.ID, &d.Name, &d.Series, &d.Wins, &d.Losses, &d.Draws,
		&d.CreatedAt, &d.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrDriverNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *TeamRepository) CreateDriver(ctx context.Context, d *domain.Driver) error {
	now := time.Now()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO pilotos (id, nome, serie, vitorias, derrotas, empates, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Name, d.Series, d.Wins, d.Losses, d.Draws, now, now)
	return err
}

func (r *TeamRepository) RecordDriverResult(ctx context.Context, driverID string, won bool) error {
	col := "derrotas"
	if won {
		col = "vitorias"
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE pilotos SET `+col+` = `+col+` + 1, updated_at = ? WHERE id = ?`,
		time.Now(), driverID)
	return err
}

func (r *TeamRepository) GetCar(ctx context.Context, id string) (*domain.Car, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, modelo_id, equipe_id, numero, marca, modelo, ativo, created_at, updated_at
		FROM carros WHERE id = ?`, id)

	var c domain.Car
	var active int
	err := row.Scan(&c.ID, &c.ModelID, &c.TeamID, &c.Number, &c.Brand, &c.Model,
		&active, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrCarNotFound
	}
	if err != nil {
		return nil, err
	}
	c.Active = active != 0
	return &c, nil
}

func (r *TeamRepository) CreateCar(ctx context.Context, c *domain.Car) error {
	now := time.Now()
	active := 0
	if c.Active {
		active = 1
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO carros (id, modelo_id, equipe_id, numero, marca, modelo, ativo, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.ModelID, c.TeamID, c.Number, c.Brand, c.Model, active, now, now)
	return err
}

// SetCarActive flips the stored/active flag. Exactly one car per team
// is active; the previous active car is put in storage first.
func (r *TeamRepository) SetCarActive(ctx context.Context, teamID, carID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE carros SET ativo = 0, updated_at = ? WHERE equipe_id = ?`,
		time.Now(), teamID)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE carros SET ativo = 1, updated_at = ? WHERE id = ? AND equipe_id = ?`,
		time.Now(), carID, teamID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrCarNotFound
	}
	return nil
}
