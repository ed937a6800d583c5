package repository

import (
	"context"
	"database/sql"
	"time"

	"granpix/internal/domain"

	"github.com/rs/zerolog"
)

type PartRepository struct {
	db     DBTX
	logger zerolog.Logger
}

const partColumns = `
	id, tipo, catalogo_id, nome, durabilidade_maxima, durabilidade_atual,
	coeficiente_quebra, instalada, carro_id, quebrada, created_at, updated_at`

func scanPart(row interface{ Scan(...any) error }) (*domain.Part, error) {
	var p domain.Part
	var installed, failed int
	err := row.Scan(&p.ID, &p.Kind, &p.CatalogID, &p.Name, &p.MaxDurability,
		&p.Durability, &p.BreakCoefficient, &installed, &p.CarID, &failed,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Installed = installed != 0
	p.Failed = failed != 0
	return &p, nil
}

func (r *PartRepository) Get(ctx context.Context, id string) (*domain.Part, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+partColumns+` FROM pecas WHERE id = ?`, id)
	p, err := scanPart(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrPartNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *PartRepository) Create(ctx context.Context, p *domain.Part) error {
	now := time.Now()
	installed, failed := 0, 0
	if p.Installed {
		installed = 1
	}
	if p.Failed {
		failed = 1
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO pecas (`+partColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Kind, p.CatalogID, p.Name, p.MaxDurability, p.Durability,
		p.BreakCoefficient, installed, p.CarID, failed, now, now)
	return err
}

// InstalledByKind finds the live part of the given kind on a car.
// Failed parts stay attached for reporting but are not returned here.
func (r *PartRepository) InstalledByKind(ctx context.Context, carID string, kind domain.PartKind) (*domain.Part, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+partColumns+` FROM pecas
		WHERE carro_id = ? AND tipo = ? AND instalada = 1 AND quebrada = 0`,
		carID, kind)
	p, err := scanPart(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrPartNotInstalled
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *PartRepository) ListByCar(ctx context.Context, carID string) ([]domain.Part, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+partColumns+` FROM pecas
		WHERE carro_id = ? AND instalada = 1
		ORDER BY tipo ASC`, carID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Part
	for rows.Next() {
		p, err := scanPart(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}
	return result, rows.Err()
}

// ApplyDamage decrements durability, clamping at zero, and flags the
// part failed when it bottoms out. Returns the updated part.
func (r *PartRepository) ApplyDamage(ctx context.Context, partID string, damage float64) (*domain.Part, error) {
	_, err := r.db.ExecContext(ctx, `
		UPDATE pecas SET
			durabilidade_atual = MAX(0, durabilidade_atual - ?),
			quebrada = CASE WHEN durabilidade_atual - ? <= 0 THEN 1 ELSE quebrada END,
			updated_at = ?
		WHERE id = ?`,
		damage, damage, time.Now(), partID)
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, partID)
}

func (r *PartRepository) SetInstalled(ctx context.Context, partID, carID string, installed bool) error {
	flag := 0
	if installed {
		flag = 1
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE pecas SET instalada = ?, carro_id = ?, updated_at = ? WHERE id = ?`,
		flag, carID, time.Now(), partID)
	return err
}
