package repository

import (
	"context"
	"database/sql"

	"granpix/internal/constants"

	"github.com/rs/zerolog"
)

// SettingsRepository reads named numeric settings from the
// configuracoes table at operation time, falling back to defaults when
// a key is absent.
type SettingsRepository struct {
	db     DBTX
	logger zerolog.Logger
}

func (r *SettingsRepository) value(ctx context.Context, key string, fallback float64) (float64, error) {
	var v float64
	err := r.db.QueryRowContext(ctx, `
		SELECT valor FROM configuracoes WHERE chave = ?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		r.logger.Debug().Str("key", key).Float64("fallback", fallback).Msg("setting absent, using default")
		return fallback, nil
	}
	if err != nil {
		return 0, err
	}
	return v, nil
}

func (r *SettingsRepository) Set(ctx context.Context, key string, value float64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO configuracoes (chave, valor) VALUES (?, ?)
		ON CONFLICT (chave) DO UPDATE SET valor = excluded.valor`, key, value)
	return err
}

func (r *SettingsRepository) ParticipationFee(ctx context.Context) (float64, error) {
	return r.value(ctx, constants.SettingParticipationFee, constants.DefaultParticipationFee)
}

func (r *SettingsRepository) PartInstallFee(ctx context.Context) (float64, error) {
	return r.value(ctx, constants.SettingPartInstallFee, constants.DefaultPartInstallFee)
}

func (r *SettingsRepository) CarActivationFee(ctx context.Context) (float64, error) {
	return r.value(ctx, constants.SettingCarActivationFee, constants.DefaultCarActivationFee)
}

func (r *SettingsRepository) DiceDamage(ctx context.Context) (int, error) {
	v, err := r.value(ctx, constants.SettingDiceDamage, constants.DefaultDiceDamage)
	return int(v), err
}

func (r *SettingsRepository) BattlePrize(ctx context.Context) (float64, error) {
	return r.value(ctx, constants.SettingBattlePrize, constants.DefaultBattlePrize)
}
