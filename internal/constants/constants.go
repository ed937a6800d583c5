package constants

import "time"

const (
	ExternalAPITimeout = 20 * time.Second
	DatabaseTimeout    = 5 * time.Second
	RequestTimeout     = 30 * time.Second
)

const (
	// Bounded backoff for transient tournament-service failures (520s
	// and timeouts).
	BracketRetryAttempts = 4
	BracketRetryBase     = 500 * time.Millisecond
)

const (
	DBMaxOpenConns    = 100
	DBMaxIdleConns    = 10
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	BracketSlugAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	BracketSlugSuffix   = 8
)

// Settings keys read from the configuracoes table at operation time.
const (
	SettingParticipationFee = "valor_participacao"
	SettingPartInstallFee   = "valor_instalacao_peca"
	SettingCarActivationFee = "valor_ativacao_carro"
	SettingDiceDamage       = "dado_dano"
	SettingBattlePrize      = "premiacao_vitoria_batalha"
)

// Defaults applied when a settings row is absent.
const (
	DefaultParticipationFee = 1000.0
	DefaultPartInstallFee   = 250.0
	DefaultCarActivationFee = 500.0
	DefaultDiceDamage       = 20
	DefaultBattlePrize      = 1000.0
)
