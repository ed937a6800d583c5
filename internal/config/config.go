package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

type Config struct {
	DBPath            string
	ServerPort        string
	LogLevel          string
	ChallongeUsername string
	ChallongeAPIKey   string
	ChallongeBaseURL  string
	JWTSecret         string
}

// Load reads the environment before the leveled logger exists, so it
// logs through a minimal bootstrap logger of its own.
func Load() (*Config, error) {
	bootstrap := zerolog.New(os.Stdout).With().Timestamp().Logger()

	if err := godotenv.Load(); err != nil {
		bootstrap.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	cfg := &Config{
		DBPath:            getEnv("DB_PATH", "granpix.db"),
		ServerPort:        getEnv("SERVER_PORT", "8080"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		ChallongeUsername: getEnv("CHALLONGE_USERNAME", ""),
		ChallongeAPIKey:   getEnv("CHALLONGE_API_KEY", ""),
		ChallongeBaseURL:  getEnv("CHALLONGE_BASE_URL", "https://api.challonge.com/v1"),
		JWTSecret:         getEnv("JWT_SECRET", ""),
	}

	if cfg.ChallongeAPIKey == "" {
		return nil, fmt.Errorf("CHALLONGE_API_KEY is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	bootstrap.Info().
		Str("db_path", cfg.DBPath).
		Str("server_port", cfg.ServerPort).
		Str("log_level", cfg.LogLevel).
		Str("challonge_base_url", cfg.ChallongeBaseURL).
		Msg("configuration loaded")

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

var Module = fx.Provide(Load)
