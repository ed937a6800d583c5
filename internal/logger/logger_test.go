package logger

import (
	"testing"

	"granpix/internal/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNewAppliesConfiguredLevel(t *testing.T) {
	log := New(&config.Config{LogLevel: "warn"})
	assert.Equal(t, zerolog.WarnLevel, log.GetLevel())
}

func TestNewFallsBackToInfo(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, New(&config.Config{LogLevel: "verbose"}).GetLevel())
	assert.Equal(t, zerolog.InfoLevel, New(&config.Config{}).GetLevel())
}
