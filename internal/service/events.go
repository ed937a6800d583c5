package service

import (
	"context"

	"granpix/internal/domain"

	"github.com/rs/zerolog"
)

// Publisher receives stage lifecycle events for downstream consumers.
// Championship standings are recomputed outside this engine.
type Publisher interface {
	ClassificationFinalized(ctx context.Context, event domain.ClassificationFinalized)
}

// LogPublisher is the default sink: it records the event and leaves
// consumption to whoever tails the log stream.
type LogPublisher struct {
	logger zerolog.Logger
}

func NewLogPublisher(logger zerolog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) ClassificationFinalized(ctx context.Context, event domain.ClassificationFinalized) {
	p.logger.Info().
		Str("stage_id", event.StageID).
		Str("championship_id", event.ChampionshipID).
		Int("placements", len(event.Placements)).
		Msg("classification finalized")
}
