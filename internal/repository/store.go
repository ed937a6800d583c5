package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx so that every query
// method can run standalone or inside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store aggregates the repositories over one database handle. Services
// depend on Store; they never embed SQL themselves.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger

	Stages      *StageRepository
	Teams       *TeamRepository
	Enrollment  *EnrollmentRepository
	Scores      *ScoreRepository
	Parts       *PartRepository
	Battles     *BattleRepository
	Settings    *SettingsRepository
	Classifieds *ClassificationRepository
}

func NewStore(db *sql.DB, logger zerolog.Logger) *Store {
	return &Store{
		db:          db,
		logger:      logger,
		Stages:      &StageRepository{db: db, logger: logger},
		Teams:       &TeamRepository{db: db, logger: logger},
		Enrollment:  &EnrollmentRepository{db: db, logger: logger},
		Scores:      &ScoreRepository{db: db, logger: logger},
		Parts:       &PartRepository{db: db, logger: logger},
		Battles:     &BattleRepository{db: db, logger: logger},
		Settings:    &SettingsRepository{db: db, logger: logger},
		Classifieds: &ClassificationRepository{db: db, logger: logger},
	}
}

// WithTx returns a Store whose repositories run against tx.
func (s *Store) WithTx(tx *sql.Tx) *Store {
	return &Store{
		db:          s.db,
		logger:      s.logger,
		Stages:      &StageRepository{db: tx, logger: s.logger},
		Teams:       &TeamRepository{db: tx, logger: s.logger},
		Enrollment:  &EnrollmentRepository{db: tx, logger: s.logger},
		Scores:      &ScoreRepository{db: tx, logger: s.logger},
		Parts:       &PartRepository{db: tx, logger: s.logger},
		Battles:     &BattleRepository{db: tx, logger: s.logger},
		Settings:    &SettingsRepository{db: tx, logger: s.logger},
		Classifieds: &ClassificationRepository{db: tx, logger: s.logger},
	}
}

// InTx runs fn inside a single transaction; all-or-nothing per
// operation per the shared-resource policy.
func (s *Store) InTx(ctx context.Context, fn func(*Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(s.WithTx(tx)); err != nil {
		return err
	}
	return tx.Commit()
}
