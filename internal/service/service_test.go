package service

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"granpix/internal/database"
	"granpix/internal/domain"
	"granpix/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *repository.Store {
	t.Helper()

	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "granpix_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, database.RunMigrations(db, zerolog.Nop()))
	return repository.NewStore(db, zerolog.Nop())
}

// fixture bundles the services under test with seeding helpers. All
// services share one store and one lock table, as in production.
type fixture struct {
	t     *testing.T
	ctx   context.Context
	store *repository.Store
	locks *StageLocks

	stages     *StageService
	enrollment *EnrollmentService
	qualifying *QualifyingService
	battles    *BattleService
	garage     *GarageService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := newTestStore(t)
	locks := NewStageLocks()
	log := zerolog.Nop()

	return &fixture{
		t:          t,
		ctx:        context.Background(),
		store:      store,
		locks:      locks,
		stages:     NewStageService(store, locks, log),
		enrollment: NewEnrollmentService(store, locks, log),
		qualifying: NewQualifyingService(store, locks, log),
		battles:    NewBattleService(store, locks, log),
		garage:     NewGarageService(store, log),
	}
}

func (f *fixture) createStage(state domain.StageState) *domain.Stage {
	f.t.Helper()

	stage := &domain.Stage{
		ID:             uuid.NewString(),
		ChampionshipID: uuid.NewString(),
		Number:         1,
		Name:           "Etapa 1",
		Series:         "A",
		ScheduledAt:    time.Now().Add(24 * time.Hour),
		State:          domain.StageScheduled,
	}
	require.NoError(f.t, f.store.Stages.Create(f.ctx, stage))
	if state != domain.StageScheduled {
		require.NoError(f.t, f.store.Stages.SetState(f.ctx, stage.ID, state))
		stage.State = state
	}
	return stage
}

func (f *fixture) createTeam(name string, pixBalance float64) *domain.Team {
	f.t.Helper()

	team := &domain.Team{
		ID:         uuid.NewString(),
		Name:       name,
		PixBalance: pixBalance,
		Series:     "A",
	}
	require.NoError(f.t, f.store.Teams.Create(f.ctx, team))
	return team
}

func (f *fixture) createCar(teamID string) *domain.Car {
	f.t.Helper()

	car := &domain.Car{
		ID:     uuid.NewString(),
		TeamID: teamID,
		Brand:  "Nissan",
		Model:  "Silvia S15",
	}
	require.NoError(f.t, f.store.Teams.CreateCar(f.ctx, car))
	return car
}

func (f *fixture) createDriver(name string) *domain.Driver {
	f.t.Helper()

	driver := &domain.Driver{
		ID:     uuid.NewString(),
		Name:   name,
		Series: "A",
	}
	require.NoError(f.t, f.store.Teams.CreateDriver(f.ctx, driver))
	return driver
}

func (f *fixture) createPart(carID string, kind domain.PartKind, maxDurability, coefficient float64) *domain.Part {
	f.t.Helper()

	part := &domain.Part{
		ID:               uuid.NewString(),
		Kind:             kind,
		Name:             string(kind),
		MaxDurability:    maxDurability,
		Durability:       maxDurability,
		BreakCoefficient: coefficient,
		Installed:        true,
		CarID:            carID,
	}
	require.NoError(f.t, f.store.Parts.Create(f.ctx, part))
	return part
}

// enrollTeam seeds a funded team with a car and enrolls it in the
// stage, which must still be open for enrollment.
func (f *fixture) enrollTeam(stageID, name string) (*domain.Team, *domain.Car) {
	f.t.Helper()

	team := f.createTeam(name, 10_000)
	car := f.createCar(team.ID)
	_, err := f.enrollment.Enroll(f.ctx, stageID, team.ID, car.ID, domain.HasDriver)
	require.NoError(f.t, err)
	return team, car
}

func (f *fixture) setSetting(key string, value float64) {
	f.t.Helper()
	require.NoError(f.t, f.store.Settings.Set(f.ctx, key, value))
}
