package migrations

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"ms-attendance/internal/logger"
	"ms-attendance/internal/models"
)

//go:embed sql/*.sql
var sqlFiles embed.FS

// MigrateOptions controls what a Runner does after the schema is current.
type MigrateOptions struct {
	// SeedData inserts a published sample event after the schema is applied.
	SeedData bool
	// SeedOrganizerID owns the sample event.
	SeedOrganizerID string
}

func DefaultOptions() MigrateOptions {
	return MigrateOptions{
		SeedData:        false,
		SeedOrganizerID: "seed-organizer",
	}
}

// Runner applies the embedded SQL migrations through golang-migrate.
type Runner struct {
	bunDB    *bun.DB
	options  MigrateOptions
	logger   *logger.Logger
	migrator *migrate.Migrate
}

func NewRunner(bunDB *bun.DB, opts MigrateOptions, log *logger.Logger) *Runner {
	return &Runner{
		bunDB:   bunDB,
		options: opts,
		logger:  log,
	}
}

// Initialize binds the embedded sources to the database connection.
func (r *Runner) Initialize() error {
	driver, err := postgres.WithInstance(r.bunDB.DB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create postgres migration driver: %w", err)
	}

	source, err := iofs.New(sqlFiles, "sql")
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	r.migrator = migrator
	return nil
}

func (r *Runner) ensure() error {
	if r.migrator != nil {
		return nil
	}
	return r.Initialize()
}

// RunMigrations applies pending migrations, repairs a dirty state and seeds when asked.
func (r *Runner) RunMigrations(ctx context.Context) error {
	if err := r.ensure(); err != nil {
		return err
	}

	version, dirty, err := r.migrator.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to get migration version: %w", err)
	}
	if dirty {
		r.logger.Warn("MIGRATE", fmt.Sprintf("Detected dirty migration at version %d, forcing previous version", version))
		previous := int(version) - 1
		if previous == 0 {
			previous = -1 // nil version
		}
		if err := r.migrator.Force(previous); err != nil {
			return fmt.Errorf("failed to fix dirty migration: %w", err)
		}
	}

	if err := r.MigrateUp(); err != nil {
		return err
	}

	version, _, err = r.migrator.Version()
	if err == nil {
		r.logger.LogDatabase("MIGRATE", "schema", fmt.Sprintf("current schema version: %d", version))
	} else if !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if r.options.SeedData {
		return r.Seed(ctx)
	}
	return nil
}

func (r *Runner) MigrateUp() error {
	if err := r.ensure(); err != nil {
		return err
	}

	if err := r.migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// MigrateDown rolls every migration back. Used by cmd/migrate -down.
func (r *Runner) MigrateDown() error {
	if err := r.ensure(); err != nil {
		return err
	}

	if err := r.migrator.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration down failed: %w", err)
	}
	return nil
}

// Seed inserts one published sample event with a small capacity and a bring list.
func (r *Runner) Seed(ctx context.Context) error {
	now := time.Now().UTC()
	capacity := 10
	event := &models.Event{
		ID:               uuid.NewString(),
		OrganizerID:      r.options.SeedOrganizerID,
		Title:            "Neighbourhood potluck",
		Description:      "Bring a dish and meet the neighbours.",
		Location:         "Community hall",
		StartsAt:         now.Add(7 * 24 * time.Hour),
		DurationMinutes:  180,
		Capacity:         &capacity,
		MaxGuestsPerRSVP: 2,
		Status:           models.EventStatusPublished,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	items := []models.BringListItem{
		{Item: "Paper plates", QuantityNeeded: 50},
		{Item: "Lemonade", QuantityNeeded: 4},
		{Item: "Folding chairs", QuantityNeeded: 10},
	}

	return r.bunDB.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(event).Exec(ctx); err != nil {
			return fmt.Errorf("seed event: %w", err)
		}
		for i := range items {
			items[i].ID = uuid.NewString()
			items[i].EventID = event.ID
			items[i].CreatedBy = event.OrganizerID
			items[i].CreatedAt = now
			items[i].UpdatedAt = now
		}
		if _, err := tx.NewInsert().Model(&items).Exec(ctx); err != nil {
			return fmt.Errorf("seed bring list: %w", err)
		}
		r.logger.LogDatabase("SEED", "events", fmt.Sprintf("seeded sample event %s", event.ID))
		return nil
	})
}

func (r *Runner) Close() error {
	if r.migrator != nil {
		sourceErr, databaseErr := r.migrator.Close()
		if sourceErr != nil {
			return fmt.Errorf("error closing migrator source: %w", sourceErr)
		}
		if databaseErr != nil {
			return fmt.Errorf("error closing migrator database: %w", databaseErr)
		}
	}
	return nil
}
