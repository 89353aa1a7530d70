package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-attendance/internal/config"
	"ms-attendance/internal/database/migrations"
	"ms-attendance/internal/logger"
)

func main() {
	down := flag.Bool("down", false, "roll back every migration instead of applying them")
	seed := flag.Bool("seed", false, "insert a published sample event after migrating")
	organizer := flag.String("organizer", "seed-organizer", "organizer id that owns the sample event")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()

	log := logger.NewLogger(cfg.Log.Dir, "attendance-migrate")
	defer log.Close()

	sqldb, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to open PostgreSQL: %v", err))
	}
	bunDB := bun.NewDB(sqldb, pgdialect.New())
	defer bunDB.Close()

	ctx := context.Background()
	if err := bunDB.PingContext(ctx); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
	}

	opts := migrations.DefaultOptions()
	opts.SeedData = *seed
	opts.SeedOrganizerID = *organizer

	runner := migrations.NewRunner(bunDB, opts, log)
	defer runner.Close()

	if *down {
		if err := runner.MigrateDown(); err != nil {
			log.Error("MIGRATE", err.Error())
			os.Exit(1)
		}
		log.Info("MIGRATE", "✅ All migrations rolled back")
		return
	}

	if err := runner.RunMigrations(ctx); err != nil {
		log.Error("MIGRATE", err.Error())
		os.Exit(1)
	}
	log.Info("MIGRATE", "✅ Migrations applied")
}
