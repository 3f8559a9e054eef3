package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"

	"github.com/localstall/stallmarket-backend/pkg/config"
	"github.com/localstall/stallmarket-backend/pkg/db"
	"github.com/localstall/stallmarket-backend/pkg/logger"
	"github.com/localstall/stallmarket-backend/pkg/migrate"
)

func main() {
	cmd := flag.String("cmd", "up", "migration command: up|down|status|version|create|validate")
	dir := flag.String("dir", "", "migrations directory on disk (default: embedded set; pkg/migrate/migrations for create)")
	name := flag.String("name", "", "migration name for -cmd=create, e.g. create_stall_tags")
	version := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "migrate"})
	ctx := logg.WithField(context.Background(), "cmd", *cmd)

	// create and validate work on files only.
	switch *cmd {
	case "create":
		target := *dir
		if target == "" {
			target = migrate.DefaultDir
		}
		path, err := migrate.CreateSQLMigration(target, *name)
		exitOn(ctx, logg, "create migration", err)
		fmt.Println("created migration:", path)
		return
	case "validate":
		var err error
		if *dir == "" {
			err = migrate.ValidateFS(migrate.Embedded())
		} else {
			err = migrate.ValidateDir(*dir)
		}
		exitOn(ctx, logg, "validate migrations", err)
		fmt.Println("migration validation passed")
		return
	}

	_ = godotenv.Load()
	cfg, err := config.Load()
	exitOn(ctx, logg, "load config", err)
	if cfg.FeatureFlags.UseSQLite {
		exitOn(ctx, logg, "select database", fmt.Errorf("goose migrations target postgres; sqlite dev databases auto-migrate on startup"))
	}

	logg = logger.ForApp("migrate", cfg.App)
	ctx = logg.WithField(context.Background(), "cmd", *cmd)

	dbClient, err := db.New(ctx, cfg.DB, false, logg)
	exitOn(ctx, logg, "connect database", err)
	defer dbClient.Close()

	sqlDB, err := dbClient.DB().DB()
	exitOn(ctx, logg, "open sql database", err)

	runner, err := migrate.NewRunner(sqlDB, *dir)
	exitOn(ctx, logg, "load migrations", err)

	switch *cmd {
	case "up":
		results, err := runner.Up(ctx)
		logResults(ctx, logg, results...)
		exitOn(ctx, logg, "migrate up", err)
	case "down":
		result, err := runner.Down(ctx)
		if result != nil {
			logResults(ctx, logg, result)
		}
		exitOn(ctx, logg, "migrate down", err)
	case "status":
		statuses, err := runner.Status(ctx)
		exitOn(ctx, logg, "migration status", err)
		for _, st := range statuses {
			applied := "-"
			if !st.AppliedAt.IsZero() {
				applied = st.AppliedAt.UTC().Format("2006-01-02 15:04:05")
			}
			fmt.Printf("%-8s %-20s %s\n", st.State, applied, st.Source.Path)
		}
	case "version":
		target, err := migrate.ParseVersion(*version)
		exitOn(ctx, logg, "parse version", err)
		results, err := runner.To(ctx, target)
		logResults(ctx, logg, results...)
		exitOn(ctx, logg, "migrate to version", err)
	default:
		exitOn(ctx, logg, "dispatch", fmt.Errorf("unknown -cmd value %q", *cmd))
	}
}

func logResults(ctx context.Context, logg *logger.Logger, results ...*goose.MigrationResult) {
	for _, res := range results {
		if res == nil || res.Source == nil {
			continue
		}
		fields := logg.WithFields(ctx, map[string]any{
			"version":     res.Source.Version,
			"direction":   res.Direction,
			"duration_ms": res.Duration.Milliseconds(),
		})
		if res.Error != nil {
			logg.Error(fields, "migration failed", res.Error)
			continue
		}
		logg.Info(fields, "migration applied")
	}
}

func exitOn(ctx context.Context, logg *logger.Logger, step string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, step+" failed", err)
	os.Exit(1)
}
