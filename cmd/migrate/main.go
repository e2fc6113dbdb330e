package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/tullo/wordguard/config"
	"github.com/tullo/wordguard/internal/database"
	"github.com/tullo/wordguard/internal/logging"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.Open(cfg.Database.Driver, cfg.GetDSN())
	if err != nil {
		return err
	}
	defer db.Close()

	app := &cli.Command{
		Name:  "migrate",
		Usage: "Database schema management",
		Commands: []*cli.Command{
			{
				Name:  "up",
				Usage: "Run pending migrations",
				Action: func(ctx context.Context, _ *cli.Command) error {
					if err := database.RunMigrations(ctx, db, logger); err != nil {
						return err
					}
					version, err := database.CurrentVersion(ctx, db)
					if err != nil {
						return err
					}
					logger.Info("Database is up to date", zap.Int("version", version))
					return nil
				},
			},
			{
				Name:  "down",
				Usage: "Roll back the most recent migration",
				Action: func(ctx context.Context, _ *cli.Command) error {
					version, err := database.RollbackLast(ctx, db, logger)
					if err != nil {
						return err
					}
					if version == 0 {
						logger.Info("No migrations to roll back")
						return nil
					}
					logger.Info("Rolled back migration", zap.Int("version", version))
					return nil
				},
			},
			{
				Name:  "status",
				Usage: "Show applied and pending migrations",
				Action: func(ctx context.Context, _ *cli.Command) error {
					applied, err := database.Status(ctx, db)
					if err != nil {
						return err
					}

					done := make(map[int]bool, len(applied))
					fmt.Println("Applied migrations:")
					for _, m := range applied {
						done[m.Version] = true
						fmt.Printf("  %d  %s\n", m.Version, m.AppliedAt.Format("2006-01-02 15:04:05"))
					}

					fmt.Println("Pending migrations:")
					pending := 0
					for _, m := range database.Migrations(db.Driver) {
						if !done[m.Version] {
							fmt.Printf("  %d\n", m.Version)
							pending++
						}
					}
					if pending == 0 {
						fmt.Println("  none")
					}
					return nil
				},
			},
		},
	}

	return app.Run(context.Background(), os.Args)
}
