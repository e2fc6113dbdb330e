package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/tullo/wordguard/config"
	"github.com/tullo/wordguard/internal/audit"
	"github.com/tullo/wordguard/internal/auth"
	"github.com/tullo/wordguard/internal/database"
	"github.com/tullo/wordguard/internal/logging"
	"github.com/tullo/wordguard/internal/models"
	"github.com/tullo/wordguard/internal/repository"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

var ErrUserIDRequired = errors.New("USER_ID argument required")

// deps are opened lazily so that commands like token work without a database.
type deps struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *database.DB
}

func (d *deps) store(ctx context.Context) (*repository.Store, error) {
	if d.db == nil {
		db, err := database.Open(d.cfg.Database.Driver, d.cfg.GetDSN())
		if err != nil {
			return nil, err
		}
		if err := database.RunMigrations(ctx, db, d.logger); err != nil {
			db.Close()
			return nil, err
		}
		d.db = db
	}
	return repository.NewStore(d.db), nil
}

func (d *deps) close() {
	if d.db != nil {
		d.db.Close()
	}
}

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

	d := &deps{cfg: cfg, logger: logger}
	defer d.close()

	app := &cli.Command{
		Name:  "admin",
		Usage: "Operator tooling",
		Commands: []*cli.Command{
			{
				Name:  "token",
				Usage: "Issue an operator API token",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "user-id", Usage: "platform user id", Required: true},
					&cli.StringFlag{Name: "username", Usage: "name recorded in the token"},
				},
				Action: handleToken(d),
			},
			{
				Name:      "grant-super",
				Usage:     "Make a user a super admin",
				ArgsUsage: "USER_ID",
				Action:    handleGrantSuper(d),
			},
			{
				Name:      "revoke-super",
				Usage:     "Remove a user's super admin grant",
				ArgsUsage: "USER_ID",
				Action:    handleRevokeSuper(d),
			},
			{
				Name:  "import-logs",
				Usage: "Import JSON line violation logs into the store",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "file", Usage: "a single log file"},
					&cli.StringFlag{Name: "dir", Usage: "a directory of *.jsonl files", Value: cfg.Log.Dir},
				},
				Action: handleImportLogs(d),
			},
			{
				Name:  "export-logs",
				Usage: "Write every stored violation log as JSON lines",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "out", Usage: "output file", Required: true},
				},
				Action: handleExportLogs(d),
			},
		},
	}

	return app.Run(context.Background(), os.Args)
}

func handleToken(d *deps) cli.ActionFunc {
	return func(_ context.Context, c *cli.Command) error {
		jwtService := auth.NewJWTService(d.cfg.JWT.Secret, d.cfg.JWT.ExpiryHours)
		token, err := jwtService.GenerateToken(c.Int("user-id"), c.String("username"))
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	}
}

func parseUserID(c *cli.Command) (int64, error) {
	if c.Args().Len() != 1 {
		return 0, ErrUserIDRequired
	}
	id, err := strconv.ParseInt(c.Args().First(), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid USER_ID: %w", err)
	}
	return id, nil
}

func handleGrantSuper(d *deps) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		id, err := parseUserID(c)
		if err != nil {
			return err
		}
		store, err := d.store(ctx)
		if err != nil {
			return err
		}
		inserted, err := store.InsertModeratorGrant(ctx, id, models.SuperScope)
		if err != nil {
			return err
		}
		d.logger.Info("Super admin grant", zap.Int64("user_id", id), zap.Bool("created", inserted))
		return nil
	}
}

func handleRevokeSuper(d *deps) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		id, err := parseUserID(c)
		if err != nil {
			return err
		}
		store, err := d.store(ctx)
		if err != nil {
			return err
		}
		deleted, err := store.DeleteModeratorGrant(ctx, id, models.SuperScope)
		if err != nil {
			return err
		}
		d.logger.Info("Super admin revoke", zap.Int64("user_id", id), zap.Bool("removed", deleted))
		return nil
	}
}

func handleImportLogs(d *deps) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		var (
			logs []models.ViolationLog
			err  error
		)
		if file := c.String("file"); file != "" {
			logs, err = audit.ReadFile(file)
		} else {
			logs, err = audit.ReadDir(c.String("dir"))
		}
		if err != nil {
			return err
		}

		store, err := d.store(ctx)
		if err != nil {
			return err
		}

		imported := 0
		for i := range logs {
			entry := logs[i]
			entry.ID = 0
			if err := store.EnsureChat(ctx, entry.ChatID, ""); err != nil {
				return err
			}
			if err := store.AppendViolationLog(ctx, &entry); err != nil {
				return fmt.Errorf("failed to import entry %d: %w", i+1, err)
			}
			imported++
		}

		d.logger.Info("Imported violation logs", zap.Int("count", imported))
		return nil
	}
}

func handleExportLogs(d *deps) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		store, err := d.store(ctx)
		if err != nil {
			return err
		}
		logs, err := store.AllViolationLogs(ctx)
		if err != nil {
			return err
		}

		f, err := os.Create(c.String("out"))
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()

		w := audit.NewWriter(f)
		for i := range logs {
			if err := w.Record(&logs[i]); err != nil {
				return err
			}
		}
		if err := w.Sync(); err != nil {
			return err
		}

		d.logger.Info("Exported violation logs", zap.Int("count", len(logs)), zap.String("out", c.String("out")))
		return nil
	}
}
