package bootstrap

import (
	"context"
	"errors"
	"log/slog"

	"gorm.io/gorm"

	"caseflow/internal/bootstrap/config"
	"caseflow/internal/bootstrap/database"
	"caseflow/internal/bootstrap/logging"
	"caseflow/internal/errs"
	"caseflow/internal/infrastructure/persistence/gormstore/model"
)

type App struct {
	Config config.Config
	DB     *gorm.DB
}

func New(ctx context.Context, configFile string) (*App, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.app"))
	logging.Info(logCtx, "loading application config", slog.String("config_file", configFile))

	cfg, err := config.Load(logCtx, configFile)
	if err != nil {
		return nil, errs.Wrap(err, "load config")
	}
	if err := configureLogger(cfg.Log); err != nil {
		return nil, err
	}

	db, err := database.Open(logCtx, cfg.Database)
	if err != nil {
		return nil, errs.Wrap(err, "open database")
	}

	return &App{Config: cfg, DB: db}, nil
}

// InitSchema creates or updates the case, allocation log, QC review,
// submission and cache tables. It returns the tables that did not exist before.
func (a *App) InitSchema(ctx context.Context) ([]string, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.app"))
	logging.Info(logCtx, "start schema migration", slog.String("driver", a.Config.Database.Driver))

	db := a.DB.WithContext(ctx)
	migrator := db.Migrator()
	created := make([]string, 0)
	for _, m := range model.All() {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(m); err != nil {
			return nil, errs.Wrap(err, "parse model")
		}
		table := stmt.Schema.Table
		existed := migrator.HasTable(m)
		if err := migrator.AutoMigrate(m); err != nil {
			return nil, errs.Wrapf(err, "auto migrate %s", table)
		}
		if !existed {
			created = append(created, table)
		}
	}

	logging.Info(logCtx, "schema migration completed", slog.Any("created_tables", created))
	return created, nil
}

func (a *App) Close(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	sqlDB, err := a.DB.DB()
	if err != nil {
		return errs.Wrap(err, "get sql db")
	}
	if err := sqlDB.Close(); err != nil {
		return errs.Wrap(err, "close sql db")
	}

	logging.Info(logging.WithAttrs(ctx, slog.String("component", "bootstrap.app")), "database connection closed")
	return nil
}
