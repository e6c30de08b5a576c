package bootstrap

import (
	"context"
	"path/filepath"
	"testing"

	"caseflow/internal/bootstrap/config"
	"caseflow/internal/bootstrap/database"
)

func TestInitSchemaReportsCreatedTablesOnce(t *testing.T) {
	ctx := context.Background()
	cfg := config.Config{Database: config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "state", "caseflow.sqlite"),
	}}
	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	app := &App{Config: cfg, DB: db}
	t.Cleanup(func() { _ = app.Close(ctx) })

	created, err := app.InitSchema(ctx)
	if err != nil {
		t.Fatalf("InitSchema() error = %v", err)
	}
	if len(created) != 7 || created[0] != "cases" {
		t.Fatalf("InitSchema() created = %v", created)
	}

	created, err = app.InitSchema(ctx)
	if err != nil {
		t.Fatalf("second InitSchema() error = %v", err)
	}
	if len(created) != 0 {
		t.Fatalf("second InitSchema() created = %v", created)
	}
}
