package database

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"strings"
	"testing"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap/zaptest"

	"github.com/arklim/account-auth-service/internal/infra/config"
	"github.com/arklim/account-auth-service/internal/infra/database/migrations"
)

func TestMigrationsAreEmbedded(t *testing.T) {
	names, err := fs.Glob(migrations.FS, "*.sql")
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(names) != 2 {
		t.Fatalf("expected 2 migrations, got %v", names)
	}
	for _, name := range names {
		body, err := fs.ReadFile(migrations.FS, name)
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if !strings.Contains(string(body), "-- +goose Up") || !strings.Contains(string(body), "-- +goose Down") {
			t.Fatalf("%s is missing goose annotations", name)
		}
	}
}

func TestMigrateRunsGooseAgainstEmbeddedFS(t *testing.T) {
	original := gooseUp
	t.Cleanup(func() { gooseUp = original })

	var called bool
	gooseUp = func(_ context.Context, _ *sql.DB, dir string, _ ...goose.OptionsFunc) error {
		called = true
		if dir != "." {
			t.Fatalf("expected migrations from FS root, got %q", dir)
		}
		return nil
	}

	if err := migrate(context.Background(), nil, zaptest.NewLogger(t)); err != nil {
		t.Fatalf("migrate returned error: %v", err)
	}
	if !called {
		t.Fatal("expected goose to run")
	}
}

func TestMigrateWrapsGooseErrors(t *testing.T) {
	original := gooseUp
	t.Cleanup(func() { gooseUp = original })

	boom := errors.New("boom")
	gooseUp = func(context.Context, *sql.DB, string, ...goose.OptionsFunc) error { return boom }

	if err := migrate(context.Background(), nil, zaptest.NewLogger(t)); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped goose error, got %v", err)
	}
}

func TestDSN(t *testing.T) {
	dsn := DSN(config.PostgresSettings{
		Host:     "db",
		Port:     5432,
		User:     "auth",
		Password: "p@ss word",
		Database: "auth",
		SSLMode:  "disable",
	})
	if dsn != "postgres://auth:p%40ss%20word@db:5432/auth?sslmode=disable" {
		t.Fatalf("unexpected dsn %q", dsn)
	}
}
