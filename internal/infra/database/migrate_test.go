package database

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v2"
	"go.uber.org/zap/zaptest"
)

func TestMigrationVersionsSorted(t *testing.T) {
	versions, err := MigrationVersions()
	if err != nil {
		t.Fatalf("MigrationVersions returned error: %v", err)
	}
	if len(versions) < 4 {
		t.Fatalf("expected embedded migrations, got %v", versions)
	}
	for i := 1; i < len(versions); i++ {
		if versions[i-1] >= versions[i] {
			t.Fatalf("versions not sorted: %v", versions)
		}
	}
}

func TestRunMigrationsSkipsApplied(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("create pgxmock: %v", err)
	}
	defer mock.Close()

	versions, err := MigrationVersions()
	if err != nil {
		t.Fatalf("MigrationVersions returned error: %v", err)
	}

	mock.ExpectExec("CREATE SCHEMA IF NOT EXISTS portal").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(pgxmock.NewResult("CREATE", 0))

	for i, version := range versions {
		applied := i < len(versions)-1
		mock.ExpectQuery("SELECT EXISTS").
			WithArgs(version).
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(applied))
		if applied {
			continue
		}
		mock.ExpectBegin()
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS").WillReturnResult(pgxmock.NewResult("CREATE", 0))
		mock.ExpectExec("INSERT INTO schema_migrations").WithArgs(version).WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectCommit()
		mock.ExpectRollback()
	}

	if err := RunMigrations(context.Background(), mock, zaptest.NewLogger(t)); err != nil {
		t.Fatalf("RunMigrations returned error: %v", err)
	}
}
