package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/angelmondragon/slotbook-backend/pkg/migrate"
)

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", "*_"+suffix+".sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no %s migration file found", suffix)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func TestSlotsMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "create_slots")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS slots",
		"CHECK (capacity >= 0)",
		"CHECK (reserved >= 0)",
		"UNIQUE (slot_date, time_window)",
		"DROP TABLE IF EXISTS slots",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestInventoryMigrationAllowsNegativeStock(t *testing.T) {
	content := readMigration(t, "create_inventory")

	if strings.Contains(content, "CHECK (stock_qty >= 0)") {
		t.Fatalf("stock_qty must be allowed to go negative for backorders")
	}
	checks := []string{
		"PRIMARY KEY (product_id, variant_key)",
		"CREATE TABLE IF NOT EXISTS stock_movements",
		"CHECK (quantity > 0)",
		"DROP TABLE IF EXISTS stock_movements",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestOrdersMigrationIndexesHeldExpiry(t *testing.T) {
	content := readMigration(t, "create_orders")
	if !strings.Contains(content, "WHERE reservation_status = 'HELD'") {
		t.Fatalf("expected partial index on held reservations")
	}
}

func TestValidateDir(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("expected shipped migrations to validate: %v", err)
	}

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad-name.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := migrate.ValidateDir(dir); err == nil {
		t.Fatalf("expected invalid filename to fail validation")
	}
}

func TestEmbeddedMigrationsValidate(t *testing.T) {
	if err := migrate.ValidateFS(migrate.Embedded()); err != nil {
		t.Fatalf("embedded migrations should validate: %v", err)
	}
}

func TestValidateFSReportsEveryProblem(t *testing.T) {
	fsys := fstest.MapFS{
		"20260101000000_flipped.sql":    {Data: []byte("-- +goose Down\n-- +goose Up\n")},
		"20260101000001_unbalanced.sql": {Data: []byte("-- +goose Up\n-- +goose StatementBegin\n-- +goose Down\n")},
		"20260101000002_first.sql":      {Data: []byte("-- +goose Up\n-- +goose Down\n")},
		"20260101000002_second.sql":     {Data: []byte("-- +goose Up\n-- +goose Down\n")},
		"README.md":                     {Data: []byte("ignored")},
	}
	err := migrate.ValidateFS(fsys)
	if err == nil {
		t.Fatalf("expected validation errors")
	}
	for _, want := range []string{"Down before Up", "StatementBegin", "duplicate migration version"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in %v", want, err)
		}
	}
}

func TestValidateFSRejectsEmptySet(t *testing.T) {
	if err := migrate.ValidateFS(fstest.MapFS{}); err == nil {
		t.Fatalf("expected empty migration set to fail")
	}
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, "Add Slot Notes!")
	if err != nil {
		t.Fatalf("create migration: %v", err)
	}
	if !strings.HasSuffix(path, "_add_slot_notes.sql") {
		t.Fatalf("unexpected migration path %q", path)
	}
	if err := migrate.ValidateDir(dir); err != nil {
		t.Fatalf("generated migration should validate: %v", err)
	}
}
