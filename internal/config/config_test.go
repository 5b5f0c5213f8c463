package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"orderlink/internal/model"
)

func TestLoadFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "orderlink.yaml")
	data := []byte(`
databaseUrl: postgres://file
reconcile:
  interval: 30s
  batchSize: 25
ingest:
  businessHours: {startHour: 9, endHour: 18}
seedAccounts:
  - provider: courier
    accountId: acc1
    operations:
      - {id: op1, orderNumberPrefix: "AA-"}
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DATABASE_URL", "postgres://env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DatabaseURL != "postgres://env" {
		t.Fatalf("env must win, got %q", cfg.DatabaseURL)
	}
	if cfg.Reconcile.Interval.Std() != 30*time.Second || cfg.Reconcile.BatchSize != 25 {
		t.Fatalf("file values not applied: %+v", cfg.Reconcile)
	}
	if cfg.Ingest.BusinessHours.StartHour != 9 {
		t.Fatalf("window not applied: %+v", cfg.Ingest.BusinessHours)
	}
	if len(cfg.Seed) != 1 || cfg.Seed[0].Provider != model.ProviderCourier || cfg.Seed[0].Operations[0].OrderNumberPrefix != "AA-" {
		t.Fatalf("seed accounts not parsed: %+v", cfg.Seed)
	}
	// untouched defaults survive
	if cfg.Reconcile.RecordTimeout.Std() != 15*time.Second {
		t.Fatalf("default lost: %v", cfg.Reconcile.RecordTimeout.Std())
	}
}

func TestWindowContains(t *testing.T) {
	w := Window{StartHour: 8, EndHour: 20}
	in := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	edge := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	out := time.Date(2026, 3, 1, 3, 0, 0, 0, time.UTC)
	if !w.Contains(in) || w.Contains(edge) || w.Contains(out) {
		t.Fatalf("window membership wrong: %v %v %v", w.Contains(in), w.Contains(edge), w.Contains(out))
	}
}
