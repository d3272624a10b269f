package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDaemonConfigDefaults(t *testing.T) {
	path := writeConfigFile(t, `
operator = "op"
oracle = "orc"
`)
	cfg, err := loadDaemonConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != ":8642" {
		t.Fatalf("expected default listen addr, got %q", cfg.ListenAddr)
	}
	if cfg.Operator != "op" || cfg.Oracle != "orc" {
		t.Fatalf("identities not loaded: %+v", cfg)
	}
	if cfg.MintPrice != 0 {
		t.Fatalf("expected unset mint price to stay zero, got %d", cfg.MintPrice)
	}
}

func TestLoadDaemonConfigFullFile(t *testing.T) {
	path := writeConfigFile(t, `
listen_addr = ":9000"
operator = "op"
oracle = "orc"
mint_price_wei = 40000000000000000
max_mint_units = 10
rebate_wei = 20000000000000000
randomness_fee_wei = 2000000000000000000
growth_cycle = "3h"
watering_window = "1h"
promotion_end = "2026-09-01T00:00:00Z"
log_json = true
`)
	cfg, err := loadDaemonConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != ":9000" || cfg.MaxMintUnits != 10 || !cfg.LogJSON {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.GrowthCycle != 3*time.Hour || cfg.WateringWindow != time.Hour {
		t.Fatalf("unexpected schedule: %v / %v", cfg.GrowthCycle, cfg.WateringWindow)
	}
	want := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	if !cfg.PromotionEnd.Equal(want) {
		t.Fatalf("unexpected promotion end %v", cfg.PromotionEnd)
	}

	svc := cfg.serviceConfig()
	if svc.Operator != "op" || svc.Oracle != "orc" {
		t.Fatalf("service config identities: %+v", svc)
	}
	if svc.Schedule.GrowthCycle != 3*time.Hour {
		t.Fatalf("service schedule not mapped: %+v", svc.Schedule)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `
listen_addr = ":9000"
operator = "op"
oracle = "orc"
growth_cycle = "3h"
`)
	t.Setenv("ORCHIDD_LISTEN_ADDR", ":7777")
	t.Setenv("ORCHIDD_OPERATOR", "env-op")
	t.Setenv("ORCHIDD_GROWTH_CYCLE", "10m")

	cfg, err := loadDaemonConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != ":7777" {
		t.Fatalf("env listen addr not applied: %q", cfg.ListenAddr)
	}
	if cfg.Operator != "env-op" {
		t.Fatalf("env operator not applied: %q", cfg.Operator)
	}
	if cfg.GrowthCycle != 10*time.Minute {
		t.Fatalf("env growth cycle not applied: %v", cfg.GrowthCycle)
	}
	if cfg.Oracle != "orc" {
		t.Fatalf("file oracle lost: %q", cfg.Oracle)
	}
}

func TestMissingIdentitiesRejected(t *testing.T) {
	path := writeConfigFile(t, `
listen_addr = ":9000"
`)
	if _, err := loadDaemonConfig(path); err == nil || !strings.Contains(err.Error(), "operator") {
		t.Fatalf("expected operator error, got %v", err)
	}

	path = writeConfigFile(t, `
operator = "op"
`)
	if _, err := loadDaemonConfig(path); err == nil || !strings.Contains(err.Error(), "oracle") {
		t.Fatalf("expected oracle error, got %v", err)
	}
}

func TestInvalidDurationRejected(t *testing.T) {
	path := writeConfigFile(t, `
operator = "op"
oracle = "orc"
growth_cycle = "not-a-duration"
`)
	if _, err := loadDaemonConfig(path); err == nil {
		t.Fatalf("expected duration parse error")
	}
}
