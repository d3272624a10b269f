package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"orchidcore/internal/core"
	"orchidcore/pkg/domain"
)

// daemonConfig is the effective runtime configuration after TOML and
// environment overlays.
type daemonConfig struct {
	ListenAddr     string
	Operator       string
	Oracle         string
	MintPrice      uint64
	MaxMintUnits   int
	Rebate         uint64
	RandomnessFee  uint64
	GrowthCycle    time.Duration
	WateringWindow time.Duration
	PromotionEnd   time.Time
	LogJSON        bool
}

func defaultDaemonConfig() daemonConfig {
	return daemonConfig{
		ListenAddr: ":8642",
	}
}

// fileConfig maps config.toml keys onto the daemon settings.
type fileConfig struct {
	ListenAddr     string `toml:"listen_addr"`
	Operator       string `toml:"operator"`
	Oracle         string `toml:"oracle"`
	MintPrice      uint64 `toml:"mint_price_wei"`
	MaxMintUnits   int    `toml:"max_mint_units"`
	Rebate         uint64 `toml:"rebate_wei"`
	RandomnessFee  uint64 `toml:"randomness_fee_wei"`
	GrowthCycle    string `toml:"growth_cycle"`
	WateringWindow string `toml:"watering_window"`
	PromotionEnd   string `toml:"promotion_end"`
	LogJSON        bool   `toml:"log_json"`
}

// loadDaemonConfig overlays defaults with the TOML file (when path is
// non-empty) and then ORCHIDD_* environment variables.
func loadDaemonConfig(path string) (daemonConfig, error) {
	cfg := defaultDaemonConfig()

	if path != "" {
		var raw fileConfig
		meta, err := toml.DecodeFile(path, &raw)
		if err != nil {
			return daemonConfig{}, fmt.Errorf("load config: %w", err)
		}
		if meta.IsDefined("listen_addr") {
			cfg.ListenAddr = strings.TrimSpace(raw.ListenAddr)
		}
		if meta.IsDefined("operator") {
			cfg.Operator = strings.TrimSpace(raw.Operator)
		}
		if meta.IsDefined("oracle") {
			cfg.Oracle = strings.TrimSpace(raw.Oracle)
		}
		if meta.IsDefined("mint_price_wei") {
			cfg.MintPrice = raw.MintPrice
		}
		if meta.IsDefined("max_mint_units") {
			cfg.MaxMintUnits = raw.MaxMintUnits
		}
		if meta.IsDefined("rebate_wei") {
			cfg.Rebate = raw.Rebate
		}
		if meta.IsDefined("randomness_fee_wei") {
			cfg.RandomnessFee = raw.RandomnessFee
		}
		if meta.IsDefined("growth_cycle") {
			d, err := time.ParseDuration(raw.GrowthCycle)
			if err != nil {
				return daemonConfig{}, fmt.Errorf("growth_cycle: %w", err)
			}
			cfg.GrowthCycle = d
		}
		if meta.IsDefined("watering_window") {
			d, err := time.ParseDuration(raw.WateringWindow)
			if err != nil {
				return daemonConfig{}, fmt.Errorf("watering_window: %w", err)
			}
			cfg.WateringWindow = d
		}
		if meta.IsDefined("promotion_end") {
			t, err := time.Parse(time.RFC3339, raw.PromotionEnd)
			if err != nil {
				return daemonConfig{}, fmt.Errorf("promotion_end: %w", err)
			}
			cfg.PromotionEnd = t
		}
		if meta.IsDefined("log_json") {
			cfg.LogJSON = raw.LogJSON
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return daemonConfig{}, err
	}
	if cfg.Operator == "" {
		return daemonConfig{}, fmt.Errorf("operator address required (config operator or ORCHIDD_OPERATOR)")
	}
	if cfg.Oracle == "" {
		return daemonConfig{}, fmt.Errorf("oracle address required (config oracle or ORCHIDD_ORACLE)")
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *daemonConfig) error {
	if v := os.Getenv("ORCHIDD_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("ORCHIDD_OPERATOR"); v != "" {
		cfg.Operator = v
	}
	if v := os.Getenv("ORCHIDD_ORACLE"); v != "" {
		cfg.Oracle = v
	}
	if v := os.Getenv("ORCHIDD_MINT_PRICE_WEI"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("ORCHIDD_MINT_PRICE_WEI: %w", err)
		}
		cfg.MintPrice = n
	}
	if v := os.Getenv("ORCHIDD_REBATE_WEI"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("ORCHIDD_REBATE_WEI: %w", err)
		}
		cfg.Rebate = n
	}
	if v := os.Getenv("ORCHIDD_GROWTH_CYCLE"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("ORCHIDD_GROWTH_CYCLE: %w", err)
		}
		cfg.GrowthCycle = d
	}
	if v := os.Getenv("ORCHIDD_WATERING_WINDOW"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("ORCHIDD_WATERING_WINDOW: %w", err)
		}
		cfg.WateringWindow = d
	}
	if v := os.Getenv("ORCHIDD_PROMOTION_END"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return fmt.Errorf("ORCHIDD_PROMOTION_END: %w", err)
		}
		cfg.PromotionEnd = t
	}
	return nil
}

// serviceConfig translates the daemon settings into core service parameters.
func (c daemonConfig) serviceConfig() core.Config {
	return core.Config{
		Operator: domain.Address(c.Operator),
		Oracle:   domain.Address(c.Oracle),
		Schedule: domain.GrowthSchedule{
			GrowthCycle:    c.GrowthCycle,
			WateringWindow: c.WateringWindow,
		},
		MintPrice:     domain.Amount(c.MintPrice),
		MaxMintUnits:  c.MaxMintUnits,
		Rebate:        domain.Amount(c.Rebate),
		RandomnessFee: domain.Amount(c.RandomnessFee),
		PromotionEnd:  c.PromotionEnd,
	}
}
