// Package config loads engine configuration from a YAML file with
// environment-variable overrides for deploy-time values, the way the rest of
// the platform selects its store and broker.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"orderlink/internal/logging"
	"orderlink/internal/model"
)

// Duration is a time.Duration that unmarshals from "2m"/"45s" strings.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// Window is a UTC business-hours window [StartHour, EndHour).
type Window struct {
	StartHour int `yaml:"startHour"`
	EndHour   int `yaml:"endHour"`
}

// Contains reports whether t (converted to UTC) falls inside the window.
func (w Window) Contains(t time.Time) bool {
	h := t.UTC().Hour()
	return h >= w.StartHour && h < w.EndHour
}

// Reconcile configures the linking workers.
type Reconcile struct {
	Interval       Duration `yaml:"interval"`
	BatchSize      int      `yaml:"batchSize"`
	RecordTimeout  Duration `yaml:"recordTimeout"`
	PriceTolerance float64  `yaml:"priceTolerance"`
	CandidateLimit int      `yaml:"candidateLimit"`
	RecentWindow   int      `yaml:"recentWindow"`
	// DrainProviders run the inner batch loop until the backlog is empty
	// within one tick instead of one batch per tick.
	DrainProviders []model.Provider `yaml:"drainProviders"`
}

// Ingest configures the staging ingestion adapters.
type Ingest struct {
	Interval Duration `yaml:"interval"`
	// Adaptive cadence for the courier lead feed.
	ShortInterval Duration `yaml:"shortInterval"`
	LongInterval  Duration `yaml:"longInterval"`
	BusinessHours Window   `yaml:"businessHours"`
	// Requests per second against a provider API while paging.
	RateLimit float64 `yaml:"rateLimit"`
}

// SeedAccount maps one provider account to its operations; used in memory
// mode and tests where no account_operations table exists.
type SeedAccount struct {
	Provider   model.Provider    `yaml:"provider"`
	AccountID  string            `yaml:"accountId"`
	Operations []model.Operation `yaml:"operations"`
}

type Config struct {
	DatabaseURL string         `yaml:"databaseUrl"`
	RedisURL    string         `yaml:"redisUrl"`
	Listen      string         `yaml:"listen"`
	Log         logging.Config `yaml:"log"`
	Reconcile   Reconcile      `yaml:"reconcile"`
	Ingest      Ingest         `yaml:"ingest"`
	Seed        []SeedAccount  `yaml:"seedAccounts"`
}

// Default returns the documented defaults: 2-minute reconciliation cadence,
// 08:00-20:00 UTC business window for the adaptive feed.
func Default() Config {
	return Config{
		Listen: ":8080",
		Log:    logging.Config{Level: "info"},
		Reconcile: Reconcile{
			Interval:       Duration(2 * time.Minute),
			BatchSize:      100,
			RecordTimeout:  Duration(15 * time.Second),
			PriceTolerance: 1,
			CandidateLimit: 500,
			RecentWindow:   200,
			DrainProviders: []model.Provider{model.ProviderWarehouse},
		},
		Ingest: Ingest{
			Interval:      Duration(5 * time.Minute),
			ShortInterval: Duration(2 * time.Minute),
			LongInterval:  Duration(15 * time.Minute),
			BusinessHours: Window{StartHour: 8, EndHour: 20},
			RateLimit:     5,
		},
	}
}

// Load reads path (if it exists) over the defaults, then applies env
// overrides: DATABASE_URL, REDIS_URL, PORT, LOG_LEVEL.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return Config{}, err
		}
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.RedisURL = v
	}
	if v := os.Getenv("PORT"); v != "" {
		cfg.Listen = ":" + v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	return cfg, nil
}
