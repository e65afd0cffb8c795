package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"furnace-scheduler/internal/engine"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Scheduling SchedulingConfig `yaml:"scheduling"`
	Importer   ImporterConfig   `yaml:"importer"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// Enabled reports whether both VAPID keys are present.
func (p PushConfig) Enabled() bool {
	return p.PublicKey != "" && p.PrivateKey != ""
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RequestIPHeader string  `yaml:"request_ip_header"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// SchedulingConfig holds the drying rules and the furnace inventory.
type SchedulingConfig struct {
	MinGapHalves int                `yaml:"min_gap_halves"`
	VoltageRules VoltageRulesConfig `yaml:"voltage_rules"`
	Furnaces     []FurnaceConfig    `yaml:"furnaces"`
}

// VoltageRulesConfig maps each voltage class to its phase lengths.
type VoltageRulesConfig struct {
	Low  engine.DurationRule `yaml:"low"`
	High engine.DurationRule `yaml:"high"`
}

// FurnaceConfig describes one furnace as operators configure it.
type FurnaceConfig struct {
	ID                         string   `yaml:"id"`
	Name                       string   `yaml:"name"`
	Lines                      int      `yaml:"lines"`
	Aliases                    []string `yaml:"aliases"`
	MinGapHalves               int      `yaml:"min_gap_halves"`
	AllowSundaySecondHalfStart bool     `yaml:"allow_sunday_second_half_start"`
}

// ImporterConfig holds the legacy schedule importer configuration.
type ImporterConfig struct {
	Enabled         bool              `yaml:"enabled"`
	Source          string            `yaml:"source"`
	ScheduleKey     string            `yaml:"schedule_key"`
	HTTPProxy       string            `yaml:"http_proxy"`
	Headers         map[string]string `yaml:"headers"`
	IntervalSeconds int               `yaml:"interval_seconds"`
	Interval        time.Duration     `yaml:"-"`
	TimeoutSeconds  int               `yaml:"timeout_seconds"`
	Timeout         time.Duration     `yaml:"-"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) applyDefaults() error {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec > 0 && cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = int(cfg.Server.RateLimitPerSec) + 1
	}

	if cfg.Database.DSN == "" {
		log.Printf("database.dsn is not set; defaulting to furnace.db")
		cfg.Database.DSN = "furnace.db"
	}
	if cfg.Database.MaxOpenConns <= 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns <= 0 {
		cfg.Database.MaxIdleConns = 5
	}

	sc := &cfg.Scheduling
	if sc.MinGapHalves <= 0 {
		sc.MinGapHalves = engine.DefaultMinGapHalves
	}
	defaults := engine.DefaultRules()
	if sc.VoltageRules.Low == (engine.DurationRule{}) {
		sc.VoltageRules.Low = defaults[engine.VoltageLow]
	}
	if sc.VoltageRules.High == (engine.DurationRule{}) {
		sc.VoltageRules.High = defaults[engine.VoltageHigh]
	}
	for class, r := range map[string]engine.DurationRule{"low": sc.VoltageRules.Low, "high": sc.VoltageRules.High} {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("scheduling.voltage_rules.%s: %w", class, err)
		}
	}

	if len(sc.Furnaces) == 0 {
		log.Printf("scheduling.furnaces is empty; defaulting to lo1 (single line) and lo2 (dual line)")
		sc.Furnaces = DefaultFurnaces()
	}
	seen := make(map[string]bool, len(sc.Furnaces))
	for i := range sc.Furnaces {
		f := &sc.Furnaces[i]
		if f.ID == "" {
			return fmt.Errorf("scheduling.furnaces[%d]: id is required", i)
		}
		if seen[f.ID] {
			return fmt.Errorf("scheduling.furnaces[%d]: duplicate id %q", i, f.ID)
		}
		seen[f.ID] = true
		if f.Name == "" {
			f.Name = f.ID
		}
		if f.Lines <= 0 {
			f.Lines = 1
		}
		if f.Lines > 2 {
			return fmt.Errorf("scheduling.furnaces[%d]: a furnace has at most 2 lines, got %d", i, f.Lines)
		}
		if f.MinGapHalves <= 0 {
			f.MinGapHalves = sc.MinGapHalves
		}
	}

	if cfg.Importer.ScheduleKey == "" {
		cfg.Importer.ScheduleKey = "mba"
	}
	if cfg.Importer.IntervalSeconds > 0 {
		cfg.Importer.Interval = time.Duration(cfg.Importer.IntervalSeconds) * time.Second
	}
	if cfg.Importer.TimeoutSeconds <= 0 {
		cfg.Importer.TimeoutSeconds = 30
	}
	cfg.Importer.Timeout = time.Duration(cfg.Importer.TimeoutSeconds) * time.Second
	if cfg.Importer.Enabled && cfg.Importer.Source == "" {
		log.Printf("importer.enabled is set without importer.source; disabling importer")
		cfg.Importer.Enabled = false
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}
	return nil
}

// DefaultFurnaces is the shop floor inventory used when none is configured.
func DefaultFurnaces() []FurnaceConfig {
	return []FurnaceConfig{
		{ID: "lo1", Name: "Lò 1", Lines: 1, Aliases: []string{"lò 1", "lo 1"}},
		{ID: "lo2", Name: "Lò 2", Lines: 2, Aliases: []string{"lò 2", "lo 2"}, AllowSundaySecondHalfStart: true},
	}
}
