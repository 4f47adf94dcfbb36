package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

var GlobalConfig *Config

// Config global configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Model     ModelConfig     `yaml:"model"`
	Simulator SimulatorConfig `yaml:"simulator"`
	Redis     RedisConfig     `yaml:"redis"`
	MySQL     MySQLConfig     `yaml:"mysql"`
	Queue     QueueConfig     `yaml:"queue"`
	Jobs      JobsConfig      `yaml:"jobs"`
	Logger    LoggerConfig    `yaml:"logger"`
}

// ServerConfig server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Mode string `yaml:"mode"` // debug, release
}

// ModelConfig classifier artifact configuration
type ModelConfig struct {
	Path string `yaml:"path"` // path to the fitted artifact (JSON)
}

// SimulatorConfig default parameters for server-managed simulation runs.
// A run request may override any of them; omitted fields use these values.
type SimulatorConfig struct {
	OutputDir   string `yaml:"output_dir"`   // directory run CSVs are written to
	Machines    int    `yaml:"machines"`     // machine count per run
	Days        int    `yaml:"days"`         // simulated days per run
	StepMinutes int    `yaml:"step_minutes"` // sampling interval
	Seed        int64  `yaml:"seed"`         // base RNG seed
	Workers     int    `yaml:"workers"`      // machines generated concurrently
}

// RedisConfig Redis configuration
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// MySQLConfig MySQL configuration
type MySQLConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// QueueConfig queue configuration
type QueueConfig struct {
	Concurrency       int `yaml:"concurrency"`         // queue processing concurrency
	MaxRetry          int `yaml:"max_retry"`           // maximum retry count, 0 disables retries
	RunTimeoutSeconds int `yaml:"run_timeout_seconds"` // per-run execution timeout
}

// JobsConfig background maintenance job configuration
type JobsConfig struct {
	ReapIntervalSeconds  int `yaml:"reap_interval_seconds"`   // how often the stale-run reaper fires
	StaleRunAfterMinutes int `yaml:"stale_run_after_minutes"` // age after which an unfinished run counts as stale
	RetentionDays        int `yaml:"retention_days"`          // finished runs older than this are purged, 0 disables purging
}

// LoggerConfig logger configuration
type LoggerConfig struct {
	Level  string           `yaml:"level"`  // debug, info, warn, error
	Output string           `yaml:"output"` // console, file, both
	File   LoggerFileConfig `yaml:"file"`
}

// LoggerFileConfig logger file configuration
type LoggerFileConfig struct {
	Path string `yaml:"path"`
}

// DefaultServerConfig returns the server defaults applied when fields are unset.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Port: 8000,
		Mode: "release",
	}
}

// DefaultModelConfig returns the artifact defaults applied when fields are unset.
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		Path: "config/pd_24h_model.json",
	}
}

// DefaultSimulatorConfig returns the generation defaults applied when fields are unset.
func DefaultSimulatorConfig() SimulatorConfig {
	return SimulatorConfig{
		OutputDir:   "data",
		Machines:    50,
		Days:        60,
		StepMinutes: 10,
		Seed:        42,
		Workers:     4,
	}
}

// DefaultQueueConfig returns the queue defaults applied when fields are unset.
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		Concurrency:       4,
		MaxRetry:          3,
		RunTimeoutSeconds: 1800,
	}
}

// DefaultJobsConfig returns the maintenance job defaults applied when fields are unset.
func DefaultJobsConfig() JobsConfig {
	return JobsConfig{
		ReapIntervalSeconds:  60,
		StaleRunAfterMinutes: 30,
		RetentionDays:        30,
	}
}

// validateAndApplyDefaults replaces unset or invalid values with defaults so a
// sparse config file still yields an operational process. Explicit valid values
// are never overwritten. Seed is exempt: every int64 is a usable seed.
func validateAndApplyDefaults(cfg *Config) {
	serverDefaults := DefaultServerConfig()
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = serverDefaults.Port
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = serverDefaults.Mode
	}

	if cfg.Model.Path == "" {
		cfg.Model.Path = DefaultModelConfig().Path
	}

	simDefaults := DefaultSimulatorConfig()
	if cfg.Simulator.OutputDir == "" {
		cfg.Simulator.OutputDir = simDefaults.OutputDir
	}
	if cfg.Simulator.Machines <= 0 {
		cfg.Simulator.Machines = simDefaults.Machines
	}
	if cfg.Simulator.Days <= 0 {
		cfg.Simulator.Days = simDefaults.Days
	}
	if cfg.Simulator.StepMinutes <= 0 {
		cfg.Simulator.StepMinutes = simDefaults.StepMinutes
	}
	if cfg.Simulator.Workers <= 0 {
		cfg.Simulator.Workers = simDefaults.Workers
	}

	queueDefaults := DefaultQueueConfig()
	if cfg.Queue.Concurrency <= 0 {
		cfg.Queue.Concurrency = queueDefaults.Concurrency
	}
	if cfg.Queue.MaxRetry < 0 {
		cfg.Queue.MaxRetry = queueDefaults.MaxRetry
	}
	if cfg.Queue.RunTimeoutSeconds <= 0 {
		cfg.Queue.RunTimeoutSeconds = queueDefaults.RunTimeoutSeconds
	}

	jobsDefaults := DefaultJobsConfig()
	if cfg.Jobs.ReapIntervalSeconds <= 0 {
		cfg.Jobs.ReapIntervalSeconds = jobsDefaults.ReapIntervalSeconds
	}
	if cfg.Jobs.StaleRunAfterMinutes <= 0 {
		cfg.Jobs.StaleRunAfterMinutes = jobsDefaults.StaleRunAfterMinutes
	}
	// Zero retention is a deliberate "keep forever" setting, only negatives are invalid.
	if cfg.Jobs.RetentionDays < 0 {
		cfg.Jobs.RetentionDays = jobsDefaults.RetentionDays
	}

	if cfg.Logger.Level == "" {
		cfg.Logger.Level = "info"
	}
	if cfg.Logger.Output == "" {
		cfg.Logger.Output = "console"
	}
}

// Init initializes configuration
func Init() error {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return err
	}

	validateAndApplyDefaults(&cfg)

	GlobalConfig = &cfg
	return nil
}
