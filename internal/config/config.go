package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/hazz-dev/uptimekit/internal/checker"
)

// DefaultPath is the config file read when no path is given.
const DefaultPath = "uptimekit.yml"

// Duration is a time.Duration that unmarshals from a string like "30s",
// both in YAML and in environment variables.
type Duration time.Duration

// Duration returns d as a time.Duration.
func (d Duration) Duration() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	return d.SetValue(s)
}

// SetValue implements cleanenv.Setter.
func (d *Duration) SetValue(s string) error {
	dur, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(dur)
	return nil
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address     string   `yaml:"address" env:"UPTIMEKIT_ADDRESS"`
	CORSOrigins []string `yaml:"cors_origins" env:"FRONTEND_URL"`
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	Path string `yaml:"path" env:"UPTIMEKIT_DB_PATH"`
}

// SchedulerConfig holds tick settings.
type SchedulerConfig struct {
	Interval      Duration `yaml:"interval" env:"UPTIMEKIT_INTERVAL"`
	MaxConcurrent int      `yaml:"max_concurrent" env:"UPTIMEKIT_MAX_CONCURRENT"`
}

// ProbesConfig holds per-driver probe settings.
type ProbesConfig struct {
	HTTPTimeout    Duration `yaml:"http_timeout" env:"UPTIMEKIT_HTTP_TIMEOUT"`
	DNSTimeout     Duration `yaml:"dns_timeout" env:"UPTIMEKIT_DNS_TIMEOUT"`
	ICMPTimeout    Duration `yaml:"icmp_timeout" env:"UPTIMEKIT_ICMP_TIMEOUT"`
	ICMPPrivileged bool     `yaml:"icmp_privileged" env:"UPTIMEKIT_ICMP_PRIVILEGED"`
}

// CheckerOptions converts the probe settings for checker.New.
func (p ProbesConfig) CheckerOptions() checker.Options {
	return checker.Options{
		Timeouts: checker.Timeouts{
			HTTP: p.HTTPTimeout.Duration(),
			DNS:  p.DNSTimeout.Duration(),
			ICMP: p.ICMPTimeout.Duration(),
		},
		ICMPPrivileged: p.ICMPPrivileged,
	}
}

// LogConfig holds logging settings. An empty File logs to stderr.
type LogConfig struct {
	Level      string `yaml:"level" env:"UPTIMEKIT_LOG_LEVEL"`
	Format     string `yaml:"format" env:"UPTIMEKIT_LOG_FORMAT"`
	File       string `yaml:"file" env:"UPTIMEKIT_LOG_FILE"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// KafkaConfig enables the check event stream when Brokers is non-empty.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers" env:"UPTIMEKIT_KAFKA_BROKERS"`
	Topic   string   `yaml:"topic" env:"UPTIMEKIT_KAFKA_TOPIC"`
}

// MonitorConfig declares a monitor that is created at startup if absent.
type MonitorConfig struct {
	Name   string `yaml:"name"`
	Type   string `yaml:"type"`
	Target string `yaml:"target"`
}

// Config is the root application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Probes    ProbesConfig    `yaml:"probes"`
	Log       LogConfig       `yaml:"log"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Monitors  []MonitorConfig `yaml:"monitors"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	timeouts := checker.DefaultTimeouts()
	return &Config{
		Server: ServerConfig{
			Address:     ":3000",
			CORSOrigins: []string{"http://localhost:5173"},
		},
		Storage: StorageConfig{Path: "uptimekit.db"},
		Scheduler: SchedulerConfig{
			Interval:      Duration(time.Minute),
			MaxConcurrent: 64,
		},
		Probes: ProbesConfig{
			HTTPTimeout: Duration(timeouts.HTTP),
			DNSTimeout:  Duration(timeouts.DNS),
			ICMPTimeout: Duration(timeouts.ICMP),
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 14,
		},
		Kafka: KafkaConfig{Topic: "uptimekit.checks"},
	}
}

// Load reads the config file at path over the defaults, applies environment
// overrides, and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var (
	validLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	validFormats = map[string]bool{"text": true, "json": true}
)

// Validate reports every problem in cfg, not just the first.
func (c *Config) Validate() error {
	var err error

	if c.Server.Address == "" {
		err = multierr.Append(err, errors.New("server.address is required"))
	}
	if c.Storage.Path == "" {
		err = multierr.Append(err, errors.New("storage.path is required"))
	}
	if c.Scheduler.Interval.Duration() < time.Second {
		err = multierr.Append(err, fmt.Errorf("scheduler.interval must be at least 1s, got %s", c.Scheduler.Interval))
	}
	if c.Scheduler.MaxConcurrent < 1 {
		err = multierr.Append(err, fmt.Errorf("scheduler.max_concurrent must be positive, got %d", c.Scheduler.MaxConcurrent))
	}
	timeouts := []struct {
		key string
		d   Duration
	}{
		{"probes.http_timeout", c.Probes.HTTPTimeout},
		{"probes.dns_timeout", c.Probes.DNSTimeout},
		{"probes.icmp_timeout", c.Probes.ICMPTimeout},
	}
	for _, t := range timeouts {
		if t.d <= 0 {
			err = multierr.Append(err, fmt.Errorf("%s must be positive, got %s", t.key, t.d))
		}
	}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		err = multierr.Append(err, fmt.Errorf("log.level %q is invalid (must be debug, info, warn, or error)", c.Log.Level))
	}
	if !validFormats[strings.ToLower(c.Log.Format)] {
		err = multierr.Append(err, fmt.Errorf("log.format %q is invalid (must be text or json)", c.Log.Format))
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		err = multierr.Append(err, errors.New("kafka.topic is required when brokers are set"))
	}

	seen := make(map[string]bool, len(c.Monitors))
	for i, m := range c.Monitors {
		if strings.TrimSpace(m.Name) == "" {
			err = multierr.Append(err, fmt.Errorf("monitors[%d]: name is required", i))
		}
		if strings.TrimSpace(m.Target) == "" {
			err = multierr.Append(err, fmt.Errorf("monitors[%d]: target is required", i))
		}
		typ, ok := checker.ParseType(m.Type)
		if m.Type != "" && !ok {
			err = multierr.Append(err, fmt.Errorf("monitors[%d]: invalid type %q (must be http, dns, or icmp)", i, m.Type))
		}
		key := string(typ) + " " + strings.TrimSpace(m.Target)
		if seen[key] {
			err = multierr.Append(err, fmt.Errorf("monitors[%d]: duplicate %s monitor for %q", i, typ, m.Target))
		}
		seen[key] = true
	}

	return err
}
