// Package config handles global configuration loading using viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"firestige.xyz/pcapnote/internal/log"
)

// Config is the top-level configuration, found under the `pcapnote:` root
// key in YAML. Env vars use the PCAPNOTE_ prefix (e.g. PCAPNOTE_LOG_LEVEL).
type Config struct {
	Log     log.LoggerConfig `mapstructure:"log"`
	Report  ReportConfig     `mapstructure:"report"`
	Output  OutputConfig     `mapstructure:"output"`
	Decode  DecodeConfig     `mapstructure:"decode"`
	Metrics MetricsConfig    `mapstructure:"metrics"`
}

// ─── Reporting ───

// ReportConfig selects where result records go and how they are rendered.
type ReportConfig struct {
	Sink   string      `mapstructure:"sink"`   // console | kafka
	Format string      `mapstructure:"format"` // json | yaml | text (console only)
	Kafka  KafkaConfig `mapstructure:"kafka"`
}

// KafkaConfig configures the kafka sink.
type KafkaConfig struct {
	Brokers      []string `mapstructure:"brokers"`
	Topic        string   `mapstructure:"topic"`
	BatchTimeout string   `mapstructure:"batch_timeout"` // e.g. "100ms"
	Compression  string   `mapstructure:"compression"`   // none | gzip | snappy | lz4
	MaxAttempts  int      `mapstructure:"max_attempts"`
}

// ─── Output ───

// OutputConfig controls how add mode names its output file.
type OutputConfig struct {
	// Suffix replaces the input extension: a.pcapng -> a.<suffix>.
	Suffix string `mapstructure:"suffix"`
}

// ─── Decode ───

// DecodeConfig controls decoding of the targeted packet's captured bytes.
type DecodeConfig struct {
	Summary bool `mapstructure:"summary"`
}

// ─── Metrics ───

// MetricsConfig controls the Prometheus text file written after a run.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"` // empty = disabled
}

// ─── Loading ───

type configRoot struct {
	Pcapnote Config `mapstructure:"pcapnote"`
}

// Load loads configuration from file. An empty path uses defaults and
// environment variables only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// key "pcapnote.log.level" -> env "PCAPNOTE_LOG_LEVEL"
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.Pcapnote

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// setDefaults registers every key, which also makes each one reachable
// through its environment variable.
func setDefaults(v *viper.Viper) {
	// Log defaults
	v.SetDefault("pcapnote.log.level", "info")
	v.SetDefault("pcapnote.log.pattern", log.DefaultPattern)
	v.SetDefault("pcapnote.log.time", log.DefaultTime)
	v.SetDefault("pcapnote.log.file.enabled", false)
	v.SetDefault("pcapnote.log.file.filename", "pcapnote.log")
	v.SetDefault("pcapnote.log.file.max_size", 10)
	v.SetDefault("pcapnote.log.file.max_backups", 3)
	v.SetDefault("pcapnote.log.file.max_age", 7)
	v.SetDefault("pcapnote.log.file.compress", false)

	// Report defaults
	v.SetDefault("pcapnote.report.sink", "console")
	v.SetDefault("pcapnote.report.format", "json")
	v.SetDefault("pcapnote.report.kafka.brokers", []string{})
	v.SetDefault("pcapnote.report.kafka.topic", "")
	v.SetDefault("pcapnote.report.kafka.batch_timeout", "100ms")
	v.SetDefault("pcapnote.report.kafka.compression", "snappy")
	v.SetDefault("pcapnote.report.kafka.max_attempts", 3)

	v.SetDefault("pcapnote.output.suffix", "comment_added.pcapng")
	v.SetDefault("pcapnote.decode.summary", true)
	v.SetDefault("pcapnote.metrics.textfile", "")
}

// ValidateAndApplyDefaults validates configuration after flags and env have
// been merged in.
func (cfg *Config) ValidateAndApplyDefaults() error {
	// ── Log validation ──
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "warning": true, "error": true}
	if !validLevels[cfg.Log.Level] {
		return fmt.Errorf("invalid log level: %s (must be trace/debug/info/warn/error)", cfg.Log.Level)
	}
	if cfg.Log.File.Enabled && cfg.Log.File.Filename == "" {
		return fmt.Errorf("log.file.filename is required when log.file.enabled=true")
	}

	// ── Report validation ──
	switch cfg.Report.Format {
	case "json", "yaml", "text":
	default:
		return fmt.Errorf("invalid report format: %s (must be json/yaml/text)", cfg.Report.Format)
	}
	switch cfg.Report.Sink {
	case "console":
	case "kafka":
		if err := cfg.Report.Kafka.validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("invalid report sink: %s (must be console/kafka)", cfg.Report.Sink)
	}

	// ── Output validation ──
	cfg.Output.Suffix = strings.TrimPrefix(cfg.Output.Suffix, ".")
	if cfg.Output.Suffix == "" {
		return fmt.Errorf("output.suffix must not be empty")
	}
	if strings.ContainsAny(cfg.Output.Suffix, `/\`) {
		return fmt.Errorf("output.suffix must not contain a path separator: %s", cfg.Output.Suffix)
	}

	return nil
}

func (k *KafkaConfig) validate() error {
	if len(k.Brokers) == 0 {
		return fmt.Errorf("report.kafka.brokers is required when report.sink=kafka")
	}
	if k.Topic == "" {
		return fmt.Errorf("report.kafka.topic is required when report.sink=kafka")
	}
	switch k.Compression {
	case "", "none", "gzip", "snappy", "lz4":
	default:
		return fmt.Errorf("invalid report.kafka.compression: %s", k.Compression)
	}
	if k.BatchTimeout != "" {
		if _, err := time.ParseDuration(k.BatchTimeout); err != nil {
			return fmt.Errorf("invalid report.kafka.batch_timeout: %w", err)
		}
	}
	if k.MaxAttempts < 0 {
		return fmt.Errorf("report.kafka.max_attempts must not be negative")
	}
	return nil
}
