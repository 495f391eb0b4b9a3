// Package config loads the dissector configuration using viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/slonegd/otdissect/ber"
)

// Config represents the top-level configuration.
// Maps to the `otdissect:` root key in YAML.
type Config struct {
	Log     LogConfig     `mapstructure:"log"`
	Decoder DecoderConfig `mapstructure:"decoder"`
	MMS     MMSConfig     `mapstructure:"mms"`
	C1222   C1222Config   `mapstructure:"c1222"`
}

// ─── Log ───

// LogConfig contains logging settings.
type LogConfig struct {
	Level   string           `mapstructure:"level"`  // debug / info / warn / error
	Format  string           `mapstructure:"format"` // json / text
	Outputs LogOutputsConfig `mapstructure:"outputs"`
}

// LogOutputsConfig contains log output destinations besides stdout.
type LogOutputsConfig struct {
	File FileOutputConfig `mapstructure:"file"`
}

// FileOutputConfig configures file log output.
type FileOutputConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Path     string         `mapstructure:"path"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	MaxBackups int  `mapstructure:"max_backups"`
	Compress   bool `mapstructure:"compress"`
}

// ─── Decoding ───

// DecoderConfig applies to every protocol.
type DecoderConfig struct {
	MaxDepth int `mapstructure:"max_depth"`
	// Desegment joins messages split across TCP segments
	Desegment bool `mapstructure:"desegment"`
}

// MMSConfig contains MMS dissection settings.
type MMSConfig struct {
	Ports []uint16 `mapstructure:"ports"`
	// TransactionTTL drops the transaction table of a connection idle for this long.
	TransactionTTL time.Duration `mapstructure:"transaction_ttl"`
}

// C1222Config contains C12.22 dissection settings.
type C1222Config struct {
	Ports   []uint16 `mapstructure:"ports"`
	Decrypt bool     `mapstructure:"decrypt"`
	// BaseOID is prepended to relative ApTitles, dotted form.
	BaseOID string `mapstructure:"base_oid"`
	// KeyFile is a YAML key table, see c1222.LoadKeyTable.
	KeyFile string `mapstructure:"key_file"`
}

// ─── Loading ───

const root = "otdissect"

// configRoot is the top-level wrapper matching the YAML structure `otdissect: ...`.
type configRoot struct {
	Otdissect Config `mapstructure:"otdissect"`
}

// Load loads configuration from file. An empty path yields the defaults.
// Env vars use the OTDISSECT_ prefix (e.g. OTDISSECT_LOG_LEVEL).
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var r configRoot
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&r, hook); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := r.Otdissect

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(root+".log.level", "info")
	v.SetDefault(root+".log.format", "text")
	v.SetDefault(root+".log.outputs.file.enabled", false)
	v.SetDefault(root+".log.outputs.file.path", "otdissect.log")
	v.SetDefault(root+".log.outputs.file.rotation.max_size_mb", 100)
	v.SetDefault(root+".log.outputs.file.rotation.max_age_days", 30)
	v.SetDefault(root+".log.outputs.file.rotation.max_backups", 5)
	v.SetDefault(root+".log.outputs.file.rotation.compress", true)

	v.SetDefault(root+".decoder.max_depth", 32)
	v.SetDefault(root+".decoder.desegment", true)

	v.SetDefault(root+".mms.ports", []uint16{102})
	v.SetDefault(root+".mms.transaction_ttl", "10m")

	v.SetDefault(root+".c1222.ports", []uint16{1153})
	v.SetDefault(root+".c1222.decrypt", false)
	v.SetDefault(root+".c1222.base_oid", "")
	v.SetDefault(root+".c1222.key_file", "")
}

// ValidateAndApplyDefaults validates configuration and applies runtime defaults.
func (cfg *Config) ValidateAndApplyDefaults() error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Log.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug/info/warn/error)", cfg.Log.Level)
	}
	if cfg.Log.Format != "json" && cfg.Log.Format != "text" {
		return fmt.Errorf("invalid log format: %s (must be json/text)", cfg.Log.Format)
	}
	if cfg.Log.Outputs.File.Enabled && cfg.Log.Outputs.File.Path == "" {
		return fmt.Errorf("log.outputs.file.path is required when file output is enabled")
	}

	if cfg.Decoder.MaxDepth < 1 || cfg.Decoder.MaxDepth > 256 {
		return fmt.Errorf("invalid decoder.max_depth: %d (must be 1..256)", cfg.Decoder.MaxDepth)
	}

	if len(cfg.MMS.Ports) == 0 && len(cfg.C1222.Ports) == 0 {
		return fmt.Errorf("at least one of mms.ports and c1222.ports is required")
	}
	if cfg.MMS.TransactionTTL < 0 {
		return fmt.Errorf("invalid mms.transaction_ttl: %s", cfg.MMS.TransactionTTL)
	}

	if cfg.C1222.BaseOID != "" {
		if _, err := ber.ParseOID(cfg.C1222.BaseOID); err != nil {
			return fmt.Errorf("invalid c1222.base_oid: %w", err)
		}
	}
	if cfg.C1222.Decrypt && cfg.C1222.KeyFile == "" {
		return fmt.Errorf("c1222.key_file is required when c1222.decrypt=true")
	}
	return nil
}
