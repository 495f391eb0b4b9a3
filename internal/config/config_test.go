package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.False(t, cfg.Log.Outputs.File.Enabled)
	assert.Equal(t, 100, cfg.Log.Outputs.File.Rotation.MaxSizeMB)
	assert.Equal(t, 32, cfg.Decoder.MaxDepth)
	assert.True(t, cfg.Decoder.Desegment)
	assert.Equal(t, []uint16{102}, cfg.MMS.Ports)
	assert.Equal(t, 10*time.Minute, cfg.MMS.TransactionTTL)
	assert.Equal(t, []uint16{1153}, cfg.C1222.Ports)
	assert.False(t, cfg.C1222.Decrypt)
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, `
otdissect:
  log:
    level: debug
    format: json
    outputs:
      file:
        enabled: true
        path: /tmp/otdissect.log
        rotation:
          max_size_mb: 10
  decoder:
    max_depth: 64
    desegment: false
  mms:
    ports: [102, 10102]
    transaction_ttl: 90s
  c1222:
    decrypt: true
    base_oid: 2.16.124.113620.1.22
    key_file: keys.yaml
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.True(t, cfg.Log.Outputs.File.Enabled)
	assert.Equal(t, "/tmp/otdissect.log", cfg.Log.Outputs.File.Path)
	assert.Equal(t, 10, cfg.Log.Outputs.File.Rotation.MaxSizeMB)
	// не заданные в файле значения берутся по умолчанию
	assert.Equal(t, 5, cfg.Log.Outputs.File.Rotation.MaxBackups)
	assert.Equal(t, 64, cfg.Decoder.MaxDepth)
	assert.False(t, cfg.Decoder.Desegment)
	assert.Equal(t, []uint16{102, 10102}, cfg.MMS.Ports)
	assert.Equal(t, 90*time.Second, cfg.MMS.TransactionTTL)
	assert.Equal(t, []uint16{1153}, cfg.C1222.Ports)
	assert.True(t, cfg.C1222.Decrypt)
	assert.Equal(t, "2.16.124.113620.1.22", cfg.C1222.BaseOID)
	assert.Equal(t, "keys.yaml", cfg.C1222.KeyFile)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("OTDISSECT_LOG_LEVEL", "warn")
	t.Setenv("OTDISSECT_DECODER_MAX_DEPTH", "8")

	cfg, err := Load(writeConfig(t, "otdissect:\n  log:\n    level: debug\n"))
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 8, cfg.Decoder.MaxDepth)
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"log level", "otdissect:\n  log:\n    level: verbose\n", "invalid log level"},
		{"log format", "otdissect:\n  log:\n    format: xml\n", "invalid log format"},
		{"max depth", "otdissect:\n  decoder:\n    max_depth: 0\n", "invalid decoder.max_depth"},
		{"base oid", "otdissect:\n  c1222:\n    base_oid: 2.x.3\n", "invalid c1222.base_oid"},
		{"decrypt without keys", "otdissect:\n  c1222:\n    decrypt: true\n", "c1222.key_file is required"},
		{"no ports", "otdissect:\n  mms:\n    ports: []\n  c1222:\n    ports: []\n", "at least one of"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	assert.ErrorContains(t, err, "failed to read config file")
}
