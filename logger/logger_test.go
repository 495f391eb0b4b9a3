package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slonegd/otdissect/internal/config"
)

func fileConfig(t *testing.T, format, level string) (config.LogConfig, string) {
	path := filepath.Join(t.TempDir(), "otdissect.log")
	return config.LogConfig{
		Level:  level,
		Format: format,
		Outputs: config.LogOutputsConfig{File: config.FileOutputConfig{
			Enabled:  true,
			Path:     path,
			Rotation: config.RotationConfig{MaxSizeMB: 1},
		}},
	}, path
}

func resetRoot(t *testing.T) {
	t.Cleanup(func() {
		root = logrus.New()
	})
}

func TestInitText(t *testing.T) {
	resetRoot(t)
	cfg, path := fileConfig(t, "text", "debug")
	require.NoError(t, Init(cfg))

	NewLogger("mms").Debug("invokeID=%d", 7)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "level=debug")
	assert.Contains(t, string(data), `msg="invokeID=7"`)
	assert.Contains(t, string(data), "category=mms")
}

func TestInitJSONLevel(t *testing.T) {
	resetRoot(t)
	cfg, path := fileConfig(t, "json", "warn")
	require.NoError(t, Init(cfg))

	l := With(NewLogger("c1222"), "frame", 12)
	l.Info("пропускается")
	l.Warn("bad checksum")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "bad checksum", rec["msg"])
	assert.Equal(t, "c1222", rec["category"])
	assert.Equal(t, float64(12), rec["frame"])
}

func TestInitErrors(t *testing.T) {
	resetRoot(t)
	assert.Error(t, Init(config.LogConfig{Level: "loud", Format: "text"}))
	assert.Error(t, Init(config.LogConfig{Level: "info", Format: "xml"}))
	assert.Error(t, Init(config.LogConfig{
		Level:   "info",
		Format:  "text",
		Outputs: config.LogOutputsConfig{File: config.FileOutputConfig{Enabled: true}},
	}))
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Debug("x")
	l.Error("y")
	assert.Equal(t, l, With(l, "k", "v"))
}
