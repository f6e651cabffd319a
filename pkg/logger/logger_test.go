package logger

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "info", cfg.Level)
	assert.NotEmpty(t, cfg.Filename)
}

func TestInitAndLog(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Filename = filepath.Join(dir, "reactorflow.log")

	err := Init(cfg, "production")
	assert.NoError(t, err)
	assert.NotNil(t, Lg)

	Info("hello")
	Warn("careful")
	Error("broke")
	Debug("verbose")
	Sync()
}

func TestInitBadLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Level = "not-a-level"
	err := Init(cfg, "production")
	assert.Error(t, err)
}
