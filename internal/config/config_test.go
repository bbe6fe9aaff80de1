package config_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/triage/internal/config"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	config.RegisterFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := config.Load(viper.New(), flags(t))
	require.NoError(t, err)
	assert.Equal(t, config.StoreFile, cfg.Store)
	assert.Equal(t, ".", cfg.Dir)
	assert.Equal(t, "triage:", cfg.Namespace)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Empty(t, cfg.ConfigFile)
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "triage.yaml"), []byte(
		"store: redis\nredis-addr: cache:6379\nlog-level: info\nredact:\n  - secret\n"), 0o644))

	t.Setenv("TRIAGE_REDIS_ADDR", "env:6379")
	t.Setenv("TRIAGE_LOCK_TTL", "5s")

	cfg, err := config.Load(viper.New(), flags(t, "--log-level", "debug"))
	require.NoError(t, err)

	assert.Equal(t, config.StoreRedis, cfg.Store, "file")
	assert.Equal(t, "env:6379", cfg.RedisAddr, "env beats file")
	assert.Equal(t, "debug", cfg.LogLevel, "flag beats file")
	assert.Equal(t, 5*time.Second, cfg.LockTTL)
	assert.Equal(t, []string{"secret"}, cfg.RedactPatterns)
	assert.Equal(t, "triage.yaml", filepath.Base(cfg.ConfigFile))
}

func TestLoad_ExplicitFileMustExist(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := config.Load(viper.New(), flags(t, "--config", "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := config.Load(viper.New(), flags(t, "--store", "postgres", "--format", "xml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres")
	assert.Contains(t, err.Error(), "xml")
}

func TestConfig_Logger(t *testing.T) {
	cfg := config.Default()
	cfg.LogFormat = "json"
	cfg.LogLevel = "info"

	var buf bytes.Buffer
	cfg.Logger(&buf).Debug("hidden")
	cfg.Logger(&buf).Info("shown", "error", "boom")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"err":"boom"`)
}
