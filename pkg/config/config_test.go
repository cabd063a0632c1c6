package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Port    int           `env:"TEST_CFG_PORT" envDefault:"8080"`
	BaseURL string        `env:"TEST_CFG_BASE_URL" envDefault:"http://127.0.0.1:5001"`
	Timeout time.Duration `env:"TEST_CFG_TIMEOUT" envDefault:"10s"`
	Origins []string      `env:"TEST_CFG_ORIGINS" envDefault:"http://localhost:3000" envSeparator:","`
}

func TestLoad_Defaults(t *testing.T) {
	var cfg testConfig
	require.NoError(t, Load(&cfg))

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "http://127.0.0.1:5001", cfg.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Origins)
}

func TestLoad_FromEnvVars(t *testing.T) {
	t.Setenv("TEST_CFG_PORT", "9090")
	t.Setenv("TEST_CFG_BASE_URL", "http://catalog:5001")
	t.Setenv("TEST_CFG_TIMEOUT", "2s")
	t.Setenv("TEST_CFG_ORIGINS", "http://a.test,http://b.test")

	var cfg testConfig
	require.NoError(t, Load(&cfg))

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "http://catalog:5001", cfg.BaseURL)
	assert.Equal(t, 2*time.Second, cfg.Timeout)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Origins)
}

func TestLoad_InvalidType(t *testing.T) {
	t.Setenv("TEST_CFG_PORT", "not-a-number")

	var cfg testConfig
	err := Load(&cfg)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

type requiredConfig struct {
	Path string `env:"TEST_CFG_PATH,required"`
}

func TestLoad_RequiredFieldMissing(t *testing.T) {
	var cfg requiredConfig
	require.Error(t, Load(&cfg))
}

func TestLoadWithPrefix(t *testing.T) {
	t.Setenv("TOOL_TEST_CFG_PORT", "7070")
	t.Setenv("TEST_CFG_PORT", "9090")

	var cfg testConfig
	require.NoError(t, LoadWithPrefix(&cfg, "TOOL_"))
	assert.Equal(t, 7070, cfg.Port)
}

func TestLoadWithPrefix_RequiredFieldMissing(t *testing.T) {
	t.Setenv("TEST_CFG_PATH", "unprefixed")

	var cfg requiredConfig
	err := LoadWithPrefix(&cfg, "TOOL_")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TOOL_")
}
