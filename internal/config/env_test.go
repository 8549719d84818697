package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alekseev-bro/evstore/internal/config"
)

type sample struct {
	Addr    string        `env:"EVSTORE_TEST_ADDR" envDefault:"localhost:1"`
	Timeout time.Duration `env:"EVSTORE_TEST_TIMEOUT" envDefault:"2s"`
	Must    string        `env:"EVSTORE_TEST_MUST"`
}

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := config.FromEnv[sample]()
	require.NoError(t, err)
	require.Equal(t, "localhost:1", cfg.Addr)
	require.Equal(t, 2*time.Second, cfg.Timeout)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("EVSTORE_TEST_ADDR", "db:9")
	t.Setenv("EVSTORE_TEST_TIMEOUT", "150ms")
	cfg, err := config.FromEnv[sample]()
	require.NoError(t, err)
	require.Equal(t, "db:9", cfg.Addr)
	require.Equal(t, 150*time.Millisecond, cfg.Timeout)
}

func TestParseEnvError(t *testing.T) {
	t.Setenv("EVSTORE_TEST_TIMEOUT", "soon")
	var cfg sample
	err := config.ParseEnv(&cfg)
	require.ErrorContains(t, err, "parse env")
}

type required struct {
	Must string `env:"EVSTORE_TEST_REQUIRED,required"`
}

func TestParseEnvRequired(t *testing.T) {
	_, err := config.FromEnv[required]()
	require.Error(t, err)
}
