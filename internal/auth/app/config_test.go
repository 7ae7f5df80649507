package app

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		AccessTokenSecret:  strings.Repeat("a", 32),
		RefreshTokenSecret: strings.Repeat("b", 32),
	}
}

func TestConfigValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		require.NoError(t, validConfig().Validate())
	})

	t.Run("missing access secret", func(t *testing.T) {
		cfg := validConfig()
		cfg.AccessTokenSecret = ""
		require.Error(t, cfg.Validate())
	})

	t.Run("short refresh secret", func(t *testing.T) {
		cfg := validConfig()
		cfg.RefreshTokenSecret = "too-short"
		require.Error(t, cfg.Validate())
	})

	t.Run("identical secrets", func(t *testing.T) {
		cfg := validConfig()
		cfg.RefreshTokenSecret = cfg.AccessTokenSecret
		require.Error(t, cfg.Validate())
	})
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig()
	require.Equal(t, "edugate-auth", cfg.Issuer)
	require.Equal(t, 8080, cfg.Port)
	require.True(t, cfg.CSRFEnforce)
}
