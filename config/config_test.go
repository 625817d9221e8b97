package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("applies defaults", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "secret")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "5000", cfg.Server.Port)
		assert.Equal(t, "study_mate", cfg.Database.Name)
		assert.Equal(t, 7*24*time.Hour, cfg.Auth.JWTExpiresIn)
		assert.Equal(t, 5*time.Second, cfg.Requests.StoreTimeout)
		assert.Equal(t, "0 0 3 * * *", cfg.Requests.ReconcileCron)
	})

	t.Run("empty reconcile cron disables the job", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "secret")
		t.Setenv("RECONCILE_CRON", "")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Empty(t, cfg.Requests.ReconcileCron)
	})

	t.Run("requires a jwt secret", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("reads overrides", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "secret")
		t.Setenv("JWT_EXPIRES_IN", "2d")
		t.Setenv("STORE_TIMEOUT", "750ms")
		t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 48*time.Hour, cfg.Auth.JWTExpiresIn)
		assert.Equal(t, 750*time.Millisecond, cfg.Requests.StoreTimeout)
		assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.CORSOrigins)
	})
}

func TestParseDuration(t *testing.T) {
	d, err := parseDuration("7d")
	require.NoError(t, err)
	assert.Equal(t, 168*time.Hour, d)

	d, err = parseDuration("90m")
	require.NoError(t, err)
	assert.Equal(t, 90*time.Minute, d)

	_, err = parseDuration("xd")
	assert.Error(t, err)
}
