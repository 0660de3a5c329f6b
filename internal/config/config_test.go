package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T, keys ...string) {
	for _, k := range keys {
		original, had := os.LookupEnv(k)
		os.Unsetenv(k)
		t.Cleanup(func() {
			if had {
				os.Setenv(k, original)
			} else {
				os.Unsetenv(k)
			}
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t, "PLATFORMS", "STORE_ADDR", "ON_SALE_RATIO", "CHECK_INTERVAL", "LOCK_TTL")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"coupang", "gmarket", "11st"}, cfg.Platforms)
	assert.Equal(t, "localhost:6379", cfg.StoreAddr)
	assert.Equal(t, 4, cfg.OnSaleRatio)
	assert.Equal(t, time.Second, cfg.CheckInterval)
	assert.Equal(t, 30*time.Second, cfg.InterPlatformDelay)
	assert.Equal(t, 60*time.Second, cfg.SamePlatformCooldown)
	assert.NotEmpty(t, cfg.MonitorTasks)
}

func TestLoad_PlatformsFromEnv(t *testing.T) {
	clearEnv(t, "PLATFORMS")
	os.Setenv("PLATFORMS", " a , b ,c")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, cfg.Platforms)
}

func TestLoad_RejectsEmptyPlatforms(t *testing.T) {
	clearEnv(t, "PLATFORMS")
	os.Setenv("PLATFORMS", "  ,  ,")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one platform")
}

func TestLoad_RejectsInvalidDuration(t *testing.T) {
	clearEnv(t, "CHECK_INTERVAL")
	os.Setenv("CHECK_INTERVAL", "not-a-duration")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CHECK_INTERVAL")
}

func TestLoad_RejectsNegativeOnSaleRatio(t *testing.T) {
	clearEnv(t, "ON_SALE_RATIO")
	os.Setenv("ON_SALE_RATIO", "-1")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ON_SALE_RATIO")
}
