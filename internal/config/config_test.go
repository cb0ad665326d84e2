package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/b2b-pricing/internal/config"
)

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := config.LoadForTests(map[string]string{
		"DATABASE_URL": "postgres://localhost:5432/pricing",
		"REDIS_URL":    "redis://localhost:6379/0",
		"PORT":         "",
		"REPORT_CRON":  "",
	})
	require.NoError(t, err)

	require.Equal(t, ":8080", cfg.HTTPAddr())
	require.Equal(t, time.Minute, cfg.SettingsCacheTTL)
	require.Equal(t, 5*time.Minute, cfg.SnapshotCacheTTL)
	require.Equal(t, "0 3 * * *", cfg.ReportCron)
	require.Equal(t, 5.0, cfg.ReportMinMarginPercent)
	require.Equal(t, 24*time.Hour, cfg.ErpStaleAfter)
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	_, err := config.LoadForTests(map[string]string{
		"DATABASE_URL": "",
		"REDIS_URL":    "redis://localhost:6379/0",
	})
	require.Error(t, err)
}

func TestLoadParsesOverrides(t *testing.T) {
	cfg, err := config.LoadForTests(map[string]string{
		"DATABASE_URL":              "postgres://localhost:5432/pricing",
		"REDIS_URL":                 "redis://localhost:6379/0",
		"PORT":                      "9090",
		"SETTINGS_CACHE_TTL":        "30s",
		"REPORT_MIN_MARGIN_PERCENT": "7.5",
		"CORS_ALLOWED_ORIGINS":      "https://portal.example.com, https://admin.example.com",
	})
	require.NoError(t, err)

	require.Equal(t, ":9090", cfg.HTTPAddr())
	require.Equal(t, 30*time.Second, cfg.SettingsCacheTTL)
	require.Equal(t, 7.5, cfg.ReportMinMarginPercent)
	require.Equal(t, []string{"https://portal.example.com", "https://admin.example.com"}, cfg.CORSAllowedOrigins)
}
