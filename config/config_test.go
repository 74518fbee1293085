package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/freight-engine/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()

	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr())
	assert.Equal(t, "freight.db", cfg.Database.Path)
	assert.Equal(t, time.Minute, cfg.Scheduler.Interval)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Len(t, cfg.Server.AllowedOrigins, 2)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("SERVER_HOST", "127.0.0.1")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DATABASE_PATH", ":memory:")
	t.Setenv("SCHEDULER_INTERVAL", "5m")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://tms.example.com , ,https://ops.example.com")
	t.Setenv("LOG_COMPRESS", "not-a-bool")

	cfg, err := config.Load()

	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9090", cfg.Server.Addr())
	assert.Equal(t, ":memory:", cfg.Database.Path)
	assert.Equal(t, 5*time.Minute, cfg.Scheduler.Interval)
	assert.Equal(t, []string{"https://tms.example.com", "https://ops.example.com"}, cfg.Server.AllowedOrigins)
	assert.True(t, cfg.Logging.Compress, "unparseable values fall back to the default")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"port out of range", map[string]string{"SERVER_PORT": "70000"}, "Port"},
		{"metrics path must be absolute", map[string]string{"METRICS_PATH": "metrics"}, "Path"},
		{"negative log retention", map[string]string{"LOG_MAX_BACKUPS": "-1"}, "MaxBackups"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := config.Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
