package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcarmo/guerite/internal/config"
	"github.com/rcarmo/guerite/internal/domain"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "console", cfg.LogFormat)
	assert.Equal(t, time.UTC, cfg.Timezone)
	assert.Equal(t, "/var/lib/guerite/state.json", cfg.StateFile)
	assert.Equal(t, 300*time.Second, cfg.HealthCheckBackoff)
	assert.Equal(t, 60*time.Second, cfg.HealthCheckTimeout)
	assert.Equal(t, 60*time.Second, cfg.ActionCooldown)
	assert.Equal(t, 3, cfg.RestartRetryLimit)
	assert.Equal(t, 3600*time.Second, cfg.RollbackGrace)
	assert.Equal(t, 8282, cfg.HTTPAPIPort)
	assert.False(t, cfg.HTTPAPIEnabled)
	assert.Equal(t, map[domain.Category]bool{domain.CategoryUpdate: true}, cfg.Notifications)
	assert.Equal(t, domain.DefaultLabelSet(), cfg.Labels)
}

func TestLoad_OverridesFromEnv(t *testing.T) {
	t.Setenv("GUERITE_TZ", "America/Sao_Paulo")
	t.Setenv("GUERITE_STATE_FILE", "/tmp/guerite-state.json")
	t.Setenv("GUERITE_DRY_RUN", "true")
	t.Setenv("GUERITE_HTTP_API", "true")
	t.Setenv("GUERITE_HTTP_API_PORT", "9090")
	t.Setenv("GUERITE_NOTIFICATIONS", "update, restart,health")
	t.Setenv("GUERITE_SCOPE", "prod")
	t.Setenv("GUERITE_INCLUDE_CONTAINERS", "web, api")
	t.Setenv("GUERITE_UPDATE_LABEL", "myorg.update")

	cfg, err := config.Load()
	require.NoError(t, err)

	loc, locErr := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, locErr)
	assert.Equal(t, loc, cfg.Timezone)
	assert.Equal(t, "/tmp/guerite-state.json", cfg.StateFile)
	assert.True(t, cfg.DryRun)
	assert.True(t, cfg.HTTPAPIEnabled)
	assert.Equal(t, 9090, cfg.HTTPAPIPort)
	assert.Equal(t, map[domain.Category]bool{
		domain.CategoryUpdate:  true,
		domain.CategoryRestart: true,
		domain.CategoryHealth:  true,
	}, cfg.Notifications)
	assert.Equal(t, "prod", cfg.Scope)
	assert.Equal(t, []string{"web", "api"}, cfg.IncludeContainers)
	assert.Equal(t, "myorg.update", cfg.Labels.Update)
}

func TestLoad_AllCategoryShortCircuits(t *testing.T) {
	t.Setenv("GUERITE_NOTIFICATIONS", "all")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.True(t, cfg.Notifications[domain.CategoryAll])
}

func TestLoad_InvalidTimezoneErrors(t *testing.T) {
	t.Setenv("GUERITE_TZ", "Not/A_Zone")

	_, err := config.Load()
	assert.Error(t, err)
}

func TestLoad_InvalidNotificationCategoryErrors(t *testing.T) {
	t.Setenv("GUERITE_NOTIFICATIONS", "bogus")

	_, err := config.Load()
	assert.Error(t, err)
}

func TestLoad_InvalidPortErrors(t *testing.T) {
	t.Setenv("GUERITE_HTTP_API_PORT", "70000")

	_, err := config.Load()
	assert.Error(t, err)
}

func TestLoad_ContainerInBothIncludeAndExcludeErrors(t *testing.T) {
	t.Setenv("GUERITE_INCLUDE_CONTAINERS", "web")
	t.Setenv("GUERITE_EXCLUDE_CONTAINERS", "web,api")

	_, err := config.Load()
	assert.Error(t, err)
}
