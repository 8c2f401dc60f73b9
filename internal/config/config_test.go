package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localpulse/rankgrid-cli/internal/metrics"
	"github.com/localpulse/rankgrid-cli/internal/model"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir()) // no config file present

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "live", cfg.Provider.Mode)
	assert.Equal(t, "desktop", cfg.Provider.Device)
	assert.Equal(t, 20, cfg.Provider.Depth)
	assert.Equal(t, 7, cfg.Check.GridSize)
	assert.Equal(t, 5.0, cfg.Check.RadiusKM)
	assert.Equal(t, "square", cfg.Check.Shape)
	assert.Equal(t, 5, cfg.Check.Concurrency)
	assert.Equal(t, 15, cfg.Poll.InitialWaitSecs)
	assert.Equal(t, 90, cfg.Poll.TaskDeadlineSecs)
	assert.Equal(t, 40.0, cfg.Visibility.AFPRWeight)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("RANKGRID_CHECK_GRID_SIZE", "9")
	t.Setenv("RANKGRID_PROVIDER_MODE", "fake")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Check.GridSize)
	assert.Equal(t, "fake", cfg.Provider.Mode)
}

func TestValidate_Provider(t *testing.T) {
	cfg := &Config{Provider: ProviderConfig{Mode: "fake"}}
	assert.NoError(t, cfg.Validate("provider"), "fake mode needs no credentials")

	cfg = &Config{Provider: ProviderConfig{Mode: "live"}}
	assert.Error(t, cfg.Validate("provider"), "live mode requires credentials")

	cfg = &Config{Provider: ProviderConfig{Mode: "live", Login: "l", Password: "p"}}
	assert.NoError(t, cfg.Validate("provider"))

	cfg = &Config{Provider: ProviderConfig{Mode: "dryrun"}}
	assert.Error(t, cfg.Validate("provider"))
}

func TestValidate_Check(t *testing.T) {
	valid := CheckConfig{GridSize: 7, Shape: "square"}

	cfg := &Config{Check: valid, Visibility: metrics.DefaultVisibilityPolicy()}
	assert.NoError(t, cfg.Validate("check"))

	cfg = &Config{Check: CheckConfig{GridSize: 0, Shape: "square"}, Visibility: metrics.DefaultVisibilityPolicy()}
	assert.Error(t, cfg.Validate("check"))

	cfg = &Config{Check: CheckConfig{GridSize: 7, Shape: "hexagonal"}, Visibility: metrics.DefaultVisibilityPolicy()}
	assert.Error(t, cfg.Validate("check"))

	cfg = &Config{Check: valid} // zero visibility weights
	assert.Error(t, cfg.Validate("check"))
}

func TestValidate_Store(t *testing.T) {
	cfg := &Config{Store: StoreConfig{Driver: "sqlite", Path: "x.db"}}
	assert.NoError(t, cfg.Validate("store"))

	cfg = &Config{Store: StoreConfig{Driver: "sqlite"}}
	assert.Error(t, cfg.Validate("store"))

	cfg = &Config{Store: StoreConfig{Driver: "postgres", DatabaseURL: "postgres://x"}}
	assert.NoError(t, cfg.Validate("store"))

	cfg = &Config{Store: StoreConfig{Driver: "postgres"}}
	assert.Error(t, cfg.Validate("store"))

	cfg = &Config{Store: StoreConfig{Driver: "redis"}}
	assert.Error(t, cfg.Validate("store"))
}

func TestValidate_UnknownSubsystem(t *testing.T) {
	cfg := &Config{}
	assert.Error(t, cfg.Validate("nope"))
}

func TestShape(t *testing.T) {
	cfg := &Config{Check: CheckConfig{Shape: "circular"}}
	shape, err := cfg.Shape()
	require.NoError(t, err)
	assert.Equal(t, model.Circular, shape)

	cfg.Check.Shape = "triangle"
	_, err = cfg.Shape()
	assert.Error(t, err)
}

func TestInitLogger(t *testing.T) {
	assert.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))
	assert.Error(t, InitLogger(LogConfig{Level: "chatty", Format: "json"}))
}
