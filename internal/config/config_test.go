// File: internal/config/config_test.go
package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -- Constructor and Defaults Tests --

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	// Verify a few key defaults to ensure the mechanism works.
	assert.Equal(t, "info", cfg.Logger().Level)
	assert.True(t, cfg.Browser().Headless)
	assert.Equal(t, ProviderGemini, cfg.LLM().Provider)
	assert.Equal(t, "gemini-2.5-flash", cfg.LLM().Model)
	assert.Equal(t, 1, cfg.Run().MaxReplans)
	assert.Equal(t, 2, cfg.Run().PlanAttempts)
	assert.Equal(t, 8*time.Second, cfg.Run().VerifyTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Run().VerifyInterval)
	assert.Equal(t, 12*time.Second, cfg.Run().HydrationTimeout)
	assert.Equal(t, 4*time.Second, cfg.Run().SubstepWindow)
	assert.Equal(t, 40*time.Millisecond, cfg.Browser().Typing.KeyDelayMin)
	assert.Equal(t, 0.08, cfg.Browser().Typing.PauseChance)
	assert.Equal(t, "runs", cfg.Journal().Dir)
}

// -- Validation Logic Tests --

func TestConfigValidation(t *testing.T) {
	t.Run("Run Validation", func(t *testing.T) {
		cfg := NewDefaultConfig()
		assert.NoError(t, cfg.Validate(), "a default config should validate cleanly")

		negReplans := *cfg
		negReplans.RunCfg.MaxReplans = -1
		err := negReplans.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "max_replans must not be negative")

		zeroAttempts := *cfg
		zeroAttempts.RunCfg.PlanAttempts = 0
		err = zeroAttempts.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "plan_attempts must be at least 1")

		inverted := *cfg
		inverted.RunCfg.VerifyInterval = 10 * time.Second
		err = inverted.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "verify_interval must not exceed verify_timeout")
	})

	t.Run("LLM Validation", func(t *testing.T) {
		cfg := NewDefaultConfig()

		badProvider := *cfg
		badProvider.LLMCfg.Provider = "openai"
		err := badProvider.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), `provider "openai" is not supported`)

		noModel := *cfg
		noModel.LLMCfg.Model = ""
		err = noModel.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "model must not be empty")
	})

	t.Run("Typing Validation", func(t *testing.T) {
		cfg := NewDefaultConfig()

		inverted := *cfg
		inverted.BrowserCfg.Typing.KeyDelayMax = 10 * time.Millisecond
		err := inverted.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "key_delay_min/key_delay_max")

		badChance := *cfg
		badChance.BrowserCfg.Typing.PauseChance = 1.5
		err = badChance.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "pause_chance must be between 0.0 and 1.0")
	})
}

// -- Factory Function Tests --

func TestNewConfigFromViper(t *testing.T) {
	t.Run("Successful Load from YAML", func(t *testing.T) {
		yamlBytes := []byte(`
llm:
  model: gemini-2.5-pro
run:
  max_replans: 3
browser:
  headless: false
`)
		v := viper.New()
		SetDefaults(v)
		v.SetConfigType("yaml")
		err := v.ReadConfig(bytes.NewBuffer(yamlBytes))
		require.NoError(t, err)

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)

		assert.Equal(t, "gemini-2.5-pro", cfg.LLM().Model)
		assert.Equal(t, 3, cfg.Run().MaxReplans)
		assert.False(t, cfg.Browser().Headless)
		// Check a default value was also loaded
		assert.Equal(t, 500*time.Millisecond, cfg.Run().HydrationInterval)
	})

	t.Run("Validation Failure", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("run.plan_attempts", 0) // Intentionally invalid

		cfg, err := NewConfigFromViper(v)
		assert.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "invalid configuration")
		assert.Contains(t, err.Error(), "plan_attempts must be at least 1")
	})

	t.Run("Environment Variable Binding", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)

		testKey := "AIza-env-var-key-456"
		t.Setenv("PILOT_LLM_API_KEY", testKey)
		t.Setenv("GEMINI_API_KEY", "should-not-win")

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, testKey, cfg.LLM().APIKey)
	})

	t.Run("Provider Variable Fallback", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)

		t.Setenv("PILOT_LLM_API_KEY", "")
		t.Setenv("GEMINI_API_KEY", "AIza-fallback-key")

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)

		assert.Equal(t, "AIza-fallback-key", cfg.LLM().APIKey)
	})
}

// -- Struct and Mapping Tests --

func TestConfigStructureMapping(t *testing.T) {
	yamlInput := `
logger:
  level: debug
  log_file: /var/log/pilot.log
browser:
  typing:
    key_delay_min: 10ms
    key_delay_max: 20ms
run:
  verify_timeout: 5s
journal:
  dir: /tmp/pilot-runs
`
	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("yaml")
	err := v.ReadConfig(bytes.NewBufferString(yamlInput))
	require.NoError(t, err)

	var cfg Config
	err = v.Unmarshal(&cfg)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logger().Level)
	assert.Equal(t, "/var/log/pilot.log", cfg.Logger().LogFile)
	assert.Equal(t, 10*time.Millisecond, cfg.Browser().Typing.KeyDelayMin)
	assert.Equal(t, 20*time.Millisecond, cfg.Browser().Typing.KeyDelayMax)
	assert.Equal(t, 5*time.Second, cfg.Run().VerifyTimeout)
	assert.Equal(t, "/tmp/pilot-runs", cfg.Journal().Dir)
}
