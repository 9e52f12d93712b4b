// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Browser() BrowserConfig
	LLM() LLMConfig
	Run() RunConfig
	Journal() JournalConfig

	// Browser Setters
	SetBrowserHeadless(bool)
	SetBrowserDebug(bool)

	// Run Setters
	SetRunMaxReplans(int)
	SetRunPlanAttempts(int)

	// LLM Setters
	SetLLMModel(string)

	// Journal Setters
	SetJournalDir(string)
}

// Config holds the entire application configuration.
// Access goes through the Interface's getter methods; the exported fields
// exist for viper's Unmarshal and for tests.
type Config struct {
	LoggerCfg  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	BrowserCfg BrowserConfig `mapstructure:"browser" yaml:"browser"`
	LLMCfg     LLMConfig     `mapstructure:"llm" yaml:"llm"`
	RunCfg     RunConfig     `mapstructure:"run" yaml:"run"`
	JournalCfg JournalConfig `mapstructure:"journal" yaml:"journal"`
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig   { return c.LoggerCfg }
func (c *Config) Browser() BrowserConfig { return c.BrowserCfg }
func (c *Config) LLM() LLMConfig         { return c.LLMCfg }
func (c *Config) Run() RunConfig         { return c.RunCfg }
func (c *Config) Journal() JournalConfig { return c.JournalCfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetBrowserHeadless(b bool) { c.BrowserCfg.Headless = b }
func (c *Config) SetBrowserDebug(b bool)    { c.BrowserCfg.Debug = b }

func (c *Config) SetRunMaxReplans(n int)   { c.RunCfg.MaxReplans = n }
func (c *Config) SetRunPlanAttempts(n int) { c.RunCfg.PlanAttempts = n }

func (c *Config) SetLLMModel(m string) { c.LLMCfg.Model = m }

func (c *Config) SetJournalDir(d string) { c.JournalCfg.Dir = d }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig holds settings for the headless browser session.
type BrowserConfig struct {
	Headless          bool           `mapstructure:"headless" yaml:"headless"`
	DisableCache      bool           `mapstructure:"disable_cache" yaml:"disable_cache"`
	IgnoreTLSErrors   bool           `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	Debug             bool           `mapstructure:"debug" yaml:"debug"`
	Args              []string       `mapstructure:"args" yaml:"args"`
	Viewport          map[string]int `mapstructure:"viewport" yaml:"viewport"`
	NavigationTimeout time.Duration  `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	StabilizeWait     time.Duration  `mapstructure:"stabilize_wait" yaml:"stabilize_wait"`
	Typing            TypingConfig   `mapstructure:"typing" yaml:"typing"`
}

// TypingConfig tunes the human-cadence keystroke simulation used by
// TYPE_AND_SUBMIT steps. Per-key delays are drawn uniformly from
// [KeyDelayMin, KeyDelayMax]; each key additionally has PauseChance odds of a
// longer hesitation drawn from [PauseMin, PauseMax]. Submission waits a settle
// period from [SubmitSettleMin, SubmitSettleMax] before Enter.
type TypingConfig struct {
	KeyDelayMin     time.Duration `mapstructure:"key_delay_min" yaml:"key_delay_min"`
	KeyDelayMax     time.Duration `mapstructure:"key_delay_max" yaml:"key_delay_max"`
	PauseChance     float64       `mapstructure:"pause_chance" yaml:"pause_chance"`
	PauseMin        time.Duration `mapstructure:"pause_min" yaml:"pause_min"`
	PauseMax        time.Duration `mapstructure:"pause_max" yaml:"pause_max"`
	SubmitSettleMin time.Duration `mapstructure:"submit_settle_min" yaml:"submit_settle_min"`
	SubmitSettleMax time.Duration `mapstructure:"submit_settle_max" yaml:"submit_settle_max"`
}

// LLMProvider defines the supported LLM providers.
type LLMProvider string

const (
	ProviderGemini LLMProvider = "gemini"
)

// LLMConfig defines the configuration for the planning and vision models.
type LLMConfig struct {
	Provider    LLMProvider   `mapstructure:"provider" yaml:"provider"`
	Model       string        `mapstructure:"model" yaml:"model"`
	VisionModel string        `mapstructure:"vision_model" yaml:"vision_model"`
	APIKey      string        `mapstructure:"api_key" yaml:"-"`
	Endpoint    string        `mapstructure:"endpoint" yaml:"endpoint"`
	APITimeout  time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	Temperature float32       `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	MaxRetries  int           `mapstructure:"max_retries" yaml:"max_retries"`
}

// RunConfig tunes the plan/execute/replan loop.
type RunConfig struct {
	// MaxReplans bounds how many times a run may request a corrective plan.
	MaxReplans int `mapstructure:"max_replans" yaml:"max_replans"`
	// PlanAttempts bounds how many generation attempts the planner gets
	// before a run aborts with a parse or validation error.
	PlanAttempts int `mapstructure:"plan_attempts" yaml:"plan_attempts"`

	// Required-step verification polls the page until the predicate holds
	// or the window closes.
	VerifyTimeout     time.Duration `mapstructure:"verify_timeout" yaml:"verify_timeout"`
	VerifyInterval    time.Duration `mapstructure:"verify_interval" yaml:"verify_interval"`
	VerifySnapshotCap int           `mapstructure:"verify_snapshot_cap" yaml:"verify_snapshot_cap"`

	// CLICK steps on result pages wait for the link list to hydrate.
	HydrationTimeout  time.Duration `mapstructure:"hydration_timeout" yaml:"hydration_timeout"`
	HydrationInterval time.Duration `mapstructure:"hydration_interval" yaml:"hydration_interval"`

	// Optional substeps only fire if their gate appears inside this window.
	SubstepWindow time.Duration `mapstructure:"substep_window" yaml:"substep_window"`
}

// JournalConfig controls where run artifacts are written.
type JournalConfig struct {
	Dir    string `mapstructure:"dir" yaml:"dir"`
	Pretty bool   `mapstructure:"pretty" yaml:"pretty"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "pilot-cli")
	v.SetDefault("logger.log_file", "pilot.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.disable_cache", true)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.debug", false)
	v.SetDefault("browser.navigation_timeout", "90s")
	v.SetDefault("browser.stabilize_wait", "2s")
	v.SetDefault("browser.typing.key_delay_min", "40ms")
	v.SetDefault("browser.typing.key_delay_max", "140ms")
	v.SetDefault("browser.typing.pause_chance", 0.08)
	v.SetDefault("browser.typing.pause_min", "180ms")
	v.SetDefault("browser.typing.pause_max", "520ms")
	v.SetDefault("browser.typing.submit_settle_min", "450ms")
	v.SetDefault("browser.typing.submit_settle_max", "1100ms")

	// -- LLM --
	v.SetDefault("llm.provider", "gemini")
	v.SetDefault("llm.model", "gemini-2.5-flash")
	v.SetDefault("llm.vision_model", "gemini-2.5-flash")
	v.SetDefault("llm.api_timeout", "120s")
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.max_tokens", 8192)
	v.SetDefault("llm.max_retries", 3)

	// -- Run --
	v.SetDefault("run.max_replans", 1)
	v.SetDefault("run.plan_attempts", 2)
	v.SetDefault("run.verify_timeout", "8s")
	v.SetDefault("run.verify_interval", "500ms")
	v.SetDefault("run.verify_snapshot_cap", 8)
	v.SetDefault("run.hydration_timeout", "12s")
	v.SetDefault("run.hydration_interval", "500ms")
	v.SetDefault("run.substep_window", "4s")

	// -- Journal --
	v.SetDefault("journal.dir", "runs")
	v.SetDefault("journal.pretty", false)
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for sensitive data
	v.BindEnv("llm.api_key", "PILOT_LLM_API_KEY")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Fall back to the provider's conventional variable when the bound one
	// is absent.
	if cfg.LLMCfg.APIKey == "" {
		cfg.LLMCfg.APIKey = os.Getenv("GEMINI_API_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.RunCfg.Validate(); err != nil {
		return fmt.Errorf("run configuration invalid: %w", err)
	}
	if err := c.LLMCfg.Validate(); err != nil {
		return fmt.Errorf("llm configuration invalid: %w", err)
	}
	if err := c.BrowserCfg.Typing.Validate(); err != nil {
		return fmt.Errorf("browser.typing configuration invalid: %w", err)
	}
	if c.JournalCfg.Dir == "" {
		return fmt.Errorf("journal.dir must not be empty")
	}
	return nil
}

// Validate checks the RunConfig settings.
func (r *RunConfig) Validate() error {
	if r.MaxReplans < 0 {
		return fmt.Errorf("max_replans must not be negative")
	}
	if r.PlanAttempts < 1 {
		return fmt.Errorf("plan_attempts must be at least 1")
	}
	if r.VerifyInterval <= 0 || r.VerifyTimeout <= 0 {
		return fmt.Errorf("verify_timeout and verify_interval must be positive durations")
	}
	if r.VerifyInterval > r.VerifyTimeout {
		return fmt.Errorf("verify_interval must not exceed verify_timeout")
	}
	if r.VerifySnapshotCap < 1 {
		return fmt.Errorf("verify_snapshot_cap must be a positive integer")
	}
	if r.HydrationInterval <= 0 || r.HydrationTimeout <= 0 {
		return fmt.Errorf("hydration_timeout and hydration_interval must be positive durations")
	}
	if r.SubstepWindow <= 0 {
		return fmt.Errorf("substep_window must be a positive duration")
	}
	return nil
}

// Validate checks the LLMConfig settings.
func (l *LLMConfig) Validate() error {
	if l.Provider != ProviderGemini {
		return fmt.Errorf("provider %q is not supported", l.Provider)
	}
	if l.Model == "" {
		return fmt.Errorf("model must not be empty")
	}
	if l.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative")
	}
	return nil
}

// Validate checks the TypingConfig settings.
func (t *TypingConfig) Validate() error {
	if t.KeyDelayMin <= 0 || t.KeyDelayMax < t.KeyDelayMin {
		return fmt.Errorf("key_delay_min/key_delay_max must form a positive window")
	}
	if t.PauseChance < 0.0 || t.PauseChance > 1.0 {
		return fmt.Errorf("pause_chance must be between 0.0 and 1.0")
	}
	if t.PauseMin <= 0 || t.PauseMax < t.PauseMin {
		return fmt.Errorf("pause_min/pause_max must form a positive window")
	}
	if t.SubmitSettleMin <= 0 || t.SubmitSettleMax < t.SubmitSettleMin {
		return fmt.Errorf("submit_settle_min/submit_settle_max must form a positive window")
	}
	return nil
}
