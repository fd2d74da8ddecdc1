// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	LLM() LLMConfig
	Browser() BrowserConfig
	Validation() ValidationConfig
	Analysis() AnalysisConfig
	Output() OutputConfig
	Database() DatabaseConfig
	Metrics() MetricsConfig
	DevServer() DevServerConfig
	Run() RunConfig
	SetRunConfig(rc RunConfig)

	// Browser Setters
	SetBrowserHeadless(bool)
	SetBrowserEngine(string)

	// Validation Setters
	SetValidationMaxIterations(int)
	SetValidationMaxToolCalls(int)
	SetValidationParallelism(int)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg     LoggerConfig     `mapstructure:"logger" yaml:"logger"`
	LLMCfg        LLMConfig        `mapstructure:"llm" yaml:"llm"`
	BrowserCfg    BrowserConfig    `mapstructure:"browser" yaml:"browser"`
	ValidationCfg ValidationConfig `mapstructure:"validation" yaml:"validation"`
	AnalysisCfg   AnalysisConfig   `mapstructure:"analysis" yaml:"analysis"`
	OutputCfg     OutputConfig     `mapstructure:"output" yaml:"output"`
	DatabaseCfg   DatabaseConfig   `mapstructure:"database" yaml:"database"`
	MetricsCfg    MetricsConfig    `mapstructure:"metrics" yaml:"metrics"`
	DevServerCfg  DevServerConfig  `mapstructure:"devserver" yaml:"devserver"`
	// RunCfg gets its marching orders from CLI flags, not the config file.
	RunCfg RunConfig `mapstructure:"-" yaml:"-" validate:"-"`
}

var _ Interface = (*Config)(nil)

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig         { return c.LoggerCfg }
func (c *Config) LLM() LLMConfig               { return c.LLMCfg }
func (c *Config) Browser() BrowserConfig       { return c.BrowserCfg }
func (c *Config) Validation() ValidationConfig { return c.ValidationCfg }
func (c *Config) Analysis() AnalysisConfig     { return c.AnalysisCfg }
func (c *Config) Output() OutputConfig         { return c.OutputCfg }
func (c *Config) Database() DatabaseConfig     { return c.DatabaseCfg }
func (c *Config) Metrics() MetricsConfig       { return c.MetricsCfg }
func (c *Config) DevServer() DevServerConfig   { return c.DevServerCfg }
func (c *Config) Run() RunConfig               { return c.RunCfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetRunConfig(rc RunConfig) { c.RunCfg = rc }

// Browser Setters
func (c *Config) SetBrowserHeadless(b bool) { c.BrowserCfg.Headless = b }
func (c *Config) SetBrowserEngine(e string) { c.BrowserCfg.Engine = e }

// Validation Setters
func (c *Config) SetValidationMaxIterations(n int) { c.ValidationCfg.MaxIterations = n }
func (c *Config) SetValidationMaxToolCalls(n int)  { c.ValidationCfg.MaxToolCalls = n }
func (c *Config) SetValidationParallelism(n int)   { c.ValidationCfg.Parallelism = n }

// LoggerConfig configures the zap logger and its optional rotated log file.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error dpanic panic fatal"`
	Format      string      `mapstructure:"format" yaml:"format" validate:"oneof=console json"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig maps log levels to terminal colour names.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// LLMProvider defines the supported Oracle providers.
type LLMProvider string

const (
	ProviderOpenAI   LLMProvider = "openai"
	ProviderDeepSeek LLMProvider = "deepseek"
	ProviderGLM      LLMProvider = "glm"
	ProviderGemini   LLMProvider = "gemini"
)

// LLMConfig configures the Oracle. When Provider is empty the provider is
// resolved from well-known credential environment variables.
type LLMConfig struct {
	Provider          LLMProvider   `mapstructure:"provider" yaml:"provider" validate:"omitempty,oneof=openai deepseek glm gemini"`
	APIKey            string        `mapstructure:"api_key" yaml:"-"`
	Endpoint          string        `mapstructure:"endpoint" yaml:"endpoint" validate:"omitempty,url"`
	FastModel         string        `mapstructure:"fast_model" yaml:"fast_model"`
	PowerfulModel     string        `mapstructure:"powerful_model" yaml:"powerful_model"`
	APITimeout        time.Duration `mapstructure:"api_timeout" yaml:"api_timeout" validate:"gt=0"`
	Temperature       float32       `mapstructure:"temperature" yaml:"temperature" validate:"gte=0,lte=2"`
	MaxTokens         int           `mapstructure:"max_tokens" yaml:"max_tokens" validate:"gte=0"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" yaml:"requests_per_second" validate:"gte=0"`
	RetryMaxElapsed   time.Duration `mapstructure:"retry_max_elapsed" yaml:"retry_max_elapsed" validate:"gte=0"`
}

// LLMModelConfig is the fully resolved configuration of one model.
type LLMModelConfig struct {
	Provider    LLMProvider   `mapstructure:"provider" yaml:"provider"`
	Model       string        `mapstructure:"model" yaml:"model"`
	APIKey      string        `mapstructure:"api_key" yaml:"-"`
	Endpoint    string        `mapstructure:"endpoint" yaml:"endpoint"`
	APITimeout  time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	Temperature float32       `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens"`
}

// BrowserConfig configures the browser capability.
type BrowserConfig struct {
	// Engine selects the session implementation: "chromedp" drives a real
	// Chrome, "static" parses server-rendered HTML without executing scripts.
	Engine            string         `mapstructure:"engine" yaml:"engine" validate:"oneof=chromedp static"`
	Headless          bool           `mapstructure:"headless" yaml:"headless"`
	IgnoreTLSErrors   bool           `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	Args              []string       `mapstructure:"args" yaml:"args"`
	Viewport          map[string]int `mapstructure:"viewport" yaml:"viewport"`
	ActionTimeout     time.Duration  `mapstructure:"action_timeout" yaml:"action_timeout" validate:"gt=0"`
	NavigationTimeout time.Duration  `mapstructure:"navigation_timeout" yaml:"navigation_timeout" validate:"gt=0"`
	ScreenshotDir     string         `mapstructure:"screenshot_dir" yaml:"screenshot_dir"`
}

// ValidationConfig configures the validation-refinement stage.
type ValidationConfig struct {
	BaseURL       string `mapstructure:"base_url" yaml:"base_url" validate:"required,url"`
	MaxIterations int    `mapstructure:"max_iterations" yaml:"max_iterations" validate:"gte=1"`
	MaxToolCalls  int    `mapstructure:"max_tool_calls" yaml:"max_tool_calls" validate:"gte=1"`
	Parallelism   int    `mapstructure:"parallelism" yaml:"parallelism" validate:"gte=1"`
	RetryPolicy   string `mapstructure:"retry_policy" yaml:"retry_policy" validate:"oneof=uniform strict"`
	Screenshots   bool   `mapstructure:"screenshots" yaml:"screenshots"`
}

// AnalysisConfig configures the project analysis stage.
type AnalysisConfig struct {
	MaxToolCalls   int `mapstructure:"max_tool_calls" yaml:"max_tool_calls" validate:"gte=1"`
	MaxFileBytes   int `mapstructure:"max_file_bytes" yaml:"max_file_bytes" validate:"gt=0"`
	MaxListEntries int `mapstructure:"max_list_entries" yaml:"max_list_entries" validate:"gt=0"`
}

// OutputConfig configures where generated artifacts are written.
type OutputConfig struct {
	Dir       string `mapstructure:"dir" yaml:"dir" validate:"required"`
	SuiteName string `mapstructure:"suite_name" yaml:"suite_name" validate:"required"`
}

// DatabaseConfig enables run history persistence when URL is set.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// MetricsConfig controls the Prometheus textfile export.
type MetricsConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Textfile string `mapstructure:"textfile" yaml:"textfile"`
}

// DevServerConfig controls starting the project's own development server
// when a run has no base URL.
type DevServerConfig struct {
	AutoStart bool `mapstructure:"auto_start" yaml:"auto_start"`
	// Script is the package.json script to run. Empty picks the first of
	// dev, start and serve.
	Script string `mapstructure:"script" yaml:"script"`
	// Command replaces the npm invocation entirely, e.g. "pnpm dev".
	Command      string        `mapstructure:"command" yaml:"command"`
	Install      bool          `mapstructure:"install" yaml:"install"`
	StartPort    int           `mapstructure:"start_port" yaml:"start_port" validate:"gt=0,lte=65535"`
	ReadyTimeout time.Duration `mapstructure:"ready_timeout" yaml:"ready_timeout" validate:"gt=0"`
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval" validate:"gt=0"`
	StopTimeout  time.Duration `mapstructure:"stop_timeout" yaml:"stop_timeout" validate:"gt=0"`
}

// RunConfig holds the inputs of a single invocation.
type RunConfig struct {
	Requirement string `validate:"required"`
	ProjectPath string `validate:"required"`
	BaseURL     string `validate:"required_without=StartDevServer"`
	OutputDir   string
	PlanPath    string
	// Explore lets the Oracle browse the running application before planning.
	Explore bool
	// StartDevServer starts the project's dev server and uses its URL as
	// the base URL. Only meaningful when BaseURL is empty.
	StartDevServer bool
}

var baseURLPattern = regexp.MustCompile(`^https?://`)

// Validate checks the run inputs: a requirement, an existing project directory
// and an http(s) base URL unless the dev server provides one.
func (r RunConfig) Validate() error {
	if err := structValidator.Struct(r); err != nil {
		return formatValidationError(err)
	}
	info, err := os.Stat(r.ProjectPath)
	if err != nil {
		return fmt.Errorf("project path %q does not exist: %w", r.ProjectPath, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("project path %q is not a directory", r.ProjectPath)
	}
	if r.BaseURL == "" {
		return nil
	}
	if !baseURLPattern.MatchString(r.BaseURL) {
		return fmt.Errorf("base URL %q must start with http:// or https://", r.BaseURL)
	}
	return nil
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
	v.SetDefault("logger.service_name", "uiforge")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- LLM --
	v.SetDefault("llm.api_timeout", "2m")
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.max_tokens", 4096)
	v.SetDefault("llm.requests_per_second", 2.0)
	v.SetDefault("llm.retry_max_elapsed", "2m")

	// -- Browser --
	v.SetDefault("browser.engine", "chromedp")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.viewport", map[string]int{"width": 1280, "height": 800})
	v.SetDefault("browser.action_timeout", "10s")
	v.SetDefault("browser.navigation_timeout", "30s")
	v.SetDefault("browser.screenshot_dir", "screenshots")

	// -- Validation --
	v.SetDefault("validation.base_url", "http://localhost:3000")
	v.SetDefault("validation.max_iterations", 3)
	v.SetDefault("validation.max_tool_calls", 15)
	v.SetDefault("validation.parallelism", 1)
	v.SetDefault("validation.retry_policy", "uniform")
	v.SetDefault("validation.screenshots", true)

	// -- Analysis --
	v.SetDefault("analysis.max_tool_calls", 10)
	v.SetDefault("analysis.max_file_bytes", 64*1024)
	v.SetDefault("analysis.max_list_entries", 200)

	// -- Output --
	v.SetDefault("output.dir", "generated-tests")
	v.SetDefault("output.suite_name", "ui-tests")

	// -- Dev server --
	v.SetDefault("devserver.auto_start", false)
	v.SetDefault("devserver.install", true)
	v.SetDefault("devserver.start_port", 3000)
	v.SetDefault("devserver.ready_timeout", "60s")
	v.SetDefault("devserver.poll_interval", "2s")
	v.SetDefault("devserver.stop_timeout", "5s")

	// -- Metrics --
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.textfile", "metrics.prom")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables used by the original tooling.
	_ = v.BindEnv("validation.base_url", "UIFORGE_VALIDATION_BASE_URL", "TEST_BASE_URL")
	_ = v.BindEnv("browser.headless", "UIFORGE_BROWSER_HEADLESS", "PUPPETEER_HEADLESS")
	_ = v.BindEnv("llm.api_key", "UIFORGE_LLM_API_KEY")
	_ = v.BindEnv("database.url", "UIFORGE_DATABASE_URL", "DATABASE_URL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// structValidator reports field paths using the mapstructure key names so
// errors read like the config file.
var structValidator = newStructValidator()

func newStructValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := structValidator.Struct(c); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// formatValidationError flattens validator errors into a single readable error.
func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		// Drop the root struct name ("Config.browser.engine" -> "browser.engine").
		path := fe.Namespace()
		if idx := strings.Index(path, "."); idx >= 0 {
			path = path[idx+1:]
		}
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed '%s=%s' (got %v)", path, fe.Tag(), fe.Param(), fe.Value()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s failed '%s'", path, fe.Tag()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}
