package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment" validate:"oneof=development production"`
	Server      ServerConfig    `toml:"server"`
	Logging     LoggingConfig   `toml:"logging"`
	Browser     BrowserConfig   `toml:"browser"`
	Warmup      WarmupConfig    `toml:"warmup"`
	Driver      DriverConfig    `toml:"driver"`
	Scrape      ScrapeConfig    `toml:"scrape"`
	Structure   StructureConfig `toml:"structure"`
}

type ServerConfig struct {
	Port int    `toml:"port" validate:"min=1,max=65535"`
	Host string `toml:"host"`
}

type LoggingConfig struct {
	Level  string   `toml:"level" validate:"oneof=trace debug info warn error"` // "debug", "info", "warn", "error"
	Output []string `toml:"output" validate:"dive,oneof=stdout console file"`  // "stdout", "file"
}

// BrowserConfig controls how headless Chrome instances are launched and which
// requests their pages are allowed to make.
type BrowserConfig struct {
	Headless          bool     `toml:"headless"`
	UserAgent         string   `toml:"user_agent"`
	ExecPath          string   `toml:"exec_path"`          // Empty uses chromedp's lookup of the installed Chrome
	LaunchTimeout     string   `toml:"launch_timeout"`     // e.g. "30s"
	BlockedExtensions []string `toml:"blocked_extensions"` // Asset extensions aborted by the request interceptor
	BlockedDomains    []string `toml:"blocked_domains"`    // Tracking/analytics substrings aborted by the request interceptor
	BlockMedia        bool     `toml:"block_media"`        // Also abort video/audio assets
}

// WarmupConfig controls the pre-launched browser instance
type WarmupConfig struct {
	Enabled bool   `toml:"enabled"`
	Delay   string `toml:"delay"` // Delay after boot before the warm browser is launched
}

// DriverConfig holds the per-step bounds used while driving the upstream UI
type DriverConfig struct {
	NavigationTimeout string `toml:"navigation_timeout"`
	InputTimeout      string `toml:"input_timeout"`
	SubmitTimeout     string `toml:"submit_timeout"`
	AnswerTimeout     string `toml:"answer_timeout"`
}

// ScrapeConfig controls the answer polling loop
type ScrapeConfig struct {
	PollInterval string `toml:"poll_interval"`
	ReadTimeout  string `toml:"read_timeout"`
	MaxDuration  string `toml:"max_duration"` // "0" disables the budget and polls until the answer marker appears
}

// StructureConfig controls the renderable structure fragment
type StructureConfig struct {
	LibraryURL string `toml:"library_url" validate:"required,url"`
	Escape     bool   `toml:"escape"` // HTML/JS-escape the extracted encoding instead of embedding it verbatim
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8000,
			Host: "0.0.0.0",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
		Browser: BrowserConfig{
			Headless:      true,
			UserAgent:     "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			LaunchTimeout: "30s",
			BlockedExtensions: []string{
				".png", ".jpg", ".jpeg", ".gif", ".webp", ".svg", ".ico",
				".woff", ".woff2", ".ttf", ".otf", ".eot",
			},
			BlockedDomains: []string{
				"google-analytics.com",
				"googletagmanager.com",
				"doubleclick.net",
				"facebook.net",
				"hotjar.com",
				"segment.io",
				"mixpanel.com",
				"sentry.io",
				"fullstory.com",
			},
			BlockMedia: true,
		},
		Warmup: WarmupConfig{
			Enabled: true,
			Delay:   "2s",
		},
		Driver: DriverConfig{
			NavigationTimeout: "60s",
			InputTimeout:      "30s",
			SubmitTimeout:     "15s",
			AnswerTimeout:     "60s",
		},
		Scrape: ScrapeConfig{
			PollInterval: "300ms",
			ReadTimeout:  "5s",
			MaxDuration:  "5m",
		},
		Structure: StructureConfig{
			LibraryURL: "https://unpkg.com/smiles-drawer@2.0.1/dist/smiles-drawer.min.js",
			Escape:     false,
		},
	}
}

// LoadFromFiles loads configuration from multiple files with priority: default -> file1 -> file2 -> ... -> env
// Later files override earlier files. CLI flags are applied afterwards by ApplyFlagOverrides.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		// Unmarshal into config (merges with existing values, later values override)
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("FAPI_ENV"); env != "" {
		config.Environment = env
	}

	// PORT is the conventional hosting variable; FAPI_SERVER_PORT wins when both are set
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if port := os.Getenv("FAPI_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("FAPI_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	if level := os.Getenv("FAPI_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("FAPI_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	if headless := os.Getenv("FAPI_BROWSER_HEADLESS"); headless != "" {
		if h, err := strconv.ParseBool(headless); err == nil {
			config.Browser.Headless = h
		}
	}
	if execPath := os.Getenv("FAPI_BROWSER_EXEC_PATH"); execPath != "" {
		config.Browser.ExecPath = execPath
	}

	if enabled := os.Getenv("FAPI_WARMUP_ENABLED"); enabled != "" {
		if e, err := strconv.ParseBool(enabled); err == nil {
			config.Warmup.Enabled = e
		}
	}

	if maxDuration := os.Getenv("FAPI_SCRAPE_MAX_DURATION"); maxDuration != "" {
		config.Scrape.MaxDuration = maxDuration
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// Validate checks struct tags and the duration settings. Timeouts and the poll
// interval must be positive; warmup.delay and scrape.max_duration may be zero.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	positive := map[string]string{
		"browser.launch_timeout":    c.Browser.LaunchTimeout,
		"driver.navigation_timeout": c.Driver.NavigationTimeout,
		"driver.input_timeout":      c.Driver.InputTimeout,
		"driver.submit_timeout":     c.Driver.SubmitTimeout,
		"driver.answer_timeout":     c.Driver.AnswerTimeout,
		"scrape.poll_interval":      c.Scrape.PollInterval,
		"scrape.read_timeout":       c.Scrape.ReadTimeout,
	}
	nonNegative := map[string]string{
		"warmup.delay":        c.Warmup.Delay,
		"scrape.max_duration": c.Scrape.MaxDuration, // 0 disables the budget
	}

	for key, value := range positive {
		if err := checkDuration(key, value, false); err != nil {
			return err
		}
	}
	for key, value := range nonNegative {
		if err := checkDuration(key, value, true); err != nil {
			return err
		}
	}

	return nil
}

func checkDuration(key, value string, allowZero bool) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid configuration: %s=%q: %w", key, value, err)
	}
	if d < 0 || (d == 0 && !allowZero) {
		return fmt.Errorf("invalid configuration: %s=%q must be positive", key, value)
	}
	return nil
}

// ParseDuration parses a duration string, returning fallback for empty or malformed values
func ParseDuration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}
