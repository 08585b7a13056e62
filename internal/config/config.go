package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tdh8316/osintagg/internal/httpx"
)

const (
	DefaultConfigPath = "osintagg.yml"

	DefaultDelay       = time.Second
	DefaultConcurrency = 1
	MaxConcurrency     = 16

	envTimeout       = "OSINTAGG_TIMEOUT"
	envDelay         = "OSINTAGG_DELAY"
	envConcurrency   = "OSINTAGG_CONCURRENCY"
	envPlatformsFile = "OSINTAGG_PLATFORMS_FILE"
	envUserAgent     = "OSINTAGG_USER_AGENT"
	envProxy         = "OSINTAGG_PROXY"
	envExport        = "OSINTAGG_EXPORT"
	envTor           = "OSINTAGG_TOR"
)

// Loader merges configuration coming from files, environment variables, and CLI flags.
type Loader struct {
	ConfigPath string
}

// RuntimeConfig holds the merged scan settings.
type RuntimeConfig struct {
	Timeout       time.Duration
	Delay         time.Duration
	Concurrency   int
	PlatformsFile string
	UserAgent     string
	Proxy         string
	Tor           bool
	Export        string
}

// Overrides captures values coming from the config file, env vars or CLI
// flags. Zero values (and nil pointers) leave the lower layer untouched.
type Overrides struct {
	Timeout       *time.Duration
	Delay         *time.Duration
	Concurrency   *int
	PlatformsFile string
	UserAgent     string
	Proxy         string
	Tor           *bool
	Export        string
}

func DefaultRuntimeConfig() RuntimeConfig {
	return RuntimeConfig{
		Timeout:     httpx.DefaultTimeout,
		Delay:       DefaultDelay,
		Concurrency: DefaultConcurrency,
		UserAgent:   httpx.DefaultUserAgent,
	}
}

// Load resolves the final runtime configuration. A missing default config
// file is ignored; a missing explicit one is an error.
func (l Loader) Load(override Overrides) (RuntimeConfig, error) {
	cfg := DefaultRuntimeConfig()

	path := l.ConfigPath
	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath
	}

	if explicit || fileExists(path) {
		fileOv, err := loadFromFile(path)
		if err != nil {
			return cfg, err
		}
		cfg.apply(fileOv)
	}

	envOv, err := overridesFromEnv()
	if err != nil {
		return cfg, err
	}
	cfg.apply(envOv)
	cfg.apply(override)

	return cfg, nil
}

func (c RuntimeConfig) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive (got %s)", c.Timeout)
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay cannot be negative (got %s)", c.Delay)
	}
	if c.Concurrency < 1 || c.Concurrency > MaxConcurrency {
		return fmt.Errorf("concurrency must be between 1 and %d (got %d)", MaxConcurrency, c.Concurrency)
	}
	switch c.Export {
	case "", "json", "csv":
	default:
		return fmt.Errorf("export format must be json or csv (got %q)", c.Export)
	}
	if c.Tor && c.Proxy != "" {
		return errors.New("--tor and --proxy cannot be used together")
	}
	return nil
}

func (c *RuntimeConfig) apply(src Overrides) {
	if src.Timeout != nil {
		c.Timeout = *src.Timeout
	}
	if src.Delay != nil {
		c.Delay = *src.Delay
	}
	if src.Concurrency != nil {
		c.Concurrency = *src.Concurrency
	}
	if src.PlatformsFile != "" {
		c.PlatformsFile = src.PlatformsFile
	}
	if src.UserAgent != "" {
		c.UserAgent = src.UserAgent
	}
	if src.Proxy != "" {
		c.Proxy = src.Proxy
	}
	if src.Tor != nil {
		c.Tor = *src.Tor
	}
	if src.Export != "" {
		c.Export = strings.ToLower(strings.TrimSpace(src.Export))
	}
}

func loadFromFile(path string) (Overrides, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Overrides{}, fmt.Errorf("read config: %w", err)
	}

	type rawConfig struct {
		Timeout       string `yaml:"timeout"`
		Delay         string `yaml:"delay"`
		Concurrency   *int   `yaml:"concurrency"`
		PlatformsFile string `yaml:"platformsFile"`
		UserAgent     string `yaml:"userAgent"`
		Proxy         string `yaml:"proxy"`
		Tor           *bool  `yaml:"tor"`
		Export        string `yaml:"export"`
	}

	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Overrides{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	over := Overrides{
		Concurrency:   raw.Concurrency,
		PlatformsFile: raw.PlatformsFile,
		UserAgent:     raw.UserAgent,
		Proxy:         raw.Proxy,
		Tor:           raw.Tor,
		Export:        raw.Export,
	}
	if over.Timeout, err = parseDuration("timeout", raw.Timeout); err != nil {
		return Overrides{}, err
	}
	if over.Delay, err = parseDuration("delay", raw.Delay); err != nil {
		return Overrides{}, err
	}
	return over, nil
}

func overridesFromEnv() (Overrides, error) {
	var (
		ov  Overrides
		err error
	)

	if ov.Timeout, err = parseDuration(envTimeout, os.Getenv(envTimeout)); err != nil {
		return ov, err
	}
	if ov.Delay, err = parseDuration(envDelay, os.Getenv(envDelay)); err != nil {
		return ov, err
	}

	if value := os.Getenv(envConcurrency); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return ov, fmt.Errorf("%s: %w", envConcurrency, err)
		}
		ov.Concurrency = &parsed
	}

	ov.PlatformsFile = os.Getenv(envPlatformsFile)
	ov.UserAgent = os.Getenv(envUserAgent)
	ov.Proxy = os.Getenv(envProxy)
	ov.Export = os.Getenv(envExport)

	if value := os.Getenv(envTor); value != "" {
		parsed := strings.EqualFold(value, "true") || value == "1"
		ov.Tor = &parsed
	}

	return ov, nil
}

func parseDuration(name, value string) (*time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	d, err := ParseDuration(value)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return &d, nil
}

// ParseDuration accepts Go duration strings ("1500ms") and bare numbers,
// which are read as seconds.
func ParseDuration(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", value)
	}
	return d, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
