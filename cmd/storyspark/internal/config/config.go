// Package config loads the storyspark CLI configuration.
//
// The configuration file lives under os.UserConfigDir()/storyspark/:
//
//	~/Library/Application Support/storyspark/config.yaml   (macOS)
//	~/.config/storyspark/config.yaml                       (Linux)
//	%AppData%/storyspark/config.yaml                       (Windows)
//
// STORYSPARK_CONFIG_DIR replaces the directory. Environment variables such as
// GEMINI_API_KEY and STORYSPARK_PROVIDER override values read from the file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/goccy/go-yaml"
)

const (
	// appDir is the directory name under os.UserConfigDir().
	appDir = "storyspark"

	// FileName is the configuration file name within the directory.
	FileName = "config.yaml"

	// dirEnv overrides the configuration directory.
	dirEnv = "STORYSPARK_CONFIG_DIR"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"

	CacheMemory = "memory"
	CacheBadger = "badger"
	CacheNone   = "none"
)

// Config is the complete CLI configuration.
type Config struct {
	// Provider selects the generative backend: gemini or openai.
	Provider string `yaml:"provider" env:"STORYSPARK_PROVIDER"`

	// Language is the default narrative language.
	Language string `yaml:"language" env:"STORYSPARK_LANGUAGE"`

	// Voice is the narration voice. Empty picks the provider default.
	Voice string `yaml:"voice,omitempty" env:"STORYSPARK_VOICE"`

	// Lenient repairs malformed suggestion JSON before validation.
	Lenient bool `yaml:"lenient,omitempty" env:"STORYSPARK_LENIENT"`

	// RateLimit caps service calls per second. Zero disables pacing.
	RateLimit float64 `yaml:"rate_limit,omitempty" env:"STORYSPARK_RATE_LIMIT"`

	// Metrics prints the service call summary to stderr when a command
	// exits.
	Metrics bool `yaml:"metrics,omitempty" env:"STORYSPARK_METRICS"`

	Gemini   Gemini   `yaml:"gemini"`
	OpenAI   OpenAI   `yaml:"openai"`
	Cache    Cache    `yaml:"cache"`
	Export   Export   `yaml:"export"`
	Playback Playback `yaml:"playback"`
	Log      Log      `yaml:"log"`

	// Dir is the configuration directory. Not serialized.
	Dir string `yaml:"-"`
}

type Gemini struct {
	APIKey      string `yaml:"api_key,omitempty" env:"GEMINI_API_KEY"`
	Model       string `yaml:"model,omitempty" env:"GEMINI_MODEL"`
	SpeechModel string `yaml:"speech_model,omitempty" env:"GEMINI_SPEECH_MODEL"`
}

type OpenAI struct {
	APIKey      string `yaml:"api_key,omitempty" env:"OPENAI_API_KEY"`
	BaseURL     string `yaml:"base_url,omitempty" env:"OPENAI_BASE_URL"`
	Model       string `yaml:"model,omitempty" env:"OPENAI_MODEL"`
	SpeechModel string `yaml:"speech_model,omitempty" env:"OPENAI_SPEECH_MODEL"`
}

// Cache configures the narration clip cache.
type Cache struct {
	// Backend is memory, badger, or none.
	Backend string `yaml:"backend" env:"STORYSPARK_CACHE"`

	// Dir holds badger data, kept across runs. Empty runs badger in memory.
	Dir string `yaml:"dir,omitempty" env:"STORYSPARK_CACHE_DIR"`

	// TTL expires badger entries, e.g. "24h". Empty keeps them.
	TTL string `yaml:"ttl,omitempty" env:"STORYSPARK_CACHE_TTL"`

	// MaxEntries bounds the memory backend. Zero is unbounded.
	MaxEntries int `yaml:"max_entries,omitempty" env:"STORYSPARK_CACHE_MAX_ENTRIES"`
}

// Export configures where stories are written. S3 is used when a bucket is
// set, the local directory otherwise.
type Export struct {
	Dir string `yaml:"dir,omitempty" env:"STORYSPARK_EXPORT_DIR"`
	S3  S3     `yaml:"s3,omitempty"`
}

type S3 struct {
	Bucket          string `yaml:"bucket,omitempty" env:"STORYSPARK_S3_BUCKET"`
	Prefix          string `yaml:"prefix,omitempty" env:"STORYSPARK_S3_PREFIX"`
	Region          string `yaml:"region,omitempty" env:"AWS_REGION"`
	Endpoint        string `yaml:"endpoint,omitempty" env:"STORYSPARK_S3_ENDPOINT"`
	PathStyle       bool   `yaml:"path_style,omitempty" env:"STORYSPARK_S3_PATH_STYLE"`
	AccessKeyID     string `yaml:"access_key_id,omitempty" env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty" env:"AWS_SECRET_ACCESS_KEY"`
}

// Playback configures audio output.
type Playback struct {
	// Command receives raw s16le PCM on stdin. {rate} and {channels} are
	// substituted, e.g. "aplay -q -t raw -f S16_LE -r {rate} -c {channels}".
	// "-" writes the raw PCM to stdout. Empty plays nothing.
	Command string `yaml:"command,omitempty" env:"STORYSPARK_PLAYER"`
}

type Log struct {
	// Level is debug, info, warn, or error.
	Level string `yaml:"level" env:"STORYSPARK_LOG_LEVEL"`
}

// environ is replaced in tests.
var environ = func() map[string]string { return env.ToMap(os.Environ()) }

// DefaultDir returns the configuration directory.
func DefaultDir() (string, error) {
	if dir := os.Getenv(dirEnv); dir != "" {
		return dir, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine config directory: %w", err)
	}
	return filepath.Join(base, appDir), nil
}

// Load reads the configuration file at path, applies environment overrides
// and fills defaults. An empty path reads config.yaml from DefaultDir and
// tolerates its absence; an explicit path must exist.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		dir, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(dir, FileName)
	}

	cfg := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
		slog.Debug("config: no config file", "path", path)
	default:
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	if err := env.ParseWithOptions(cfg, env.Options{Environment: environ()}); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	cfg.Dir = filepath.Dir(path)
	cfg.setDefaults()
	return cfg, nil
}

func (c *Config) setDefaults() {
	if c.Provider == "" {
		c.Provider = ProviderGemini
	}
	if c.Language == "" {
		c.Language = "English"
	}
	if c.Gemini.Model == "" {
		c.Gemini.Model = "gemini-2.5-flash"
	}
	if c.Gemini.SpeechModel == "" {
		c.Gemini.SpeechModel = "gemini-2.5-flash-preview-tts"
	}
	if c.OpenAI.Model == "" {
		c.OpenAI.Model = "gpt-4o-mini"
	}
	if c.OpenAI.SpeechModel == "" {
		c.OpenAI.SpeechModel = "gpt-4o-mini-tts"
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = CacheMemory
	}
	if c.Export.Dir == "" && c.Dir != "" {
		c.Export.Dir = filepath.Join(c.Dir, "exports")
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate checks the configuration for the selected provider.
func (c *Config) Validate() error {
	var errs []error
	switch c.Provider {
	case ProviderGemini:
		if c.Gemini.APIKey == "" {
			errs = append(errs, errors.New("gemini.api_key is required (or set GEMINI_API_KEY)"))
		}
	case ProviderOpenAI:
		if c.OpenAI.APIKey == "" {
			errs = append(errs, errors.New("openai.api_key is required (or set OPENAI_API_KEY)"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown provider %q (want gemini or openai)", c.Provider))
	}
	switch c.Cache.Backend {
	case CacheMemory, CacheBadger, CacheNone:
	default:
		errs = append(errs, fmt.Errorf("unknown cache backend %q", c.Cache.Backend))
	}
	if _, err := c.CacheTTL(); err != nil {
		errs = append(errs, err)
	}
	if c.Cache.MaxEntries < 0 {
		errs = append(errs, errors.New("cache.max_entries must not be negative"))
	}
	if c.RateLimit < 0 {
		errs = append(errs, errors.New("rate_limit must not be negative"))
	}
	if _, err := c.LogLevel(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// CacheTTL parses Cache.TTL. Empty means no expiry.
func (c *Config) CacheTTL() (time.Duration, error) {
	if c.Cache.TTL == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Cache.TTL)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid cache.ttl %q", c.Cache.TTL)
	}
	return d, nil
}

// SpeechModel returns the speech model of the selected provider.
func (c *Config) SpeechModel() string {
	if c.Provider == ProviderOpenAI {
		return c.OpenAI.SpeechModel
	}
	return c.Gemini.SpeechModel
}

// LogLevel parses Log.Level.
func (c *Config) LogLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("invalid log.level %q", c.Log.Level)
	}
	return l, nil
}

// Redacted returns a copy with secrets masked, for display.
func (c *Config) Redacted() *Config {
	r := *c
	r.Gemini.APIKey = mask(r.Gemini.APIKey)
	r.OpenAI.APIKey = mask(r.OpenAI.APIKey)
	r.Export.S3.SecretAccessKey = mask(r.Export.S3.SecretAccessKey)
	return &r
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + strings.Repeat("*", 4) + s[len(s)-4:]
}

// Save writes the configuration to path, creating its directory.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
