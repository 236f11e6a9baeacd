package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/KaramelBytes/autolysis/internal/ai"
	"github.com/KaramelBytes/autolysis/internal/dataset"
	"github.com/KaramelBytes/autolysis/internal/viz"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// ErrMissingCredential is returned by Validate when narration is enabled but
// no API key is configured.
var ErrMissingCredential = errors.New("API credential missing: set AIPROXY_TOKEN or pass --no-narrative")

// Global configuration structure.
type Global struct {
	APIKey          string  `mapstructure:"api_key" yaml:"api_key"`
	BaseURL         string  `mapstructure:"base_url" yaml:"base_url"`
	Model           string  `mapstructure:"model" yaml:"model"`
	Temperature     float64 `mapstructure:"temperature" yaml:"temperature"`
	MaxPromptTokens int     `mapstructure:"max_prompt_tokens" yaml:"max_prompt_tokens"`
	HTTPTimeoutSec  int     `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`
	Narrate         bool    `mapstructure:"narrate" yaml:"narrate"`

	// Images
	ImageFormat   string  `mapstructure:"image_format" yaml:"image_format"`
	ImageWidthIn  float64 `mapstructure:"image_width_in" yaml:"image_width_in"`
	ImageHeightIn float64 `mapstructure:"image_height_in" yaml:"image_height_in"`
	HistogramBins int     `mapstructure:"histogram_bins" yaml:"histogram_bins"`

	// Input parsing
	Encodings []string `mapstructure:"encodings" yaml:"encodings"`
	Delimiter string   `mapstructure:"delimiter" yaml:"delimiter"`

	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`
}

// Defaults returns the built-in configuration.
func Defaults() *Global {
	return &Global{
		BaseURL:         ai.DefaultBaseURL,
		Model:           "gpt-4o-mini",
		Temperature:     0.7,
		MaxPromptTokens: 3000,
		HTTPTimeoutSec:  60,
		Narrate:         true,
		ImageFormat:     "png",
		ImageWidthIn:    8,
		ImageHeightIn:   6,
		Encodings:       append([]string(nil), dataset.DefaultEncodings...),
		LogLevel:        "info",
		LogFormat:       "console",
	}
}

// DefaultPath returns ~/.autolysis/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".autolysis", "config.yaml"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.autolysis/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) (string, error) {
	path := cfgFile
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return "", err
		}
		path = p
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("mkdir config dir: %w", err)
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return "", fmt.Errorf("write config: %w", err)
	}
	return path, nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: env > config file > defaults. Flags are applied by the caller.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("AUTOLYSIS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// AIPROXY_TOKEN is the conventional name for the proxy credential.
	if err := v.BindEnv("api_key", "AUTOLYSIS_API_KEY", "AIPROXY_TOKEN"); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}

	d := Defaults()
	v.SetDefault("api_key", "")
	v.SetDefault("base_url", d.BaseURL)
	v.SetDefault("model", d.Model)
	v.SetDefault("temperature", d.Temperature)
	v.SetDefault("max_prompt_tokens", d.MaxPromptTokens)
	v.SetDefault("http_timeout_sec", d.HTTPTimeoutSec)
	v.SetDefault("narrate", d.Narrate)
	v.SetDefault("image_format", d.ImageFormat)
	v.SetDefault("image_width_in", d.ImageWidthIn)
	v.SetDefault("image_height_in", d.ImageHeightIn)
	v.SetDefault("histogram_bins", d.HistogramBins)
	v.SetDefault("encodings", d.Encodings)
	v.SetDefault("delimiter", "")
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)

	// Config file
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".autolysis"))
			v.SetConfigName("config")
			v.SetConfigType("yaml")
			// optional read
			var nf viper.ConfigFileNotFoundError
			if err := v.ReadInConfig(); err != nil && !errors.As(err, &nf) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &c, nil
}

// Validate checks the configuration before any pipeline stage runs.
func (c *Global) Validate() error {
	if c.Narrate && strings.TrimSpace(c.APIKey) == "" {
		return ErrMissingCredential
	}
	if !viz.ValidFormat(c.ImageFormat) {
		return fmt.Errorf("unsupported image_format %q", c.ImageFormat)
	}
	if len(c.Encodings) == 0 {
		return errors.New("encodings must list at least one encoding")
	}
	for _, e := range c.Encodings {
		if _, ok := dataset.NormalizeEncoding(e); !ok {
			return fmt.Errorf("unsupported encoding %q (supported: %s)", e, strings.Join(dataset.SupportedEncodings(), ", "))
		}
	}
	switch c.Delimiter {
	case "", `\t`, "tab":
	default:
		if utf8.RuneCountInString(c.Delimiter) != 1 {
			return fmt.Errorf("delimiter must be a single character, got %q", c.Delimiter)
		}
	}
	if c.HistogramBins < 0 {
		return errors.New("histogram_bins must be >= 0")
	}
	if c.ImageWidthIn <= 0 || c.ImageHeightIn <= 0 {
		return errors.New("image dimensions must be positive")
	}
	if c.HTTPTimeoutSec <= 0 {
		return errors.New("http_timeout_sec must be positive")
	}
	return nil
}

// HTTPTimeout returns the narrator request timeout.
func (c *Global) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSec) * time.Second
}

// DelimiterRune resolves the configured delimiter; 0 means auto-detect.
func (c *Global) DelimiterRune() rune {
	switch c.Delimiter {
	case "":
		return 0
	case `\t`, "tab":
		return '\t'
	}
	return []rune(c.Delimiter)[0]
}

// Masked returns a copy safe for display.
func (c *Global) Masked() *Global {
	cp := *c
	cp.Encodings = append([]string(nil), c.Encodings...)
	cp.APIKey = MaskKey(c.APIKey)
	return &cp
}

// MaskKey keeps the last four characters of a secret.
func MaskKey(k string) string {
	if k == "" {
		return ""
	}
	if len(k) <= 4 {
		return "****"
	}
	return "****" + k[len(k)-4:]
}
