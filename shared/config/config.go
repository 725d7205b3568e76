package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultModel              = "gemini-2.0-flash"
	DefaultPort               = 8000
	DefaultMaxTranscriptChars = 50000
	DefaultTokenRefresh       = "@every 30m"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	AI       AIConfig       `yaml:"ai"`
	YouTube  YouTubeConfig  `yaml:"youtube"`
	Analysis AnalysisConfig `yaml:"analysis"`
	LogLevel string         `yaml:"log_level"`
}

type ServerConfig struct {
	Port           int           `yaml:"port" env:"PORT"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
}

type AIConfig struct {
	GeminiAPIKey    string `yaml:"gemini_api_key" env:"GEMINI_API_KEY"`
	Model           string `yaml:"model"`
	SearchGrounding bool   `yaml:"search_grounding"`
}

type YouTubeConfig struct {
	APIKey       string        `yaml:"api_key" env:"YOUTUBE_API_KEY"`
	ClientID     string        `yaml:"client_id" env:"GOOGLE_CLIENT_ID"`
	ClientSecret string        `yaml:"client_secret" env:"GOOGLE_CLIENT_SECRET"`
	TokenFile    string        `yaml:"token_file"`
	TokenRefresh string        `yaml:"token_refresh"`
	HTTPTimeout  time.Duration `yaml:"http_timeout"`
}

// UsesOAuth reports whether Data API calls should go through an OAuth token
// instead of an API key.
func (y YouTubeConfig) UsesOAuth() bool {
	return y.APIKey == "" && y.ClientID != "" && y.ClientSecret != ""
}

type AnalysisConfig struct {
	// MaxTranscriptChars bounds how much transcript text is embedded in the
	// fallback prompt.
	MaxTranscriptChars int      `yaml:"max_transcript_chars"`
	PreferredLanguages []string `yaml:"preferred_languages"`
	// StreamFallback lets the streaming endpoint retry with the transcript
	// when native ingestion fails before any chunk was sent.
	StreamFallback bool `yaml:"stream_fallback"`
}

// Load reads the YAML config file named by CONFIG_FILE (default config.yaml),
// applies environment overrides and defaults, and validates the result. A
// missing default config file is not an error; everything can come from the
// environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	configFile := os.Getenv("CONFIG_FILE")
	explicit := configFile != ""
	if !explicit {
		configFile = "config.yaml"
	}

	return LoadFile(configFile, explicit)
}

// LoadFile is Load with an explicit path. When required is false a missing
// file yields a config built from the environment alone.
func LoadFile(configFile string, required bool) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(configFile)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", configFile, err)
		}
	case errors.Is(err, os.ErrNotExist) && !required:
	default:
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyEnv() {
	if c.AI.GeminiAPIKey == "" {
		c.AI.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	}
	if c.YouTube.APIKey == "" {
		c.YouTube.APIKey = os.Getenv("YOUTUBE_API_KEY")
	}
	if c.YouTube.ClientID == "" {
		c.YouTube.ClientID = os.Getenv("GOOGLE_CLIENT_ID")
	}
	if c.YouTube.ClientSecret == "" {
		c.YouTube.ClientSecret = os.Getenv("GOOGLE_CLIENT_SECRET")
	}
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.LogLevel = level
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"http://localhost:3000", "https://*.vercel.app"}
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 5 * time.Minute
	}
	if c.AI.Model == "" {
		c.AI.Model = DefaultModel
	}
	if c.YouTube.TokenFile == "" {
		c.YouTube.TokenFile = "youtube_token.json"
	}
	if c.YouTube.TokenRefresh == "" {
		c.YouTube.TokenRefresh = DefaultTokenRefresh
	}
	if c.YouTube.HTTPTimeout == 0 {
		c.YouTube.HTTPTimeout = 30 * time.Second
	}
	if c.Analysis.MaxTranscriptChars == 0 {
		c.Analysis.MaxTranscriptChars = DefaultMaxTranscriptChars
	}
	if len(c.Analysis.PreferredLanguages) == 0 {
		c.Analysis.PreferredLanguages = []string{"en", "en-US", "en-GB"}
	}
}

func (c *Config) validate() error {
	if c.AI.GeminiAPIKey == "" {
		return fmt.Errorf("Gemini API key is required (set GEMINI_API_KEY or ai.gemini_api_key)")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if c.Analysis.MaxTranscriptChars < 0 {
		return fmt.Errorf("analysis.max_transcript_chars must not be negative")
	}
	if (c.YouTube.ClientID == "") != (c.YouTube.ClientSecret == "") {
		return fmt.Errorf("YouTube OAuth needs both client ID and client secret (set GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET)")
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}
