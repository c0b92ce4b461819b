package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App      App      `mapstructure:"app"`
	Server   Server   `mapstructure:"server"`
	Database Database `mapstructure:"database"`
	Auth     Auth     `mapstructure:"auth"`
	AI       AI       `mapstructure:"ai"`
	Scraper  Scraper  `mapstructure:"scraper"`
	Cache    Cache    `mapstructure:"cache"`
	Email    Email    `mapstructure:"email"`
}

// App holds general application configuration
type App struct {
	Debug      bool   `mapstructure:"debug"`
	LogLevel   string `mapstructure:"log_level"`
	DataDir    string `mapstructure:"data_dir"`
	ConfigFile string `mapstructure:"config_file"`
	SiteURL    string `mapstructure:"site_url"` // Base URL used in verification/reset links
}

// Server holds HTTP server configuration
type Server struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	CORS         CORS          `mapstructure:"cors"`
}

// CORS holds cross-origin configuration
type CORS struct {
	Enabled        bool     `mapstructure:"enabled"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Database holds SQLite configuration
type Database struct {
	Directory string `mapstructure:"directory"`
	Timeout   string `mapstructure:"timeout"`
}

// Auth holds authentication configuration
type Auth struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	TokenTTL  string `mapstructure:"token_ttl"`  // Session token lifetime
	VerifyTTL string `mapstructure:"verify_ttl"` // Email verification / reset token lifetime
}

// AI holds AI/LLM configuration
type AI struct {
	Gemini GeminiConfig `mapstructure:"gemini"`
}

// GeminiConfig holds Google Gemini configuration
type GeminiConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	Timeout     string  `mapstructure:"timeout"`
	MaxTokens   int32   `mapstructure:"max_tokens"`
	Temperature float32 `mapstructure:"temperature"`
}

// Scraper holds the metadata-extraction service configuration. When the API
// key is empty the local goquery extractor is used instead of the remote API.
type Scraper struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Timeout string `mapstructure:"timeout"`
}

// Cache holds insight cache configuration
type Cache struct {
	Capacity int    `mapstructure:"capacity"`
	TTL      string `mapstructure:"ttl"`
}

// Email holds outbound email configuration. Delivery is disabled when the API
// key is empty.
type Email struct {
	APIKey      string `mapstructure:"api_key"`
	BaseURL     string `mapstructure:"base_url"`
	FromAddress string `mapstructure:"from_address"`
	FromName    string `mapstructure:"from_name"`
	Timeout     string `mapstructure:"timeout"`
}

var globalConfig *Config

// Load loads the configuration from various sources
func Load(configFile string) (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	// Load .env file if it exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Printf("Warning: Error loading .env file: %v\n", err)
		}
	}

	// Configure viper
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
		viper.SetConfigName(".notulio")
		viper.SetConfigType("yaml")
	}

	setDefaults()
	bindEnvironmentVariables()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := postProcessConfig(config); err != nil {
		return nil, fmt.Errorf("error post-processing config: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	globalConfig = config
	return config, nil
}

// Get returns the global configuration, loading it if necessary
func Get() *Config {
	if globalConfig == nil {
		config, err := Load("")
		if err != nil {
			panic(fmt.Sprintf("Failed to load configuration: %v", err))
		}
		return config
	}
	return globalConfig
}

// Reset clears the cached global configuration. Intended for tests.
func Reset() {
	globalConfig = nil
	viper.Reset()
}

// setDefaults sets default configuration values
func setDefaults() {
	// App defaults
	viper.SetDefault("app.debug", false)
	viper.SetDefault("app.log_level", "info")
	viper.SetDefault("app.data_dir", ".notulio-data")
	viper.SetDefault("app.site_url", "http://localhost:8080")

	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "15s")
	viper.SetDefault("server.write_timeout", "60s")
	viper.SetDefault("server.cors.enabled", true)
	viper.SetDefault("server.cors.allowed_origins", []string{"http://localhost:3000"})

	// Database defaults
	viper.SetDefault("database.directory", ".notulio-data")
	viper.SetDefault("database.timeout", "5s")

	// Auth defaults
	viper.SetDefault("auth.token_ttl", "168h")
	viper.SetDefault("auth.verify_ttl", "24h")

	// AI defaults
	viper.SetDefault("ai.gemini.model", "gemini-2.5-flash")
	viper.SetDefault("ai.gemini.timeout", "30s")
	viper.SetDefault("ai.gemini.max_tokens", 8192)
	viper.SetDefault("ai.gemini.temperature", 0.7)

	// Scraper defaults
	viper.SetDefault("scraper.base_url", "https://api.firecrawl.dev")
	viper.SetDefault("scraper.timeout", "30s")

	// Cache defaults
	viper.SetDefault("cache.capacity", 256)
	viper.SetDefault("cache.ttl", "24h")

	// Email defaults
	viper.SetDefault("email.base_url", "https://api.sendgrid.com")
	viper.SetDefault("email.from_name", "Notulio")
	viper.SetDefault("email.timeout", "10s")
}

// bindEnvironmentVariables sets up flexible environment variable binding
func bindEnvironmentVariables() {
	// Gemini API key - support multiple formats
	bindEnvKeys("ai.gemini.api_key", []string{
		"GEMINI_API_KEY",
		"GOOGLE_GEMINI_API_KEY",
		"GOOGLE_AI_API_KEY",
	})

	// Scraping service
	bindEnvKeys("scraper.api_key", []string{
		"FIRECRAWL_API_KEY",
		"SCRAPER_API_KEY",
	})

	// Auth
	bindEnvKeys("auth.jwt_secret", []string{
		"NOTULIO_JWT_SECRET",
		"JWT_SECRET",
	})

	// Email delivery
	bindEnvKeys("email.api_key", []string{
		"SENDGRID_API_KEY",
		"EMAIL_API_KEY",
	})
	bindEnvKeys("email.from_address", []string{
		"EMAIL_FROM_ADDRESS",
		"SENDGRID_FROM_EMAIL",
	})

	// General settings
	bindEnvKeys("app.debug", []string{
		"DEBUG",
		"NOTULIO_DEBUG",
	})
	bindEnvKeys("app.site_url", []string{
		"SITE_URL",
		"NOTULIO_SITE_URL",
	})
}

// bindEnvKeys binds the first found environment variable to a viper key
func bindEnvKeys(viperKey string, envKeys []string) {
	for _, envKey := range envKeys {
		if value := os.Getenv(envKey); value != "" {
			viper.Set(viperKey, value)
			return
		}
	}
}

// postProcessConfig applies post-processing to configuration values
func postProcessConfig(config *Config) error {
	if config.App.DataDir != "" {
		config.App.DataDir = expandPath(config.App.DataDir)
	}
	if config.Database.Directory != "" {
		config.Database.Directory = expandPath(config.Database.Directory)
	}

	// Validate durations
	durations := map[string]string{
		"database.timeout":  config.Database.Timeout,
		"auth.token_ttl":    config.Auth.TokenTTL,
		"auth.verify_ttl":   config.Auth.VerifyTTL,
		"ai.gemini.timeout": config.AI.Gemini.Timeout,
		"scraper.timeout":   config.Scraper.Timeout,
		"cache.ttl":         config.Cache.TTL,
		"email.timeout":     config.Email.Timeout,
	}
	for key, duration := range durations {
		if duration != "" {
			if _, err := time.ParseDuration(duration); err != nil {
				return fmt.Errorf("invalid duration for %s: %s", key, duration)
			}
		}
	}

	return nil
}

// expandPath expands ~ and environment variables in paths
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return os.ExpandEnv(path)
}

// validateConfig ensures required configuration is present
func validateConfig(config *Config) error {
	var errors []string

	if config.Auth.JWTSecret == "" {
		errors = append(errors, "JWT secret is required. Set NOTULIO_JWT_SECRET environment variable or auth.jwt_secret in config file")
	}

	if config.AI.Gemini.APIKey == "" {
		errors = append(errors, "Gemini API key is required. Set GEMINI_API_KEY environment variable or ai.gemini.api_key in config file.\nGet your API key from: https://makersuite.google.com/app/apikey")
	}

	// Email delivery is optional, but a from address is required once enabled
	if config.Email.APIKey != "" && config.Email.FromAddress == "" {
		errors = append(errors, "email from address is required when email delivery is configured. Set EMAIL_FROM_ADDRESS")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration errors:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// Convenience getters for commonly used configuration values
func GetApp() App           { return Get().App }
func GetServer() Server     { return Get().Server }
func GetDatabase() Database { return Get().Database }
func GetAuth() Auth         { return Get().Auth }
func GetAI() AI             { return Get().AI }
func GetScraper() Scraper   { return Get().Scraper }
func GetCache() Cache       { return Get().Cache }
func GetEmail() Email       { return Get().Email }

// Specific convenience getters for frequently accessed values
func GetGeminiAPIKey() string { return Get().AI.Gemini.APIKey }
func GetGeminiModel() string  { return Get().AI.Gemini.Model }
func GetDataDir() string      { return Get().App.DataDir }
func IsDebugMode() bool       { return Get().App.Debug }

// TokenTTL returns the parsed session token lifetime.
func (a Auth) TokenTTLDuration() time.Duration {
	d, err := time.ParseDuration(a.TokenTTL)
	if err != nil || d <= 0 {
		return 168 * time.Hour
	}
	return d
}

// VerifyTTLDuration returns the parsed verification token lifetime.
func (a Auth) VerifyTTLDuration() time.Duration {
	d, err := time.ParseDuration(a.VerifyTTL)
	if err != nil || d <= 0 {
		return 24 * time.Hour
	}
	return d
}

// TTLDuration returns the parsed insight cache TTL.
func (c Cache) TTLDuration() time.Duration {
	d, err := time.ParseDuration(c.TTL)
	if err != nil || d <= 0 {
		return 24 * time.Hour
	}
	return d
}
