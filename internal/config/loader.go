package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads config.yaml (optional), then config.<env>.yaml, then the environment.
func Load() (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	env := v.GetString("app.environment")
	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // optional

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return finish(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// Legacy variable names.
	_ = v.BindEnv("server.port", "PORT")
	_ = v.BindEnv("app.environment", "APP_ENVIRONMENT", "NODE_ENV")
	_ = v.BindEnv("places.api_key", "GOOGLE_MAPS_API_KEY", "PLACES_API_KEY")
	_ = v.BindEnv("redis.address", "REDIS_ADDRESS")
	_ = v.BindEnv("server.session_secret", "SESSION_SECRET")
	return v
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{".env", "../.env", "../../.env"}
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// expandEnvVars resolves ${VAR} placeholders left in string values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			if expanded := os.ExpandEnv(strVal); expanded != strVal {
				v.Set(key, expanded)
			}
		}
	}
}

// defaultSessionSecret is only acceptable outside production.
const defaultSessionSecret = "change-me-loan-calculator-session"

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "loan-calculator")
	v.SetDefault("app.environment", "development")

	v.SetDefault("server.port", "3000")
	v.SetDefault("server.static_dir", "")
	v.SetDefault("server.session_secret", defaultSessionSecret)
	v.SetDefault("server.rate_limit", 60)
	v.SetDefault("server.rate_window", 60000)
	v.SetDefault("server.read_timeout", 15000)
	v.SetDefault("server.write_timeout", 30000)
	v.SetDefault("server.shutdown_timeout", 10000)
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("places.provider", "google")
	v.SetDefault("places.base_url", "https://maps.googleapis.com/maps/api/place/nearbysearch/json")
	v.SetDefault("places.api_key", "")
	v.SetDefault("places.keyword", "Wafasalaf")
	v.SetDefault("places.radius_meters", 5000.0)
	v.SetDefault("places.timeout", 10000)
	v.SetDefault("places.max_retries", 2)
	v.SetDefault("places.directory_file", "")
	v.SetDefault("places.directory_sheet", "Branches")
	v.SetDefault("places.cache_ttl", 600)

	v.SetDefault("redis.address", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("assistant.integration_id", "")
	v.SetDefault("assistant.region", "")
	v.SetDefault("assistant.service_instance_id", "")
	v.SetDefault("assistant.client_version", "latest")

	v.SetDefault("batch.upload_dir", "uploads")
	v.SetDefault("batch.output_dir", "output")
	v.SetDefault("batch.job_ttl", 3600)
	v.SetDefault("batch.max_upload", 20<<20)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

func validateConfig(cfg *Config) error {
	if cfg.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}
	if cfg.App.Environment == "production" &&
		(cfg.Server.SessionSecret == "" || cfg.Server.SessionSecret == defaultSessionSecret) {
		return fmt.Errorf("server.session_secret must be set in production")
	}
	switch cfg.Places.Provider {
	case "google":
		if cfg.Places.BaseURL == "" {
			return fmt.Errorf("places.base_url is required for the google provider")
		}
	case "directory":
		if cfg.Places.DirectoryFile == "" {
			return fmt.Errorf("places.directory_file is required for the directory provider")
		}
	default:
		return fmt.Errorf("places.provider must be google or directory, got %q", cfg.Places.Provider)
	}
	if cfg.Places.RadiusMeters <= 0 {
		return fmt.Errorf("places.radius_meters must be positive")
	}
	if cfg.Places.MaxRetries < 0 {
		return fmt.Errorf("places.max_retries must not be negative")
	}
	return nil
}
