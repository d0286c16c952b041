package config

import "time"

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Places    PlacesConfig    `mapstructure:"places"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Assistant AssistantConfig `mapstructure:"assistant"`
	Batch     BatchConfig     `mapstructure:"batch"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Port            string   `mapstructure:"port"`
	StaticDir       string   `mapstructure:"static_dir"`
	SessionSecret   string   `mapstructure:"session_secret"`
	RateLimit       int      `mapstructure:"rate_limit"`       // requests per window per IP, 0 disables
	RateWindow      int      `mapstructure:"rate_window"`      // milliseconds
	ReadTimeout     int      `mapstructure:"read_timeout"`     // milliseconds
	WriteTimeout    int      `mapstructure:"write_timeout"`    // milliseconds
	ShutdownTimeout int      `mapstructure:"shutdown_timeout"` // milliseconds
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
}

type PlacesConfig struct {
	Provider       string  `mapstructure:"provider"` // google | directory
	BaseURL        string  `mapstructure:"base_url"`
	APIKey         string  `mapstructure:"api_key"`
	Keyword        string  `mapstructure:"keyword"`
	RadiusMeters   float64 `mapstructure:"radius_meters"`
	Timeout        int     `mapstructure:"timeout"` // milliseconds
	MaxRetries     int     `mapstructure:"max_retries"`
	DirectoryFile  string  `mapstructure:"directory_file"`
	DirectorySheet string  `mapstructure:"directory_sheet"`
	CacheTTL       int     `mapstructure:"cache_ttl"` // seconds, 0 disables
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AssistantConfig carries the chat widget options the page used to keep in globals.
type AssistantConfig struct {
	IntegrationID     string `mapstructure:"integration_id"`
	Region            string `mapstructure:"region"`
	ServiceInstanceID string `mapstructure:"service_instance_id"`
	ClientVersion     string `mapstructure:"client_version"`
}

type BatchConfig struct {
	UploadDir string `mapstructure:"upload_dir"`
	OutputDir string `mapstructure:"output_dir"`
	JobTTL    int    `mapstructure:"job_ttl"`    // seconds
	MaxUpload int64  `mapstructure:"max_upload"` // bytes
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
