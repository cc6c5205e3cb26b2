package config

import "time"

// Config represents the main configuration structure
type Config struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Redaction RedactionConfig `yaml:"redaction" mapstructure:"redaction"`
	OCR       OCRConfig       `yaml:"ocr" mapstructure:"ocr"`
	Storage   StorageConfig   `yaml:"storage" mapstructure:"storage"`
	Security  SecurityConfig  `yaml:"security" mapstructure:"security"`
	Logging   LoggingConfig   `yaml:"logging" mapstructure:"logging"`
	WebSocket WebSocketConfig `yaml:"websocket" mapstructure:"websocket"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" mapstructure:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
	MaxUploadSizeMB int64         `yaml:"max_upload_size_mb" mapstructure:"max_upload_size_mb"`
}

// RedactionConfig controls the detection and redaction pipeline
type RedactionConfig struct {
	DefaultLevel   string        `yaml:"default_level" mapstructure:"default_level"`
	RequestTimeout time.Duration `yaml:"request_timeout" mapstructure:"request_timeout"`
}

// OCRConfig controls the text recognition backend for scanned documents
type OCRConfig struct {
	Enabled   bool     `yaml:"enabled" mapstructure:"enabled"`
	Languages []string `yaml:"languages" mapstructure:"languages"`
}

// StorageConfig controls the temporary document store
type StorageConfig struct {
	UploadDir      string `yaml:"upload_dir" mapstructure:"upload_dir"`
	CleanupOnStart bool   `yaml:"cleanup_on_start" mapstructure:"cleanup_on_start"`
}

// SecurityConfig contains rate limiting and CORS configuration
type SecurityConfig struct {
	RateLimit struct {
		Enabled           bool          `yaml:"enabled" mapstructure:"enabled"`
		RequestsPerMinute int           `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
		Burst             int           `yaml:"burst" mapstructure:"burst"`
		CleanupInterval   time.Duration `yaml:"cleanup_interval" mapstructure:"cleanup_interval"`
	} `yaml:"rate_limit" mapstructure:"rate_limit"`
	CORS struct {
		AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	} `yaml:"cors" mapstructure:"cors"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // json or console
	File   struct {
		Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
		Path     string `yaml:"path" mapstructure:"path"`
		MaxSize  int    `yaml:"max_size" mapstructure:"max_size"`
		MaxAge   int    `yaml:"max_age" mapstructure:"max_age"`
		Compress bool   `yaml:"compress" mapstructure:"compress"`
	} `yaml:"file" mapstructure:"file"`
}

// WebSocketConfig contains WebSocket configuration
type WebSocketConfig struct {
	Enabled         bool          `yaml:"enabled" mapstructure:"enabled"`
	Path            string        `yaml:"path" mapstructure:"path"`
	MaxConnections  int           `yaml:"max_connections" mapstructure:"max_connections"`
	ReadBufferSize  int           `yaml:"read_buffer_size" mapstructure:"read_buffer_size"`
	WriteBufferSize int           `yaml:"write_buffer_size" mapstructure:"write_buffer_size"`
	PingInterval    time.Duration `yaml:"ping_interval" mapstructure:"ping_interval"`
	PongTimeout     time.Duration `yaml:"pong_timeout" mapstructure:"pong_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	MaxMessageSize  int64         `yaml:"max_message_size" mapstructure:"max_message_size"`
	AllowedOrigins  []string      `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// GetDefaults returns a configuration with sensible defaults
func GetDefaults() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     60 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     120 * time.Second,
			MaxUploadSizeMB: 50,
		},
		Redaction: RedactionConfig{
			DefaultLevel:   "low",
			RequestTimeout: 120 * time.Second,
		},
		OCR: OCRConfig{
			Enabled:   true,
			Languages: []string{"eng"},
		},
		Storage: StorageConfig{
			UploadDir:      "temp_files",
			CleanupOnStart: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			File: struct {
				Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
				Path     string `yaml:"path" mapstructure:"path"`
				MaxSize  int    `yaml:"max_size" mapstructure:"max_size"`
				MaxAge   int    `yaml:"max_age" mapstructure:"max_age"`
				Compress bool   `yaml:"compress" mapstructure:"compress"`
			}{
				Enabled:  false,
				Path:     "logs/safedocs.log",
				MaxSize:  100, // MB
				MaxAge:   30,  // days
				Compress: true,
			},
		},
		WebSocket: WebSocketConfig{
			Enabled:         true,
			Path:            "/ws",
			MaxConnections:  100,
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			PingInterval:    54 * time.Second,
			PongTimeout:     60 * time.Second,
			WriteTimeout:    10 * time.Second,
			MaxMessageSize:  512,
			AllowedOrigins:  []string{"*"},
		},
	}
	cfg.Security.RateLimit.Enabled = true
	cfg.Security.RateLimit.RequestsPerMinute = 60
	cfg.Security.RateLimit.Burst = 10
	cfg.Security.RateLimit.CleanupInterval = 5 * time.Minute
	cfg.Security.CORS.AllowedOrigins = []string{"*"}
	return cfg
}
