package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the main configuration structure
type Config struct {
	OutputDirectory     string            `mapstructure:"output_directory"`
	SupportedExtensions []string          `mapstructure:"supported_extensions"`
	Processing          ProcessingConfig  `mapstructure:"processing"`
	Performance         PerformanceConfig `mapstructure:"performance"`
	Logging             LoggingConfig     `mapstructure:"logging"`
}

// ProcessingConfig contains image processing settings.
// Quality values are validated to the 1-100 range before any file I/O happens.
type ProcessingConfig struct {
	Quality          int `mapstructure:"quality"`
	ThumbnailQuality int `mapstructure:"thumbnail_quality"`
	MaxDimension     int `mapstructure:"max_dimension"`
	ThumbnailSize    int `mapstructure:"thumbnail_size"`
}

// PerformanceConfig contains performance tuning settings
type PerformanceConfig struct {
	WorkerThreads int  `mapstructure:"worker_threads"`
	ShowProgress  bool `mapstructure:"show_progress"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"` // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
	Compress   bool   `mapstructure:"compress"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		SupportedExtensions: []string{
			".jpg", ".jpeg", ".png", ".gif", ".bmp", ".webp",
		},
		Processing: ProcessingConfig{
			Quality:          85,
			ThumbnailQuality: 70,
			MaxDimension:     1200,
			ThumbnailSize:    300,
		},
		Performance: PerformanceConfig{
			WorkerThreads: 1,
			ShowProgress:  true,
		},
		Logging: LoggingConfig{
			Level:      "info",
			FilePath:   "",
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     30,
			Compress:   true,
		},
	}
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	viper.SetConfigType("yaml")

	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		// Look for config file in current directory and home directory
		viper.SetConfigName("config")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.imgop")
		viper.AddConfigPath("/etc/imgop")
	}

	// Enable environment variable support
	viper.SetEnvPrefix("IMGOP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Try to read config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults
	}

	// Unmarshal config
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Validate and normalize config
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := c.Processing.Validate(); err != nil {
		return err
	}

	if len(c.SupportedExtensions) == 0 {
		return fmt.Errorf("supported_extensions must not be empty")
	}
	c.SupportedExtensions = normalizeExtensions(c.SupportedExtensions)

	if c.Performance.WorkerThreads <= 0 {
		c.Performance.WorkerThreads = 1
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.Logging.Level)
	}

	return nil
}

// Validate checks quality and dimension settings before any processing starts.
func (p *ProcessingConfig) Validate() error {
	if p.Quality < 1 || p.Quality > 100 {
		return fmt.Errorf("quality must be between 1 and 100, got %d", p.Quality)
	}
	if p.ThumbnailQuality < 1 || p.ThumbnailQuality > 100 {
		return fmt.Errorf("thumbnail_quality must be between 1 and 100, got %d", p.ThumbnailQuality)
	}
	if p.MaxDimension <= 0 {
		return fmt.Errorf("max_dimension must be positive, got %d", p.MaxDimension)
	}
	if p.ThumbnailSize <= 0 {
		return fmt.Errorf("thumbnail_size must be positive, got %d", p.ThumbnailSize)
	}
	return nil
}

// IsImageExtension checks if the extension belongs to a supported image format
func (c *Config) IsImageExtension(ext string) bool {
	ext = strings.ToLower(ext)
	for _, supportedExt := range c.SupportedExtensions {
		if ext == supportedExt {
			return true
		}
	}
	return false
}

func normalizeExtensions(extensions []string) []string {
	normalized := make([]string, len(extensions))
	for i, ext := range extensions {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		normalized[i] = ext
	}
	return normalized
}
