// Package config loads migration settings from .env files and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all settings shared by the migration commands
type Config struct {
	// Supabase project (required)
	SupabaseURL    string `env:"SUPABASE_URL"`
	ServiceRoleKey string `env:"SUPABASE_SERVICE_ROLE_KEY"`

	// DatabaseURL switches the destination store from PostgREST to a direct
	// Postgres connection.
	DatabaseURL string `env:"DATABASE_URL"`

	MappingsFile string        `env:"MAPPINGS_FILE" envDefault:"id-mappings.json"`
	LogDir       string        `env:"LOG_DIR" envDefault:"logs"`
	LogLevel     string        `env:"LOG_LEVEL" envDefault:"info"`
	HTTPTimeout  time.Duration `env:"HTTP_TIMEOUT" envDefault:"30s"`

	Storage  StorageConfig
	Firebase FirebaseConfig
	Images   ImagesConfig
}

// StorageConfig holds destination object storage settings
type StorageConfig struct {
	Bucket string `env:"STORAGE_BUCKET" envDefault:"images"`
	// S3-compatible endpoint; used instead of the Storage REST API when the key pair is set
	S3Endpoint  string `env:"STORAGE_S3_ENDPOINT"`
	S3AccessKey string `env:"STORAGE_S3_ACCESS_KEY"`
	S3SecretKey string `env:"STORAGE_S3_SECRET_KEY"`
	S3Region    string `env:"STORAGE_S3_REGION" envDefault:"us-east-1"`
}

// UseS3 returns true if the S3-compatible endpoint is configured
func (s *StorageConfig) UseS3() bool {
	return s.S3AccessKey != "" && s.S3SecretKey != ""
}

// FirebaseConfig holds legacy asset source settings
type FirebaseConfig struct {
	Bucket          string `env:"FIREBASE_STORAGE_BUCKET"`
	CredentialsFile string `env:"FIREBASE_CREDENTIALS_FILE"`
	// DownloadBaseURL is overridable for tests and emulators
	DownloadBaseURL string `env:"FIREBASE_DOWNLOAD_BASE_URL" envDefault:"https://firebasestorage.googleapis.com"`
}

// UseGCS returns true if downloads should go through the authenticated GCS client
func (f *FirebaseConfig) UseGCS() bool {
	return f.CredentialsFile != ""
}

// ImagesConfig tunes the image migration worker pool
type ImagesConfig struct {
	Concurrency     int           `env:"IMAGE_CONCURRENCY" envDefault:"5"`
	BatchDelay      time.Duration `env:"IMAGE_BATCH_DELAY" envDefault:"1s"`
	MaxRetries      int           `env:"IMAGE_MAX_RETRIES" envDefault:"3"`
	RetryDelay      time.Duration `env:"IMAGE_RETRY_DELAY" envDefault:"2s"`
	DownloadTimeout time.Duration `env:"IMAGE_DOWNLOAD_TIMEOUT" envDefault:"30s"`
	DownloadRPS     float64       `env:"IMAGE_DOWNLOAD_RPS" envDefault:"10"`
}

// LoadEnvFiles loads env files in order. The first file never overrides
// exported variables; later files override everything before them, so
// LoadEnvFiles(".env", ".env.local") lets .env.local win. Missing files are
// skipped.
func LoadEnvFiles(files ...string) error {
	for i, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		var err error
		if i == 0 {
			err = godotenv.Load(f)
		} else {
			err = godotenv.Overload(f)
		}
		if err != nil {
			return fmt.Errorf("load env file %s: %w", f, err)
		}
	}
	return nil
}

// Load parses the environment into a Config. It does not validate.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.SupabaseURL = strings.TrimRight(strings.TrimSpace(cfg.SupabaseURL), "/")
	return cfg, nil
}

// Validate checks the settings every command needs.
func (c *Config) Validate() error {
	var missing []string
	if c.SupabaseURL == "" {
		missing = append(missing, "SUPABASE_URL")
	}
	if c.ServiceRoleKey == "" {
		missing = append(missing, "SUPABASE_SERVICE_ROLE_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	if c.Images.Concurrency < 1 {
		return fmt.Errorf("IMAGE_CONCURRENCY must be at least 1, got %d", c.Images.Concurrency)
	}
	if c.Images.MaxRetries < 0 {
		return fmt.Errorf("IMAGE_MAX_RETRIES must not be negative, got %d", c.Images.MaxRetries)
	}
	return nil
}

// RESTURL returns the PostgREST endpoint of the Supabase project.
func (c *Config) RESTURL() string {
	return c.SupabaseURL + "/rest/v1"
}

// StorageURL returns the Storage REST endpoint of the Supabase project.
func (c *Config) StorageURL() string {
	return c.SupabaseURL + "/storage/v1"
}

// PublicObjectURL returns the public URL of an object in the destination bucket.
func (c *Config) PublicObjectURL(path string) string {
	return fmt.Sprintf("%s/object/public/%s/%s", c.StorageURL(), c.Storage.Bucket, strings.TrimLeft(path, "/"))
}
