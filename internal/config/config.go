package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	Chzzk    PlatformConfig `yaml:"chzzk"`
	Soop     PlatformConfig `yaml:"soop"`
	S3       S3Config       `yaml:"s3"`
	Recorder RecorderConfig `yaml:"recorder"`
	Uploader UploaderConfig `yaml:"uploader"`
}

// PlatformConfig holds the connection URLs for one platform; each URL
// produces one independent connection
type PlatformConfig struct {
	URLs []string `yaml:"urls"`
}

// S3Config holds S3 archive configuration; leaving bucket empty disables
// uploading entirely
type S3Config struct {
	Bucket               string `yaml:"bucket"`
	Region               string `yaml:"region"`
	RoleARN              string `yaml:"role_arn"`                // IAM role ARN for web identity authentication
	WebIdentityTokenFile string `yaml:"web_identity_token_file"` // Token file used with role_arn
	AccessKeyID          string `yaml:"access_key_id"`           // Legacy: static credentials
	SecretAccessKey      string `yaml:"secret_access_key"`       // Legacy: static credentials
}

// RecorderConfig holds recorder configuration
type RecorderConfig struct {
	OutputDir       string `yaml:"output_dir"`
	RotateMinutes   int    `yaml:"rotate_minutes"`
	RotateMegabytes int    `yaml:"rotate_megabytes"`
	BufferSize      int    `yaml:"buffer_size"`
}

// UploaderConfig holds uploader configuration
type UploaderConfig struct {
	DeleteAfterUpload bool `yaml:"delete_after_upload"`
	MaxRetries        int  `yaml:"max_retries"`
}

// Load loads configuration from a file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	// Apply environment variable overrides
	if roleARN := os.Getenv("AWS_ROLE_ARN"); roleARN != "" {
		cfg.S3.RoleARN = roleARN
	}
	if tokenFile := os.Getenv("AWS_WEB_IDENTITY_TOKEN_FILE"); tokenFile != "" {
		cfg.S3.WebIdentityTokenFile = tokenFile
	}
	if keyID := os.Getenv("S3_ACCESS_KEY_ID"); keyID != "" {
		cfg.S3.AccessKeyID = keyID
	}
	if secretKey := os.Getenv("S3_SECRET_ACCESS_KEY"); secretKey != "" {
		cfg.S3.SecretAccessKey = secretKey
	}

	// Set defaults
	if cfg.Recorder.BufferSize == 0 {
		cfg.Recorder.BufferSize = 100
	}
	if cfg.Recorder.RotateMinutes == 0 {
		cfg.Recorder.RotateMinutes = 60
	}
	if cfg.Recorder.RotateMegabytes == 0 {
		cfg.Recorder.RotateMegabytes = 100
	}
	if cfg.Recorder.OutputDir == "" {
		cfg.Recorder.OutputDir = "./data"
	}
	if cfg.Uploader.MaxRetries == 0 {
		cfg.Uploader.MaxRetries = 3
	}

	// Validate required fields
	if len(cfg.Chzzk.URLs) == 0 && len(cfg.Soop.URLs) == 0 {
		return nil, fmt.Errorf("at least one chzzk or soop url is required")
	}
	if cfg.S3.Bucket != "" {
		if cfg.S3.Region == "" {
			return nil, fmt.Errorf("s3.region is required when s3.bucket is set")
		}
		if cfg.S3.RoleARN != "" && cfg.S3.WebIdentityTokenFile == "" {
			return nil, fmt.Errorf("s3.web_identity_token_file is required when using role_arn")
		}
		if cfg.S3.AccessKeyID != "" && cfg.S3.SecretAccessKey == "" {
			return nil, fmt.Errorf("s3.secret_access_key is required when using access_key_id")
		}
	}

	return &cfg, nil
}

// UploadEnabled reports whether an S3 archive target is configured.
func (c *Config) UploadEnabled() bool {
	return c.S3.Bucket != ""
}
