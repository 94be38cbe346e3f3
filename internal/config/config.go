// Package config loads the command-line tool's settings.
//
// Settings are layered: built-in defaults, then an optional YAML file, then
// S3DESK_ environment variables. Nested keys use a double underscore in
// the environment, so S3DESK_TRANSFER__MAX_RETRIES sets transfer.max_retries.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/s3desk/s3desk/errors"
	"github.com/s3desk/s3desk/s3types"
)

// EnvPrefix is the prefix of every environment variable the loader reads.
const EnvPrefix = "S3DESK_"

// Config is the full tool configuration.
type Config struct {
	Bucket          string `koanf:"bucket"`
	Region          string `koanf:"region"`
	Endpoint        string `koanf:"endpoint"`
	PathStyle       bool   `koanf:"path_style"`
	AccessKeyID     string `koanf:"access_key_id"`
	SecretAccessKey string `koanf:"secret_access_key"`
	SessionToken    string `koanf:"session_token"`

	// DownloadDir is where downloads and folder archives are saved
	DownloadDir string `koanf:"download_dir"`
	// DisableActivity skips writing the bucket's activity log
	DisableActivity bool `koanf:"disable_activity"`

	Log      LogConfig      `koanf:"log"`
	Transfer TransferConfig `koanf:"transfer"`
}

// LogConfig selects the log level and an optional rotating log file.
type LogConfig struct {
	Level      string `koanf:"level"`
	File       string `koanf:"file"`
	MaxSizeMB  int    `koanf:"max_size_mb"`
	MaxBackups int    `koanf:"max_backups"`
	MaxAgeDays int    `koanf:"max_age_days"`
}

// TransferConfig mirrors s3types.TransferConfig with file and env tags.
type TransferConfig struct {
	UploadThreshold   int64         `koanf:"upload_threshold"`
	UploadChunkSize   int64         `koanf:"upload_chunk_size"`
	UploadQueueSize   int           `koanf:"upload_queue_size"`
	MinPartSize       int64         `koanf:"min_part_size"`
	MaxPartSize       int64         `koanf:"max_part_size"`
	DownloadThreshold int64         `koanf:"download_threshold"`
	DownloadChunkSize int64         `koanf:"download_chunk_size"`
	PresignTTL        time.Duration `koanf:"presign_ttl"`
	ArchiveBatchSize  int           `koanf:"archive_batch_size"`
	CompressionLevel  int           `koanf:"compression_level"`
	MaxRetries        int           `koanf:"max_retries"`
	BaseDelay         time.Duration `koanf:"base_delay"`
	MaxDelay          time.Duration `koanf:"max_delay"`
	RestoreDays       int32         `koanf:"restore_days"`
	ActivityLogKey    string        `koanf:"activity_log_key"`
}

// Default returns the built-in settings.
func Default() Config {
	t := s3types.DefaultTransferConfig()
	return Config{
		Region:      "us-east-1",
		DownloadDir: ".",
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Transfer: TransferConfig{
			UploadThreshold:   t.UploadThreshold,
			UploadChunkSize:   t.UploadChunkSize,
			UploadQueueSize:   t.UploadQueueSize,
			MinPartSize:       t.MinPartSize,
			MaxPartSize:       t.MaxPartSize,
			DownloadThreshold: t.DownloadThreshold,
			DownloadChunkSize: t.DownloadChunkSize,
			PresignTTL:        t.PresignTTL,
			ArchiveBatchSize:  t.ArchiveBatchSize,
			CompressionLevel:  t.CompressionLevel,
			MaxRetries:        t.MaxRetries,
			BaseDelay:         t.BaseDelay,
			MaxDelay:          t.MaxDelay,
			RestoreDays:       t.RestoreDays,
			ActivityLogKey:    t.ActivityLogKey,
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path (when
// path is not empty) and the environment.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, errors.NewError("loadConfig", err).WithKey(path)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, errors.NewError("loadConfig", err).WithMessage("read environment")
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, errors.NewError("loadConfig", err).WithMessage("decode")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps S3DESK_TRANSFER__MAX_RETRIES to transfer.max_retries.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// Validate rejects settings no transfer can run with. The bucket is checked
// by the client, since some commands take it as a flag.
func (c *Config) Validate() error {
	var problems []string
	t := c.Transfer

	if t.UploadChunkSize <= 0 {
		problems = append(problems, "transfer.upload_chunk_size must be positive")
	}
	if t.DownloadChunkSize <= 0 {
		problems = append(problems, "transfer.download_chunk_size must be positive")
	}
	if t.UploadQueueSize <= 0 {
		problems = append(problems, "transfer.upload_queue_size must be positive")
	}
	if t.MinPartSize > t.MaxPartSize {
		problems = append(problems, "transfer.min_part_size exceeds transfer.max_part_size")
	}
	if t.MaxRetries < 0 {
		problems = append(problems, "transfer.max_retries must not be negative")
	}
	if t.CompressionLevel < -2 || t.CompressionLevel > 9 {
		problems = append(problems, "transfer.compression_level must be between -2 and 9")
	}

	if len(problems) > 0 {
		return errors.NewError("validateConfig", errors.ErrInvalidInput).
			WithMessage(fmt.Sprintf("invalid configuration: %s", strings.Join(problems, "; ")))
	}
	return nil
}

// TransferSettings converts the transfer settings for the client.
func (c *Config) TransferSettings() s3types.TransferConfig {
	t := c.Transfer
	return s3types.TransferConfig{
		UploadThreshold:   t.UploadThreshold,
		UploadChunkSize:   t.UploadChunkSize,
		UploadQueueSize:   t.UploadQueueSize,
		MinPartSize:       t.MinPartSize,
		MaxPartSize:       t.MaxPartSize,
		DownloadThreshold: t.DownloadThreshold,
		DownloadChunkSize: t.DownloadChunkSize,
		PresignTTL:        t.PresignTTL,
		ArchiveBatchSize:  t.ArchiveBatchSize,
		CompressionLevel:  t.CompressionLevel,
		MaxRetries:        t.MaxRetries,
		BaseDelay:         t.BaseDelay,
		MaxDelay:          t.MaxDelay,
		RestoreDays:       t.RestoreDays,
		ActivityLogKey:    t.ActivityLogKey,
	}
}
