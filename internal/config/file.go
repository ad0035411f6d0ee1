package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/mediaingest/internal/flagx"
	"github.com/dmitrijs2005/mediaingest/internal/timex"
	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk shape of the configuration. Pointer fields let
// the overlay tell "absent" from "zero" so missing keys keep their defaults.
type FileConfig struct {
	HTTPAddr       *string         `json:"http_addr" yaml:"http_addr"`
	BodyLimit      *string         `json:"body_limit" yaml:"body_limit"`
	DatabaseDSN    *string         `json:"database_dsn" yaml:"database_dsn"`
	AutoMigrate    *bool           `json:"auto_migrate" yaml:"auto_migrate"`
	S3RootUser     *string         `json:"s3_root_user" yaml:"s3_root_user"`
	S3RootPassword *string         `json:"s3_root_password" yaml:"s3_root_password"`
	S3Bucket       *string         `json:"s3_bucket" yaml:"s3_bucket"`
	S3Region       *string         `json:"s3_region" yaml:"s3_region"`
	S3BaseEndpoint *string         `json:"s3_base_endpoint" yaml:"s3_base_endpoint"`
	MaxFileSizeGB  *float64        `json:"max_file_size_gb" yaml:"max_file_size_gb"`
	ChunkSizeBytes *int64          `json:"chunk_size_bytes" yaml:"chunk_size_bytes"`
	WebhookURL     *string         `json:"webhook_url" yaml:"webhook_url"`
	WebhookSecret  *string         `json:"webhook_secret" yaml:"webhook_secret"`
	WebhookTimeout *timex.Duration `json:"webhook_timeout" yaml:"webhook_timeout"`
	LogFormat      *string         `json:"log_format" yaml:"log_format"`
	LogLevel       *string         `json:"log_level" yaml:"log_level"`
}

// parseFile loads the file named by -c/-config/--config in args into config.
// Files ending in .yaml or .yml are decoded as YAML, everything else as JSON.
// No flag means nothing to load.
func parseFile(config *Config, args []string) error {
	path := flagx.ConfigFileFlag(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	fc := &FileConfig{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, fc)
	default:
		err = json.Unmarshal(data, fc)
	}
	if err != nil {
		return fmt.Errorf("decode config %s: %w", path, err)
	}

	fc.apply(config)
	return nil
}

func (fc *FileConfig) apply(c *Config) {
	setIf(&c.HTTPAddr, fc.HTTPAddr)
	setIf(&c.BodyLimit, fc.BodyLimit)
	setIf(&c.DatabaseDSN, fc.DatabaseDSN)
	setIf(&c.AutoMigrate, fc.AutoMigrate)
	setIf(&c.S3RootUser, fc.S3RootUser)
	setIf(&c.S3RootPassword, fc.S3RootPassword)
	setIf(&c.S3Bucket, fc.S3Bucket)
	setIf(&c.S3Region, fc.S3Region)
	setIf(&c.S3BaseEndpoint, fc.S3BaseEndpoint)
	setIf(&c.MaxFileSizeGB, fc.MaxFileSizeGB)
	setIf(&c.ChunkSizeBytes, fc.ChunkSizeBytes)
	setIf(&c.WebhookURL, fc.WebhookURL)
	setIf(&c.WebhookSecret, fc.WebhookSecret)
	setIf(&c.LogFormat, fc.LogFormat)
	setIf(&c.LogLevel, fc.LogLevel)
	if fc.WebhookTimeout != nil {
		c.WebhookTimeout = fc.WebhookTimeout.Duration
	}
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
