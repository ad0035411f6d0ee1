package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindFlags(t *testing.T) {
	tests := []struct {
		expected *Config
		name     string
		args     []string
	}{
		{
			name: "short and long flags override defaults",
			args: []string{
				"-a", "127.0.0.1:9090", "--body-limit", "1G", "-d", "db", "-u", "user", "-p", "password",
				"-b", "bucket", "-g", "us-west-1", "-e", "http://endpoint",
				"--max-size-gb", "1", "--chunk-size", "1024", "-w", "http://hook",
				"--webhook-secret", "sec", "--webhook-timeout", "2s",
				"--log-format", "text", "--log-level", "debug", "--auto-migrate=false",
				"-c", "ignored.json",
			},
			expected: &Config{
				HTTPAddr:       "127.0.0.1:9090",
				BodyLimit:      "1G",
				DatabaseDSN:    "db",
				AutoMigrate:    false,
				S3RootUser:     "user",
				S3RootPassword: "password",
				S3Bucket:       "bucket",
				S3Region:       "us-west-1",
				S3BaseEndpoint: "http://endpoint",
				MaxFileSizeGB:  1,
				ChunkSizeBytes: 1024,
				WebhookURL:     "http://hook",
				WebhookSecret:  "sec",
				WebhookTimeout: 2 * time.Second,
				LogFormat:      "text",
				LogLevel:       "debug",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			cfg.LoadDefaults()

			fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
			BindFlags(fs, cfg)
			require.NoError(t, fs.Parse(tt.args))

			assert.Empty(t, cmp.Diff(tt.expected, cfg))
		})
	}
}

func TestBindFlags_KeepsCurrentValuesAsDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.LoadDefaults()
	cfg.S3Bucket = "from-file"

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(fs, cfg)
	require.NoError(t, fs.Parse(nil))

	assert.Equal(t, "from-file", cfg.S3Bucket)
}
