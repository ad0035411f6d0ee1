package config

import "github.com/spf13/pflag"

// BindFlags registers the configuration flags on fs, using the current
// values of c as defaults so that flags override the file overlay.
//
// Supported flags:
//
//	-c, --config string       path to a JSON or YAML config file (read by LoadConfig)
//	-a, --http-addr string    HTTP API bind address
//	    --body-limit string   maximum API request body (e.g. "10G")
//	-d, --database-dsn string PostgreSQL DSN
//	    --auto-migrate        apply schema migrations on start
//	-u, --s3-user string      S3 root user
//	-p, --s3-password string  S3 root password
//	-b, --s3-bucket string    S3 bucket name
//	-g, --s3-region string    S3 region
//	-e, --s3-endpoint string  S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	    --max-size-gb float   per-file size ceiling in gigabytes
//	    --chunk-size int      chunk size in bytes, at least 5MiB
//	-w, --webhook-url string  completion webhook URL
//	    --webhook-secret      HS256 secret for webhook tokens
//	    --webhook-timeout     webhook HTTP timeout
//	    --log-format string   json or text
//	    --log-level string    debug, info, warn or error
func BindFlags(fs *pflag.FlagSet, c *Config) {
	fs.StringP("config", "c", "", "path to a JSON or YAML config file")

	fs.StringVarP(&c.HTTPAddr, "http-addr", "a", c.HTTPAddr, "HTTP API bind address")
	fs.StringVar(&c.BodyLimit, "body-limit", c.BodyLimit, "maximum API request body")
	fs.StringVarP(&c.DatabaseDSN, "database-dsn", "d", c.DatabaseDSN, "database DSN")
	fs.BoolVar(&c.AutoMigrate, "auto-migrate", c.AutoMigrate, "apply schema migrations on start")

	fs.StringVarP(&c.S3RootUser, "s3-user", "u", c.S3RootUser, "S3 root user")
	fs.StringVarP(&c.S3RootPassword, "s3-password", "p", c.S3RootPassword, "S3 root password")
	fs.StringVarP(&c.S3Bucket, "s3-bucket", "b", c.S3Bucket, "S3 bucket")
	fs.StringVarP(&c.S3Region, "s3-region", "g", c.S3Region, "S3 region")
	fs.StringVarP(&c.S3BaseEndpoint, "s3-endpoint", "e", c.S3BaseEndpoint, "S3 base endpoint")

	fs.Float64Var(&c.MaxFileSizeGB, "max-size-gb", c.MaxFileSizeGB, "per-file size ceiling in GB")
	fs.Int64Var(&c.ChunkSizeBytes, "chunk-size", c.ChunkSizeBytes, "chunk size in bytes, at least 5MiB")

	fs.StringVarP(&c.WebhookURL, "webhook-url", "w", c.WebhookURL, "completion webhook URL")
	fs.StringVar(&c.WebhookSecret, "webhook-secret", c.WebhookSecret, "completion webhook signing secret")
	fs.DurationVar(&c.WebhookTimeout, "webhook-timeout", c.WebhookTimeout, "completion webhook timeout")

	fs.StringVar(&c.LogFormat, "log-format", c.LogFormat, "log format (json|text)")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level (debug|info|warn|error)")
}
