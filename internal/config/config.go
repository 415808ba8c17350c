// Package config reads server settings from flags, falling back to
// environment variables (optionally loaded from a .env file).
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/erazemk/najdeno/internal/storage"
)

// Storage backends.
const (
	StorageLocal = "local"
	StorageS3    = "s3"
)

// Config holds all server settings.
type Config struct {
	Addr          string
	DBPath        string
	LogPath       string
	LogLevel      string
	AdminEmail    string
	Storage       string
	UploadDir     string
	SecureCookies bool
	TrustProxy    bool
	S3            storage.S3Config
}

// LoadEnvFile loads variables from path into the environment without
// overriding ones already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// Parse parses args for the named subcommand. Every flag defaults to its
// environment variable. flag.ErrHelp is returned for -h.
func Parse(name string, args []string, usage io.Writer) (*Config, error) {
	c := &Config{}
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(usage)

	fs.StringVar(&c.Addr, "addr", env("NAJDENO_ADDR", ":8080"), "listen address")
	fs.StringVar(&c.DBPath, "db", env("NAJDENO_DB", "najdeno.sqlite3"), "path to SQLite database file")
	fs.StringVar(&c.LogPath, "log", env("NAJDENO_LOG", ""), "log file path (stdout/stderr only if empty)")
	fs.StringVar(&c.LogLevel, "log-level", env("NAJDENO_LOG_LEVEL", "info"), "log level: debug, info, warn, error")
	fs.StringVar(&c.AdminEmail, "admin", env("NAJDENO_ADMIN_EMAIL", "admin@localhost"), "admin email on first run")
	fs.StringVar(&c.Storage, "storage", env("NAJDENO_STORAGE", StorageLocal), "image storage backend: local or s3")
	fs.StringVar(&c.UploadDir, "uploads", env("NAJDENO_UPLOAD_DIR", "uploads"), "directory for local image storage")
	fs.BoolVar(&c.TrustProxy, "trust-proxy", envBool("NAJDENO_TRUST_PROXY", false), "use X-Forwarded-For for client addresses")
	fs.BoolVar(&c.SecureCookies, "secure-cookies", envBool("NAJDENO_SECURE_COOKIES", false), "mark session cookies Secure (HTTPS only)")

	fs.StringVar(&c.S3.Endpoint, "s3-endpoint", env("S3_ENDPOINT", ""), "S3-compatible endpoint URL")
	fs.StringVar(&c.S3.Bucket, "s3-bucket", env("S3_BUCKET", ""), "S3 bucket")
	fs.StringVar(&c.S3.Region, "s3-region", env("S3_REGION", "auto"), "S3 region")
	fs.StringVar(&c.S3.PublicURL, "s3-public-url", env("S3_PUBLIC_URL", ""), "public URL prefix for stored images")
	c.S3.AccessKey = os.Getenv("S3_ACCESS_KEY")
	c.S3.SecretKey = os.Getenv("S3_SECRET_KEY")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks settings that depend on each other.
func (c *Config) Validate() error {
	switch c.Storage {
	case StorageLocal:
		if c.UploadDir == "" {
			return errors.New("local storage requires an upload directory")
		}
	case StorageS3:
		if c.S3.Bucket == "" || c.S3.AccessKey == "" || c.S3.SecretKey == "" {
			return errors.New("s3 storage requires S3_BUCKET, S3_ACCESS_KEY and S3_SECRET_KEY")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage)
	}
	return nil
}

func env(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
