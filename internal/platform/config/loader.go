package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	platformerrors "image-pipeline-server/internal/platform/errors"
)

const defaultConfigPath = "config.yaml"

// Loader layers a YAML file and environment variables over DefaultConfig.
type Loader struct {
	useDotEnv bool
	path      string
	lookupEnv func(string) (string, bool)
}

// NewLoader creates a loader that reads .env, then CONFIG_PATH or ./config.yaml.
func NewLoader() *Loader {
	return &Loader{
		useDotEnv: true,
		lookupEnv: os.LookupEnv,
	}
}

// WithDotEnv toggles loading variables from a .env file before reading config.
func (l *Loader) WithDotEnv(enabled bool) *Loader {
	l.useDotEnv = enabled
	return l
}

// WithPath pins the YAML file location. A pinned path must exist.
func (l *Loader) WithPath(path string) *Loader {
	l.path = path
	return l
}

// WithEnv overrides the environment lookup (useful for tests).
func (l *Loader) WithEnv(lookup func(string) (string, bool)) *Loader {
	if lookup != nil {
		l.lookupEnv = lookup
	}
	return l
}

// Result captures the loaded configuration and its origin path.
type Result struct {
	Config *Config
	Path   string
}

// Load reads, overlays and validates the configuration.
func (l *Loader) Load() (*Result, error) {
	if l.useDotEnv {
		// no .env file; fall back to the process environment
		_ = godotenv.Load()
	}

	cfg := DefaultConfig()

	path, required := l.path, l.path != ""
	if !required {
		if v, ok := l.lookupEnv("CONFIG_PATH"); ok && v != "" {
			path, required = v, true
		} else {
			path = defaultConfigPath
		}
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, platformerrors.Wrap(platformerrors.KindConfig, "config.load", "failed to parse "+path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !required:
		path = "defaults"
	default:
		return nil, platformerrors.Wrap(platformerrors.KindConfig, "config.load", "failed to read "+path, err)
	}

	if err := l.applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := l.Validate(cfg); err != nil {
		return nil, err
	}

	return &Result{Config: cfg, Path: path}, nil
}

// applyEnv keeps the variable names the service has always been deployed with.
func (l *Loader) applyEnv(cfg *Config) error {
	str := func(key string, dst *string) {
		if v, ok := l.lookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := l.lookupEnv(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return platformerrors.Wrap(platformerrors.KindConfig, "config.env", key+" must be an integer", err)
		}
		*dst = n
		return nil
	}

	if err := num("PORT", &cfg.Server.Port); err != nil {
		return err
	}
	str("LOG_LEVEL", &cfg.Log.Level)
	str("IMAGE_DIRECTORY", &cfg.Pipeline.Directory)
	str("NAMING_STRATEGY", &cfg.Naming.Strategy)

	str("STORAGE_DRIVER", &cfg.Storage.Driver)
	str("STORAGE_ROOT", &cfg.Storage.FS.Root)
	str("PUBLIC_BASE_URL", &cfg.Storage.FS.PublicBaseURL)
	str("AWS_HOSTNAME", &cfg.Storage.S3.Endpoint)
	str("AWS_BUCKET_NAME", &cfg.Storage.S3.Bucket)
	str("AWS_REGION", &cfg.Storage.S3.Region)
	str("AWS_ACCESS_KEY_ID", &cfg.Storage.S3.AccessKeyID)
	str("AWS_SECRET_ACCESS_KEY", &cfg.Storage.S3.SecretAccessKey)

	str("MANIFEST_DRIVER", &cfg.Manifest.Driver)
	str("REDIS_ADDR", &cfg.Manifest.Redis.Addr)
	str("REDIS_PASSWORD", &cfg.Manifest.Redis.Password)
	str("SQLITE_DSN", &cfg.Database.DSN)
	return nil
}

// Validate rejects configurations the server cannot start with.
func (l *Loader) Validate(cfg *Config) error {
	fail := func(msg string) error {
		return platformerrors.New(platformerrors.KindConfig, "config.validate", msg)
	}

	if cfg == nil {
		return fail("config is nil")
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fail(fmt.Sprintf("invalid server port: %d", cfg.Server.Port))
	}

	if len(cfg.Pipeline.Variants) == 0 {
		return fail("at least one variant is required")
	}
	seen := make(map[string]struct{}, len(cfg.Pipeline.Variants))
	for _, v := range cfg.Pipeline.Variants {
		label := strings.TrimSpace(v.Label)
		if label == "" || label == "max" || strings.HasSuffix(label, "_webp") {
			return fail(fmt.Sprintf("invalid variant label %q", v.Label))
		}
		if _, dup := seen[label]; dup {
			return fail(fmt.Sprintf("duplicate variant label %q", label))
		}
		seen[label] = struct{}{}
		if v.Width <= 0 {
			return fail(fmt.Sprintf("variant %s: width must be positive", label))
		}
	}
	if cfg.Pipeline.MaxSize <= 0 {
		return fail("pipeline.max_size must be positive")
	}
	if cfg.Pipeline.MaxSourcePixels <= 0 {
		return fail("pipeline.max_source_pixels must be positive")
	}

	switch cfg.Naming.Strategy {
	case "hashed", "basename":
	default:
		return fail(fmt.Sprintf("unknown naming strategy %q", cfg.Naming.Strategy))
	}

	switch cfg.Storage.Driver {
	case "fs":
		if cfg.Storage.FS.Root == "" {
			return fail("storage.fs.root is required")
		}
	case "s3":
		if cfg.Storage.S3.Bucket == "" {
			return fail("storage.s3.bucket is required")
		}
		u, err := url.Parse(cfg.Storage.S3.Endpoint)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return fail(fmt.Sprintf("invalid storage.s3.endpoint %q", cfg.Storage.S3.Endpoint))
		}
	default:
		return fail(fmt.Sprintf("unknown storage driver %q", cfg.Storage.Driver))
	}

	switch cfg.Manifest.Driver {
	case "memory", "sqlite":
	case "redis":
		if cfg.Manifest.Redis.Addr == "" {
			return fail("manifest.redis.addr is required")
		}
	default:
		return fail(fmt.Sprintf("unknown manifest driver %q", cfg.Manifest.Driver))
	}
	return nil
}
