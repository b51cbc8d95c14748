package config

import (
	"time"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Fetch    FetchConfig    `yaml:"fetch"`
	Naming   NamingConfig   `yaml:"naming"`
	Storage  StorageConfig  `yaml:"storage"`
	Manifest ManifestConfig `yaml:"manifest"`
	Database DatabaseConfig `yaml:"database"`
}

type ServerConfig struct {
	IP             string        `yaml:"ip"`
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	StaticDir      string        `yaml:"static_dir"`
}

type LogConfig struct {
	Level string `yaml:"log_level"`
	Dir   string `yaml:"log_dir"`
	File  string `yaml:"log_file"`
}

// VariantConfig is one resize target. Every variant is rendered in the
// source format and as webp.
type VariantConfig struct {
	Label   string `yaml:"label"`
	Width   int    `yaml:"width"`
	Quality int    `yaml:"quality"`
}

type PipelineConfig struct {
	Directory           string          `yaml:"directory"`
	Variants            []VariantConfig `yaml:"variants"`
	MaxSize             int             `yaml:"max_size"`
	MaxQuality          int             `yaml:"max_quality"`
	MaxSourcePixels     int64           `yaml:"max_source_pixels"`
	StoreOriginal       bool            `yaml:"store_original"`
	ValidateBeforeFetch bool            `yaml:"validate_before_fetch"`
	ProbeCacheTTL       time.Duration   `yaml:"probe_cache_ttl"`
	VariantConcurrency  int             `yaml:"variant_concurrency"`
	BatchConcurrency    int             `yaml:"batch_concurrency"`
	MaxInflightImages   int             `yaml:"max_inflight_images"`
}

type FetchConfig struct {
	Timeout        time.Duration `yaml:"timeout"`
	MaxBytes       int64         `yaml:"max_bytes"`
	MaxAttempts    int           `yaml:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
	UserAgent      string        `yaml:"user_agent"`
}

type NamingConfig struct {
	// Strategy is "hashed" or "basename".
	Strategy string `yaml:"strategy"`
}

type StorageConfig struct {
	Driver string   `yaml:"driver"`
	FS     FSConfig `yaml:"fs"`
	S3     S3Config `yaml:"s3"`
}

type FSConfig struct {
	Root          string `yaml:"root"`
	PublicBaseURL string `yaml:"public_base_url"`
	MountPath     string `yaml:"mount_path"`
}

type S3Config struct {
	// Endpoint includes the scheme, e.g. https://s3.amazonaws.com.
	Endpoint        string `yaml:"endpoint"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	ACL             string `yaml:"acl"`
}

type ManifestConfig struct {
	Driver string        `yaml:"driver"`
	TTL    time.Duration `yaml:"ttl"`
	Redis  RedisConfig   `yaml:"redis"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
	Prefix   string `yaml:"prefix,omitempty"`
}

type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}
