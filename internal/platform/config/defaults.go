package config

import "time"

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			IP:             "0.0.0.0",
			Port:           3000,
			RequestTimeout: 2 * time.Minute,
			StaticDir:      "./web",
		},
		Log: LogConfig{
			Level: "INFO",
			Dir:   "data/logs",
			File:  "server.log",
		},
		Pipeline: PipelineConfig{
			Directory: "images",
			Variants: []VariantConfig{
				{Label: "xs", Width: 50, Quality: 80},
				{Label: "s", Width: 220, Quality: 80},
				{Label: "m", Width: 800, Quality: 80},
				{Label: "l", Width: 1280, Quality: 80},
			},
			MaxSize:             2500,
			MaxQuality:          80,
			MaxSourcePixels:     100_000_000,
			StoreOriginal:       true,
			ValidateBeforeFetch: true,
			ProbeCacheTTL:       5 * time.Minute,
			VariantConcurrency:  4,
			BatchConcurrency:    4,
			MaxInflightImages:   8,
		},
		Fetch: FetchConfig{
			Timeout:        30 * time.Second,
			MaxBytes:       50 << 20,
			MaxAttempts:    3,
			InitialBackoff: 200 * time.Millisecond,
			MaxBackoff:     2 * time.Second,
			UserAgent:      "image-pipeline-server/1.0",
		},
		Naming: NamingConfig{
			Strategy: "hashed",
		},
		Storage: StorageConfig{
			Driver: "fs",
			FS: FSConfig{
				Root:          "data/compressed",
				PublicBaseURL: "http://localhost:3000/compressed",
				MountPath:     "/compressed",
			},
			S3: S3Config{
				Region: "us-east-1",
				ACL:    "public-read",
			},
		},
		Manifest: ManifestConfig{
			Driver: "memory",
			TTL:    24 * time.Hour,
			Redis: RedisConfig{
				Addr:   "127.0.0.1:6379",
				Prefix: "pipeline:",
			},
		},
		Database: DatabaseConfig{
			DSN: "data/pipeline.db",
		},
	}
}
