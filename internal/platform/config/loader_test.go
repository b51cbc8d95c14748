package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestLoader_Load(t *testing.T) {
	tempDir := t.TempDir()
	configFile := filepath.Join(tempDir, "config.yaml")

	configContent := `
server:
  ip: "127.0.0.1"
  port: 8080
  request_timeout: 45s
log:
  log_level: "DEBUG"
  log_dir: "/tmp/logs"
  log_file: "test.log"
pipeline:
  variants:
    - label: thumb
      width: 100
      quality: 70
storage:
  driver: fs
  fs:
    root: /srv/images
`
	if err := os.WriteFile(configFile, []byte(configContent), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	res, err := NewLoader().WithDotEnv(false).WithPath(configFile).WithEnv(envMap(nil)).Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	cfg := res.Config

	if res.Path != configFile {
		t.Errorf("expected path %s, got %s", configFile, res.Path)
	}
	if cfg.Server.IP != "127.0.0.1" || cfg.Server.Port != 8080 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Server.RequestTimeout != 45*time.Second {
		t.Errorf("expected 45s request timeout, got %s", cfg.Server.RequestTimeout)
	}
	if cfg.Log.Level != "DEBUG" {
		t.Errorf("expected log level DEBUG, got %s", cfg.Log.Level)
	}
	if len(cfg.Pipeline.Variants) != 1 || cfg.Pipeline.Variants[0].Label != "thumb" {
		t.Errorf("expected variants replaced by file, got %+v", cfg.Pipeline.Variants)
	}
	if cfg.Pipeline.MaxSize != 2500 {
		t.Errorf("expected default max size to survive, got %d", cfg.Pipeline.MaxSize)
	}
	if cfg.Storage.FS.Root != "/srv/images" {
		t.Errorf("unexpected storage root %s", cfg.Storage.FS.Root)
	}
}

func TestLoader_DefaultsWhenFileMissing(t *testing.T) {
	oldWd, _ := os.Getwd()
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(oldWd)

	res, err := NewLoader().WithDotEnv(false).WithEnv(envMap(nil)).Load()
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	if res.Path != "defaults" {
		t.Errorf("expected defaults path, got %s", res.Path)
	}
	want := map[string]int{"xs": 50, "s": 220, "m": 800, "l": 1280}
	for _, v := range res.Config.Pipeline.Variants {
		if want[v.Label] != v.Width || v.Quality != 80 {
			t.Errorf("unexpected default variant %+v", v)
		}
	}
}

func TestLoader_MissingPinnedPath(t *testing.T) {
	_, err := NewLoader().WithDotEnv(false).WithPath(filepath.Join(t.TempDir(), "nope.yaml")).Load()
	if err == nil {
		t.Fatal("expected error for missing pinned config")
	}
}

func TestLoader_EnvOverrides(t *testing.T) {
	env := envMap(map[string]string{
		"CONFIG_PATH":           filepath.Join(t.TempDir(), "absent.yaml"),
		"PORT":                  "9000",
		"STORAGE_DRIVER":        "s3",
		"AWS_HOSTNAME":          "https://s3.example.com",
		"AWS_BUCKET_NAME":       "media",
		"AWS_ACCESS_KEY_ID":     "key",
		"AWS_SECRET_ACCESS_KEY": "secret",
		"IMAGE_DIRECTORY":       "uploads",
	})
	_, err := NewLoader().WithDotEnv(false).WithEnv(env).Load()
	if err == nil {
		t.Fatal("expected error when CONFIG_PATH points to a missing file")
	}

	cfg := DefaultConfig()
	loader := NewLoader().WithEnv(env)
	if err := loader.applyEnv(cfg); err != nil {
		t.Fatalf("applyEnv: %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Server.Port)
	}
	if cfg.Storage.Driver != "s3" || cfg.Storage.S3.Bucket != "media" || cfg.Storage.S3.Endpoint != "https://s3.example.com" {
		t.Errorf("unexpected s3 config: %+v", cfg.Storage)
	}
	if cfg.Pipeline.Directory != "uploads" {
		t.Errorf("expected directory override, got %s", cfg.Pipeline.Directory)
	}
	if err := loader.Validate(cfg); err != nil {
		t.Errorf("expected overridden config to validate: %v", err)
	}
}

func TestLoader_BadPortEnv(t *testing.T) {
	cfg := DefaultConfig()
	if err := NewLoader().WithEnv(envMap(map[string]string{"PORT": "abc"})).applyEnv(cfg); err == nil {
		t.Fatal("expected error for non-numeric PORT")
	}
}

func TestLoader_Validate(t *testing.T) {
	loader := NewLoader()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(*Config) {}},
		{name: "invalid server port", mutate: func(c *Config) { c.Server.Port = 70000 }, wantErr: true},
		{name: "no variants", mutate: func(c *Config) { c.Pipeline.Variants = nil }, wantErr: true},
		{
			name: "duplicate label",
			mutate: func(c *Config) {
				c.Pipeline.Variants = append(c.Pipeline.Variants, VariantConfig{Label: "xs", Width: 10})
			},
			wantErr: true,
		},
		{name: "reserved label", mutate: func(c *Config) { c.Pipeline.Variants[0].Label = "max" }, wantErr: true},
		{name: "zero width", mutate: func(c *Config) { c.Pipeline.Variants[0].Width = 0 }, wantErr: true},
		{name: "zero source pixels", mutate: func(c *Config) { c.Pipeline.MaxSourcePixels = 0 }, wantErr: true},
		{name: "unknown naming", mutate: func(c *Config) { c.Naming.Strategy = "random" }, wantErr: true},
		{name: "unknown storage", mutate: func(c *Config) { c.Storage.Driver = "ftp" }, wantErr: true},
		{name: "s3 without bucket", mutate: func(c *Config) {
			c.Storage.Driver = "s3"
			c.Storage.S3.Endpoint = "https://s3.example.com"
		}, wantErr: true},
		{name: "s3 bad endpoint", mutate: func(c *Config) {
			c.Storage.Driver = "s3"
			c.Storage.S3.Bucket = "b"
			c.Storage.S3.Endpoint = "s3.example.com"
		}, wantErr: true},
		{name: "unknown manifest driver", mutate: func(c *Config) { c.Manifest.Driver = "mongo" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := loader.Validate(cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
