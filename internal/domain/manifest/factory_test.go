package manifest

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"

	"image-pipeline-server/internal/platform/config"
	"image-pipeline-server/internal/platform/storage"
)

func TestFactoryMemory(t *testing.T) {
	store, err := New(config.ManifestConfig{Driver: DriverMemory}, Dependencies{})
	if err != nil {
		t.Fatalf("New memory store: %v", err)
	}
	defer store.Close(context.Background())
}

func TestFactorySQLite(t *testing.T) {
	if _, err := New(config.ManifestConfig{Driver: DriverSQLite}, Dependencies{}); err == nil {
		t.Fatalf("expected error without database handle")
	}

	db, err := storage.Open(sqliteDSN())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer storage.Close(db)

	store, err := New(config.ManifestConfig{Driver: DriverSQLite}, Dependencies{SQLiteDB: db})
	if err != nil {
		t.Fatalf("New sqlite store: %v", err)
	}
	if err := store.SaveImage(context.Background(), ImageRecord{SourceURL: "https://example.com/a.jpg", Stage: "complete"}); err != nil {
		t.Fatalf("SaveImage error: %v", err)
	}
}

func TestFactoryRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()

	store, err := New(config.ManifestConfig{
		Driver: DriverRedis,
		Redis:  config.RedisConfig{Addr: mr.Addr()},
	}, Dependencies{})
	if err != nil {
		t.Fatalf("New redis store: %v", err)
	}
	defer store.Close(context.Background())

	if err := store.SaveImage(context.Background(), ImageRecord{SourceURL: "https://example.com/a.jpg"}); err != nil {
		t.Fatalf("SaveImage error: %v", err)
	}
	if !mr.Exists("pipeline:image:https://example.com/a.jpg") {
		t.Fatalf("expected default prefix, have %v", mr.Keys())
	}
}

func TestFactoryUnsupported(t *testing.T) {
	if _, err := New(config.ManifestConfig{Driver: "etcd"}, Dependencies{}); err == nil {
		t.Fatalf("expected error for unsupported driver")
	}
}
