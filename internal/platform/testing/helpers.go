package testing

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"image-pipeline-server/internal/platform/config"
	"image-pipeline-server/internal/platform/logging"
)

// SetupTestConfig returns the default config with every path under a temp dir.
func SetupTestConfig(t *testing.T) *config.Config {
	t.Helper()

	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Server.IP = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Log.Level = "DEBUG"
	cfg.Log.Dir = filepath.Join(dir, "logs")
	cfg.Log.File = "test.log"
	cfg.Storage.FS.Root = filepath.Join(dir, "compressed")
	cfg.Database.DSN = filepath.Join(dir, "pipeline.db")
	cfg.Pipeline.ValidateBeforeFetch = false
	cfg.Fetch.InitialBackoff = time.Millisecond
	cfg.Fetch.MaxBackoff = 5 * time.Millisecond

	return cfg
}

// SetupTestLogger writes to a temp dir and discards console output.
func SetupTestLogger(t *testing.T) *logging.Logger {
	t.Helper()

	cfg := SetupTestConfig(t)
	logger, err := logging.New(logging.Config{
		Level:    cfg.Log.Level,
		Dir:      cfg.Log.Dir,
		Filename: cfg.Log.File,
		Console:  io.Discard,
	})

	if err != nil {
		t.Fatalf("failed to create test logger: %v", err)
	}
	t.Cleanup(func() { _ = logger.Close() })

	return logger
}

// EncodeTestImage renders a w×h gradient in format ("jpeg", "png" or "gif").
func EncodeTestImage(t *testing.T, format string, w, h int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 128, A: 255})
		}
	}

	var buf bytes.Buffer
	var err error
	switch format {
	case "png":
		err = png.Encode(&buf, img)
	case "gif":
		err = gif.Encode(&buf, img, nil)
	default:
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90})
	}
	if err != nil {
		t.Fatalf("failed to encode %s test image: %v", format, err)
	}
	return buf.Bytes()
}

// Asset is one canned response of an ImageServer.
type Asset struct {
	ContentType string
	Body        []byte
	// Status defaults to 200.
	Status int
}

// ImageServer serves canned assets by path and counts requests per method+path.
type ImageServer struct {
	*httptest.Server

	mu     sync.Mutex
	assets map[string]Asset
	hits   map[string]int
}

// NewImageServer starts a server that is closed when the test ends.
func NewImageServer(t *testing.T, assets map[string]Asset) *ImageServer {
	t.Helper()

	if assets == nil {
		assets = map[string]Asset{}
	}
	s := &ImageServer{assets: assets, hits: map[string]int{}}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

func (s *ImageServer) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.hits[r.Method+" "+r.URL.Path]++
	asset, ok := s.assets[r.URL.Path]
	s.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	if asset.ContentType != "" {
		w.Header().Set("Content-Type", asset.ContentType)
	}
	status := asset.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if r.Method != http.MethodHead {
		_, _ = w.Write(asset.Body)
	}
}

// Set replaces the asset served at path.
func (s *ImageServer) Set(path string, asset Asset) {
	s.mu.Lock()
	s.assets[path] = asset
	s.mu.Unlock()
}

// Hits returns how often method was requested for path.
func (s *ImageServer) Hits(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[method+" "+path]
}

func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error but got nil")
	}
}

func AssertEqual(t *testing.T, expected, actual interface{}) {
	t.Helper()
	if expected != actual {
		t.Fatalf("expected %v, got %v", expected, actual)
	}
}
