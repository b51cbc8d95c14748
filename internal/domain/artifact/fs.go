package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"image-pipeline-server/internal/platform/config"
	platformerrors "image-pipeline-server/internal/platform/errors"
	"image-pipeline-server/internal/platform/logging"
)

// FSStore writes artifacts below a root directory that the HTTP server
// exposes under PublicBaseURL.
type FSStore struct {
	root    string
	baseURL string
	logger  *logging.Logger
}

// NewFS creates the root directory if needed.
func NewFS(cfg config.FSConfig, logger *logging.Logger) (*FSStore, error) {
	if cfg.Root == "" {
		return nil, platformerrors.New(platformerrors.KindConfig, "artifact.fs", "filesystem root is required")
	}
	if err := os.MkdirAll(cfg.Root, 0o755); err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindStorage, "artifact.fs", "failed to create root", err)
	}
	if logger == nil {
		logger = logging.DefaultLogger
	}
	return &FSStore{root: cfg.Root, baseURL: cfg.PublicBaseURL, logger: logger}, nil
}

func (s *FSStore) Name() string { return DriverFS }

// Root is the directory artifacts are written to.
func (s *FSStore) Root() string { return s.root }

func (s *FSStore) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(strings.TrimPrefix(key, "/")))
	if key == "" || clean == "." || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) || filepath.IsAbs(clean) {
		return "", platformerrors.New(platformerrors.KindStorage, "artifact.fs", fmt.Sprintf("invalid key %q", key))
	}
	return filepath.Join(s.root, clean), nil
}

// Put writes data to a temp file next to the target and renames it into
// place, so readers see either the old or the new artifact.
func (s *FSStore) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return platformerrors.Wrap(platformerrors.KindStorage, "artifact.fs", "write cancelled", err)
	}
	target, err := s.path(key)
	if err != nil {
		return err
	}
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return platformerrors.Wrap(platformerrors.KindStorage, "artifact.fs", "failed to create directory", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindStorage, "artifact.fs", "failed to create temp file", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return platformerrors.Wrap(platformerrors.KindStorage, "artifact.fs", "failed to write "+key, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return platformerrors.Wrap(platformerrors.KindStorage, "artifact.fs", "failed to close "+key, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return platformerrors.Wrap(platformerrors.KindStorage, "artifact.fs", "failed to chmod "+key, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		cleanup()
		return platformerrors.Wrap(platformerrors.KindStorage, "artifact.fs", "failed to rename "+key, err)
	}

	s.logger.DebugTag("STORE", "wrote %s (%d bytes)", key, len(data))
	return nil
}

// Get reads an artifact back.
func (s *FSStore) Get(key string) ([]byte, error) {
	target, err := s.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(target)
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindStorage, "artifact.fs", "failed to read "+key, err)
	}
	return data, nil
}

func (s *FSStore) URL(key string) string {
	return joinURL(s.baseURL, key)
}
