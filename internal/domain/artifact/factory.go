package artifact

import (
	"fmt"

	"image-pipeline-server/internal/platform/config"
	"image-pipeline-server/internal/platform/logging"
	"image-pipeline-server/internal/util/retry"
)

// Driver identifiers supported by the artifact domain.
const (
	DriverFS = "fs"
	DriverS3 = "s3"
)

// Dependencies captures optional collaborators shared by the drivers.
type Dependencies struct {
	Retry  retry.Policy
	Logger *logging.Logger
}

// New creates an artifact store based on the provided configuration.
func New(cfg config.StorageConfig, deps Dependencies) (Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverFS
	}

	switch driver {
	case DriverFS:
		return NewFS(cfg.FS, deps.Logger)
	case DriverS3:
		return NewS3(cfg.S3, deps)
	default:
		return nil, fmt.Errorf("unsupported artifact store driver: %s", driver)
	}
}
