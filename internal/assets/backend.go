package assets

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/geodirectory-backend/pkg/config"
	"github.com/angelmondragon/geodirectory-backend/pkg/logger"
	"github.com/angelmondragon/geodirectory-backend/pkg/storage"
	"github.com/angelmondragon/geodirectory-backend/pkg/storage/local"
	"github.com/angelmondragon/geodirectory-backend/pkg/storage/s3"
)

// NewBackend opens the blob backend selected by GEODIR_STORAGE_BACKEND.
func NewBackend(ctx context.Context, cfg config.StorageConfig, s3cfg config.S3Config, logg *logger.Logger) (storage.Backend, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case config.StorageBackendS3:
		store, err := s3.New(ctx, s3cfg, logg)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.StorageBackendLocal, "":
		store, err := local.New(cfg.LocalRoot)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
	}
}
