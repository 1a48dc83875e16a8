// Package backends opens the storage.BlobStore selected by configuration.
package backends

import (
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/scrypster/thinkgraph/internal/config"
	"github.com/scrypster/thinkgraph/internal/storage"
	"github.com/scrypster/thinkgraph/internal/storage/file"
	"github.com/scrypster/thinkgraph/internal/storage/postgres"
	"github.com/scrypster/thinkgraph/internal/storage/redis"
	"github.com/scrypster/thinkgraph/internal/storage/sqlite"
)

// SQLiteFileName is the database file created under the data path by the
// sqlite engine.
const SQLiteFileName = "thinkgraph.db"

// Open returns the BlobStore named by cfg.StorageEngine.
func Open(cfg config.StorageConfig, logger *zap.Logger) (storage.BlobStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		store storage.BlobStore
		err   error
	)
	switch cfg.StorageEngine {
	case config.EngineFile, "":
		store, err = file.New(cfg.DataPath)
	case config.EngineSQLite:
		store, err = openSQLite(cfg.DataPath, logger)
	case config.EnginePostgres:
		store, err = postgres.NewBlobStore(cfg.PostgresDSN)
	case config.EngineRedis:
		store, err = redis.New(redis.Options{URL: cfg.RedisURL})
	default:
		return nil, fmt.Errorf("%w: unknown storage engine %q", storage.ErrInvalidInput, cfg.StorageEngine)
	}
	if err != nil {
		return nil, err
	}

	logger.Info("storage opened",
		zap.String("engine", cfg.StorageEngine),
		zap.String("data_path", cfg.DataPath))
	return store, nil
}

func openSQLite(dataPath string, logger *zap.Logger) (storage.BlobStore, error) {
	// The file store creates the directory; reuse it so both engines agree.
	if _, err := file.New(dataPath); err != nil {
		return nil, err
	}
	return sqlite.NewBlobStore(filepath.Join(dataPath, SQLiteFileName), logger)
}
