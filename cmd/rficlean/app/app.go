package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/roman-kulish/rfi-cleaner/internal/storage"
)

func Run(ctx context.Context, config *Config, logger *slog.Logger) (err error) {
	store, err := createStorage(&config.Storage)
	if err != nil {
		return fmt.Errorf("failed to create storage: %w", err)
	}
	defer func() {
		if cErr := store.Close(); cErr != nil {
			err = errors.Join(err, fmt.Errorf("closing storage: %w", cErr))
		}
	}()

	cleaner := NewCleaner(store, WithLogger(logger), WithWorkers(config.Settings.Workers))
	if _, err = cleaner.Clean(ctx, config); err != nil {
		return fmt.Errorf("cleaning observation %d: %w", config.Observation, err)
	}
	return nil
}

func createStorage(config *StorageConfig) (*storage.SqliteStore, error) {
	stat, err := os.Stat(config.Database)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("database '%s' does not exist: %w", config.Database, err)
		}
		return nil, fmt.Errorf("checking database '%s': %w", config.Database, err)
	}
	if stat.IsDir() {
		return nil, fmt.Errorf("invalid database '%s': is a directory", config.Database)
	}

	return storage.NewSqliteStore(config.Database), nil
}
