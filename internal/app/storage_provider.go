package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/checkyourpaper/checkyourpaper-backend/internal/platform/logger"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/platform/objectstore"
)

var newObjectStore = objectstore.New

type StorageBootstrapErrorCode string

const (
	StorageBootstrapInvalidConfig StorageBootstrapErrorCode = "invalid_config"
	StorageBootstrapConnectFailed StorageBootstrapErrorCode = "connect_failed"
)

type StorageBootstrapError struct {
	Code  StorageBootstrapErrorCode
	Mode  objectstore.Mode
	Cause error
}

func (e *StorageBootstrapError) Error() string {
	if e == nil {
		return "object storage bootstrap failed"
	}
	return fmt.Sprintf("object storage bootstrap failed (code=%s mode=%q): %v", e.Code, e.Mode, e.Cause)
}

func (e *StorageBootstrapError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func resolveObjectStore(ctx context.Context, log *logger.Logger, cfg objectstore.Config) (objectstore.Store, error) {
	log.Info(
		"Selecting object storage provider",
		"mode", cfg.Mode,
		"mode_source", cfg.ModeSource(),
		"emulator_host", cfg.EmulatorHost,
	)
	store, err := newObjectStore(ctx, log, cfg)
	if err != nil {
		classified := classifyStorageBootstrapError(cfg, err)
		log.Error(
			"Object storage provider bootstrap failed",
			"mode", cfg.Mode,
			"mode_source", cfg.ModeSource(),
			"error", classified,
		)
		return nil, classified
	}
	return store, nil
}

func classifyStorageBootstrapError(cfg objectstore.Config, err error) error {
	code := StorageBootstrapConnectFailed
	var cfgErr *objectstore.ConfigError
	if errors.As(err, &cfgErr) {
		code = StorageBootstrapInvalidConfig
	}
	return &StorageBootstrapError{Code: code, Mode: cfg.Mode, Cause: err}
}
