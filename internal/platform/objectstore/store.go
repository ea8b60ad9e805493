package objectstore

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/checkyourpaper/checkyourpaper-backend/internal/platform/logger"
)

// Store is the blob backend behind the upload relay.
type Store interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error
	Delete(ctx context.Context, key string) error
	PublicURL(key string) string
	// KeyFromURL reverses PublicURL. ok is false for URLs this store did not mint.
	KeyFromURL(rawURL string) (key string, ok bool)
}

// New builds the backend named by cfg.Mode.
func New(ctx context.Context, log *logger.Logger, cfg Config) (Store, error) {
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	switch cfg.Mode {
	case ModeS3:
		return NewS3Store(log, cfg)
	default:
		return NewGCSStore(ctx, log, cfg)
	}
}

func cleanKey(key string) string {
	return strings.TrimLeft(strings.TrimSpace(key), "/")
}

// keyAfterPrefix strips one of prefixes from rawURL and unescapes the rest.
func keyAfterPrefix(rawURL string, prefixes ...string) (string, bool) {
	rawURL = strings.TrimSpace(rawURL)
	if i := strings.IndexAny(rawURL, "?#"); i >= 0 {
		rawURL = rawURL[:i]
	}
	for _, p := range prefixes {
		if p == "" || !strings.HasPrefix(rawURL, p) {
			continue
		}
		rest := strings.TrimPrefix(rawURL, p)
		key, err := url.PathUnescape(rest)
		if err != nil || key == "" {
			return "", false
		}
		return key, true
	}
	return "", false
}

func errBackend(op, key string, err error) error {
	return fmt.Errorf("object store %s %q: %w", op, key, err)
}
