package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/checkyourpaper/checkyourpaper-backend/internal/platform/logger"
)

type GCSStore struct {
	log           *logger.Logger
	client        *storage.Client
	bucket        string
	mode          Mode
	emulatorHost  string
	cdnDomain     string
	publicBaseURL string
}

func NewGCSStore(ctx context.Context, log *logger.Logger, cfg Config) (*GCSStore, error) {
	serviceLog := log.With("service", "GCSStore")

	client, err := newStorageClientForMode(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	publicBase := cfg.PublicBaseURL
	publicBaseSource := "object_storage_public_base_url"
	if publicBase == "" && cfg.IsEmulatorMode() {
		publicBase = strings.TrimRight(cfg.EmulatorHost, "/")
		publicBaseSource = "storage_emulator_host"
	} else if publicBase == "" {
		publicBaseSource = "gcs_default"
	}

	serviceLog.Info(
		"Object storage initialized",
		"mode", cfg.Mode,
		"mode_source", cfg.ModeSource(),
		"emulator_host", cfg.EmulatorHost,
		"public_base_source", publicBaseSource,
		"bucket", cfg.GCSBucket,
	)

	return &GCSStore{
		log:           serviceLog,
		client:        client,
		bucket:        cfg.GCSBucket,
		mode:          cfg.Mode,
		emulatorHost:  strings.TrimRight(cfg.EmulatorHost, "/"),
		cdnDomain:     cfg.CDNDomain,
		publicBaseURL: publicBase,
	}, nil
}

func newStorageClientForMode(ctx context.Context, cfg Config) (*storage.Client, error) {
	switch cfg.Mode {
	case ModeGCS:
		opts := ClientOptionsFromEnv()
		opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
		return storage.NewClient(ctx, opts...)
	case ModeGCSEmulator:
		// The storage client reads the emulator endpoint from the environment.
		_ = os.Setenv("STORAGE_EMULATOR_HOST", strings.TrimRight(cfg.EmulatorHost, "/"))
		return storage.NewClient(ctx, option.WithoutAuthentication())
	default:
		return nil, &ConfigError{Code: ConfigErrorInvalidMode, Mode: string(cfg.Mode)}
	}
}

func (s *GCSStore) Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error {
	key = cleanKey(key)
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, body); err != nil {
		_ = w.Close()
		return errBackend("write", key, err)
	}
	if err := w.Close(); err != nil {
		return errBackend("close", key, err)
	}
	return nil
}

func (s *GCSStore) Delete(ctx context.Context, key string) error {
	key = cleanKey(key)
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	err := s.client.Bucket(s.bucket).Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return errBackend("delete", key, err)
	}
	return nil
}

func (s *GCSStore) PublicURL(key string) string {
	key = cleanKey(key)
	if s.cdnDomain != "" {
		return fmt.Sprintf("https://%s/%s", s.cdnDomain, key)
	}
	if s.mode == ModeGCSEmulator && s.publicBaseURL != "" {
		return fmt.Sprintf(
			"%s/storage/v1/b/%s/o/%s?alt=media",
			s.publicBaseURL,
			url.PathEscape(s.bucket),
			url.PathEscape(key),
		)
	}
	if s.publicBaseURL != "" {
		return fmt.Sprintf("%s/%s/%s", s.publicBaseURL, s.bucket, key)
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucket, key)
}

func (s *GCSStore) KeyFromURL(rawURL string) (string, bool) {
	prefixes := []string{fmt.Sprintf("https://storage.googleapis.com/%s/", s.bucket)}
	if s.cdnDomain != "" {
		prefixes = append(prefixes, fmt.Sprintf("https://%s/", s.cdnDomain))
	}
	if s.publicBaseURL != "" {
		prefixes = append(prefixes,
			fmt.Sprintf("%s/storage/v1/b/%s/o/", s.publicBaseURL, url.PathEscape(s.bucket)),
			fmt.Sprintf("%s/%s/", s.publicBaseURL, s.bucket),
		)
	}
	return keyAfterPrefix(rawURL, prefixes...)
}

func (s *GCSStore) Close() error { return s.client.Close() }

func ClientOptionsFromEnv() []option.ClientOption {
	creds := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS_JSON"))
	if creds == "" {
		creds = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if creds == "" {
		return nil
	}
	if strings.HasPrefix(creds, "{") {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(creds))}
	}
	return []option.ClientOption{option.WithCredentialsFile(creds)}
}
