package services

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/checkyourpaper/checkyourpaper-backend/internal/platform/apierr"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/platform/ctxutil"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/platform/logger"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/platform/objectstore"
)

const DefaultUploadMaxBytes int64 = 20 << 20

var allowedUploadTypes = map[string]bool{
	"image/jpeg":         true,
	"image/png":          true,
	"image/gif":          true,
	"application/pdf":    true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
}

// AllowedUploadType reports whether a declared content type may be stored.
func AllowedUploadType(contentType string) bool {
	mt, _, err := mime.ParseMediaType(strings.TrimSpace(contentType))
	if err != nil {
		return false
	}
	return allowedUploadTypes[strings.ToLower(mt)]
}

type UploadKind string

const (
	UploadWorksheet  UploadKind = "worksheet"
	UploadMarkscheme UploadKind = "markscheme"
	UploadAvatar     UploadKind = "avatar"
)

func (k UploadKind) Valid() bool {
	switch k {
	case UploadWorksheet, UploadMarkscheme, UploadAvatar:
		return true
	}
	return false
}

type UploadInput struct {
	Kind        UploadKind
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

type UploadResult struct {
	URL         string `json:"url"`
	Key         string `json:"key"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

type UploadService interface {
	Upload(ctx context.Context, in UploadInput) (*UploadResult, error)
	MaxBytes() int64
}

type uploadService struct {
	log      *logger.Logger
	store    objectstore.Store
	maxBytes int64
	now      func() time.Time
}

func NewUploadService(baseLog *logger.Logger, store objectstore.Store, maxBytes int64) UploadService {
	if maxBytes <= 0 {
		maxBytes = DefaultUploadMaxBytes
	}
	return &uploadService{
		log:      baseLog.With("service", "UploadService"),
		store:    store,
		maxBytes: maxBytes,
		now:      time.Now,
	}
}

func (s *uploadService) MaxBytes() int64 { return s.maxBytes }

// Upload validates the declared type and size before touching the store.
func (s *uploadService) Upload(ctx context.Context, in UploadInput) (*UploadResult, error) {
	uid := ctxutil.UserID(ctx)
	if uid == uuid.Nil {
		return nil, apierr.New(http.StatusUnauthorized, "unauthorized", fmt.Errorf("not signed in"))
	}
	if in.Kind == "" {
		in.Kind = UploadWorksheet
	}
	if !in.Kind.Valid() {
		return nil, apierr.BadRequest("invalid_kind", "kind must be worksheet, markscheme or avatar")
	}
	if !AllowedUploadType(in.ContentType) {
		return nil, apierr.BadRequest("unsupported_content_type", "content type %q is not allowed", in.ContentType)
	}
	if in.Size > s.maxBytes {
		return nil, apierr.New(http.StatusRequestEntityTooLarge, "file_too_large", fmt.Errorf("file exceeds %d bytes", s.maxBytes))
	}
	if in.Size <= 0 || in.Body == nil {
		return nil, apierr.BadRequest("empty_file", "file is empty")
	}
	if s.store == nil {
		return nil, apierr.New(http.StatusServiceUnavailable, "storage_unavailable", fmt.Errorf("object storage is not configured"))
	}

	ct, _, _ := mime.ParseMediaType(in.ContentType)
	ct = strings.ToLower(ct)
	key := UploadKey(uid, in.Kind, s.now(), in.Filename)
	if err := s.store.Put(ctx, key, ct, io.LimitReader(in.Body, in.Size), in.Size); err != nil {
		s.log.Error("Upload failed", "key", key, "error", err)
		return nil, fmt.Errorf("store upload: %w", err)
	}
	s.log.Info("Stored upload", "key", key, "content_type", ct, "size", in.Size)
	return &UploadResult{
		URL:         s.store.PublicURL(key),
		Key:         key,
		ContentType: ct,
		Size:        in.Size,
	}, nil
}

// UploadKey builds users/<uid>/<kind>/<unix-ms>-<name>.
func UploadKey(uid uuid.UUID, kind UploadKind, at time.Time, filename string) string {
	return fmt.Sprintf("users/%s/%s/%d-%s", uid, kind, at.UnixMilli(), sanitizeFilename(filename))
}

func sanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), `\`, "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), "._")
	if len(out) > 100 {
		out = out[len(out)-100:]
	}
	if out == "" {
		out = "file"
	}
	return out
}
