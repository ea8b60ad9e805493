package objectstore

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"

	"github.com/checkyourpaper/checkyourpaper-backend/internal/platform/logger"
)

// S3Store targets AWS S3 or any path-style compatible server such as MinIO.
type S3Store struct {
	log        *logger.Logger
	client     *s3.S3
	uploader   *s3manager.Uploader
	bucket     string
	publicBase string
}

func NewS3Store(log *logger.Logger, cfg Config) (*S3Store, error) {
	awsCfg := &aws.Config{
		Region:           aws.String(cfg.S3Region),
		S3ForcePathStyle: aws.Bool(cfg.S3Endpoint != ""),
	}
	if cfg.S3Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.S3Endpoint)
		awsCfg.DisableSSL = aws.Bool(strings.HasPrefix(cfg.S3Endpoint, "http://"))
	}
	if cfg.S3AccessKeyID != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.S3AccessKeyID, cfg.S3SecretAccessKey, "")
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("create s3 session: %w", err)
	}
	client := s3.New(sess)

	publicBase := cfg.PublicBaseURL
	switch {
	case publicBase != "":
		publicBase = fmt.Sprintf("%s/%s", publicBase, cfg.S3Bucket)
	case cfg.S3Endpoint != "":
		publicBase = fmt.Sprintf("%s/%s", cfg.S3Endpoint, cfg.S3Bucket)
	default:
		publicBase = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.S3Bucket, cfg.S3Region)
	}

	serviceLog := log.With("service", "S3Store")
	serviceLog.Info("Object storage initialized", "mode", cfg.Mode, "bucket", cfg.S3Bucket, "endpoint", cfg.S3Endpoint)

	return &S3Store{
		log:        serviceLog,
		client:     client,
		uploader:   s3manager.NewUploaderWithClient(client),
		bucket:     cfg.S3Bucket,
		publicBase: publicBase,
	}, nil
}

func (s *S3Store) Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error {
	key = cleanKey(key)
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	_, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return errBackend("write", key, err)
	}
	return nil
}

func (s *S3Store) Delete(ctx context.Context, key string) error {
	key = cleanKey(key)
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	_, err := s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return errBackend("delete", key, err)
	}
	return nil
}

func (s *S3Store) PublicURL(key string) string {
	return fmt.Sprintf("%s/%s", s.publicBase, (&url.URL{Path: cleanKey(key)}).EscapedPath())
}

func (s *S3Store) KeyFromURL(rawURL string) (string, bool) {
	return keyAfterPrefix(rawURL, s.publicBase+"/")
}
