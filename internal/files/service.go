// Package files stores submitted project archives in S3-compatible object
// storage. The hosting form only records a link; uploads land here and the
// resulting object path is written back onto the request.
package files

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type objectStore interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	PresignedGetObject(ctx context.Context, bucketName, objectName string, expires time.Duration, reqParams url.Values) (*url.URL, error)
}

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type Service struct {
	client objectStore
	bucket string
}

func NewService(cfg Config) (*Service, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &Service{client: client, bucket: cfg.Bucket}, nil
}

// NewServiceWithClient creates a service from an existing client
func NewServiceWithClient(client objectStore, bucket string) *Service {
	return &Service{client: client, bucket: bucket}
}

// EnsureBucket creates the bucket if it does not exist yet.
func (s *Service) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("make bucket: %w", err)
	}
	return nil
}

// Upload stores a project file under the request's prefix and returns the
// object name to record on the request.
func (s *Service) Upload(ctx context.Context, requestID, filename, contentType string, reader io.Reader, size int64) (string, error) {
	cleaned := SanitizeFilename(filename)
	if cleaned == "" {
		return "", fmt.Errorf("invalid filename %q", filename)
	}
	objectName := requestID + "/" + cleaned

	opts := minio.PutObjectOptions{ContentType: contentType}
	if _, err := s.client.PutObject(ctx, s.bucket, objectName, reader, size, opts); err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}
	return objectName, nil
}

// DownloadURL returns a presigned link for a previously uploaded file.
func (s *Service) DownloadURL(ctx context.Context, requestID, filename string, expiry time.Duration) (string, error) {
	cleaned := SanitizeFilename(filename)
	if cleaned == "" {
		return "", fmt.Errorf("invalid filename %q", filename)
	}
	if expiry <= 0 {
		expiry = time.Hour
	}

	link, err := s.client.PresignedGetObject(ctx, s.bucket, requestID+"/"+cleaned, expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign object: %w", err)
	}
	return link.String(), nil
}

// SanitizeFilename strips path components and anything outside a
// conservative character set.
func SanitizeFilename(filename string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if base == "." || base == "/" {
		return ""
	}
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '-', r == '_':
			b.WriteRune(r)
		}
	}
	cleaned := strings.Trim(b.String(), ".")
	return cleaned
}
