package miniostore

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/Overland-East-Bay/trip-notifier/internal/platform/config"
	templatesport "github.com/Overland-East-Bay/trip-notifier/internal/ports/out/templates"
)

// Store reads templates from an S3-compatible bucket.
type Store struct {
	client *minio.Client
	bucket string
	prefix string
}

var _ templatesport.Store = (*Store)(nil)

func NewClient(cfg config.TemplateConfig) (*minio.Client, error) {
	return minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
		Region: "us-east-1",
	})
}

func NewStore(client *minio.Client, bucket, prefix string) *Store {
	return &Store{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

func (s *Store) Load(ctx context.Context, name string) (string, error) {
	key := s.objectKey(name)
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return "", classify(name, err)
	}
	defer obj.Close()

	b, err := io.ReadAll(obj)
	if err != nil {
		return "", classify(name, err)
	}
	return string(b), nil
}

func (s *Store) objectKey(name string) string {
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

func classify(name string, err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return fmt.Errorf("%w: %s", templatesport.ErrNotFound, name)
	}
	return fmt.Errorf("get template %s: %w", name, err)
}
