package inventory

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.opentelemetry.io/otel/attribute"

	"github.com/aqw/HTCrystalBall/internal/observability"
)

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// MinIOSource reads a snapshot object from an S3-compatible bucket.
type MinIOSource struct {
	Bucket string
	Key    string
	opts   Options
}

func (s *MinIOSource) String() string { return "s3://" + s.Bucket + "/" + s.Key }

func (s *MinIOSource) Load(ctx context.Context) (Snapshot, error) {
	ctx, span := observability.StartSpan(ctx, "inventory.load_object",
		attribute.String("inventory.bucket", s.Bucket),
		attribute.String("inventory.key", s.Key),
	)
	defer span.End()

	client, err := newMinIOClient(s.opts.MinIO)
	if err != nil {
		return Snapshot{}, err
	}
	obj, err := client.GetObject(ctx, s.Bucket, s.Key, minio.GetObjectOptions{})
	if err != nil {
		return Snapshot{}, fmt.Errorf("get inventory object: %w", err)
	}
	defer obj.Close()
	snap, err := Decode(obj, FormatFor(s.Key))
	if err != nil {
		return Snapshot{}, fmt.Errorf("%s: %w", s, err)
	}
	recordLoad(s.opts, "s3", snap)
	return snap, nil
}

func newMinIOClient(cfg MinIOConfig) (*minio.Client, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("minio endpoint is required for s3:// inventory locations")
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return client, nil
}

func splitObjectURL(u *url.URL) (bucket, key string, err error) {
	bucket = u.Host
	key = strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("object location %q must look like s3://bucket/key", u.String())
	}
	return bucket, key, nil
}
