package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"go.opentelemetry.io/otel/attribute"
	"gopkg.in/yaml.v3"

	"github.com/aqw/HTCrystalBall/internal/observability"
)

func Encode(w io.Writer, snap Snapshot, format Format) error {
	if format == FormatYAML {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(snap); err != nil {
			return err
		}
		return enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}

// Write stores snap at dest, which is either a local path or an
// s3://bucket/key object location.
func Write(ctx context.Context, snap Snapshot, dest string, opts Options) error {
	ctx, span := observability.StartSpan(ctx, "inventory.write", attribute.String("inventory.dest", dest))
	defer span.End()

	if !strings.HasPrefix(dest, "s3://") && !strings.HasPrefix(dest, "minio://") {
		return writeFile(snap, dest)
	}
	u, err := url.Parse(dest)
	if err != nil {
		return fmt.Errorf("parse destination: %w", err)
	}
	bucket, key, err := splitObjectURL(u)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp("", "crystalball-slots-*"+filepath.Ext(key))
	if err != nil {
		return fmt.Errorf("create staging file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if err := Encode(tmp, snap, FormatFor(key)); err != nil {
		tmp.Close()
		return fmt.Errorf("encode inventory: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	client, err := newMinIOClient(opts.MinIO)
	if err != nil {
		return err
	}
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket %s: %w", bucket, err)
		}
	}
	contentType := "application/json"
	if FormatFor(key) == FormatYAML {
		contentType = "application/yaml"
	}
	if _, err := client.FPutObject(ctx, bucket, key, tmp.Name(), minio.PutObjectOptions{ContentType: contentType}); err != nil {
		return fmt.Errorf("upload inventory: %w", err)
	}
	opts.Logger.Info().Str("bucket", bucket).Str("key", key).Int("nodes", len(snap.Nodes)).Msg("inventory uploaded")
	return nil
}

func writeFile(snap Snapshot, dest string) error {
	if dir := filepath.Dir(dest); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create inventory dir: %w", err)
		}
	}
	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create inventory file: %w", err)
	}
	if err := Encode(f, snap, FormatFor(dest)); err != nil {
		f.Close()
		return fmt.Errorf("encode inventory: %w", err)
	}
	return f.Close()
}
