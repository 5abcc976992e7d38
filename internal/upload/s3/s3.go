// Package s3 uploads product images to an S3-compatible bucket.
package s3

import (
	"context"
	"fmt"
	"mime"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/vbonduro/shelfshot/internal/config"
)

const presignExpiry = 7 * 24 * time.Hour

// Uploader wraps MinIO/S3 interactions for product images.
type Uploader struct {
	client        *minio.Client
	bucket        string
	region        string
	publicBaseURL string
}

// New creates a MinIO client from the Config.
func New(cfg *config.Config) (*Uploader, error) {
	client, err := minio.New(cfg.S3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		Secure: cfg.S3UseSSL,
		Region: cfg.S3Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	return &Uploader{
		client:        client,
		bucket:        cfg.S3Bucket,
		region:        cfg.S3Region,
		publicBaseURL: strings.TrimRight(cfg.S3PublicURL, "/"),
	}, nil
}

// EnsureBucket makes sure the bucket exists before use.
func (u *Uploader) EnsureBucket(ctx context.Context) error {
	exists, err := u.client.BucketExists(ctx, u.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", u.bucket, err)
	}
	if exists {
		return nil
	}
	if err := u.client.MakeBucket(ctx, u.bucket, minio.MakeBucketOptions{Region: u.region}); err != nil {
		return fmt.Errorf("make bucket %s: %w", u.bucket, err)
	}
	return nil
}

// Upload puts absPath under the product's prefix. The returned media id is
// the object ETag.
func (u *Uploader) Upload(ctx context.Context, productID, absPath string) (string, string, error) {
	f, err := os.Open(absPath)
	if err != nil {
		return "", "", fmt.Errorf("open %s: %w", absPath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", "", fmt.Errorf("stat %s: %w", absPath, err)
	}

	key := ObjectKey(productID, absPath)
	opts := minio.PutObjectOptions{ContentType: contentType(absPath)}
	uploaded, err := u.client.PutObject(ctx, u.bucket, key, f, info.Size(), opts)
	if err != nil {
		return "", "", fmt.Errorf("upload object: %w", err)
	}

	objectURL, err := u.objectURL(ctx, key)
	if err != nil {
		return "", "", err
	}
	return objectURL, uploaded.ETag, nil
}

func (u *Uploader) objectURL(ctx context.Context, key string) (string, error) {
	if u.publicBaseURL != "" {
		return u.publicBaseURL + "/" + u.bucket + "/" + key, nil
	}
	signed, err := u.client.PresignedGetObject(ctx, u.bucket, key, presignExpiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign object: %w", err)
	}
	return signed.String(), nil
}

// ObjectKey is products/<id>/<basename>.
func ObjectKey(productID, absPath string) string {
	return path.Join("products", productID, filepath.Base(absPath))
}

func contentType(p string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(p))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
