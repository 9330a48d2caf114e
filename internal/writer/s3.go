package writer

import (
	"bytes"
	"context"
	"path"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	ferrors "git.home.luguber.info/inful/loaderbuild/internal/foundation/errors"
)

// S3Config configures an object-store destination for client loader data.
type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// Prefix is prepended to every object key.
	Prefix string
}

// S3Writer publishes loader data as objects keyed <prefix>/<bundle>/<dst>.
type S3Writer struct {
	client   *minio.Client
	bucket   string
	region   string
	prefix   string
	initOnce sync.Once
	initErr  error
}

// NewS3Writer validates cfg and creates the client. No request is made until
// the first write.
func NewS3Writer(cfg S3Config) (*S3Writer, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, ferrors.ConfigError("s3 endpoint is required").Build()
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, ferrors.ConfigError("s3 access key and secret key are required").Build()
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, ferrors.ConfigError("s3 bucket is required").Build()
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "init s3 client").Build()
	}
	return &S3Writer{
		client: client,
		bucket: bucket,
		region: region,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

func (w *S3Writer) ensureBucket(ctx context.Context) error {
	w.initOnce.Do(func() {
		exists, err := w.client.BucketExists(ctx, w.bucket)
		if err != nil {
			w.initErr = err
			return
		}
		if !exists {
			w.initErr = w.client.MakeBucket(ctx, w.bucket, minio.MakeBucketOptions{Region: w.region})
		}
	})
	return w.initErr
}

// ObjectKey returns the key used for dstPath of bundleName.
func (w *S3Writer) ObjectKey(bundleName, dstPath string) string {
	parts := []string{bundleName, strings.TrimPrefix(path.Clean("/"+dstPath), "/")}
	if w.prefix != "" {
		parts = append([]string{w.prefix}, parts...)
	}
	return strings.Join(parts, "/")
}

func (w *S3Writer) WriteFileInBundle(ctx context.Context, bundleName, dstPath string, jsonData any) error {
	if err := w.ensureBucket(ctx); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryNetwork, "ensure s3 bucket").
			Retryable().WithContext("bucket", w.bucket).Build()
	}
	content, err := Encode(jsonData)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryWrite, "encode loader data").Build()
	}
	key := w.ObjectKey(bundleName, dstPath)
	_, err = w.client.PutObject(ctx, w.bucket, key, bytes.NewReader(content), int64(len(content)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryWrite, "put loader data object").
			Retryable().
			WithContext("bucket", w.bucket).
			WithContext("key", key).
			Build()
	}
	return nil
}
