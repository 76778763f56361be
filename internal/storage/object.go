package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectAPI is the subset of an S3-compatible client the object backend uses.
type ObjectAPI interface {
	PutObject(ctx context.Context, bucket, key string, data []byte, contentType string) error
	GetObject(ctx context.Context, bucket, key string) ([]byte, error)
	StatObject(ctx context.Context, bucket, key string) (bool, error)
	RemoveObject(ctx context.Context, bucket, key string) error
	PresignedGetObject(ctx context.Context, bucket, key string, expiry time.Duration) (string, error)
}

// ObjectOptions configures an S3-compatible backend.
type ObjectOptions struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	Region        string
	UseSSL        bool
	PublicBaseURL string
	PresignExpiry time.Duration
}

func (o ObjectOptions) configured() bool {
	return o.Endpoint != "" && o.AccessKey != "" && o.SecretKey != "" && o.Bucket != ""
}

// ObjectStore keeps files in a bucket. References look like
// "s3:<category>/<uuid>.<ext>"; the bucket comes from configuration.
type ObjectStore struct {
	api           ObjectAPI
	bucket        string
	publicBaseURL string
	presignExpiry time.Duration
}

// NewObjectStore connects to the configured endpoint and makes sure the bucket exists.
func NewObjectStore(ctx context.Context, opts ObjectOptions) (*ObjectStore, error) {
	if !opts.configured() {
		return nil, fmt.Errorf("%w: object store credentials missing", ErrUnavailable)
	}
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %q: %w", opts.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{Region: opts.Region}); err != nil {
			return nil, fmt.Errorf("create bucket %q: %w", opts.Bucket, err)
		}
	}

	return NewObjectStoreWithAPI(minioAPI{client: client}, opts), nil
}

// NewObjectStoreWithAPI builds the backend on top of an existing client.
func NewObjectStoreWithAPI(api ObjectAPI, opts ObjectOptions) *ObjectStore {
	expiry := opts.PresignExpiry
	if expiry <= 0 {
		expiry = time.Hour
	}
	return &ObjectStore{
		api:           api,
		bucket:        opts.Bucket,
		publicBaseURL: strings.TrimRight(opts.PublicBaseURL, "/"),
		presignExpiry: expiry,
	}
}

func (s *ObjectStore) Kind() Kind { return KindObject }

func (s *ObjectStore) Put(ctx context.Context, key string, data []byte, mime string) (string, error) {
	if mime == "" {
		mime = "application/octet-stream"
	}
	if err := s.api.PutObject(ctx, s.bucket, key, data, mime); err != nil {
		return "", err
	}
	return key, nil
}

func (s *ObjectStore) Get(ctx context.Context, key string) ([]byte, error) {
	return s.api.GetObject(ctx, s.bucket, key)
}

func (s *ObjectStore) Exists(ctx context.Context, key string) (bool, error) {
	return s.api.StatObject(ctx, s.bucket, key)
}

func (s *ObjectStore) Remove(ctx context.Context, key string) error {
	return s.api.RemoveObject(ctx, s.bucket, key)
}

// URL joins the public base URL when one is configured. Otherwise it presigns
// a GET, which may contact the endpoint to resolve the bucket region.
func (s *ObjectStore) URL(key string) (string, error) {
	if s.publicBaseURL != "" {
		return s.publicBaseURL + "/" + escapeKey(key), nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.api.PresignedGetObject(ctx, s.bucket, key, s.presignExpiry)
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

// minioAPI adapts *minio.Client to ObjectAPI.
type minioAPI struct {
	client *minio.Client
}

func (m minioAPI) PutObject(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	_, err := m.client.PutObject(ctx, bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("s3 put object: %w", err)
	}
	return nil
}

func (m minioAPI) GetObject(ctx context.Context, bucket, key string) ([]byte, error) {
	obj, err := m.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, mapMinioError(err)
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, mapMinioError(err)
	}
	return data, nil
}

func (m minioAPI) StatObject(ctx context.Context, bucket, key string) (bool, error) {
	_, err := m.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if err := mapMinioError(err); errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return false, fmt.Errorf("s3 stat object: %w", err)
}

func (m minioAPI) RemoveObject(ctx context.Context, bucket, key string) error {
	if err := m.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return mapMinioError(err)
	}
	return nil
}

func (m minioAPI) PresignedGetObject(ctx context.Context, bucket, key string, expiry time.Duration) (string, error) {
	u, err := m.client.PresignedGetObject(ctx, bucket, key, expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presigned get object: %w", err)
	}
	return u.String(), nil
}

func mapMinioError(err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, resp.Message)
	}
	return err
}
