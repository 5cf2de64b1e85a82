package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/notification"
)

// MaxInlineBytes is the largest object ReadObject will load into memory.
const MaxInlineBytes = 5 << 20

// ObjectCreatedEvents is the notification filter for new uploads.
var ObjectCreatedEvents = []string{string(notification.ObjectCreatedAll)}

// ObjectInfo is one listed object.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

type Store struct {
	client     *minio.Client
	bucketName string
	region     string
}

// New buat koneksi MinIO / S3. Empty keys fall back to the AWS credential chain
// (environment, then instance role).
func New(ctx context.Context, endpoint, region, bucket, accessKey, secretKey string, useSSL bool) (*Store, error) {
	creds := credentials.NewStaticV4(accessKey, secretKey, "")
	if accessKey == "" {
		creds = credentials.NewChainCredentials([]credentials.Provider{
			&credentials.EnvAWS{},
			&credentials.IAM{Client: &http.Client{Transport: http.DefaultTransport}},
		})
	}

	cli, err := minio.New(endpoint, &minio.Options{
		Creds:  creds,
		Secure: useSSL,
		Region: region,
	})
	if err != nil {
		return nil, err
	}

	// pastikan bucket ada
	exists, err := cli.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("checking bucket %s: %w", bucket, err)
	}
	if !exists {
		return nil, fmt.Errorf("bucket %s does not exist", bucket)
	}

	return &Store{client: cli, bucketName: bucket, region: region}, nil
}

// Bucket returns the configured bucket name.
func (s *Store) Bucket() string { return s.bucketName }

// PresignGet issues a time-limited GET URL for bucket/key.
func (s *Store) PresignGet(ctx context.Context, bucket, key string, expiry time.Duration) (string, error) {
	if bucket == "" {
		bucket = s.bucketName
	}
	u, err := s.client.PresignedGetObject(ctx, bucket, key, expiry, url.Values{})
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// List returns every object under prefix in the configured bucket.
func (s *Store) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var out []ObjectInfo
	for obj := range s.client.ListObjects(ctx, s.bucketName, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		out = append(out, ObjectInfo{Key: obj.Key, Size: obj.Size, LastModified: obj.LastModified})
	}
	return out, nil
}

// ReadObject loads an object into memory, refusing anything over MaxInlineBytes.
func (s *Store) ReadObject(ctx context.Context, bucket, key string) ([]byte, error) {
	if bucket == "" {
		bucket = s.bucketName
	}
	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	data, err := io.ReadAll(io.LimitReader(obj, MaxInlineBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading %s/%s: %w", bucket, key, err)
	}
	if len(data) > MaxInlineBytes {
		return nil, fmt.Errorf("object %s/%s exceeds %d bytes", bucket, key, MaxInlineBytes)
	}
	return data, nil
}

// Upload sends a local image to key and returns the key.
func (s *Store) Upload(ctx context.Context, localPath, key string) (string, error) {
	_, err := s.client.FPutObject(ctx, s.bucketName, key, localPath, minio.PutObjectOptions{
		ContentType: contentType(localPath),
	})
	if err != nil {
		return "", err
	}
	return key, nil
}

// Uploads subscribes to object-created notifications of the bucket. The
// channel closes when ctx is done.
func (s *Store) Uploads(ctx context.Context, prefix, suffix string) <-chan notification.Info {
	return s.client.ListenBucketNotification(ctx, s.bucketName, prefix, suffix, ObjectCreatedEvents)
}

// Check implements the health checker.
func (s *Store) Check(ctx context.Context) error {
	ok, err := s.client.BucketExists(ctx, s.bucketName)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("bucket %s not found", s.bucketName)
	}
	return nil
}

func contentType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
