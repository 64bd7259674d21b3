// Package media stores normalized images, either in an object bucket or inline as data
// URLs when no bucket is configured.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"authorsite/api/internal/config"
	"authorsite/api/internal/imagenorm"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// ErrTooLarge is returned when an image still exceeds its profile ceiling at the floor
// quality and would have to be embedded in the document.
var ErrTooLarge = errors.New("La imagen es demasiado grande incluso después de comprimirla")

type Upload struct {
	URL     string `json:"url"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Quality int    `json:"quality"`
	Bytes   int    `json:"bytes"`
	// Stored is true when the image went to the bucket rather than into a data URL.
	Stored bool `json:"stored"`
}

type Uploader struct {
	client    *minio.Client
	bucket    string
	publicURL string
	logger    *zap.Logger

	mu          sync.Mutex
	bucketReady bool
}

// NewUploader connects to MinIO when it is configured. Without it every upload is
// returned as a data URL.
func NewUploader(cfg config.Config, logger *zap.Logger) (*Uploader, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	u := &Uploader{bucket: cfg.MinIOBucket, publicURL: cfg.MinIOPublicURL, logger: logger}
	if !cfg.MinIOConfigured() {
		return u, nil
	}
	client, err := minio.New(cfg.MinIOEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinIOAccessKey, cfg.MinIOSecretKey, ""),
		Secure: cfg.MinIOUseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	u.client = client
	return u, nil
}

// Enabled reports whether uploads go to the bucket.
func (u *Uploader) Enabled() bool {
	return u.client != nil
}

// Upload normalizes data with profile and stores the result.
func (u *Uploader) Upload(ctx context.Context, data []byte, profile imagenorm.Profile) (Upload, error) {
	res, err := imagenorm.Normalize(data, profile)
	if err != nil {
		return Upload{}, err
	}
	out := Upload{Width: res.Width, Height: res.Height, Quality: res.Quality}

	if u.client == nil {
		if res.Oversized {
			return Upload{}, fmt.Errorf("%w (%s MB)", ErrTooLarge, sizeMB(res.EncodedBytes))
		}
		out.URL = res.DataURL
		out.Bytes = res.EncodedBytes
		return out, nil
	}

	if err := u.ensureBucket(ctx); err != nil {
		return Upload{}, err
	}
	name := fmt.Sprintf("%s/%s.jpg", profile.Name, uuid.NewString())
	_, err = u.client.PutObject(ctx, u.bucket, name, bytes.NewReader(res.JPEG), int64(len(res.JPEG)), minio.PutObjectOptions{
		ContentType:  "image/jpeg",
		CacheControl: "public, max-age=31536000, immutable",
	})
	if err != nil {
		return Upload{}, fmt.Errorf("put object %s: %w", name, err)
	}
	u.logger.Info("image uploaded", zap.String("object", name), zap.Int("bytes", len(res.JPEG)), zap.Int("quality", res.Quality))

	out.URL = u.objectURL(name)
	out.Bytes = len(res.JPEG)
	out.Stored = true
	return out, nil
}

// ensureBucket creates the bucket with a public-read policy the first time it is needed.
func (u *Uploader) ensureBucket(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.bucketReady {
		return nil
	}

	exists, err := u.client.BucketExists(ctx, u.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", u.bucket, err)
	}
	if !exists {
		if err := u.client.MakeBucket(ctx, u.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket %s: %w", u.bucket, err)
		}
		if err := u.client.SetBucketPolicy(ctx, u.bucket, publicReadPolicy(u.bucket)); err != nil {
			return fmt.Errorf("set bucket policy %s: %w", u.bucket, err)
		}
		u.logger.Info("bucket created", zap.String("bucket", u.bucket))
	}
	u.bucketReady = true
	return nil
}

func (u *Uploader) objectURL(name string) string {
	base := strings.TrimRight(u.publicURL, "/")
	if base == "" && u.client != nil {
		base = strings.TrimRight(u.client.EndpointURL().String(), "/")
	}
	return base + "/" + u.bucket + "/" + name
}

func publicReadPolicy(bucket string) string {
	return fmt.Sprintf(`{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Principal":{"AWS":["*"]},"Action":["s3:GetObject"],"Resource":["arn:aws:s3:::%s/*"]}]}`, bucket)
}

func sizeMB(n int) string {
	return fmt.Sprintf("%.2f", float64(n)/1024/1024)
}
