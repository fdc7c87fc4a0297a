// Package storage uploads event images to S3.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// MaxImageSize is the largest accepted event image (5MB).
	MaxImageSize = 5 * 1024 * 1024
	// FolderEvents is the S3 prefix for event images.
	FolderEvents = "events"
)

// AllowedImageTypes maps accepted MIME types to the stored extension.
var AllowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

var (
	ErrUnsupportedType = errors.New("unsupported image type")
	ErrTooLarge        = errors.New("image exceeds 5MB")
	ErrEmpty           = errors.New("empty file")
)

// S3Config holds S3 client configuration.
type S3Config struct {
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	// PublicBaseURL prefixes object keys in returned URLs, e.g. a CDN
	// origin.  Empty uses the bucket's virtual-hosted URL.
	PublicBaseURL string
}

// putter is the slice of manager.Uploader used here.
type putter interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// Images stores event images.
type Images struct {
	uploader putter
	cfg      S3Config
	logger   *zap.Logger
	newKey   func(ext string) string
}

// NewImages creates an S3 client using static credentials when given,
// otherwise the default credential chain.
func NewImages(ctx context.Context, cfg S3Config, logger *zap.Logger) (*Images, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, "",
		)))
	} else {
		logger.Warn("S3 client using default credential chain")
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	uploader := manager.NewUploader(s3.NewFromConfig(awsCfg))
	return newImages(uploader, cfg, logger), nil
}

func newImages(u putter, cfg S3Config, logger *zap.Logger) *Images {
	return &Images{
		uploader: u,
		cfg:      cfg,
		logger:   logger,
		newKey:   func(ext string) string { return path.Join(FolderEvents, uuid.NewString()+ext) },
	}
}

// ExtensionFor validates contentType and returns the extension to store
// it under.
func ExtensionFor(contentType string) (string, error) {
	ct := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	ext, ok := AllowedImageTypes[ct]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, contentType)
	}
	return ext, nil
}

// Upload validates and stores one image and returns its public URL.
func (i *Images) Upload(ctx context.Context, body io.Reader, size int64, contentType string) (string, error) {
	ext, err := ExtensionFor(contentType)
	if err != nil {
		return "", err
	}
	switch {
	case size <= 0:
		return "", ErrEmpty
	case size > MaxImageSize:
		return "", ErrTooLarge
	}

	key := i.newKey(ext)
	_, err = i.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(i.cfg.Bucket),
		Key:           aws.String(key),
		Body:          io.LimitReader(body, MaxImageSize),
		ContentType:   aws.String(strings.ToLower(contentType)),
		ContentLength: aws.Int64(size),
		CacheControl:  aws.String("public, max-age=31536000"),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	i.logger.Info("event image uploaded", zap.String("key", key), zap.Int64("size", size))
	return i.PublicURL(key), nil
}

// PublicURL returns the URL an uploaded key is served from.
func (i *Images) PublicURL(key string) string {
	if i.cfg.PublicBaseURL != "" {
		return strings.TrimRight(i.cfg.PublicBaseURL, "/") + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", i.cfg.Bucket, i.cfg.Region, key)
}
