// Package storage persists uploaded profile photos in an S3-compatible
// bucket (AWS S3 or MinIO) and hands back the public URL to store on the
// user record.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrMissingBucket = errors.New("storage: bucket required")
	ErrMissingRegion = errors.New("storage: region required")
)

// s3API is the slice of the S3 client used by the photo store.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3PhotoStoreConfig configures the photo object store.
type S3PhotoStoreConfig struct {
	Region        string
	Bucket        string
	Endpoint      string
	AccessKey     string
	SecretKey     string
	PublicBaseURL string
	Logger        *zap.Logger
	Clock         func() time.Time
	IDProvider    func() string
}

// S3PhotoStore uploads photos under a date-partitioned key layout.
type S3PhotoStore struct {
	client        s3API
	bucket        string
	region        string
	publicBaseURL string
	logger        *zap.Logger
	clock         func() time.Time
	newID         func() string
}

// NewS3PhotoStore constructs the store and its underlying S3 client.
func NewS3PhotoStore(ctx context.Context, cfg S3PhotoStoreConfig) (*S3PhotoStore, error) {
	store, err := newS3PhotoStore(cfg)
	if err != nil {
		return nil, err
	}

	loadOptions := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if strings.TrimSpace(cfg.AccessKey) != "" {
		loadOptions = append(loadOptions, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOptions...)
	if err != nil {
		return nil, fmt.Errorf("storage: aws config load failed: %w", err)
	}

	store.client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if strings.TrimSpace(cfg.Endpoint) != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	return store, nil
}

func newS3PhotoStore(cfg S3PhotoStoreConfig) (*S3PhotoStore, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, ErrMissingBucket
	}
	if strings.TrimSpace(cfg.Region) == "" {
		return nil, ErrMissingRegion
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	newID := cfg.IDProvider
	if newID == nil {
		newID = func() string { return uuid.New().String() }
	}

	return &S3PhotoStore{
		bucket:        strings.TrimSpace(cfg.Bucket),
		region:        strings.TrimSpace(cfg.Region),
		publicBaseURL: strings.TrimRight(strings.TrimSpace(cfg.PublicBaseURL), "/"),
		logger:        logger,
		clock:         clock,
		newID:         newID,
	}, nil
}

// Store uploads the photo and returns its public URL.
func (s *S3PhotoStore) Store(ctx context.Context, ownerID string, contentType string, content io.Reader) (string, error) {
	key := s.objectKey(s.clock().UTC())

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        content,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		s.logger.Error("photo upload failed",
			zap.String("owner_id", ownerID),
			zap.String("key", key),
			zap.Error(err),
		)
		return "", fmt.Errorf("storage: put object failed: %w", err)
	}

	s.logger.Info("photo uploaded",
		zap.String("owner_id", ownerID),
		zap.String("key", key),
	)
	return s.publicURL(key), nil
}

func (s *S3PhotoStore) objectKey(now time.Time) string {
	return fmt.Sprintf("avatars/%d/%d/%d/%s", now.Year(), int(now.Month()), now.Day(), s.newID())
}

func (s *S3PhotoStore) publicURL(key string) string {
	if s.publicBaseURL != "" {
		return s.publicBaseURL + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}
