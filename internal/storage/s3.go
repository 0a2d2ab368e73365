package storage

import (
	"bytes"
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/explore-metroplex/metroplex-api/internal/cache"
	"github.com/explore-metroplex/metroplex-api/internal/config"
)

// Presigned GET URLs are valid for an hour; cached copies expire earlier so a
// cached URL is never handed out after the signature lapses.
const signedURLTTL = time.Hour

// ObjectStore is the storage surface the handlers depend on. Photo fields in
// the database hold opaque keys; SignedURL resolves a key to a time-limited
// display URL.
type ObjectStore interface {
	SignedURL(ctx context.Context, key string) (string, error)
	Upload(ctx context.Context, key string, body []byte, contentType string) error
	Delete(ctx context.Context, key string) error
}

type S3Store struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
	urls    *cache.URLCache
}

func NewS3Store(ctx context.Context, cfg *config.Config, urls *cache.URLCache) (*S3Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.BucketRegion),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretAccessKey, ""),
		),
	)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg)
	return &S3Store{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  cfg.BucketName,
		urls:    urls,
	}, nil
}

func (s *S3Store) SignedURL(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", nil
	}
	if url, ok := s.urls.Get(ctx, key); ok {
		return url, nil
	}

	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(signedURLTTL))
	if err != nil {
		return "", err
	}

	s.urls.Set(ctx, key, req.URL)
	return req.URL, nil
}

func (s *S3Store) Upload(ctx context.Context, key string, body []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	return err
}

func (s *S3Store) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	return err
}
