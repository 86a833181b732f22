package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type s3HeadAPI interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

type s3PresignAPI interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Store serves prompt audio from an S3-compatible bucket through presigned GET URLs.
type S3Store struct {
	head    s3HeadAPI
	presign s3PresignAPI
	bucket  string
	prefix  string
	ext     string
	ttl     time.Duration
}

// NewS3Store loads the default AWS credential chain. Endpoint switches to path-style
// addressing for MinIO or LocalStack.
func NewS3Store(ctx context.Context, cfg Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 audio store requires a bucket")
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return newS3Store(client, s3.NewPresignClient(client), cfg), nil
}

func newS3Store(head s3HeadAPI, presign s3PresignAPI, cfg Config) *S3Store {
	return &S3Store{
		head:    head,
		presign: presign,
		bucket:  cfg.Bucket,
		prefix:  cfg.Prefix,
		ext:     cfg.Extension,
		ttl:     ttlOrDefault(cfg.URLTTL),
	}
}

// FetchPromptAudio checks the object exists and presigns a GET for it.
func (s *S3Store) FetchPromptAudio(ctx context.Context, questionID string) (string, error) {
	key, err := objectKey(s.prefix, questionID, s.ext)
	if err != nil {
		return "", err
	}

	_, err = s.head.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, questionID)
		}
		return "", fmt.Errorf("s3 head %s: %w", key, err)
	}

	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.ttl))
	if err != nil {
		return "", fmt.Errorf("s3 presign %s: %w", key, err)
	}
	return req.URL, nil
}
