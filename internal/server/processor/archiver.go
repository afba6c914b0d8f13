package processor

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"casesync/internal/server/config"
)

// Archiver stores a copy of each broken-out chunk in object storage, so
// reporting pipelines can read bulk data without touching the database.
type Archiver interface {
	Archive(ctx context.Context, key string, body []byte) error
}

// S3Archiver writes chunks to an S3-compatible backend (MinIO in the
// default deployment).
type S3Archiver struct {
	client *s3.Client
	bucket string
}

// NewS3Archiver builds the client from the server config. Returns nil when
// no bucket is configured; the runner treats a nil archiver as "archiving
// off".
func NewS3Archiver(ctx context.Context, cfg *config.Config) (*S3Archiver, error) {
	if cfg.S3Bucket == "" {
		return nil, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3RootUser,
			cfg.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("error loading S3 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.S3BaseEndpoint)
		o.UsePathStyle = true
	})

	return &S3Archiver{client: client, bucket: cfg.S3Bucket}, nil
}

func (a *S3Archiver) Archive(ctx context.Context, key string, body []byte) error {
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(body),
	})
	if err != nil {
		return fmt.Errorf("error archiving %s: %w", key, err)
	}
	return nil
}
