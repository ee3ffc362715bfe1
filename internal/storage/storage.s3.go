// FilePath: server/worker/internal/storage/storage.s3.go
package storage

import (
	"bytes"
	"context"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	nuts "github.com/vaudience/go-nuts"

	"github.com/vigilhome/vigil_v3/server/worker/internal/config"
	"github.com/vigilhome/vigil_v3/server/worker/internal/errors"
)

// ObjectStore is the worker's view of the clip bucket.
type ObjectStore interface {
	Download(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, key string, data []byte, contentType string) error
}

// S3Store reads uploaded audio clips from the platform bucket.
type S3Store struct {
	s3     *s3.Client
	bucket string
}

// New builds an S3-backed object store from worker configuration.
func New(ctx context.Context, awsCfg config.AWSConfig) (*S3Store, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(awsCfg.Region),
	}
	if awsCfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(awsCfg.AccessKeyID, awsCfg.SecretAccessKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.NewStorageError("failed to load AWS config", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if awsCfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(awsCfg.S3Endpoint)
			// Localstack and minio serve path-style buckets
			o.UsePathStyle = true
		}
	})

	nuts.L.Infof("[Storage] S3 client ready for bucket %s", awsCfg.Bucket)
	return &S3Store{s3: client, bucket: awsCfg.Bucket}, nil
}

// Download fetches the raw bytes of one stored object.
func (s *S3Store) Download(ctx context.Context, key string) ([]byte, error) {
	out, err := s.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, errors.NewStorageError("failed to get object", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, errors.NewStorageError("failed to read object body", err)
	}
	return data, nil
}

// Upload writes an object. Production uploads go through presigned URLs
// issued by the ingest API; this path serves tooling and tests.
func (s *S3Store) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return errors.NewStorageError("failed to put object", err)
	}
	return nil
}
