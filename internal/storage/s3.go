package storage

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/h2g-data/bidscan/internal/common"
)

// BlobStore is the object-storage surface the pipeline needs: fetch a
// document's bytes and upload freshly downloaded ones.
type BlobStore interface {
	Get(ctx context.Context, bucket, key string) ([]byte, error)
	Put(ctx context.Context, bucket, key string, data []byte) error
}

type s3Store struct {
	client *s3.Client
	logger *slog.Logger
}

// NewS3Store builds a BlobStore from the default AWS credential chain.
func NewS3Store(ctx context.Context, region string, logger *slog.Logger) (BlobStore, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, common.NewAppError("STORAGE_ERROR", "load aws config", common.ErrStorage)
	}
	return &s3Store{client: s3.NewFromConfig(cfg), logger: logger}, nil
}

func (s *s3Store) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	start := time.Now()
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		s.logger.Error("storage.get_error", "bucket", bucket, "key", key, "error", err)
		return nil, common.WrapError(common.ErrStorage, "get object "+bucket+"/"+key)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, common.WrapError(common.ErrStorage, "read object body")
	}
	s.logger.Info("storage.get",
		"bucket", bucket,
		"key", key,
		"bytes", len(data),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return data, nil
}

func (s *s3Store) Put(ctx context.Context, bucket, key string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		s.logger.Error("storage.put_error", "bucket", bucket, "key", key, "error", err)
		return common.WrapError(common.ErrStorage, "put object "+bucket+"/"+key)
	}
	s.logger.Info("storage.put", "bucket", bucket, "key", key, "bytes", len(data))
	return nil
}
