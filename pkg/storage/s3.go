package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/tileforge/tileserv/pkg/errors"
)

// s3Context reads slabs from one S3 bucket. The location is the bucket name.
// The underlying SDK client is safe for concurrent use, so one context
// serves all workers.
type s3Context struct {
	bucket string
	client *s3.Client
	logger *zap.Logger
}

// newS3Context builds the SDK client from the default credential chain.
func newS3Context(ctx context.Context, bucket, region string, logger *zap.Logger) (*s3Context, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
	)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeStorage, "failed to load AWS configuration")
	}

	return &s3Context{
		bucket: bucket,
		client: s3.NewFromConfig(cfg),
		logger: logger.With(
			zap.String("component", "s3_context"),
			zap.String("bucket", bucket)),
	}, nil
}

func (s *s3Context) Kind() Kind {
	return KindS3
}

func (s *s3Context) Location() string {
	return s.bucket
}

func (s *s3Context) Read(ctx context.Context, path string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeStorage, "s3 read failed")
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeStorage, "s3 body read failed")
	}
	return data, nil
}

func (s *s3Context) ReadRange(ctx context.Context, path string, offset uint64, length uint32) ([]byte, error) {
	// HTTP range is inclusive on both ends
	byteRange := fmt.Sprintf("bytes=%d-%d", offset, offset+uint64(length)-1)

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
		Range:  aws.String(byteRange),
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeStorage, "s3 range read failed")
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeStorage, "s3 body read failed")
	}
	return data, nil
}

func (s *s3Context) Close() error {
	return nil
}
