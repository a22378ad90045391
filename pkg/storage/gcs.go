package storage

import (
	"context"
	"io"

	gcs "cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/tileforge/tileserv/pkg/errors"
)

// gcsContext reads slabs from one Google Cloud Storage bucket. The location
// is the bucket name. The SDK client is safe for concurrent use.
type gcsContext struct {
	bucket *gcs.BucketHandle
	client *gcs.Client
	name   string
	logger *zap.Logger
}

// newGCSContext builds the SDK client, optionally from a service-account
// key file.
func newGCSContext(ctx context.Context, bucket, credentialsFile string, logger *zap.Logger) (*gcsContext, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeStorage, "failed to create GCS client")
	}

	return &gcsContext{
		bucket: client.Bucket(bucket),
		client: client,
		name:   bucket,
		logger: logger.With(
			zap.String("component", "gcs_context"),
			zap.String("bucket", bucket)),
	}, nil
}

func (g *gcsContext) Kind() Kind {
	return KindGCS
}

func (g *gcsContext) Location() string {
	return g.name
}

func (g *gcsContext) Read(ctx context.Context, path string) ([]byte, error) {
	r, err := g.bucket.Object(path).NewReader(ctx)
	if err != nil {
		if err == gcs.ErrObjectNotExist {
			return nil, errors.Wrap(err, errors.ErrorTypeNotFound, "object not found")
		}
		return nil, errors.Wrap(err, errors.ErrorTypeStorage, "gcs read failed")
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeStorage, "gcs body read failed")
	}
	return data, nil
}

func (g *gcsContext) ReadRange(ctx context.Context, path string, offset uint64, length uint32) ([]byte, error) {
	r, err := g.bucket.Object(path).NewRangeReader(ctx, int64(offset), int64(length))
	if err != nil {
		if err == gcs.ErrObjectNotExist {
			return nil, errors.Wrap(err, errors.ErrorTypeNotFound, "object not found")
		}
		return nil, errors.Wrap(err, errors.ErrorTypeStorage, "gcs range read failed")
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeStorage, "gcs body read failed")
	}
	return data, nil
}

func (g *gcsContext) Close() error {
	return g.client.Close()
}
