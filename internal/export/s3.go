package export

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"babylog/internal/config"
)

// S3Target uploads exports to a bucket under an optional key prefix.
type S3Target struct {
	uploader *manager.Uploader
	bucket   string
	prefix   string
}

var _ Target = (*S3Target)(nil)

// NewS3Target builds an S3 client from the export config. Static keys are used
// when configured; otherwise the default AWS credential chain applies.
func NewS3Target(ctx context.Context, cfg config.ExportConfig) (*S3Target, error) {
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("s3 export requires s3_bucket to be set")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.S3Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.S3Region))
	}
	if cfg.S3AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKeyID, cfg.S3SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Target{
		uploader: manager.NewUploader(client),
		bucket:   cfg.S3Bucket,
		prefix:   cfg.S3Prefix,
	}, nil
}

// Key returns the object key for an export name.
func (t *S3Target) Key(name string) string {
	if t.prefix == "" {
		return name
	}
	return path.Join(t.prefix, name)
}

func (t *S3Target) Put(ctx context.Context, name string, r io.Reader, size int64, contentType string) (string, error) {
	key := t.Key(name)
	_, err := t.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(t.bucket),
		Key:           aws.String(key),
		Body:          r,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("uploading s3://%s/%s: %w", t.bucket, key, err)
	}
	return fmt.Sprintf("s3://%s/%s", t.bucket, key), nil
}
