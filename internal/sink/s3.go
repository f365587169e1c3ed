package sink

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/cenkalti/backoff"
	"github.com/dustin/go-humanize"
)

// S3Config holds bucket connection settings.
type S3Config struct {
	Endpoint     string
	Region       string
	Bucket       string
	Prefix       string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
	MaxElapsed   time.Duration
}

// objectPutter is the subset of the S3 client used by the sink.
type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3 uploads archives to an S3-compatible bucket.
type S3 struct {
	client     objectPutter
	bucket     string
	prefix     string
	maxElapsed time.Duration
	logger     *slog.Logger
}

// NewS3 creates an S3 sink. Static credentials are used when both keys are
// set; otherwise the default AWS credential chain applies.
func NewS3(ctx context.Context, cfg S3Config, logger *slog.Logger) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return newS3WithClient(client, cfg, logger), nil
}

func newS3WithClient(client objectPutter, cfg S3Config, logger *slog.Logger) *S3 {
	maxElapsed := cfg.MaxElapsed
	if maxElapsed <= 0 {
		maxElapsed = time.Minute
	}
	return &S3{
		client:     client,
		bucket:     cfg.Bucket,
		prefix:     cfg.Prefix,
		maxElapsed: maxElapsed,
		logger:     logger,
	}
}

// Location returns the s3:// URL of the target prefix.
func (s *S3) Location() string {
	return "s3://" + path.Join(s.bucket, s.prefix)
}

// Save uploads data as prefix/name, retrying transient failures with
// exponential backoff.
func (s *S3) Save(ctx context.Context, name string, data []byte) (string, error) {
	if err := checkPayload(name, data); err != nil {
		return "", err
	}
	key := path.Join(s.prefix, name)

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = s.maxElapsed

	upload := func() error {
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(s.bucket),
			Key:           aws.String(key),
			Body:          bytes.NewReader(data),
			ContentLength: aws.Int64(int64(len(data))),
			ContentType:   aws.String("application/zip"),
		})
		if err != nil && ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		s.logger.Warn("archive upload failed, retrying", "key", key, "error", err, "wait", wait)
	}

	if err := backoff.RetryNotify(upload, backoff.WithContext(b, ctx), notify); err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}

	location := "s3://" + path.Join(s.bucket, key)
	s.logger.Info("archive uploaded",
		"location", location,
		"size", humanize.Bytes(uint64(len(data))),
	)
	return location, nil
}
