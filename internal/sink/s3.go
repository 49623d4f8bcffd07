package sink

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	harvesterr "tabnet-harvester/internal/errors"
)

// S3Config holds configuration for the S3 sink.
type S3Config struct {
	// Bucket receives the documents.
	Bucket string `json:"bucket" yaml:"bucket"`
	// Prefix is prepended to every object key.
	Prefix string `json:"prefix" yaml:"prefix"`
	// Region is the AWS region for the bucket.
	Region string `json:"region" yaml:"region"`
	// Endpoint is an optional custom endpoint (for MinIO, LocalStack, etc.).
	Endpoint string `json:"endpoint" yaml:"endpoint"`
	// UsePathStyle enables path-style addressing (required for MinIO).
	UsePathStyle bool `json:"use_path_style" yaml:"use_path_style"`
}

// PutObjectAPI is the slice of the S3 client the sink needs.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Sink uploads the document as <prefix>/<runID>.json.
type S3Sink struct {
	client PutObjectAPI
	cfg    S3Config
}

// NewS3Sink creates an S3 sink using the default AWS credential chain.
func NewS3Sink(ctx context.Context, cfg S3Config) (*S3Sink, error) {
	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, harvesterr.Wrap(harvesterr.ErrCategorySink, harvesterr.CodeWriteFailed, "load AWS config", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return NewS3SinkWithClient(s3.NewFromConfig(awsCfg, s3Opts...), cfg), nil
}

// NewS3SinkWithClient creates an S3 sink around an existing client.
func NewS3SinkWithClient(client PutObjectAPI, cfg S3Config) *S3Sink {
	return &S3Sink{client: client, cfg: cfg}
}

// Name implements Sink.
func (s *S3Sink) Name() string { return "s3" }

// Key returns the object key for runID.
func (s *S3Sink) Key(runID string) string {
	return path.Join(s.cfg.Prefix, runID+".json")
}

// Write implements Sink.
func (s *S3Sink) Write(ctx context.Context, runID string, doc []byte) (string, error) {
	key := s.Key(runID)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.cfg.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(doc),
		ContentLength: aws.Int64(int64(len(doc))),
		ContentType:   aws.String("application/json"),
	})
	if err != nil {
		return "", harvesterr.Wrap(harvesterr.ErrCategorySink, harvesterr.CodeWriteFailed, "put object "+key, err)
	}
	return fmt.Sprintf("s3://%s/%s", s.cfg.Bucket, key), nil
}
