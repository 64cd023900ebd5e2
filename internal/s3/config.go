package s3

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ClientConfig holds configuration for creating an S3 client.
type ClientConfig struct {
	// Region is the AWS region (required).
	Region string

	// Endpoint is an optional custom endpoint URL for S3-compatible
	// services (MinIO, LocalStack, R2).
	Endpoint string

	// UsePathStyle enables path-style addressing. LocalStack and MinIO
	// with default config need it.
	UsePathStyle bool

	// MaxAttempts bounds SDK retries. Zero keeps the SDK default.
	MaxAttempts int

	// Credentials are the credentials to use.
	// If nil, the default credential chain is used.
	Credentials aws.CredentialsProvider
}

// StaticCredentials returns a provider for a fixed key pair, or nil when
// accessKeyID is empty so the default chain applies.
func StaticCredentials(accessKeyID, secretAccessKey string) aws.CredentialsProvider {
	if accessKeyID == "" {
		return nil
	}
	return credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, "")
}

// NewClient creates an S3 client with the given configuration.
//
// For LocalStack:
//
//	client, err := s3.NewClient(ctx, s3.ClientConfig{
//	    Region:       "us-east-1",
//	    Endpoint:     "http://localhost:4566",
//	    UsePathStyle: true,
//	    Credentials:  s3.StaticCredentials("test", "test"),
//	})
func NewClient(ctx context.Context, cfg ClientConfig) (*s3.Client, error) {
	if cfg.Region == "" {
		return nil, errors.New("s3: region is required")
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.Credentials != nil {
		opts = append(opts, config.WithCredentialsProvider(cfg.Credentials))
	}
	if cfg.MaxAttempts > 0 {
		opts = append(opts, config.WithRetryMaxAttempts(cfg.MaxAttempts))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	}), nil
}

// NewLocalStackClient creates an S3 client configured for LocalStack.
// Defaults: endpoint=http://localhost:4566, region=us-east-1, credentials=test/test.
func NewLocalStackClient(ctx context.Context) (*s3.Client, error) {
	return NewClient(ctx, ClientConfig{
		Region:       "us-east-1",
		Endpoint:     "http://localhost:4566",
		UsePathStyle: true,
		Credentials:  StaticCredentials("test", "test"),
	})
}

// NewMinIOClient creates an S3 client configured for MinIO.
// Defaults: endpoint=http://localhost:9000, region=us-east-1, credentials=minioadmin/minioadmin.
func NewMinIOClient(ctx context.Context) (*s3.Client, error) {
	return NewClient(ctx, ClientConfig{
		Region:       "us-east-1",
		Endpoint:     "http://localhost:9000",
		UsePathStyle: true,
		Credentials:  StaticCredentials("minioadmin", "minioadmin"),
	})
}

// NewR2Client creates an S3 client configured for Cloudflare R2.
// Credentials should be R2 API tokens.
func NewR2Client(ctx context.Context, accountID, accessKeyID, secretAccessKey string) (*s3.Client, error) {
	return NewClient(ctx, ClientConfig{
		Region:      "auto",
		Endpoint:    "https://" + accountID + ".r2.cloudflarestorage.com",
		Credentials: StaticCredentials(accessKeyID, secretAccessKey),
	})
}
