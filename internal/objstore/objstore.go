// Package objstore fetches raw log uploads from S3-compatible object storage.
package objstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// ErrNotFound is returned when the object does not exist.
var ErrNotFound = errors.New("object not found")

const defaultRegion = "us-east-1"

// Config selects the endpoint and credentials. Empty credentials fall back
// to the default AWS credential chain.
type Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	// MaxBytes caps object size; 0 means no cap.
	MaxBytes int64
}

// Client reads objects from S3 or an S3-compatible service.
type Client struct {
	s3       *s3.Client
	maxBytes int64
}

// New builds a client. A custom endpoint switches to path-style addressing
// for MinIO and similar services.
func New(ctx context.Context, cfg Config) (*Client, error) {
	region := cfg.Region
	if region == "" {
		region = defaultRegion
	}

	var awsCfg aws.Config
	if cfg.AccessKey != "" {
		creds := credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
		awsCfg = aws.Config{Region: region, Credentials: aws.NewCredentialsCache(creds)}
	} else {
		var err error
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &Client{s3: client, maxBytes: cfg.MaxBytes}, nil
}

// Get downloads an object.
func (c *Client) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	out, err := c.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("s3://%s/%s: %w", bucket, key, ErrNotFound)
		}
		return nil, fmt.Errorf("get s3://%s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()

	var body io.Reader = out.Body
	if c.maxBytes > 0 {
		body = io.LimitReader(out.Body, c.maxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read s3://%s/%s: %w", bucket, key, err)
	}
	if c.maxBytes > 0 && int64(len(data)) > c.maxBytes {
		return nil, fmt.Errorf("s3://%s/%s is larger than %d bytes", bucket, key, c.maxBytes)
	}
	return data, nil
}

// IsURI reports whether s names an s3:// object.
func IsURI(s string) bool {
	return strings.HasPrefix(s, "s3://")
}

// ParseURI splits s3://bucket/key into its parts.
func ParseURI(uri string) (bucket, key string, err error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", "", fmt.Errorf("parse %q: %w", uri, err)
	}
	if u.Scheme != "s3" {
		return "", "", fmt.Errorf("%q is not an s3:// uri", uri)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return "", "", fmt.Errorf("%q: want s3://bucket/key", uri)
	}
	return u.Host, key, nil
}
