package s3

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// deleteBatchSize is the S3 limit of keys per DeleteObjects call
const deleteBatchSize = 1000

// Config selects the bucket and, for S3-compatible stores, the endpoint
type Config struct {
	Bucket    string
	Region    string
	Endpoint  string // optional, e.g. a MinIO URL
	PathStyle bool
}

// ConfigFromEnv reads S3_BUCKET, S3_REGION (AWS_REGION), S3_ENDPOINT and S3_PATH_STYLE
func ConfigFromEnv() Config {
	region := os.Getenv("S3_REGION")
	if region == "" {
		region = os.Getenv("AWS_REGION")
	}
	return Config{
		Bucket:    os.Getenv("S3_BUCKET"),
		Region:    region,
		Endpoint:  os.Getenv("S3_ENDPOINT"),
		PathStyle: os.Getenv("S3_PATH_STYLE") == "true",
	}
}

// Client reads pre-built chunk files from an S3 bucket
type Client struct {
	s3Client *s3.Client
	bucket   string
}

// Object is one listed object
type Object struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// NewClient creates a new S3 client. Credentials come from the environment or IAM role.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("S3 bucket is required")
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewClientWithConfig(cfg, awsCfg), nil
}

// NewClientWithConfig creates a new S3 client with a custom AWS config
func NewClientWithConfig(cfg Config, awsCfg aws.Config) *Client {
	return &Client{
		s3Client: s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if cfg.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.Endpoint)
			}
			o.UsePathStyle = cfg.PathStyle
		}),
		bucket: cfg.Bucket,
	}
}

// Bucket returns the bucket name
func (c *Client) Bucket() string {
	return c.bucket
}

// ListObjects lists the objects under prefix whose key ends in suffix, sorted by key
func (c *Client) ListObjects(ctx context.Context, prefix, suffix string) ([]Object, error) {
	paginator := s3.NewListObjectsV2Paginator(c.s3Client, &s3.ListObjectsV2Input{
		Bucket: aws.String(c.bucket),
		Prefix: aws.String(prefix),
	})

	var objects []Object
	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}

		for _, obj := range output.Contents {
			key := aws.ToString(obj.Key)
			if strings.HasSuffix(key, "/") || !strings.HasSuffix(key, suffix) {
				continue
			}
			objects = append(objects, Object{
				Key:          key,
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
			})
		}
	}

	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	slog.Debug("listed objects", "bucket", c.bucket, "prefix", prefix, "objects", len(objects))
	return objects, nil
}

// ListKeys is ListObjects reduced to the keys
func (c *Client) ListKeys(ctx context.Context, prefix, suffix string) ([]string, error) {
	objects, err := c.ListObjects(ctx, prefix, suffix)
	if err != nil {
		return nil, err
	}
	keys := make([]string, len(objects))
	for i, obj := range objects {
		keys[i] = obj.Key
	}
	return keys, nil
}

// Download reads a whole object into memory
func (c *Client) Download(ctx context.Context, key string) ([]byte, error) {
	result, err := c.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object %s: %w", key, err)
	}
	return data, nil
}

// DeleteKeys deletes the given objects in batches
func (c *Client) DeleteKeys(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		slog.Debug("no objects to delete")
		return nil
	}

	for i := 0; i < len(keys); i += deleteBatchSize {
		end := min(i+deleteBatchSize, len(keys))

		batch := make([]types.ObjectIdentifier, 0, end-i)
		for _, key := range keys[i:end] {
			batch = append(batch, types.ObjectIdentifier{Key: aws.String(key)})
		}

		output, err := c.s3Client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(c.bucket),
			Delete: &types.Delete{
				Objects: batch,
				Quiet:   aws.Bool(true),
			},
		})
		if err != nil {
			return fmt.Errorf("failed to delete objects: %w", err)
		}
		if len(output.Errors) > 0 {
			first := output.Errors[0]
			return fmt.Errorf("failed to delete %d objects, first %s: %s",
				len(output.Errors), aws.ToString(first.Key), aws.ToString(first.Message))
		}

		slog.Debug("deleted batch of objects", "count", len(batch))
	}

	slog.Info("objects deleted", "bucket", c.bucket, "objects", len(keys))
	return nil
}
