// Package awss3 implements store.Client on top of the AWS SDK for Go v2.
// It works against AWS S3 and any S3-compatible endpoint.
package awss3

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/slmtnm/s3ranger/internal/errs"
	"github.com/slmtnm/s3ranger/internal/pathkey"
	"github.com/slmtnm/s3ranger/internal/store"
)

const defaultRegion = "us-east-1"

// API is the subset of *s3.Client used by Client.
type API interface {
	ListBuckets(ctx context.Context, params *s3.ListBucketsInput, optFns ...func(*s3.Options)) (*s3.ListBucketsOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// Client wraps the AWS S3 client with our configuration.
// It is safe for concurrent use by multiple goroutines.
type Client struct {
	api API
}

var _ store.Client = (*Client)(nil)

// New creates a new S3 client from configuration.
func New(ctx context.Context, cfg *store.Config) (*Client, error) {
	region := cfg.Region
	if region == "" && cfg.EndpointURL != "" {
		region = defaultRegion
	}

	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	if cfg.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(cfg.Profile))
	}
	if cfg.HasStaticCredentials() {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			cfg.SessionToken,
		)))
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errs.Wrap(errs.KindConnectionFailed, "failed to load AWS config", err)
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return NewWithAPI(client), nil
}

// NewWithAPI wraps an existing SDK client.
func NewWithAPI(api API) *Client {
	return &Client{api: api}
}

// ListBuckets follows continuation tokens until every bucket is returned.
func (c *Client) ListBuckets(ctx context.Context) ([]store.Bucket, error) {
	var (
		buckets []store.Bucket
		token   *string
	)
	for {
		out, err := c.api.ListBuckets(ctx, &s3.ListBucketsInput{ContinuationToken: token})
		if err != nil {
			return nil, mapError(err, "failed to list buckets")
		}
		for _, b := range out.Buckets {
			buckets = append(buckets, store.Bucket{
				Name:      aws.ToString(b.Name),
				CreatedAt: aws.ToTime(b.CreationDate),
				Region:    aws.ToString(b.BucketRegion),
			})
		}
		if aws.ToString(out.ContinuationToken) == "" {
			return buckets, nil
		}
		token = out.ContinuationToken
	}
}

// HeadBucket checks if a bucket exists and is accessible
func (c *Client) HeadBucket(ctx context.Context, bucket string) error {
	_, err := c.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)})
	if err != nil {
		return mapError(err, fmt.Sprintf("failed to access bucket '%s'", bucket))
	}
	return nil
}

// ListObjectsPage lists one page without a delimiter, so nested keys are
// returned flat and folder grouping is left to the caller.
func (c *Client) ListObjectsPage(ctx context.Context, bucket, prefix, token string) (store.Page, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
	}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}
	if token != "" {
		input.ContinuationToken = aws.String(token)
	}

	result, err := c.api.ListObjectsV2(ctx, input)
	if err != nil {
		return store.Page{}, mapError(err, "failed to list objects")
	}

	page := store.Page{Records: make([]store.ObjectRecord, 0, len(result.Contents))}
	for _, obj := range result.Contents {
		size := aws.ToInt64(obj.Size)
		if size < 0 {
			size = 0
		}
		page.Records = append(page.Records, store.ObjectRecord{
			Key:          aws.ToString(obj.Key),
			Size:         uint64(size),
			LastModified: aws.ToTime(obj.LastModified),
		})
	}
	if aws.ToBool(result.IsTruncated) {
		page.NextToken = aws.ToString(result.NextContinuationToken)
		if page.NextToken == "" {
			return store.Page{}, errs.New(errs.KindStoreFailed, "truncated listing without a continuation token")
		}
	}
	return page, nil
}

// GetObject opens the object body. The caller must close it.
func (c *Client) GetObject(ctx context.Context, loc pathkey.Location) (io.ReadCloser, error) {
	result, err := c.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
	})
	if err != nil {
		return nil, mapError(err, "failed to get object")
	}
	return result.Body, nil
}

// PutObject uploads an object to S3
func (c *Client) PutObject(ctx context.Context, loc pathkey.Location, body io.Reader, size int64) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
		Body:   body,
	}
	if size >= 0 {
		input.ContentLength = aws.Int64(size)
	}

	if _, err := c.api.PutObject(ctx, input); err != nil {
		return mapError(err, "failed to put object")
	}
	return nil
}

// DeleteObject deletes an object from S3
func (c *Client) DeleteObject(ctx context.Context, loc pathkey.Location) error {
	_, err := c.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
	})
	if err != nil {
		return mapError(err, "failed to delete object")
	}
	return nil
}

// DeleteObjects removes a batch of keys. Per-key failures reported in the
// response body are turned into an error naming the first failed key.
func (c *Client) DeleteObjects(ctx context.Context, bucket string, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	if len(keys) > store.DeleteBatchSize {
		return errs.Newf(errs.KindInvalidInput, "cannot delete %d keys in one batch", len(keys))
	}

	ids := make([]types.ObjectIdentifier, len(keys))
	for i, k := range keys {
		ids[i] = types.ObjectIdentifier{Key: aws.String(k)}
	}

	out, err := c.api.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(bucket),
		Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(true)},
	})
	if err != nil {
		return mapError(err, "failed to delete objects")
	}
	if len(out.Errors) > 0 {
		first := out.Errors[0]
		return errs.Newf(errs.KindStoreFailed, "failed to delete %d of %d objects; %s: %s",
			len(out.Errors), len(keys), aws.ToString(first.Key), aws.ToString(first.Message))
	}
	return nil
}
