package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/noah-isme/eligibility-report-api/pkg/config"
)

// S3API is the subset of the S3 client the backend needs.
type S3API interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Backend stores blobs as objects keyed "<container>/<name>" in one bucket.
type S3Backend struct {
	client S3API
	bucket string
}

// NewS3Backend builds a client from the default AWS credential chain. SDK-level retries are
// disabled so the repository's retry policy is the only one in effect.
func NewS3Backend(ctx context.Context, cfg config.S3Config) (*S3Backend, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithRetryMaxAttempts(1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return NewS3BackendWithClient(client, cfg.Bucket), nil
}

// NewS3BackendWithClient wraps an existing client.
func NewS3BackendWithClient(client S3API, bucket string) *S3Backend {
	return &S3Backend{client: client, bucket: bucket}
}

// List enumerates objects under the container prefix, newest first.
func (b *S3Backend) List(ctx context.Context, query BlobQuery) ([]BlobRef, error) {
	prefix := query.Container + "/"
	if query.Name != "" {
		prefix += query.Name
	}

	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(prefix),
	})

	refs := make([]BlobRef, 0)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, classifyS3("list objects", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			name := strings.TrimPrefix(key, query.Container+"/")
			if strings.Contains(name, "/") || !query.matches(name) {
				continue
			}
			refs = append(refs, BlobRef{ID: key, Name: name, UpdatedAt: aws.ToTime(obj.LastModified).UTC()})
		}
	}

	sort.SliceStable(refs, func(i, j int) bool {
		if refs[i].UpdatedAt.Equal(refs[j].UpdatedAt) {
			return refs[i].Name < refs[j].Name
		}
		return refs[i].UpdatedAt.After(refs[j].UpdatedAt)
	})
	return refs, nil
}

// Create puts the object only if no object with the same key exists.
func (b *S3Backend) Create(ctx context.Context, name, container string, content []byte) (string, error) {
	key := container + "/" + name
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(content),
		ContentType: aws.String("application/json"),
		IfNoneMatch: aws.String("*"),
	})
	if err != nil {
		if statusCode(err) == http.StatusPreconditionFailed {
			return "", ErrBlobExists
		}
		return "", classifyS3("put object", err)
	}
	return key, nil
}

// Update replaces the object stored under id.
func (b *S3Backend) Update(ctx context.Context, id string, content []byte) error {
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(id),
		Body:        bytes.NewReader(content),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return classifyS3("put object", err)
	}
	return nil
}

// GetContent downloads the object stored under id.
func (b *S3Backend) GetContent(ctx context.Context, id string) ([]byte, error) {
	result, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(id),
	})
	if err != nil {
		return nil, classifyS3("get object", err)
	}
	defer result.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, Transient("read object", err)
	}
	return data, nil
}

var transientS3Codes = map[string]struct{}{
	"RequestTimeout":       {},
	"RequestTimeTooSkewed": {},
	"SlowDown":             {},
	"InternalError":        {},
	"ServiceUnavailable":   {},
	"ThrottlingException":  {},
	"OperationAborted":     {},
}

// classifyS3 maps SDK errors onto ErrBlobNotFound, TransientError or a fatal error.
func classifyS3(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return ErrBlobNotFound
	}

	if status := statusCode(err); status != 0 {
		switch {
		case status == http.StatusNotFound:
			return ErrBlobNotFound
		case status >= 500, status == http.StatusTooManyRequests, status == http.StatusConflict:
			return Transient(op, err)
		}
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if _, ok := transientS3Codes[apiErr.ErrorCode()]; ok {
			return Transient(op, err)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	var sendErr *smithyhttp.RequestSendError
	if errors.As(err, &sendErr) {
		return Transient(op, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Transient(op, err)
	}

	return fmt.Errorf("%s: %w", op, err)
}

func statusCode(err error) int {
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		return respErr.HTTPStatusCode()
	}
	return 0
}
