package remote

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const defaultCallTimeout = 30 * time.Second

// S3Config configures the bucket connection. Endpoint is optional and
// switches the client to path-style addressing for S3-compatible stores
// (MinIO, Backblaze, GCS interop).
type S3Config struct {
	Bucket      string
	Region      string
	Endpoint    string
	AccessKey   string
	SecretKey   string
	CallTimeout time.Duration
}

// S3Store implements Store against an S3-compatible bucket.
type S3Store struct {
	client      *s3.Client
	bucket      string
	callTimeout time.Duration
}

// NewS3Store builds an S3Store with its own tuned HTTP client.
func NewS3Store(ctx context.Context, cfg *S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 store: bucket is required")
	}

	httpClient := &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   50,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
			ForceAttemptHTTP2:     true,
		},
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithHTTPClient(httpClient),
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
			o.UsePathStyle = true
		}
	})

	timeout := cfg.CallTimeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}

	return &S3Store{
		client:      client,
		bucket:      cfg.Bucket,
		callTimeout: timeout,
	}, nil
}

func (s *S3Store) List(ctx context.Context) ([]*Entry, error) {
	var entries []*Entry
	seen := make(map[string]struct{})

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: &s.bucket,
	})

	for paginator.HasMorePages() {
		pageCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
		page, err := paginator.NextPage(pageCtx)
		cancel()
		if err != nil {
			return nil, mapReadErr(err)
		}

		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			// skip folder placeholder keys
			if key == "" || strings.HasSuffix(key, "/") {
				continue
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			entries = append(entries, &Entry{
				Path:         key,
				Size:         aws.ToInt64(obj.Size),
				ETag:         trimETag(aws.ToString(obj.ETag)),
				LastModified: aws.ToTime(obj.LastModified),
			})
		}
	}

	return entries, nil
}

func (s *S3Store) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	// no timeout here: the caller streams the body and a short deadline
	// would cut large downloads off mid-transfer
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    &path,
	})
	if err != nil {
		return nil, mapReadErr(err)
	}
	return resp.Body, nil
}

func (s *S3Store) Put(ctx context.Context, path string, body io.Reader, size int64) (*Entry, error) {
	resp, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        &s.bucket,
		Key:           &path,
		Body:          body,
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return nil, mapWriteErr(err)
	}

	// PutObjectOutput carries no LastModified
	return &Entry{
		Path:         path,
		Size:         size,
		ETag:         trimETag(aws.ToString(resp.ETag)),
		LastModified: time.Now().UTC(),
	}, nil
}

func (s *S3Store) Delete(ctx context.Context, path string) error {
	// S3 deletes are silent on missing keys; probe first so the caller can
	// distinguish "already gone" from "deleted now"
	exists, err := s.Exists(ctx, path)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("delete %s: %w", path, ErrNotFound)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	if _, err := s.client.DeleteObject(callCtx, &s3.DeleteObjectInput{
		Bucket: &s.bucket,
		Key:    &path,
	}); err != nil {
		return mapWriteErr(err)
	}
	return nil
}

func (s *S3Store) Exists(ctx context.Context, path string) (bool, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	_, err := s.client.HeadObject(callCtx, &s3.HeadObjectInput{
		Bucket: &s.bucket,
		Key:    &path,
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, mapReadErr(err)
	}
	return true, nil
}

func trimETag(etag string) string {
	return strings.ReplaceAll(etag, "\"", "")
}

var _ Store = (*S3Store)(nil)
