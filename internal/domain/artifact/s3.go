package artifact

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"image-pipeline-server/internal/platform/config"
	platformerrors "image-pipeline-server/internal/platform/errors"
	"image-pipeline-server/internal/platform/logging"
	"image-pipeline-server/internal/util/retry"
)

// S3Store uploads artifacts to any S3-compatible bucket with a public ACL.
type S3Store struct {
	client   *minio.Client
	endpoint string
	bucket   string
	acl      string
	policy   retry.Policy
	logger   *logging.Logger
}

// NewS3 builds a path-style client for cfg.Endpoint. No request is made.
func NewS3(cfg config.S3Config, deps Dependencies) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, platformerrors.New(platformerrors.KindConfig, "artifact.s3", "bucket is required")
	}
	u, err := url.Parse(cfg.Endpoint)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, platformerrors.New(platformerrors.KindConfig, "artifact.s3",
			fmt.Sprintf("endpoint must be an http(s) URL, got %q", cfg.Endpoint))
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	client, err := minio.New(u.Host, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure:       u.Scheme == "https",
		Region:       region,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindConfig, "artifact.s3", "failed to create client", err)
	}

	acl := cfg.ACL
	if acl == "" {
		acl = "public-read"
	}
	policy := deps.Retry
	if policy.MaxAttempts == 0 {
		policy = retry.DefaultPolicy()
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.DefaultLogger
	}

	return &S3Store{
		client:   client,
		endpoint: strings.TrimRight(u.Scheme+"://"+u.Host+u.Path, "/"),
		bucket:   cfg.Bucket,
		acl:      acl,
		policy:   policy,
		logger:   logger,
	}, nil
}

func (s *S3Store) Name() string { return DriverS3 }

// Put uploads data with an inferred content type. Transient failures are
// retried under the store's policy; 4xx responses are not.
func (s *S3Store) Put(ctx context.Context, key string, data []byte) error {
	key = strings.TrimPrefix(key, "/")
	opts := minio.PutObjectOptions{
		ContentType:  ContentTypeFor(key),
		UserMetadata: map[string]string{"x-amz-acl": s.acl},
	}

	start := time.Now()
	policy := s.policy
	policy.OnRetry = func(err error, wait time.Duration) {
		s.logger.WarnTag("STORE", "upload %s failed, retrying in %s: %v", key, wait, err)
	}
	err := retry.Do(ctx, policy, func() error {
		_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), opts)
		if err == nil {
			return nil
		}
		status := minio.ToErrorResponse(err).StatusCode
		if status >= http.StatusBadRequest && status < http.StatusInternalServerError && status != http.StatusTooManyRequests {
			return retry.Permanent(err)
		}
		return err
	})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindUpload, "artifact.s3", "failed to upload "+key, err)
	}

	s.logger.DebugTag("STORE", "uploaded %s to %s (%d bytes, %s)", key, s.bucket, len(data), time.Since(start).Round(time.Millisecond))
	return nil
}

// URL returns {endpoint}/{bucket}/{key}.
func (s *S3Store) URL(key string) string {
	return joinURL(s.endpoint+"/"+s.bucket, key)
}
