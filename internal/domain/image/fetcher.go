package image

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	platformerrors "image-pipeline-server/internal/platform/errors"
	"image-pipeline-server/internal/platform/logging"
	"image-pipeline-server/internal/util/retry"
)

const defaultMaxBytes int64 = 50 << 20

// FetcherOptions configures HTTPFetcher.
type FetcherOptions struct {
	Client    *resty.Client
	Timeout   time.Duration
	MaxBytes  int64
	UserAgent string
	Retry     retry.Policy
	Logger    *logging.Logger
}

// HTTPFetcher downloads source images with bounded retries.
type HTTPFetcher struct {
	client   *resty.Client
	maxBytes int64
	policy   retry.Policy
	logger   *logging.Logger
}

func NewHTTPFetcher(opts FetcherOptions) *HTTPFetcher {
	client := opts.Client
	if client == nil {
		client = resty.New()
	}
	if opts.Timeout > 0 {
		client.SetTimeout(opts.Timeout)
	}
	if opts.UserAgent != "" {
		client.SetHeader("User-Agent", opts.UserAgent)
	}
	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	policy := opts.Retry
	if policy.MaxAttempts == 0 {
		policy = retry.DefaultPolicy()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.DefaultLogger
	}

	return &HTTPFetcher{client: client, maxBytes: maxBytes, policy: policy, logger: logger}
}

// Fetch returns the full body of url. Network errors, 5xx and 429 are retried;
// other non-2xx statuses and oversized bodies fail at once.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	var data []byte
	attempt := 0
	policy := f.policy
	policy.OnRetry = func(err error, wait time.Duration) {
		f.logger.WarnTag("PIPELINE", "fetch %s attempt %d failed, retrying in %s: %v", url, attempt, wait, err)
	}

	err := retry.Do(ctx, policy, func() error {
		attempt++
		body, err := f.fetchOnce(ctx, url)
		if err != nil {
			return err
		}
		data = body
		return nil
	})
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindFetch, "image.fetch", "failed to fetch image", err)
	}
	return data, nil
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context, url string) ([]byte, error) {
	resp, err := f.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(url)
	if err != nil {
		return nil, err
	}
	body := resp.RawBody()
	defer body.Close()

	status := resp.StatusCode()
	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, io.LimitReader(body, 4<<10))
		statusErr := platformerrors.New(platformerrors.KindFetch, "image.fetch",
			fmt.Sprintf("unexpected status %d from %s", status, url))
		if status >= http.StatusInternalServerError || status == http.StatusTooManyRequests {
			return nil, statusErr
		}
		return nil, retry.Permanent(statusErr)
	}

	data, err := io.ReadAll(io.LimitReader(body, f.maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > f.maxBytes {
		return nil, retry.Permanent(platformerrors.New(platformerrors.KindFetch, "image.fetch",
			fmt.Sprintf("image exceeds %d bytes", f.maxBytes)))
	}
	if len(data) == 0 {
		return nil, retry.Permanent(platformerrors.New(platformerrors.KindFetch, "image.fetch", "empty response body"))
	}
	return data, nil
}
