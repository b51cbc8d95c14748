package image

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/jellydator/ttlcache/v3"

	"image-pipeline-server/internal/platform/logging"
)

const (
	msgURLRequired = "URL is required"
	msgInvalidURL  = "Invalid URL format"
	msgNotAnImage  = "URL does not point to a valid image"
	msgValidURL    = "Valid URL"
)

// ValidatorOptions configures URLValidator.
type ValidatorOptions struct {
	Client   *resty.Client
	CacheTTL time.Duration
	Logger   *logging.Logger
}

// URLValidator checks that a URL is well formed and that a HEAD request
// reports an image content type. It never downloads the body.
type URLValidator struct {
	client *resty.Client
	cache  *ttlcache.Cache[string, ValidationResult]
	logger *logging.Logger
}

func NewURLValidator(opts ValidatorOptions) *URLValidator {
	client := opts.Client
	if client == nil {
		client = resty.New().SetTimeout(10 * time.Second)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.DefaultLogger
	}

	v := &URLValidator{client: client, logger: logger}
	if opts.CacheTTL > 0 {
		v.cache = ttlcache.New[string, ValidationResult](
			ttlcache.WithTTL[string, ValidationResult](opts.CacheTTL),
			ttlcache.WithCapacity[string, ValidationResult](10_000),
		)
		go v.cache.Start()
	}
	return v
}

// Close stops the cache janitor.
func (v *URLValidator) Close() {
	if v.cache != nil {
		v.cache.Stop()
	}
}

// CheckShape applies the syntactic checks only.
func CheckShape(raw string) ValidationResult {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ValidationResult{Message: msgURLRequired}
	}
	u, err := url.ParseRequestURI(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ValidationResult{Message: msgInvalidURL}
	}
	if strings.ContainsAny(u.Host, " \t") {
		return ValidationResult{Message: msgInvalidURL}
	}
	return ValidationResult{IsValid: true, Message: msgValidURL}
}

// Validate runs the shape checks and then the HEAD probe.
func (v *URLValidator) Validate(ctx context.Context, raw string) ValidationResult {
	if res := CheckShape(raw); !res.IsValid {
		return res
	}
	raw = strings.TrimSpace(raw)

	if v.cache != nil {
		if item := v.cache.Get(raw); item != nil {
			return item.Value()
		}
	}

	res := v.probe(ctx, raw)
	// only definite answers are cached; network errors are retried next time
	if v.cache != nil && res.ContentType != "" {
		v.cache.Set(raw, res, ttlcache.DefaultTTL)
	}
	return res
}

func (v *URLValidator) probe(ctx context.Context, raw string) ValidationResult {
	resp, err := v.client.R().SetContext(ctx).Head(raw)
	if err != nil {
		v.logger.DebugTag("PIPELINE", "HEAD %s failed: %v", raw, err)
		return ValidationResult{Message: msgNotAnImage}
	}

	contentType := strings.ToLower(strings.TrimSpace(resp.Header().Get("Content-Type")))
	if resp.StatusCode() < http.StatusOK || resp.StatusCode() >= http.StatusMultipleChoices {
		return ValidationResult{Message: msgNotAnImage, ContentType: contentType}
	}
	if !strings.HasPrefix(contentType, "image/") {
		if contentType == "" {
			contentType = "unknown"
		}
		return ValidationResult{Message: msgNotAnImage, ContentType: contentType}
	}
	return ValidationResult{IsValid: true, Message: msgValidURL, ContentType: contentType}
}
