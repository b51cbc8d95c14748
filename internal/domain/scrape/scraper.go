// Package scrape lists the images referenced by a static HTML page.
package scrape

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	platformerrors "image-pipeline-server/internal/platform/errors"
	"image-pipeline-server/internal/platform/logging"
)

// imageAttrs are read from every <img>, in order. Lazy-loading pages often
// keep the real URL in data-src.
var imageAttrs = []string{"src", "data-src"}

// Scraper fetches a page and lists its <img> sources. Scripts are not run.
type Scraper struct {
	client *resty.Client
	logger *logging.Logger
}

func New(client *resty.Client, logger *logging.Logger) *Scraper {
	if client == nil {
		client = resty.New()
	}
	if logger == nil {
		logger = logging.DefaultLogger
	}
	return &Scraper{client: client, logger: logger}
}

// Scrape returns absolute http(s) image URLs found on pageURL with query and
// fragment removed, deduplicated in document order.
func (s *Scraper) Scrape(ctx context.Context, pageURL string) ([]string, error) {
	base, err := url.Parse(strings.TrimSpace(pageURL))
	if err != nil || base.Host == "" || (base.Scheme != "http" && base.Scheme != "https") {
		return nil, platformerrors.New(platformerrors.KindValidation, "scrape.page", "Invalid URL format")
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Accept", "text/html,application/xhtml+xml").
		Get(base.String())
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindFetch, "scrape.page", "failed to fetch page", err)
	}
	if resp.StatusCode() < http.StatusOK || resp.StatusCode() >= http.StatusMultipleChoices {
		return nil, platformerrors.New(platformerrors.KindFetch, "scrape.page",
			fmt.Sprintf("unexpected status %d from %s", resp.StatusCode(), pageURL))
	}

	// redirects change the base for relative sources
	if final := resp.RawResponse; final != nil && final.Request != nil && final.Request.URL != nil {
		base = final.Request.URL
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body()))
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindFetch, "scrape.page", "failed to parse page", err)
	}

	images := Extract(doc, base)
	s.logger.InfoTag("SCRAPER", "found %d images on %s", len(images), pageURL)
	return images, nil
}

// Extract lists image sources in doc resolved against base, honouring <base href>.
func Extract(doc *goquery.Document, base *url.URL) []string {
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if u, err := base.Parse(strings.TrimSpace(href)); err == nil {
			base = u
		}
	}

	var out []string
	seen := map[string]struct{}{}
	doc.Find("img").Each(func(_ int, el *goquery.Selection) {
		for _, attr := range imageAttrs {
			raw, ok := el.Attr(attr)
			if !ok {
				continue
			}
			abs, ok := resolve(base, raw)
			if !ok {
				continue
			}
			if _, dup := seen[abs]; dup {
				continue
			}
			seen[abs] = struct{}{}
			out = append(out, abs)
		}
	})
	return out
}

func resolve(base *url.URL, raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "data:") {
		return "", false
	}
	u, err := base.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", false
	}
	u.RawQuery = ""
	u.ForceQuery = false
	u.Fragment = ""
	u.RawFragment = ""
	return u.String(), true
}
