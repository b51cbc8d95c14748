package imageapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	domainimage "image-pipeline-server/internal/domain/image"
	"image-pipeline-server/internal/domain/manifest"
	platformerrors "image-pipeline-server/internal/platform/errors"
	"image-pipeline-server/internal/platform/logging"
	httptransport "image-pipeline-server/internal/transport/http"
)

// Pipeline is the part of the image pipeline the handlers drive.
type Pipeline interface {
	Process(ctx context.Context, rawURL string) (*domainimage.Result, error)
	ProcessBatch(ctx context.Context, urls []string) *domainimage.BatchReport
}

// JSONSource loads an upstream JSON document.
type JSONSource interface {
	Load(ctx context.Context, url string) (any, error)
}

// Scraper lists the images referenced by a page.
type Scraper interface {
	Scrape(ctx context.Context, pageURL string) ([]string, error)
}

// Options wires the service. Manifests is optional.
type Options struct {
	Pipeline   Pipeline
	JSONSource JSONSource
	Scraper    Scraper
	Manifests  manifest.Store
	Logger     *logging.Logger
}

// Service exposes the image pipeline over HTTP.
type Service struct {
	pipeline  Pipeline
	source    JSONSource
	scraper   Scraper
	manifests manifest.Store
	logger    *logging.Logger
}

// NewService builds the image routes. Pipeline, JSONSource and Scraper are required.
func NewService(opts Options) (*Service, error) {
	if opts.Pipeline == nil {
		return nil, platformerrors.New(platformerrors.KindConfig, "imageapi.new", "pipeline is required")
	}
	if opts.JSONSource == nil {
		return nil, platformerrors.New(platformerrors.KindConfig, "imageapi.new", "json source is required")
	}
	if opts.Scraper == nil {
		return nil, platformerrors.New(platformerrors.KindConfig, "imageapi.new", "scraper is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.DefaultLogger
	}
	return &Service{
		pipeline:  opts.Pipeline,
		source:    opts.JSONSource,
		scraper:   opts.Scraper,
		manifests: opts.Manifests,
		logger:    logger,
	}, nil
}

// Register mounts the processing routes at the root and under /api.
// Processing routes are served on router and again under /api; manifest
// lookups only under /api.
func (s *Service) Register(ctx context.Context, router *gin.RouterGroup) error {
	api := router.Group("/api")
	for _, group := range []*gin.RouterGroup{router, api} {
		group.GET("/compress", s.handleCompress)
		group.POST("/bulk-image-transform", s.handleBulk)
		group.GET("/image-transform-json", s.handleTransformJSON)
		group.POST("/scrape-images", s.handleScrape)
	}

	if s.manifests != nil {
		api.GET("/manifests", s.handleManifest)
		api.GET("/batches/:id", s.handleBatch)
	}

	s.logger.InfoTag("HTTP", "image routes registered under %q", router.BasePath())
	return nil
}

type bulkRequest struct {
	URLs []string `json:"urls"`
}

type scrapeRequest struct {
	URL string `json:"url"`
}

// ScrapeResponse is returned by /scrape-images.
type ScrapeResponse struct {
	Result string                   `json:"result"`
	Report *domainimage.BatchReport `json:"report"`
}

// handleCompress processes one image.
// @Summary Compress one image
// @Description Fetches the image at url and stores the max, xs, s, m and l derivatives in the source format and as webp.
// @Tags Images
// @Produce json
// @Param url query string true "Source image URL"
// @Success 200 {object} map[string]string "output id to public URL"
// @Failure 400 {object} httptransport.ErrorBody
// @Failure 500 {object} httptransport.ErrorBody
// @Router /compress [get]
func (s *Service) handleCompress(c *gin.Context) {
	rawURL := strings.TrimSpace(c.Query("url"))
	if rawURL == "" {
		httptransport.RespondStatus(c, http.StatusBadRequest, "URL is required")
		return
	}

	res, err := s.pipeline.Process(c.Request.Context(), rawURL)
	if err != nil {
		httptransport.RespondFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, res.Outputs)
}

// handleBulk processes a list of images.
// @Summary Compress many images
// @Description Processes every URL independently; one failure never aborts the others.
// @Tags Images
// @Accept json
// @Produce json
// @Param body body bulkRequest true "URLs to process"
// @Success 200 {object} domainimage.BatchReport
// @Failure 400 {object} httptransport.ErrorBody
// @Router /bulk-image-transform [post]
func (s *Service) handleBulk(c *gin.Context) {
	var req bulkRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.URLs == nil {
		httptransport.RespondStatus(c, http.StatusBadRequest, "URLs are required and should be an array")
		return
	}

	report := s.pipeline.ProcessBatch(c.Request.Context(), req.URLs)
	c.JSON(http.StatusOK, report)
}

// handleTransformJSON processes every image URL found under the given JSON keys.
// @Summary Compress images referenced by a JSON document
// @Description Fetches url, collects every string stored under one of keys at any depth, processes them and returns the deduplicated list.
// @Tags Images
// @Produce json
// @Param url query string true "JSON document URL"
// @Param keys query string true "Comma separated key names"
// @Success 200 {array} string
// @Failure 400 {object} httptransport.ErrorBody
// @Failure 500 {object} httptransport.ErrorBody
// @Router /image-transform-json [get]
func (s *Service) handleTransformJSON(c *gin.Context) {
	rawURL := strings.TrimSpace(c.Query("url"))
	if rawURL == "" {
		httptransport.RespondStatus(c, http.StatusBadRequest, "URL is required")
		return
	}
	keys := parseKeys(c.Query("keys"))
	if len(keys) == 0 {
		httptransport.RespondStatus(c, http.StatusBadRequest, "keys are required")
		return
	}

	// the query is part of the API request, so only the shape is checked
	if check := domainimage.CheckShape(rawURL); !check.IsValid {
		httptransport.RespondStatus(c, http.StatusBadRequest, check.Message)
		return
	}
	doc, err := s.source.Load(c.Request.Context(), rawURL)
	if err != nil {
		httptransport.RespondFailure(c, err)
		return
	}

	images := extractKeys(doc, keys)
	report := s.pipeline.ProcessBatch(c.Request.Context(), images)
	s.logger.InfoTag("HTTP", "json %s: %d images, %d failed (batch %s)", rawURL, len(images), report.Failed, report.ID)

	c.JSON(http.StatusOK, images)
}

// handleScrape processes the images referenced by a page.
// @Summary Compress every image on a page
// @Tags Images
// @Accept json
// @Produce json
// @Param body body scrapeRequest true "Page URL"
// @Success 200 {object} ScrapeResponse
// @Failure 400 {object} httptransport.ErrorBody
// @Failure 500 {object} httptransport.ErrorBody
// @Router /scrape-images [post]
func (s *Service) handleScrape(c *gin.Context) {
	var req scrapeRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.URL) == "" {
		httptransport.RespondStatus(c, http.StatusBadRequest, "URL is required")
		return
	}

	images, err := s.scraper.Scrape(c.Request.Context(), req.URL)
	if err != nil {
		httptransport.RespondFailure(c, err)
		return
	}

	report := s.pipeline.ProcessBatch(c.Request.Context(), images)
	c.JSON(http.StatusOK, ScrapeResponse{Result: "COMPRESSED", Report: report})
}

// handleManifest looks up the stored record for an image.
// @Summary Last recorded outputs of a source URL
// @Tags Manifests
// @Produce json
// @Param url query string true "Source image URL"
// @Success 200 {object} httptransport.APIResponse{data=manifest.ImageRecord}
// @Failure 400 {object} httptransport.APIResponse
// @Failure 404 {object} httptransport.APIResponse
// @Router /api/manifests [get]
func (s *Service) handleManifest(c *gin.Context) {
	source, err := domainimage.CanonicalURL(c.Query("url"))
	if err != nil {
		httptransport.RespondError(c, http.StatusBadRequest, platformerrors.MessageOf(err), gin.H{})
		return
	}

	rec, err := s.manifests.GetImage(c.Request.Context(), source)
	if errors.Is(err, manifest.ErrNotFound) {
		httptransport.RespondError(c, http.StatusNotFound, "manifest not found", gin.H{"url": source})
		return
	}
	if err != nil {
		s.logger.ErrorTag("MANIFEST", "load %s: %v", source, err)
		httptransport.RespondError(c, http.StatusInternalServerError, "failed to load manifest", gin.H{})
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, rec, "")
}

// handleBatch looks up a stored batch report.
// @Summary Stored batch report
// @Tags Manifests
// @Produce json
// @Param id path string true "Batch ID"
// @Success 200 {object} httptransport.APIResponse{data=manifest.BatchRecord}
// @Failure 404 {object} httptransport.APIResponse
// @Router /api/batches/{id} [get]
func (s *Service) handleBatch(c *gin.Context) {
	id := c.Param("id")
	rec, err := s.manifests.GetBatch(c.Request.Context(), id)
	if errors.Is(err, manifest.ErrNotFound) {
		httptransport.RespondError(c, http.StatusNotFound, "batch not found", gin.H{"id": id})
		return
	}
	if err != nil {
		s.logger.ErrorTag("MANIFEST", "load batch %s: %v", id, err)
		httptransport.RespondError(c, http.StatusInternalServerError, "failed to load batch", gin.H{})
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, rec, "")
}
